// Package audit persists session mapping tables and run statistics to
// PostgreSQL. The store records pseudonyms and canonical keys, never the
// document text itself: the audit trail must be less sensitive than the
// documents it describes.
package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/rebeccahihi/pseudo/internal/config"
	"github.com/rebeccahihi/pseudo/internal/entity"
)

// Store handles audit persistence with PostgreSQL.
type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// Run records one document processed under a session.
type Run struct {
	ID             int64     `db:"id" json:"id"`
	SessionID      string    `db:"session_id" json:"session_id"`
	EntityCount    int       `db:"entity_count" json:"entity_count"`
	Replacements   int       `db:"replacements" json:"replacements"`
	ElapsedMS      float64   `db:"elapsed_ms" json:"elapsed_ms"`
	MeanConfidence float64   `db:"mean_confidence" json:"mean_confidence"`
	PatternOnly    bool      `db:"pattern_only" json:"pattern_only"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// MappingRecord mirrors one MappingEntry at session close.
type MappingRecord struct {
	ID           int64     `db:"id" json:"id"`
	SessionID    string    `db:"session_id" json:"session_id"`
	CanonicalKey string    `db:"canonical_key" json:"canonical_key"`
	EntityType   string    `db:"entity_type" json:"entity_type"`
	Role         string    `db:"role" json:"role"`
	Pseudonym    string    `db:"pseudonym" json:"pseudonym"`
	FirstSeen    int       `db:"first_seen" json:"first_seen"`
	Occurrences  int       `db:"occurrences" json:"occurrences"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

const schema = `
CREATE TABLE IF NOT EXISTS pseudonym_runs (
	id BIGSERIAL PRIMARY KEY,
	session_id TEXT NOT NULL,
	entity_count INT NOT NULL,
	replacements INT NOT NULL,
	elapsed_ms DOUBLE PRECISION NOT NULL,
	mean_confidence DOUBLE PRECISION NOT NULL,
	pattern_only BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_runs_session ON pseudonym_runs(session_id);

CREATE TABLE IF NOT EXISTS pseudonym_mappings (
	id BIGSERIAL PRIMARY KEY,
	session_id TEXT NOT NULL,
	canonical_key TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	role TEXT NOT NULL DEFAULT '',
	pseudonym TEXT NOT NULL,
	first_seen INT NOT NULL,
	occurrences INT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE(session_id, canonical_key, entity_type, role)
);
CREATE INDEX IF NOT EXISTS idx_mappings_session ON pseudonym_mappings(session_id);
`

// NewStore connects to PostgreSQL and ensures the audit schema exists.
func NewStore(cfg config.AuditConfig, logger *zap.Logger) (*Store, error) {
	db, err := sqlx.Connect("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConns)

	store := &Store{db: db, logger: logger}

	if err := store.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize audit store: %w", err)
	}

	logger.Info("Audit store initialized",
		zap.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		zap.Int("max_conns", cfg.MaxConns))

	return store, nil
}

// initialize checks the connection and applies the schema.
func (s *Store) initialize() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply audit schema: %w", err)
	}

	return nil
}

// RecordRun inserts one processing run.
func (s *Store) RecordRun(ctx context.Context, run *Run) error {
	query := `
		INSERT INTO pseudonym_runs (session_id, entity_count, replacements, elapsed_ms, mean_confidence, pattern_only)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := s.db.QueryRowContext(ctx, query,
		run.SessionID,
		run.EntityCount,
		run.Replacements,
		run.ElapsedMS,
		run.MeanConfidence,
		run.PatternOnly,
	).Scan(&run.ID, &run.CreatedAt)

	if err != nil {
		s.logger.Error("Failed to record run",
			zap.Error(err),
			zap.String("session_id", run.SessionID))
		return fmt.Errorf("failed to record run: %w", err)
	}

	return nil
}

// RecordMapping persists a session's mapping table. Re-recording the same
// session upserts occurrence counts so closing twice is harmless.
func (s *Store) RecordMapping(ctx context.Context, sessionID string, entries []entity.MappingEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO pseudonym_mappings (session_id, canonical_key, entity_type, role, pseudonym, first_seen, occurrences)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (session_id, canonical_key, entity_type, role)
		DO UPDATE SET occurrences = EXCLUDED.occurrences`

	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, query,
			sessionID,
			e.CanonicalKey,
			string(e.Type),
			string(e.Role),
			e.Pseudonym,
			e.FirstSeen,
			e.Occurrences,
		); err != nil {
			return fmt.Errorf("failed to record mapping entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit mapping records: %w", err)
	}

	s.logger.Debug("Mapping recorded",
		zap.String("session_id", sessionID),
		zap.Int("entries", len(entries)))

	return nil
}

// RunsBySession returns the recorded runs for one session, oldest first.
func (s *Store) RunsBySession(ctx context.Context, sessionID string) ([]Run, error) {
	var runs []Run
	query := `SELECT * FROM pseudonym_runs WHERE session_id = $1 ORDER BY created_at`
	if err := s.db.SelectContext(ctx, &runs, query, sessionID); err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	return runs, nil
}

// MappingsBySession returns the persisted mapping table for one session.
func (s *Store) MappingsBySession(ctx context.Context, sessionID string) ([]MappingRecord, error) {
	var records []MappingRecord
	query := `SELECT * FROM pseudonym_mappings WHERE session_id = $1 ORDER BY id`
	if err := s.db.SelectContext(ctx, &records, query, sessionID); err != nil {
		return nil, fmt.Errorf("failed to query mappings: %w", err)
	}
	return records, nil
}

// AllMappings streams every mapping record, for export tooling.
func (s *Store) AllMappings(ctx context.Context) ([]MappingRecord, error) {
	var records []MappingRecord
	query := `SELECT * FROM pseudonym_mappings ORDER BY session_id, id`
	if err := s.db.SelectContext(ctx, &records, query); err != nil {
		return nil, fmt.Errorf("failed to query mappings: %w", err)
	}
	return records, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// maskDatabaseURL masks credentials in a database URL for logging.
func maskDatabaseURL(url string) string {
	if idx := strings.Index(url, "@"); idx > 0 {
		if schemeEnd := strings.Index(url, "://"); schemeEnd > 0 {
			return url[:schemeEnd+3] + "***" + url[idx:]
		}
	}
	return url
}
