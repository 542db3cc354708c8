// Package mapper owns the session-scoped consistency table: every canonical
// key maps to exactly one pseudonym for the lifetime of a session, across
// all documents processed under it.
package mapper

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rebeccahihi/pseudo/internal/config"
	"github.com/rebeccahihi/pseudo/internal/entity"
	"github.com/rebeccahihi/pseudo/internal/logger"
)

// mapKey identifies one mapping entry. Role participates so that the same
// surface form can, in principle, carry role-specific pseudonyms; in
// practice the role registry pins each person key to its first-seen role.
type mapKey struct {
	key  string
	typ  entity.Type
	role entity.Role
}

// counterKey scopes a letter-sequence counter.
type counterKey struct {
	typ  entity.Type
	role entity.Role
}

// Session holds the mapping state for one pseudonymization session. All
// methods are safe for concurrent use.
type Session struct {
	mu sync.Mutex

	id        string
	createdAt time.Time
	cfg       config.PseudonymConfig
	logger    *logger.Logger

	rng        *rand.Rand
	dateOffset int

	entries  []entity.MappingEntry
	index    map[mapKey]int
	counters map[counterKey]int

	// roleRegistry pins each person canonical key to the role it carried the
	// first time it was mapped. Later occurrences with a different role keep
	// the first pseudonym.
	roleRegistry map[string]entity.Role

	// used tracks issued substitutes per type so two canonical keys never
	// share a pseudonym.
	used map[entity.Type]map[string]bool

	citations int
	emails    int
	closed    bool
}

// NewSession creates a session seeded from the pipeline configuration. The
// date offset is drawn once per session so intervals between shifted dates
// are preserved exactly.
func NewSession(id string, cfg config.PseudonymConfig, log *logger.Logger) *Session {
	rng := rand.New(rand.NewSource(cfg.Seed))

	shiftRange := cfg.DateShiftRangeDays
	if shiftRange <= 0 {
		shiftRange = 1
	}
	// Offset in [-shiftRange, shiftRange] excluding zero: a zero shift would
	// leave every date intact.
	offset := rng.Intn(2*shiftRange) - shiftRange
	if offset >= 0 {
		offset++
	}

	return &Session{
		id:           id,
		createdAt:    time.Now(),
		cfg:          cfg,
		logger:       log.WithSession(id),
		rng:          rng,
		dateOffset:   offset,
		index:        make(map[mapKey]int),
		counters:     make(map[counterKey]int),
		roleRegistry: make(map[string]entity.Role),
		used:         make(map[entity.Type]map[string]bool),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// CreatedAt returns the session creation time.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Resolve returns the pseudonym for the entity, allocating one on first
// sight. The allocate-or-lookup is atomic under the session lock.
func (s *Session) Resolve(e entity.ResolvedEntity) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", entity.ErrSessionClosed
	}

	role := e.Role
	if e.Type == entity.TypePerson {
		if first, ok := s.roleRegistry[e.CanonicalKey]; ok {
			role = first
		} else if idx, ok := s.matchPerson(e.CanonicalKey); ok {
			// A bare mention of an already-mapped person ("Tan" after
			// "Michael Tan") inherits that person's pseudonym and role.
			entry := &s.entries[idx]
			entry.Occurrences++
			s.roleRegistry[e.CanonicalKey] = entry.Role
			s.index[mapKey{key: e.CanonicalKey, typ: entity.TypePerson, role: entry.Role}] = idx

			s.logger.Debug("Name variation cross-referenced",
				zap.String("pseudonym", entry.Pseudonym),
			)
			return entry.Pseudonym, nil
		} else {
			s.roleRegistry[e.CanonicalKey] = role
		}
	} else {
		role = entity.RoleUnspecified
	}

	k := mapKey{key: e.CanonicalKey, typ: e.Type, role: role}
	if idx, ok := s.index[k]; ok {
		s.entries[idx].Occurrences++
		return s.entries[idx].Pseudonym, nil
	}

	pseudonym := s.allocate(e)

	s.index[k] = len(s.entries)
	s.entries = append(s.entries, entity.MappingEntry{
		CanonicalKey: e.CanonicalKey,
		Type:         e.Type,
		Role:         role,
		Pseudonym:    pseudonym,
		FirstSeen:    e.Start,
		Occurrences:  1,
	})

	s.logger.Debug("Pseudonym allocated",
		zap.String("type", string(e.Type)),
		zap.String("pseudonym", pseudonym),
	)

	return pseudonym, nil
}

// allocate builds a fresh pseudonym for the entity. Caller holds the lock.
func (s *Session) allocate(e entity.ResolvedEntity) string {
	switch e.Type {
	case entity.TypePerson:
		// One letter series across all roles: the role is recorded in the
		// mapping entry, never in the surface pseudonym, and a shared counter
		// keeps "Person A" unique regardless of role splits.
		ck := counterKey{typ: entity.TypePerson}
		n := s.counters[ck]
		s.counters[ck] = n + 1
		return "Person " + letterSeq(n)

	case entity.TypeOrg:
		n := s.counters[counterKey{typ: entity.TypeOrg}]
		s.counters[counterKey{typ: entity.TypeOrg}] = n + 1
		return "Company " + letterSeq(n)

	case entity.TypeCitation:
		s.citations++
		return fmt.Sprintf("[CITATION %d]", s.citations)

	case entity.TypeAddress:
		for salt := 0; ; salt++ {
			code := addressCode(s.cfg.Seed, e.CanonicalKey, salt)
			candidate := "[ADDRESS " + code + "]"
			if s.claim(entity.TypeAddress, candidate) {
				return candidate
			}
		}

	case entity.TypeDate:
		if shifted, ok := shiftDate(e.Text, s.dateOffset); ok {
			return shifted
		}
		// Unparseable surface forms fall back to digit substitution.
		return s.uniqueDigits(entity.TypeDate, e.Text)

	case entity.TypeEmail:
		s.emails++
		return fmt.Sprintf("user%d@example.com", s.emails)

	default:
		// CASE_NUMBER, MONEY, PHONE, PERCENT, NUMBER: structure-preserving
		// digit substitution.
		return s.uniqueDigits(e.Type, e.Text)
	}
}

// uniqueDigits randomizes the digits of surface until the result is not
// already issued for the type. A bounded retry keeps the common case cheap;
// the numbered suffix guarantees termination.
func (s *Session) uniqueDigits(typ entity.Type, surface string) string {
	for attempt := 0; attempt < 100; attempt++ {
		candidate := randomDigits(s.rng, surface)
		if candidate != surface && s.claim(typ, candidate) {
			return candidate
		}
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s (%d)", randomDigits(s.rng, surface), n)
		if s.claim(typ, candidate) {
			return candidate
		}
	}
}

// matchPerson scans existing person entries for a name variation of key,
// oldest entry first so a multi-way match resolves to the first-seen person.
// Caller holds the lock.
func (s *Session) matchPerson(key string) (int, bool) {
	for i, e := range s.entries {
		if e.Type == entity.TypePerson && namesLikelySame(key, e.CanonicalKey) {
			return i, true
		}
	}
	return 0, false
}

// claim records the substitute as issued, returning false when it already
// belongs to another canonical key.
func (s *Session) claim(typ entity.Type, value string) bool {
	if s.used[typ] == nil {
		s.used[typ] = make(map[string]bool)
	}
	if s.used[typ][value] {
		return false
	}
	s.used[typ][value] = true
	return true
}

// Mapping returns a snapshot of the session's mapping table in allocation
// order.
func (s *Session) Mapping() []entity.MappingEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]entity.MappingEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Close ends the session. Further Resolve calls fail with ErrSessionClosed;
// Mapping stays readable for export.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		s.logger.Info("Session closed", zap.Int("mappings", len(s.entries)))
	}
}
