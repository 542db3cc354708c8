// Command export dumps audit-store contents (mapping tables and run
// statistics) to CSV, JSON, or Parquet files for downstream review.
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/segmentio/parquet-go"
	"go.uber.org/zap"

	"github.com/rebeccahihi/pseudo/internal/audit"
	"github.com/rebeccahihi/pseudo/internal/config"
	"github.com/rebeccahihi/pseudo/internal/logger"
)

func main() {
	var (
		configPath = flag.String("config", "", "Configuration file path")
		sessionID  = flag.String("session", "", "Export a single session (default: all)")
		format     = flag.String("format", "csv", "Output format: csv, json, or parquet")
		output     = flag.String("output", "", "Output file path (default: mappings.<format>)")
		withRuns   = flag.Bool("runs", false, "Also export run statistics (requires --session)")
	)
	flag.Parse()

	if *format != "csv" && *format != "json" && *format != "parquet" {
		fmt.Fprintf(os.Stderr, "Unsupported format: %s (must be csv, json, or parquet)\n", *format)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if !cfg.Audit.Enabled || cfg.Audit.DatabaseURL == "" {
		fmt.Fprintf(os.Stderr, "Audit store is not configured; nothing to export\n")
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Received shutdown signal, cancelling export...")
		cancel()
	}()

	store, err := audit.NewStore(cfg.Audit, log.WithComponent("audit").Logger)
	if err != nil {
		log.Fatal("Failed to open audit store", zap.Error(err))
	}
	defer store.Close()

	start := time.Now()

	records, err := loadMappings(ctx, store, *sessionID)
	if err != nil {
		log.Fatal("Failed to load mappings", zap.Error(err))
	}

	outPath := *output
	if outPath == "" {
		outPath = "mappings." + *format
	}

	if err := writeMappings(outPath, *format, records); err != nil {
		log.Fatal("Failed to write mappings", zap.Error(err))
	}

	log.Info("Mappings exported",
		zap.String("output", outPath),
		zap.String("format", *format),
		zap.Int("records", len(records)),
		zap.Duration("elapsed", time.Since(start)))

	if *withRuns {
		if *sessionID == "" {
			log.Fatal("--runs requires --session")
		}
		runs, err := store.RunsBySession(ctx, *sessionID)
		if err != nil {
			log.Fatal("Failed to load runs", zap.Error(err))
		}

		runsPath := runsOutputPath(outPath)
		if err := writeRuns(runsPath, *format, runs); err != nil {
			log.Fatal("Failed to write runs", zap.Error(err))
		}

		log.Info("Runs exported",
			zap.String("output", runsPath),
			zap.Int("records", len(runs)))
	}
}

func loadMappings(ctx context.Context, store *audit.Store, sessionID string) ([]audit.MappingRecord, error) {
	if sessionID != "" {
		return store.MappingsBySession(ctx, sessionID)
	}
	return store.AllMappings(ctx)
}

// runsOutputPath derives the runs file name from the mappings file name.
func runsOutputPath(mappingPath string) string {
	ext := filepath.Ext(mappingPath)
	return mappingPath[:len(mappingPath)-len(ext)] + "_runs" + ext
}

func writeMappings(path, format string, records []audit.MappingRecord) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	switch format {
	case "csv":
		w := csv.NewWriter(file)
		defer w.Flush()

		if err := w.Write([]string{"session_id", "canonical_key", "entity_type", "role", "pseudonym", "first_seen", "occurrences", "created_at"}); err != nil {
			return err
		}
		for _, r := range records {
			row := []string{
				r.SessionID,
				r.CanonicalKey,
				r.EntityType,
				r.Role,
				r.Pseudonym,
				strconv.Itoa(r.FirstSeen),
				strconv.Itoa(r.Occurrences),
				r.CreatedAt.Format(time.RFC3339),
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
		return nil

	case "json":
		enc := json.NewEncoder(file)
		enc.SetIndent("", "  ")
		return enc.Encode(records)

	case "parquet":
		w := parquet.NewWriter(file)
		for i := range records {
			if err := w.Write(&records[i]); err != nil {
				return fmt.Errorf("failed to write parquet row: %w", err)
			}
		}
		return w.Close()
	}

	return fmt.Errorf("unsupported format: %s", format)
}

func writeRuns(path, format string, runs []audit.Run) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	switch format {
	case "csv":
		w := csv.NewWriter(file)
		defer w.Flush()

		if err := w.Write([]string{"id", "session_id", "entity_count", "replacements", "elapsed_ms", "mean_confidence", "pattern_only", "created_at"}); err != nil {
			return err
		}
		for _, r := range runs {
			row := []string{
				strconv.FormatInt(r.ID, 10),
				r.SessionID,
				strconv.Itoa(r.EntityCount),
				strconv.Itoa(r.Replacements),
				strconv.FormatFloat(r.ElapsedMS, 'f', 3, 64),
				strconv.FormatFloat(r.MeanConfidence, 'f', 4, 64),
				strconv.FormatBool(r.PatternOnly),
				r.CreatedAt.Format(time.RFC3339),
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
		return nil

	case "json":
		enc := json.NewEncoder(file)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)

	case "parquet":
		w := parquet.NewWriter(file)
		for i := range runs {
			if err := w.Write(&runs[i]); err != nil {
				return fmt.Errorf("failed to write parquet row: %w", err)
			}
		}
		return w.Close()
	}

	return fmt.Errorf("unsupported format: %s", format)
}
