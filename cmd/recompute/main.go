// Command recompute rebuilds stored progress aggregates from exercise records.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/wollisellis/vireiaestatistica-sub002/pkg/catalog"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/config"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/logging"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/repository"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/services/engine"
	"github.com/wollisellis/vireiaestatistica-sub002/pkg/services/scoring"
)

var (
	student     = flag.String("student", "", "Recompute a single student")
	cohort      = flag.String("cohort", "", "Recompute every student of a cohort (default: all students)")
	concurrency = flag.Int("concurrency", engine.DefaultRecomputeConcurrency, "Students recomputed in parallel")
	timeout     = flag.Duration("timeout", 10*time.Minute, "Maximum execution time")
	verbose     = flag.Bool("verbose", false, "Enable debug logging")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if *student != "" && *cohort != "" {
		return fmt.Errorf("-student and -cohort are mutually exclusive")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	level := logging.LogLevel(cfg.Logging.Level)
	if *verbose {
		level = logging.DebugLevel
	}
	logger, err := logging.NewLogger(level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	db, err := repository.Open(cfg.Database)
	if err != nil {
		return err
	}
	registry := repository.NewRegistry(db)
	defer func() { _ = registry.Close() }()
	if err := registry.Initialize(); err != nil {
		return err
	}

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return err
	}
	calc, err := scoring.NewCalculator(cfg.Scoring)
	if err != nil {
		return err
	}
	eng := engine.New(cat, calc, registry.Gateway, engine.WithLogger(logger))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	var result interface{}
	if *student != "" {
		logger.Info("recomputing student", zap.String("student_id", *student))
		err = repository.WithConflictRetry(ctx, cfg.Submission.MaxConflictRetries, func() error {
			result, err = eng.Recompute(ctx, *student)
			return err
		})
	} else {
		logger.Info("recomputing students", zap.String("cohort_id", *cohort), zap.Int("concurrency", *concurrency))
		result, err = eng.RecomputeCohort(ctx, *cohort, *concurrency)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
