// Command phasehull evaluates the thermodynamic stability of a candidate
// material against convex hulls of competing phases under configured
// open-system conditions.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/talgya/phasehull/internal/api"
	"github.com/talgya/phasehull/internal/chem"
	"github.com/talgya/phasehull/internal/config"
	"github.com/talgya/phasehull/internal/engine"
	"github.com/talgya/phasehull/internal/entry"
	"github.com/talgya/phasehull/internal/persistence"
	"github.com/talgya/phasehull/internal/report"
	"github.com/talgya/phasehull/internal/source"
)

func main() {
	configPath := flag.String("config", "config.yaml", "run configuration file")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if err := run(*configPath); err != nil {
		slog.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	slog.Info("phasehull — open-system phase stability",
		"target", cfg.Target.Formula,
		"energy", fmt.Sprintf("%.6f", cfg.Target.Energy),
		"conditions", len(cfg.Conditions),
	)

	// ── Database ──────────────────────────────────────────────────────
	if err := os.MkdirAll(filepath.Dir(cfg.Database), 0755); err != nil {
		return fmt.Errorf("create database dir: %w", err)
	}
	db, err := persistence.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.Database)

	corrector := entry.NewCorrector()

	// Invalidate the entry cache if the correction scheme moved: mixing
	// schemes across fetches would make energies incomparable.
	if scheme, err := db.GetMeta("correction_scheme"); err == nil && scheme != "" && scheme != corrector.Version() {
		slog.Warn("cached entries use a different correction scheme — refetch required",
			"cached", scheme, "current", corrector.Version())
	}
	if err := db.SaveMeta("correction_scheme", corrector.Version()); err != nil {
		slog.Warn("could not record correction scheme", "error", err)
	}

	// ── Data source ───────────────────────────────────────────────────
	var inner source.DataSource
	apiKey := os.Getenv(cfg.DataSource.APIKeyEnv)
	if apiKey == "" {
		slog.Warn("no API key set — cache-only mode", "env", cfg.DataSource.APIKeyEnv)
		inner = source.Unavailable{Reason: "no API key configured"}
	} else {
		client, err := source.NewClient(
			cfg.DataSource.BaseURL,
			apiKey,
			time.Duration(cfg.DataSource.TimeoutSeconds)*time.Second,
		)
		if err != nil {
			return err
		}
		inner = client
	}
	src := &source.CachingSource{Inner: inner, DB: db}

	// ── Target ────────────────────────────────────────────────────────
	comp, err := chem.ParseFormula(cfg.Target.Formula)
	if err != nil {
		return fmt.Errorf("target: %w", err)
	}
	target := entry.Entry{
		Kind:        entry.Computed,
		Composition: comp,
		EnergyRaw:   cfg.Target.Energy,
		Corrected:   true, // supplied on the corrected footing
		RunType:     cfg.Target.RunType,
		SourceID:    "target",
	}

	// ── Evaluate ──────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ev := &engine.Evaluator{
		Source:     src,
		Corrector:  corrector,
		Target:     target,
		Conditions: cfg.Conditions,
		Parallel:   cfg.Parallel,
	}
	results, err := ev.Run(ctx)
	if err != nil {
		return err
	}

	// ── Report ────────────────────────────────────────────────────────
	rep := report.New(target, corrector.Version(), results)
	if err := rep.WriteFile(cfg.ReportPath); err != nil {
		return err
	}
	if err := db.SaveResults(rep.Rows()); err != nil {
		return fmt.Errorf("persist results: %w", err)
	}
	slog.Info("report written", "path", cfg.ReportPath, "run_id", rep.RunID)

	ok := 0
	for _, c := range rep.Conditions {
		if c.Error == "" {
			ok++
			fmt.Printf("\nCondition %s (%s):\n", c.Label, c.Description)
			fmt.Printf("  Energy per atom:   %.6f eV\n", *c.TargetEnergyPerAtom)
			fmt.Printf("  Energy above hull: %.6f eV/atom\n", *c.EnergyAboveHull)
			for phase, w := range c.Decomposition {
				fmt.Printf("  Decomposes to %s (%.1f%%)\n", phase, w*100)
			}
			fmt.Printf("  Stable phases: %d\n", len(c.StablePhases))
		} else {
			fmt.Printf("\nCondition %s (%s): FAILED — %s\n", c.Label, c.Description, c.Error)
		}
	}
	fmt.Printf("\n%d/%d conditions evaluated for %s.\n", ok, len(rep.Conditions), rep.Target)

	// ── Optional results API ──────────────────────────────────────────
	if cfg.APIPort > 0 {
		srv := &api.Server{Port: cfg.APIPort}
		srv.Publish(rep)
		srv.Start()
		fmt.Printf("Results API: http://localhost:%d/api/v1/results (Ctrl+C to stop)\n", cfg.APIPort)
		<-ctx.Done()
	}

	return nil
}
