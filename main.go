package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/pthm-cable/inkstride/config"
	"github.com/pthm-cable/inkstride/game"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	logStats := flag.Bool("log-stats", false, "Output stats via slog")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	statsWindow := flag.Float64("stats-window", 0, "Stats window size in seconds (0 = use config)")
	snapshotDir := flag.String("snapshot-dir", "", "Directory for the final snapshot file")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	maxTicks := flag.Int("max-ticks", 3600, "Stop after N ticks (0 = until interrupted)")
	scriptPath := flag.String("script", "", "YAML input script replacing the first agent's script")
	realtime := flag.Bool("realtime", false, "Pace ticks against the wall clock")
	asyncReadback := flag.Bool("async-readback", false, "Pump the readback from its own goroutine (implies -realtime)")

	flag.Parse()

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		level = slog.LevelInfo
	}
	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	// Use config stats window if not overridden by CLI
	if *statsWindow > 0 {
		cfg.Telemetry.StatsWindow = *statsWindow
	}

	g, err := game.New(cfg, game.Options{
		LogStats:    *logStats,
		OutputDir:   *outputDir,
		SnapshotDir: *snapshotDir,
	})
	if err != nil {
		slog.Error("failed to create game", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := g.Close(); err != nil {
			slog.Error("close failed", "error", err)
		}
	}()

	if *scriptPath != "" {
		script, err := game.LoadScript(*scriptPath)
		if err != nil {
			slog.Error("failed to load script", "error", err)
			return
		}
		if err := g.SetScript(1, script); err != nil {
			slog.Error("failed to attach script", "error", err)
			return
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	slog.Info("starting simulation",
		"agents", g.AgentCount(),
		"dt", cfg.Physics.DT,
		"max_ticks", *maxTicks,
		"realtime", *realtime || *asyncReadback,
	)

	done := func() bool {
		if *maxTicks > 0 && int(g.Tick()) >= *maxTicks {
			slog.Info("max ticks reached", "tick", g.Tick())
			return true
		}
		return ctx.Err() != nil
	}

	if !*realtime && !*asyncReadback {
		// One frame per tick, as fast as the CPU allows.
		for !done() {
			g.Frame()
			g.Step()
		}
		return
	}

	frame := time.Duration(float64(time.Second) / cfg.Derived.TickRate)
	if *asyncReadback {
		g.StartReadback(ctx, frame)
	}
	ticker := time.NewTicker(frame)
	defer ticker.Stop()

	last := time.Now()
	for !done() {
		select {
		case <-ctx.Done():
		case now := <-ticker.C:
			g.Advance(now.Sub(last).Seconds())
			last = now
		}
	}
}
