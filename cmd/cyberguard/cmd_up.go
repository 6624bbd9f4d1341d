package main

// ---------------------------------------------------------------------------
// cmd_up.go — start the CyberGuard engine
// ---------------------------------------------------------------------------

import (
	"flag"
	"fmt"
	"os"

	"github.com/cyberguard-project/cyberguard/internal/audit"
	"github.com/cyberguard-project/cyberguard/internal/compliance"
	"github.com/cyberguard-project/cyberguard/internal/core"
	"github.com/cyberguard-project/cyberguard/internal/detect"
)

func cmdUp(args []string) {
	fs := flag.NewFlagSet("up", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Config file path")
	logLevel := fs.String("log-level", "", "Log level override: debug, info, warn, error")
	quiet := fs.Bool("quiet", false, "Suppress banner")
	fs.BoolVar(quiet, "q", false, "Suppress banner")
	noColor := fs.Bool("no-color", false, "Disable color output")
	noWatch := fs.Bool("no-watch", false, "Disable config file hot-reload")
	fs.Parse(args)

	*configPath = envConfig(*configPath)

	if *noColor {
		os.Setenv("NO_COLOR", "1")
	}
	if !*quiet {
		fmt.Fprint(os.Stderr, bannerText())
	}

	cfg, err := core.LoadConfig(*configPath)
	if err != nil {
		errorf("loading config: %v", err)
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	engine, err := core.NewEngine(cfg)
	if err != nil {
		errorf("creating engine: %v", err)
	}

	trail := audit.NewTrail(cfg.Audit, engine.Logger)
	trail.AddObserver(func(entry *core.AuditEntry) {
		if engine.Bus != nil && engine.Bus.IsConnected() {
			if perr := engine.Bus.PublishAuditEntry(entry); perr != nil {
				engine.Logger.Error().Err(perr).Msg("publishing audit entry")
			}
		}
	})

	detector := detect.New(trail)
	monitor := compliance.NewMonitor(trail, nil)

	for _, mod := range []core.Module{detector, monitor} {
		if rerr := engine.Registry.Register(mod); rerr != nil {
			engine.Logger.Warn().Err(rerr).Str("module", mod.Name()).Msg("failed to register module")
		}
	}

	engine.SetIngestHandler(func(entry *core.LogEntry) {
		detector.AnalyzeLogEntry(*entry)
	})

	trail.Start(engine.Context())

	if !*noWatch {
		watcher, werr := core.NewConfigWatcher(*configPath, engine.Logger, func() ([]string, error) {
			return core.ReloadConfig(engine, *configPath)
		})
		if werr != nil {
			engine.Logger.Warn().Err(werr).Msg("config watcher unavailable")
		} else {
			watcher.Start(engine.Context())
		}
	}

	if err := engine.Run(); err != nil {
		errorf("engine: %v", err)
	}
}
