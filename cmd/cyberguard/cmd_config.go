package main

// ---------------------------------------------------------------------------
// cmd_config.go — show, validate, or initialize configuration
// ---------------------------------------------------------------------------

import (
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cyberguard-project/cyberguard/internal/core"
)

func cmdConfig(args []string) {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Config file path")
	fs.Parse(args)

	action := "show"
	if fs.NArg() > 0 {
		action = fs.Arg(0)
	}
	path := envConfig(*configPath)

	switch action {
	case "show":
		cfg, err := core.LoadConfig(path)
		if err != nil {
			errorf("loading config: %v", err)
		}
		out, err := yaml.Marshal(cfg)
		if err != nil {
			errorf("encoding config: %v", err)
		}
		os.Stdout.Write(out)

	case "validate":
		cfg, err := core.LoadConfig(path)
		if err != nil {
			errorf("invalid config: %v", err)
		}
		if err := cfg.Validate(); err != nil {
			errorf("invalid config: %v", err)
		}
		fmt.Printf("%s %s\n", green("✓"), "configuration is valid")

	case "init":
		if _, err := os.Stat(path); err == nil {
			errorf("%s already exists, refusing to overwrite", path)
		}
		if err := core.SaveConfig(core.DefaultConfig(), path); err != nil {
			errorf("writing config: %v", err)
		}
		fmt.Printf("%s wrote %s\n", green("✓"), path)

	default:
		errorf("unknown config action %q (expected show, validate, or init)", action)
	}
}
