package main

// ---------------------------------------------------------------------------
// cmd_assess.go — one-shot compliance assessment, no bus required
// ---------------------------------------------------------------------------

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/cyberguard-project/cyberguard/internal/audit"
	"github.com/cyberguard-project/cyberguard/internal/compliance"
	"github.com/cyberguard-project/cyberguard/internal/core"
)

func cmdAssess(args []string) {
	fs := flag.NewFlagSet("assess", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Config file path")
	standards := fs.String("standards", "", "Comma-separated standard IDs (default: all)")
	systems := fs.String("systems", "", "Comma-separated target systems (default: all)")
	seed := fs.Int64("seed", 0, "Seed for the simulated checker (0 = random)")
	asJSON := fs.Bool("json", false, "Emit the full assessment result as JSON")
	fs.Parse(args)

	cfg, err := core.LoadConfig(envConfig(*configPath))
	if err != nil {
		errorf("loading config: %v", err)
	}

	trail := audit.NewTrail(cfg.Audit, core.NewLogger(cfg))

	var checker compliance.Checker
	if *seed != 0 {
		checker = compliance.NewSimulatedCheckerWithSeed(*seed)
	}
	monitor := compliance.NewMonitor(trail, checker)

	result, err := monitor.PerformAssessment(context.Background(), splitList(*standards), splitList(*systems))
	if err != nil {
		errorf("assessment failed: %v", err)
	}

	if *asJSON {
		out, jerr := json.MarshalIndent(result, "", "  ")
		if jerr != nil {
			errorf("encoding result: %v", jerr)
		}
		fmt.Println(string(out))
		return
	}

	fmt.Printf("%s  %s\n", bold("Assessment"), result.ID)
	fmt.Printf("  Score:    %s\n", scoreColor(result.OverallScore))
	fmt.Printf("  Level:    %s\n", string(result.ComplianceLevel))
	fmt.Printf("  Findings: %d\n\n", len(result.Findings))

	for _, sr := range result.StandardResults {
		fmt.Printf("  %-10s %6.1f  %s\n", sr.StandardID, sr.Score, string(sr.Status))
	}

	if len(result.Recommendations) > 0 {
		fmt.Printf("\n%s\n", bold("Recommendations"))
		for _, rec := range result.Recommendations {
			fmt.Printf("  [%s] %s\n", rec.Priority.String(), rec.Title)
			for _, action := range rec.Actions {
				fmt.Printf("      - %s\n", action)
			}
		}
	}

	if result.ComplianceLevel == compliance.LevelNonCompliant {
		os.Exit(2)
	}
}

func scoreColor(score float64) string {
	s := fmt.Sprintf("%.1f", score)
	switch {
	case score >= 80:
		return green(s)
	case score >= 60:
		return yellow(s)
	default:
		return red(s)
	}
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
