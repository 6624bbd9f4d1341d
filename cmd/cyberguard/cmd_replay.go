package main

// ---------------------------------------------------------------------------
// cmd_replay.go — feed captured log entries through the detection engine
// offline and print any threats found
// ---------------------------------------------------------------------------

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/cyberguard-project/cyberguard/internal/audit"
	"github.com/cyberguard-project/cyberguard/internal/core"
	"github.com/cyberguard-project/cyberguard/internal/detect"
)

func cmdReplay(args []string) {
	fs := flag.NewFlagSet("replay", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Config file path")
	file := fs.String("file", "-", "JSON-lines file of log entries (- for stdin)")
	batch := fs.Bool("batch", true, "Run batch anomaly analysis after replay")
	asJSON := fs.Bool("json", false, "Emit threats as JSON")
	fs.Parse(args)

	cfg, err := core.LoadConfig(envConfig(*configPath))
	if err != nil {
		errorf("loading config: %v", err)
	}

	var in io.Reader = os.Stdin
	if *file != "-" {
		f, oerr := os.Open(*file)
		if oerr != nil {
			errorf("opening %s: %v", *file, oerr)
		}
		defer f.Close()
		in = f
	}

	trail := audit.NewTrail(cfg.Audit, core.NewLogger(cfg))
	engine := detect.New(trail)
	engine.SetConfig(cfg)

	var threats []*core.Threat
	engine.AddThreatObserver(func(t *core.Threat) {
		threats = append(threats, t)
	})

	entries := 0
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		entry, uerr := core.UnmarshalLogEntry(line)
		if uerr != nil {
			fmt.Fprintf(os.Stderr, "%s skipping malformed entry: %v\n", yellow("warn:"), uerr)
			continue
		}
		engine.AnalyzeLogEntry(*entry)
		entries++
	}
	if serr := scanner.Err(); serr != nil {
		errorf("reading input: %v", serr)
	}

	if *batch {
		engine.RunBatchAnalysis()
	}

	if *asJSON {
		out, jerr := json.MarshalIndent(threats, "", "  ")
		if jerr != nil {
			errorf("encoding threats: %v", jerr)
		}
		fmt.Println(string(out))
		return
	}

	fmt.Printf("%s %d entries analyzed, %d threats detected\n", bold("replay:"), entries, len(threats))
	for _, t := range threats {
		fmt.Printf("  [%s] %-18s %5.1f  %s  %s\n",
			t.Severity.String(), t.Type, t.Score, sourceLabel(t.SourceIP), t.Description)
	}

	if len(threats) > 0 {
		os.Exit(2)
	}
}

func sourceLabel(ip string) string {
	if ip == "" {
		return "-"
	}
	return ip
}
