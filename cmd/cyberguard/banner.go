package main

// ---------------------------------------------------------------------------
// banner.go — banner and version/usage printing
// ---------------------------------------------------------------------------

import (
	"fmt"
	"io"
	goruntime "runtime"
	"runtime/debug"
)

func bannerText() string {
	return `
   ╔════════════════════════════════════════════════╗
   ║   CYBERGUARD — THREAT DETECTION & COMPLIANCE   ║
   ╚════════════════════════════════════════════════╝
`
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "cyberguard v%s", version)
	if commit != "dev" {
		fmt.Fprintf(w, " (%s)", commit[:min(7, len(commit))])
	}
	if buildDate != "unknown" {
		fmt.Fprintf(w, " built %s", buildDate)
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		fmt.Fprintf(w, " %s", bi.GoVersion)
	}
	fmt.Fprintf(w, " %s/%s", goruntime.GOOS, goruntime.GOARCH)
	fmt.Fprintln(w)
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, bannerText())
	fmt.Fprintf(w, "  %s\n\n", dim("v"+version))
	fmt.Fprintf(w, "%s\n\n", bold("USAGE"))
	fmt.Fprintf(w, "  cyberguard <command> [flags]\n\n")
	fmt.Fprintf(w, "%s\n\n", bold("COMMANDS"))
	fmt.Fprintf(w, "  %-10s  %s\n", bold("up"), "Start the detection and compliance engine")
	fmt.Fprintf(w, "  %-10s  %s\n", bold("assess"), "Run a one-shot compliance assessment")
	fmt.Fprintf(w, "  %-10s  %s\n", bold("replay"), "Feed JSON-lines log entries through the detection engine")
	fmt.Fprintf(w, "  %-10s  %s\n", bold("config"), "Show, validate, or initialize configuration")
	fmt.Fprintf(w, "  %-10s  %s\n", bold("version"), "Print version and build info")
	fmt.Fprintf(w, "  %-10s  %s\n", bold("help"), "Show this help")
	fmt.Fprintf(w, "\n%s\n\n", bold("ENVIRONMENT VARIABLES"))
	fmt.Fprintf(w, "  %-34s  %s\n", "CYBERGUARD_CONFIG", "Default config file path")
	fmt.Fprintf(w, "  %-34s  %s\n", "CYBERGUARD_CONFIDENCE_THRESHOLD", "Detection confidence threshold (0..1)")
	fmt.Fprintf(w, "  %-34s  %s\n", "CYBERGUARD_AUTO_RESPONSE", "Enable automated threat response (true/false)")
	fmt.Fprintf(w, "  %-34s  %s\n", "CYBERGUARD_AUTO_COMPLIANCE_SCAN", "Enable scheduled compliance scans (true/false)")
	fmt.Fprintf(w, "  %-34s  %s\n", "CYBERGUARD_COMPLIANCE_STANDARDS", "Comma-separated default standards")
	fmt.Fprintf(w, "\n%s\n\n", bold("EXAMPLES"))
	fmt.Fprintf(w, "  %s\n", dim("# Start with defaults"))
	fmt.Fprintf(w, "  cyberguard up\n\n")
	fmt.Fprintf(w, "  %s\n", dim("# Assess PCI DSS and GDPR only"))
	fmt.Fprintf(w, "  cyberguard assess --standards PCI_DSS,GDPR\n\n")
	fmt.Fprintf(w, "  %s\n", dim("# Replay captured traffic through the detector"))
	fmt.Fprintf(w, "  cyberguard replay --file traffic.jsonl\n")
}
