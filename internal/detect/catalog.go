// Package detect implements the real-time threat detection engine: an
// immediate per-entry pattern matcher, a periodic batch anomaly analyzer,
// a registry of active threats, and an automated response dispatcher.
package detect

import (
	"regexp"

	"github.com/cyberguard-project/cyberguard/internal/core"
)

// Built-in pattern IDs.
const (
	PatternBruteForce       = "BRUTE_FORCE"
	PatternSQLInjection     = "SQL_INJECTION"
	PatternXSS              = "XSS_ATTACK"
	PatternDDoS             = "DDoS_PATTERN"
	PatternMalwareComms     = "MALWARE_COMMUNICATION"
	PatternPrivEscalation   = "PRIVILEGE_ESCALATION"
	PatternDataExfiltration = "DATA_EXFILTRATION"
)

// ThreatPattern is a static detection template. A pattern matches when its
// regex hits the serialized entry and/or its specialized indicator scorer
// (brute force, DDoS) produces a bonus.
type ThreatPattern struct {
	ID          string
	Name        string
	Description string
	Severity    core.Severity
	BaseScore   float64
	Regex       *regexp.Regexp
}

// DefaultPatterns returns the built-in threat pattern catalog in definition
// order. Order matters: the matcher iterates patterns in this order and
// tests depend on it.
func DefaultPatterns() []ThreatPattern {
	return []ThreatPattern{
		{
			ID:          PatternBruteForce,
			Name:        "Brute Force Attack",
			Description: "Multiple failed authentication attempts",
			Severity:    core.SeverityHigh,
			// Below the default 8.5 emission threshold: a lone regex hit
			// is only a signal, the failure-window bonus decides emission.
			BaseScore: 8.4,
			Regex:     regexp.MustCompile(`(?i)failed.*login|authentication.*failed|invalid.*credentials`),
		},
		{
			ID:          PatternSQLInjection,
			Name:        "SQL Injection Attack",
			Description: "Malicious SQL query patterns detected",
			Severity:    core.SeverityCritical,
			BaseScore:   9.2,
			Regex:       regexp.MustCompile(`(?i)union.*select|or.*1=1|drop.*table|exec.*sp_|xp_cmdshell`),
		},
		{
			ID:          PatternXSS,
			Name:        "Cross-Site Scripting Attack",
			Description: "XSS attack patterns in web requests",
			Severity:    core.SeverityHigh,
			BaseScore:   7.8,
			Regex:       regexp.MustCompile(`(?i)<script|javascript:|on\w+\s*=|eval\(|document\.cookie`),
		},
		{
			ID:          PatternDDoS,
			Name:        "DDoS Attack Pattern",
			Description: "Distributed Denial of Service attack indicators",
			Severity:    core.SeverityHigh,
			BaseScore:   8.0,
			// No content regex: this pattern scores purely on volume
			// indicators tracked by the baseline store.
		},
		{
			ID:          PatternMalwareComms,
			Name:        "Malware Communication",
			Description: "Suspicious outbound connections to known malware C&C servers",
			Severity:    core.SeverityCritical,
			BaseScore:   9.5,
			Regex:       regexp.MustCompile(`(?i)malware-tracker\.com|botnet-command\.net|[a-f0-9]{32}\.`),
		},
		{
			ID:          PatternPrivEscalation,
			Name:        "Privilege Escalation Attempt",
			Description: "Attempts to gain elevated system privileges",
			Severity:    core.SeverityHigh,
			BaseScore:   8.7,
			Regex:       regexp.MustCompile(`(?i)sudo.*su|runas.*admin|net.*user.*add|whoami.*admin`),
		},
		{
			ID:          PatternDataExfiltration,
			Name:        "Data Exfiltration Pattern",
			Description: "Unusual data transfer patterns indicating data theft",
			Severity:    core.SeverityCritical,
			BaseScore:   9.0,
			Regex:       regexp.MustCompile(`(?i)\.sql"|\.csv"|\.xlsx?"|backup|\.zip"|\.rar"|\.7z"`),
		},
	}
}
