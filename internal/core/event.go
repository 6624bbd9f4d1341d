package core

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Severity represents the severity level of a threat or compliance finding.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Severity) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	parsed, _ := ParseSeverity(str)
	*s = parsed
	return nil
}

// ParseSeverity converts a severity name to a Severity. Unknown names map
// to SeverityInfo with ok=false.
func ParseSeverity(s string) (Severity, bool) {
	switch strings.ToUpper(s) {
	case "INFO":
		return SeverityInfo, true
	case "LOW":
		return SeverityLow, true
	case "MEDIUM":
		return SeverityMedium, true
	case "HIGH":
		return SeverityHigh, true
	case "CRITICAL":
		return SeverityCritical, true
	default:
		return SeverityInfo, false
	}
}

// LogEntry is a single ingested log event. Entries are immutable once
// ingested; the detection engine buffers a timestamped copy.
type LogEntry struct {
	Timestamp  time.Time         `json:"timestamp"`
	SourceIP   string            `json:"source_ip,omitempty"`
	TargetHost string            `json:"target_host,omitempty"`
	Method     string            `json:"method,omitempty"`
	URL        string            `json:"url,omitempty"`
	User       string            `json:"user,omitempty"`
	Message    string            `json:"message,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
}

// Content returns the lowercased serialized form of the entry, which is
// what threat pattern regexes match against. HTML escaping is disabled so
// markup like <script> survives serialization.
func (e LogEntry) Content() string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(e); err != nil {
		return strings.ToLower(e.Message)
	}
	return strings.ToLower(strings.TrimSuffix(buf.String(), "\n"))
}

// Marshal serializes the entry to JSON.
func (e LogEntry) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalLogEntry deserializes a LogEntry from JSON.
func UnmarshalLogEntry(data []byte) (*LogEntry, error) {
	var entry LogEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// ThreatStatusActive is the status assigned to newly detected threats.
const ThreatStatusActive = "active"

// Threat is a detected instance of suspicious activity, distinct from the
// ThreatPattern template that produced it.
type Threat struct {
	ID          string         `json:"id"`
	PatternID   string         `json:"pattern_id"`
	Type        string         `json:"type"`
	Description string         `json:"description"`
	Severity    Severity       `json:"severity"`
	Score       float64        `json:"score"`
	Confidence  float64        `json:"confidence"`
	SourceIP    string         `json:"source_ip"`
	TargetHost  string         `json:"target_host,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
	DetectedAt  time.Time      `json:"detected_at"`
	Status      string         `json:"status"`
}

// NewThreat creates a Threat with a generated ID and the score clipped to
// [0, 10]. Confidence is derived from the clipped score.
func NewThreat(patternID, threatType string, severity Severity, score float64) *Threat {
	score = math.Min(math.Max(score, 0), 10.0)
	return &Threat{
		ID:         uuid.New().String(),
		PatternID:  patternID,
		Type:       threatType,
		Severity:   severity,
		Score:      score,
		Confidence: math.Min(score/10.0, 1.0),
		Details:    make(map[string]any),
		DetectedAt: time.Now().UTC(),
		Status:     ThreatStatusActive,
	}
}

// Marshal serializes the threat to JSON.
func (t *Threat) Marshal() ([]byte, error) {
	return json.Marshal(t)
}

// UnmarshalThreat deserializes a Threat from JSON.
func UnmarshalThreat(data []byte) (*Threat, error) {
	var threat Threat
	if err := json.Unmarshal(data, &threat); err != nil {
		return nil, err
	}
	return &threat, nil
}

// AuditEntry is a single record in the append-only audit trail.
type AuditEntry struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Actor     string         `json:"actor"`
	Action    string         `json:"action"`
	Details   map[string]any `json:"details,omitempty"`
}

// NewAuditEntry creates an AuditEntry with a generated ID and current
// timestamp. An empty actor defaults to "system".
func NewAuditEntry(actor, action string) *AuditEntry {
	if actor == "" {
		actor = "system"
	}
	return &AuditEntry{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Actor:     actor,
		Action:    action,
		Details:   make(map[string]any),
	}
}

// Marshal serializes the audit entry to JSON.
func (a *AuditEntry) Marshal() ([]byte, error) {
	return json.Marshal(a)
}
