package core

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the entire CyberGuard configuration.
type Config struct {
	Bus        BusConfig        `yaml:"bus"`
	Detection  DetectionConfig  `yaml:"detection"`
	Compliance ComplianceConfig `yaml:"compliance"`
	Audit      AuditConfig      `yaml:"audit"`
	Logging    LoggingConfig    `yaml:"logging"`

	// Guards the hot-reloadable fields, which ReloadConfig rewrites while
	// engine goroutines read them.
	mu sync.RWMutex
}

// BusConfig holds NATS event bus settings.
type BusConfig struct {
	URL      string `yaml:"url"`
	Embedded bool   `yaml:"embedded"`
	DataDir  string `yaml:"data_dir"`
	Port     int    `yaml:"port"`
}

// DetectionConfig holds threat detection engine settings.
type DetectionConfig struct {
	// ConfidenceThreshold scales the score a pattern must reach before a
	// threat is emitted: score >= threshold * 10.
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	AutoResponse        bool    `yaml:"auto_response"`
	MaxBufferSize       int     `yaml:"max_buffer_size"`
	BatchIntervalSec    int     `yaml:"batch_interval_seconds"`
	ThreatRetentionDays int     `yaml:"threat_retention_days"`
}

// ComplianceConfig holds compliance monitor settings.
type ComplianceConfig struct {
	AutoScan        bool     `yaml:"auto_scan"`
	Standards       []string `yaml:"standards"`
	ScanIntervalHrs int      `yaml:"scan_interval_hours"`
}

// AuditConfig holds audit trail settings.
type AuditConfig struct {
	MaxEntries    int `yaml:"max_entries"`
	TrimTo        int `yaml:"trim_to"`
	RetentionDays int `yaml:"retention_days"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns a Config with sane defaults so zero-config works
// out of the box.
func DefaultConfig() *Config {
	return &Config{
		Bus: BusConfig{
			URL:      "nats://127.0.0.1:4222",
			Embedded: true,
			DataDir:  "./data/nats",
			Port:     4222,
		},
		Detection: DetectionConfig{
			ConfidenceThreshold: 0.85,
			AutoResponse:        false,
			MaxBufferSize:       10000,
			BatchIntervalSec:    5,
			ThreatRetentionDays: 7,
		},
		Compliance: ComplianceConfig{
			AutoScan:        false,
			Standards:       []string{"PCI_DSS", "GDPR", "SOC2"},
			ScanIntervalHrs: 6,
		},
		Audit: AuditConfig{
			MaxEntries:    10000,
			TrimTo:        8000,
			RetentionDays: 90,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig loads configuration from a YAML file, falling back to defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Environment overrides for the collaborator-facing knobs.
	if v := os.Getenv("CYBERGUARD_CONFIDENCE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Detection.ConfidenceThreshold = f
		}
	}
	if v := os.Getenv("CYBERGUARD_AUTO_RESPONSE"); v != "" {
		cfg.Detection.AutoResponse = v == "true"
	}
	if v := os.Getenv("CYBERGUARD_AUTO_COMPLIANCE_SCAN"); v != "" {
		cfg.Compliance.AutoScan = v == "true"
	}
	if v := os.Getenv("CYBERGUARD_COMPLIANCE_STANDARDS"); v != "" {
		cfg.Compliance.Standards = strings.Split(v, ",")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// SaveConfig writes the configuration to a YAML file.
func SaveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Validate checks configuration bounds.
func (c *Config) Validate() error {
	if c.Detection.ConfidenceThreshold < 0 || c.Detection.ConfidenceThreshold > 1 {
		return fmt.Errorf("detection.confidence_threshold must be in [0, 1], got %v", c.Detection.ConfidenceThreshold)
	}
	if c.Detection.MaxBufferSize <= 0 {
		return fmt.Errorf("detection.max_buffer_size must be positive, got %d", c.Detection.MaxBufferSize)
	}
	if c.Audit.TrimTo > c.Audit.MaxEntries {
		return fmt.Errorf("audit.trim_to (%d) cannot exceed audit.max_entries (%d)", c.Audit.TrimTo, c.Audit.MaxEntries)
	}
	return nil
}

// LogLevel returns the normalized logging level.
func (c *Config) LogLevel() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return strings.ToLower(c.Logging.Level)
}

// SetLogLevel replaces the logging level.
func (c *Config) SetLogLevel(level string) {
	c.mu.Lock()
	c.Logging.Level = level
	c.mu.Unlock()
}

// DetectionThreshold returns the confidence threshold. Hot-reloadable
// settings go through these accessors wherever a running goroutine reads
// them.
func (c *Config) DetectionThreshold() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Detection.ConfidenceThreshold
}

// SetDetectionThreshold replaces the confidence threshold.
func (c *Config) SetDetectionThreshold(v float64) {
	c.mu.Lock()
	c.Detection.ConfidenceThreshold = v
	c.mu.Unlock()
}

// AutoResponseEnabled reports whether automated response is on.
func (c *Config) AutoResponseEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Detection.AutoResponse
}

// SetAutoResponse toggles automated response.
func (c *Config) SetAutoResponse(v bool) {
	c.mu.Lock()
	c.Detection.AutoResponse = v
	c.mu.Unlock()
}

// AutoScanEnabled reports whether scheduled compliance scans are on.
func (c *Config) AutoScanEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Compliance.AutoScan
}

// SetAutoScan toggles scheduled compliance scans.
func (c *Config) SetAutoScan(v bool) {
	c.mu.Lock()
	c.Compliance.AutoScan = v
	c.mu.Unlock()
}

// ScanStandards returns a copy of the scheduled-scan standard set.
func (c *Config) ScanStandards() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.Compliance.Standards))
	copy(out, c.Compliance.Standards)
	return out
}

// SetScanStandards replaces the scheduled-scan standard set.
func (c *Config) SetScanStandards(standards []string) {
	c.mu.Lock()
	c.Compliance.Standards = standards
	c.mu.Unlock()
}

// BatchInterval returns the batch analysis period.
func (c *DetectionConfig) BatchInterval() time.Duration {
	if c.BatchIntervalSec <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.BatchIntervalSec) * time.Second
}

// ThreatRetention returns how long detected threats are kept.
func (c *DetectionConfig) ThreatRetention() time.Duration {
	if c.ThreatRetentionDays <= 0 {
		return 7 * 24 * time.Hour
	}
	return time.Duration(c.ThreatRetentionDays) * 24 * time.Hour
}

// ScanInterval returns the scheduled compliance scan period.
func (c *ComplianceConfig) ScanInterval() time.Duration {
	if c.ScanIntervalHrs <= 0 {
		return 6 * time.Hour
	}
	return time.Duration(c.ScanIntervalHrs) * time.Hour
}

// Retention returns how long audit entries are kept.
func (c *AuditConfig) Retention() time.Duration {
	if c.RetentionDays <= 0 {
		return 90 * 24 * time.Hour
	}
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}
