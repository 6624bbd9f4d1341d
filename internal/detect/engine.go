package detect

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cyberguard-project/cyberguard/internal/audit"
	"github.com/cyberguard-project/cyberguard/internal/core"
)

// ModuleName is the engine's name in the module registry.
const ModuleName = "threat_detection"

const threatCleanupInterval = 15 * time.Minute
const baselinePruneInterval = time.Hour

type bufferedEntry struct {
	entry    core.LogEntry
	analyzed bool
}

// Engine is the real-time threat detection engine. It buffers ingested log
// entries, matches them immediately against the pattern catalog, runs a
// periodic batch anomaly pass, and maintains the registry of active
// threats.
type Engine struct {
	logger    zerolog.Logger
	cfg       *core.Config
	bus       *core.EventBus
	patterns  []ThreatPattern
	baselines *BaselineStore
	responder *Responder
	trail     *audit.Trail

	mu          sync.Mutex
	buffer      []*bufferedEntry
	threats     map[string]*core.Threat
	threatOrder []string // detection order, used for stable statistics
	observers   []func(*core.Threat)

	ctx    context.Context
	cancel context.CancelFunc
	now    func() time.Time

	metrics EngineMetrics
}

// EngineMetrics tracks detection counters.
type EngineMetrics struct {
	mu              sync.Mutex
	EntriesIngested int64
	ThreatsDetected int64
	BatchesRun      int64
	AnomaliesFound  int64
}

// New creates a detection engine with the built-in pattern catalog. The
// audit trail may be nil; it is only used to record automated responses.
func New(trail *audit.Trail) *Engine {
	return &Engine{
		logger:    zerolog.Nop(),
		cfg:       core.DefaultConfig(),
		patterns:  DefaultPatterns(),
		baselines: NewBaselineStore(),
		trail:     trail,
		threats:   make(map[string]*core.Threat),
		now:       time.Now,
	}
}

func (e *Engine) Name() string { return ModuleName }
func (e *Engine) Description() string {
	return "Real-time threat pattern matching and statistical anomaly detection over ingested log entries"
}

// SetConfig replaces the engine configuration. Used for offline analysis
// where Start is never called; Start overwrites it with the runtime config.
func (e *Engine) SetConfig(cfg *core.Config) {
	e.mu.Lock()
	e.cfg = cfg
	e.mu.Unlock()
}

// SetEnforcer replaces the enforcement backend. Must be called before
// Start; defaults to the audit-logging enforcer.
func (e *Engine) SetEnforcer(enf Enforcer) {
	e.responder = NewResponder(enf, e.logger, e.trail)
}

// AddThreatObserver registers an in-process observer for detected threats.
// Delivery is fire-and-forget: observer panics are recovered and logged.
func (e *Engine) AddThreatObserver(fn func(*core.Threat)) {
	e.mu.Lock()
	e.observers = append(e.observers, fn)
	e.mu.Unlock()
}

// Start implements core.Module. It launches the batch analysis, threat
// retention, and baseline decay loops.
func (e *Engine) Start(ctx context.Context, bus *core.EventBus, cfg *core.Config) error {
	e.ctx, e.cancel = context.WithCancel(ctx)
	e.bus = bus
	e.cfg = cfg
	e.logger = core.NewLogger(cfg).With().Str("module", ModuleName).Logger()
	if e.responder == nil {
		e.responder = NewResponder(&LogEnforcer{Logger: e.logger, Trail: e.trail}, e.logger, e.trail)
	}

	go e.loop(e.ctx, cfg.Detection.BatchInterval(), func() {
		e.RunBatchAnalysis()
	})
	go e.loop(e.ctx, threatCleanupInterval, func() {
		e.CleanupThreats()
	})
	go e.loop(e.ctx, baselinePruneInterval, func() {
		e.PruneBaselines()
	})

	e.logger.Info().
		Int("patterns", len(e.patterns)).
		Float64("threshold", cfg.DetectionThreshold()).
		Bool("auto_response", cfg.AutoResponseEnabled()).
		Msg("threat detection engine started")
	return nil
}

// Stop implements core.Module.
func (e *Engine) Stop() error {
	if e.cancel != nil {
		e.cancel()
	}
	return nil
}

// loop runs fn on a fixed period until the context is cancelled. Panics in
// fn are recovered so a bad pass never terminates the process.
func (e *Engine) loop(ctx context.Context, period time.Duration, fn func()) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.runIsolated("scheduled job", fn)
		}
	}
}

func (e *Engine) runIsolated(name string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			e.logger.Error().Interface("panic", rec).Str("job", name).Msg("recovered panic in detection job")
		}
	}()
	fn()
}

// AnalyzeLogEntry is the ingestion entry point. It appends a timestamped
// copy of the entry to the bounded buffer, runs immediate pattern matching
// synchronously, routes any new threats through threat handling, and
// returns them. Safe for concurrent producers.
func (e *Engine) AnalyzeLogEntry(entry core.LogEntry) []*core.Threat {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = e.now().UTC()
	}

	e.mu.Lock()
	e.buffer = append(e.buffer, &bufferedEntry{entry: entry})
	maxSize := e.cfg.Detection.MaxBufferSize
	if len(e.buffer) > maxSize {
		keep := maxSize * 8 / 10
		trimmed := make([]*bufferedEntry, keep)
		copy(trimmed, e.buffer[len(e.buffer)-keep:])
		e.buffer = trimmed
	}
	e.mu.Unlock()

	e.metrics.mu.Lock()
	e.metrics.EntriesIngested++
	e.metrics.mu.Unlock()

	threats := e.detectImmediateThreats(entry)
	for _, t := range threats {
		e.handleThreat(t)
	}
	return threats
}

// detectImmediateThreats scores the entry against every pattern in catalog
// definition order. Each pattern is evaluated in isolation: a panic in one
// pattern skips that pattern only.
func (e *Engine) detectImmediateThreats(entry core.LogEntry) []*core.Threat {
	content := entry.Content()
	isAuthFailure := strings.Contains(content, "failed") ||
		strings.Contains(content, "invalid") ||
		strings.Contains(content, "denied")
	threshold := e.cfg.DetectionThreshold() * 10
	now := e.now().UTC()

	var threats []*core.Threat
	for _, p := range e.patterns {
		e.runIsolated("pattern "+p.ID, func() {
			score := 0.0
			matched := false

			if p.Regex != nil && p.Regex.MatchString(content) {
				matched = true
				score += p.BaseScore
			}

			switch p.ID {
			case PatternBruteForce:
				if bonus := e.baselines.BruteForceScore(entry.SourceIP, isAuthFailure, now); bonus > 0 {
					matched = true
					score += bonus
				}
			case PatternDDoS:
				if bonus := e.baselines.DDoSScore(entry.SourceIP, now); bonus > 0 {
					matched = true
					score += bonus
				}
			}

			if !matched || score < threshold {
				return
			}

			threat := core.NewThreat(p.ID, p.Name, p.Severity, score)
			threat.Description = p.Description
			threat.SourceIP = sourceOrUnknown(entry.SourceIP)
			threat.TargetHost = entry.TargetHost
			threat.DetectedAt = now
			threats = append(threats, threat)
		})
	}
	return threats
}

// handleThreat stores the threat in the registry, emits the threatDetected
// event fire-and-forget, logs at warning level, and triggers the automated
// responder for critical threats when auto-response is enabled.
func (e *Engine) handleThreat(threat *core.Threat) {
	e.mu.Lock()
	e.threats[threat.ID] = threat
	e.threatOrder = append(e.threatOrder, threat.ID)
	observers := make([]func(*core.Threat), len(e.observers))
	copy(observers, e.observers)
	e.mu.Unlock()

	e.metrics.mu.Lock()
	e.metrics.ThreatsDetected++
	e.metrics.mu.Unlock()

	for _, fn := range observers {
		e.notifyObserver(fn, threat)
	}

	if e.bus != nil {
		if err := e.bus.PublishThreat(threat); err != nil {
			e.logger.Error().Err(err).Str("threat_id", threat.ID).Msg("failed to publish threat")
		}
	}

	e.logger.Warn().
		Str("threat_id", threat.ID).
		Str("type", threat.Type).
		Str("severity", threat.Severity.String()).
		Float64("score", threat.Score).
		Float64("confidence", threat.Confidence).
		Str("source_ip", threat.SourceIP).
		Msg("threat detected")

	if threat.Severity == core.SeverityCritical && e.cfg.AutoResponseEnabled() && e.responder != nil {
		ctx := e.ctx
		if ctx == nil {
			ctx = context.Background()
		}
		e.responder.Trigger(ctx, threat)
	}
}

func (e *Engine) notifyObserver(fn func(*core.Threat), threat *core.Threat) {
	defer func() {
		if rec := recover(); rec != nil {
			e.logger.Error().
				Str("threat_id", threat.ID).
				Interface("panic", rec).
				Msg("threat observer panicked")
		}
	}()
	fn(threat)
}

// CleanupThreats deletes threats older than the retention window and
// returns how many were removed. Runs every 15 minutes.
func (e *Engine) CleanupThreats() int {
	cutoff := e.now().UTC().Add(-e.cfg.Detection.ThreatRetention())

	e.mu.Lock()
	defer e.mu.Unlock()

	removed := 0
	order := e.threatOrder[:0]
	for _, id := range e.threatOrder {
		t := e.threats[id]
		if t == nil {
			continue
		}
		if t.DetectedAt.Before(cutoff) {
			delete(e.threats, id)
			removed++
			continue
		}
		order = append(order, id)
	}
	e.threatOrder = order

	if removed > 0 {
		e.logger.Info().Int("removed", removed).Int("active", len(e.threats)).Msg("old threats cleaned up")
	}
	return removed
}

// PruneBaselines drops baseline data older than 24 hours. Runs hourly.
func (e *Engine) PruneBaselines() int {
	dropped := e.baselines.Prune(e.now().UTC())
	if dropped > 0 {
		e.logger.Debug().Int("dropped", dropped).Msg("anomaly baselines pruned")
	}
	return dropped
}

// ActiveThreats returns a snapshot of the registry in detection order.
func (e *Engine) ActiveThreats() []*core.Threat {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]*core.Threat, 0, len(e.threatOrder))
	for _, id := range e.threatOrder {
		if t, ok := e.threats[id]; ok {
			out = append(out, t)
		}
	}
	return out
}

// IPCount is a source IP with its active threat count.
type IPCount struct {
	IP    string `json:"ip"`
	Count int    `json:"count"`
}

// TypeCount is a threat type with its active threat count.
type TypeCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// ThreatStatistics summarizes the active threat registry.
type ThreatStatistics struct {
	TotalThreats    int         `json:"total_threats"`
	RecentThreats   int         `json:"recent_threats"`
	CriticalThreats int         `json:"critical_threats"`
	HighThreats     int         `json:"high_threats"`
	MediumThreats   int         `json:"medium_threats"`
	LowThreats      int         `json:"low_threats"`
	TopSourceIPs    []IPCount   `json:"top_source_ips"`
	ThreatTypes     []TypeCount `json:"threat_types"`
}

// Statistics returns counts by severity, the count detected within the
// last 24 hours, the top 10 source IPs by threat count (descending, ties
// broken by first-encounter order), and the per-type distribution.
func (e *Engine) Statistics() ThreatStatistics {
	threats := e.ActiveThreats()
	recentCutoff := e.now().UTC().Add(-24 * time.Hour)

	stats := ThreatStatistics{TotalThreats: len(threats)}

	ipCounts := make(map[string]int)
	var ipOrder []string
	typeCounts := make(map[string]int)
	var typeOrder []string

	for _, t := range threats {
		if t.DetectedAt.After(recentCutoff) {
			stats.RecentThreats++
		}
		switch t.Severity {
		case core.SeverityCritical:
			stats.CriticalThreats++
		case core.SeverityHigh:
			stats.HighThreats++
		case core.SeverityMedium:
			stats.MediumThreats++
		case core.SeverityLow:
			stats.LowThreats++
		}
		if _, seen := ipCounts[t.SourceIP]; !seen {
			ipOrder = append(ipOrder, t.SourceIP)
		}
		ipCounts[t.SourceIP]++
		if _, seen := typeCounts[t.Type]; !seen {
			typeOrder = append(typeOrder, t.Type)
		}
		typeCounts[t.Type]++
	}

	top := make([]IPCount, 0, len(ipOrder))
	for _, ip := range ipOrder {
		top = append(top, IPCount{IP: ip, Count: ipCounts[ip]})
	}
	sort.SliceStable(top, func(i, j int) bool { return top[i].Count > top[j].Count })
	if len(top) > 10 {
		top = top[:10]
	}
	stats.TopSourceIPs = top

	stats.ThreatTypes = make([]TypeCount, 0, len(typeOrder))
	for _, typ := range typeOrder {
		stats.ThreatTypes = append(stats.ThreatTypes, TypeCount{Type: typ, Count: typeCounts[typ]})
	}

	return stats
}

// Metrics returns a snapshot of detection counters.
func (e *Engine) Metrics() map[string]int64 {
	e.metrics.mu.Lock()
	defer e.metrics.mu.Unlock()
	return map[string]int64{
		"entries_ingested": e.metrics.EntriesIngested,
		"threats_detected": e.metrics.ThreatsDetected,
		"batches_run":      e.metrics.BatchesRun,
		"anomalies_found":  e.metrics.AnomaliesFound,
	}
}

func sourceOrUnknown(ip string) string {
	if ip == "" {
		return "unknown"
	}
	return ip
}
