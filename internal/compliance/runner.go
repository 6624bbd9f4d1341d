package compliance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cyberguard-project/cyberguard/internal/audit"
	"github.com/cyberguard-project/cyberguard/internal/core"
)

// ModuleName is the monitor's name in the module registry.
const ModuleName = "compliance_monitor"

// Status is the compliance status of a requirement or standard.
type Status string

const (
	StatusCompliant          Status = "COMPLIANT"
	StatusLargelyCompliant   Status = "LARGELY_COMPLIANT"
	StatusPartiallyCompliant Status = "PARTIALLY_COMPLIANT"
	StatusNonCompliant       Status = "NON_COMPLIANT"
	StatusError              Status = "ERROR"
	StatusUnknown            Status = "UNKNOWN"
)

// Level is the overall compliance level of an assessment.
type Level string

const (
	LevelFullyCompliant     Level = "FULLY_COMPLIANT"
	LevelLargelyCompliant   Level = "LARGELY_COMPLIANT"
	LevelPartiallyCompliant Level = "PARTIALLY_COMPLIANT"
	LevelMinimallyCompliant Level = "MINIMALLY_COMPLIANT"
	LevelNonCompliant       Level = "NON_COMPLIANT"
	LevelUnknown            Level = "UNKNOWN"
)

// Assessment lifecycle states.
const (
	AssessmentRunning   = "running"
	AssessmentCompleted = "completed"
	AssessmentFailed    = "failed"
)

// Finding is a recorded check failure. Standard/requirement context is
// filled in during aggregation.
type Finding struct {
	CheckID          string        `json:"check_id"`
	Description      string        `json:"description"`
	Severity         core.Severity `json:"severity"`
	Recommendation   string        `json:"recommendation"`
	StandardID       string        `json:"standard_id,omitempty"`
	RequirementID    string        `json:"requirement_id,omitempty"`
	RequirementTitle string        `json:"requirement_title,omitempty"`
	Category         string        `json:"category,omitempty"`
}

// Recommendation bundles remediation guidance for one severity level.
type Recommendation struct {
	Priority          core.Severity `json:"priority"`
	Title             string        `json:"title"`
	Description       string        `json:"description"`
	Actions           []string      `json:"actions"`
	ImpactedStandards []string      `json:"impacted_standards"`
}

// RequirementResult is the outcome of assessing one requirement.
type RequirementResult struct {
	RequirementID string        `json:"requirement_id"`
	Title         string        `json:"title"`
	Category      string        `json:"category"`
	Severity      core.Severity `json:"severity"`
	Score         float64       `json:"score"`
	Status        Status        `json:"status"`
	Findings      []Finding     `json:"findings"`
	Evidence      []Evidence    `json:"evidence"`
	Error         string        `json:"error,omitempty"`
}

// StandardResult is the outcome of assessing one standard.
type StandardResult struct {
	StandardID   string              `json:"standard_id"`
	StandardName string              `json:"standard_name"`
	Version      string              `json:"version"`
	Score        float64             `json:"score"`
	Status       Status              `json:"status"`
	Requirements []RequirementResult `json:"requirements"`
	Error        string              `json:"error,omitempty"`
}

// AssessmentResult is a completed (or failed) compliance assessment,
// persisted in memory keyed by ID. Immutable after completion except for
// the status/error stamped on failure.
type AssessmentResult struct {
	ID              string           `json:"assessment_id"`
	StartTime       time.Time        `json:"start_time"`
	EndTime         time.Time        `json:"end_time,omitempty"`
	DurationSeconds float64          `json:"duration_seconds"`
	Standards       []string         `json:"standards"`
	Systems         []string         `json:"systems"`
	Status          string           `json:"status"`
	OverallScore    float64          `json:"overall_score"`
	ComplianceLevel Level            `json:"compliance_level"`
	Findings        []Finding        `json:"findings"`
	Recommendations []Recommendation `json:"recommendations"`
	StandardResults []StandardResult `json:"standard_results"`
	Error           string           `json:"error,omitempty"`
}

// Monitor is the compliance assessment engine.
type Monitor struct {
	logger    zerolog.Logger
	cfg       *core.Config
	trail     *audit.Trail
	checker   Checker
	standards []Standard

	mu      sync.Mutex
	results map[string]*AssessmentResult
	order   []string // assessment IDs in start order

	ctx    context.Context
	cancel context.CancelFunc
	now    func() time.Time
}

// NewMonitor creates a compliance monitor with the built-in standards
// catalog. A nil checker defaults to the simulated stand-in.
func NewMonitor(trail *audit.Trail, checker Checker) *Monitor {
	if checker == nil {
		checker = NewSimulatedChecker()
	}
	return &Monitor{
		logger:    zerolog.Nop(),
		cfg:       core.DefaultConfig(),
		trail:     trail,
		checker:   checker,
		standards: DefaultStandards(),
		results:   make(map[string]*AssessmentResult),
		now:       time.Now,
	}
}

func (m *Monitor) Name() string { return ModuleName }
func (m *Monitor) Description() string {
	return "Hierarchical compliance assessment against PCI DSS, GDPR, SOC2, and HIPAA with bottom-up score aggregation"
}

// Start implements core.Module. It launches the scheduled auto-scan loop.
func (m *Monitor) Start(ctx context.Context, bus *core.EventBus, cfg *core.Config) error {
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.cfg = cfg
	m.logger = core.NewLogger(cfg).With().Str("module", ModuleName).Logger()

	go m.scanLoop(m.ctx, cfg.Compliance.ScanInterval())

	m.logger.Info().
		Int("standards", len(m.standards)).
		Bool("auto_scan", cfg.AutoScanEnabled()).
		Msg("compliance monitor started")
	return nil
}

// Stop implements core.Module.
func (m *Monitor) Stop() error {
	if m.cancel != nil {
		m.cancel()
	}
	return nil
}

// scanLoop runs scheduled assessments. Failures are logged only — a
// scheduled scan can never terminate the process or propagate errors.
func (m *Monitor) scanLoop(ctx context.Context, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.RunScheduledScan(ctx)
		}
	}
}

// RunScheduledScan performs a full assessment against the configured
// default standard set when auto-scan is enabled.
func (m *Monitor) RunScheduledScan(ctx context.Context) {
	if !m.cfg.AutoScanEnabled() {
		return
	}
	m.logger.Info().Msg("running scheduled compliance scan")
	if _, err := m.PerformAssessment(ctx, m.cfg.ScanStandards(), nil); err != nil {
		m.logger.Error().Err(err).Msg("scheduled compliance scan failed")
	}
}

// PerformAssessment walks the requested standards (default: the full
// catalog, in catalog order), assessing each requirement's checks strictly
// sequentially, and aggregates scores bottom-up. The result is stored
// keyed by its ID before completion so a failure can be recorded on it.
func (m *Monitor) PerformAssessment(ctx context.Context, standardIDs, targetSystems []string) (result *AssessmentResult, err error) {
	start := m.now().UTC()

	if len(standardIDs) == 0 {
		standardIDs = make([]string, 0, len(m.standards))
		for _, s := range m.standards {
			standardIDs = append(standardIDs, s.ID)
		}
	}
	systems := targetSystems
	if len(systems) == 0 {
		systems = []string{"all"}
	}

	result = &AssessmentResult{
		ID:              "assessment_" + uuid.New().String(),
		StartTime:       start,
		Standards:       standardIDs,
		Systems:         systems,
		Status:          AssessmentRunning,
		ComplianceLevel: LevelUnknown,
		Findings:        []Finding{},
		Recommendations: []Recommendation{},
	}

	m.mu.Lock()
	m.results[result.ID] = result
	m.order = append(m.order, result.ID)
	m.mu.Unlock()

	m.logger.Info().
		Str("assessment_id", result.ID).
		Strs("standards", standardIDs).
		Strs("systems", systems).
		Msg("starting compliance assessment")

	// A panic anywhere below is a whole-assessment failure: the stored
	// result is marked failed and the error propagates to the caller.
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("compliance assessment panicked: %v", rec)
		}
		if err != nil {
			m.mu.Lock()
			result.Status = AssessmentFailed
			result.Error = err.Error()
			result.EndTime = m.now().UTC()
			m.mu.Unlock()
			m.logger.Error().Err(err).Str("assessment_id", result.ID).Msg("compliance assessment failed")
		}
	}()

	for _, id := range standardIDs {
		std, ok := m.standard(id)
		if !ok {
			m.logger.Warn().Str("standard", id).Msg("unknown standard requested, skipping")
			continue
		}
		result.StandardResults = append(result.StandardResults, m.assessStandard(ctx, std, systems))
	}

	result.OverallScore = overallScore(result.StandardResults)
	result.ComplianceLevel = levelForScore(result.OverallScore)
	result.Findings = aggregateFindings(result.StandardResults)
	result.Recommendations = generateRecommendations(result.Findings)

	end := m.now().UTC()
	result.Status = AssessmentCompleted
	result.EndTime = end
	result.DurationSeconds = end.Sub(start).Seconds()

	if m.trail != nil {
		m.trail.Add("system", "COMPLIANCE_ASSESSMENT_COMPLETED", map[string]any{
			"assessment_id": result.ID,
			"standards":     result.Standards,
			"score":         result.OverallScore,
			"level":         string(result.ComplianceLevel),
		})
	}

	m.logger.Info().
		Str("assessment_id", result.ID).
		Float64("score", result.OverallScore).
		Str("level", string(result.ComplianceLevel)).
		Int("findings", len(result.Findings)).
		Msg("compliance assessment completed")

	return result, nil
}

// assessStandard walks the standard's requirements in order. A failure at
// standard scope marks the result ERROR; sibling standards still run.
func (m *Monitor) assessStandard(ctx context.Context, std Standard, systems []string) (sr StandardResult) {
	sr = StandardResult{
		StandardID:   std.ID,
		StandardName: std.Name,
		Version:      std.Version,
		Status:       StatusUnknown,
	}

	defer func() {
		if rec := recover(); rec != nil {
			m.logger.Error().Str("standard", std.ID).Interface("panic", rec).Msg("standard assessment failed")
			sr.Status = StatusError
			sr.Error = fmt.Sprintf("standard assessment panicked: %v", rec)
		}
	}()

	totalScore := 0.0
	maxPossible := 0.0
	for _, req := range std.Requirements {
		rr := m.assessRequirement(ctx, req, systems)
		sr.Requirements = append(sr.Requirements, rr)
		totalScore += rr.Score
		maxPossible += 100
	}

	if maxPossible > 0 {
		sr.Score = totalScore / maxPossible * 100
	}
	sr.Status = statusForScore(sr.Score)
	return sr
}

// assessRequirement awaits each check strictly sequentially, in catalog
// order. Ordering is a hard contract: findings must be deterministic for
// a given checker. A check error synthesizes a conservative failing
// result; a panic marks the requirement ERROR and siblings continue.
func (m *Monitor) assessRequirement(ctx context.Context, req Requirement, systems []string) (rr RequirementResult) {
	rr = RequirementResult{
		RequirementID: req.ID,
		Title:         req.Title,
		Category:      req.Category,
		Severity:      req.Severity,
		Status:        StatusNonCompliant,
		Findings:      []Finding{},
	}

	defer func() {
		if rec := recover(); rec != nil {
			m.logger.Error().Str("requirement", req.ID).Interface("panic", rec).Msg("requirement assessment failed")
			rr.Status = StatusError
			rr.Error = fmt.Sprintf("requirement assessment panicked: %v", rec)
		}
	}()

	passed := 0
	for _, checkID := range req.Checks {
		res := m.performCheck(ctx, checkID, req, systems)
		if res.Passed {
			passed++
		} else {
			rr.Findings = append(rr.Findings, Finding{
				CheckID:        checkID,
				Description:    res.Description,
				Severity:       res.Severity,
				Recommendation: res.Recommendation,
			})
		}
		if res.Evidence != nil {
			rr.Evidence = append(rr.Evidence, *res.Evidence)
		}
	}

	if len(req.Checks) > 0 {
		rr.Score = float64(passed) / float64(len(req.Checks)) * 100
	}
	rr.Status = statusForScore(rr.Score)
	return rr
}

// performCheck invokes the checker, converting any error (including ctx
// cancellation) into a conservative failing result so one bad check never
// aborts an assessment.
func (m *Monitor) performCheck(ctx context.Context, checkID string, req Requirement, systems []string) CheckResult {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return failedCheckResult(checkID, fmt.Sprintf("Check cancelled: %v", ctxErr))
	}

	res, err := m.checker.Check(ctx, checkID, req, systems)
	if err != nil {
		m.logger.Error().Err(err).Str("check", checkID).Msg("compliance check failed")
		return failedCheckResult(checkID, fmt.Sprintf("Check failed due to error: %v", err))
	}
	return res
}

func failedCheckResult(checkID, description string) CheckResult {
	return CheckResult{
		Passed:         false,
		Description:    description,
		Severity:       core.SeverityHigh,
		Recommendation: "Review system configuration and resolve technical issues",
		Evidence:       &Evidence{CheckType: checkID, Result: "ERROR", Details: description},
	}
}

// Results returns a stored assessment by ID.
func (m *Monitor) Results(id string) (*AssessmentResult, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.results[id]
	return r, ok
}

// Standards returns the catalog in assessment order.
func (m *Monitor) Standards() []Standard {
	out := make([]Standard, len(m.standards))
	copy(out, m.standards)
	return out
}

func (m *Monitor) standard(id string) (Standard, bool) {
	for _, s := range m.standards {
		if s.ID == id {
			return s, true
		}
	}
	return Standard{}, false
}

// SetNowFunc overrides the monitor's clock. Used by tests.
func (m *Monitor) SetNowFunc(fn func() time.Time) {
	m.now = fn
}

// Threshold tables shared by requirement, standard, and assessment level.

func statusForScore(score float64) Status {
	switch {
	case score >= 95:
		return StatusCompliant
	case score >= 80:
		return StatusLargelyCompliant
	case score >= 60:
		return StatusPartiallyCompliant
	default:
		return StatusNonCompliant
	}
}

func levelForScore(score float64) Level {
	switch {
	case score >= 95:
		return LevelFullyCompliant
	case score >= 80:
		return LevelLargelyCompliant
	case score >= 60:
		return LevelPartiallyCompliant
	case score >= 40:
		return LevelMinimallyCompliant
	default:
		return LevelNonCompliant
	}
}
