package compliance

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/cyberguard-project/cyberguard/internal/audit"
	"github.com/cyberguard-project/cyberguard/internal/core"
)

func newTestMonitor(checker Checker) *Monitor {
	m := NewMonitor(nil, checker)
	m.now = func() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC) }
	return m
}

// ─── Full assessments ───────────────────────────────────────────────────────

func TestPerformAssessment_AllChecksPass(t *testing.T) {
	m := newTestMonitor(StaticChecker{Pass: true})

	result, err := m.PerformAssessment(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("PerformAssessment: %v", err)
	}

	if result.Status != AssessmentCompleted {
		t.Errorf("Status = %q, want completed", result.Status)
	}
	if result.OverallScore != 100 {
		t.Errorf("OverallScore = %v, want 100", result.OverallScore)
	}
	if result.ComplianceLevel != LevelFullyCompliant {
		t.Errorf("ComplianceLevel = %q, want FULLY_COMPLIANT", result.ComplianceLevel)
	}
	if len(result.Findings) != 0 {
		t.Errorf("Findings = %d, want 0", len(result.Findings))
	}
	if len(result.Recommendations) != 0 {
		t.Errorf("Recommendations = %d, want 0", len(result.Recommendations))
	}
	if len(result.StandardResults) != 4 {
		t.Fatalf("StandardResults = %d, want all 4", len(result.StandardResults))
	}
	for _, sr := range result.StandardResults {
		if sr.Score != 100 || sr.Status != StatusCompliant {
			t.Errorf("%s: score %v status %q, want 100 COMPLIANT", sr.StandardID, sr.Score, sr.Status)
		}
		for _, rr := range sr.Requirements {
			if rr.Score != 100 || rr.Status != StatusCompliant {
				t.Errorf("%s/%s: score %v status %q", sr.StandardID, rr.RequirementID, rr.Score, rr.Status)
			}
			if len(rr.Evidence) == 0 {
				t.Errorf("%s/%s: no evidence collected", sr.StandardID, rr.RequirementID)
			}
		}
	}
	if result.Systems[0] != "all" {
		t.Errorf("Systems = %v, want default [all]", result.Systems)
	}
}

func TestPerformAssessment_AllChecksFail(t *testing.T) {
	m := newTestMonitor(StaticChecker{Pass: false})

	result, err := m.PerformAssessment(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("PerformAssessment: %v", err)
	}

	if result.OverallScore != 0 {
		t.Errorf("OverallScore = %v, want 0", result.OverallScore)
	}
	if result.ComplianceLevel != LevelNonCompliant {
		t.Errorf("ComplianceLevel = %q, want NON_COMPLIANT", result.ComplianceLevel)
	}
	// Every check produces exactly one finding: 48 across the catalog.
	if len(result.Findings) != 48 {
		t.Errorf("Findings = %d, want 48", len(result.Findings))
	}
	for _, sr := range result.StandardResults {
		if sr.Status != StatusNonCompliant {
			t.Errorf("%s status = %q, want NON_COMPLIANT", sr.StandardID, sr.Status)
		}
	}
}

func TestPerformAssessment_StandardOrder(t *testing.T) {
	m := newTestMonitor(StaticChecker{Pass: true})

	result, err := m.PerformAssessment(context.Background(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"PCI_DSS", "GDPR", "SOC2", "HIPAA"}
	for i, sr := range result.StandardResults {
		if sr.StandardID != want[i] {
			t.Errorf("StandardResults[%d] = %q, want %q", i, sr.StandardID, want[i])
		}
	}
}

func TestPerformAssessment_SelectedStandards(t *testing.T) {
	m := newTestMonitor(StaticChecker{Pass: true})

	result, err := m.PerformAssessment(context.Background(), []string{"PCI_DSS"}, []string{"payment-gateway"})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.StandardResults) != 1 || result.StandardResults[0].StandardID != "PCI_DSS" {
		t.Errorf("StandardResults = %v, want only PCI_DSS", result.StandardResults)
	}
	if len(result.StandardResults[0].Requirements) != 5 {
		t.Errorf("PCI requirements = %d, want 5", len(result.StandardResults[0].Requirements))
	}
	if result.Systems[0] != "payment-gateway" {
		t.Errorf("Systems = %v", result.Systems)
	}
}

func TestPerformAssessment_UnknownStandardSkipped(t *testing.T) {
	m := newTestMonitor(StaticChecker{Pass: true})

	result, err := m.PerformAssessment(context.Background(), []string{"PCI_DSS", "ISO_99999"}, nil)
	if err != nil {
		t.Fatalf("unknown standard must not fail the assessment: %v", err)
	}
	if result.Status != AssessmentCompleted {
		t.Errorf("Status = %q, want completed", result.Status)
	}
	if len(result.StandardResults) != 1 {
		t.Errorf("StandardResults = %d, want 1", len(result.StandardResults))
	}
}

// ─── Error isolation ────────────────────────────────────────────────────────

type selectiveChecker struct {
	failIDs map[string]bool
	errIDs  map[string]bool
}

func (c selectiveChecker) Check(ctx context.Context, checkID string, req Requirement, systems []string) (CheckResult, error) {
	if c.errIDs[checkID] {
		return CheckResult{}, errors.New("probe timed out")
	}
	return StaticChecker{Pass: !c.failIDs[checkID]}.Check(ctx, checkID, req, systems)
}

func TestAssessRequirement_CheckErrorSynthesizesFailure(t *testing.T) {
	m := newTestMonitor(selectiveChecker{errIDs: map[string]bool{"firewall_configured": true}})

	result, err := m.PerformAssessment(context.Background(), []string{"PCI_DSS"}, nil)
	if err != nil {
		t.Fatalf("check error must not fail the assessment: %v", err)
	}

	rr := result.StandardResults[0].Requirements[0] // PCI_1_1 holds firewall_configured
	if len(rr.Findings) != 1 {
		t.Fatalf("findings = %d, want 1", len(rr.Findings))
	}
	f := rr.Findings[0]
	if f.CheckID != "firewall_configured" {
		t.Errorf("CheckID = %q", f.CheckID)
	}
	if f.Severity != core.SeverityHigh {
		t.Errorf("Severity = %v, want HIGH", f.Severity)
	}
	if !strings.Contains(f.Description, "probe timed out") {
		t.Errorf("Description = %q, want the probe error surfaced", f.Description)
	}
	if f.Recommendation != "Review system configuration and resolve technical issues" {
		t.Errorf("Recommendation = %q", f.Recommendation)
	}
	// 2 of 3 checks passed.
	if diff := rr.Score - 100.0*2/3; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("Score = %v, want 66.67", rr.Score)
	}
	if rr.Status != StatusPartiallyCompliant {
		t.Errorf("Status = %q, want PARTIALLY_COMPLIANT", rr.Status)
	}
}

type panickyChecker struct{}

func (panickyChecker) Check(ctx context.Context, checkID string, req Requirement, systems []string) (CheckResult, error) {
	if checkID == "data_encryption_at_rest" {
		panic("probe crashed")
	}
	return StaticChecker{Pass: true}.Check(ctx, checkID, req, systems)
}

func TestAssessRequirement_PanicIsolatedToRequirement(t *testing.T) {
	m := newTestMonitor(panickyChecker{})

	result, err := m.PerformAssessment(context.Background(), []string{"PCI_DSS"}, nil)
	if err != nil {
		t.Fatalf("requirement panic must not fail the assessment: %v", err)
	}
	if result.Status != AssessmentCompleted {
		t.Errorf("Status = %q, want completed", result.Status)
	}

	var crashed, clean int
	for _, rr := range result.StandardResults[0].Requirements {
		if rr.RequirementID == "PCI_3_1" {
			if rr.Status != StatusError {
				t.Errorf("PCI_3_1 status = %q, want ERROR", rr.Status)
			}
			if rr.Error == "" {
				t.Error("PCI_3_1 missing error text")
			}
			crashed++
			continue
		}
		if rr.Status != StatusCompliant {
			t.Errorf("%s status = %q, want COMPLIANT", rr.RequirementID, rr.Status)
		}
		clean++
	}
	if crashed != 1 || clean != 4 {
		t.Errorf("crashed/clean = %d/%d, want 1/4", crashed, clean)
	}
}

func TestPerformAssessment_CancelledContext(t *testing.T) {
	m := newTestMonitor(StaticChecker{Pass: true})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := m.PerformAssessment(ctx, []string{"HIPAA"}, nil)
	if err != nil {
		t.Fatalf("cancellation is a per-check failure, not an assessment error: %v", err)
	}
	if result.Status != AssessmentCompleted {
		t.Errorf("Status = %q, want completed", result.Status)
	}
	if result.OverallScore != 0 {
		t.Errorf("OverallScore = %v, want 0", result.OverallScore)
	}
	for _, f := range result.Findings {
		if !strings.Contains(f.Description, "cancelled") {
			t.Errorf("finding description %q does not mark cancellation", f.Description)
		}
	}
}

// ─── Threshold tables ───────────────────────────────────────────────────────

func TestStatusForScore(t *testing.T) {
	tests := []struct {
		score float64
		want  Status
	}{
		{100, StatusCompliant},
		{95, StatusCompliant},
		{94.9, StatusLargelyCompliant},
		{80, StatusLargelyCompliant},
		{79.9, StatusPartiallyCompliant},
		{60, StatusPartiallyCompliant},
		{59.9, StatusNonCompliant},
		{0, StatusNonCompliant},
	}
	for _, tt := range tests {
		if got := statusForScore(tt.score); got != tt.want {
			t.Errorf("statusForScore(%v) = %q, want %q", tt.score, got, tt.want)
		}
	}
}

func TestLevelForScore(t *testing.T) {
	tests := []struct {
		score float64
		want  Level
	}{
		{100, LevelFullyCompliant},
		{95, LevelFullyCompliant},
		{94.9, LevelLargelyCompliant},
		{80, LevelLargelyCompliant},
		{79.9, LevelPartiallyCompliant},
		{60, LevelPartiallyCompliant},
		{59.9, LevelMinimallyCompliant},
		{40, LevelMinimallyCompliant},
		{39.9, LevelNonCompliant},
		{0, LevelNonCompliant},
	}
	for _, tt := range tests {
		if got := levelForScore(tt.score); got != tt.want {
			t.Errorf("levelForScore(%v) = %q, want %q", tt.score, got, tt.want)
		}
	}
}

// ─── Result storage and audit ───────────────────────────────────────────────

func TestResults_Lookup(t *testing.T) {
	m := newTestMonitor(StaticChecker{Pass: true})

	result, err := m.PerformAssessment(context.Background(), []string{"SOC2"}, nil)
	if err != nil {
		t.Fatal(err)
	}

	stored, ok := m.Results(result.ID)
	if !ok || stored.ID != result.ID {
		t.Errorf("Results(%s) = %v, %v", result.ID, stored, ok)
	}
	if _, ok := m.Results("assessment_missing"); ok {
		t.Error("lookup of unknown id succeeded")
	}
}

func TestPerformAssessment_RecordsAuditEntry(t *testing.T) {
	trail := audit.NewTrail(core.AuditConfig{MaxEntries: 100, TrimTo: 80, RetentionDays: 90}, zerolog.Nop())
	m := NewMonitor(trail, StaticChecker{Pass: true})

	result, err := m.PerformAssessment(context.Background(), []string{"GDPR"}, nil)
	if err != nil {
		t.Fatal(err)
	}

	entries := trail.Entries(10, 0)
	if len(entries) != 1 {
		t.Fatalf("audit entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.Action != "COMPLIANCE_ASSESSMENT_COMPLETED" {
		t.Errorf("Action = %q", e.Action)
	}
	if e.Details["assessment_id"] != result.ID {
		t.Errorf("assessment_id = %v, want %s", e.Details["assessment_id"], result.ID)
	}
}

// ─── Simulated checker ──────────────────────────────────────────────────────

func TestSimulatedChecker_Deterministic(t *testing.T) {
	run := func() *AssessmentResult {
		m := newTestMonitor(NewSimulatedCheckerWithSeed(42))
		result, err := m.PerformAssessment(context.Background(), nil, nil)
		if err != nil {
			t.Fatal(err)
		}
		return result
	}

	a, b := run(), run()
	if a.OverallScore != b.OverallScore {
		t.Errorf("seeded runs disagree: %v vs %v", a.OverallScore, b.OverallScore)
	}
	if len(a.Findings) != len(b.Findings) {
		t.Errorf("seeded findings disagree: %d vs %d", len(a.Findings), len(b.Findings))
	}
	for i := range a.Findings {
		if a.Findings[i].CheckID != b.Findings[i].CheckID {
			t.Errorf("finding[%d] = %q vs %q", i, a.Findings[i].CheckID, b.Findings[i].CheckID)
		}
	}
}

func TestSimulatedChecker_NamedProfileFailure(t *testing.T) {
	// privacy_by_design fails on any roll >= 0.5; find a seed whose first
	// roll is high enough and verify the profile's failure shape.
	var seed int64
	for s := int64(1); s < 100; s++ {
		if rand.New(rand.NewSource(s)).Float64() >= 0.5 {
			seed = s
			break
		}
	}
	if seed == 0 {
		t.Fatal("no high-roll seed found in range")
	}

	c := NewSimulatedCheckerWithSeed(seed)
	req := Requirement{ID: "GDPR_ART_25", Severity: core.SeverityHigh}
	res, err := c.Check(context.Background(), "privacy_by_design", req, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Passed {
		t.Fatal("expected failure on high roll")
	}
	if res.Severity != core.SeverityHigh {
		t.Errorf("Severity = %v, want HIGH", res.Severity)
	}
	if !strings.Contains(res.Description, "Privacy by design") {
		t.Errorf("Description = %q", res.Description)
	}
	if res.Evidence == nil || res.Evidence.Result != "FAIL" {
		t.Errorf("Evidence = %+v, want FAIL", res.Evidence)
	}
}

// ─── Scheduled scans ────────────────────────────────────────────────────────

func TestRunScheduledScan_RespectsAutoScanFlag(t *testing.T) {
	m := newTestMonitor(StaticChecker{Pass: true})
	m.cfg.Compliance.AutoScan = false

	m.RunScheduledScan(context.Background())
	if len(m.order) != 0 {
		t.Error("scan ran with auto-scan disabled")
	}

	m.cfg.Compliance.AutoScan = true
	m.cfg.Compliance.Standards = []string{"SOC2"}
	m.RunScheduledScan(context.Background())
	if len(m.order) != 1 {
		t.Fatalf("assessments = %d, want 1", len(m.order))
	}
	stored := m.results[m.order[0]]
	if len(stored.StandardResults) != 1 || stored.StandardResults[0].StandardID != "SOC2" {
		t.Errorf("scheduled scan assessed %v, want SOC2", stored.Standards)
	}
}

// ─── Lifecycle bookkeeping ──────────────────────────────────────────────────

func TestPerformAssessment_Timing(t *testing.T) {
	m := NewMonitor(nil, StaticChecker{Pass: true})
	times := []time.Time{
		time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
		time.Date(2026, 5, 1, 12, 0, 3, 0, time.UTC),
	}
	calls := 0
	m.now = func() time.Time {
		t := times[min(calls, len(times)-1)]
		calls++
		return t
	}

	result, err := m.PerformAssessment(context.Background(), []string{"HIPAA"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.DurationSeconds != 3 {
		t.Errorf("DurationSeconds = %v, want 3", result.DurationSeconds)
	}
	if !result.EndTime.After(result.StartTime) {
		t.Error("EndTime not after StartTime")
	}
	if !strings.HasPrefix(result.ID, "assessment_") {
		t.Errorf("ID = %q, want assessment_ prefix", result.ID)
	}
}

func TestMonitorModule_Identity(t *testing.T) {
	m := NewMonitor(nil, nil)
	if m.Name() != ModuleName {
		t.Errorf("Name = %q, want %q", m.Name(), ModuleName)
	}
	if m.Description() == "" {
		t.Error("empty description")
	}
	if len(m.Standards()) != 4 {
		t.Errorf("Standards = %d, want 4", len(m.Standards()))
	}
}
