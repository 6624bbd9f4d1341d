package compliance

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/cyberguard-project/cyberguard/internal/audit"
	"github.com/cyberguard-project/cyberguard/internal/core"
)

// ─── Score aggregation ──────────────────────────────────────────────────────

func TestOverallScore_FlatMeanOfRequirements(t *testing.T) {
	standards := []StandardResult{
		{
			StandardID: "A",
			Requirements: []RequirementResult{
				{RequirementID: "A1", Score: 100},
				{RequirementID: "A2", Score: 80},
			},
		},
		{
			StandardID: "B",
			Requirements: []RequirementResult{
				{RequirementID: "B1", Score: 60},
				{RequirementID: "B2", Score: 40},
			},
		},
	}

	if got := overallScore(standards); got != 70 {
		t.Errorf("overallScore = %v, want 70", got)
	}
}

func TestOverallScore_WeighsByRequirementCount(t *testing.T) {
	// A standard with more requirements pulls the mean harder than its
	// sibling: [100] and [40, 40, 40] average to 55, not 70.
	standards := []StandardResult{
		{Requirements: []RequirementResult{{Score: 100}}},
		{Requirements: []RequirementResult{{Score: 40}, {Score: 40}, {Score: 40}}},
	}
	if got := overallScore(standards); got != 55 {
		t.Errorf("overallScore = %v, want 55", got)
	}
}

func TestOverallScore_Empty(t *testing.T) {
	if got := overallScore(nil); got != 0 {
		t.Errorf("overallScore(nil) = %v, want 0", got)
	}
}

// ─── Finding aggregation ────────────────────────────────────────────────────

func TestAggregateFindings_SeverityOrderAndContext(t *testing.T) {
	standards := []StandardResult{
		{
			StandardID: "PCI_DSS",
			Requirements: []RequirementResult{
				{
					RequirementID: "PCI_1_1",
					Title:         "Network controls",
					Category:      "Network Security",
					Findings: []Finding{
						{CheckID: "low_a", Severity: core.SeverityLow},
						{CheckID: "crit_a", Severity: core.SeverityCritical},
					},
				},
			},
		},
		{
			StandardID: "GDPR",
			Requirements: []RequirementResult{
				{
					RequirementID: "GDPR_ART_32",
					Title:         "Security of processing",
					Category:      "Data Security",
					Findings: []Finding{
						{CheckID: "med_a", Severity: core.SeverityMedium},
						{CheckID: "crit_b", Severity: core.SeverityCritical},
					},
				},
			},
		},
	}

	findings := aggregateFindings(standards)
	wantOrder := []string{"crit_a", "crit_b", "med_a", "low_a"}
	if len(findings) != len(wantOrder) {
		t.Fatalf("findings = %d, want %d", len(findings), len(wantOrder))
	}
	for i, id := range wantOrder {
		if findings[i].CheckID != id {
			t.Errorf("findings[%d] = %q, want %q", i, findings[i].CheckID, id)
		}
	}

	// Context tagging
	if findings[0].StandardID != "PCI_DSS" || findings[0].RequirementID != "PCI_1_1" {
		t.Errorf("crit_a context = %s/%s", findings[0].StandardID, findings[0].RequirementID)
	}
	if findings[0].RequirementTitle != "Network controls" || findings[0].Category != "Network Security" {
		t.Errorf("crit_a tags = %q/%q", findings[0].RequirementTitle, findings[0].Category)
	}
	if findings[1].StandardID != "GDPR" {
		t.Errorf("crit_b standard = %q, want GDPR", findings[1].StandardID)
	}
}

func TestAggregateFindings_StableWithinSeverity(t *testing.T) {
	standards := []StandardResult{
		{
			StandardID: "A",
			Requirements: []RequirementResult{
				{RequirementID: "R1", Findings: []Finding{
					{CheckID: "first", Severity: core.SeverityHigh},
					{CheckID: "second", Severity: core.SeverityHigh},
				}},
				{RequirementID: "R2", Findings: []Finding{
					{CheckID: "third", Severity: core.SeverityHigh},
				}},
			},
		},
	}

	findings := aggregateFindings(standards)
	want := []string{"first", "second", "third"}
	for i, id := range want {
		if findings[i].CheckID != id {
			t.Errorf("findings[%d] = %q, want %q (assessment order)", i, findings[i].CheckID, id)
		}
	}
}

// ─── Recommendations ────────────────────────────────────────────────────────

func TestGenerateRecommendations_OnePerPresentSeverity(t *testing.T) {
	findings := []Finding{
		{CheckID: "c1", Severity: core.SeverityCritical, Recommendation: "Fix crypto", StandardID: "PCI_DSS"},
		{CheckID: "c2", Severity: core.SeverityLow, Recommendation: "Tidy docs", StandardID: "SOC2"},
		{CheckID: "c3", Severity: core.SeverityCritical, Recommendation: "Rotate keys", StandardID: "GDPR"},
	}

	recs := generateRecommendations(findings)
	if len(recs) != 2 {
		t.Fatalf("recommendations = %d, want 2 (CRITICAL, LOW)", len(recs))
	}

	crit := recs[0]
	if crit.Priority != core.SeverityCritical {
		t.Errorf("recs[0].Priority = %v, want CRITICAL", crit.Priority)
	}
	if crit.Title != "Address CRITICAL compliance issues" {
		t.Errorf("Title = %q", crit.Title)
	}
	if len(crit.Actions) != 2 || crit.Actions[0] != "Fix crypto" || crit.Actions[1] != "Rotate keys" {
		t.Errorf("Actions = %v", crit.Actions)
	}
	if len(crit.ImpactedStandards) != 2 || crit.ImpactedStandards[0] != "PCI_DSS" || crit.ImpactedStandards[1] != "GDPR" {
		t.Errorf("ImpactedStandards = %v", crit.ImpactedStandards)
	}

	if recs[1].Priority != core.SeverityLow {
		t.Errorf("recs[1].Priority = %v, want LOW", recs[1].Priority)
	}
}

func TestGenerateRecommendations_ActionLimitAndDedup(t *testing.T) {
	var findings []Finding
	for i := 0; i < 8; i++ {
		findings = append(findings, Finding{
			CheckID:        "check",
			Severity:       core.SeverityHigh,
			Recommendation: "Action " + string(rune('A'+i)),
			StandardID:     "PCI_DSS",
		})
	}
	// Duplicate recommendation must not be re-listed.
	findings = append(findings, Finding{
		CheckID:        "check",
		Severity:       core.SeverityHigh,
		Recommendation: "Action A",
		StandardID:     "PCI_DSS",
	})

	recs := generateRecommendations(findings)
	if len(recs) != 1 {
		t.Fatalf("recommendations = %d, want 1", len(recs))
	}
	if len(recs[0].Actions) != 5 {
		t.Errorf("Actions = %d, want capped at 5", len(recs[0].Actions))
	}
	if len(recs[0].ImpactedStandards) != 1 {
		t.Errorf("ImpactedStandards = %v, want deduped", recs[0].ImpactedStandards)
	}
}

func TestGenerateRecommendations_Empty(t *testing.T) {
	if recs := generateRecommendations(nil); len(recs) != 0 {
		t.Errorf("recommendations = %d, want 0", len(recs))
	}
}

// ─── Dashboard ──────────────────────────────────────────────────────────────

func TestDashboard_LatestAndHistory(t *testing.T) {
	trail := audit.NewTrail(core.AuditConfig{MaxEntries: 100, TrimTo: 80, RetentionDays: 90}, zerolog.Nop())
	m := NewMonitor(trail, StaticChecker{Pass: true})
	clock := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }

	first, err := m.PerformAssessment(context.Background(), []string{"PCI_DSS"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	clock = clock.Add(time.Hour)
	second, err := m.PerformAssessment(context.Background(), []string{"GDPR"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	clock = clock.Add(time.Hour)

	d := m.Dashboard()
	if d.LatestAssessment == nil || d.LatestAssessment.ID != second.ID {
		t.Errorf("LatestAssessment = %v, want %s", d.LatestAssessment, second.ID)
	}
	if d.OverallScore != 100 || d.ComplianceLevel != LevelFullyCompliant {
		t.Errorf("dashboard score/level = %v/%q", d.OverallScore, d.ComplianceLevel)
	}
	if d.OpenFindings != 0 {
		t.Errorf("OpenFindings = %d, want 0", d.OpenFindings)
	}
	// History is most recent first.
	if len(d.History) != 2 || d.History[0].AssessmentID != second.ID || d.History[1].AssessmentID != first.ID {
		t.Errorf("History = %v", d.History)
	}
	// One audit entry per completed assessment.
	if d.AuditEntries != 2 {
		t.Errorf("AuditEntries = %d, want 2", d.AuditEntries)
	}
}

func TestDashboard_FailedAssessmentStillLatest(t *testing.T) {
	m := NewMonitor(nil, StaticChecker{Pass: true})
	clock := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }

	completed, err := m.PerformAssessment(context.Background(), []string{"SOC2"}, nil)
	if err != nil {
		t.Fatal(err)
	}

	failed := &AssessmentResult{
		ID:              "assessment_failed",
		StartTime:       clock.Add(time.Hour),
		Status:          AssessmentFailed,
		ComplianceLevel: LevelUnknown,
		Findings:        []Finding{},
	}
	m.mu.Lock()
	m.results[failed.ID] = failed
	m.order = append(m.order, failed.ID)
	m.mu.Unlock()

	clock = clock.Add(2 * time.Hour)
	d := m.Dashboard()
	if d.LatestAssessment == nil || d.LatestAssessment.ID != failed.ID {
		t.Errorf("LatestAssessment = %v, want the failed run %s", d.LatestAssessment, failed.ID)
	}
	if len(d.History) != 2 || d.History[0].AssessmentID != failed.ID || d.History[1].AssessmentID != completed.ID {
		t.Errorf("History = %v", d.History)
	}
}

func TestDashboard_Empty(t *testing.T) {
	m := NewMonitor(nil, StaticChecker{Pass: true})

	d := m.Dashboard()
	if d.LatestAssessment != nil {
		t.Error("expected no latest assessment")
	}
	if d.ComplianceLevel != LevelUnknown {
		t.Errorf("ComplianceLevel = %q, want UNKNOWN", d.ComplianceLevel)
	}
	if len(d.History) != 0 {
		t.Errorf("History = %d, want 0", len(d.History))
	}
}

func TestDashboard_StaleAssessmentDropsOut(t *testing.T) {
	m := NewMonitor(nil, StaticChecker{Pass: true})

	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }
	if _, err := m.PerformAssessment(context.Background(), []string{"SOC2"}, nil); err != nil {
		t.Fatal(err)
	}

	// 40 days later the assessment is outside the 30-day window and drops
	// out of the dashboard entirely, history included.
	clock = clock.Add(40 * 24 * time.Hour)
	d := m.Dashboard()
	if d.LatestAssessment != nil {
		t.Error("stale assessment reported as latest")
	}
	if len(d.History) != 0 {
		t.Errorf("History = %d, want 0", len(d.History))
	}
}

func TestDashboard_HistoryCappedAtTen(t *testing.T) {
	m := NewMonitor(nil, StaticChecker{Pass: true})
	clock := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }

	ids := make([]string, 0, 12)
	for i := 0; i < 12; i++ {
		r, err := m.PerformAssessment(context.Background(), []string{"HIPAA"}, nil)
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, r.ID)
		clock = clock.Add(time.Minute)
	}

	d := m.Dashboard()
	if len(d.History) != 10 {
		t.Errorf("History = %d, want 10", len(d.History))
	}
	if d.History[0].AssessmentID != ids[11] {
		t.Error("history does not start at the newest assessment")
	}
	if d.History[9].AssessmentID != ids[2] {
		t.Error("history does not keep the ten most recent assessments")
	}
}
