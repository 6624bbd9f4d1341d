package compliance

import (
	"sort"
	"strconv"
	"time"

	"github.com/cyberguard-project/cyberguard/internal/core"
)

// overallScore is the flat mean of every requirement score across all
// standards. Standards with more requirements therefore weigh more, which
// matches how auditors count individual control gaps.
func overallScore(standards []StandardResult) float64 {
	total := 0.0
	count := 0
	for _, sr := range standards {
		for _, rr := range sr.Requirements {
			total += rr.Score
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

// aggregateFindings flattens requirement findings into a single list,
// tagging each with its standard and requirement context, ordered most
// severe first. The sort is stable so findings within one severity keep
// assessment order.
func aggregateFindings(standards []StandardResult) []Finding {
	findings := []Finding{}
	for _, sr := range standards {
		for _, rr := range sr.Requirements {
			for _, f := range rr.Findings {
				f.StandardID = sr.StandardID
				f.RequirementID = rr.RequirementID
				f.RequirementTitle = rr.Title
				f.Category = rr.Category
				findings = append(findings, f)
			}
		}
	}
	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].Severity > findings[j].Severity
	})
	return findings
}

// generateRecommendations produces at most one recommendation per severity
// level present in the findings, most severe first. Each carries up to
// five distinct remediation actions and the distinct standards impacted,
// both in finding order.
func generateRecommendations(findings []Finding) []Recommendation {
	bySeverity := make(map[core.Severity][]Finding)
	for _, f := range findings {
		bySeverity[f.Severity] = append(bySeverity[f.Severity], f)
	}

	recs := []Recommendation{}
	for _, sev := range []core.Severity{core.SeverityCritical, core.SeverityHigh, core.SeverityMedium, core.SeverityLow, core.SeverityInfo} {
		group := bySeverity[sev]
		if len(group) == 0 {
			continue
		}

		actions := []string{}
		seenActions := make(map[string]bool)
		standards := []string{}
		seenStandards := make(map[string]bool)
		for _, f := range group {
			if f.Recommendation != "" && !seenActions[f.Recommendation] && len(actions) < 5 {
				seenActions[f.Recommendation] = true
				actions = append(actions, f.Recommendation)
			}
			if f.StandardID != "" && !seenStandards[f.StandardID] {
				seenStandards[f.StandardID] = true
				standards = append(standards, f.StandardID)
			}
		}

		recs = append(recs, Recommendation{
			Priority:          sev,
			Title:             "Address " + sev.String() + " compliance issues",
			Description:       describeGroup(len(group), sev),
			Actions:           actions,
			ImpactedStandards: standards,
		})
	}
	return recs
}

func describeGroup(n int, sev core.Severity) string {
	noun := "issues"
	if n == 1 {
		noun = "issue"
	}
	return strconv.Itoa(n) + " " + sev.String() + " severity compliance " + noun + " identified"
}

// Dashboard is a point-in-time summary of compliance posture.
type Dashboard struct {
	GeneratedAt      time.Time         `json:"generated_at"`
	LatestAssessment *AssessmentResult `json:"latest_assessment,omitempty"`
	OverallScore     float64           `json:"overall_score"`
	ComplianceLevel  Level             `json:"compliance_level"`
	OpenFindings     int               `json:"open_findings"`
	History          []HistoryPoint    `json:"history"`
	AuditEntries     int               `json:"audit_entries"`
}

// HistoryPoint is one past assessment in the dashboard trend line.
type HistoryPoint struct {
	AssessmentID string    `json:"assessment_id"`
	StartTime    time.Time `json:"start_time"`
	Score        float64   `json:"score"`
	Level        Level     `json:"level"`
	Status       string    `json:"status"`
}

// Dashboard summarises the most recent assessment started within the last
// 30 days, whatever its status, plus up to ten in-window assessments as a
// trend line, most recent first.
func (m *Monitor) Dashboard() *Dashboard {
	now := m.now().UTC()
	cutoff := now.Add(-30 * 24 * time.Hour)

	m.mu.Lock()
	defer m.mu.Unlock()

	d := &Dashboard{
		GeneratedAt:     now,
		ComplianceLevel: LevelUnknown,
		History:         []HistoryPoint{},
	}

	recent := make([]*AssessmentResult, 0, len(m.order))
	for _, id := range m.order {
		r := m.results[id]
		if r.StartTime.After(cutoff) {
			recent = append(recent, r)
		}
	}
	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].StartTime.After(recent[j].StartTime)
	})

	if len(recent) > 0 {
		latest := recent[0]
		d.LatestAssessment = latest
		d.OverallScore = latest.OverallScore
		d.ComplianceLevel = latest.ComplianceLevel
		d.OpenFindings = len(latest.Findings)
	}

	if len(recent) > 10 {
		recent = recent[:10]
	}
	for _, r := range recent {
		d.History = append(d.History, HistoryPoint{
			AssessmentID: r.ID,
			StartTime:    r.StartTime,
			Score:        r.OverallScore,
			Level:        r.ComplianceLevel,
			Status:       r.Status,
		})
	}

	if m.trail != nil {
		d.AuditEntries = m.trail.Count()
	}
	return d
}
