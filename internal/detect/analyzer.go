package detect

import (
	"fmt"
	"math"
	"sort"

	"github.com/cyberguard-project/cyberguard/internal/core"
)

// Anomaly pattern IDs assigned to threats produced by the batch analyzer.
const (
	AnomalyBehavioral = "ANOMALY_BEHAVIORAL"
	AnomalyTimeBased  = "ANOMALY_TIME"
	AnomalyProtocol   = "ANOMALY_PROTOCOL"
)

// Behavioral thresholds.
const (
	highRequestRatePerMin  = 100.0
	endpointScanThreshold  = 50
	hourlySpikeFactor      = 3.0
	deleteSharePctLimit    = 5.0
	putSharePctLimit       = 10.0
	patchSharePctLimit     = 5.0
)

// RunBatchAnalysis selects buffered-but-unanalyzed entries and runs the
// three statistical sub-analyses over them. Each sub-analysis is error
// isolated: a panic in one does not cancel the others or the batch. All
// selected entries are marked analyzed after the pass completes regardless
// of sub-analysis failures — there is no retry. Returns the anomalies
// produced, which are also routed through threat handling.
func (e *Engine) RunBatchAnalysis() []*core.Threat {
	e.mu.Lock()
	var pending []*bufferedEntry
	for _, b := range e.buffer {
		if !b.analyzed {
			pending = append(pending, b)
		}
	}
	e.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}

	entries := make([]core.LogEntry, len(pending))
	for i, b := range pending {
		entries[i] = b.entry
	}

	e.logger.Info().Int("entries", len(entries)).Msg("processing log entries for batch analysis")

	var anomalies []*core.Threat
	e.runIsolated("behavioral analysis", func() {
		anomalies = append(anomalies, e.analyzeBehavior(entries)...)
	})
	e.runIsolated("time-based analysis", func() {
		anomalies = append(anomalies, e.analyzeTimeDistribution(entries)...)
	})
	e.runIsolated("protocol analysis", func() {
		anomalies = append(anomalies, e.analyzeProtocolUsage(entries)...)
	})

	e.mu.Lock()
	for _, b := range pending {
		b.analyzed = true
	}
	e.mu.Unlock()

	for _, a := range anomalies {
		e.handleThreat(a)
	}

	e.metrics.mu.Lock()
	e.metrics.BatchesRun++
	e.metrics.AnomaliesFound += int64(len(anomalies))
	e.metrics.mu.Unlock()

	e.logger.Info().Int("anomalies", len(anomalies)).Msg("batch analysis completed")
	return anomalies
}

// analyzeBehavior groups the batch by source IP and flags abnormal request
// rates or endpoint scanning. At most one anomaly is produced per IP: the
// rate check runs first and wins over endpoint diversity.
func (e *Engine) analyzeBehavior(entries []core.LogEntry) []*core.Threat {
	groups := make(map[string][]core.LogEntry)
	var ips []string
	for _, entry := range entries {
		ip := sourceOrUnknown(entry.SourceIP)
		if _, seen := groups[ip]; !seen {
			ips = append(ips, ip)
		}
		groups[ip] = append(groups[ip], entry)
	}
	sort.Strings(ips)

	var anomalies []*core.Threat
	for _, ip := range ips {
		group := groups[ip]

		spanMinutes := group[len(group)-1].Timestamp.Sub(group[0].Timestamp).Minutes()
		rate := float64(len(group)) / math.Max(spanMinutes, 1)

		if rate > highRequestRatePerMin {
			t := core.NewThreat(AnomalyBehavioral, "High Request Rate Anomaly", core.SeverityHigh,
				math.Min(8.0+(rate-highRequestRatePerMin)/50, 10.0))
			t.Description = fmt.Sprintf("Abnormally high request rate from IP %s", ip)
			t.Confidence = 0.85
			t.SourceIP = ip
			t.DetectedAt = e.now().UTC()
			t.Details["request_rate"] = rate
			t.Details["total_requests"] = len(group)
			t.Details["time_span_minutes"] = spanMinutes
			anomalies = append(anomalies, t)
			continue
		}

		endpoints := make(map[string]struct{})
		for _, entry := range group {
			endpoints[entry.URL] = struct{}{}
		}
		if len(endpoints) > endpointScanThreshold {
			t := core.NewThreat(AnomalyBehavioral, "Endpoint Scanning Anomaly", core.SeverityMedium, 7.5)
			t.Description = fmt.Sprintf("Suspicious endpoint scanning behavior from IP %s", ip)
			t.Confidence = 0.80
			t.SourceIP = ip
			t.DetectedAt = e.now().UTC()
			t.Details["unique_endpoints"] = len(endpoints)
			t.Details["total_requests"] = len(group)
			anomalies = append(anomalies, t)
		}
	}
	return anomalies
}

// analyzeTimeDistribution buckets the batch by hour of day and flags any
// bucket exceeding three times the mean bucket count.
func (e *Engine) analyzeTimeDistribution(entries []core.LogEntry) []*core.Threat {
	buckets := make(map[int]int)
	for _, entry := range entries {
		buckets[entry.Timestamp.Hour()]++
	}
	if len(buckets) == 0 {
		return nil
	}

	total := 0
	for _, count := range buckets {
		total += count
	}
	mean := float64(total) / float64(len(buckets))
	threshold := mean * hourlySpikeFactor

	hours := make([]int, 0, len(buckets))
	for hour := range buckets {
		hours = append(hours, hour)
	}
	sort.Ints(hours)

	var anomalies []*core.Threat
	for _, hour := range hours {
		count := buckets[hour]
		if float64(count) <= threshold {
			continue
		}
		t := core.NewThreat(AnomalyTimeBased, "Time-based Traffic Anomaly", core.SeverityMedium, 6.5)
		t.Description = fmt.Sprintf("Unusual traffic spike at hour %d", hour)
		t.Confidence = 0.75
		t.SourceIP = "unknown"
		t.DetectedAt = e.now().UTC()
		t.Details["hour"] = hour
		t.Details["request_count"] = count
		t.Details["average"] = mean
		t.Details["threshold"] = threshold
		anomalies = append(anomalies, t)
	}
	return anomalies
}

// analyzeProtocolUsage computes each HTTP method's share of the batch and
// flags unusual write-method usage.
func (e *Engine) analyzeProtocolUsage(entries []core.LogEntry) []*core.Threat {
	counts := make(map[string]int)
	for _, entry := range entries {
		method := entry.Method
		if method == "" {
			method = "UNKNOWN"
		}
		counts[method]++
	}

	methods := make([]string, 0, len(counts))
	for method := range counts {
		methods = append(methods, method)
	}
	sort.Strings(methods)

	total := float64(len(entries))
	var anomalies []*core.Threat
	for _, method := range methods {
		pct := float64(counts[method]) / total * 100

		flagged := (method == "DELETE" && pct > deleteSharePctLimit) ||
			(method == "PUT" && pct > putSharePctLimit) ||
			(method == "PATCH" && pct > patchSharePctLimit)
		if !flagged {
			continue
		}

		t := core.NewThreat(AnomalyProtocol, "Protocol Usage Anomaly", core.SeverityMedium, 6.0)
		t.Description = fmt.Sprintf("Unusual %s method usage pattern", method)
		t.Confidence = 0.70
		t.SourceIP = "unknown"
		t.DetectedAt = e.now().UTC()
		t.Details["method"] = method
		t.Details["count"] = counts[method]
		t.Details["percentage"] = pct
		anomalies = append(anomalies, t)
	}
	return anomalies
}
