package detect

import (
	"math"
	"sync"
	"time"
)

// Sliding-window thresholds for the specialized indicator scorers.
const (
	bruteForceWindow    = 5 * time.Minute
	bruteForceThreshold = 10

	ddosWindow            = time.Minute
	ddosRequestThreshold  = 1000
	ddosUniqueIPThreshold = 100

	baselineDecay = 24 * time.Hour
)

type ddosSample struct {
	at time.Time
	ip string
}

// BaselineStore holds the rolling anomaly baselines: per-IP authentication
// failure windows for brute-force scoring and one global request window for
// DDoS scoring. All windows are pruned lazily on access and periodically by
// the engine's hourly decay job.
type BaselineStore struct {
	mu       sync.Mutex
	failures map[string][]time.Time
	requests []ddosSample
}

// NewBaselineStore creates an empty baseline store.
func NewBaselineStore() *BaselineStore {
	return &BaselineStore{
		failures: make(map[string][]time.Time),
	}
}

// BruteForceScore records an authentication observation for the source IP
// and returns the brute-force bonus score, or 0 when the windowed failure
// count is below threshold. Only failure observations extend the window;
// every call prunes it.
func (b *BaselineStore) BruteForceScore(sourceIP string, isFailure bool, now time.Time) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	window := b.failures[sourceIP]
	if isFailure {
		window = append(window, now)
	}

	cutoff := now.Add(-bruteForceWindow)
	recent := window[:0]
	for _, t := range window {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	b.failures[sourceIP] = recent

	if len(recent) >= bruteForceThreshold {
		return 8.0 + math.Min(float64(len(recent)-bruteForceThreshold), 20)*0.1
	}
	return 0
}

// DDoSScore records a request in the global window and returns the DDoS
// bonus score. A non-zero score requires BOTH thresholds jointly: at least
// 1000 requests AND at least 100 distinct source IPs within one minute.
func (b *BaselineStore) DDoSScore(sourceIP string, now time.Time) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.requests = append(b.requests, ddosSample{at: now, ip: sourceIP})

	cutoff := now.Add(-ddosWindow)
	recent := b.requests[:0]
	for _, s := range b.requests {
		if s.at.After(cutoff) {
			recent = append(recent, s)
		}
	}
	b.requests = recent

	if len(recent) < ddosRequestThreshold {
		return 0
	}

	distinct := make(map[string]struct{}, len(recent))
	for _, s := range recent {
		if s.ip != "" {
			distinct[s.ip] = struct{}{}
		}
	}
	if len(distinct) < ddosUniqueIPThreshold {
		return 0
	}

	return 8.0 + math.Min(float64(len(recent)-ddosRequestThreshold)/100, 2.0)
}

// Prune drops baseline data older than the decay window and removes empty
// per-IP entries. Returns the number of timestamps dropped. Called hourly
// by the engine.
func (b *BaselineStore) Prune(now time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	cutoff := now.Add(-baselineDecay)
	dropped := 0

	for ip, window := range b.failures {
		recent := window[:0]
		for _, t := range window {
			if t.After(cutoff) {
				recent = append(recent, t)
			}
		}
		dropped += len(window) - len(recent)
		if len(recent) == 0 {
			delete(b.failures, ip)
		} else {
			b.failures[ip] = recent
		}
	}

	recent := b.requests[:0]
	for _, s := range b.requests {
		if s.at.After(cutoff) {
			recent = append(recent, s)
		}
	}
	dropped += len(b.requests) - len(recent)
	b.requests = recent

	return dropped
}

// TrackedIPs returns the number of IPs with an active failure window.
func (b *BaselineStore) TrackedIPs() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.failures)
}
