// Package audit implements the append-only, retention-bounded audit trail
// shared by the threat detection and compliance engines.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cyberguard-project/cyberguard/internal/core"
)

// Observer receives each appended entry after it has been stored. Delivery
// is fire-and-forget: a panicking observer is recovered and logged, and can
// never fail the appending operation.
type Observer func(entry *core.AuditEntry)

// Trail is a bounded, time-retained, append-only action log.
type Trail struct {
	mu        sync.Mutex
	entries   []*core.AuditEntry
	observers []Observer

	maxEntries int
	trimTo     int
	retention  time.Duration

	logger zerolog.Logger
	now    func() time.Time
}

// NewTrail creates a Trail with the given bounds.
func NewTrail(cfg core.AuditConfig, logger zerolog.Logger) *Trail {
	maxEntries := cfg.MaxEntries
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	trimTo := cfg.TrimTo
	if trimTo <= 0 || trimTo > maxEntries {
		trimTo = maxEntries * 8 / 10
	}
	return &Trail{
		entries:    make([]*core.AuditEntry, 0, 256),
		maxEntries: maxEntries,
		trimTo:     trimTo,
		retention:  cfg.Retention(),
		logger:     logger.With().Str("component", "audit_trail").Logger(),
		now:        time.Now,
	}
}

// AddObserver registers an observer for appended entries.
func (t *Trail) AddObserver(fn Observer) {
	t.mu.Lock()
	t.observers = append(t.observers, fn)
	t.mu.Unlock()
}

// Add assigns an ID, timestamp, and default actor to the entry, appends it,
// and notifies observers. When the trail exceeds its cap it is trimmed to
// the most recent trimTo entries, order preserved.
func (t *Trail) Add(actor, action string, details map[string]any) *core.AuditEntry {
	entry := core.NewAuditEntry(actor, action)
	entry.Timestamp = t.nowUTC()
	for k, v := range details {
		entry.Details[k] = v
	}

	t.mu.Lock()
	t.entries = append(t.entries, entry)
	if len(t.entries) > t.maxEntries {
		trimmed := make([]*core.AuditEntry, t.trimTo)
		copy(trimmed, t.entries[len(t.entries)-t.trimTo:])
		t.entries = trimmed
	}
	observers := make([]Observer, len(t.observers))
	copy(observers, t.observers)
	t.mu.Unlock()

	// Deliver after the state mutation, outside the lock, so a slow
	// observer cannot block concurrent appends.
	for _, fn := range observers {
		t.notify(fn, entry)
	}

	return entry
}

func (t *Trail) notify(fn Observer, entry *core.AuditEntry) {
	defer func() {
		if rec := recover(); rec != nil {
			t.logger.Error().
				Str("entry_id", entry.ID).
				Interface("panic", rec).
				Msg("audit observer panicked")
		}
	}()
	fn(entry)
}

// Cleanup drops entries older than the retention window and returns how
// many were removed.
func (t *Trail) Cleanup() int {
	cutoff := t.nowUTC().Add(-t.retention)

	t.mu.Lock()
	defer t.mu.Unlock()

	kept := t.entries[:0]
	for _, e := range t.entries {
		if e.Timestamp.After(cutoff) {
			kept = append(kept, e)
		}
	}
	removed := len(t.entries) - len(kept)
	t.entries = kept

	if removed > 0 {
		t.logger.Info().Int("removed", removed).Int("remaining", len(t.entries)).Msg("audit trail cleanup completed")
	}
	return removed
}

// Entries returns a most-recent-first page of the trail.
func (t *Trail) Entries(limit, offset int) []*core.AuditEntry {
	t.mu.Lock()
	defer t.mu.Unlock()

	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	n := len(t.entries)
	if offset >= n {
		return []*core.AuditEntry{}
	}

	// Walk backwards so index 0 of the page is the newest entry.
	end := n - offset
	start := end - limit
	if start < 0 {
		start = 0
	}
	page := make([]*core.AuditEntry, 0, end-start)
	for i := end - 1; i >= start; i-- {
		page = append(page, t.entries[i])
	}
	return page
}

// Count returns the number of retained entries.
func (t *Trail) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Start launches the daily retention cleanup loop.
func (t *Trail) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.Cleanup()
			}
		}
	}()
	t.logger.Info().Dur("retention", t.retention).Msg("audit trail started")
}

// SetNowFunc overrides the trail's clock. Used by tests.
func (t *Trail) SetNowFunc(fn func() time.Time) {
	t.mu.Lock()
	t.now = fn
	t.mu.Unlock()
}

func (t *Trail) nowUTC() time.Time {
	t.mu.Lock()
	fn := t.now
	t.mu.Unlock()
	return fn().UTC()
}
