package core

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// EventBus wraps NATS JetStream for log ingestion and for publishing
// detected threats and audit entries to downstream consumers (the
// dashboard API, notification workers). Publication is fire-and-forget
// from the engines' point of view: a publish failure is logged by the
// caller and never fails the detecting operation.
type EventBus struct {
	nc     *nats.Conn
	js     nats.JetStreamContext
	ns     *server.Server
	logger zerolog.Logger
	mu     sync.RWMutex
	subs   []*nats.Subscription

	metrics *BusMetrics
}

// BusMetrics tracks event bus performance counters.
type BusMetrics struct {
	mu               sync.Mutex
	LogsPublished    int64
	ThreatsPublished int64
	AuditPublished   int64
	PublishFailed    int64
	MessagesAcked    int64
	MessagesNaked    int64
}

// NewEventBus creates a new EventBus. If cfg.Embedded is true, it starts an
// embedded NATS server so the engine runs with zero external dependencies.
func NewEventBus(cfg *BusConfig, logger zerolog.Logger) (*EventBus, error) {
	bus := &EventBus{
		logger:  logger.With().Str("component", "event_bus").Logger(),
		subs:    make([]*nats.Subscription, 0),
		metrics: &BusMetrics{},
	}

	if cfg.Embedded {
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating NATS data dir: %w", err)
		}

		opts := &server.Options{
			Host:      "127.0.0.1",
			Port:      cfg.Port,
			JetStream: true,
			StoreDir:  cfg.DataDir,
			NoLog:     true,
			NoSigs:    true,
		}

		ns, err := server.NewServer(opts)
		if err != nil {
			return nil, fmt.Errorf("creating embedded NATS server: %w", err)
		}

		ns.Start()

		if !ns.ReadyForConnections(10 * time.Second) {
			return nil, fmt.Errorf("embedded NATS server failed to start within timeout")
		}

		bus.ns = ns
		bus.logger.Info().Int("port", cfg.Port).Msg("embedded NATS server started")
	}

	url := cfg.URL
	if cfg.Embedded {
		url = fmt.Sprintf("nats://127.0.0.1:%d", cfg.Port)
	}

	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				bus.logger.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			bus.logger.Info().Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}
	bus.nc = nc

	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("creating JetStream context: %w", err)
	}
	bus.js = js

	streams := []*nats.StreamConfig{
		{
			Name:      "GUARD_LOGS",
			Subjects:  []string{"guard.logs.>"},
			Retention: nats.LimitsPolicy,
			MaxAge:    24 * time.Hour,      // raw log entries are short-lived
			MaxBytes:  1024 * 1024 * 1024,  // 1GB max
			Storage:   nats.FileStorage,
			Discard:   nats.DiscardOld,
		},
		{
			Name:      "GUARD_THREATS",
			Subjects:  []string{"guard.threats.>"},
			Retention: nats.LimitsPolicy,
			MaxAge:    24 * time.Hour * 7, // matches threat retention
			MaxBytes:  512 * 1024 * 1024,
			Storage:   nats.FileStorage,
			Discard:   nats.DiscardOld,
		},
		{
			Name:      "GUARD_AUDIT",
			Subjects:  []string{"guard.audit.>"},
			Retention: nats.LimitsPolicy,
			MaxAge:    24 * time.Hour * 90, // matches audit retention
			MaxBytes:  256 * 1024 * 1024,
			Storage:   nats.FileStorage,
			Discard:   nats.DiscardOld,
		},
	}

	for _, sc := range streams {
		// AddStream returns the existing stream if config matches; if the
		// stream exists with a different config (e.g. after an upgrade),
		// update it instead.
		if _, err := js.AddStream(sc); err != nil {
			if _, updateErr := js.UpdateStream(sc); updateErr != nil {
				return nil, fmt.Errorf("creating/updating stream %s: %w (original: %v)", sc.Name, updateErr, err)
			}
		}
	}

	bus.logger.Info().Str("url", url).Msg("connected to NATS JetStream")
	return bus, nil
}

// PublishLogEntry publishes a raw log entry for ingestion by the detection
// engine. Used by external collectors and by the CLI ingest path.
func (b *EventBus) PublishLogEntry(entry *LogEntry) error {
	data, err := entry.Marshal()
	if err != nil {
		return fmt.Errorf("marshaling log entry: %w", err)
	}

	source := entry.SourceIP
	if source == "" {
		source = "unknown"
	}
	subject := fmt.Sprintf("guard.logs.%s", sanitizeToken(source))
	if _, err := b.js.Publish(subject, data); err != nil {
		b.countPublishFailure()
		return fmt.Errorf("publishing log entry to %s: %w", subject, err)
	}

	b.metrics.mu.Lock()
	b.metrics.LogsPublished++
	b.metrics.mu.Unlock()
	return nil
}

// PublishThreat publishes a detected threat to the threat stream.
func (b *EventBus) PublishThreat(threat *Threat) error {
	data, err := threat.Marshal()
	if err != nil {
		return fmt.Errorf("marshaling threat: %w", err)
	}

	subject := fmt.Sprintf("guard.threats.%s.%s", sanitizeToken(threat.PatternID), threat.Severity.String())
	if _, err := b.js.Publish(subject, data); err != nil {
		b.countPublishFailure()
		return fmt.Errorf("publishing threat to %s: %w", subject, err)
	}

	b.metrics.mu.Lock()
	b.metrics.ThreatsPublished++
	b.metrics.mu.Unlock()

	b.logger.Debug().
		Str("threat_id", threat.ID).
		Str("subject", subject).
		Str("severity", threat.Severity.String()).
		Msg("threat published")

	return nil
}

// PublishAuditEntry publishes an audit entry to the audit stream.
func (b *EventBus) PublishAuditEntry(entry *AuditEntry) error {
	data, err := entry.Marshal()
	if err != nil {
		return fmt.Errorf("marshaling audit entry: %w", err)
	}

	subject := fmt.Sprintf("guard.audit.%s", sanitizeToken(entry.Actor))
	if _, err := b.js.Publish(subject, data); err != nil {
		b.countPublishFailure()
		return fmt.Errorf("publishing audit entry to %s: %w", subject, err)
	}

	b.metrics.mu.Lock()
	b.metrics.AuditPublished++
	b.metrics.mu.Unlock()
	return nil
}

// Subscribe creates a durable subscription to a subject pattern.
func (b *EventBus) Subscribe(subject, durableName string, handler func(msg *nats.Msg)) error {
	opts := []nats.SubOpt{nats.DeliverNew(), nats.AckExplicit()}
	if durableName != "" {
		opts = append(opts, nats.Durable(durableName))
	}
	sub, err := b.js.Subscribe(subject, handler, opts...)
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", subject, err)
	}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	b.logger.Debug().Str("subject", subject).Str("durable", durableName).Msg("subscribed")
	return nil
}

// SubscribeToLogEntries subscribes to all ingested log entries with a
// durable consumer and hands them to the detection engine.
func (b *EventBus) SubscribeToLogEntries(handler func(entry *LogEntry)) error {
	return b.Subscribe("guard.logs.>", "cyberguard-ingest", func(msg *nats.Msg) {
		entry, err := UnmarshalLogEntry(msg.Data)
		if err != nil {
			b.logger.Error().Err(err).Msg("failed to unmarshal log entry")
			_ = msg.Nak()
			b.metrics.mu.Lock()
			b.metrics.MessagesNaked++
			b.metrics.mu.Unlock()
			return
		}
		handler(entry)
		_ = msg.Ack()
		b.metrics.mu.Lock()
		b.metrics.MessagesAcked++
		b.metrics.mu.Unlock()
	})
}

// Close shuts down the event bus.
func (b *EventBus) Close() error {
	b.mu.Lock()
	for _, sub := range b.subs {
		_ = sub.Unsubscribe()
	}
	b.subs = nil
	b.mu.Unlock()

	if b.nc != nil {
		b.nc.Close()
	}

	if b.ns != nil {
		b.ns.Shutdown()
		b.ns.WaitForShutdown()
		b.logger.Info().Msg("embedded NATS server stopped")
	}

	return nil
}

// IsConnected returns true if the NATS connection is active.
func (b *EventBus) IsConnected() bool {
	return b.nc != nil && b.nc.IsConnected()
}

// GetMetrics returns a snapshot of bus metrics.
func (b *EventBus) GetMetrics() map[string]int64 {
	b.metrics.mu.Lock()
	defer b.metrics.mu.Unlock()
	return map[string]int64{
		"logs_published":    b.metrics.LogsPublished,
		"threats_published": b.metrics.ThreatsPublished,
		"audit_published":   b.metrics.AuditPublished,
		"publish_failed":    b.metrics.PublishFailed,
		"messages_acked":    b.metrics.MessagesAcked,
		"messages_naked":    b.metrics.MessagesNaked,
	}
}

func (b *EventBus) countPublishFailure() {
	b.metrics.mu.Lock()
	b.metrics.PublishFailed++
	b.metrics.mu.Unlock()
}

// sanitizeToken makes a value safe to embed in a NATS subject.
func sanitizeToken(s string) string {
	if s == "" {
		return "unknown"
	}
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
			out = append(out, c)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
