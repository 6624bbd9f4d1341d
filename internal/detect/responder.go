package detect

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/cyberguard-project/cyberguard/internal/audit"
	"github.com/cyberguard-project/cyberguard/internal/core"
)

// Enforcer is the seam to the external enforcement collaborators. In
// production this is backed by firewall/load-balancer/notification
// integrations; the engine only decides WHAT to do, never HOW.
type Enforcer interface {
	// BlockIP blocks the source IP for the given duration.
	BlockIP(ctx context.Context, ip string, duration time.Duration) error
	// ActivateRateLimiting enables rate limiting against the source IP.
	ActivateRateLimiting(ctx context.Context, ip string) error
	// SendSecurityAlert notifies operators about the threat.
	SendSecurityAlert(ctx context.Context, threat *core.Threat) error
}

// LogEnforcer is the default Enforcer: it logs each requested action and
// records it in the audit trail without touching any real infrastructure.
type LogEnforcer struct {
	Logger zerolog.Logger
	Trail  *audit.Trail
}

func (l *LogEnforcer) BlockIP(_ context.Context, ip string, duration time.Duration) error {
	l.Logger.Info().Str("ip", ip).Dur("duration", duration).Msg("blocking IP")
	if l.Trail != nil {
		l.Trail.Add("system", "IP_BLOCKED", map[string]any{"ip": ip, "duration": duration.String()})
	}
	return nil
}

func (l *LogEnforcer) ActivateRateLimiting(_ context.Context, ip string) error {
	l.Logger.Info().Str("ip", ip).Msg("activating rate limiting")
	if l.Trail != nil {
		l.Trail.Add("system", "RATE_LIMITING_ACTIVATED", map[string]any{"ip": ip})
	}
	return nil
}

func (l *LogEnforcer) SendSecurityAlert(_ context.Context, threat *core.Threat) error {
	l.Logger.Info().Str("threat_id", threat.ID).Str("type", threat.Type).Msg("sending security alert")
	if l.Trail != nil {
		l.Trail.Add("system", "SECURITY_ALERT_SENT", map[string]any{
			"threat_id": threat.ID,
			"type":      threat.Type,
			"severity":  threat.Severity.String(),
		})
	}
	return nil
}

// Responder dispatches automated responses for critical threats. Enforcer
// failures are logged and audited but never propagate to the detection
// path.
type Responder struct {
	enforcer Enforcer
	logger   zerolog.Logger
	trail    *audit.Trail
}

// NewResponder creates a Responder around the given enforcer.
func NewResponder(enforcer Enforcer, logger zerolog.Logger, trail *audit.Trail) *Responder {
	return &Responder{
		enforcer: enforcer,
		logger:   logger.With().Str("component", "responder").Logger(),
		trail:    trail,
	}
}

// Trigger runs the automated response dispatch table for the threat.
func (r *Responder) Trigger(ctx context.Context, threat *core.Threat) {
	r.logger.Info().
		Str("threat_id", threat.ID).
		Str("pattern_id", threat.PatternID).
		Msg("triggering automated response")

	var actions []string

	switch threat.PatternID {
	case PatternBruteForce:
		r.run(ctx, threat, "block_ip_15m", &actions, func() error {
			return r.enforcer.BlockIP(ctx, threat.SourceIP, 15*time.Minute)
		})
	case PatternDDoS:
		r.run(ctx, threat, "rate_limit", &actions, func() error {
			return r.enforcer.ActivateRateLimiting(ctx, threat.SourceIP)
		})
	case PatternSQLInjection:
		r.run(ctx, threat, "block_ip_1h", &actions, func() error {
			return r.enforcer.BlockIP(ctx, threat.SourceIP, time.Hour)
		})
		r.run(ctx, threat, "alert", &actions, func() error {
			return r.enforcer.SendSecurityAlert(ctx, threat)
		})
	default:
		return
	}

	if r.trail != nil && len(actions) > 0 {
		r.trail.Add("system", "AUTOMATED_RESPONSE_TRIGGERED", map[string]any{
			"threat_id":  threat.ID,
			"pattern_id": threat.PatternID,
			"source_ip":  threat.SourceIP,
			"actions":    actions,
		})
	}
}

func (r *Responder) run(ctx context.Context, threat *core.Threat, action string, actions *[]string, fn func() error) {
	if err := fn(); err != nil {
		r.logger.Error().Err(err).
			Str("threat_id", threat.ID).
			Str("action", action).
			Msg("automated response action failed")
		return
	}
	*actions = append(*actions, action)
}
