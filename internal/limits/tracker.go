// Package limits tracks per-app usage-limit state: reminder flags, grace
// periods, and block decisions. Two tracker instances run with identical
// contracts: one for regular daily limits, one scoped to the active routine.
package limits

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/routined/internal/domain"
)

// Config holds the tunable thresholds of the limit state machine.
type Config struct {
	// GracePeriod is how long blocking is deferred after a limit is exceeded.
	GracePeriod time.Duration
	// ReminderWindow is the remaining-time band that triggers the
	// once-per-window reminder.
	ReminderWindow time.Duration
	// ReminderCheckInterval throttles reminder evaluation across all
	// packages of this tracker.
	ReminderCheckInterval time.Duration
}

// DefaultConfig returns the default thresholds.
func DefaultConfig() Config {
	return Config{
		GracePeriod:           5 * time.Minute,
		ReminderWindow:        10 * time.Minute,
		ReminderCheckInterval: 30 * time.Second,
	}
}

// Verdict is the outcome of one limit observation.
type Verdict int

const (
	// VerdictAllow: under limit; evaluation may continue to other limits.
	VerdictAllow Verdict = iota
	// VerdictGrace: over limit but inside the grace window; the app stays
	// in the foreground and no further limits are evaluated.
	VerdictGrace
	// VerdictBlock: over limit and grace elapsed; block now.
	VerdictBlock
)

type entry struct {
	reminderSent   bool
	graceStartedAt time.Time
	blockNotified  bool
}

// Tracker answers "is this app currently over limit" and owns the
// reminder/grace state machine. Safe for use from multiple goroutines.
type Tracker struct {
	mu                sync.Mutex
	scope             string
	cfg               Config
	limits            map[string]time.Duration
	state             map[string]*entry
	lastReminderCheck time.Time

	usage    domain.UsageStatsProvider
	notifier domain.Notifier
	clock    domain.Clock
	logger   *zap.Logger
}

// NewTracker creates a limit tracker. scope names the limit source in
// notifications and logs (e.g. "daily", "routine").
func NewTracker(
	scope string,
	cfg Config,
	usage domain.UsageStatsProvider,
	notifier domain.Notifier,
	clock domain.Clock,
	logger *zap.Logger,
) *Tracker {
	return &Tracker{
		scope:    scope,
		cfg:      cfg,
		limits:   make(map[string]time.Duration),
		state:    make(map[string]*entry),
		usage:    usage,
		notifier: notifier,
		clock:    clock,
		logger:   logger,
	}
}

// SetLimit configures the limit for a single package.
func (t *Tracker) SetLimit(pkg string, limit time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.limits[pkg] = limit
}

// SetLimits replaces all configured limits and resets runtime state.
// Used when a routine activates with its limit list.
func (t *Tracker) SetLimits(ls []domain.AppLimit) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.limits = make(map[string]time.Duration, len(ls))
	t.state = make(map[string]*entry)
	for _, l := range ls {
		t.limits[l.PackageName] = l.Limit()
	}
}

// SetConfig replaces the thresholds (config reload).
func (t *Tracker) SetConfig(cfg Config) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cfg = cfg
}

// HasLimit reports whether pkg has a configured limit.
func (t *Tracker) HasLimit(pkg string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.limits[pkg]
	return ok
}

// Limit returns the configured limit for pkg (zero if none).
func (t *Tracker) Limit(pkg string) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.limits[pkg]
}

// UsageTime delegates to the external usage provider.
func (t *Tracker) UsageTime(pkg string) time.Duration {
	return t.usage.UsageTime(pkg)
}

// Clear removes all limits and runtime state (routine deactivation).
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.limits = make(map[string]time.Duration)
	t.state = make(map[string]*entry)
}

// Reset clears the runtime state for one package.
func (t *Tracker) Reset(pkg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.state, pkg)
}

// ResetWindow clears all runtime state while keeping configured limits.
// Called on daily rollover of the usage window.
func (t *Tracker) ResetWindow() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = make(map[string]*entry)
	t.lastReminderCheck = time.Time{}
}

// Observe runs the reminder and grace state machine for one foreground
// observation of pkg and returns the enforcement verdict.
func (t *Tracker) Observe(pkg string) Verdict {
	t.mu.Lock()
	defer t.mu.Unlock()

	limit, ok := t.limits[pkg]
	if !ok {
		return VerdictAllow
	}

	used := t.usage.UsageTime(pkg)
	now := t.clock.Now()
	e := t.state[pkg]
	if e == nil {
		e = &entry{}
		t.state[pkg] = e
	}

	if now.Sub(t.lastReminderCheck) > t.cfg.ReminderCheckInterval {
		remaining := limit - used
		if remaining > 0 && remaining <= t.cfg.ReminderWindow && !e.reminderSent {
			t.logger.Debug("sending limit reminder",
				zap.String("package", pkg),
				zap.String("scope", t.scope),
				zap.Duration("remaining", remaining))
			t.notifier.Notify(domain.NotifyReminder, pkg,
				fmt.Sprintf("%d minutes remaining", int(remaining.Minutes())+1))
			e.reminderSent = true
		}
		t.lastReminderCheck = now
	}

	if used < limit {
		return VerdictAllow
	}

	if e.graceStartedAt.IsZero() {
		e.graceStartedAt = now
		t.logger.Info("grace period started",
			zap.String("package", pkg),
			zap.String("scope", t.scope))
		t.notifier.Notify(domain.NotifyGracePeriod, pkg, "time to wrap up")
		return VerdictGrace
	}

	if now.Sub(e.graceStartedAt) < t.cfg.GracePeriod {
		return VerdictGrace
	}

	if !e.blockNotified {
		t.notifier.Notify(domain.NotifyLimitReached, pkg,
			fmt.Sprintf("%s limit of %s reached", t.scope, formatLimit(limit)))
		e.blockNotified = true
	}
	return VerdictBlock
}

// formatLimit renders a limit as HH:MM.
func formatLimit(d time.Duration) string {
	total := int(d / time.Minute)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
