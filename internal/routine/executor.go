// Package routine applies routine activation side effects and owns the
// trigger state machine that arms activation/deactivation callbacks.
package routine

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/routined/internal/domain"
	"github.com/eliteGoblin/focusd/routined/internal/limits"
	"github.com/eliteGoblin/focusd/routined/internal/schedule"
)

// Executor holds the process-wide active-routine state. At most one routine
// is active at a time; Activate and Deactivate are the only mutators.
type Executor struct {
	mu          sync.Mutex
	active      *domain.Routine
	activeSince time.Time

	tracker  *limits.Tracker // routine-scoped limit tracker
	notifier domain.Notifier
	clock    domain.Clock
	logger   *zap.Logger
}

// NewExecutor creates the single-active-routine executor.
func NewExecutor(
	tracker *limits.Tracker,
	notifier domain.Notifier,
	clock domain.Clock,
	logger *zap.Logger,
) *Executor {
	return &Executor{
		tracker:  tracker,
		notifier: notifier,
		clock:    clock,
		logger:   logger,
	}
}

// Activate makes r the active routine, deactivating any other active
// routine first, and installs r's limits into the routine-scoped tracker.
// Re-activating the already-active routine only refreshes its limits.
func (e *Executor) Activate(r domain.Routine) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.active != nil {
		if e.active.ID == r.ID {
			e.tracker.SetLimits(r.Limits)
			return
		}
		e.deactivateLocked(*e.active)
	}

	cp := r
	e.active = &cp
	e.activeSince = e.clock.Now()
	e.tracker.SetLimits(r.Limits)

	e.logger.Info("routine activated",
		zap.String("routine_id", r.ID),
		zap.String("name", r.Name),
		zap.Int("limits", len(r.Limits)))
	e.notifier.Notify(domain.NotifyRoutineActivated, "", r.Name)
}

// Deactivate clears the active-routine state, but only if r is the routine
// currently active. This guards against triggers racing for a routine that
// was already replaced or cleared.
func (e *Executor) Deactivate(r domain.Routine) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.active == nil || e.active.ID != r.ID {
		e.logger.Debug("ignoring deactivation for non-active routine",
			zap.String("routine_id", r.ID))
		return
	}
	e.deactivateLocked(r)
}

func (e *Executor) deactivateLocked(r domain.Routine) {
	e.tracker.Clear()
	e.active = nil
	e.activeSince = time.Time{}

	e.logger.Info("routine deactivated",
		zap.String("routine_id", r.ID),
		zap.String("name", r.Name))
	e.notifier.Notify(domain.NotifyRoutineDeactivated, "", r.Name)
}

// ActiveRoutineID returns the active routine id, or empty.
func (e *Executor) ActiveRoutineID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == nil {
		return ""
	}
	return e.active.ID
}

// ActiveRoutine returns a copy of the active routine, if any.
func (e *Executor) ActiveRoutine() (domain.Routine, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == nil {
		return domain.Routine{}, false
	}
	return *e.active, true
}

// ExpireStale deactivates an active routine whose session has outlived the
// schedule's maximum possible duration. Self-healing for missed
// deactivation triggers.
func (e *Executor) ExpireStale() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.active == nil {
		return
	}
	maxDur := schedule.MaxDuration(e.active.Schedule)
	alive := e.clock.Now().Sub(e.activeSince)
	if alive <= maxDur {
		return
	}

	e.logger.Warn("expiring stale active routine",
		zap.String("routine_id", e.active.ID),
		zap.Duration("active_for", alive),
		zap.Duration("max_duration", maxDur))
	e.deactivateLocked(*e.active)
}
