// Package infra implements infrastructure concerns (triggers, persistence,
// usage tracking, process control, notifications).
package infra

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/routined/internal/domain"
)

type triggerKey struct {
	routineID  string
	activation bool
}

// AlarmService implements domain.TriggerScheduler with in-process timers.
// Each (routineID, activation) identity holds at most one timer; arming
// again replaces the pending one. When exact delivery is not permitted,
// deadlines are deferred to the next minute boundary instead of failing.
type AlarmService struct {
	mu      sync.Mutex
	timers  map[triggerKey]*time.Timer
	handler func(routineID string, activation bool)
	exact   bool
	logger  *zap.Logger
}

// NewAlarmService creates the trigger adapter. exact=false degrades all
// deliveries to minute granularity.
func NewAlarmService(exact bool, logger *zap.Logger) *AlarmService {
	if !exact {
		logger.Warn("exact trigger delivery unavailable, falling back to minute-granularity scheduling")
	}
	return &AlarmService{
		timers: make(map[triggerKey]*time.Timer),
		exact:  exact,
		logger: logger,
	}
}

// SetHandler installs the callback invoked when a trigger fires. Must be
// called before any trigger can fire.
func (a *AlarmService) SetHandler(h func(routineID string, activation bool)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handler = h
}

// Arm schedules a one-shot trigger at the given instant, replacing any
// pending trigger with the same identity.
func (a *AlarmService) Arm(routineID string, activation bool, at time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	k := triggerKey{routineID: routineID, activation: activation}
	if old, ok := a.timers[k]; ok {
		old.Stop()
		delete(a.timers, k)
	}

	fireAt := at
	if !a.exact {
		fireAt = at.Truncate(time.Minute).Add(time.Minute)
	}
	delay := time.Until(fireAt)
	if delay < 0 {
		delay = 0
	}

	a.timers[k] = time.AfterFunc(delay, func() { a.fire(k) })
	a.logger.Debug("trigger armed",
		zap.String("routine_id", routineID),
		zap.Bool("activation", activation),
		zap.Time("at", fireAt),
		zap.Bool("exact", a.exact))
}

// Cancel stops a pending trigger. Cancelling an absent trigger is not an
// error.
func (a *AlarmService) Cancel(routineID string, activation bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	k := triggerKey{routineID: routineID, activation: activation}
	if t, ok := a.timers[k]; ok {
		t.Stop()
		delete(a.timers, k)
	}
}

// Armed reports whether a trigger with the given identity is pending.
func (a *AlarmService) Armed(routineID string, activation bool) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.timers[triggerKey{routineID: routineID, activation: activation}]
	return ok
}

// Stop cancels all pending triggers.
func (a *AlarmService) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for k, t := range a.timers {
		t.Stop()
		delete(a.timers, k)
	}
}

func (a *AlarmService) fire(k triggerKey) {
	a.mu.Lock()
	delete(a.timers, k)
	h := a.handler
	a.mu.Unlock()

	if h == nil {
		a.logger.Error("trigger fired with no handler installed",
			zap.String("routine_id", k.routineID))
		return
	}
	h(k.routineID, k.activation)
}

// Ensure AlarmService implements domain.TriggerScheduler.
var _ domain.TriggerScheduler = (*AlarmService)(nil)
