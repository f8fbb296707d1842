package routine

import (
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/routined/internal/domain"
	"github.com/eliteGoblin/focusd/routined/internal/schedule"
)

// Finder resolves a routine by id at trigger time (backed by the store).
type Finder func(id string) (domain.Routine, bool)

// Planner converts routine schedules into armed triggers and handles their
// firings. Per routine the state machine is: no triggers armed -> activation
// armed -> (fires) -> activate -> deactivation armed -> (fires) ->
// deactivate -> (if recurring) rearm both identities.
type Planner struct {
	triggers domain.TriggerScheduler
	exec     *Executor
	clock    domain.Clock
	logger   *zap.Logger
	finder   Finder
}

// NewPlanner creates a trigger planner.
func NewPlanner(
	triggers domain.TriggerScheduler,
	exec *Executor,
	clock domain.Clock,
	logger *zap.Logger,
) *Planner {
	return &Planner{
		triggers: triggers,
		exec:     exec,
		clock:    clock,
		logger:   logger,
	}
}

// SetFinder installs the routine lookup used when triggers fire.
func (p *Planner) SetFinder(f Finder) {
	p.finder = f
}

// ScheduleAll schedules every enabled routine.
func (p *Planner) ScheduleAll(routines []domain.Routine) {
	for _, r := range routines {
		if r.Enabled {
			p.ScheduleRoutine(r)
		}
	}
}

// ScheduleRoutine arms the triggers for one routine. If the current moment
// falls inside the schedule window the routine activates immediately and
// only the deactivation trigger is armed.
func (p *Planner) ScheduleRoutine(r domain.Routine) {
	if !r.Enabled || r.Schedule.Type == domain.ScheduleManual {
		return
	}

	now := p.clock.Now()
	if schedule.IsActiveNow(r.Schedule, now) {
		p.exec.Activate(r)
	} else {
		p.armTrigger(r, now, true)
	}
	if r.Schedule.End != nil {
		p.armTrigger(r, now, false)
	}
}

// CancelRoutine cancels both trigger identities for a routine. Cancelling
// triggers that were never armed is not an error.
func (p *Planner) CancelRoutine(routineID string) {
	p.triggers.Cancel(routineID, true)
	p.triggers.Cancel(routineID, false)
	p.logger.Debug("cancelled routine triggers", zap.String("routine_id", routineID))
}

// HandleTrigger processes one trigger firing. Firings for deleted or
// disabled routines are dropped. For recurring routines an activation
// firing rearms the next activation, and a deactivation firing rearms both
// identities: a routine that started mid-window was activated without an
// activation trigger, so deactivation is the point that restores the cycle.
// Arm replaces by identity, so re-arming is harmless.
func (p *Planner) HandleTrigger(routineID string, activation bool) {
	if p.finder == nil {
		p.logger.Error("trigger fired before finder installed",
			zap.String("routine_id", routineID))
		return
	}

	r, ok := p.finder(routineID)
	if !ok || !r.Enabled {
		p.logger.Warn("trigger for missing or disabled routine",
			zap.String("routine_id", routineID),
			zap.Bool("activation", activation))
		return
	}

	now := p.clock.Now()
	if activation {
		p.exec.Activate(r)
		if r.Schedule.Recurring {
			p.armTrigger(r, now, true)
		}
	} else {
		p.exec.Deactivate(r)
		if r.Schedule.Recurring {
			p.armTrigger(r, now, true)
			p.armTrigger(r, now, false)
		}
	}
}

// armTrigger computes the next instant for one trigger identity and arms
// it. Schedules without a computable trigger no-op silently.
func (p *Planner) armTrigger(r domain.Routine, now time.Time, activation bool) {
	at, ok := schedule.NextTriggerTime(r.Schedule, now, activation)
	if !ok {
		p.logger.Debug("no computable trigger time",
			zap.String("routine_id", r.ID),
			zap.Bool("activation", activation))
		return
	}
	p.triggers.Arm(r.ID, activation, at)
	p.logger.Debug("trigger armed",
		zap.String("routine_id", r.ID),
		zap.String("name", r.Name),
		zap.Bool("activation", activation),
		zap.Time("at", at))
}
