// Package schedule computes routine activation windows and trigger instants.
// Pure calendar arithmetic; no I/O.
package schedule

import (
	"time"

	"github.com/eliteGoblin/focusd/routined/internal/domain"
)

// DefaultMaxDuration bounds a routine session when the schedule is missing
// either time bound.
const DefaultMaxDuration = 24 * time.Hour

// IsActiveNow reports whether the schedule's window covers now.
// The window is exclusive on both ends. Weekly schedules additionally
// require now's weekday to be configured. Manual routines are never
// scheduled-active; their activation is always explicit.
func IsActiveNow(s domain.RoutineSchedule, now time.Time) bool {
	if s.Start == nil || s.End == nil {
		return false
	}

	start := timeOfDayOn(now, *s.Start)
	end := timeOfDayOn(now, *s.End)

	switch s.Type {
	case domain.ScheduleDaily:
		return now.After(start) && now.Before(end)
	case domain.ScheduleWeekly:
		return s.OnDay(now.Weekday()) && now.After(start) && now.Before(end)
	default:
		return false
	}
}

// NextTriggerTime returns the next activation (useStart) or deactivation
// trigger instant strictly after now. ok is false when no trigger is
// computable: manual schedules, a missing time bound, or a weekly schedule
// with no configured days.
func NextTriggerTime(s domain.RoutineSchedule, now time.Time, useStart bool) (at time.Time, ok bool) {
	t := s.Start
	if !useStart {
		t = s.End
	}
	if t == nil {
		return time.Time{}, false
	}

	switch s.Type {
	case domain.ScheduleDaily:
		next := timeOfDayOn(now, *t)
		if !next.After(now) {
			next = next.AddDate(0, 0, 1)
		}
		return next, true

	case domain.ScheduleWeekly:
		if len(s.DaysOfWeek) == 0 {
			return time.Time{}, false
		}
		next := timeOfDayOn(now, *t)
		for i := 0; i < 7; i++ {
			if s.OnDay(next.Weekday()) && next.After(now) {
				return next, true
			}
			next = next.AddDate(0, 0, 1)
		}
		// Only reachable when the sole matching day is today and its time
		// already passed: the day-8 candidate is that weekday next week.
		return next, true

	default:
		return time.Time{}, false
	}
}

// MaxDuration returns the longest a session of this schedule can last.
// An end time earlier than the start time means the window wraps past
// midnight. Used to expire stale active-routine state after a missed
// deactivation trigger.
func MaxDuration(s domain.RoutineSchedule) time.Duration {
	if s.Start == nil || s.End == nil {
		return DefaultMaxDuration
	}

	startMin := s.Start.Hour*60 + s.Start.Minute
	endMin := s.End.Hour*60 + s.End.Minute

	if endMin > startMin {
		return time.Duration(endMin-startMin) * time.Minute
	}
	return time.Duration((24*60-startMin)+endMin) * time.Minute
}

// timeOfDayOn anchors a clock time to the calendar day of ref, seconds zeroed.
func timeOfDayOn(ref time.Time, t domain.ClockTime) time.Time {
	return time.Date(ref.Year(), ref.Month(), ref.Day(), t.Hour, t.Minute, 0, 0, ref.Location())
}
