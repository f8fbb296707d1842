// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import "time"

// ScheduleType identifies how a routine is triggered.
type ScheduleType string

const (
	ScheduleDaily  ScheduleType = "DAILY"
	ScheduleWeekly ScheduleType = "WEEKLY"
	ScheduleManual ScheduleType = "MANUAL"
)

// Valid reports whether t is a known schedule type.
func (t ScheduleType) Valid() bool {
	switch t {
	case ScheduleDaily, ScheduleWeekly, ScheduleManual:
		return true
	}
	return false
}

// ClockTime is a wall-clock time of day.
type ClockTime struct {
	Hour   int
	Minute int
}

// RoutineSchedule defines when a routine activates and deactivates.
// Manual routines have no computable trigger times. End is optional:
// a schedule with only Start is activation-only.
type RoutineSchedule struct {
	Type       ScheduleType
	Start      *ClockTime
	End        *ClockTime
	DaysOfWeek []time.Weekday // weekly schedules only
	Recurring  bool
}

// OnDay reports whether d is one of the schedule's configured weekdays.
func (s RoutineSchedule) OnDay(d time.Weekday) bool {
	for _, day := range s.DaysOfWeek {
		if day == d {
			return true
		}
	}
	return false
}

// AppLimit caps usage of one package while its owning routine is active.
type AppLimit struct {
	PackageName  string
	LimitMinutes int
}

// Limit returns the configured limit as a duration.
func (l AppLimit) Limit() time.Duration {
	return time.Duration(l.LimitMinutes) * time.Minute
}

// Routine is a named, schedulable bundle of app-usage limits.
// Owned by the routine store; mutated only through store operations.
type Routine struct {
	ID       string
	Name     string
	Enabled  bool
	Schedule RoutineSchedule
	Limits   []AppLimit
}

// NotificationKind classifies user-facing notifications.
type NotificationKind string

const (
	NotifyBlocked            NotificationKind = "blocked"
	NotifyReminder           NotificationKind = "reminder"
	NotifyGracePeriod        NotificationKind = "gracePeriodStarted"
	NotifyLimitReached       NotificationKind = "limitReached"
	NotifyRoutineActivated   NotificationKind = "routineActivated"
	NotifyRoutineDeactivated NotificationKind = "routineDeactivated"
)

// ForegroundEvent is one foreground-app-change signal from the platform.
type ForegroundEvent struct {
	PackageName string
	Kind        string
	At          time.Time
}
