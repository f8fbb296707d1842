package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/eliteGoblin/focusd/routined/internal/domain"
)

// Wire format matches the persisted record shape:
// {id, name, isEnabled, schedule{type, timeHour?, timeMinute?, endTimeHour?,
// endTimeMinute?, daysOfWeek[], isRecurring}, limits[{packageName, limitMinutes}]}

type scheduleRecord struct {
	Type          string   `json:"type"`
	TimeHour      *int     `json:"timeHour,omitempty"`
	TimeMinute    *int     `json:"timeMinute,omitempty"`
	EndTimeHour   *int     `json:"endTimeHour,omitempty"`
	EndTimeMinute *int     `json:"endTimeMinute,omitempty"`
	DaysOfWeek    []string `json:"daysOfWeek"`
	IsRecurring   *bool    `json:"isRecurring,omitempty"`
}

type limitRecord struct {
	PackageName  string `json:"packageName"`
	LimitMinutes int    `json:"limitMinutes"`
}

type routineRecord struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	IsEnabled bool            `json:"isEnabled"`
	Schedule  *scheduleRecord `json:"schedule"`
	Limits    []limitRecord   `json:"limits"`
}

var weekdayNames = map[time.Weekday]string{
	time.Monday:    "MONDAY",
	time.Tuesday:   "TUESDAY",
	time.Wednesday: "WEDNESDAY",
	time.Thursday:  "THURSDAY",
	time.Friday:    "FRIDAY",
	time.Saturday:  "SATURDAY",
	time.Sunday:    "SUNDAY",
}

var weekdaysByName = func() map[string]time.Weekday {
	m := make(map[string]time.Weekday, len(weekdayNames))
	for d, n := range weekdayNames {
		m[n] = d
	}
	return m
}()

func toRecord(r domain.Routine) routineRecord {
	s := r.Schedule
	rec := routineRecord{
		ID:        r.ID,
		Name:      r.Name,
		IsEnabled: r.Enabled,
		Schedule: &scheduleRecord{
			Type:       string(s.Type),
			DaysOfWeek: []string{},
		},
		Limits: []limitRecord{},
	}

	if s.Start != nil {
		h, m := s.Start.Hour, s.Start.Minute
		rec.Schedule.TimeHour = &h
		rec.Schedule.TimeMinute = &m
	}
	if s.End != nil {
		h, m := s.End.Hour, s.End.Minute
		rec.Schedule.EndTimeHour = &h
		rec.Schedule.EndTimeMinute = &m
	}
	for _, d := range s.DaysOfWeek {
		rec.Schedule.DaysOfWeek = append(rec.Schedule.DaysOfWeek, weekdayNames[d])
	}
	recurring := s.Recurring
	rec.Schedule.IsRecurring = &recurring

	for _, l := range r.Limits {
		rec.Limits = append(rec.Limits, limitRecord{
			PackageName:  l.PackageName,
			LimitMinutes: l.LimitMinutes,
		})
	}
	return rec
}

// fromRecord validates the schedule but tolerates an absent id: new
// routines arrive without one and are assigned an id on add.
func fromRecord(rec routineRecord) (domain.Routine, error) {
	if rec.Schedule == nil {
		return domain.Routine{}, fmt.Errorf("routine %s: missing schedule", rec.ID)
	}

	st := domain.ScheduleType(rec.Schedule.Type)
	if !st.Valid() {
		return domain.Routine{}, fmt.Errorf("routine %s: unknown schedule type %q", rec.ID, rec.Schedule.Type)
	}

	s := domain.RoutineSchedule{
		Type:      st,
		Recurring: true,
	}
	if rec.Schedule.IsRecurring != nil {
		s.Recurring = *rec.Schedule.IsRecurring
	}
	if rec.Schedule.TimeHour != nil {
		minute := 0
		if rec.Schedule.TimeMinute != nil {
			minute = *rec.Schedule.TimeMinute
		}
		s.Start = &domain.ClockTime{Hour: *rec.Schedule.TimeHour, Minute: minute}
	}
	if rec.Schedule.EndTimeHour != nil {
		minute := 0
		if rec.Schedule.EndTimeMinute != nil {
			minute = *rec.Schedule.EndTimeMinute
		}
		s.End = &domain.ClockTime{Hour: *rec.Schedule.EndTimeHour, Minute: minute}
	}
	for _, name := range rec.Schedule.DaysOfWeek {
		day, ok := weekdaysByName[name]
		if !ok {
			continue // skip unknown day names, keep the rest
		}
		s.DaysOfWeek = append(s.DaysOfWeek, day)
	}

	r := domain.Routine{
		ID:       rec.ID,
		Name:     rec.Name,
		Enabled:  rec.IsEnabled,
		Schedule: s,
	}
	for _, l := range rec.Limits {
		if l.PackageName == "" || l.LimitMinutes < 0 {
			return domain.Routine{}, fmt.Errorf("routine %s: invalid limit entry", rec.ID)
		}
		r.Limits = append(r.Limits, domain.AppLimit{
			PackageName:  l.PackageName,
			LimitMinutes: l.LimitMinutes,
		})
	}
	return r, nil
}

// MarshalRoutine encodes one routine in the persisted wire format.
func MarshalRoutine(r domain.Routine) ([]byte, error) {
	return json.Marshal(toRecord(r))
}

// UnmarshalRoutine decodes one routine from the persisted wire format.
func UnmarshalRoutine(data []byte) (domain.Routine, error) {
	var rec routineRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return domain.Routine{}, fmt.Errorf("decode routine: %w", err)
	}
	return fromRecord(rec)
}
