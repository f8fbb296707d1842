package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/focusd/routined/internal/domain"
)

func TestParseClockTime(t *testing.T) {
	tests := []struct {
		in      string
		want    domain.ClockTime
		wantErr bool
	}{
		{in: "09:30", want: domain.ClockTime{Hour: 9, Minute: 30}},
		{in: "0:00", want: domain.ClockTime{Hour: 0, Minute: 0}},
		{in: "23:59", want: domain.ClockTime{Hour: 23, Minute: 59}},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "noon", wantErr: true},
		{in: "12", wantErr: true},
	}
	for _, tc := range tests {
		got, err := parseClockTime(tc.in)
		if tc.wantErr {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestParseWeekdays(t *testing.T) {
	days, err := parseWeekdays("monday, Wednesday,FRIDAY")
	require.NoError(t, err)
	assert.Equal(t, []time.Weekday{time.Monday, time.Wednesday, time.Friday}, days)

	_, err = parseWeekdays("monday,someday")
	assert.Error(t, err)
}

func TestParseLimit(t *testing.T) {
	l, err := parseLimit("org.example.social=15")
	require.NoError(t, err)
	assert.Equal(t, domain.AppLimit{PackageName: "org.example.social", LimitMinutes: 15}, l)

	_, err = parseLimit("org.example.social")
	assert.Error(t, err)

	_, err = parseLimit("org.example.social=-5")
	assert.Error(t, err)
}

func TestFormatWindow(t *testing.T) {
	s := domain.RoutineSchedule{
		Type:       domain.ScheduleWeekly,
		Start:      &domain.ClockTime{Hour: 9},
		End:        &domain.ClockTime{Hour: 17, Minute: 30},
		DaysOfWeek: []time.Weekday{time.Monday, time.Friday},
	}
	assert.Equal(t, "09:00 - 17:30 on Mon,Fri", formatWindow(s))

	assert.Equal(t, "manual", formatWindow(domain.RoutineSchedule{Type: domain.ScheduleManual}))

	onlyStart := domain.RoutineSchedule{
		Type:  domain.ScheduleDaily,
		Start: &domain.ClockTime{Hour: 21},
	}
	assert.Equal(t, "21:00 - --:--", formatWindow(onlyStart))
}
