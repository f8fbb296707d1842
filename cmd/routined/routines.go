package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/eliteGoblin/focusd/routined/internal/domain"
)

var routinesCmd = &cobra.Command{
	Use:   "routines",
	Short: "Manage routines",
}

var routinesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all routines",
	RunE:  runRoutinesList,
}

var routinesAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Add a routine",
	Long: `Adds a routine. Scheduled routines need --start (and usually --end) in
HH:MM; weekly routines additionally take --days with comma-separated day
names. Manual routines (--type MANUAL) are toggled by hand.

Examples:
  routined routines add "Evening Wind Down" --type DAILY --start 21:00 --end 23:00 \
      --limit org.example.social=15
  routined routines add "Deep Work" --type WEEKLY --start 09:00 --end 12:00 \
      --days monday,tuesday,wednesday --limit org.example.video=0
  routined routines add "Break Glass" --type MANUAL --limit org.example.social=5`,
	Args: cobra.ExactArgs(1),
	RunE: runRoutinesAdd,
}

var routinesToggleCmd = &cobra.Command{
	Use:   "toggle ID",
	Short: "Enable or disable a routine",
	Args:  cobra.ExactArgs(1),
	RunE:  runRoutinesToggle,
}

var routinesDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a routine",
	Args:  cobra.ExactArgs(1),
	RunE:  runRoutinesDelete,
}

var (
	addType      string
	addStart     string
	addEnd       string
	addDays      string
	addLimits    []string
	addEnabled   bool
	addRecurring bool
)

func init() {
	routinesAddCmd.Flags().StringVar(&addType, "type", "DAILY", "Schedule type: DAILY, WEEKLY, or MANUAL")
	routinesAddCmd.Flags().StringVar(&addStart, "start", "", "Activation time (HH:MM)")
	routinesAddCmd.Flags().StringVar(&addEnd, "end", "", "Deactivation time (HH:MM)")
	routinesAddCmd.Flags().StringVar(&addDays, "days", "", "Comma-separated weekdays (weekly schedules)")
	routinesAddCmd.Flags().StringArrayVar(&addLimits, "limit", nil, "App limit as package=minutes (repeatable)")
	routinesAddCmd.Flags().BoolVar(&addEnabled, "enabled", true, "Enable the routine immediately")
	routinesAddCmd.Flags().BoolVar(&addRecurring, "recurring", true, "Rearm triggers after each firing")

	routinesCmd.AddCommand(routinesListCmd)
	routinesCmd.AddCommand(routinesAddCmd)
	routinesCmd.AddCommand(routinesToggleCmd)
	routinesCmd.AddCommand(routinesDeleteCmd)
}

func runRoutinesList(cmd *cobra.Command, args []string) error {
	routines, err := newClient(serverAddr).Routines()
	if err != nil {
		return err
	}
	if len(routines) == 0 {
		fmt.Println("No routines configured.")
		return nil
	}

	fmt.Println("\n=== Routines ===")
	for _, r := range routines {
		state := "disabled"
		if r.Enabled {
			state = "enabled"
		}
		fmt.Printf("\n[%s] %s (%s, %s)\n", r.ID, r.Name, r.Schedule.Type, state)
		fmt.Printf("  Window: %s\n", formatWindow(r.Schedule))
		if len(r.Limits) == 0 {
			fmt.Println("  Limits: none")
		} else {
			fmt.Println("  Limits:")
			for _, l := range r.Limits {
				fmt.Printf("    - %s: %d min\n", l.PackageName, l.LimitMinutes)
			}
		}
	}
	fmt.Println("\n================")
	return nil
}

func runRoutinesAdd(cmd *cobra.Command, args []string) error {
	r := domain.Routine{
		Name:    args[0],
		Enabled: addEnabled,
		Schedule: domain.RoutineSchedule{
			Type:      domain.ScheduleType(strings.ToUpper(addType)),
			Recurring: addRecurring,
		},
	}

	if addStart != "" {
		t, err := parseClockTime(addStart)
		if err != nil {
			return fmt.Errorf("--start: %w", err)
		}
		r.Schedule.Start = &t
	}
	if addEnd != "" {
		t, err := parseClockTime(addEnd)
		if err != nil {
			return fmt.Errorf("--end: %w", err)
		}
		r.Schedule.End = &t
	}
	if addDays != "" {
		days, err := parseWeekdays(addDays)
		if err != nil {
			return err
		}
		r.Schedule.DaysOfWeek = days
	}
	for _, spec := range addLimits {
		l, err := parseLimit(spec)
		if err != nil {
			return err
		}
		r.Limits = append(r.Limits, l)
	}

	added, err := newClient(serverAddr).AddRoutine(r)
	if err != nil {
		return err
	}
	fmt.Printf("Added routine %q (id %s)\n", added.Name, added.ID)
	return nil
}

func runRoutinesToggle(cmd *cobra.Command, args []string) error {
	r, err := newClient(serverAddr).ToggleRoutine(args[0])
	if err != nil {
		return err
	}
	if r.Enabled {
		fmt.Printf("Routine %q enabled\n", r.Name)
	} else {
		fmt.Printf("Routine %q disabled\n", r.Name)
	}
	return nil
}

func runRoutinesDelete(cmd *cobra.Command, args []string) error {
	if err := newClient(serverAddr).DeleteRoutine(args[0]); err != nil {
		return err
	}
	fmt.Println("Routine deleted")
	return nil
}

// parseClockTime parses "HH:MM".
func parseClockTime(s string) (domain.ClockTime, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return domain.ClockTime{}, fmt.Errorf("expected HH:MM, got %q", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return domain.ClockTime{}, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return domain.ClockTime{}, fmt.Errorf("invalid minute in %q", s)
	}
	return domain.ClockTime{Hour: hour, Minute: minute}, nil
}

var weekdayByName = map[string]time.Weekday{
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
	"sunday":    time.Sunday,
}

func parseWeekdays(s string) ([]time.Weekday, error) {
	var days []time.Weekday
	for _, name := range strings.Split(s, ",") {
		d, ok := weekdayByName[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", name)
		}
		days = append(days, d)
	}
	return days, nil
}

// parseLimit parses "package=minutes".
func parseLimit(spec string) (domain.AppLimit, error) {
	parts := strings.SplitN(spec, "=", 2)
	if len(parts) != 2 {
		return domain.AppLimit{}, fmt.Errorf("expected package=minutes, got %q", spec)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 {
		return domain.AppLimit{}, fmt.Errorf("invalid limit minutes in %q", spec)
	}
	return domain.AppLimit{PackageName: parts[0], LimitMinutes: minutes}, nil
}

func formatWindow(s domain.RoutineSchedule) string {
	if s.Type == domain.ScheduleManual {
		return "manual"
	}
	var b strings.Builder
	if s.Start != nil {
		fmt.Fprintf(&b, "%02d:%02d", s.Start.Hour, s.Start.Minute)
	} else {
		b.WriteString("--:--")
	}
	b.WriteString(" - ")
	if s.End != nil {
		fmt.Fprintf(&b, "%02d:%02d", s.End.Hour, s.End.Minute)
	} else {
		b.WriteString("--:--")
	}
	if s.Type == domain.ScheduleWeekly && len(s.DaysOfWeek) > 0 {
		names := make([]string, 0, len(s.DaysOfWeek))
		for _, d := range s.DaysOfWeek {
			names = append(names, d.String()[:3])
		}
		fmt.Fprintf(&b, " on %s", strings.Join(names, ","))
	}
	return b.String()
}
