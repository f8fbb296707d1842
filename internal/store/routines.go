// Package store persists routines and preference-backed daemon state.
// The whole routine list is rewritten on every mutation; callers are
// expected to serialize access (single-writer).
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/routined/internal/domain"
)

const (
	routinesKey  = "routines"
	focusModeKey = "focus_mode"
)

// ErrRoutineNotFound is returned for operations on an unknown routine id.
var ErrRoutineNotFound = errors.New("routine not found")

// Activator applies routine activation side effects. Implemented by the
// routine executor (single-active actor).
type Activator interface {
	Activate(r domain.Routine)
	Deactivate(r domain.Routine)
	ActiveRoutineID() string
}

// Planner arms and cancels the scheduled triggers for a routine.
type Planner interface {
	ScheduleRoutine(r domain.Routine)
	CancelRoutine(routineID string)
}

// Store is the routine repository. Toggle and Delete drive scheduling and
// activation side effects synchronously before persisting.
type Store struct {
	prefs   domain.PrefStore
	exec    Activator
	planner Planner
	logger  *zap.Logger
}

// New creates a routine store over the given preference store.
func New(prefs domain.PrefStore, exec Activator, planner Planner, logger *zap.Logger) *Store {
	return &Store{
		prefs:   prefs,
		exec:    exec,
		planner: planner,
		logger:  logger,
	}
}

// List returns all persisted routines. Malformed records are logged and
// skipped individually; a fully corrupt payload yields an empty list.
func (s *Store) List() []domain.Routine {
	raw, err := s.prefs.Get(routinesKey)
	if err != nil {
		if !errors.Is(err, domain.ErrKeyNotFound) {
			s.logger.Warn("failed to read routines", zap.Error(err))
		}
		return nil
	}

	var records []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		s.logger.Warn("routine list corrupt, starting empty", zap.Error(err))
		return nil
	}

	routines := make([]domain.Routine, 0, len(records))
	for i, rec := range records {
		r, err := UnmarshalRoutine(rec)
		if err != nil {
			s.logger.Warn("skipping malformed routine record",
				zap.Int("index", i),
				zap.Error(err))
			continue
		}
		routines = append(routines, r)
	}
	return routines
}

// Get returns the routine with the given id.
func (s *Store) Get(id string) (domain.Routine, bool) {
	for _, r := range s.List() {
		if r.ID == id {
			return r, true
		}
	}
	return domain.Routine{}, false
}

// Add appends a routine, assigning an id if absent, and persists the list.
func (s *Store) Add(r domain.Routine) (domain.Routine, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if !r.Schedule.Type.Valid() {
		return domain.Routine{}, fmt.Errorf("unknown schedule type %q", r.Schedule.Type)
	}

	routines := append(s.List(), r)
	if err := s.save(routines); err != nil {
		return domain.Routine{}, err
	}
	s.logger.Info("routine added", zap.String("routine_id", r.ID), zap.String("name", r.Name))
	return r, nil
}

// Update replaces the routine with a matching id. Returns ErrRoutineNotFound
// without persisting anything when the id is absent, so callers know not to
// apply scheduling side effects for a routine that was never stored.
func (s *Store) Update(r domain.Routine) error {
	routines := s.List()
	for i := range routines {
		if routines[i].ID == r.ID {
			routines[i] = r
			return s.save(routines)
		}
	}
	return fmt.Errorf("update routine %s: %w", r.ID, ErrRoutineNotFound)
}

// Delete cancels the routine's pending triggers, deactivates it if active,
// and removes it from the persisted list.
func (s *Store) Delete(id string) error {
	s.planner.CancelRoutine(id)

	routines := s.List()
	kept := routines[:0]
	for _, r := range routines {
		if r.ID == id {
			if s.exec.ActiveRoutineID() == id {
				s.exec.Deactivate(r)
			}
			continue
		}
		kept = append(kept, r)
	}
	if err := s.save(kept); err != nil {
		return err
	}
	s.logger.Info("routine deleted", zap.String("routine_id", id))
	return nil
}

// Toggle flips the routine's enabled flag and applies activation,
// deactivation and scheduling side effects before persisting.
//
// Manual routines activate/deactivate immediately. Scheduled routines have
// their triggers cancelled on disable (deactivating if currently active)
// and re-armed on enable, which may activate immediately when now falls
// inside the schedule window.
func (s *Store) Toggle(id string) (domain.Routine, error) {
	routines := s.List()
	idx := -1
	for i := range routines {
		if routines[i].ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return domain.Routine{}, ErrRoutineNotFound
	}

	old := routines[idx]
	updated := old
	updated.Enabled = !old.Enabled
	routines[idx] = updated

	if old.Enabled {
		// Toggling OFF
		if old.Schedule.Type != domain.ScheduleManual {
			s.planner.CancelRoutine(id)
		}
		if s.exec.ActiveRoutineID() == id {
			s.exec.Deactivate(old)
		}
	} else {
		// Toggling ON
		if updated.Schedule.Type == domain.ScheduleManual {
			s.exec.Activate(updated)
		} else {
			s.planner.ScheduleRoutine(updated)
		}
	}

	if err := s.save(routines); err != nil {
		// Activation and trigger side effects already ran; in-memory
		// state now disagrees with the persisted enabled flag.
		s.logger.Error("toggle applied but not persisted",
			zap.String("routine_id", id),
			zap.Bool("enabled", updated.Enabled),
			zap.Error(err))
		return domain.Routine{}, err
	}
	s.logger.Info("routine toggled",
		zap.String("routine_id", id),
		zap.Bool("enabled", updated.Enabled))
	return updated, nil
}

// FocusMode reports whether the global focus-mode override is set.
func (s *Store) FocusMode() bool {
	v, err := s.prefs.Get(focusModeKey)
	return err == nil && v == "true"
}

// SetFocusMode sets or clears the global focus-mode override.
func (s *Store) SetFocusMode(enabled bool) error {
	v := "false"
	if enabled {
		v = "true"
	}
	return s.prefs.Set(focusModeKey, v)
}

// EnsureSeed populates the store with the default routines (disabled) when
// no routine record has ever been written.
func (s *Store) EnsureSeed() error {
	if _, err := s.prefs.Get(routinesKey); !errors.Is(err, domain.ErrKeyNotFound) {
		return nil
	}
	s.logger.Info("seeding default routines")
	return s.save(DefaultRoutines())
}

func (s *Store) save(routines []domain.Routine) error {
	records := make([]json.RawMessage, 0, len(routines))
	for _, r := range routines {
		data, err := MarshalRoutine(r)
		if err != nil {
			return fmt.Errorf("encode routine %s: %w", r.ID, err)
		}
		records = append(records, data)
	}
	payload, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode routine list: %w", err)
	}
	if err := s.prefs.Set(routinesKey, string(payload)); err != nil {
		return fmt.Errorf("persist routine list: %w", err)
	}
	return nil
}

// DefaultRoutines returns the starter routines seeded on first run.
func DefaultRoutines() []domain.Routine {
	return []domain.Routine{
		{
			ID:      uuid.NewString(),
			Name:    "Weekend Digital Detox",
			Enabled: false,
			Schedule: domain.RoutineSchedule{
				Type:       domain.ScheduleWeekly,
				Start:      &domain.ClockTime{Hour: 9},
				End:        &domain.ClockTime{Hour: 18},
				DaysOfWeek: []time.Weekday{time.Saturday, time.Sunday},
				Recurring:  true,
			},
		},
		{
			ID:      uuid.NewString(),
			Name:    "Workday Focus",
			Enabled: false,
			Schedule: domain.RoutineSchedule{
				Type:  domain.ScheduleWeekly,
				Start: &domain.ClockTime{Hour: 9},
				End:   &domain.ClockTime{Hour: 17},
				DaysOfWeek: []time.Weekday{
					time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday,
				},
				Recurring: true,
			},
		},
	}
}
