//go:build integration

package integration

import (
	"path/filepath"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/routined/internal/domain"
	"github.com/eliteGoblin/focusd/routined/internal/infra"
	"github.com/eliteGoblin/focusd/routined/internal/limits"
	"github.com/eliteGoblin/focusd/routined/internal/routine"
	"github.com/eliteGoblin/focusd/routined/internal/store"
	"github.com/eliteGoblin/focusd/routined/internal/usecase"
)

// fakeClock is a settable clock shared by every component of a scenario.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fakeTriggers records armed triggers instead of running real timers, so
// scenarios can fire them deterministically.
type fakeTriggers struct {
	mu      sync.Mutex
	armed   map[string]time.Time
	handler func(routineID string, activation bool)
}

func newFakeTriggers() *fakeTriggers {
	return &fakeTriggers{armed: make(map[string]time.Time)}
}

func key(routineID string, activation bool) string {
	if activation {
		return routineID + "|on"
	}
	return routineID + "|off"
}

func (f *fakeTriggers) Arm(routineID string, activation bool, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.armed[key(routineID, activation)] = at
}

func (f *fakeTriggers) Cancel(routineID string, activation bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.armed, key(routineID, activation))
}

func (f *fakeTriggers) ArmedAt(routineID string, activation bool) (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	at, ok := f.armed[key(routineID, activation)]
	return at, ok
}

// Fire simulates the platform delivering an armed trigger.
func (f *fakeTriggers) Fire(routineID string, activation bool) {
	f.mu.Lock()
	delete(f.armed, key(routineID, activation))
	h := f.handler
	f.mu.Unlock()
	h(routineID, activation)
}

type recordingNotifier struct {
	mu    sync.Mutex
	kinds []domain.NotificationKind
}

func (n *recordingNotifier) Notify(kind domain.NotificationKind, pkg string, detail string) {
	n.mu.Lock()
	n.kinds = append(n.kinds, kind)
	n.mu.Unlock()
}

func (n *recordingNotifier) Count(kind domain.NotificationKind) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, k := range n.kinds {
		if k == kind {
			c++
		}
	}
	return c
}

type recordingBlocker struct {
	mu      sync.Mutex
	blocked []string
}

func (b *recordingBlocker) BringHome(pkg string) error {
	b.mu.Lock()
	b.blocked = append(b.blocked, pkg)
	b.mu.Unlock()
	return nil
}

func (b *recordingBlocker) Blocked() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.blocked...)
}

// scenario wires the full component graph over a file-backed preference
// store with deterministic clock and triggers.
type scenario struct {
	clock    *fakeClock
	triggers *fakeTriggers
	notifier *recordingNotifier
	blocker  *recordingBlocker
	usage    *infra.SessionUsage
	exec     *routine.Executor
	planner  *routine.Planner
	store    *store.Store
	enforcer *usecase.EnforcementLoop
	prefsDir string
}

func newScenario(prefsDir string, start time.Time) *scenario {
	logger := zap.NewNop()
	prefs, err := infra.NewFilePrefs(filepath.Join(prefsDir, "prefs.json"))
	Expect(err).NotTo(HaveOccurred())

	clock := &fakeClock{now: start}
	triggers := newFakeTriggers()
	notifier := &recordingNotifier{}
	blocker := &recordingBlocker{}
	usage := infra.NewSessionUsage(clock, logger)

	cfg := limits.Config{
		GracePeriod:           5 * time.Minute,
		ReminderWindow:        10 * time.Minute,
		ReminderCheckInterval: 30 * time.Second,
	}
	routineLT := limits.NewTracker("routine", cfg, usage, notifier, clock, logger)
	dailyLT := limits.NewTracker("daily", cfg, usage, notifier, clock, logger)

	exec := routine.NewExecutor(routineLT, notifier, clock, logger)
	planner := routine.NewPlanner(triggers, exec, clock, logger)
	st := store.New(prefs, exec, planner, logger)
	planner.SetFinder(st.Get)

	whitelist := store.NewWhitelist(prefs, []string{"org.example.launcher"}, logger)
	enforcer := usecase.NewEnforcementLoop("routined", whitelist, st,
		routineLT, dailyLT, blocker, notifier, logger)

	s := &scenario{
		clock:    clock,
		triggers: triggers,
		notifier: notifier,
		blocker:  blocker,
		usage:    usage,
		exec:     exec,
		planner:  planner,
		store:    st,
		enforcer: enforcer,
		prefsDir: prefsDir,
	}
	triggers.handler = planner.HandleTrigger
	return s
}

func (s *scenario) foreground(pkg string) {
	s.usage.RecordForeground(pkg, s.clock.Now())
	s.enforcer.HandleForegroundEvent(domain.ForegroundEvent{
		PackageName: pkg,
		At:          s.clock.Now(),
	})
}

var _ = Describe("Routine lifecycle", func() {
	// Monday 2024-01-01, 08:00 local.
	monday8am := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

	var s *scenario

	BeforeEach(func() {
		s = newScenario(GinkgoT().TempDir(), monday8am)
	})

	Describe("manual routines", func() {
		var id string

		BeforeEach(func() {
			added, err := s.store.Add(domain.Routine{
				Name:     "Break Glass",
				Enabled:  false,
				Schedule: domain.RoutineSchedule{Type: domain.ScheduleManual},
				Limits:   []domain.AppLimit{{PackageName: "org.example.social", LimitMinutes: 15}},
			})
			Expect(err).NotTo(HaveOccurred())
			id = added.ID
		})

		It("activates on toggle-on and deactivates on toggle-off", func() {
			_, err := s.store.Toggle(id)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.exec.ActiveRoutineID()).To(Equal(id))
			Expect(s.notifier.Count(domain.NotifyRoutineActivated)).To(Equal(1))

			_, err = s.store.Toggle(id)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.exec.ActiveRoutineID()).To(BeEmpty())
			Expect(s.notifier.Count(domain.NotifyRoutineDeactivated)).To(Equal(1))
		})

		It("enforces routine limits only while active", func() {
			s.foreground("org.example.social")
			s.clock.Advance(20 * time.Minute)
			s.foreground("org.example.social")
			Expect(s.blocker.Blocked()).To(BeEmpty(), "no routine active, no limit")

			_, err := s.store.Toggle(id)
			Expect(err).NotTo(HaveOccurred())

			// Usage already exceeds the 15 minute limit: grace starts.
			s.foreground("org.example.social")
			Expect(s.notifier.Count(domain.NotifyGracePeriod)).To(Equal(1))
			Expect(s.blocker.Blocked()).To(BeEmpty())

			s.clock.Advance(6 * time.Minute)
			s.foreground("org.example.social")
			Expect(s.blocker.Blocked()).To(ContainElement("org.example.social"))
			Expect(s.notifier.Count(domain.NotifyLimitReached)).To(Equal(1))
		})
	})

	Describe("scheduled routines", func() {
		It("arms activation and deactivation triggers outside the window", func() {
			added, err := s.store.Add(domain.Routine{
				Name:    "Evening Wind Down",
				Enabled: true,
				Schedule: domain.RoutineSchedule{
					Type:      domain.ScheduleDaily,
					Start:     &domain.ClockTime{Hour: 21},
					End:       &domain.ClockTime{Hour: 23},
					Recurring: true,
				},
			})
			Expect(err).NotTo(HaveOccurred())
			s.planner.ScheduleRoutine(added)

			onAt, ok := s.triggers.ArmedAt(added.ID, true)
			Expect(ok).To(BeTrue())
			Expect(onAt.Hour()).To(Equal(21))
			Expect(onAt.Day()).To(Equal(1), "same day, trigger still ahead")

			_, ok = s.triggers.ArmedAt(added.ID, false)
			Expect(ok).To(BeTrue())
		})

		It("activates on trigger firing and rearms for the next day", func() {
			added, err := s.store.Add(domain.Routine{
				Name:    "Evening Wind Down",
				Enabled: true,
				Schedule: domain.RoutineSchedule{
					Type:      domain.ScheduleDaily,
					Start:     &domain.ClockTime{Hour: 21},
					End:       &domain.ClockTime{Hour: 23},
					Recurring: true,
				},
			})
			Expect(err).NotTo(HaveOccurred())
			s.planner.ScheduleRoutine(added)

			s.clock.Advance(13 * time.Hour) // 21:00
			s.triggers.Fire(added.ID, true)
			Expect(s.exec.ActiveRoutineID()).To(Equal(added.ID))

			nextOn, ok := s.triggers.ArmedAt(added.ID, true)
			Expect(ok).To(BeTrue(), "recurring: activation rearmed")
			Expect(nextOn.Day()).To(Equal(2))

			s.clock.Advance(2 * time.Hour) // 23:00
			s.triggers.Fire(added.ID, false)
			Expect(s.exec.ActiveRoutineID()).To(BeEmpty())

			nextOff, ok := s.triggers.ArmedAt(added.ID, false)
			Expect(ok).To(BeTrue(), "recurring: deactivation rearmed")
			Expect(nextOff.Day()).To(Equal(2))

			nextOn, ok = s.triggers.ArmedAt(added.ID, true)
			Expect(ok).To(BeTrue(), "activation stays armed after deactivation")
			Expect(nextOn.Day()).To(Equal(2))
		})

		It("keeps recurring after starting inside its window", func() {
			added, err := s.store.Add(domain.Routine{
				Name:    "Morning Quiet",
				Enabled: true,
				Schedule: domain.RoutineSchedule{
					Type:      domain.ScheduleDaily,
					Start:     &domain.ClockTime{Hour: 7},
					End:       &domain.ClockTime{Hour: 9},
					Recurring: true,
				},
			})
			Expect(err).NotTo(HaveOccurred())

			// 8:00, inside the window: immediate activation, no
			// activation trigger armed yet.
			s.planner.ScheduleRoutine(added)
			Expect(s.exec.ActiveRoutineID()).To(Equal(added.ID))
			_, ok := s.triggers.ArmedAt(added.ID, true)
			Expect(ok).To(BeFalse())

			s.clock.Advance(time.Hour) // 9:00
			s.triggers.Fire(added.ID, false)
			Expect(s.exec.ActiveRoutineID()).To(BeEmpty())

			nextOn, ok := s.triggers.ArmedAt(added.ID, true)
			Expect(ok).To(BeTrue(), "next activation armed by the deactivation firing")
			Expect(nextOn.Day()).To(Equal(2))
			Expect(nextOn.Hour()).To(Equal(7))
		})

		It("drops firings for routines deleted meanwhile", func() {
			added, err := s.store.Add(domain.Routine{
				Name:    "Evening Wind Down",
				Enabled: true,
				Schedule: domain.RoutineSchedule{
					Type:      domain.ScheduleDaily,
					Start:     &domain.ClockTime{Hour: 21},
					End:       &domain.ClockTime{Hour: 23},
					Recurring: true,
				},
			})
			Expect(err).NotTo(HaveOccurred())
			s.planner.ScheduleRoutine(added)
			Expect(s.store.Delete(added.ID)).To(Succeed())

			// A stale firing races the deletion.
			s.planner.HandleTrigger(added.ID, true)
			Expect(s.exec.ActiveRoutineID()).To(BeEmpty())
		})
	})

	Describe("persistence", func() {
		It("restores routines and focus mode after a restart", func() {
			_, err := s.store.Add(domain.Routine{
				Name:     "Break Glass",
				Schedule: domain.RoutineSchedule{Type: domain.ScheduleManual},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(s.store.SetFocusMode(true)).To(Succeed())

			restarted := newScenario(s.prefsDir, s.clock.Now())
			Expect(restarted.store.List()).To(HaveLen(1))
			Expect(restarted.store.FocusMode()).To(BeTrue())
		})
	})

	Describe("focus mode", func() {
		It("blocks everything except the whitelist", func() {
			Expect(s.store.SetFocusMode(true)).To(Succeed())

			s.foreground("org.example.social")
			Expect(s.blocker.Blocked()).To(ContainElement("org.example.social"))
			Expect(s.notifier.Count(domain.NotifyBlocked)).To(Equal(1))

			s.foreground("org.example.launcher")
			Expect(s.blocker.Blocked()).To(HaveLen(1), "whitelisted app untouched")
		})
	})
})
