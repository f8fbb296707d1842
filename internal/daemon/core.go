// Package daemon wires all components together and serializes every entry
// point (API handlers, trigger firings, scheduled jobs) through one core
// mutex.
package daemon

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/routined/internal/api"
	"github.com/eliteGoblin/focusd/routined/internal/config"
	"github.com/eliteGoblin/focusd/routined/internal/domain"
	"github.com/eliteGoblin/focusd/routined/internal/infra"
	"github.com/eliteGoblin/focusd/routined/internal/limits"
	"github.com/eliteGoblin/focusd/routined/internal/routine"
	"github.com/eliteGoblin/focusd/routined/internal/store"
	"github.com/eliteGoblin/focusd/routined/internal/usecase"
)

// Core owns every component of the daemon. All public methods take the
// core mutex, so store mutations, trigger firings, and enforcement passes
// never interleave.
type Core struct {
	mu        sync.Mutex
	cfg       config.Config
	version   string
	startedAt time.Time

	prefs     domain.PrefStore
	clock     domain.Clock
	notifier  *infra.DesktopNotifier
	usage     *infra.SessionUsage
	alarms    *infra.AlarmService
	routineLT *limits.Tracker
	dailyLT   *limits.Tracker
	exec      *routine.Executor
	planner   *routine.Planner
	store     *store.Store
	whitelist *store.Whitelist
	enforcer  *usecase.EnforcementLoop

	logger *zap.Logger
}

// NewCore builds the full component graph from configuration.
func NewCore(cfg config.Config, version string, logger *zap.Logger) (*Core, error) {
	prefs, err := openPrefs(cfg, logger)
	if err != nil {
		return nil, err
	}

	clock := domain.SystemClock{}
	notifier := infra.NewDesktopNotifier(cfg.AppNames, logger.Named("notify"))
	usage := infra.NewSessionUsage(clock, logger.Named("usage"))

	limitCfg := limits.Config{
		GracePeriod:           cfg.Limits.GracePeriod,
		ReminderWindow:        cfg.Limits.ReminderWindow,
		ReminderCheckInterval: cfg.Limits.ReminderCheckInterval,
	}
	routineLT := limits.NewTracker("routine", limitCfg, usage, notifier, clock, logger.Named("limits"))
	dailyLT := limits.NewTracker("daily", limitCfg, usage, notifier, clock, logger.Named("limits"))
	dailyLT.SetLimits(dailyLimitList(cfg.DailyLimits))

	exec := routine.NewExecutor(routineLT, notifier, clock, logger.Named("executor"))
	alarms := infra.NewAlarmService(cfg.ExactTriggers, logger.Named("alarms"))
	planner := routine.NewPlanner(alarms, exec, clock, logger.Named("planner"))
	st := store.New(prefs, exec, planner, logger.Named("store"))
	planner.SetFinder(st.Get)

	whitelist := store.NewWhitelist(prefs, cfg.Whitelist, logger.Named("whitelist"))
	blocker := infra.NewProcessBlocker(logger.Named("blocker"))

	c := &Core{
		cfg:       cfg,
		version:   version,
		startedAt: time.Now(),
		prefs:     prefs,
		clock:     clock,
		notifier:  notifier,
		usage:     usage,
		alarms:    alarms,
		routineLT: routineLT,
		dailyLT:   dailyLT,
		exec:      exec,
		planner:   planner,
		store:     st,
		whitelist: whitelist,
		logger:    logger,
	}
	c.enforcer = usecase.NewEnforcementLoop(cfg.SelfPackage, whitelist, st,
		routineLT, dailyLT, blocker, notifier, logger.Named("enforce"))

	alarms.SetHandler(c.onTrigger)
	return c, nil
}

func openPrefs(cfg config.Config, logger *zap.Logger) (domain.PrefStore, error) {
	if !cfg.EncryptPrefs {
		logger.Warn("preference encryption disabled")
		return infra.NewFilePrefs(filepath.Join(cfg.DataDir, "prefs.json"))
	}
	key, err := infra.NewKeyFile(cfg.DataDir).EnsureKey()
	if err != nil {
		return nil, fmt.Errorf("failed to prepare encryption key: %w", err)
	}
	return infra.NewEncryptedPrefs(cfg.DataDir, key)
}

func dailyLimitList(m map[string]int) []domain.AppLimit {
	ls := make([]domain.AppLimit, 0, len(m))
	for pkg, minutes := range m {
		ls = append(ls, domain.AppLimit{PackageName: pkg, LimitMinutes: minutes})
	}
	return ls
}

// onTrigger is the alarm callback. Trigger firings enter the core like any
// other entry point: under the core mutex.
func (c *Core) onTrigger(routineID string, activation bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.planner.HandleTrigger(routineID, activation)
}

// ApplyConfig applies a reloaded configuration to the running daemon.
// Listen address and data dir changes require a restart and are ignored.
func (c *Core) ApplyConfig(cfg config.Config) {
	c.mu.Lock()
	defer c.mu.Unlock()

	limitCfg := limits.Config{
		GracePeriod:           cfg.Limits.GracePeriod,
		ReminderWindow:        cfg.Limits.ReminderWindow,
		ReminderCheckInterval: cfg.Limits.ReminderCheckInterval,
	}
	c.routineLT.SetConfig(limitCfg)
	c.dailyLT.SetConfig(limitCfg)
	c.dailyLT.SetLimits(dailyLimitList(cfg.DailyLimits))
	c.whitelist.SetSeed(cfg.Whitelist)
	c.notifier.SetNames(cfg.AppNames)
	c.enforcer.SetSelfPackage(cfg.SelfPackage)
	c.cfg = cfg
	c.logger.Info("configuration applied")
}

// Routines implements api.Controller.
func (c *Core) Routines() []domain.Routine {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.List()
}

// AddRoutine implements api.Controller. Enabled scheduled routines are
// armed immediately.
func (c *Core) AddRoutine(r domain.Routine) (domain.Routine, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	added, err := c.store.Add(r)
	if err != nil {
		return domain.Routine{}, err
	}
	if added.Enabled {
		c.planner.ScheduleRoutine(added)
	}
	return added, nil
}

// UpdateRoutine implements api.Controller. Triggers are re-armed from the
// updated schedule only after the store confirms the id exists, so an
// update for an unknown id never schedules anything.
func (c *Core) UpdateRoutine(r domain.Routine) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.Update(r); err != nil {
		return err
	}
	c.planner.CancelRoutine(r.ID)
	if r.Enabled {
		c.planner.ScheduleRoutine(r)
	}
	return nil
}

// DeleteRoutine implements api.Controller.
func (c *Core) DeleteRoutine(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Delete(id)
}

// ToggleRoutine implements api.Controller.
func (c *Core) ToggleRoutine(id string) (domain.Routine, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Toggle(id)
}

// FocusMode implements api.Controller.
func (c *Core) FocusMode() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.FocusMode()
}

// SetFocusMode implements api.Controller.
func (c *Core) SetFocusMode(enabled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.SetFocusMode(enabled)
}

// AddWhitelisted implements api.Controller.
func (c *Core) AddWhitelisted(pkg string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.whitelist.Add(pkg)
}

// ReportForeground implements api.Controller: records the session for
// usage accounting, then runs one enforcement pass.
func (c *Core) ReportForeground(ev domain.ForegroundEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	at := ev.At
	if at.IsZero() {
		at = c.clock.Now()
	}
	c.usage.RecordForeground(ev.PackageName, at)
	c.enforcer.HandleForegroundEvent(ev)
}

// Status implements api.Controller.
func (c *Core) Status() api.Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := api.Status{
		Running:      true,
		StartedAt:    c.startedAt,
		FocusMode:    c.store.FocusMode(),
		RoutineCount: len(c.store.List()),
		DataDir:      c.cfg.DataDir,
		Version:      c.version,
	}
	if r, ok := c.exec.ActiveRoutine(); ok {
		st.ActiveRoutineID = r.ID
		st.ActiveRoutine = r.Name
	}
	return st
}

// Ensure Core implements the API surface.
var _ api.Controller = (*Core)(nil)
