// Package usecase wires the limit trackers, whitelist, and blocker into
// the foreground enforcement loop.
package usecase

import (
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/routined/internal/domain"
	"github.com/eliteGoblin/focusd/routined/internal/limits"
)

// WhitelistChecker answers whether a package is exempt from enforcement.
type WhitelistChecker interface {
	Contains(pkg string) bool
}

// FocusModeReader reports whether global focus mode is on.
type FocusModeReader interface {
	FocusMode() bool
}

// EnforcementLoop evaluates every foreground-app change: whitelist, focus
// mode, routine limits, then regular daily limits, in that order. Routine
// limits take priority; a grace verdict on either tier stops evaluation.
type EnforcementLoop struct {
	selfPkg       string
	whitelist     WhitelistChecker
	focus         FocusModeReader
	routineLimits *limits.Tracker
	regularLimits *limits.Tracker
	blocker       domain.Blocker
	notifier      domain.Notifier
	logger        *zap.Logger
}

// NewEnforcementLoop creates the enforcement pipeline.
func NewEnforcementLoop(
	selfPkg string,
	whitelist WhitelistChecker,
	focus FocusModeReader,
	routineLimits *limits.Tracker,
	regularLimits *limits.Tracker,
	blocker domain.Blocker,
	notifier domain.Notifier,
	logger *zap.Logger,
) *EnforcementLoop {
	return &EnforcementLoop{
		selfPkg:       selfPkg,
		whitelist:     whitelist,
		focus:         focus,
		routineLimits: routineLimits,
		regularLimits: regularLimits,
		blocker:       blocker,
		notifier:      notifier,
		logger:        logger,
	}
}

// SetSelfPackage updates the daemon's own package name (config reload).
func (e *EnforcementLoop) SetSelfPackage(pkg string) {
	e.selfPkg = pkg
}

// HandleForegroundEvent runs one enforcement pass. A panic anywhere in
// the pass is recovered and logged; one bad event must not take down the
// event loop.
func (e *EnforcementLoop) HandleForegroundEvent(ev domain.ForegroundEvent) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("panic during foreground enforcement",
				zap.Any("panic", r),
				zap.String("package", ev.PackageName))
		}
	}()

	pkg := ev.PackageName
	if pkg == "" || pkg == e.selfPkg {
		return
	}
	if e.whitelist.Contains(pkg) {
		return
	}

	if e.focus.FocusMode() {
		e.logger.Info("focus mode active, blocking app",
			zap.String("package", pkg))
		e.block(pkg)
		e.notifier.Notify(domain.NotifyBlocked, pkg, "focus mode is on")
		return
	}

	switch e.routineLimits.Observe(pkg) {
	case limits.VerdictBlock:
		e.block(pkg)
		return
	case limits.VerdictGrace:
		return
	}

	if e.regularLimits.Observe(pkg) == limits.VerdictBlock {
		e.block(pkg)
	}
}

func (e *EnforcementLoop) block(pkg string) {
	start := time.Now()
	if err := e.blocker.BringHome(pkg); err != nil {
		e.logger.Error("failed to block app",
			zap.String("package", pkg),
			zap.Error(err))
		return
	}
	e.logger.Debug("app blocked",
		zap.String("package", pkg),
		zap.Duration("took", time.Since(start)))
}
