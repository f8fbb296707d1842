package infra

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/routined/internal/domain"
)

// SessionUsage implements domain.UsageStatsProvider by accumulating
// foreground session time reported by the event source. At most one
// package is in the foreground at a time; a new foreground event closes
// the previous package's session.
type SessionUsage struct {
	mu           sync.Mutex
	accumulated  map[string]time.Duration
	currentPkg   string
	currentSince time.Time

	clock  domain.Clock
	logger *zap.Logger
}

// NewSessionUsage creates a usage tracker.
func NewSessionUsage(clock domain.Clock, logger *zap.Logger) *SessionUsage {
	return &SessionUsage{
		accumulated: make(map[string]time.Duration),
		clock:       clock,
		logger:      logger,
	}
}

// RecordForeground notes that pkg came to the foreground at the given
// instant, closing the previous session.
func (u *SessionUsage) RecordForeground(pkg string, at time.Time) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if at.IsZero() {
		at = u.clock.Now()
	}
	u.closeSessionLocked(at)
	u.currentPkg = pkg
	u.currentSince = at
}

// UsageTime returns accumulated foreground time for pkg in the current
// window, including the live session.
func (u *SessionUsage) UsageTime(pkg string) time.Duration {
	u.mu.Lock()
	defer u.mu.Unlock()

	total := u.accumulated[pkg]
	if u.currentPkg == pkg && !u.currentSince.IsZero() {
		total += u.clock.Now().Sub(u.currentSince)
	}
	return total
}

// ResetWindow clears all accumulated usage (daily rollover). A live
// session restarts from the rollover instant.
func (u *SessionUsage) ResetWindow() {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.accumulated = make(map[string]time.Duration)
	if u.currentPkg != "" {
		u.currentSince = u.clock.Now()
	}
	u.logger.Info("usage window reset")
}

func (u *SessionUsage) closeSessionLocked(at time.Time) {
	if u.currentPkg == "" || u.currentSince.IsZero() {
		return
	}
	d := at.Sub(u.currentSince)
	if d > 0 {
		u.accumulated[u.currentPkg] += d
	}
	u.currentPkg = ""
	u.currentSince = time.Time{}
}

// Ensure SessionUsage implements domain.UsageStatsProvider.
var _ domain.UsageStatsProvider = (*SessionUsage)(nil)
