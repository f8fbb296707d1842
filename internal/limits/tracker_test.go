package limits

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/routined/internal/domain"
)

// fakeClock implements domain.Clock with a settable instant.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

// fakeUsage implements domain.UsageStatsProvider.
type fakeUsage struct {
	usage map[string]time.Duration
}

func (u *fakeUsage) UsageTime(pkg string) time.Duration { return u.usage[pkg] }

// recordingNotifier captures emitted notifications.
type recordingNotifier struct {
	sent []domain.NotificationKind
}

func (n *recordingNotifier) Notify(kind domain.NotificationKind, pkg, detail string) {
	n.sent = append(n.sent, kind)
}

func (n *recordingNotifier) count(kind domain.NotificationKind) int {
	c := 0
	for _, k := range n.sent {
		if k == kind {
			c++
		}
	}
	return c
}

func newTestTracker(usage *fakeUsage, notifier *recordingNotifier, clock *fakeClock) *Tracker {
	return NewTracker("daily", DefaultConfig(), usage, notifier, clock, zap.NewNop())
}

func TestObserve_NoLimitAllows(t *testing.T) {
	usage := &fakeUsage{usage: map[string]time.Duration{}}
	notifier := &recordingNotifier{}
	clock := &fakeClock{now: time.Now()}
	tr := newTestTracker(usage, notifier, clock)

	assert.Equal(t, VerdictAllow, tr.Observe("com.example.app"))
	assert.Empty(t, notifier.sent)
}

func TestObserve_ReminderFiresOncePerWindow(t *testing.T) {
	const pkg = "com.example.app"
	usage := &fakeUsage{usage: map[string]time.Duration{pkg: 25 * time.Minute}}
	notifier := &recordingNotifier{}
	clock := &fakeClock{now: time.Now()}
	tr := newTestTracker(usage, notifier, clock)
	tr.SetLimit(pkg, 30*time.Minute) // 5 minutes remaining, inside window

	assert.Equal(t, VerdictAllow, tr.Observe(pkg))
	assert.Equal(t, 1, notifier.count(domain.NotifyReminder))

	// Repeated observations never re-send, even past the throttle.
	clock.advance(time.Minute)
	tr.Observe(pkg)
	clock.advance(time.Minute)
	tr.Observe(pkg)
	assert.Equal(t, 1, notifier.count(domain.NotifyReminder))

	// Window reset re-arms the reminder.
	tr.ResetWindow()
	clock.advance(time.Minute)
	tr.Observe(pkg)
	assert.Equal(t, 2, notifier.count(domain.NotifyReminder))
}

func TestObserve_ReminderThrottled(t *testing.T) {
	const pkg = "com.example.app"
	usage := &fakeUsage{usage: map[string]time.Duration{pkg: 10 * time.Minute}}
	notifier := &recordingNotifier{}
	clock := &fakeClock{now: time.Now()}
	tr := newTestTracker(usage, notifier, clock)
	tr.SetLimit(pkg, 30*time.Minute) // 20 min remaining, outside reminder window

	// First observation consumes the check slot without a reminder.
	tr.Observe(pkg)
	assert.Equal(t, 0, notifier.count(domain.NotifyReminder))

	// Usage moves into the reminder window, but the 30s throttle has not
	// elapsed since the last check.
	usage.usage[pkg] = 25 * time.Minute
	clock.advance(10 * time.Second)
	tr.Observe(pkg)
	assert.Equal(t, 0, notifier.count(domain.NotifyReminder))

	// After the throttle interval the reminder fires.
	clock.advance(25 * time.Second)
	tr.Observe(pkg)
	assert.Equal(t, 1, notifier.count(domain.NotifyReminder))
}

func TestObserve_ThrottleIsGlobalAcrossPackages(t *testing.T) {
	usage := &fakeUsage{usage: map[string]time.Duration{
		"a": 25 * time.Minute,
		"b": 25 * time.Minute,
	}}
	notifier := &recordingNotifier{}
	clock := &fakeClock{now: time.Now()}
	tr := newTestTracker(usage, notifier, clock)
	tr.SetLimit("a", 30*time.Minute)
	tr.SetLimit("b", 30*time.Minute)

	tr.Observe("a")
	assert.Equal(t, 1, notifier.count(domain.NotifyReminder))

	// Package b is inside the window too, but a's check consumed the slot.
	clock.advance(5 * time.Second)
	tr.Observe("b")
	assert.Equal(t, 1, notifier.count(domain.NotifyReminder))

	clock.advance(time.Minute)
	tr.Observe("b")
	assert.Equal(t, 2, notifier.count(domain.NotifyReminder))
}

func TestObserve_GracePeriodIdempotent(t *testing.T) {
	const pkg = "com.example.app"
	usage := &fakeUsage{usage: map[string]time.Duration{pkg: 31 * time.Minute}}
	notifier := &recordingNotifier{}
	clock := &fakeClock{now: time.Now()}
	tr := newTestTracker(usage, notifier, clock)
	tr.SetLimit(pkg, 30*time.Minute)

	// First over-limit observation starts grace, does not block.
	assert.Equal(t, VerdictGrace, tr.Observe(pkg))
	assert.Equal(t, 1, notifier.count(domain.NotifyGracePeriod))

	// Repeated observations inside the window never re-notify.
	clock.advance(time.Minute)
	assert.Equal(t, VerdictGrace, tr.Observe(pkg))
	clock.advance(time.Minute)
	assert.Equal(t, VerdictGrace, tr.Observe(pkg))
	assert.Equal(t, 1, notifier.count(domain.NotifyGracePeriod))
}

func TestObserve_BlocksAfterGraceWithSingleNotification(t *testing.T) {
	const pkg = "com.example.app"
	usage := &fakeUsage{usage: map[string]time.Duration{pkg: 31 * time.Minute}}
	notifier := &recordingNotifier{}
	clock := &fakeClock{now: time.Now()}
	tr := newTestTracker(usage, notifier, clock)
	tr.SetLimit(pkg, 30*time.Minute)

	assert.Equal(t, VerdictGrace, tr.Observe(pkg))

	// Grace elapses.
	clock.advance(DefaultConfig().GracePeriod + time.Second)
	assert.Equal(t, VerdictBlock, tr.Observe(pkg))
	assert.Equal(t, 1, notifier.count(domain.NotifyLimitReached))

	// Blocking repeats on every observation; the notification does not.
	clock.advance(time.Minute)
	assert.Equal(t, VerdictBlock, tr.Observe(pkg))
	clock.advance(time.Minute)
	assert.Equal(t, VerdictBlock, tr.Observe(pkg))
	assert.Equal(t, 1, notifier.count(domain.NotifyLimitReached))
}

func TestObserve_ResetStartsNewEpisode(t *testing.T) {
	const pkg = "com.example.app"
	usage := &fakeUsage{usage: map[string]time.Duration{pkg: 31 * time.Minute}}
	notifier := &recordingNotifier{}
	clock := &fakeClock{now: time.Now()}
	tr := newTestTracker(usage, notifier, clock)
	tr.SetLimit(pkg, 30*time.Minute)

	tr.Observe(pkg)
	clock.advance(DefaultConfig().GracePeriod + time.Second)
	assert.Equal(t, VerdictBlock, tr.Observe(pkg))

	// Daily rollover resets usage and state; a fresh episode begins.
	usage.usage[pkg] = 31 * time.Minute
	tr.ResetWindow()
	assert.Equal(t, VerdictGrace, tr.Observe(pkg))
	assert.Equal(t, 2, notifier.count(domain.NotifyGracePeriod))
}

func TestSetLimits_ReplacesStateAndLimits(t *testing.T) {
	usage := &fakeUsage{usage: map[string]time.Duration{}}
	notifier := &recordingNotifier{}
	clock := &fakeClock{now: time.Now()}
	tr := newTestTracker(usage, notifier, clock)
	tr.SetLimit("old.pkg", 10*time.Minute)

	tr.SetLimits([]domain.AppLimit{
		{PackageName: "new.pkg", LimitMinutes: 20},
	})

	assert.False(t, tr.HasLimit("old.pkg"))
	assert.True(t, tr.HasLimit("new.pkg"))
	assert.Equal(t, 20*time.Minute, tr.Limit("new.pkg"))
}

func TestClear_RemovesEverything(t *testing.T) {
	usage := &fakeUsage{usage: map[string]time.Duration{}}
	notifier := &recordingNotifier{}
	clock := &fakeClock{now: time.Now()}
	tr := newTestTracker(usage, notifier, clock)
	tr.SetLimit("a", 10*time.Minute)

	tr.Clear()
	assert.False(t, tr.HasLimit("a"))
}
