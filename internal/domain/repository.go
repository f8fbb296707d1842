package domain

import (
	"errors"
	"time"
)

// ErrKeyNotFound is returned by PrefStore.Get for absent keys.
var ErrKeyNotFound = errors.New("preference key not found")

// PrefStore is string-keyed persistent storage for daemon state.
// Implementations: SQLCipher-encrypted database, plain JSON file.
type PrefStore interface {
	// Get returns the value for key, or ErrKeyNotFound.
	Get(key string) (string, error)

	// Set stores the value for key, overwriting any previous value.
	Set(key, value string) error

	// Close releases resources (e.g., database connection).
	Close() error
}

// UsageStatsProvider reports accumulated foreground usage per package
// since the start of the current window. Maintained externally to the
// limit trackers.
type UsageStatsProvider interface {
	UsageTime(packageName string) time.Duration
}

// Notifier delivers user-facing notifications. Delivery is best-effort:
// implementations log and drop on missing permission, never fail the caller.
type Notifier interface {
	Notify(kind NotificationKind, packageName, detail string)
}

// TriggerScheduler converts trigger instants into deferred callbacks.
// Each (routineID, activation) identity holds at most one armed trigger;
// re-arming replaces it. Cancel is idempotent.
type TriggerScheduler interface {
	Arm(routineID string, activation bool, at time.Time)
	Cancel(routineID string, activation bool)
}

// Blocker removes an offending app from the foreground.
type Blocker interface {
	BringHome(packageName string) error
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

// Now returns the current wall-clock time.
func (SystemClock) Now() time.Time { return time.Now() }

// Ensure SystemClock implements Clock.
var _ Clock = SystemClock{}
