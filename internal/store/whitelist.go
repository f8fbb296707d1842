package store

import (
	"encoding/json"
	"errors"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/routined/internal/domain"
)

const whitelistKey = "whitelist"

// Whitelist is the set of packages exempt from all blocking. Seeded with
// launcher packages from configuration, append-only from callers, persisted
// as a JSON array in the preference store.
type Whitelist struct {
	mu     sync.Mutex
	prefs  domain.PrefStore
	seed   map[string]bool
	logger *zap.Logger
}

// NewWhitelist creates a whitelist backed by prefs with the given seed set.
func NewWhitelist(prefs domain.PrefStore, seed []string, logger *zap.Logger) *Whitelist {
	w := &Whitelist{
		prefs:  prefs,
		seed:   make(map[string]bool, len(seed)),
		logger: logger,
	}
	for _, pkg := range seed {
		w.seed[pkg] = true
	}
	return w
}

// Contains reports whether pkg is exempt from blocking.
func (w *Whitelist) Contains(pkg string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.seed[pkg] {
		return true
	}
	return w.loadLocked()[pkg]
}

// Add appends pkg to the persisted whitelist. Adding an already-present
// package is a no-op.
func (w *Whitelist) Add(pkg string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	set := w.loadLocked()
	if set[pkg] {
		return nil
	}
	set[pkg] = true

	pkgs := make([]string, 0, len(set))
	for p := range set {
		pkgs = append(pkgs, p)
	}
	sort.Strings(pkgs)

	data, err := json.Marshal(pkgs)
	if err != nil {
		return err
	}
	if err := w.prefs.Set(whitelistKey, string(data)); err != nil {
		return err
	}
	w.logger.Info("package whitelisted", zap.String("package", pkg))
	return nil
}

// All returns the union of seed and persisted entries, sorted.
func (w *Whitelist) All() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	set := w.loadLocked()
	for p := range w.seed {
		set[p] = true
	}
	pkgs := make([]string, 0, len(set))
	for p := range set {
		pkgs = append(pkgs, p)
	}
	sort.Strings(pkgs)
	return pkgs
}

// SetSeed replaces the configured seed set (config reload).
func (w *Whitelist) SetSeed(seed []string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.seed = make(map[string]bool, len(seed))
	for _, pkg := range seed {
		w.seed[pkg] = true
	}
}

func (w *Whitelist) loadLocked() map[string]bool {
	set := make(map[string]bool)
	raw, err := w.prefs.Get(whitelistKey)
	if err != nil {
		if !errors.Is(err, domain.ErrKeyNotFound) {
			w.logger.Warn("failed to read whitelist", zap.Error(err))
		}
		return set
	}
	var pkgs []string
	if err := json.Unmarshal([]byte(raw), &pkgs); err != nil {
		w.logger.Warn("whitelist record corrupt, ignoring", zap.Error(err))
		return set
	}
	for _, p := range pkgs {
		set[p] = true
	}
	return set
}
