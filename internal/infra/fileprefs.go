package infra

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/eliteGoblin/focusd/routined/internal/domain"
)

// FilePrefs implements domain.PrefStore with a plain JSON file. Used when
// encryption is disabled and by tests. Writes are atomic (temp file +
// rename).
type FilePrefs struct {
	mu   sync.Mutex
	path string
}

// NewFilePrefs creates a file-backed preference store at path. The file is
// created lazily on the first Set.
func NewFilePrefs(path string) (*FilePrefs, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create prefs directory: %w", err)
	}
	return &FilePrefs{path: path}, nil
}

// Get returns the value stored under key.
func (p *FilePrefs) Get(key string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := p.loadLocked()
	if err != nil {
		return "", err
	}
	v, ok := data[key]
	if !ok {
		return "", domain.ErrKeyNotFound
	}
	return v, nil
}

// Set stores value under key, replacing any previous value.
func (p *FilePrefs) Set(key, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := p.loadLocked()
	if err != nil {
		return err
	}
	data[key] = value
	return p.writeLocked(data)
}

// Path returns the backing file path.
func (p *FilePrefs) Path() string { return p.path }

// Close is a no-op for file-backed prefs.
func (p *FilePrefs) Close() error { return nil }

func (p *FilePrefs) loadLocked() (map[string]string, error) {
	raw, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}
	data := make(map[string]string)
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("prefs file corrupt: %w", err)
	}
	return data, nil
}

// writeLocked persists atomically: write to a per-process temp file, then
// rename over the target.
func (p *FilePrefs) writeLocked(data map[string]string) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	tmpPath := fmt.Sprintf("%s.%d.tmp", p.path, os.Getpid())
	if err := os.WriteFile(tmpPath, raw, 0600); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, p.path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// Ensure FilePrefs implements domain.PrefStore.
var _ domain.PrefStore = (*FilePrefs)(nil)
