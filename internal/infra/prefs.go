package infra

import (
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// Ensure sqlcipher driver is registered.
	_ "github.com/mutecomm/go-sqlcipher/v4"

	"github.com/eliteGoblin/focusd/routined/internal/domain"
)

const prefsDBName = "prefs.db"

// EncryptedPrefs implements domain.PrefStore using a SQLCipher encrypted
// SQLite database. Routine definitions and limit flags are personal data;
// the store is encrypted at rest with a locally held key.
type EncryptedPrefs struct {
	db     *sql.DB
	dbPath string
}

// NewEncryptedPrefs opens (or creates) the encrypted preference database.
// The key is used as the SQLCipher passphrase via PRAGMA key.
func NewEncryptedPrefs(dataDir string, key []byte) (*EncryptedPrefs, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, prefsDBName)
	keyHex := hex.EncodeToString(key)

	dsn := fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096", dbPath, keyHex)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open encrypted database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to encrypted database: %w", err)
	}

	p := &EncryptedPrefs{db: db, dbPath: dbPath}
	if err := p.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return p, nil
}

func (p *EncryptedPrefs) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS prefs (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	_, err := p.db.Exec(schema)
	return err
}

// Get returns the value stored under key.
func (p *EncryptedPrefs) Get(key string) (string, error) {
	var value string
	err := p.db.QueryRow(`SELECT value FROM prefs WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", domain.ErrKeyNotFound
	}
	return value, err
}

// Set stores value under key, replacing any previous value.
func (p *EncryptedPrefs) Set(key, value string) error {
	now := time.Now().Unix()
	_, err := p.db.Exec(`INSERT OR REPLACE INTO prefs (key, value, updated_at) VALUES (?, ?, ?)`,
		key, value, now)
	return err
}

// Path returns the database file path (for status output).
func (p *EncryptedPrefs) Path() string {
	return p.dbPath
}

// Close releases the database connection.
func (p *EncryptedPrefs) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// Ensure EncryptedPrefs implements domain.PrefStore.
var _ domain.PrefStore = (*EncryptedPrefs)(nil)
