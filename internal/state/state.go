package state

import (
	"database/sql"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	_ "modernc.org/sqlite" // SQLite driver
)

const (
	appName    = "wake"
	dbFileName = "wake.db"
)

// Manager owns the SQLite database holding all durable pipeline state:
// the auth session, pending deliveries, the dedup ledger, the current
// candidate and the scrobble log. Writes go through SQLite transactions, so a
// partially written store is never read back as valid.
type Manager struct {
	db *sql.DB
}

// Open opens (or creates) the state database at the default location.
func Open() (*Manager, error) {
	dbPath, err := getDBPath()
	if err != nil {
		return nil, err
	}
	return OpenPath(dbPath)
}

// OpenPath opens (or creates) the state database at the given path.
func OpenPath(dbPath string) (*Manager, error) {
	// Ensure directory exists; 0700 because the session key lives here.
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Manager{db: db}, nil
}

func (m *Manager) Close() error {
	return m.db.Close()
}

func (m *Manager) DB() *sql.DB {
	return m.db
}

func getDBPath() (string, error) {
	return xdg.DataFile(filepath.Join(appName, dbFileName))
}
