package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"espacio/internal/models"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// DB wraps the SQLite handle plus the in-memory space reference catalog.
// Spaces are static reference data owned elsewhere; the store only needs
// them for existence checks and display names.
type DB struct {
	*sql.DB
	logger *zerolog.Logger

	mu           sync.RWMutex
	spacesCache  map[int64]models.Space
	sortedSpaces []models.Space
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// _txlock=immediate makes write transactions take the write lock at
	// BEGIN, so concurrent check-then-insert transactions queue on
	// busy_timeout instead of deadlocking on a shared-to-write upgrade.
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("database initialized")
	return &DB{DB: db, logger: logger, spacesCache: make(map[int64]models.Space)}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT NOT NULL,
            email TEXT UNIQUE NOT NULL,
            role TEXT NOT NULL DEFAULT 'member',
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS reservations (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            requester_id INTEGER NOT NULL,
            space_id INTEGER NOT NULL,
            course_id INTEGER,
            start_time DATETIME NOT NULL,
            end_time DATETIME NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending',
            purpose TEXT NOT NULL,
            notes TEXT NOT NULL DEFAULT '',
            checked_in BOOLEAN NOT NULL DEFAULT 0,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,

		`CREATE INDEX IF NOT EXISTS idx_users_role ON users(role)`,

		`CREATE INDEX IF NOT EXISTS idx_reservations_space_window ON reservations(space_id, start_time, end_time)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_status ON reservations(status)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_requester ON reservations(requester_id)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// SetSpaces replaces the space reference catalog used for existence checks.
func (db *DB) SetSpaces(spaces []models.Space) {
	cache := make(map[int64]models.Space, len(spaces))
	for _, space := range spaces {
		cache[space.ID] = space
	}

	sorted := append([]models.Space(nil), spaces...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	db.mu.Lock()
	db.spacesCache = cache
	db.sortedSpaces = sorted
	db.mu.Unlock()
}

// SpaceExists checks the reference catalog; inactive spaces do not count.
func (db *DB) SpaceExists(spaceID int64) bool {
	db.mu.RLock()
	space, ok := db.spacesCache[spaceID]
	db.mu.RUnlock()
	return ok && space.IsActive
}

// GetSpace returns one space from the reference catalog.
func (db *DB) GetSpace(spaceID int64) (models.Space, error) {
	db.mu.RLock()
	space, ok := db.spacesCache[spaceID]
	db.mu.RUnlock()
	if !ok {
		return models.Space{}, fmt.Errorf("%w: %d", ErrSpaceUnknown, spaceID)
	}
	return space, nil
}

// GetSpaces returns the catalog sorted by id.
func (db *DB) GetSpaces() []models.Space {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return append([]models.Space(nil), db.sortedSpaces...)
}

func (db *DB) Close() error {
	return db.DB.Close()
}
