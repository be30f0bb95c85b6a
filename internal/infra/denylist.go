package infra

import (
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	// Ensure sqlcipher driver is registered.
	_ "github.com/mutecomm/go-sqlcipher/v4"

	"github.com/pars5555/tailbridge/internal/domain"
)

const denyListDBName = "denylist.db"

// DenyListStore implements domain.DenyListRepository on a SQLCipher
// encrypted SQLite database. One table, one row per bypassed package.
//
// Every mutation runs read-current-set -> modify-copy -> commit inside a
// single transaction while holding the mutex, so a concurrent Get on any
// goroutine observes either the old set or the new one, never a partial
// write.
type DenyListStore struct {
	mu     sync.Mutex
	db     *sql.DB
	dbPath string
}

// NewDenyListStore opens (or creates) the encrypted deny-list database.
// The key is used as the SQLCipher passphrase via PRAGMA key.
func NewDenyListStore(dataDir string, key []byte) (*DenyListStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, denyListDBName)
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

	store := &DenyListStore{
		db:     db,
		dbPath: dbPath,
	}

	if err := store.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return store, nil
}

func (s *DenyListStore) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS deny_list (
		package TEXT PRIMARY KEY
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Get returns the current set of bypassed packages.
func (s *DenyListStore) Get() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readSet()
}

// Add inserts a package into the set. Present packages are a no-op.
func (s *DenyListStore) Add(pkg string) error {
	return s.mutate(func(set map[string]bool) {
		set[pkg] = true
	})
}

// Remove deletes a package from the set. Absent packages are a no-op.
func (s *DenyListStore) Remove(pkg string) error {
	return s.mutate(func(set map[string]bool) {
		delete(set, pkg)
	})
}

// Clear empties the set.
func (s *DenyListStore) Clear() error {
	return s.mutate(func(set map[string]bool) {
		for pkg := range set {
			delete(set, pkg)
		}
	})
}

// GetStorePath returns the database file path (for tests and status output).
func (s *DenyListStore) GetStorePath() string {
	return s.dbPath
}

// Close releases the database connection.
func (s *DenyListStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// mutate applies fn to an in-memory copy of the set and commits the result
// atomically. Runs entirely under the store mutex.
func (s *DenyListStore) mutate(fn func(set map[string]bool)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.readSet()
	if err != nil {
		return err
	}

	set := make(map[string]bool, len(current))
	for _, pkg := range current {
		set[pkg] = true
	}
	fn(set)

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM deny_list`); err != nil {
		tx.Rollback()
		return err
	}
	for pkg := range set {
		if _, err := tx.Exec(`INSERT INTO deny_list (package) VALUES (?)`, pkg); err != nil {
			tx.Rollback()
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit deny list: %w", err)
	}
	return nil
}

func (s *DenyListStore) readSet() ([]string, error) {
	rows, err := s.db.Query(`SELECT package FROM deny_list`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var packages []string
	for rows.Next() {
		var pkg string
		if err := rows.Scan(&pkg); err != nil {
			return nil, err
		}
		packages = append(packages, pkg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Strings(packages)
	return packages, nil
}

// Ensure DenyListStore implements domain.DenyListRepository.
var _ domain.DenyListRepository = (*DenyListStore)(nil)
