package storage

import (
	"database/sql"
	"time"
)

// VariableStore is a key-value configuration table. It implements
// secret.SecretStore so the geocoding credential can live next to the
// run history.
type VariableStore struct {
	db *DB
}

// NewVariableStore creates a new VariableStore.
func NewVariableStore(db *DB) *VariableStore {
	return &VariableStore{db: db}
}

func (s *VariableStore) Set(key string, value []byte) error {
	_, err := s.db.conn.Exec(
		`INSERT INTO variables (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
		key, string(value), time.Now(),
	)
	return err
}

// Get returns nil, nil for a key that was never set.
func (s *VariableStore) Get(key string) ([]byte, error) {
	var v string
	err := s.db.conn.QueryRow(`SELECT value FROM variables WHERE key = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(v), nil
}

func (s *VariableStore) Delete(key string) error {
	_, err := s.db.conn.Exec(`DELETE FROM variables WHERE key = ?`, key)
	return err
}

// Keys lists every stored key.
func (s *VariableStore) Keys() ([]string, error) {
	rows, err := s.db.conn.Query(`SELECT key FROM variables ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
