package secret

import "fmt"

// SecretStore provides a pluggable interface for reading and storing
// sensitive configuration such as the geocoding API key. Backends: process
// environment, the run-history SQLite variables table, macOS Keychain.
type SecretStore interface {
	// Set stores a secret value under the given key.
	Set(key string, value []byte) error

	// Get retrieves the secret value for the given key.
	// Returns empty slice and nil error if key does not exist.
	Get(key string) ([]byte, error)

	// Delete removes the secret for the given key.
	Delete(key string) error
}

// Lookup is the typed outcome of reading one key: either Found with a
// value, or a missing key. Backend failures are reported separately as errors.
type Lookup struct {
	Key   string
	Value string
	Found bool
}

// Resolve reads key from store. An empty value counts as missing.
func Resolve(store SecretStore, key string) (Lookup, error) {
	if store == nil {
		return Lookup{Key: key}, nil
	}
	v, err := store.Get(key)
	if err != nil {
		return Lookup{Key: key}, fmt.Errorf("lookup %s: %w", key, err)
	}
	if len(v) == 0 {
		return Lookup{Key: key}, nil
	}
	return Lookup{Key: key, Value: string(v), Found: true}, nil
}
