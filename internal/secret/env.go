package secret

import (
	"os"
	"strings"
)

// EnvStore implements SecretStore on top of the process environment.
// Keys are upper-cased, so "opencage_api_key" reads OPENCAGE_API_KEY.
type EnvStore struct{}

// NewEnvStore creates a new EnvStore.
func NewEnvStore() *EnvStore {
	return &EnvStore{}
}

func envName(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
}

func (e *EnvStore) Set(key string, value []byte) error {
	return os.Setenv(envName(key), string(value))
}

func (e *EnvStore) Get(key string) ([]byte, error) {
	v, ok := os.LookupEnv(envName(key))
	if !ok {
		return nil, nil
	}
	return []byte(strings.TrimSpace(v)), nil
}

func (e *EnvStore) Delete(key string) error {
	return os.Unsetenv(envName(key))
}

// MapStore is an in-memory SecretStore, mostly for tests and one-off runs.
type MapStore map[string]string

func (m MapStore) Set(key string, value []byte) error {
	m[key] = string(value)
	return nil
}

func (m MapStore) Get(key string) ([]byte, error) {
	v, ok := m[key]
	if !ok {
		return nil, nil
	}
	return []byte(v), nil
}

func (m MapStore) Delete(key string) error {
	delete(m, key)
	return nil
}
