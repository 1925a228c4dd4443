package secret

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// DefaultKeychainService is the Keychain service the pipeline's items live under.
const DefaultKeychainService = "restaurants-etl"

// exit status of `security find-generic-password` when the item is missing
const keychainItemNotFound = 44

// KeychainStore implements SecretStore using the macOS Keychain
// via the `security` CLI tool.
type KeychainStore struct {
	Service string
	command func(name string, args ...string) *exec.Cmd
}

// NewKeychainStore creates a KeychainStore for the given service name.
func NewKeychainStore(service string) *KeychainStore {
	if service == "" {
		service = DefaultKeychainService
	}
	return &KeychainStore{Service: service, command: exec.Command}
}

// Set stores a secret, replacing any existing item for key.
func (k *KeychainStore) Set(key string, value []byte) error {
	_ = k.Delete(key)

	cmd := k.command("security", "add-generic-password",
		"-a", key,
		"-s", k.Service,
		"-w", string(value),
		"-U",
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("keychain set: %s: %w", strings.TrimSpace(string(out)), err)
	}
	return nil
}

// Get retrieves a secret. A missing item is reported as (nil, nil) so the
// caller sees a missing key rather than a backend failure.
func (k *KeychainStore) Get(key string) ([]byte, error) {
	cmd := k.command("security", "find-generic-password",
		"-a", key,
		"-s", k.Service,
		"-w",
	)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == keychainItemNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("keychain get: %w", err)
	}
	return []byte(strings.TrimSpace(string(out))), nil
}

// Delete removes a secret. Deleting a missing item is not an error.
func (k *KeychainStore) Delete(key string) error {
	cmd := k.command("security", "delete-generic-password",
		"-a", key,
		"-s", k.Service,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == keychainItemNotFound {
			return nil
		}
		return fmt.Errorf("keychain delete: %s: %w", strings.TrimSpace(string(out)), err)
	}
	return nil
}
