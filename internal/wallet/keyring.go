package wallet

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/99designs/keyring"
	"github.com/ethereum/go-ethereum/common"
)

const keyringServiceName = "autostake"

// PassphraseFunc returns the keystore password for account.
// An empty string with a nil error means "not available here, try the next source".
type PassphraseFunc func(account common.Address) (string, error)

// ErrNoPassphrase is returned when no source could supply a password
var ErrNoPassphrase = errors.New("no wallet password available")

// PassphraseChain tries each source in order and returns the first password found
func PassphraseChain(sources ...PassphraseFunc) PassphraseFunc {
	return func(account common.Address) (string, error) {
		for _, src := range sources {
			if src == nil {
				continue
			}
			pw, err := src(account)
			if err != nil {
				return "", err
			}
			if pw != "" {
				return pw, nil
			}
		}
		return "", ErrNoPassphrase
	}
}

// EnvPassphrase reads the password from an environment variable
func EnvPassphrase(name string) PassphraseFunc {
	return func(common.Address) (string, error) {
		return os.Getenv(name), nil
	}
}

// KeyringPassphrase reads the password stored for account in the platform keyring.
// An unavailable keyring is treated as "not stored".
func KeyringPassphrase() PassphraseFunc {
	return func(account common.Address) (string, error) {
		pw, err := RetrievePassword(account)
		if err != nil {
			return "", nil
		}
		return pw, nil
	}
}

// StorePassword stores the wallet password in the platform keyring.
// On macOS: Keychain. On Linux: Secret Service (GNOME Keyring / KDE Wallet).
// Returns the backend name on success.
func StorePassword(account common.Address, password string) (string, error) {
	ring, backend, err := openKeyring()
	if err != nil {
		return "", err
	}

	err = ring.Set(keyring.Item{
		Key:         keyringKey(account),
		Data:        []byte(password),
		Label:       "autostake wallet password",
		Description: "Password for the autostake keystore account " + account.Hex(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to store in %s: %w", backend, err)
	}
	return backend, nil
}

// RetrievePassword returns ("", nil) if the keyring is available but holds no password
func RetrievePassword(account common.Address) (string, error) {
	ring, _, err := openKeyring()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(keyringKey(account))
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(item.Data), nil
}

// DeletePassword removes the stored password; a missing entry is not an error
func DeletePassword(account common.Address) error {
	ring, _, err := openKeyring()
	if err != nil {
		return err
	}
	err = ring.Remove(keyringKey(account))
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return nil
	}
	return err
}

func keyringKey(account common.Address) string {
	return "wallet-password-" + account.Hex()
}

func openKeyring() (keyring.Keyring, string, error) {
	backends := platformKeyringBackends()
	if len(backends) == 0 {
		return nil, "", fmt.Errorf("no keyring backend available on %s", runtime.GOOS)
	}

	ring, err := keyring.Open(keyring.Config{
		ServiceName:                    keyringServiceName,
		AllowedBackends:                backends,
		KeychainTrustApplication:       true,
		KeychainAccessibleWhenUnlocked: true,
		KeychainSynchronizable:         false,
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to open keyring: %w", err)
	}
	return ring, keyringBackendName(), nil
}

func platformKeyringBackends() []keyring.BackendType {
	switch runtime.GOOS {
	case "darwin":
		return []keyring.BackendType{keyring.KeychainBackend}
	case "linux":
		return []keyring.BackendType{keyring.SecretServiceBackend, keyring.KWalletBackend}
	default:
		return nil
	}
}

func keyringBackendName() string {
	switch runtime.GOOS {
	case "darwin":
		return "macOS Keychain"
	case "linux":
		return "Secret Service"
	default:
		return "system keyring"
	}
}
