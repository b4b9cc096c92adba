package wallet

import (
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ScryptParams selects the keystore KDF cost
type ScryptParams struct {
	N int
	P int
}

var (
	// StandardScrypt is used for real wallets
	StandardScrypt = ScryptParams{N: keystore.StandardScryptN, P: keystore.StandardScryptP}
	// LightScrypt keeps tests fast
	LightScrypt = ScryptParams{N: keystore.LightScryptN, P: keystore.LightScryptP}
)

// OpenKeystore opens (creating if needed) the keystore directory
func OpenKeystore(dir string, params ScryptParams) (*keystore.KeyStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create keystore directory: %w", err)
	}
	return keystore.NewKeyStore(dir, params.N, params.P), nil
}

// CreateAccount generates a new encrypted account.
// It refuses when the keystore already holds one; this client manages a single account.
func CreateAccount(dir, password string, params ScryptParams) (common.Address, error) {
	ks, err := OpenKeystore(dir, params)
	if err != nil {
		return common.Address{}, err
	}
	if len(ks.Accounts()) > 0 {
		return common.Address{}, fmt.Errorf("wallet already exists in %s", dir)
	}

	account, err := ks.NewAccount(password)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to create wallet: %w", err)
	}
	return account.Address, nil
}

// ImportAccount encrypts a hex private key into the keystore
func ImportAccount(dir, privKeyHex, password string, params ScryptParams) (common.Address, error) {
	ks, err := OpenKeystore(dir, params)
	if err != nil {
		return common.Address{}, err
	}
	if len(ks.Accounts()) > 0 {
		return common.Address{}, fmt.Errorf("wallet already exists in %s", dir)
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(privKeyHex), "0x"))
	if err != nil {
		return common.Address{}, fmt.Errorf("invalid private key hex: %w", err)
	}
	defer privateKey.D.SetUint64(0)

	account, err := ks.ImportECDSA(privateKey, password)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to import key: %w", err)
	}
	return account.Address, nil
}

// ListAccounts returns the accounts stored in dir without creating it
func ListAccounts(dir string) ([]common.Address, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}
	ks, err := OpenKeystore(dir, StandardScrypt)
	if err != nil {
		return nil, err
	}
	return addresses(ks.Accounts()), nil
}

// VerifyPassword checks password against the stored key of account
func VerifyPassword(ks *keystore.KeyStore, account common.Address, password string) error {
	acct := accounts.Account{Address: account}
	if err := ks.Unlock(acct, password); err != nil {
		return fmt.Errorf("failed to decrypt key: %w", err)
	}
	return ks.Lock(account)
}

func addresses(accts []accounts.Account) []common.Address {
	out := make([]common.Address, len(accts))
	for i, a := range accts {
		out[i] = a.Address
	}
	return out
}
