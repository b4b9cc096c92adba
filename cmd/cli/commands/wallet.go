package commands

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mtecstake/autostake/internal/config"
	"github.com/mtecstake/autostake/internal/wallet"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// NewWalletCmd creates the wallet command group
func NewWalletCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Manage the keystore wallet",
		Long: `Manage the Ethereum wallet that buys, stakes and claims.

The wallet is stored as an encrypted keystore file (geth V3 format).
These commands operate directly on keystore files; no network is needed.

The wallet password can be stored in your platform keyring:
  macOS:           Keychain
  Linux (desktop): GNOME Keyring / KDE Wallet
  Linux (server):  kernel keyring (volatile, lost on reboot)
Otherwise set AUTOSTAKE_WALLET_PASSWORD or enter it when asked.

Examples:
  autostake wallet create            # Generate a new wallet
  autostake wallet import            # Import from a private key
  autostake wallet show              # Show address and keystore path
  autostake wallet forget-password   # Remove the stored password`,
	}

	cmd.AddCommand(newWalletCreateCmd())
	cmd.AddCommand(newWalletImportCmd())
	cmd.AddCommand(newWalletShowCmd())
	cmd.AddCommand(newWalletForgetPasswordCmd())

	return cmd
}

// defaultKeystoreDir returns the keystore directory from config or default
func defaultKeystoreDir() string {
	path := ConfigPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	if cfg, err := config.Load(path); err == nil && cfg.Wallet.KeystoreDir != "" {
		return cfg.Wallet.KeystoreDir
	}
	return config.DefaultConfig().Wallet.KeystoreDir
}

// storePasswordInKeyring stores the password for account, or explains the
// alternatives when no keyring is available
func storePasswordInKeyring(account common.Address, password string) {
	if backend, err := wallet.StorePassword(account, password); err == nil {
		fmt.Printf("  Password saved to %s\n", backend)
		fmt.Println("  The wallet will be unlocked automatically.")
		return
	}

	fmt.Println("  Could not store password in system keyring.")
	fmt.Println("  For automatic wallet unlock, set " + config.EnvWalletPassword + ".")
}

// readNewPassword asks for a password twice, with retries
func readNewPassword() (string, error) {
	const maxAttempts = 3
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		fmt.Fprint(os.Stderr, "Enter wallet password: ")
		password, err := readPasswordNoEcho()
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)

		if len(password) < 8 {
			Warning("Password must be at least 8 characters. Try again.")
			continue
		}

		fmt.Fprint(os.Stderr, "Confirm wallet password: ")
		confirm, err := readPasswordNoEcho()
		if err != nil {
			return "", fmt.Errorf("failed to read confirmation: %w", err)
		}
		fmt.Fprintln(os.Stderr)

		if password != confirm {
			Warning("Passwords do not match. Try again.")
			continue
		}
		return password, nil
	}
	return "", errors.New("too many failed attempts")
}

// existingWallet fails when dir already holds an account
func existingWallet(dir string) error {
	accts, err := wallet.ListAccounts(dir)
	if err != nil {
		return fmt.Errorf("failed to check keystore: %w", err)
	}
	if len(accts) > 0 {
		return fmt.Errorf("wallet already exists at %s (address: %s)", dir, accts[0].Hex())
	}
	return nil
}

func newWalletCreateCmd() *cobra.Command {
	var (
		keystoreDir string
		useKeyring  bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new wallet",
		Long:  "Create a new Ethereum wallet with a password-encrypted keystore file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := existingWallet(keystoreDir); err != nil {
				return err
			}

			password, err := readNewPassword()
			if err != nil {
				return err
			}

			account, err := wallet.CreateAccount(keystoreDir, password, wallet.StandardScrypt)
			if err != nil {
				return err
			}

			fmt.Println()
			Success("Wallet created!")
			fmt.Println(StatusBox("Wallet", [][2]string{
				{"Address", account.Hex()},
				{"Keystore", keystoreDir},
			}))
			if useKeyring {
				storePasswordInKeyring(account, password)
			}
			fmt.Println()
			Warning("Back up your keystore directory and remember your password.")
			fmt.Println(Hint("If you lose either, your funds are unrecoverable."))
			fmt.Println(Hint("Fund the address with BNB for gas and USDT, then run: autostake packages"))
			return nil
		},
	}

	cmd.Flags().StringVar(&keystoreDir, "keystore", defaultKeystoreDir(), "Path to keystore directory")
	cmd.Flags().BoolVar(&useKeyring, "keyring", true, "Store the password in the system keyring")

	return cmd
}

func newWalletImportCmd() *cobra.Command {
	var (
		keystoreDir string
		useKeyring  bool
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a wallet from a private key",
		Long:  "Import an existing Ethereum private key into an encrypted keystore file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := existingWallet(keystoreDir); err != nil {
				return err
			}

			// Prompt for private key with retry
			const maxAttempts = 3
			var privKeyHex string
			for attempt := 1; attempt <= maxAttempts; attempt++ {
				fmt.Fprint(os.Stderr, "Enter private key (hex, with or without 0x prefix): ")
				input, err := readPasswordNoEcho()
				if err != nil {
					return fmt.Errorf("failed to read private key: %w", err)
				}
				fmt.Fprintln(os.Stderr)

				input = strings.TrimPrefix(strings.TrimSpace(input), "0x")
				if len(input) != 64 {
					Warning(fmt.Sprintf("Private key must be 64 hex characters (32 bytes), got %d. Try again.", len(input)))
					continue
				}
				privKeyHex = input
				break
			}
			if privKeyHex == "" {
				return errors.New("too many failed attempts")
			}

			password, err := readNewPassword()
			if err != nil {
				return err
			}

			account, err := wallet.ImportAccount(keystoreDir, privKeyHex, password, wallet.StandardScrypt)
			if err != nil {
				return err
			}

			fmt.Println()
			Success("Wallet imported!")
			fmt.Println(StatusBox("Wallet", [][2]string{
				{"Address", account.Hex()},
				{"Keystore", keystoreDir},
			}))
			if useKeyring {
				storePasswordInKeyring(account, password)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&keystoreDir, "keystore", defaultKeystoreDir(), "Path to keystore directory")
	cmd.Flags().BoolVar(&useKeyring, "keyring", true, "Store the password in the system keyring")

	return cmd
}

func newWalletShowCmd() *cobra.Command {
	var keystoreDir string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show wallet address and keystore path",
		Long:  "Display the wallet address and keystore directory. No password needed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			accts, err := wallet.ListAccounts(keystoreDir)
			if err != nil {
				return fmt.Errorf("failed to load wallet: %w", err)
			}
			if len(accts) == 0 {
				Info("No wallet found.")
				fmt.Println(Hint("Create one with: autostake wallet create"))
				return nil
			}

			for _, account := range accts {
				pwStatus := "not stored (manual unlock required)"
				if pw, err := wallet.RetrievePassword(account); err == nil && pw != "" {
					pwStatus = "stored in system keyring"
				} else if os.Getenv(config.EnvWalletPassword) != "" {
					pwStatus = "from " + config.EnvWalletPassword
				}

				if jsonOutput() {
					if err := printJSON(map[string]string{"address": account.Hex(), "keystore": keystoreDir, "password": pwStatus}); err != nil {
						return err
					}
					continue
				}
				fmt.Println(StatusBox("Wallet", [][2]string{
					{"Address", account.Hex()},
					{"Keystore", keystoreDir},
					{"Password", pwStatus},
				}))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&keystoreDir, "keystore", defaultKeystoreDir(), "Path to keystore directory")

	return cmd
}

func newWalletForgetPasswordCmd() *cobra.Command {
	var keystoreDir string

	cmd := &cobra.Command{
		Use:   "forget-password",
		Short: "Remove the wallet password from the system keyring",
		Long: `Remove the stored wallet password from the system keyring.

After this, commands that sign transactions will ask for the password
unless ` + config.EnvWalletPassword + ` is set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			accts, err := wallet.ListAccounts(keystoreDir)
			if err != nil {
				return fmt.Errorf("failed to load wallet: %w", err)
			}

			removed := false
			for _, account := range accts {
				if pw, err := wallet.RetrievePassword(account); err != nil || pw == "" {
					continue
				}
				if err := wallet.DeletePassword(account); err != nil {
					Warning(fmt.Sprintf("Could not remove password for %s: %v", account.Hex(), err))
					continue
				}
				fmt.Printf("Removed password for %s from system keyring\n", account.Hex())
				removed = true
			}

			if !removed {
				fmt.Println("No stored password found in the keyring.")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&keystoreDir, "keystore", defaultKeystoreDir(), "Path to keystore directory")

	return cmd
}

// readPasswordNoEcho reads a line from stdin with echo disabled.
func readPasswordNoEcho() (string, error) {
	password, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", err
	}
	return string(password), nil
}
