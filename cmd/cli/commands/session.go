package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/huh"
	"github.com/ethereum/go-ethereum/common"
	"github.com/mtecstake/autostake/internal/addr"
	"github.com/mtecstake/autostake/internal/app"
	"github.com/mtecstake/autostake/internal/config"
	"github.com/mtecstake/autostake/internal/metrics"
	"github.com/mtecstake/autostake/internal/wallet"
)

// appOptions tune how newApp builds the flow boundary
type appOptions struct {
	referral string                       // --ref value, URL or address
	metrics  *metrics.PrometheusCollector // nil disables telemetry
}

// newApp loads the config and builds the App with the wallet provider.
// In mock mode a throwaway in-memory wallet replaces the keystore.
func newApp(opts appOptions) (*app.App, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	provider, closeProvider, err := newProvider(cfg)
	if err != nil {
		return nil, nil, err
	}

	appOpts := app.Options{
		Config:   cfg,
		Provider: provider,
		Referral: addr.ParseReferral(opts.referral),
	}
	if opts.metrics != nil {
		appOpts.Observer = opts.metrics
	}

	a, err := app.New(appOpts)
	if err != nil {
		closeProvider()
		return nil, nil, err
	}
	cleanup := func() {
		a.Disconnect()
		closeProvider()
	}
	return a, cleanup, nil
}

// newProvider returns the wallet provider for cfg and its cleanup
func newProvider(cfg *config.Config) (wallet.Provider, func(), error) {
	if cfg.Client.Mock {
		mp, err := wallet.NewMemoryProvider(cfg.Network.ChainID, approver())
		if err != nil {
			return nil, nil, err
		}
		return mp, func() {}, nil
	}

	passphrase := []wallet.PassphraseFunc{wallet.EnvPassphrase(config.EnvWalletPassword)}
	if cfg.Wallet.UseKeyring {
		passphrase = append(passphrase, wallet.KeyringPassphrase())
	}
	passphrase = append(passphrase, promptPassphrase)

	kp, err := wallet.NewKeystoreProvider(wallet.KeystoreConfig{
		Dir:            cfg.Wallet.KeystoreDir,
		Account:        common.HexToAddress(cfg.Wallet.Account),
		InitialChainID: cfg.Wallet.InitialChainID,
		Approve:        approver(),
		Passphrase:     wallet.PassphraseChain(passphrase...),
	})
	if err != nil {
		return nil, nil, err
	}
	return kp, func() { _ = kp.Close() }, nil
}

// approver asks for consent on the terminal unless --yes was given
func approver() wallet.Approver {
	if AssumeYes {
		return wallet.AutoApprove
	}
	return func(ctx context.Context, req wallet.ApprovalRequest) (bool, error) {
		if !isTTY() {
			return false, fmt.Errorf("cannot ask for %s consent without a terminal, use --yes", req.Kind)
		}
		var ok bool
		err := huh.NewConfirm().
			Title(approvalTitle(req)).
			Description(req.Summary).
			Affirmative("Approve").
			Negative("Reject").
			Value(&ok).
			Run()
		if err != nil {
			return false, err
		}
		return ok, nil
	}
}

func approvalTitle(req wallet.ApprovalRequest) string {
	switch req.Kind {
	case wallet.ApproveConnect:
		return "Connect account " + addr.Short(req.Account.Hex()) + "?"
	case wallet.ApproveSwitch:
		return fmt.Sprintf("Switch the wallet to chain %d?", req.ChainID)
	case wallet.ApproveAdd:
		return fmt.Sprintf("Add chain %d to the wallet?", req.ChainID)
	case wallet.ApproveSign:
		return "Sign and send this transaction?"
	}
	return "Approve wallet request?"
}

// promptPassphrase is the last password source: ask on the terminal
func promptPassphrase(account common.Address) (string, error) {
	if !isTTY() {
		return "", nil
	}
	fmt.Fprintf(os.Stderr, "Password for %s: ", addr.Short(account.Hex()))
	pw, err := readPasswordNoEcho()
	fmt.Fprintln(os.Stderr)
	return pw, err
}

// connected builds the App and connects it. Callers defer the cleanup.
func connected(ctx context.Context, opts appOptions) (*app.App, func(), error) {
	a, cleanup, err := newApp(opts)
	if err != nil {
		return nil, nil, err
	}
	err = progress("Connecting wallet", func() error {
		_, err := a.Connect(ctx)
		return err
	})
	if err != nil {
		cleanup()
		return nil, nil, flowError(a, err)
	}
	return a, cleanup, nil
}

// progress runs fn behind a spinner. Wallet prompts cannot share the
// terminal with one, so without --yes it only prints the message.
func progress(msg string, fn func() error) error {
	if jsonOutput() {
		return fn()
	}
	if AssumeYes {
		return WithSpinner(msg, fn)
	}
	fmt.Fprintf(os.Stderr, "%s...\n", msg)
	return fn()
}

// flowError prints the status a failed flow left behind and returns the
// error cobra reports
func flowError(a *app.App, err error) error {
	st := a.Status()
	if st.Message == "" {
		return err
	}
	if jsonOutput() {
		_ = printJSON(st)
	} else {
		Report(st)
	}
	return ErrReported
}

// ErrReported marks an error whose message was already printed
var ErrReported = errors.New("command failed")

// signalContext returns a context cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
