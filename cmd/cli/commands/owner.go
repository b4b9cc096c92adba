package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/mtecstake/autostake/internal/app"
	"github.com/mtecstake/autostake/internal/owner"
	"github.com/mtecstake/autostake/internal/units"
	"github.com/mtecstake/autostake/pkg/types"
	"github.com/spf13/cobra"
)

// NewOwnerCmd creates the owner command group
func NewOwnerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "owner",
		Short: "Contract owner administration",
		Long: `Administer the staking contract. Every action except 'status' and
'explorer' requires the connected account to be the contract owner and
is refused before anything is sent otherwise.`,
	}

	cmd.AddCommand(newOwnerStatusCmd())
	cmd.AddCommand(newOwnerSetParamsCmd())
	cmd.AddCommand(newOwnerSetRatesCmd())
	cmd.AddCommand(newOwnerWithdrawCmd("withdraw-usdt", "USDT"))
	cmd.AddCommand(newOwnerWithdrawCmd("withdraw-mtec", "MTEC"))
	cmd.AddCommand(newOwnerSetPackageCmd())
	cmd.AddCommand(newOwnerExplorerCmd())

	return cmd
}

// ownerRun connects, runs fn and prints the owner status it leaves
func ownerRun(fn func(ctx context.Context, a *app.App) error) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, cleanup, err := connected(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer cleanup()

	if err := fn(ctx, a); err != nil {
		return flowError(a, err)
	}
	if jsonOutput() {
		return printJSON(map[string]any{"status": a.Status(), "owner": a.OwnerStatus()})
	}
	Report(a.Status())
	if st := a.OwnerStatus(); st != nil {
		printOwnerStatus(a, st)
	}
	return nil
}

func printOwnerStatus(a *app.App, st *types.OwnerStatus) {
	enabled := "disabled"
	if st.Params.Enabled {
		enabled = "enabled"
	}
	fmt.Println(StatusBox("Contract", [][2]string{
		{"Owner", st.Owner.Hex()},
		{"You", st.Account.Hex()},
		{"APY", apyPercent(st.Params.APYBps)},
		{"Lock", units.SecondsToDays(st.Params.LockSeconds) + " days"},
		{"Buying", StatusBadge(enabled)},
		{"Referral", owner.FormatRates(st.Rates)},
		{"Explorer", a.ExplorerLink()},
	}))
}

func newOwnerStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show owner, parameters and referral rates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ownerRun(func(ctx context.Context, a *app.App) error {
				_, err := a.LoadOwnerStatus(ctx)
				return err
			})
		},
	}
}

func newOwnerSetParamsCmd() *cobra.Command {
	var (
		apy      string
		lockDays string
		enabled  bool
	)

	cmd := &cobra.Command{
		Use:     "set-params",
		Short:   "Set APY, lock duration and whether buying is enabled",
		Example: `  autostake owner set-params --apy 12 --lock-days 30 --enabled`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ownerRun(func(ctx context.Context, a *app.App) error {
				return progress("Updating parameters", func() error {
					_, err := a.SetParams(ctx, owner.ParamsInput{APYPercent: apy, LockDays: lockDays, Enabled: enabled})
					return err
				})
			})
		},
	}

	cmd.Flags().StringVar(&apy, "apy", "", "APY in percent, e.g. 12.5")
	cmd.Flags().StringVar(&lockDays, "lock-days", "", "Lock duration in days")
	cmd.Flags().BoolVar(&enabled, "enabled", true, "Allow package purchases")
	_ = cmd.MarkFlagRequired("apy")
	_ = cmd.MarkFlagRequired("lock-days")
	return cmd
}

func newOwnerSetRatesCmd() *cobra.Command {
	var r1, r2, r3 uint64

	cmd := &cobra.Command{
		Use:     "set-ref-rates",
		Short:   "Set the three referral levels in basis points",
		Example: `  autostake owner set-ref-rates --ref1 500 --ref2 300 --ref3 200`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ownerRun(func(ctx context.Context, a *app.App) error {
				return progress("Updating referral rates", func() error {
					_, err := a.SetReferralRates(ctx, types.ReferralRates{Level1: r1, Level2: r2, Level3: r3})
					return err
				})
			})
		},
	}

	cmd.Flags().Uint64Var(&r1, "ref1", 0, "Level 1 rate in bps")
	cmd.Flags().Uint64Var(&r2, "ref2", 0, "Level 2 rate in bps")
	cmd.Flags().Uint64Var(&r3, "ref3", 0, "Level 3 rate in bps")
	return cmd
}

func newOwnerWithdrawCmd(use, symbol string) *cobra.Command {
	var to string

	cmd := &cobra.Command{
		Use:   use + " [amount]",
		Short: "Withdraw " + symbol + " held by the contract",
		Long: "Withdraw " + symbol + ` held by the contract. The amount is in whole tokens
and may have decimals. The recipient defaults to the connected account.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount := args[0]
			return ownerRun(func(ctx context.Context, a *app.App) error {
				return progress("Withdrawing "+symbol, func() error {
					if symbol == "USDT" {
						return a.WithdrawUSDT(ctx, amount, to)
					}
					return a.WithdrawMTEC(ctx, amount, to)
				})
			})
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "Recipient address (default: connected account)")
	return cmd
}

func newOwnerSetPackageCmd() *cobra.Command {
	var (
		priceIn   string
		rewardOut string
		active    bool
	)

	cmd := &cobra.Command{
		Use:     "set-package [id]",
		Short:   "Create or replace a package",
		Example: `  autostake owner set-package 3 --price 250 --reward 2600 --active`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid package id %q", args[0])
			}
			return ownerRun(func(ctx context.Context, a *app.App) error {
				return progress(fmt.Sprintf("Saving package #%d", id), func() error {
					return a.SetPackage(ctx, owner.PackageInput{ID: id, PriceIn: priceIn, RewardOut: rewardOut, Active: active})
				})
			})
		},
	}

	cmd.Flags().StringVar(&priceIn, "price", "", "Price in USDT")
	cmd.Flags().StringVar(&rewardOut, "reward", "", "MTEC staked per purchase")
	cmd.Flags().BoolVar(&active, "active", true, "Whether the package can be bought")
	_ = cmd.MarkFlagRequired("price")
	_ = cmd.MarkFlagRequired("reward")
	return cmd
}

func newOwnerExplorerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "explorer",
		Short: "Print the block explorer link of the contract",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			link := cfg.Explorer(cfg.Contracts.AutoStake)
			if link == "" {
				return fmt.Errorf("no block explorer configured for %s", cfg.Network.ChainName)
			}
			fmt.Println(link)
			return nil
		},
	}
}
