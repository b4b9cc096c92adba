package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/mtecstake/autostake/internal/app"
	"github.com/spf13/cobra"
)

func NewPackagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "packages",
		Short: "List the staking packages",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, cleanup, err := connected(ctx, appOptions{})
			if err != nil {
				return err
			}
			defer cleanup()

			pkgs, err := a.LoadCatalog(ctx)
			if err != nil {
				return flowError(a, err)
			}
			if jsonOutput() {
				return printJSON(pkgs)
			}
			fmt.Println(RenderTable([]string{"ID", "PRICE", "STAKED", "STATUS"}, packageRows(a)))
			fmt.Println(Hint("* marks the default selection"))
			return nil
		},
	}
}

func NewSelectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "select [package-id]",
		Short: "Pick a package and check the USDT allowance for it",
		Long: `Pick a package and check whether the current USDT allowance covers it.

Without an argument an interactive picker is shown.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, cleanup, err := connected(ctx, appOptions{})
			if err != nil {
				return err
			}
			defer cleanup()

			if _, err := a.LoadCatalog(ctx); err != nil {
				return flowError(a, err)
			}

			var id uint64
			if len(args) == 1 {
				id, err = parseID(args[0])
				if err != nil {
					return err
				}
			} else {
				id, err = pickPackage(a)
				if err != nil {
					return err
				}
			}
			if _, err := selectAndEvaluate(ctx, a, id); err != nil {
				return err
			}
			return nil
		},
	}
}

// selectAndEvaluate selects id and prints the allowance verdict
func selectAndEvaluate(ctx context.Context, a *app.App, id uint64) (bool, error) {
	if _, err := a.SelectPackage(id); err != nil {
		return false, flowError(a, err)
	}
	ev, err := a.EvaluateAllowance(ctx)
	if err != nil {
		return false, flowError(a, err)
	}
	if jsonOutput() {
		return ev.Sufficient, printJSON(ev)
	}
	fmt.Println(StatusBox(fmt.Sprintf("Package #%d", id), [][2]string{
		{"Price", a.FormatUSDT(ev.Required) + " USDT"},
		{"Allowance", a.FormatUSDT(ev.Allowance) + " USDT"},
	}))
	if ev.Sufficient {
		Success("Allowance covers this package. Ready to buy.")
	} else {
		Warning("Allowance too low. Run: autostake approve --package " + strconv.FormatUint(id, 10))
	}
	return ev.Sufficient, nil
}

// pickPackage shows the catalog as a select prompt
func pickPackage(a *app.App) (uint64, error) {
	if !isTTY() {
		return 0, fmt.Errorf("package id required when not running in a terminal")
	}
	var opts []huh.Option[uint64]
	for _, p := range a.Catalog().Packages() {
		if !p.Active {
			continue
		}
		label := fmt.Sprintf("#%d  %s USDT -> %s MTEC", p.ID, a.FormatUSDT(p.PriceIn), a.FormatMTEC(p.RewardOut))
		opts = append(opts, huh.NewOption(label, p.ID))
	}
	if len(opts) == 0 {
		return 0, fmt.Errorf("no active packages")
	}
	var id uint64
	err := huh.NewSelect[uint64]().
		Title("Choose a package").
		Options(opts...).
		Value(&id).
		Run()
	return id, err
}

func NewApproveCmd() *cobra.Command {
	var pkgID int64

	cmd := &cobra.Command{
		Use:   "approve",
		Short: "Approve USDT spending by the staking contract",
		Long: `Approve the staking contract to spend USDT for package purchases.

The approval is unlimited, so one approval covers every later purchase.
Nothing is sent when the current allowance already covers the package.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, cleanup, err := connected(ctx, appOptions{})
			if err != nil {
				return err
			}
			defer cleanup()

			if err := prepareSelection(ctx, a, pkgID); err != nil {
				return err
			}
			err = progress("Approving USDT", func() error {
				_, err := a.Approve(ctx)
				return err
			})
			if err != nil && a.Status().IsError {
				return flowError(a, err)
			}
			Report(a.Status())
			return nil
		},
	}

	cmd.Flags().Int64Var(&pkgID, "package", -1, "Package to approve for (default: first active)")
	return cmd
}

// prepareSelection loads the catalog and selects id, or keeps the default
// selection when id is negative
func prepareSelection(ctx context.Context, a *app.App, id int64) error {
	if _, err := a.LoadCatalog(ctx); err != nil {
		return flowError(a, err)
	}
	if id < 0 {
		return nil
	}
	if _, err := a.SelectPackage(uint64(id)); err != nil {
		return flowError(a, err)
	}
	return nil
}

func NewBuyCmd() *cobra.Command {
	var (
		pkgID int64
		ref   string
	)

	cmd := &cobra.Command{
		Use:   "buy",
		Short: "Buy a package and auto-stake the MTEC",
		Long: `Buy a package with USDT. The MTEC it pays out is staked immediately.

The USDT allowance is re-read before sending; approve first if it is too
low. A referral link or address may be given with --ref; your own
address is ignored as a referrer.`,
		Example: `  autostake buy --package 1
  autostake buy --package 0 --ref https://mtec.example/stake?ref=0xabc...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, cleanup, err := connected(ctx, appOptions{referral: ref})
			if err != nil {
				return err
			}
			defer cleanup()

			if err := prepareSelection(ctx, a, pkgID); err != nil {
				return err
			}
			sel, ok := a.Catalog().Selected()
			if !ok {
				return fmt.Errorf("no package selected")
			}

			if !AssumeYes && isTTY() {
				var confirm bool
				err := huh.NewConfirm().
					Title(fmt.Sprintf("Buy package #%d for %s USDT?", sel.ID, a.FormatUSDT(sel.PriceIn))).
					Description(fmt.Sprintf("%s MTEC will be staked.", a.FormatMTEC(sel.RewardOut))).
					Value(&confirm).
					Run()
				if err != nil {
					return err
				}
				if !confirm {
					Info("Cancelled.")
					return nil
				}
			}

			var res *app.BuyResult
			err = progress(fmt.Sprintf("Buying package #%d", sel.ID), func() error {
				var err error
				res, err = a.Buy(ctx, sel.ID, a.Referral())
				return err
			})
			if err != nil && res == nil {
				return flowError(a, err)
			}
			if jsonOutput() {
				return printJSON(map[string]any{"status": a.Status(), "result": res})
			}
			Report(a.Status())
			if res != nil && res.Portfolio != nil {
				fmt.Println(KeyValue("Stakes", strconv.Itoa(res.Portfolio.Count())))
			}
			if err != nil {
				return ErrReported
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&pkgID, "package", -1, "Package to buy (default: first active)")
	cmd.Flags().StringVar(&ref, "ref", "", "Referral link or referrer address")
	return cmd
}

func parseID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: must be a non-negative integer", s)
	}
	return id, nil
}
