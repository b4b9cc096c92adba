package commands

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/mtecstake/autostake/internal/app"
	"github.com/mtecstake/autostake/pkg/types"
	"github.com/spf13/cobra"
)

func NewStakesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stakes",
		Short: "List your staked positions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, cleanup, err := connected(ctx, appOptions{})
			if err != nil {
				return err
			}
			defer cleanup()

			p, err := a.LoadPortfolio(ctx)
			if err != nil {
				return flowError(a, err)
			}
			if jsonOutput() {
				return printJSON(p)
			}
			printPortfolio(a, p)
			return nil
		},
	}
}

// printPortfolio renders the position table and totals
func printPortfolio(a *app.App, p *types.Portfolio) {
	if p.Count() == 0 {
		Info("No stakes yet.")
		fmt.Println(Hint("Buy a package with: autostake buy"))
		return
	}

	rows := make([][]string, 0, p.Count())
	for i := range p.Positions {
		pos := &p.Positions[i]
		claim := claimLabel(pos)
		if isTTY() && !pos.Claimed {
			claim = StatusBadge(claim)
		}
		rows = append(rows, []string{
			strconv.FormatUint(pos.Index+1, 10),
			a.FormatMTEC(pos.Principal),
			a.FormatMTEC(pos.PendingReward),
			apyPercent(pos.APYBps),
			pos.StartTime.Local().Format("2006-01-02 15:04"),
			FormatUnlock(pos.UnlockTime()),
			pos.Status(),
			claim,
		})
	}
	fmt.Println(RenderTable([]string{"#", "PRINCIPAL", "PENDING", "APY", "START", "UNLOCK", "STATUS", "CLAIM"}, rows))
	fmt.Println(KeyValue("Principal", a.FormatMTEC(p.TotalPrincipal)+" MTEC"))
	fmt.Println(KeyValue("Pending", a.FormatMTEC(p.TotalPending)+" MTEC"))
}

func NewClaimCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "claim [stake-number]",
		Short: "Claim one unlocked stake",
		Long: `Claim the principal and reward of one unlocked stake.

Stake numbers are the # column of 'autostake stakes', starting at 1.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := parseID(args[0])
			if err != nil {
				return err
			}
			if n == 0 {
				return fmt.Errorf("stake numbers start at 1")
			}

			ctx, cancel := signalContext()
			defer cancel()

			a, cleanup, err := connected(ctx, appOptions{})
			if err != nil {
				return err
			}
			defer cleanup()

			err = progress(fmt.Sprintf("Claiming stake #%d", n), func() error {
				_, err := a.ClaimOne(ctx, n-1)
				return err
			})
			if err != nil {
				return flowError(a, err)
			}
			if jsonOutput() {
				return printJSON(a.Status())
			}
			Report(a.Status())
			return nil
		},
	}
}

func NewClaimAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "claim-all",
		Short: "Claim every unlocked stake",
		Long: `Claim every stake that is claimable right now.

Each stake is re-checked just before its claim is sent, and claims are
sent one at a time. A failed claim does not stop the rest.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, cleanup, err := connected(ctx, appOptions{})
			if err != nil {
				return err
			}
			defer cleanup()

			var report *types.ClaimReport
			err = progress("Claiming unlocked stakes", func() error {
				var err error
				report, err = a.ClaimAll(ctx)
				return err
			})

			if jsonOutput() {
				if perr := printJSON(claimReportJSON(a, report)); perr != nil {
					return perr
				}
			} else {
				Report(a.Status())
				printClaimFailures(report)
			}
			if err != nil && !errors.Is(err, types.ErrNothingToClaim) {
				return ErrReported
			}
			return nil
		},
	}
}

func printClaimFailures(report *types.ClaimReport) {
	if report == nil || len(report.Failed) == 0 {
		return
	}
	indices := make([]uint64, 0, len(report.Failed))
	for i := range report.Failed {
		indices = append(indices, i)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })
	for _, i := range indices {
		fmt.Println(KeyValue(fmt.Sprintf("Stake #%d", i+1), app.Describe(report.Failed[i], "")))
	}
}

func claimReportJSON(a *app.App, report *types.ClaimReport) map[string]any {
	out := map[string]any{"status": a.Status()}
	if report == nil {
		return out
	}
	failed := make(map[string]string, len(report.Failed))
	for i, err := range report.Failed {
		failed[strconv.FormatUint(i, 10)] = err.Error()
	}
	out["attempted"] = report.Attempted
	out["succeeded"] = report.Succeeded
	out["skipped"] = report.Skipped
	out["failed"] = failed
	return out
}
