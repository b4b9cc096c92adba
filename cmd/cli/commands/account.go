package commands

import (
	"fmt"

	"github.com/mtecstake/autostake/internal/addr"
	"github.com/mtecstake/autostake/internal/app"
	"github.com/mtecstake/autostake/internal/units"
	"github.com/spf13/cobra"
)

func NewConnectCmd() *cobra.Command {
	var ref string

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Connect the wallet and show the session",
		Long: `Connect the wallet to the configured network.

Asks the wallet for the account, switches (or adds, then switches) the
wallet to the required chain and checks the token addresses the contract
reports against the config.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, cleanup, err := connected(ctx, appOptions{referral: ref})
			if err != nil {
				return err
			}
			defer cleanup()

			snap := a.Manager().Snapshot()
			link, _ := a.RefLink()
			if jsonOutput() {
				return printJSON(map[string]any{
					"state":    snap.State,
					"account":  snap.Session.Account.Hex(),
					"chain_id": snap.Session.ChainID.Uint64(),
					"contract": snap.Session.Contract.Address().Hex(),
					"ref_link": link,
				})
			}

			fmt.Println(StatusBox("Session", [][2]string{
				{"State", StatusBadge(string(snap.State))},
				{"Account", snap.Session.Account.Hex()},
				{"Chain", fmt.Sprintf("%s (%d)", a.Config().Network.ChainName, snap.Session.ChainID.Uint64())},
				{"Contract", snap.Session.Contract.Address().Hex()},
			}))
			if link != "" {
				fmt.Println(KeyValue("Referral link", link))
			}
			Report(a.Status())
			return nil
		},
	}

	cmd.Flags().StringVar(&ref, "ref", "", "Referral link or referrer address")
	return cmd
}

func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show balances, referrers and stake totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, cleanup, err := connected(ctx, appOptions{})
			if err != nil {
				return err
			}
			defer cleanup()

			usdt, mtec, err := a.Balances(ctx)
			if err != nil {
				return flowError(a, err)
			}
			refs, err := a.Referrers(ctx)
			if err != nil {
				return flowError(a, err)
			}
			p, err := a.LoadPortfolio(ctx)
			if err != nil {
				return flowError(a, err)
			}

			if jsonOutput() {
				return printJSON(map[string]any{
					"account":   a.Manager().Account().Hex(),
					"usdt":      a.FormatUSDT(usdt),
					"mtec":      a.FormatMTEC(mtec),
					"referrers": refs,
					"portfolio": p,
				})
			}

			cfg := a.Config()
			fmt.Println(StatusBox("Account", [][2]string{
				{"Address", a.Manager().Account().Hex()},
				{"USDT", a.FormatUSDT(usdt)},
				{"MTEC", a.FormatMTEC(mtec)},
				{"Explorer", cfg.Explorer(a.Manager().Account().Hex())},
			}))

			fmt.Println(SectionHeader("Referrers"))
			if !refs.Bound() {
				fmt.Println(Hint("No referrer bound to this account."))
			} else {
				fmt.Println(KeyValue("Level 1", addr.Short(refs.Level1.Hex())))
				fmt.Println(KeyValue("Level 2", addr.Short(refs.Level2.Hex())))
				fmt.Println(KeyValue("Level 3", addr.Short(refs.Level3.Hex())))
			}

			fmt.Println(SectionHeader("Stakes"))
			fmt.Println(KeyValue("Positions", fmt.Sprintf("%d", p.Count())))
			fmt.Println(KeyValue("Principal", a.FormatMTEC(p.TotalPrincipal)+" MTEC"))
			fmt.Println(KeyValue("Pending", a.FormatMTEC(p.TotalPending)+" MTEC"))
			if p.AnyClaimable {
				fmt.Println(Hint("Some stakes are claimable: autostake claim-all"))
			}
			return nil
		},
	}
}

func NewRefLinkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reflink",
		Short: "Print the referral link of the connected account",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, cleanup, err := connected(ctx, appOptions{})
			if err != nil {
				return err
			}
			defer cleanup()

			link, err := a.RefLink()
			if err != nil {
				return flowError(a, err)
			}
			if jsonOutput() {
				return printJSON(map[string]string{"ref_link": link})
			}
			fmt.Println(link)
			return nil
		},
	}
}

// apyPercent renders basis points as a percent with two decimals
func apyPercent(bps uint64) string {
	return units.BpsToPercent(bps) + "%"
}

// packageRows renders the catalog table rows, marking the selection
func packageRows(a *app.App) [][]string {
	sel, _ := a.Catalog().Selected()
	var rows [][]string
	for _, p := range a.Catalog().Packages() {
		mark := ""
		if sel != nil && sel.ID == p.ID {
			mark = "*"
		}
		status := "active"
		if !p.Active {
			status = "inactive"
		}
		rows = append(rows, []string{
			mark + fmt.Sprintf("%d", p.ID),
			a.FormatUSDT(p.PriceIn) + " USDT",
			a.FormatMTEC(p.RewardOut) + " MTEC",
			status,
		})
	}
	return rows
}
