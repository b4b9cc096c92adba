package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mtecstake/autostake/internal/addr"
	"github.com/mtecstake/autostake/internal/app"
	"github.com/mtecstake/autostake/internal/owner"
	"github.com/mtecstake/autostake/internal/util"
	"github.com/mtecstake/autostake/pkg/types"
	"github.com/spf13/cobra"
)

func NewInteractiveCmd() *cobra.Command {
	var ref string

	cmd := &cobra.Command{
		Use:   "interactive",
		Short: "Interactive mode",
		Long: `Start an interactive shell that keeps one wallet session open.

The package selection, allowance and stake list stay loaded between
commands, and wallet account or network changes close the session.
Type 'help' for available commands, 'exit' to quit.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractive(ref)
		},
	}

	cmd.Flags().StringVar(&ref, "ref", "", "Referral link or referrer address")
	return cmd
}

func runInteractive(ref string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, cleanup, err := newApp(appOptions{referral: ref})
	if err != nil {
		return err
	}
	defer cleanup()

	// Wallet notifications are applied for the whole shell
	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	util.SafeGoWithName("wallet-events", func() {
		a.Manager().Watch(watchCtx)
	})

	fmt.Println(StatusBox(Logo()+" interactive", [][2]string{
		{"Network", a.Config().Network.ChainName},
		{"Contract", a.Config().Contracts.AutoStake},
		{"", "Type 'help' for commands, 'exit' to quit"},
	}))
	if !addr.IsZero(a.Referral()) {
		Info("Referrer " + addr.Short(a.Referral().Hex()) + " will be used at purchase.")
	}
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(prompt(a))

		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		if quit := runLine(ctx, a, parts[0], parts[1:]); quit {
			fmt.Println("Goodbye!")
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
		fmt.Println()
	}

	return scanner.Err()
}

func prompt(a *app.App) string {
	switch a.Manager().State() {
	case types.StateConnected:
		return "\033[32mautostake " + addr.Short(a.Manager().Account().Hex()) + ">\033[0m "
	case types.StateWrongNetwork:
		return "\033[31mautostake (wrong network)>\033[0m "
	default:
		return "\033[33mautostake (disconnected)>\033[0m "
	}
}

// runLine executes one shell command and reports whether to exit
func runLine(ctx context.Context, a *app.App, command string, args []string) bool {
	switch command {
	case "exit", "quit", "q":
		return true

	case "help", "h", "?":
		printInteractiveHelp()

	case "connect":
		if _, err := a.Connect(ctx); err == nil {
			if link, err := a.RefLink(); err == nil {
				fmt.Println(KeyValue("Referral link", link))
			}
		}
		Report(a.Status())

	case "disconnect":
		a.Disconnect()
		Report(a.Status())

	case "refresh":
		_ = a.Refresh(ctx)
		Report(a.Status())

	case "packages":
		if _, err := a.LoadCatalog(ctx); err != nil {
			Report(a.Status())
			break
		}
		fmt.Println(RenderTable([]string{"ID", "PRICE", "STAKED", "STATUS"}, packageRows(a)))

	case "select":
		if len(args) < 1 {
			fmt.Println("Usage: select <package-id>")
			break
		}
		id, err := parseID(args[0])
		if err != nil {
			Error(err.Error())
			break
		}
		if len(a.Catalog().Packages()) == 0 {
			if _, err := a.LoadCatalog(ctx); err != nil {
				Report(a.Status())
				break
			}
		}
		_, _ = selectAndEvaluate(ctx, a, id)

	case "approve":
		_, _ = a.Approve(ctx)
		Report(a.Status())

	case "buy":
		sel, ok := a.Catalog().Selected()
		if !ok {
			fmt.Println("Load packages and select one first.")
			break
		}
		var ref common.Address
		if len(args) > 0 {
			ref = addr.ParseReferral(args[0])
		}
		_, _ = a.Buy(ctx, sel.ID, ref)
		Report(a.Status())

	case "stakes":
		p, err := a.LoadPortfolio(ctx)
		if err != nil {
			Report(a.Status())
			break
		}
		printPortfolio(a, p)

	case "claim":
		if len(args) < 1 {
			fmt.Println("Usage: claim <stake-number>")
			break
		}
		n, err := parseID(args[0])
		if err != nil || n == 0 {
			Error("Stake numbers start at 1")
			break
		}
		_, _ = a.ClaimOne(ctx, n-1)
		Report(a.Status())

	case "claim-all":
		report, _ := a.ClaimAll(ctx)
		Report(a.Status())
		printClaimFailures(report)

	case "balance", "status":
		usdt, mtec, err := a.Balances(ctx)
		if err != nil {
			Report(a.Status())
			break
		}
		fmt.Println(KeyValue("USDT", a.FormatUSDT(usdt)))
		fmt.Println(KeyValue("MTEC", a.FormatMTEC(mtec)))
		if refs, err := a.Referrers(ctx); err == nil && refs.Bound() {
			fmt.Println(KeyValue("Referrer", refs.Level1.Hex()))
		}

	case "reflink":
		link, err := a.RefLink()
		if err != nil {
			Report(a.Status())
			break
		}
		fmt.Println(link)

	case "owner":
		runOwnerLine(ctx, a, args)

	case "clear", "cls":
		fmt.Print("\033[H\033[2J")

	default:
		fmt.Printf("Unknown command: %s\n", command)
		fmt.Println("Type 'help' for available commands")
	}
	return false
}

func runOwnerLine(ctx context.Context, a *app.App, args []string) {
	if len(args) == 0 {
		args = []string{"status"}
	}
	var err error
	switch args[0] {
	case "status":
		_, err = a.LoadOwnerStatus(ctx)
	case "set-params":
		if len(args) < 4 {
			fmt.Println("Usage: owner set-params <apy-percent> <lock-days> <true|false>")
			return
		}
		_, err = a.SetParams(ctx, owner.ParamsInput{APYPercent: args[1], LockDays: args[2], Enabled: args[3] == "true"})
	case "set-ref-rates":
		if len(args) < 4 {
			fmt.Println("Usage: owner set-ref-rates <ref1-bps> <ref2-bps> <ref3-bps>")
			return
		}
		var rates types.ReferralRates
		if _, perr := fmt.Sscanf(strings.Join(args[1:4], " "), "%d %d %d", &rates.Level1, &rates.Level2, &rates.Level3); perr != nil {
			Error("Rates must be non-negative integers")
			return
		}
		_, err = a.SetReferralRates(ctx, rates)
	case "withdraw-usdt", "withdraw-mtec":
		if len(args) < 2 {
			fmt.Printf("Usage: owner %s <amount> [to]\n", args[0])
			return
		}
		to := ""
		if len(args) > 2 {
			to = args[2]
		}
		if args[0] == "withdraw-usdt" {
			err = a.WithdrawUSDT(ctx, args[1], to)
		} else {
			err = a.WithdrawMTEC(ctx, args[1], to)
		}
	case "set-package":
		if len(args) < 5 {
			fmt.Println("Usage: owner set-package <id> <price-usdt> <reward-mtec> <true|false>")
			return
		}
		id, perr := parseID(args[1])
		if perr != nil {
			Error(perr.Error())
			return
		}
		err = a.SetPackage(ctx, owner.PackageInput{ID: id, PriceIn: args[2], RewardOut: args[3], Active: args[4] == "true"})
	case "explorer":
		fmt.Println(a.ExplorerLink())
		return
	default:
		fmt.Println("Unknown owner command. Type 'help' for the list.")
		return
	}

	Report(a.Status())
	if err == nil {
		if st := a.OwnerStatus(); st != nil {
			printOwnerStatus(a, st)
		}
	}
}

func printInteractiveHelp() {
	fmt.Println(`
Available commands:
  connect                     Connect the wallet
  disconnect                  Close the session
  refresh                     Reload packages, allowance and stakes
  packages                    List packages
  select <id>                 Select a package and check the allowance
  approve                     Approve USDT for the selected package
  buy [ref]                   Buy the selected package
  stakes                      List stakes
  claim <n>                   Claim stake number n
  claim-all                   Claim every unlocked stake
  balance                     Show USDT and MTEC balances
  reflink                     Print your referral link
  owner [status]              Show contract owner settings
  owner set-params <apy> <days> <enabled>
  owner set-ref-rates <r1> <r2> <r3>
  owner withdraw-usdt|withdraw-mtec <amount> [to]
  owner set-package <id> <price> <reward> <active>
  owner explorer              Print the contract explorer link
  clear                       Clear screen
  help                        Show this help
  exit                        Exit interactive mode`)
}
