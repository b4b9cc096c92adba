package commands

import "github.com/spf13/cobra"

// Register adds every command to root
func Register(root *cobra.Command) {
	root.AddCommand(NewConnectCmd())
	root.AddCommand(NewStatusCmd())
	root.AddCommand(NewPackagesCmd())
	root.AddCommand(NewSelectCmd())
	root.AddCommand(NewApproveCmd())
	root.AddCommand(NewBuyCmd())
	root.AddCommand(NewStakesCmd())
	root.AddCommand(NewClaimCmd())
	root.AddCommand(NewClaimAllCmd())
	root.AddCommand(NewRefLinkCmd())
	root.AddCommand(NewWatchCmd())
	root.AddCommand(NewInteractiveCmd())
	root.AddCommand(NewOwnerCmd())
	root.AddCommand(NewWalletCmd())
	root.AddCommand(NewConfigCmd())
	root.AddCommand(NewCompletionCmd())
	root.AddCommand(NewManCmd())
	root.AddCommand(NewVersionCmd())
}
