package commands

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/mtecstake/autostake/pkg/types"
)

// Palette
var (
	ColorAccent  = lipgloss.Color("#f0b90b") // BNB gold
	ColorSuccess = lipgloss.Color("#22c55e")
	ColorWarning = lipgloss.Color("#eab308")
	ColorError   = lipgloss.Color("#ef4444")
	ColorInfo    = lipgloss.Color("#3b82f6")
	ColorMuted   = lipgloss.Color("#6b7280")
	ColorDim     = lipgloss.Color("#4b5563")
	ColorWhite   = lipgloss.Color("#f9fafb")
)

// isTTY reports whether stdout is a terminal.
func isTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func fg(c lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c)
}

var (
	StyleHeader    = fg(ColorWhite).Bold(true)
	StyleSubheader = fg(ColorMuted).Bold(true)
	StyleAccent    = fg(ColorAccent).Bold(true)
	StyleSuccess   = fg(ColorSuccess)
	StyleWarning   = fg(ColorWarning)
	StyleError     = fg(ColorError)
	StyleInfo      = fg(ColorInfo)
	StyleDim       = fg(ColorDim)
	StyleLabel     = fg(ColorMuted).Width(14)
	StyleValue     = fg(ColorWhite)

	StyleBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorDim).
			Padding(0, 1)

	StyleTableHeader = StyleAccent.Padding(0, 1)
	StyleTableRow    = fg(ColorWhite).Padding(0, 1)
	StyleTableRowAlt = fg(ColorMuted).Padding(0, 1)
)

// badgeColors maps every state label the CLI prints to its badge color.
// Connection states come from types.ConnectionState.
var badgeColors = map[string]lipgloss.Color{
	string(types.StateConnected):    ColorSuccess,
	string(types.StateConnecting):   ColorWarning,
	string(types.StateWrongNetwork): ColorWarning,
	string(types.StateDisconnected): ColorError,

	stakeClaimable: ColorSuccess,
	stakeLocked:    ColorWarning,

	"enabled":  ColorSuccess,
	"disabled": ColorError,
}

// StatusBadge renders label on its state color. Unknown labels are gray.
func StatusBadge(label string) string {
	bg, ok := badgeColors[label]
	if !ok {
		bg = ColorMuted
	}
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color("#000000")).
		Background(bg).
		Padding(0, 1).
		Bold(ok).
		Render(label)
}

// Claim readiness labels for active stakes
const (
	stakeClaimable = "claimable"
	stakeLocked    = "locked"
)

// claimLabel reports the contract's canClaim answer for an active stake,
// and "-" once the stake is claimed.
func claimLabel(pos *types.StakePosition) string {
	switch {
	case pos.Claimed:
		return "-"
	case pos.Claimable:
		return stakeClaimable
	default:
		return stakeLocked
	}
}

// Logo returns the styled program name
func Logo() string {
	return StyleAccent.Render("autostake")
}
