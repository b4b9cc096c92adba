package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/huh/spinner"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/mtecstake/autostake/internal/app"
)

// StatusBox renders a titled box of label/value pairs.
//
//	StatusBox("Wallet", [][2]string{{"Account", "0xabc..."}, {"Chain", "56"}})
func StatusBox(title string, fields [][2]string) string {
	if !isTTY() {
		return statusBoxPlain(title, fields)
	}
	lines := make([]string, 0, len(fields)+1)
	lines = append(lines, StyleHeader.Render(title))
	for _, f := range fields {
		lines = append(lines, StyleLabel.Render(f[0])+StyleValue.Render(f[1]))
	}
	return StyleBox.Render(strings.Join(lines, "\n"))
}

func statusBoxPlain(title string, fields [][2]string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n%s\n", title, strings.Repeat("=", len(title)))
	for _, f := range fields {
		fmt.Fprintf(&sb, "%-14s %s\n", f[0]+":", f[1])
	}
	return sb.String()
}

// RenderTable renders rows under headers, with lipgloss borders on a terminal
// and aligned plain columns otherwise.
func RenderTable(headers []string, rows [][]string) string {
	if !isTTY() {
		return renderTablePlain(headers, rows)
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(fg(ColorDim)).
		StyleFunc(func(row, _ int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return StyleTableHeader
			case row%2 == 0:
				return StyleTableRow
			default:
				return StyleTableRowAlt
			}
		}).
		Headers(headers...).
		Rows(rows...).
		String()
}

func renderTablePlain(headers []string, rows [][]string) string {
	if len(headers) == 0 {
		return ""
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i := 0; i < len(row) && i < len(widths); i++ {
			widths[i] = max(widths[i], len(row[i]))
		}
	}

	rule := make([]string, len(widths))
	for i, w := range widths {
		rule[i] = strings.Repeat("-", w)
	}

	var sb strings.Builder
	writeRow := func(cells []string) {
		for i := 0; i < len(cells) && i < len(widths); i++ {
			fmt.Fprintf(&sb, "%-*s  ", widths[i], cells[i])
		}
		sb.WriteString("\n")
	}
	writeRow(headers)
	sb.WriteString(strings.Join(rule, "  ") + "\n")
	for _, row := range rows {
		writeRow(row)
	}
	return sb.String()
}

// message prints msg in style on a terminal, or behind a [tag] prefix
// when output is piped.
func message(style lipgloss.Style, tag, msg string) {
	if isTTY() {
		fmt.Println(style.Render("  " + msg))
		return
	}
	fmt.Printf("[%s] %s\n", tag, msg)
}

func Success(msg string) { message(StyleSuccess, "OK", msg) }
func Error(msg string)   { message(StyleError, "ERROR", msg) }
func Warning(msg string) { message(StyleWarning, "WARN", msg) }
func Info(msg string)    { message(StyleInfo, "INFO", msg) }

// Report prints a flow status line in the style its error flag calls for
func Report(st app.Status) {
	switch {
	case st.Message == "":
	case st.IsError:
		Error(st.Message)
	default:
		Success(st.Message)
	}
}

// WithSpinner runs fn behind a spinner titled msg and returns fn's error.
func WithSpinner(msg string, fn func() error) error {
	if !isTTY() {
		fmt.Printf("%s...\n", msg)
		return fn()
	}
	var fnErr error
	if err := spinner.New().Title(msg).Action(func() { fnErr = fn() }).Run(); err != nil {
		return err
	}
	return fnErr
}

func SectionHeader(title string) string {
	if !isTTY() {
		return "\n" + title + "\n" + strings.Repeat("-", len(title))
	}
	return "\n" + StyleSubheader.Render(title)
}

func KeyValue(key, value string) string {
	if !isTTY() {
		return fmt.Sprintf("  %-14s %s", key+":", value)
	}
	return "  " + StyleLabel.Render(key) + StyleValue.Render(value)
}

// Hint renders a dim follow-up suggestion such as the next command to run.
func Hint(msg string) string {
	if !isTTY() {
		return "  " + msg
	}
	return "  " + StyleDim.Render(msg)
}

// FormatUnlock renders an unlock time with the remaining lock, if any
func FormatUnlock(t time.Time) string {
	s := t.Local().Format("2006-01-02 15:04")
	if d := time.Until(t); d > 0 {
		h := int(d.Hours())
		s += fmt.Sprintf(" (in %dd %dh)", h/24, h%24)
	}
	return s
}
