package cli

import (
	"fmt"
	"sort"

	"github.com/charmbracelet/lipgloss"

	syncpkg "github.com/Dunky-Z/FitSync/internal/sync"
)

var (
	reportTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	reportBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	haltedStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

// printReport renders a one-shot, non-interactive summary of a sync run
// using lipgloss for a styled box; §1 scopes interactive prompting out,
// but a static styled summary after a batch run needs no event loop.
func printReport(report *syncpkg.Report) error {
	if report == nil {
		return nil
	}

	dirs := make([]syncpkg.Direction, 0, len(report.PerDirection))
	for d := range report.PerDirection {
		dirs = append(dirs, d)
	}
	sort.Slice(dirs, func(i, j int) bool { return dirs[i].String() < dirs[j].String() })

	var body string
	for _, d := range dirs {
		c := report.PerDirection[d]
		body += fmt.Sprintf("%s  synced=%d duplicate=%d skipped=%d failed=%d pending=%d\n",
			d, c.Synced, c.Duplicate, c.Skipped, c.Failed, c.Pending)
		if err, halted := report.Halted[d]; halted {
			body += haltedStyle.Render(fmt.Sprintf("  halted: %v\n", err))
		}
	}

	fmt.Println(reportTitleStyle.Render("sync report"))
	fmt.Println(reportBoxStyle.Render(body))
	return nil
}
