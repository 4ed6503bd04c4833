package output

import (
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/akmust/portsweep/internal/probe"
	"github.com/akmust/portsweep/internal/scan"
)

// PrintSummary writes a human-readable scan summary to w: totals, terminal
// state, and a table of open ports capped at maxRows entries.
func PrintSummary(w io.Writer, session *scan.Session, state scan.State, maxRows int) {
	fmt.Fprintf(w, "\nScan %s in %v: %d/%d probes completed\n",
		state, session.Duration().Round(time.Millisecond), session.Completed, session.Total)
	fmt.Fprintf(w, "open: %d  closed: %d  error: %d\n",
		session.CountByStatus(probe.StatusOpen),
		session.CountByStatus(probe.StatusClosed),
		session.CountByStatus(probe.StatusError))

	open := session.OpenResults()
	if len(open) == 0 {
		fmt.Fprintln(w, "No open ports found.")
		return
	}

	shown := open
	if len(shown) > maxRows {
		shown = shown[:maxRows]
	}

	fmt.Fprintln(w)
	table := tablewriter.NewWriter(w)
	table.Header("Address", "Port", "Hostname", "RTT (s)", "Banner")
	for i := range shown {
		r := &shown[i]
		banner := truncateBanner(r.Banner, 120)
		_ = table.Append([]string{
			r.Address,
			fmt.Sprintf("%d", r.Port),
			r.Hostname,
			FormatRTT(r.RTT),
			banner,
		})
	}
	_ = table.Render()

	if len(open) > maxRows {
		fmt.Fprintf(w, "... and %d more open ports\n", len(open)-maxRows)
	}
}

// PrintProgress writes a single progress line for a live scan.
func PrintProgress(w io.Writer, p scan.Progress) {
	fmt.Fprintf(w, "progress: %d/%d  last: %s:%d %s\n",
		p.Completed, p.Total, p.Last.Address, p.Last.Port, p.Last.Status)
}
