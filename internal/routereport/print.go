// Package routereport renders a relay report as text tables
package routereport

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/rmacdonaldsmith/pshare-go/internal/relay"
	relaypkg "github.com/rmacdonaldsmith/pshare-go/pkg/relay"
)

var (
	headingColor = color.New(color.Bold, color.FgCyan).SprintFunc()
	stateColor   = map[string]*color.Color{
		"active":   color.New(color.FgGreen),
		"Running":  color.New(color.FgGreen),
		"template": color.New(color.FgBlue),
		"expired":  color.New(color.FgRed),
		"Stopped":  color.New(color.FgRed),
	}
)

// Print writes the report to w. Colors follow color.NoColor.
func Print(w io.Writer, report relaypkg.Report) {
	fmt.Fprintf(w, "%s %s\n", headingColor("pShare routes for"), report.AppName)

	fmt.Fprintf(w, "\n%s\n", headingColor("Standard Routes"))
	if len(report.Outputs) == 0 {
		fmt.Fprintln(w, "  none")
	} else {
		table := newTable(w, []string{"Source", "Dest Name", "Address", "Rate", "Duration", "Shares", "Status"})
		for _, r := range report.Outputs {
			table.Append([]string{
				r.Source,
				r.DestName,
				address(r.Address, r.Alias),
				relay.RateString(r.Frequency),
				duration(r.Duration),
				shares(r.SharesCompleted, r.MaxShares),
				colorize(r.Status),
			})
		}
		table.Render()
	}

	fmt.Fprintf(w, "\n%s\n", headingColor("Wildcard Routes"))
	if len(report.Wildcards) == 0 {
		fmt.Fprintln(w, "  none")
	} else {
		table := newTable(w, []string{"Pattern", "App", "Dest Name", "Address", "Rate"})
		for _, r := range report.Wildcards {
			table.Append([]string{
				r.Source,
				r.App,
				r.DestName,
				address(r.Address, r.Alias),
				relay.RateString(r.Frequency),
			})
		}
		table.Render()
	}

	fmt.Fprintf(w, "\n%s\n", headingColor("Listening on"))
	if len(report.Inputs) == 0 {
		fmt.Fprintln(w, "  none")
		return
	}
	table := newTable(w, []string{"Address", "Whitelist", "State", "Received", "Queued", "Discarded"})
	for _, l := range report.Inputs {
		whitelist := strings.Join(l.Whitelist, ",")
		if whitelist == "" {
			whitelist = "*"
		}
		table.Append([]string{
			address(l.Address, l.Alias),
			whitelist,
			colorize(l.State),
			strconv.FormatUint(l.Stats.Received, 10),
			strconv.FormatUint(l.Stats.Queued, 10),
			strconv.FormatUint(l.Stats.Discarded, 10),
		})
	}
	table.Render()
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)
	return table
}

func address(addr, alias string) string {
	if alias == "" {
		return addr
	}
	return addr + " (" + alias + ")"
}

func duration(seconds float64) string {
	if seconds < 0 {
		return "forever"
	}
	return strconv.FormatFloat(seconds, 'g', -1, 64) + "s"
}

func shares(completed, max int) string {
	if max < 0 {
		return strconv.Itoa(completed)
	}
	return strconv.Itoa(completed) + "/" + strconv.Itoa(max)
}

func colorize(state string) string {
	if c, ok := stateColor[state]; ok {
		return c.Sprint(state)
	}
	return state
}
