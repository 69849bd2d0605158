package report

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"

	"github.com/kuitang/bringten-smoke/internal/scenario"
)

// WriteSummary prints a terminal table of res to w, followed by the verdict
// and the artifact locations.
func WriteSummary(w io.Writer, res *scenario.Result) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "Tab", "Step", "Status", "Duration"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)

	for _, sr := range res.Steps {
		tab := "-"
		if sr.Tab > 0 {
			tab = fmt.Sprint(sr.Tab)
		}
		dur := "-"
		if sr.Status != scenario.StatusSkipped {
			dur = sr.Duration.Round(time.Millisecond).String()
		}
		table.Append([]string{fmt.Sprint(sr.Index), tab, sr.Name, statusText(sr.Status), dur})
	}
	table.Render()

	verdict := color.Green.Sprint("PASSED")
	if !res.Passed {
		verdict = color.Red.Sprint("FAILED")
	}
	fmt.Fprintf(w, "\n%s %s in %s (run %s)\n", res.Scenario, verdict, res.Duration.Round(time.Millisecond), res.RunID)
	if failed := res.Failed(); failed != nil {
		fmt.Fprintf(w, "step %d: %s [%s]\n", failed.Index, failed.Error, failed.Code)
	}

	names := lo.Keys(res.Artifacts)
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-12s %s\n", name, res.Artifacts[name])
	}
}

func statusText(s scenario.Status) string {
	switch s {
	case scenario.StatusPassed:
		return color.Green.Sprint(string(s))
	case scenario.StatusFailed:
		return color.Red.Sprint(string(s))
	default:
		return color.Yellow.Sprint(string(s))
	}
}
