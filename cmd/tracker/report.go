package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"timearchitect/client"

	"github.com/dustin/go-humanize"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"
)

var (
	reportFrom string
	reportTo   string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show worked and payable time per day",
	Long: `Fetch sessions from the server and print per-day totals.

--from and --to take natural dates ("last monday", "yesterday") or
YYYY-MM-DD. The default range is the last seven days.`,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportFrom, "from", "", "Start of the range")
	reportCmd.Flags().StringVar(&reportTo, "to", "", "End of the range (inclusive)")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	now := time.Now()
	from := startOfDay(now.AddDate(0, 0, -6))
	to := startOfDay(now).AddDate(0, 0, 1)

	parser := when.New(nil)
	parser.Add(en.All...)
	parser.Add(common.All...)

	if reportFrom != "" {
		t, err := parseDate(parser, reportFrom, now)
		if err != nil {
			return err
		}
		from = startOfDay(t)
	}
	if reportTo != "" {
		t, err := parseDate(parser, reportTo, now)
		if err != nil {
			return err
		}
		to = startOfDay(t).AddDate(0, 0, 1)
	}
	if !to.After(from) {
		return fmt.Errorf("--to must not be before --from")
	}

	transport := client.NewHTTPTransport(cfg.ServerURL, cfg.RequestTimeout)
	groups, err := transport.ListSessions(cmd.Context(), cfg.UserID, from, to)
	if err != nil {
		return fmt.Errorf("failed to fetch sessions: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(groups) == 0 {
		fmt.Fprintln(out, "No sessions in range.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tSESSIONS\tDURATION\tBREAKS\tINACTIVE\tWORKED\tPAYABLE")
	var worked, payable float64
	for _, group := range groups {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
			group.Date,
			len(group.Sessions),
			formatSeconds(group.Totals.Duration),
			formatSeconds(group.Totals.TotalBreakDuration),
			formatSeconds(group.Totals.InactiveTime),
			formatSeconds(group.Totals.WorkTime),
			formatSeconds(group.Totals.PayableHours),
		)
		worked += group.Totals.WorkTime
		payable += group.Totals.PayableHours
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n%s worked, %s payable since %s\n",
		formatSeconds(worked), formatSeconds(payable), humanize.Time(from))
	return nil
}

// parseDate tries natural language first, then a few fixed layouts.
func parseDate(parser *when.Parser, raw string, now time.Time) (time.Time, error) {
	if result, err := parser.Parse(raw, now); err == nil && result != nil {
		return result.Time, nil
	}
	for _, layout := range []string{"2006-01-02", "2006/01/02", "01/02/2006", time.RFC3339} {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("could not understand date %q", raw)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func formatSeconds(seconds float64) string {
	d := time.Duration(seconds) * time.Second
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h == 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh%02dm", h, m)
}
