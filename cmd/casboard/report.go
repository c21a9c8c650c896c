package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/Sternrassler/cas-client/pkg/casapi"
	"github.com/Sternrassler/cas-client/pkg/reference"
	"github.com/spf13/cobra"
)

func newReportCmd(a *app) *cobra.Command {
	var (
		filter casapi.ReportFilter
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "report [breakdown]",
		Short: "Print the case summary or one report breakdown",
		Long:  "Print the case summary, or one breakdown when named.\nBreakdowns: " + reportNames(),
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := filter.Validate(); err != nil {
				return err
			}

			var breakdown casapi.Report
			if len(args) == 1 {
				r, err := casapi.ParseReport(args[0])
				if err != nil {
					return err
				}
				breakdown = r
			}

			sess, err := a.session()
			if err != nil {
				return err
			}
			c, err := a.newClient()
			if err != nil {
				return err
			}
			svc := casapi.New(c, a.cfg.PaginationConfig())
			out := cmd.OutOrStdout()

			if breakdown == "" {
				summary, err := svc.Summary(cmd.Context(), sess, filter)
				if err != nil {
					return err
				}
				if asJSON {
					return json.NewEncoder(out).Encode(summary)
				}
				tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintf(tw, "Total\t%d\n", summary.TotalCases)
				fmt.Fprintf(tw, "Open\t%d\n", summary.Open)
				fmt.Fprintf(tw, "Pending\t%d\n", summary.Pending)
				fmt.Fprintf(tw, "Investigation\t%d\n", summary.Investigation)
				fmt.Fprintf(tw, "Resolved\t%d\n", summary.Resolved)
				fmt.Fprintf(tw, "Rejected\t%d\n", summary.Rejected)
				fmt.Fprintf(tw, "Closed\t%d\n", summary.Closed)
				return tw.Flush()
			}

			rows, err := svc.Report(cmd.Context(), sess, breakdown, filter)
			if err != nil {
				return err
			}
			if asJSON {
				return json.NewEncoder(out).Encode(rows)
			}
			for _, row := range rows {
				fmt.Fprintf(out, "%s\t%s\n", reportLabel(breakdown, row), row.String("total"))
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&filter.Start, "start", "", "first case creation day (YYYY-MM-DD)")
	flags.StringVar(&filter.End, "end", "", "last case creation day (YYYY-MM-DD)")
	flags.StringVar(&filter.OfficeID, "office", "", "office id")
	flags.StringVar(&filter.Category, "category", "", "case category")
	flags.StringVar(&filter.Status, "status", "", "case status")
	flags.BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

// reportLabel picks the row label of a breakdown.
func reportLabel(r casapi.Report, row reference.Record) string {
	switch r {
	case casapi.CasesByStatus:
		return row.String("status")
	case casapi.CasesByCategory:
		return row.String("category")
	case casapi.CasesByOffice:
		return row.String("office_name")
	default:
		return assigneeLabel(row)
	}
}

var assigneeLabel = reference.Chain(reference.FullName, reference.Field("username"))

func reportNames() string {
	names := make([]string, len(casapi.ReportNames))
	for i, r := range casapi.ReportNames {
		names[i] = string(r)
	}
	return strings.Join(names, ", ")
}
