package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/Sternrassler/cas-client/pkg/casapi"
	"github.com/Sternrassler/cas-client/pkg/lookup"
	"github.com/spf13/cobra"
)

func newListCmd(a *app) *cobra.Command {
	var (
		filters []string
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "list <resource>",
		Short: "Drain a collection and print id and label per record",
		Long:  "Drain a collection and print id and label per record.\nResources: " + resourceNames(),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := casapi.ParseResource(args[0])
			if err != nil {
				return err
			}

			query, err := parseFilters(filters)
			if err != nil {
				return err
			}

			sess, err := a.session()
			if err != nil {
				return err
			}
			c, err := a.newClient()
			if err != nil {
				return err
			}

			records, err := casapi.New(c, a.cfg.PaginationConfig()).List(cmd.Context(), sess, res, query)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			}

			labels := lookup.Build(records, nil)
			for _, rec := range records {
				fmt.Fprintf(out, "%s\t%s\n", rec.ID(), labels[rec.ID()])
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&filters, "filter", nil, "server-side filter key=value (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the drained records as JSON")
	return cmd
}

func parseFilters(filters []string) (url.Values, error) {
	query := url.Values{}
	for _, f := range filters {
		key, value, ok := strings.Cut(f, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid filter %q (want key=value)", f)
		}
		query.Add(key, value)
	}
	return query, nil
}

func resourceNames() string {
	names := make([]string, len(casapi.Resources))
	for i, r := range casapi.Resources {
		names[i] = string(r)
	}
	return strings.Join(names, ", ")
}
