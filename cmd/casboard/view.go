package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/Sternrassler/cas-client/pkg/view"
	"github.com/spf13/cobra"
)

func newViewCmd(a *app) *cobra.Command {
	var (
		wait   time.Duration
		search string
	)

	cmd := &cobra.Command{
		Use:   "view <page>",
		Short: "Load a dashboard page, wait for enrichment and print its rows",
		Long:  "Load a dashboard page, wait for enrichment and print its rows.\nPages: " + strings.Join(view.Names(), ", "),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := pageDefinition(args[0])
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

			rdb := a.newRedis()
			if rdb != nil {
				defer rdb.Close()
			}

			p := view.New(def, deps(c, a.cfg, sess, labelStore(rdb, a.cfg)), sess)
			defer p.Close()

			ctx := cmd.Context()
			if err := p.Load(ctx); err != nil {
				return fmt.Errorf("load %s: %w", def.Name, err)
			}

			waitCtx, cancel := context.WithTimeout(ctx, wait)
			defer cancel()
			if err := p.Wait(waitCtx); err != nil {
				a.logger.Warn().Err(err).Msg("Enrichment still running - printing partial labels")
			}

			return printSnapshot(cmd, p.Snapshot(ctx).Search(search))
		},
	}

	cmd.Flags().DurationVar(&wait, "wait", 30*time.Second, "maximum time to wait for enrichment")
	cmd.Flags().StringVar(&search, "search", "", "keep rows containing this text")
	return cmd
}

func printSnapshot(cmd *cobra.Command, snap view.Snapshot) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(snap.Columns, "\t"))
	for _, row := range snap.Rows {
		fmt.Fprintln(tw, strings.Join(row.Texts(), "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s: %d rows\n", snap.Title, len(snap.Rows))
	return nil
}
