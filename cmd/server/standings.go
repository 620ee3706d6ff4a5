package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/DoyleJ11/connect4-backend/internal/recorder"
)

func runStandings(cmd *cobra.Command, _ []string) (err error) {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	store, err := recorder.OpenStore(cmd.Context(), cfg.Store())
	if err != nil {
		return err
	}
	rec := recorder.New(store, recorder.WithLogger(logger))
	defer func() { err = multierr.Append(err, rec.Close()) }()

	standings, err := rec.Standings(cmd.Context(), limit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tPLAYER\tWINS")
	for i, s := range standings {
		fmt.Fprintf(tw, "%d\t%s\t%d\n", i+1, s.Player, s.Wins)
	}
	return tw.Flush()
}
