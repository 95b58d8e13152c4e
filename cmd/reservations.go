package cmd

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/example/visitsched/internal/booking"
	"github.com/example/visitsched/internal/domain/visit"
	"github.com/example/visitsched/internal/history"
)

func newReservationsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "reservations",
		Aliases: []string{"res"},
		Short:   "List or cancel existing reservations",
	}
	cmd.AddCommand(newReservationsListCmd(a))
	cmd.AddCommand(newReservationsDeleteCmd(a))
	return cmd
}

func newReservationsListCmd(a *app) *cobra.Command {
	var all bool
	c := &cobra.Command{
		Use:   "list",
		Short: "List reservations (upcoming only unless --all)",
		RunE: func(cmd *cobra.Command, args []string) error {
			creds, err := a.credentials()
			if err != nil {
				return err
			}
			rs, err := a.orchestrator().Reservations(cmd.Context(), creds)
			if err != nil {
				return err
			}
			if !all {
				rs = visit.Upcoming(rs, visit.Today(seoul()))
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tDATE\tVEHICLE\tPHONE\tDAYS\tPURPOSE\tVALID")
			for _, r := range rs {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\t%t\n", r.ID, dateLabel(r.Date), r.Vehicle, r.Phone, r.Days, r.Purpose, r.Valid)
			}
			return tw.Flush()
		},
	}
	c.Flags().BoolVar(&all, "all", false, "include past reservations")
	return c
}

func newReservationsDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID [ID...]",
		Short: "Cancel reservations by id",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, s := range args {
				id, err := strconv.ParseInt(s, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid reservation id %q", s)
				}
				ids = append(ids, id)
			}
			creds, err := a.credentials()
			if err != nil {
				return err
			}
			out, err := a.orchestrator().Cancel(cmd.Context(), creds, ids)
			failed := 0
			for _, o := range out {
				fmt.Fprintf(cmd.OutOrStdout(), "%d  %s %s\n", o.ID, o.Status, o.Reason)
				if o.Status == booking.CancelFailed {
					failed++
				}
			}
			if err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d cancellations failed", failed)
			}
			return nil
		},
	}
}

func newHistoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show vehicles remembered from earlier runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cars, err := history.NewStore(a.cfg.HistoryFile).Load()
			if err != nil {
				return err
			}
			for _, c := range cars {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", c.CarNo, c.Phone)
			}
			return nil
		},
	}
	return cmd
}
