package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/visitsched/internal/domain/visit"
	"github.com/example/visitsched/internal/plans"
)

func newPlanCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Manage recurring booking plans run by the server",
	}
	cmd.AddCommand(newPlanCreateCmd(a))
	cmd.AddCommand(newPlanListCmd(a))
	cmd.AddCommand(newPlanStatusCmd(a, "pause", plans.StatusPaused))
	cmd.AddCommand(newPlanStatusCmd(a, "resume", plans.StatusActive))
	return cmd
}

func newPlanCreateCmd(a *app) *cobra.Command {
	var (
		userID    int64
		name      string
		vehicle   string
		phone     string
		purpose   string
		days      int
		weekdays  string
		weeks     int
		schedule  string
		coverDays bool
	)

	c := &cobra.Command{
		Use:   "create",
		Short: "Create a plan that books the coming weeks every time its schedule fires",
		RunE: func(cmd *cobra.Command, args []string) error {
			wd, err := visit.ParseWeekdaySet(weekdays)
			if err != nil {
				return fmt.Errorf("--weekdays: %w", err)
			}
			pur, err := visit.ParsePurpose(purpose)
			if err != nil {
				return fmt.Errorf("--purpose: %w", err)
			}
			p := plans.Plan{
				UserID:    userID,
				Name:      name,
				Vehicle:   vehicle,
				Phone:     phone,
				Purpose:   pur,
				Days:      days,
				Weekdays:  wd,
				Weeks:     weeks,
				Schedule:  schedule,
				CoverDays: coverDays,
			}
			if err := p.Validate(); err != nil {
				return err
			}

			d, _, err := a.openStores(cmd, true)
			if err != nil {
				return err
			}
			defer d.Close()

			created, err := plans.NewRepo(d).Create(cmd.Context(), p, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created plan id=%d next_run=%s\n", created.ID, nextRun(created))
			return nil
		},
	}

	c.Flags().Int64Var(&userID, "user-id", 0, "user id (from DB)")
	c.Flags().StringVar(&name, "name", "", "plan name")
	c.Flags().StringVar(&vehicle, "vehicle", "", "visitor vehicle number")
	c.Flags().StringVar(&phone, "phone", "", "visitor phone")
	c.Flags().StringVar(&purpose, "purpose", "family", "visit purpose: family, lesson, cleaning, other")
	c.Flags().IntVar(&days, "days", 1, "days per reservation (1-30)")
	c.Flags().StringVar(&weekdays, "weekdays", "", "weekdays to book, e.g. tue,thu")
	c.Flags().IntVar(&weeks, "weeks", 4, "weeks covered by each run (1-12)")
	c.Flags().StringVar(&schedule, "schedule", "0 6 * * 1", "cron schedule (5 fields, server time zone)")
	c.Flags().BoolVar(&coverDays, "cover-days", false, "treat every day of an existing multi-day reservation as booked")

	for _, f := range []string{"user-id", "name", "vehicle", "phone", "weekdays"} {
		_ = c.MarkFlagRequired(f)
	}
	return c
}

func newPlanListCmd(a *app) *cobra.Command {
	var userID int64
	c := &cobra.Command{
		Use:   "list",
		Short: "List plans for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, _, err := a.openStores(cmd, false)
			if err != nil {
				return err
			}
			defer d.Close()

			ps, err := plans.NewRepo(d).ListByUser(cmd.Context(), userID)
			if err != nil {
				return err
			}
			for _, p := range ps {
				fmt.Fprintf(cmd.OutOrStdout(), "id=%d name=%q status=%s vehicle=%s weekdays=%s weeks=%d schedule=%q next=%s\n",
					p.ID, p.Name, p.Status, p.Vehicle, p.Weekdays, p.Weeks, p.Schedule, nextRun(p))
			}
			return nil
		},
	}
	c.Flags().Int64Var(&userID, "user-id", 0, "user id")
	_ = c.MarkFlagRequired("user-id")
	return c
}

func newPlanStatusCmd(a *app, use string, status plans.Status) *cobra.Command {
	var userID int64
	c := &cobra.Command{
		Use:   use + " PLAN_ID",
		Short: fmt.Sprintf("Set a plan %s", status),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid plan id %q", args[0])
			}
			d, _, err := a.openStores(cmd, false)
			if err != nil {
				return err
			}
			defer d.Close()

			p, err := plans.NewRepo(d).SetStatus(cmd.Context(), id, userID, status, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "plan id=%d is %s\n", p.ID, p.Status)
			return nil
		},
	}
	c.Flags().Int64Var(&userID, "user-id", 0, "owner user id")
	_ = c.MarkFlagRequired("user-id")
	return c
}

func nextRun(p plans.Plan) string {
	if p.NextRunAt == nil {
		return "-"
	}
	return p.NextRunAt.In(seoul()).Format(time.RFC3339)
}
