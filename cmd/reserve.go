package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/visitsched/internal/booking"
	"github.com/example/visitsched/internal/domain/visit"
	"github.com/example/visitsched/internal/history"
	xlog "github.com/example/visitsched/internal/log"
	"github.com/example/visitsched/internal/plans"
)

type batchFlags struct {
	vehicle   string
	phone     string
	purpose   string
	days      int
	weekdays  string
	weeks     int
	start     string
	coverDays bool
}

func (f *batchFlags) bind(c *cobra.Command) {
	c.Flags().StringVar(&f.vehicle, "vehicle", "", "visitor vehicle number, e.g. 12가3456")
	c.Flags().StringVar(&f.phone, "phone", "", "visitor phone (defaults to the one remembered for the vehicle)")
	c.Flags().StringVar(&f.purpose, "purpose", "family", "visit purpose: family, lesson, cleaning, other")
	c.Flags().IntVar(&f.days, "days", 1, "days per reservation (1-30)")
	c.Flags().StringVar(&f.weekdays, "weekdays", "", "weekdays to book, e.g. tue,thu or 화,목 or 1,3 (monday=0)")
	c.Flags().IntVar(&f.weeks, "weeks", 4, "number of weeks to cover (1-12)")
	c.Flags().StringVar(&f.start, "start", "", "first day of the window, YYYY.MM.DD (default today in Asia/Seoul)")
	c.Flags().BoolVar(&f.coverDays, "cover-days", false, "treat every day of an existing multi-day reservation as booked")
	_ = c.MarkFlagRequired("vehicle")
	_ = c.MarkFlagRequired("weekdays")
}

func (f *batchFlags) plan(a *app, hist *history.Store) (booking.Plan, error) {
	creds, err := a.credentials()
	if err != nil {
		return booking.Plan{}, err
	}
	weekdays, err := visit.ParseWeekdaySet(f.weekdays)
	if err != nil {
		return booking.Plan{}, fmt.Errorf("--weekdays: %w", err)
	}
	if f.weeks < plans.MinWeeks || f.weeks > plans.MaxWeeks {
		return booking.Plan{}, fmt.Errorf("--weeks must be between %d and %d", plans.MinWeeks, plans.MaxWeeks)
	}
	purpose, err := visit.ParsePurpose(f.purpose)
	if err != nil {
		return booking.Plan{}, fmt.Errorf("--purpose: %w", err)
	}
	start := visit.Today(seoul())
	if f.start != "" {
		if start, err = visit.ParseDate(f.start); err != nil {
			return booking.Plan{}, fmt.Errorf("--start: %w", err)
		}
	}
	phone := strings.TrimSpace(f.phone)
	if phone == "" && hist != nil {
		remembered, ok, err := hist.Phone(f.vehicle)
		if err != nil {
			cliLog := xlog.WithComponent("cli")
			cliLog.Warn().Err(err).Msg("history unreadable, ignoring")
		} else if ok {
			phone = remembered
		}
	}
	tmpl := visit.ReservationRequest{Vehicle: f.vehicle, Phone: phone, Purpose: purpose, Days: f.days}.Normalized()
	if err := tmpl.ValidateTemplate(); err != nil {
		return booking.Plan{}, err
	}
	return booking.Plan{
		Credentials: creds,
		Rule:        visit.WeeksFrom(start, weekdays, f.weeks),
		Template:    tmpl,
		CoverDays:   f.coverDays,
	}, nil
}

func dateLabel(d visit.Date) string {
	return fmt.Sprintf("%s (%s)", d, d.Weekday().Korean())
}

func newReserveCmd(a *app) *cobra.Command {
	var f batchFlags
	var dryRun bool

	c := &cobra.Command{
		Use:   "reserve",
		Short: "Book the vehicle on the chosen weekdays for the coming weeks, skipping dates already booked",
		RunE: func(cmd *cobra.Command, args []string) error {
			hist := history.NewStore(a.cfg.HistoryFile)
			p, err := f.plan(a, hist)
			if err != nil {
				return err
			}
			orch := a.orchestrator()
			out := cmd.OutOrStdout()
			if dryRun {
				return printPreview(cmd, orch, p)
			}

			res, err := orch.Run(cmd.Context(), p, booking.OnOutcome(func(o booking.Outcome) {
				printOutcome(out, o)
			}))
			if err != nil && len(res.Outcomes) == 0 {
				return err
			}
			fmt.Fprintln(out, res.Summary())

			if res.Created > 0 {
				if herr := hist.Remember(p.Template.Vehicle, p.Template.Phone); herr != nil {
					cliLog := xlog.WithComponent("cli")
					cliLog.Warn().Err(herr).Str("file", hist.Path()).Msg("could not save vehicle history")
				}
			}
			if err != nil {
				return err
			}
			if res.Failed > 0 {
				return fmt.Errorf("%d of %d dates failed", res.Failed, len(res.Outcomes))
			}
			return nil
		},
	}
	f.bind(c)
	c.Flags().BoolVar(&dryRun, "dry-run", false, "only show which dates would be booked")
	return c
}

func printOutcome(w io.Writer, o booking.Outcome) {
	switch o.Status {
	case booking.StatusFailed:
		fmt.Fprintf(w, "%s  %-17s %s\n", dateLabel(o.Date), o.Status, o.Reason)
	default:
		fmt.Fprintf(w, "%s  %s\n", dateLabel(o.Date), o.Status)
	}
}

func newPreviewCmd(a *app) *cobra.Command {
	var f batchFlags
	c := &cobra.Command{
		Use:   "preview",
		Short: "List the dates a reserve run would book, marking those already booked",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := f.plan(a, history.NewStore(a.cfg.HistoryFile))
			if err != nil {
				return err
			}
			return printPreview(cmd, a.orchestrator(), p)
		},
	}
	f.bind(c)
	return c
}

func printPreview(cmd *cobra.Command, orch *booking.Orchestrator, p booking.Plan) error {
	pv, err := orch.Preview(cmd.Context(), p)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, c := range pv.Candidates {
		mark := "new"
		if c.Duplicate {
			mark = "already booked"
		}
		fmt.Fprintf(out, "%s  %s\n", dateLabel(c.Date), mark)
	}
	fmt.Fprintf(out, "%d to book, %d already booked\n", pv.New, pv.Duplicates)
	return nil
}
