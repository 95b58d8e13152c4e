package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/example/visitsched/internal/aptner"
	"github.com/example/visitsched/internal/booking"
	"github.com/example/visitsched/internal/domain/visit"
	xlog "github.com/example/visitsched/internal/log"
	"github.com/example/visitsched/internal/plans"
)

type PlanStore interface {
	Due(ctx context.Context, now time.Time, limit int) ([]plans.Plan, error)
	RecordRun(ctx context.Context, planID int64, rec plans.RunRecord, next time.Time) error
}

type CredentialSource interface {
	AptnerCredentials(ctx context.Context, userID int64) (aptner.Credentials, error)
}

type Runner interface {
	Run(ctx context.Context, p booking.Plan, opts ...booking.RunOption) (booking.Result, error)
}

var planRuns = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "visitsched_plan_runs_total",
	Help: "Scheduled plan runs by final state.",
}, []string{"state"})

const dueBatch = 25

// Scheduler polls for due plans and runs them one at a time.
type Scheduler struct {
	Plans       PlanStore
	Credentials CredentialSource
	Booker      Runner
	Interval    time.Duration
	// Location decides what "today" is for a run. Defaults to Asia/Seoul.
	Location *time.Location
	// Now is overridable for tests.
	Now func() time.Time

	log zerolog.Logger
}

func (s *Scheduler) Run(ctx context.Context) error {
	s.log = xlog.WithComponent("scheduler")
	if s.Now == nil {
		s.Now = time.Now
	}
	if s.Location == nil {
		s.Location = seoul()
	}
	if s.Interval <= 0 {
		s.Interval = 30 * time.Second
	}
	t := time.NewTicker(s.Interval)
	defer t.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	due, err := s.Plans.Due(ctx, s.Now(), dueBatch)
	if err != nil {
		if ctx.Err() == nil {
			s.log.Error().Err(err).Msg("due plans query failed")
		}
		return
	}
	for _, p := range due {
		if ctx.Err() != nil {
			return
		}
		s.runPlan(ctx, p)
	}
}

func (s *Scheduler) runPlan(ctx context.Context, p plans.Plan) {
	log := s.log.With().Int64("plan_id", p.ID).Str("vehicle", p.Vehicle).Logger()
	rec := plans.RunRecord{State: string(booking.StateFailed)}

	creds, err := s.Credentials.AptnerCredentials(ctx, p.UserID)
	if err == nil {
		today := visit.DateOf(s.Now().In(s.Location))
		var res booking.Result
		res, err = s.Booker.Run(ctx, booking.Plan{
			Credentials: creds,
			Rule:        p.Rule(today),
			Template:    p.Template(),
			CoverDays:   p.CoverDays,
		})
		rec = plans.RunRecord{
			RunID:   res.RunID,
			State:   string(res.State),
			Created: res.Created,
			Skipped: res.Skipped,
			Failed:  res.Failed,
		}
		if err == nil && res.Failed > 0 {
			err = errors.New(res.Summary())
		}
	}
	if err != nil {
		msg := err.Error()
		rec.Error = &msg
		log.Warn().Err(err).Str("state", rec.State).Msg("plan run did not fully succeed")
	} else {
		log.Info().Int("created", rec.Created).Int("skipped", rec.Skipped).Msg("plan run completed")
	}
	planRuns.WithLabelValues(rec.State).Inc()

	rec.FinishedAt = s.Now()
	next, err := p.Next(rec.FinishedAt)
	if err != nil {
		log.Error().Err(err).Msg("cannot compute next run")
		return
	}
	// the run is recorded even when shutdown interrupted it
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.Plans.RecordRun(recordCtx, p.ID, rec, next); err != nil {
		log.Error().Err(err).Msg("record plan run failed")
	}
}

func seoul() *time.Location {
	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		return time.FixedZone("KST", 9*60*60)
	}
	return loc
}
