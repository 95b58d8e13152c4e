// Package booking drives bulk reservation runs: expand a recurrence rule,
// skip dates already booked, and create the rest one at a time.
package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/example/visitsched/internal/aptner"
	"github.com/example/visitsched/internal/domain/visit"
	xlog "github.com/example/visitsched/internal/log"
)

type Authenticator interface {
	Authenticate(ctx context.Context, creds aptner.Credentials) (aptner.Session, error)
}

type Repository interface {
	List(ctx context.Context, s aptner.Session) ([]visit.Reservation, error)
	Create(ctx context.Context, s aptner.Session, req visit.ReservationRequest) (visit.Reservation, error)
	Delete(ctx context.Context, s aptner.Session, id int64) error
}

// Plan is the input of one run. Template.Date is ignored; each candidate
// date is substituted in turn. CoverDays enables multi-day dedup for this run
// even if the orchestrator was built without it.
type Plan struct {
	Credentials aptner.Credentials
	Rule        visit.RecurrenceRule
	Template    visit.ReservationRequest
	CoverDays   bool
}

type Orchestrator struct {
	auth      Authenticator
	repo      Repository
	coverDays bool
	log       zerolog.Logger
}

type Option func(*Orchestrator)

// WithCoverDays treats every day spanned by an existing multi-day
// reservation as booked.
func WithCoverDays(on bool) Option {
	return func(o *Orchestrator) { o.coverDays = on }
}

func WithLogger(l zerolog.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

func New(auth Authenticator, repo Repository, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		auth: auth,
		repo: repo,
		log:  xlog.WithComponent("booking"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type runConfig struct {
	progress func(Outcome)
	runID    string
}

type RunOption func(*runConfig)

// OnOutcome is called once per outcome, in candidate order, as soon as the
// outcome is known.
func OnOutcome(fn func(Outcome)) RunOption {
	return func(c *runConfig) { c.progress = fn }
}

func WithRunID(id string) RunOption {
	return func(c *runConfig) { c.runID = id }
}

// Run authenticates, snapshots existing reservations, expands the rule and
// dispatches each candidate date in increasing order. Authentication and
// listing failures abort the run with no outcomes; per-date failures are
// recorded and the run continues. ctx is checked before each dispatch, never
// mid-call: on cancellation the outcomes so far are returned with ctx.Err().
func (o *Orchestrator) Run(ctx context.Context, p Plan, opts ...RunOption) (Result, error) {
	cfg := runConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.runID == "" {
		cfg.runID = uuid.NewString()
	}
	res := Result{RunID: cfg.runID, State: StateAuthenticating, Outcomes: []Outcome{}}
	log := o.log.With().Str("run_id", cfg.runID).Str("vehicle", p.Template.Vehicle).Logger()

	if err := p.Rule.Validate(); err != nil {
		res.State = StateFailed
		return res, fmt.Errorf("%w: %v", visit.ErrInvalid, err)
	}

	sess, err := o.auth.Authenticate(ctx, p.Credentials)
	if err != nil {
		res.State = StateFailed
		log.Error().Err(err).Msg("authentication failed")
		return res, fmt.Errorf("authenticate: %w", err)
	}

	res.State = StateListing
	existing, err := o.repo.List(ctx, sess)
	if err != nil {
		res.State = StateFailed
		log.Error().Err(err).Msg("listing existing reservations failed")
		return res, fmt.Errorf("list reservations: %w", err)
	}
	cover := o.coverDays || p.CoverDays
	index := newIndex(existing, cover)

	res.State = StateExpanding
	candidates := visit.Expand(p.Rule)
	log.Info().
		Int("existing", len(existing)).
		Int("candidates", len(candidates)).
		Str("weekdays", p.Rule.Weekdays.String()).
		Stringer("start", p.Rule.Start).
		Msg("expanded recurrence rule")
	if len(candidates) == 0 {
		res.State = StateCompleted
		return res, nil
	}

	res.State = StateDispatching
	tmpl := p.Template.Normalized()
	for _, d := range candidates {
		if err := ctx.Err(); err != nil {
			res.State = StateCancelled
			log.Warn().Int("done", len(res.Outcomes)).Int("remaining", len(candidates)-len(res.Outcomes)).Msg("run cancelled")
			return res, err
		}

		var oc Outcome
		if index.Contains(tmpl.Vehicle, d) {
			oc = Outcome{Date: d, Status: StatusSkipped, Reason: "already reserved"}
		} else {
			req := tmpl
			req.Date = d
			oc = o.create(ctx, log, p.Credentials, &sess, req)
			if oc.Status == StatusCreated {
				remember(index, req, cover)
			}
		}

		log.Info().Stringer("date", d).Str("status", string(oc.Status)).Str("reason", oc.Reason).Msg("dispatched")
		res.add(oc)
		if cfg.progress != nil {
			cfg.progress(oc)
		}
	}

	res.State = StateCompleted
	log.Info().Int("created", res.Created).Int("skipped", res.Skipped).Int("failed", res.Failed).Msg("run completed")
	return res, nil
}

// create books one date. A session expiry is answered with one fresh login
// and one retry; a second expiry fails the date only. A session that saw a
// 401 is never reused: it is dropped and the next call logs in again first.
func (o *Orchestrator) create(ctx context.Context, log zerolog.Logger, creds aptner.Credentials, sess *aptner.Session, req visit.ReservationRequest) Outcome {
	if !sess.Valid() {
		fresh, err := o.auth.Authenticate(ctx, creds)
		if err != nil {
			return failed(req.Date, fmt.Errorf("authenticate: %w", err))
		}
		*sess = fresh
	}
	r, err := o.repo.Create(ctx, *sess, req)
	if aptner.Retryable(err) {
		*sess = aptner.Session{}
		log.Debug().Stringer("date", req.Date).Msg("session expired, re-authenticating")
		fresh, aerr := o.auth.Authenticate(ctx, creds)
		if aerr != nil {
			return failed(req.Date, fmt.Errorf("re-authenticate: %w", aerr))
		}
		*sess = fresh
		r, err = o.repo.Create(ctx, *sess, req)
		if aptner.Retryable(err) {
			*sess = aptner.Session{}
			return failed(req.Date, fmt.Errorf("session expired again after re-authentication: %w", err))
		}
	}
	if err != nil {
		return failed(req.Date, err)
	}
	return Outcome{Date: req.Date, Status: StatusCreated, Reservation: &r}
}

func failed(d visit.Date, err error) Outcome {
	return Outcome{Date: d, Status: StatusFailed, Reason: err.Error(), Err: err}
}

func newIndex(existing []visit.Reservation, cover bool) *visit.Index {
	if cover {
		return visit.NewIndex(existing, visit.CoverDays())
	}
	return visit.NewIndex(existing)
}

func remember(ix *visit.Index, req visit.ReservationRequest, cover bool) {
	days := 1
	if cover {
		days = req.Days
	}
	for i := 0; i < days; i++ {
		ix.Add(req.Vehicle, req.Date.AddDays(i))
	}
}

// Preview reports the candidate dates of the plan's rule and which of them
// the vehicle already holds, without creating anything.
func (o *Orchestrator) Preview(ctx context.Context, p Plan) (Preview, error) {
	if err := p.Rule.Validate(); err != nil {
		return Preview{}, fmt.Errorf("%w: %v", visit.ErrInvalid, err)
	}
	sess, err := o.auth.Authenticate(ctx, p.Credentials)
	if err != nil {
		return Preview{}, fmt.Errorf("authenticate: %w", err)
	}
	existing, err := o.repo.List(ctx, sess)
	if err != nil {
		return Preview{}, fmt.Errorf("list reservations: %w", err)
	}
	index := newIndex(existing, o.coverDays || p.CoverDays)

	var pv Preview
	for _, d := range visit.Expand(p.Rule) {
		dup := index.Contains(p.Template.Vehicle, d)
		pv.Candidates = append(pv.Candidates, Candidate{Date: d, Duplicate: dup})
		if dup {
			pv.Duplicates++
		} else {
			pv.New++
		}
	}
	return pv, nil
}

// Reservations returns the account's reservations ordered by date then vehicle.
func (o *Orchestrator) Reservations(ctx context.Context, creds aptner.Credentials) ([]visit.Reservation, error) {
	sess, err := o.auth.Authenticate(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	rs, err := o.repo.List(ctx, sess)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	visit.SortByDate(rs)
	return rs, nil
}

// Cancel deletes reservations one by one with the same single re-login on
// session expiry as Run. An id that is already gone is reported as
// CancelNotFound, not as a failure.
func (o *Orchestrator) Cancel(ctx context.Context, creds aptner.Credentials, ids []int64) ([]CancelOutcome, error) {
	sess, err := o.auth.Authenticate(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	out := make([]CancelOutcome, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		err := o.cancelOne(ctx, creds, &sess, id)
		oc := CancelOutcome{ID: id, Status: CancelDeleted}
		switch {
		case err == nil:
		case errors.Is(err, aptner.ErrNotFound):
			oc.Status = CancelNotFound
			oc.Reason = err.Error()
			oc.Err = err
		default:
			oc.Status = CancelFailed
			oc.Reason = err.Error()
			oc.Err = err
		}
		o.log.Info().Int64("id", id).Str("status", string(oc.Status)).Msg("cancel")
		out = append(out, oc)
	}
	return out, nil
}

// cancelOne deletes one reservation with the same session handling as create.
func (o *Orchestrator) cancelOne(ctx context.Context, creds aptner.Credentials, sess *aptner.Session, id int64) error {
	if !sess.Valid() {
		fresh, err := o.auth.Authenticate(ctx, creds)
		if err != nil {
			return fmt.Errorf("authenticate: %w", err)
		}
		*sess = fresh
	}
	err := o.repo.Delete(ctx, *sess, id)
	if !aptner.Retryable(err) {
		return err
	}
	*sess = aptner.Session{}
	fresh, aerr := o.auth.Authenticate(ctx, creds)
	if aerr != nil {
		return fmt.Errorf("re-authenticate: %w", aerr)
	}
	*sess = fresh
	if err = o.repo.Delete(ctx, *sess, id); aptner.Retryable(err) {
		*sess = aptner.Session{}
	}
	return err
}
