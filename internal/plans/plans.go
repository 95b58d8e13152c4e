// Package plans stores recurring booking plans that the scheduler runs on a
// cron schedule.
package plans

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/robfig/cron/v3"

	"github.com/example/visitsched/internal/db"
	"github.com/example/visitsched/internal/domain/visit"
)

type Status string

const (
	StatusActive Status = "active"
	StatusPaused Status = "paused"
)

const (
	MinWeeks = 1
	MaxWeeks = 12
)

type Plan struct {
	ID        int64            `json:"id"`
	UserID    int64            `json:"userId"`
	Name      string           `json:"name"`
	Vehicle   string           `json:"vehicle"`
	Phone     string           `json:"phone"`
	Purpose   visit.Purpose    `json:"purpose"`
	Days      int              `json:"days"`
	Weekdays  visit.WeekdaySet `json:"weekdays"`
	Weeks     int              `json:"weeks"`
	Schedule  string           `json:"schedule"`
	CoverDays bool             `json:"coverDays"`

	Status    Status     `json:"status"`
	LastRunAt *time.Time `json:"lastRunAt,omitempty"`
	NextRunAt *time.Time `json:"nextRunAt,omitempty"`
	LastError *string    `json:"lastError,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Template is the reservation request every run of the plan submits.
func (p Plan) Template() visit.ReservationRequest {
	return visit.ReservationRequest{
		Vehicle: p.Vehicle,
		Phone:   p.Phone,
		Purpose: p.Purpose,
		Days:    p.Days,
	}.Normalized()
}

// Rule is the recurrence a run started on today covers.
func (p Plan) Rule(today visit.Date) visit.RecurrenceRule {
	return visit.WeeksFrom(today, p.Weekdays, p.Weeks)
}

// Next returns the first scheduled time strictly after t.
func (p Plan) Next(t time.Time) (time.Time, error) {
	sched, err := cron.ParseStandard(p.Schedule)
	if err != nil {
		return time.Time{}, fmt.Errorf("schedule %q: %w", p.Schedule, err)
	}
	next := sched.Next(t)
	if next.IsZero() {
		return time.Time{}, fmt.Errorf("schedule %q never fires", p.Schedule)
	}
	return next, nil
}

func (p Plan) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("name required")
	}
	if err := p.Template().ValidateTemplate(); err != nil {
		return err
	}
	if p.Weekdays.Empty() {
		return errors.New("at least one weekday required")
	}
	if p.Weekdays&^0x7f != 0 {
		return errors.New("weekdays out of range")
	}
	if p.Weeks < MinWeeks || p.Weeks > MaxWeeks {
		return fmt.Errorf("weeks must be between %d and %d", MinWeeks, MaxWeeks)
	}
	if _, err := cron.ParseStandard(p.Schedule); err != nil {
		return fmt.Errorf("schedule %q: %w", p.Schedule, err)
	}
	return nil
}

// RunRecord summarizes one execution of a plan.
type RunRecord struct {
	RunID      string    `json:"runId"`
	State      string    `json:"state"`
	Created    int       `json:"created"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	Error      *string   `json:"error,omitempty"`
	FinishedAt time.Time `json:"finishedAt"`
}

type Repo struct{ db *db.DB }

func NewRepo(d *db.DB) *Repo { return &Repo{db: d} }

const planColumns = `id,user_id,name,vehicle,phone,purpose,days,weekdays,weeks,schedule,cover_days,status,last_run_at,next_run_at,last_error,created_at,updated_at`

func scanPlan(row pgx.Row) (Plan, error) {
	var p Plan
	var weekdays int16
	var purpose, status string
	err := row.Scan(
		&p.ID, &p.UserID, &p.Name, &p.Vehicle, &p.Phone, &purpose, &p.Days, &weekdays, &p.Weeks, &p.Schedule, &p.CoverDays,
		&status, &p.LastRunAt, &p.NextRunAt, &p.LastError, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return Plan{}, err
	}
	p.Purpose = visit.Purpose(purpose)
	p.Status = Status(status)
	p.Weekdays = visit.WeekdaySet(weekdays)
	return p, nil
}

func collect(rows pgx.Rows) ([]Plan, error) {
	defer rows.Close()
	var out []Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Create validates p, stores it as active and schedules its first run after now.
func (r *Repo) Create(ctx context.Context, p Plan, now time.Time) (Plan, error) {
	p.Purpose = p.Template().Purpose
	p.Days = p.Template().Days
	if err := p.Validate(); err != nil {
		return Plan{}, err
	}
	next, err := p.Next(now)
	if err != nil {
		return Plan{}, err
	}
	row := r.db.QueryRow(ctx, `
INSERT INTO plans(user_id,name,vehicle,phone,purpose,days,weekdays,weeks,schedule,cover_days,status,next_run_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,'active',$11)
RETURNING `+planColumns,
		p.UserID, strings.TrimSpace(p.Name), strings.TrimSpace(p.Vehicle), strings.TrimSpace(p.Phone), string(p.Purpose), p.Days,
		int16(p.Weekdays), p.Weeks, p.Schedule, p.CoverDays, next,
	)
	created, err := scanPlan(row)
	return created, db.Wrap(err)
}

func (r *Repo) ListByUser(ctx context.Context, userID int64) ([]Plan, error) {
	rows, err := r.db.Query(ctx, `SELECT `+planColumns+` FROM plans WHERE user_id=$1 ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, db.Wrap(err)
	}
	return collect(rows)
}

func (r *Repo) GetForUser(ctx context.Context, id, userID int64) (Plan, error) {
	p, err := scanPlan(r.db.QueryRow(ctx, `SELECT `+planColumns+` FROM plans WHERE id=$1 AND user_id=$2`, id, userID))
	if err != nil {
		return Plan{}, db.Wrap(err)
	}
	return p, nil
}

// SetStatus pauses or resumes a plan. Resuming reschedules from now so
// missed runs are not replayed.
func (r *Repo) SetStatus(ctx context.Context, id, userID int64, status Status, now time.Time) (Plan, error) {
	p, err := r.GetForUser(ctx, id, userID)
	if err != nil {
		return Plan{}, err
	}
	switch status {
	case StatusPaused:
		p.NextRunAt = nil
	case StatusActive:
		next, err := p.Next(now)
		if err != nil {
			return Plan{}, err
		}
		p.NextRunAt = &next
	default:
		return Plan{}, fmt.Errorf("unknown plan status %q", status)
	}
	updated, err := scanPlan(r.db.QueryRow(ctx, `
UPDATE plans SET status=$3, next_run_at=$4, updated_at=now()
WHERE id=$1 AND user_id=$2
RETURNING `+planColumns, id, userID, string(status), p.NextRunAt))
	return updated, db.Wrap(err)
}

// Due returns active plans whose next run is at or before now, oldest first.
func (r *Repo) Due(ctx context.Context, now time.Time, limit int) ([]Plan, error) {
	rows, err := r.db.Query(ctx, `
SELECT `+planColumns+`
FROM plans
WHERE status='active' AND next_run_at IS NOT NULL AND next_run_at <= $1
ORDER BY next_run_at ASC
LIMIT $2`, now, limit)
	if err != nil {
		return nil, db.Wrap(err)
	}
	return collect(rows)
}

// RecordRun stores the run and moves the plan to its next scheduled time.
func (r *Repo) RecordRun(ctx context.Context, planID int64, rec RunRecord, next time.Time) error {
	return db.Wrap(r.db.Tx(ctx, func(q db.Querier) error {
		if _, err := q.Exec(ctx, `
INSERT INTO plan_runs(plan_id,run_id,state,created,skipped,failed,error,finished_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			planID, rec.RunID, rec.State, rec.Created, rec.Skipped, rec.Failed, rec.Error, rec.FinishedAt); err != nil {
			return err
		}
		_, err := q.Exec(ctx, `
UPDATE plans SET last_run_at=$2, next_run_at=$3, last_error=$4, updated_at=now()
WHERE id=$1`, planID, rec.FinishedAt, next, rec.Error)
		return err
	}))
}

// Runs returns the most recent runs of a plan, newest first.
func (r *Repo) Runs(ctx context.Context, planID int64, limit int) ([]RunRecord, error) {
	rows, err := r.db.Query(ctx, `
SELECT run_id,state,created,skipped,failed,error,finished_at
FROM plan_runs WHERE plan_id=$1
ORDER BY finished_at DESC, id DESC
LIMIT $2`, planID, limit)
	if err != nil {
		return nil, db.Wrap(err)
	}
	defer rows.Close()
	var out []RunRecord
	for rows.Next() {
		var rec RunRecord
		if err := rows.Scan(&rec.RunID, &rec.State, &rec.Created, &rec.Skipped, &rec.Failed, &rec.Error, &rec.FinishedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
