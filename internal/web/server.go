// Package web serves the JSON API used to run, preview and schedule
// reservation batches for logged-in users.
package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/example/visitsched/internal/aptner"
	"github.com/example/visitsched/internal/auth"
	"github.com/example/visitsched/internal/booking"
	"github.com/example/visitsched/internal/domain/visit"
	xlog "github.com/example/visitsched/internal/log"
	"github.com/example/visitsched/internal/plans"
)

type Accounts interface {
	Authenticate(ctx context.Context, username, password string) (int64, error)
	AptnerCredentials(ctx context.Context, userID int64) (aptner.Credentials, error)
	SaveAptnerCredentials(ctx context.Context, userID int64, creds aptner.Credentials) error
}

type PlanRepo interface {
	Create(ctx context.Context, p plans.Plan, now time.Time) (plans.Plan, error)
	ListByUser(ctx context.Context, userID int64) ([]plans.Plan, error)
	SetStatus(ctx context.Context, id, userID int64, status plans.Status, now time.Time) (plans.Plan, error)
}

type Booker interface {
	Run(ctx context.Context, p booking.Plan, opts ...booking.RunOption) (booking.Result, error)
	Preview(ctx context.Context, p booking.Plan) (booking.Preview, error)
	Reservations(ctx context.Context, creds aptner.Credentials) ([]visit.Reservation, error)
	Cancel(ctx context.Context, creds aptner.Credentials, ids []int64) ([]booking.CancelOutcome, error)
}

type Server struct {
	Sessions *auth.Store
	Accounts Accounts
	Plans    PlanRepo
	Booker   Booker
	// Location decides "today" for runs without an explicit start date.
	Location *time.Location
	Now      func() time.Time
}

func (s *Server) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Server) today() visit.Date {
	loc := s.Location
	if loc == nil {
		loc = time.Local
	}
	return visit.DateOf(s.now().In(loc))
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(xlog.WithComponent("web")))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/login", s.handleLogin)
	r.Post("/logout", s.handleLogout)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.Sessions.RequireAuth)

		r.Put("/credentials", s.handlePutCredentials)

		r.Get("/reservations", s.handleListReservations)
		r.Delete("/reservations/{id}", s.handleDeleteReservation)
		r.Post("/preview", s.handlePreview)
		r.Post("/runs", s.handleRun)

		r.Get("/plans", s.handleListPlans)
		r.Post("/plans", s.handleCreatePlan)
		r.Post("/plans/{id}/pause", s.handleSetPlanStatus(plans.StatusPaused))
		r.Post("/plans/{id}/resume", s.handleSetPlanStatus(plans.StatusActive))
	})
	return r
}

func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("request")
		})
	}
}

// Start serves h on addr until ctx is cancelled.
func Start(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	startLog := xlog.WithComponent("web")
	startLog.Info().Str("addr", addr).Msg("listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
