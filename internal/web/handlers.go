package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/example/visitsched/internal/aptner"
	"github.com/example/visitsched/internal/auth"
	"github.com/example/visitsched/internal/booking"
	"github.com/example/visitsched/internal/db"
	"github.com/example/visitsched/internal/domain/visit"
	"github.com/example/visitsched/internal/plans"
)

const maxBody = 64 << 10

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, visit.ErrInvalid), errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrNoAptnerAccount):
		return http.StatusConflict
	case errors.Is(err, db.ErrNotFound), errors.Is(err, aptner.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, db.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, aptner.ErrAuth), errors.Is(err, aptner.ErrSessionExpired), errors.Is(err, aptner.ErrRemote):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

var errBadRequest = errors.New("bad request")

type badRequest struct{ msg string }

func (e badRequest) Error() string        { return e.msg }
func (e badRequest) Is(target error) bool { return target == errBadRequest }

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest{msg: "invalid request body: " + err.Error()}
	}
	return nil
}

func userID(r *http.Request) int64 {
	uid, _ := auth.UserIDFromContext(r.Context())
	return uid
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest{msg: "invalid id"}
	}
	return id, nil
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := decode(w, r, &in); err != nil {
		writeError(w, err)
		return
	}
	id, err := s.Accounts.Authenticate(r.Context(), in.Username, in.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.Sessions.SetSession(w, r, id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.Sessions.ClearSession(w)
	w.WriteHeader(http.StatusNoContent)
}

type credentialsRequest struct {
	ID       string `json:"id"`
	Password string `json:"password"`
}

func (s *Server) handlePutCredentials(w http.ResponseWriter, r *http.Request) {
	var in credentialsRequest
	if err := decode(w, r, &in); err != nil {
		writeError(w, err)
		return
	}
	if in.ID == "" || in.Password == "" {
		writeError(w, badRequest{msg: "id and password are required"})
		return
	}
	if err := s.Accounts.SaveAptnerCredentials(r.Context(), userID(r), aptner.Credentials{ID: in.ID, Password: in.Password}); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListReservations(w http.ResponseWriter, r *http.Request) {
	creds, err := s.Accounts.AptnerCredentials(r.Context(), userID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	rs, err := s.Booker.Reservations(r.Context(), creds)
	if err != nil {
		writeError(w, err)
		return
	}
	if r.URL.Query().Get("upcoming") == "true" {
		rs = visit.Upcoming(rs, s.today())
	}
	if rs == nil {
		rs = []visit.Reservation{}
	}
	writeJSON(w, http.StatusOK, rs)
}

func (s *Server) handleDeleteReservation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	creds, err := s.Accounts.AptnerCredentials(r.Context(), userID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := s.Booker.Cancel(r.Context(), creds, []int64{id})
	if err != nil {
		writeError(w, err)
		return
	}
	if len(out) == 1 && out[0].Err != nil {
		writeError(w, out[0].Err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// runRequest describes an ad-hoc batch: the weekdays to book for the given
// number of weeks from Start (today when omitted).
type runRequest struct {
	Vehicle   string           `json:"vehicle"`
	Phone     string           `json:"phone"`
	Purpose   string           `json:"purpose"`
	Days      int              `json:"days"`
	Weekdays  visit.WeekdaySet `json:"weekdays"`
	Weeks     int              `json:"weeks"`
	Start     *visit.Date      `json:"start,omitempty"`
	CoverDays bool             `json:"coverDays"`
}

func (s *Server) bookingPlan(r *http.Request, in runRequest) (booking.Plan, error) {
	purpose, err := visit.ParsePurpose(in.Purpose)
	if err != nil {
		return booking.Plan{}, err
	}
	if in.Weeks < plans.MinWeeks || in.Weeks > plans.MaxWeeks {
		return booking.Plan{}, badRequest{msg: "weeks must be between 1 and 12"}
	}
	tmpl := visit.ReservationRequest{Vehicle: in.Vehicle, Phone: in.Phone, Purpose: purpose, Days: in.Days}.Normalized()
	if err := tmpl.ValidateTemplate(); err != nil {
		return booking.Plan{}, err
	}
	start := s.today()
	if in.Start != nil && !in.Start.IsZero() {
		start = *in.Start
	}
	creds, err := s.Accounts.AptnerCredentials(r.Context(), userID(r))
	if err != nil {
		return booking.Plan{}, err
	}
	return booking.Plan{
		Credentials: creds,
		Rule:        visit.WeeksFrom(start, in.Weekdays, in.Weeks),
		Template:    tmpl,
		CoverDays:   in.CoverDays,
	}, nil
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var in runRequest
	if err := decode(w, r, &in); err != nil {
		writeError(w, err)
		return
	}
	p, err := s.bookingPlan(r, in)
	if err != nil {
		writeError(w, err)
		return
	}
	pv, err := s.Booker.Preview(r.Context(), p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pv)
}

type streamLine struct {
	Type    string           `json:"type"`
	Outcome *booking.Outcome `json:"outcome,omitempty"`
	Result  *booking.Result  `json:"result,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// handleRun streams one NDJSON line per outcome as the run progresses and a
// final result line. Failures before the first outcome are plain JSON errors.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var in runRequest
	if err := decode(w, r, &in); err != nil {
		writeError(w, err)
		return
	}
	p, err := s.bookingPlan(r, in)
	if err != nil {
		writeError(w, err)
		return
	}

	rc := http.NewResponseController(w)
	enc := json.NewEncoder(w)
	started := false
	begin := func() {
		if started {
			return
		}
		started = true
		w.Header().Set("Content-Type", "application/x-ndjson")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
	}

	res, err := s.Booker.Run(r.Context(), p, booking.OnOutcome(func(o booking.Outcome) {
		begin()
		_ = enc.Encode(streamLine{Type: "outcome", Outcome: &o})
		_ = rc.Flush()
	}))
	if err != nil && !started {
		writeError(w, err)
		return
	}
	begin()
	line := streamLine{Type: "result", Result: &res}
	if err != nil {
		line.Error = err.Error()
	}
	_ = enc.Encode(line)
	_ = rc.Flush()
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	ps, err := s.Plans.ListByUser(r.Context(), userID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if ps == nil {
		ps = []plans.Plan{}
	}
	writeJSON(w, http.StatusOK, ps)
}

type planRequest struct {
	Name      string           `json:"name"`
	Vehicle   string           `json:"vehicle"`
	Phone     string           `json:"phone"`
	Purpose   string           `json:"purpose"`
	Days      int              `json:"days"`
	Weekdays  visit.WeekdaySet `json:"weekdays"`
	Weeks     int              `json:"weeks"`
	Schedule  string           `json:"schedule"`
	CoverDays bool             `json:"coverDays"`
}

func (s *Server) handleCreatePlan(w http.ResponseWriter, r *http.Request) {
	var in planRequest
	if err := decode(w, r, &in); err != nil {
		writeError(w, err)
		return
	}
	purpose, err := visit.ParsePurpose(in.Purpose)
	if err != nil {
		writeError(w, err)
		return
	}
	p := plans.Plan{
		UserID:    userID(r),
		Name:      in.Name,
		Vehicle:   in.Vehicle,
		Phone:     in.Phone,
		Purpose:   purpose,
		Days:      in.Days,
		Weekdays:  in.Weekdays,
		Weeks:     in.Weeks,
		Schedule:  in.Schedule,
		CoverDays: in.CoverDays,
	}
	if err := p.Validate(); err != nil {
		writeError(w, badRequest{msg: err.Error()})
		return
	}
	created, err := s.Plans.Create(r.Context(), p, s.now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleSetPlanStatus(status plans.Status) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			writeError(w, err)
			return
		}
		p, err := s.Plans.SetStatus(r.Context(), id, userID(r), status, s.now())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}
