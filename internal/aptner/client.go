package aptner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/example/visitsched/internal/domain/visit"
)

const (
	DefaultBaseURL = "https://v2.aptner.com"

	// maxPages bounds the listing walk. Exceeding it is an error rather than a
	// partial listing, since a partial dedup snapshot would allow double-booking.
	maxPages = 50

	userAgent = "visitsched/1.0"
)

// Client talks to the Aptner visitor-vehicle API. It holds no session state:
// every call takes the Session it should authenticate with.
type Client struct {
	hc      *http.Client
	base    string
	limiter *rate.Limiter
}

type Options struct {
	BaseURL string
	Timeout time.Duration
	// RequestsPerSecond paces outbound calls. Zero or negative disables pacing.
	RequestsPerSecond float64
	HTTPClient        *http.Client
}

func New(opts Options) *Client {
	base := opts.BaseURL
	if strings.TrimSpace(base) == "" {
		base = DefaultBaseURL
	}
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	return &Client{
		hc:      hc,
		base:    strings.TrimRight(base, "/"),
		limiter: rate.NewLimiter(limit, 1),
	}
}

type Credentials struct {
	ID       string
	Password string
}

// Session is a bearer token obtained from Authenticate. The zero value is not
// a valid session.
type Session struct {
	Token    string
	IssuedAt time.Time
}

func (s Session) Valid() bool { return s.Token != "" }

// Authenticate exchanges credentials for a session. Failures are never
// retried here.
func (c *Client) Authenticate(ctx context.Context, creds Credentials) (sess Session, err error) {
	start := time.Now()
	defer func() { observe(opAuth, start, err) }()

	if strings.TrimSpace(creds.ID) == "" || creds.Password == "" {
		return Session{}, &Error{Sentinel: ErrAuth, Op: opAuth, Err: fmt.Errorf("id and password are required")}
	}
	payload, err := json.Marshal(map[string]string{"id": creds.ID, "password": creds.Password})
	if err != nil {
		return Session{}, &Error{Sentinel: ErrAuth, Op: opAuth, Err: err}
	}
	status, body, err := c.do(ctx, http.MethodPost, "/auth/token", "", payload)
	if err != nil {
		return Session{}, &Error{Sentinel: ErrAuth, Op: opAuth, Err: err}
	}
	if status < 200 || status >= 300 {
		return Session{}, statusError(opAuth, status, body)
	}
	var res struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return Session{}, &Error{Sentinel: ErrAuth, Op: opAuth, Status: status, Err: fmt.Errorf("decode token response: %w", err)}
	}
	if res.AccessToken == "" {
		return Session{}, &Error{Sentinel: ErrAuth, Op: opAuth, Status: status, Err: fmt.Errorf("response carried no accessToken")}
	}
	return Session{Token: res.AccessToken, IssuedAt: time.Now().UTC()}, nil
}

type reserveDTO struct {
	VisitReserveIdx int64  `json:"visitReserveIdx"`
	CarNo           string `json:"carNo"`
	Phone           string `json:"phone"`
	VisitDate       string `json:"visitDate"`
	Purpose         string `json:"purpose"`
	Days            int    `json:"days"`
	IsValid         bool   `json:"isValid"`
}

func (d reserveDTO) toReservation() (visit.Reservation, error) {
	date, err := visit.ParseDate(d.VisitDate)
	if err != nil {
		return visit.Reservation{}, err
	}
	days := d.Days
	if days < 1 {
		days = 1
	}
	return visit.Reservation{
		ID: d.VisitReserveIdx,
		ReservationRequest: visit.ReservationRequest{
			Vehicle: d.CarNo,
			Phone:   d.Phone,
			Date:    date,
			Purpose: visit.Purpose(d.Purpose),
			Days:    days,
		},
		Valid: d.IsValid,
	}, nil
}

type listResponse struct {
	TotalPages  int          `json:"totalPages"`
	ReserveList []reserveDTO `json:"reserveList"`
}

// List fetches every page of reservations and merges them in server order.
// totalPages from the first page decides how many pages are read.
func (c *Client) List(ctx context.Context, s Session) (out []visit.Reservation, err error) {
	start := time.Now()
	defer func() { observe(opList, start, err) }()

	if !s.Valid() {
		return nil, &Error{Sentinel: ErrSessionExpired, Op: opList, Err: fmt.Errorf("no session")}
	}

	totalPages := 1
	for page := 1; page <= totalPages; page++ {
		res, err := c.listPage(ctx, s, page)
		if err != nil {
			return nil, err
		}
		if page == 1 {
			if res.TotalPages > 1 {
				totalPages = res.TotalPages
			}
			if totalPages > maxPages {
				return nil, &Error{Sentinel: ErrBadResponse, Op: opList,
					Err: fmt.Errorf("listing reports %d pages, more than the %d page limit", totalPages, maxPages)}
			}
		}
		for _, item := range res.ReserveList {
			r, err := item.toReservation()
			if err != nil {
				return nil, &Error{Sentinel: ErrBadResponse, Op: opList, Err: fmt.Errorf("page %d: %w", page, err)}
			}
			out = append(out, r)
		}
	}
	return out, nil
}

func (c *Client) listPage(ctx context.Context, s Session, page int) (listResponse, error) {
	status, body, err := c.do(ctx, http.MethodGet, "/pc/reserves?pg="+strconv.Itoa(page), s.Token, nil)
	if err != nil {
		return listResponse{}, &Error{Sentinel: ErrRemote, Op: opList, Err: err}
	}
	if status < 200 || status >= 300 {
		return listResponse{}, statusError(opList, status, body)
	}
	var res listResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return listResponse{}, &Error{Sentinel: ErrBadResponse, Op: opList, Status: status, Err: err}
	}
	return res, nil
}

// Create books one visit. The request is validated before any network call;
// Days zero means one day. Create is not idempotent: a retry after an
// ambiguous failure may book twice.
func (c *Client) Create(ctx context.Context, s Session, req visit.ReservationRequest) (r visit.Reservation, err error) {
	start := time.Now()
	defer func() { observe(opCreate, start, err) }()

	req = req.Normalized()
	if err := req.Validate(); err != nil {
		return visit.Reservation{}, err
	}
	if !s.Valid() {
		return visit.Reservation{}, &Error{Sentinel: ErrSessionExpired, Op: opCreate, Err: fmt.Errorf("no session")}
	}

	payload, err := json.Marshal(map[string]any{
		"carNo":     req.Vehicle,
		"visitDate": req.Date.String(),
		"phone":     req.Phone,
		"purpose":   string(req.Purpose),
		"days":      req.Days,
	})
	if err != nil {
		return visit.Reservation{}, err
	}
	status, body, err := c.do(ctx, http.MethodPost, "/pc/reserve/", s.Token, payload)
	if err != nil {
		return visit.Reservation{}, &Error{Sentinel: ErrRemote, Op: opCreate, Err: err}
	}
	if status < 200 || status >= 300 {
		return visit.Reservation{}, statusError(opCreate, status, body)
	}

	created := visit.Reservation{ReservationRequest: req, Valid: true}
	if len(bytes.TrimSpace(body)) == 0 {
		return created, nil
	}
	var dto reserveDTO
	if err := json.Unmarshal(body, &dto); err != nil {
		// the booking went through; keep what we sent
		return created, nil
	}
	if dto.VisitReserveIdx != 0 {
		created.ID = dto.VisitReserveIdx
	}
	if dto.VisitDate != "" {
		if full, err := dto.toReservation(); err == nil {
			created = full
		}
	}
	return created, nil
}

func (c *Client) Delete(ctx context.Context, s Session, id int64) (err error) {
	start := time.Now()
	defer func() { observe(opDelete, start, err) }()

	if !s.Valid() {
		return &Error{Sentinel: ErrSessionExpired, Op: opDelete, Err: fmt.Errorf("no session")}
	}
	status, body, err := c.do(ctx, http.MethodDelete, "/pc/reserve/"+strconv.FormatInt(id, 10), s.Token, nil)
	if err != nil {
		return &Error{Sentinel: ErrRemote, Op: opDelete, Err: err}
	}
	if status < 200 || status >= 300 {
		return statusError(opDelete, status, body)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path, token string, body []byte) (int, []byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, err
	}
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("user-agent", userAgent)
	req.Header.Set("accept", "application/json")
	if body != nil {
		req.Header.Set("content-type", "application/json")
	}
	if token != "" {
		req.Header.Set("authorization", "Bearer "+token)
	}

	res, err := c.hc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	if err != nil {
		return res.StatusCode, nil, err
	}
	return res.StatusCode, b, nil
}
