package aptner

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/example/visitsched/internal/domain/visit"
)

var (
	// ErrAuth: bad credentials or the service could not be reached while logging in.
	ErrAuth = errors.New("aptner: authentication failed")
	// ErrSessionExpired: the service rejected the bearer token (HTTP 401).
	ErrSessionExpired = errors.New("aptner: session expired")
	// ErrValidation: the request was malformed, locally or per the service (400/422).
	ErrValidation = visit.ErrInvalid
	// ErrNotFound: the reservation to delete no longer exists.
	ErrNotFound = errors.New("aptner: reservation not found")
	// ErrRemote: any other non-2xx status or transport failure.
	ErrRemote = errors.New("aptner: remote error")
	// ErrBadResponse: a 2xx response whose body could not be understood. Also matches ErrRemote.
	ErrBadResponse = fmt.Errorf("%w: malformed response", ErrRemote)
)

// Error carries the failing operation and HTTP details alongside a sentinel.
type Error struct {
	Sentinel error
	Op       string
	Status   int
	Body     string
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Op, e.Sentinel)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Body)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Sentinel, e.Err}
	}
	return []error{e.Sentinel}
}

const maxErrorBody = 512

const (
	opAuth   = "authenticate"
	opList   = "list"
	opCreate = "create"
	opDelete = "delete"
)

// statusError maps a non-2xx response to the error taxonomy. NotFound only
// exists for delete and ValidationError only for create; anything else that
// is not a 401 is a RemoteError.
func statusError(op string, status int, body []byte) error {
	var sentinel error
	switch {
	case op == opAuth:
		sentinel = ErrAuth
	case status == http.StatusUnauthorized:
		sentinel = ErrSessionExpired
	case op == opDelete && status == http.StatusNotFound:
		sentinel = ErrNotFound
	case op == opCreate && (status == http.StatusBadRequest || status == http.StatusUnprocessableEntity):
		sentinel = ErrValidation
	default:
		sentinel = ErrRemote
	}
	return &Error{Sentinel: sentinel, Op: op, Status: status, Body: truncate(string(body))}
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= maxErrorBody {
		return s
	}
	return string(r[:maxErrorBody]) + "…"
}

// Retryable reports whether err is a session expiry that a fresh login may cure.
func Retryable(err error) bool {
	return errors.Is(err, ErrSessionExpired)
}
