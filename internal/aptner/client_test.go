package aptner

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/visitsched/internal/aptner/aptnertest"
	"github.com/example/visitsched/internal/domain/visit"
)

func newTestClient(base string) *Client {
	return New(Options{BaseURL: base, Timeout: 2 * time.Second})
}

func newFake(t *testing.T) (*aptnertest.Server, *Client, Session) {
	t.Helper()
	srv := aptnertest.NewServer()
	t.Cleanup(srv.Close)
	srv.AddAccount("resident", "pw")
	c := newTestClient(srv.URL)
	sess, err := c.Authenticate(context.Background(), Credentials{ID: "resident", Password: "pw"})
	require.NoError(t, err)
	return srv, c, sess
}

func request(vehicle string, d visit.Date) visit.ReservationRequest {
	return visit.ReservationRequest{Vehicle: vehicle, Phone: "010-1234-5678", Date: d}
}

func TestAuthenticate(t *testing.T) {
	srv := aptnertest.NewServer()
	defer srv.Close()
	srv.AddAccount("resident", "pw")
	c := newTestClient(srv.URL)

	sess, err := c.Authenticate(context.Background(), Credentials{ID: "resident", Password: "pw"})
	require.NoError(t, err)
	assert.True(t, sess.Valid())
	assert.False(t, Session{}.Valid())

	_, err = c.Authenticate(context.Background(), Credentials{ID: "resident", Password: "wrong"})
	assert.ErrorIs(t, err, ErrAuth)
	assert.False(t, errors.Is(err, ErrSessionExpired), "a rejected login is not a session expiry")

	before := srv.Auths
	_, err = c.Authenticate(context.Background(), Credentials{ID: "", Password: "pw"})
	assert.ErrorIs(t, err, ErrAuth)
	assert.Equal(t, before, srv.Auths, "empty credentials must not reach the network")
}

func TestAuthenticate_MissingTokenAndUnreachable(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"accessToken":""}`))
	}))
	_, err := newTestClient(s.URL).Authenticate(context.Background(), Credentials{ID: "a", Password: "b"})
	assert.ErrorIs(t, err, ErrAuth)

	s.Close()
	_, err = newTestClient(s.URL).Authenticate(context.Background(), Credentials{ID: "a", Password: "b"})
	assert.ErrorIs(t, err, ErrAuth)
}

func TestList_MergesAllPagesInServerOrder(t *testing.T) {
	srv, c, sess := newFake(t)
	srv.SetPageSize(2)
	base := visit.NewDate(2026, time.February, 2)
	var want []int64
	for i := 0; i < 5; i++ {
		id := srv.Seed(aptnertest.Reservation{CarNo: "12가3456", Phone: "010", VisitDate: base.AddDays(4 - i).String(), Purpose: string(visit.PurposeFamily), Days: 2})
		want = append(want, id)
	}

	got, err := c.List(context.Background(), sess)
	require.NoError(t, err)
	require.Len(t, got, 5)
	for i, r := range got {
		assert.Equal(t, want[i], r.ID)
		assert.Equal(t, 2, r.Days)
		assert.True(t, r.Valid)
	}
	assert.Equal(t, base.AddDays(4), got[0].Date)
	assert.Equal(t, 3, srv.Lists)
}

func TestList_TotalPagesIsAuthoritative(t *testing.T) {
	var calls atomic.Int32
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		switch r.URL.Query().Get("pg") {
		case "1":
			_, _ = w.Write([]byte(`{"totalPages":3,"reserveList":[{"visitReserveIdx":1,"carNo":"A","visitDate":"2026.02.03"}]}`))
		case "2":
			_, _ = w.Write([]byte(`{"totalPages":1,"reserveList":[]}`))
		case "3":
			_, _ = w.Write([]byte(`{"reserveList":[{"visitReserveIdx":3,"carNo":"B","visitDate":"2026.02.04"}]}`))
		default:
			t.Errorf("unexpected page %s", r.URL.Query().Get("pg"))
		}
	}))
	defer s.Close()

	got, err := newTestClient(s.URL).List(context.Background(), Session{Token: "t"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(3), got[1].ID)
	assert.Equal(t, 1, got[1].Days)
	assert.EqualValues(t, 3, calls.Load())
}

func TestList_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    error
	}{
		{
			name:    "401 is session expiry",
			handler: func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusUnauthorized) },
			want:    ErrSessionExpired,
		},
		{
			name:    "5xx is remote",
			handler: func(w http.ResponseWriter, _ *http.Request) { http.Error(w, "down", http.StatusBadGateway) },
			want:    ErrRemote,
		},
		{
			name:    "404 on list is remote",
			handler: func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNotFound) },
			want:    ErrRemote,
		},
		{
			name:    "invalid json",
			handler: func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("{not-json")) },
			want:    ErrBadResponse,
		},
		{
			name: "unparseable visit date",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"totalPages":1,"reserveList":[{"carNo":"A","visitDate":"2026-02-03"}]}`))
			},
			want: ErrBadResponse,
		},
		{
			name: "page count above cap",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"totalPages":51,"reserveList":[]}`))
			},
			want: ErrBadResponse,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := httptest.NewServer(tt.handler)
			defer s.Close()
			_, err := newTestClient(s.URL).List(context.Background(), Session{Token: "t"})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			var ae *Error
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, opList, ae.Op)
		})
	}
	assert.ErrorIs(t, ErrBadResponse, ErrRemote)
}

func TestList_RequiresSession(t *testing.T) {
	_, err := newTestClient("http://127.0.0.1:1").List(context.Background(), Session{})
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestCreate(t *testing.T) {
	srv, c, sess := newFake(t)
	d := visit.NewDate(2026, time.February, 3)

	got, err := c.Create(context.Background(), sess, request("12가3456", d))
	require.NoError(t, err)
	assert.NotZero(t, got.ID)
	assert.Equal(t, d, got.Date)
	assert.Equal(t, visit.PurposeFamily, got.Purpose)
	assert.Equal(t, 1, got.Days)

	stored := srv.Reservations()
	require.Len(t, stored, 1)
	assert.Equal(t, "2026.02.03", stored[0].VisitDate)
	assert.Equal(t, "12가3456", stored[0].CarNo)
	assert.Equal(t, 1, stored[0].Days)

	_, err = c.Create(context.Background(), sess, request("12가3456", d))
	assert.ErrorIs(t, err, ErrRemote, "remote duplicate conflict surfaces as a remote error")
}

func TestCreate_DaysOutOfRangeNeverReachesNetwork(t *testing.T) {
	srv, c, sess := newFake(t)
	for _, days := range []int{-1, 31, 100} {
		req := request("12가3456", visit.NewDate(2026, time.February, 3))
		req.Days = days
		_, err := c.Create(context.Background(), sess, req)
		assert.ErrorIs(t, err, ErrValidation, "days=%d", days)
	}
	assert.Zero(t, srv.Creates)

	req := request("12가3456", visit.NewDate(2026, time.February, 3))
	req.Purpose = "party"
	_, err := c.Create(context.Background(), sess, req)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Zero(t, srv.Creates)
}

func TestCreate_StatusMapping(t *testing.T) {
	srv, c, sess := newFake(t)
	srv.FailCreate("2026.02.03", http.StatusBadRequest)
	srv.FailCreate("2026.02.04", http.StatusInternalServerError)

	_, err := c.Create(context.Background(), sess, request("A", visit.NewDate(2026, time.February, 3)))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = c.Create(context.Background(), sess, request("A", visit.NewDate(2026, time.February, 4)))
	assert.ErrorIs(t, err, ErrRemote)
	assert.Contains(t, err.Error(), "HTTP 500")

	srv.ExpireSessions()
	_, err = c.Create(context.Background(), sess, request("A", visit.NewDate(2026, time.February, 5)))
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.True(t, Retryable(err))
}

func TestCreate_EmptyBodyKeepsRequest(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	defer s.Close()
	d := visit.NewDate(2026, time.February, 3)
	got, err := newTestClient(s.URL).Create(context.Background(), Session{Token: "t"}, request("A", d))
	require.NoError(t, err)
	assert.Equal(t, d, got.Date)
	assert.Zero(t, got.ID)
}

func TestDelete(t *testing.T) {
	srv, c, sess := newFake(t)
	id := srv.Seed(aptnertest.Reservation{CarNo: "A", VisitDate: "2026.02.03"})

	require.NoError(t, c.Delete(context.Background(), sess, id))
	assert.Empty(t, srv.Reservations())

	err := c.Delete(context.Background(), sess, id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, errors.Is(err, ErrRemote))

	srv.ExpireSessions()
	assert.ErrorIs(t, c.Delete(context.Background(), sess, 1), ErrSessionExpired)
}

func TestClient_TransportErrorKeepsCause(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestClient("http://127.0.0.1:1").List(ctx, Session{Token: "t"})
	assert.ErrorIs(t, err, ErrRemote)
	assert.ErrorIs(t, err, context.Canceled)
}
