// Package aptnertest provides an in-memory Aptner API for tests.
package aptnertest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
)

type Reservation struct {
	VisitReserveIdx int64  `json:"visitReserveIdx"`
	CarNo           string `json:"carNo"`
	Phone           string `json:"phone"`
	VisitDate       string `json:"visitDate"`
	Purpose         string `json:"purpose"`
	Days            int    `json:"days"`
	IsValid         bool   `json:"isValid"`
}

// Server mimics the subset of the Aptner API used by the client: login,
// paginated listing, create and delete. Duplicate (carNo, visitDate) creates
// are rejected with 409.
type Server struct {
	*httptest.Server

	mu           sync.Mutex
	accounts     map[string]string
	tokens       map[string]bool
	reservations []Reservation
	nextID       int64
	seq          int
	pageSize     int

	expireCreates int            // next N creates answer 401
	failDates     map[string]int // visitDate -> status to answer on create

	Auths   int
	Creates int
	Deletes int
	Lists   int
}

func NewServer() *Server {
	s := &Server{
		accounts:  map[string]string{},
		tokens:    map[string]bool{},
		nextID:    1000,
		pageSize:  10,
		failDates: map[string]int{},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/token", s.handleToken)
	mux.HandleFunc("GET /pc/reserves", s.handleList)
	mux.HandleFunc("POST /pc/reserve/", s.handleCreate)
	mux.HandleFunc("DELETE /pc/reserve/{id}", s.handleDelete)
	s.Server = httptest.NewServer(mux)
	return s
}

func (s *Server) AddAccount(id, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[id] = password
}

func (s *Server) SetPageSize(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pageSize = n
}

// Seed inserts a reservation and returns its id.
func (s *Server) Seed(r Reservation) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	r.VisitReserveIdx = s.nextID
	if r.Days == 0 {
		r.Days = 1
	}
	r.IsValid = true
	s.reservations = append(s.reservations, r)
	return r.VisitReserveIdx
}

// ExpireSessions invalidates every token issued so far.
func (s *Server) ExpireSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = map[string]bool{}
}

// ExpireNextCreates makes the next n create calls answer 401.
func (s *Server) ExpireNextCreates(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireCreates = n
}

// FailCreate makes creates for visitDate answer status.
func (s *Server) FailCreate(visitDate string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failDates[visitDate] = status
}

func (s *Server) Reservations() []Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Reservation(nil), s.reservations...)
}

func (s *Server) authorized(r *http.Request) bool {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) <= len(prefix) || h[:len(prefix)] != prefix {
		return false
	}
	return s.tokens[h[len(prefix):]]
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var in struct {
		ID       string `json:"id"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Auths++
	if pw, ok := s.accounts[in.ID]; !ok || pw != in.Password {
		http.Error(w, `{"message":"invalid id or password"}`, http.StatusUnauthorized)
		return
	}
	s.seq++
	tok := fmt.Sprintf("tok-%d", s.seq)
	s.tokens[tok] = true
	writeJSON(w, http.StatusOK, map[string]string{"accessToken": tok})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Lists++
	if !s.authorized(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	pg, err := strconv.Atoi(r.URL.Query().Get("pg"))
	if err != nil || pg < 1 {
		http.Error(w, "bad pg", http.StatusBadRequest)
		return
	}
	total := (len(s.reservations) + s.pageSize - 1) / s.pageSize
	if total == 0 {
		total = 1
	}
	from := (pg - 1) * s.pageSize
	to := from + s.pageSize
	if from > len(s.reservations) {
		from = len(s.reservations)
	}
	if to > len(s.reservations) {
		to = len(s.reservations)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"totalPages":  total,
		"reserveList": append([]Reservation{}, s.reservations[from:to]...),
	})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Creates++
	if s.expireCreates > 0 {
		s.expireCreates--
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if !s.authorized(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	var in Reservation
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if status, ok := s.failDates[in.VisitDate]; ok {
		http.Error(w, `{"message":"injected failure"}`, status)
		return
	}
	for _, existing := range s.reservations {
		if existing.CarNo == in.CarNo && existing.VisitDate == in.VisitDate {
			http.Error(w, `{"message":"already reserved"}`, http.StatusConflict)
			return
		}
	}
	s.nextID++
	in.VisitReserveIdx = s.nextID
	in.IsValid = true
	s.reservations = append(s.reservations, in)
	writeJSON(w, http.StatusOK, in)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Deletes++
	if !s.authorized(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "bad id", http.StatusBadRequest)
		return
	}
	for i, existing := range s.reservations {
		if existing.VisitReserveIdx == id {
			s.reservations = append(s.reservations[:i], s.reservations[i+1:]...)
			w.WriteHeader(http.StatusOK)
			return
		}
	}
	w.WriteHeader(http.StatusNotFound)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
