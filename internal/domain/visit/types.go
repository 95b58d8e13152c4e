package visit

import (
	"errors"
	"fmt"
	"strings"
)

type Purpose string

const (
	PurposeFamily   Purpose = "지인/가족방문"
	PurposeLesson   Purpose = "과외/수업"
	PurposeCleaning Purpose = "돌봄도우미(청소)"
	PurposeOther    Purpose = "기타"
)

// Purposes lists the values accepted by the remote service, in display order.
var Purposes = []Purpose{PurposeFamily, PurposeLesson, PurposeCleaning, PurposeOther}

func (p Purpose) Valid() bool {
	for _, v := range Purposes {
		if p == v {
			return true
		}
	}
	return false
}

// ParsePurpose accepts either the exact remote value or a short alias
// (family, lesson, cleaning, other).
func ParsePurpose(s string) (Purpose, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "family":
		return PurposeFamily, nil
	case "lesson":
		return PurposeLesson, nil
	case "cleaning":
		return PurposeCleaning, nil
	case "other":
		return PurposeOther, nil
	}
	if p := Purpose(s); p.Valid() {
		return p, nil
	}
	return "", validationError("purpose %q is not one of %v", s, Purposes)
}

const (
	MinDays = 1
	MaxDays = 30
)

type ReservationRequest struct {
	Vehicle string  `json:"vehicle"`
	Phone   string  `json:"phone"`
	Date    Date    `json:"date"`
	Purpose Purpose `json:"purpose"`
	Days    int     `json:"days"`
}

// Normalized fills defaults: purpose family visit and a single day.
func (r ReservationRequest) Normalized() ReservationRequest {
	r.Vehicle = strings.TrimSpace(r.Vehicle)
	r.Phone = strings.TrimSpace(r.Phone)
	if r.Purpose == "" {
		r.Purpose = PurposeFamily
	}
	if r.Days == 0 {
		r.Days = MinDays
	}
	return r
}

// ValidateTemplate checks every field except the visit date.
func (r ReservationRequest) ValidateTemplate() error {
	if strings.TrimSpace(r.Vehicle) == "" {
		return validationError("vehicle number is required")
	}
	if strings.TrimSpace(r.Phone) == "" {
		return validationError("phone is required")
	}
	if !r.Purpose.Valid() {
		return validationError("purpose %q is not one of %v", r.Purpose, Purposes)
	}
	if r.Days < MinDays || r.Days > MaxDays {
		return validationError("days must be between %d and %d (got %d)", MinDays, MaxDays, r.Days)
	}
	return nil
}

func (r ReservationRequest) Validate() error {
	if err := r.ValidateTemplate(); err != nil {
		return err
	}
	if r.Date.IsZero() {
		return validationError("visit date is required")
	}
	return nil
}

type Reservation struct {
	ID int64 `json:"id"`
	ReservationRequest
	Valid bool `json:"valid"`
}

// Covers reports whether the reservation spans d.
func (r Reservation) Covers(d Date) bool {
	days := r.Days
	if days < 1 {
		days = 1
	}
	off := r.Date.DaysUntil(d)
	return off >= 0 && off < days
}

// ErrInvalid is matched by every ValidationError.
var ErrInvalid = errors.New("invalid reservation request")

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

func (e *ValidationError) Is(target error) bool { return target == ErrInvalid }

func validationError(format string, args ...any) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}
