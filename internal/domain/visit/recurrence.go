package visit

import (
	"errors"
	"fmt"
)

// Span is a window length in days.
type Span int

// MaxSpan bounds a rule's window to one year.
const MaxSpan Span = 366

func Weeks(n int) Span { return Span(n * 7) }

// RecurrenceRule selects weekdays inside the half-open window [Start, Start+Span).
type RecurrenceRule struct {
	Weekdays WeekdaySet
	Start    Date
	Span     Span
}

// WeeksFrom builds a rule covering the given number of weeks from start.
func WeeksFrom(start Date, weekdays WeekdaySet, weeks int) RecurrenceRule {
	return RecurrenceRule{Weekdays: weekdays, Start: start, Span: Weeks(weeks)}
}

// End is the first date outside the window.
func (r RecurrenceRule) End() Date { return r.Start.AddDays(int(r.Span)) }

func (r RecurrenceRule) Validate() error {
	if r.Span < 0 {
		return errors.New("recurrence span must not be negative")
	}
	if r.Span > MaxSpan {
		return fmt.Errorf("recurrence span of %d days exceeds the %d day maximum", r.Span, MaxSpan)
	}
	if r.Span > 0 && r.Start.IsZero() {
		return errors.New("recurrence start date is required")
	}
	if r.Weekdays&^0x7f != 0 {
		return errors.New("recurrence weekday set has bits outside monday..sunday")
	}
	return nil
}

// Expand returns every date in the rule's window whose weekday is selected,
// in strictly increasing order. An empty weekday set or a zero span yields nil.
func Expand(r RecurrenceRule) []Date {
	if r.Weekdays.Empty() || r.Span <= 0 {
		return nil
	}
	span := min(r.Span, MaxSpan)
	out := make([]Date, 0, int(span)/7*len(r.Weekdays.Days())+len(r.Weekdays.Days()))
	wd := r.Start.Weekday()
	for i := 0; i < int(r.Span); i++ {
		if r.Weekdays.Has(wd) {
			out = append(out, r.Start.AddDays(i))
		}
		wd = (wd + 1) % 7
	}
	return out
}
