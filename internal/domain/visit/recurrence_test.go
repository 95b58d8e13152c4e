package visit

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpand_TuesdayThursdayTwoWeeks(t *testing.T) {
	rule := RecurrenceRule{
		Weekdays: NewWeekdaySet(Tuesday, Thursday),
		Start:    NewDate(2026, time.February, 2),
		Span:     Weeks(2),
	}
	want := []Date{
		NewDate(2026, time.February, 3),
		NewDate(2026, time.February, 5),
		NewDate(2026, time.February, 10),
		NewDate(2026, time.February, 12),
	}
	if diff := cmp.Diff(want, Expand(rule)); diff != "" {
		t.Fatalf("Expand mismatch (-want +got):\n%s", diff)
	}
}

func TestExpand_EdgeCases(t *testing.T) {
	monday := NewDate(2026, time.February, 2)

	tests := []struct {
		name string
		rule RecurrenceRule
		want []Date
	}{
		{
			name: "empty weekday set",
			rule: RecurrenceRule{Start: monday, Span: Weeks(4)},
			want: nil,
		},
		{
			name: "zero span",
			rule: RecurrenceRule{Weekdays: NewWeekdaySet(Monday), Start: monday},
			want: nil,
		},
		{
			name: "start date on a selected weekday is included",
			rule: RecurrenceRule{Weekdays: NewWeekdaySet(Monday), Start: monday, Span: 1},
			want: []Date{monday},
		},
		{
			name: "end of window is exclusive",
			rule: RecurrenceRule{Weekdays: NewWeekdaySet(Monday), Start: monday, Span: 7},
			want: []Date{monday},
		},
		{
			name: "crosses month and year",
			rule: RecurrenceRule{Weekdays: NewWeekdaySet(Wednesday), Start: NewDate(2026, time.December, 28), Span: 10},
			want: []Date{NewDate(2026, time.December, 30), NewDate(2027, time.January, 6)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Expand(tt.rule))
		})
	}
}

func TestExpand_Properties(t *testing.T) {
	starts := []Date{
		NewDate(2026, time.February, 2),
		NewDate(2026, time.February, 26),
		NewDate(2028, time.February, 27),
		NewDate(2026, time.December, 31),
	}
	for set := WeekdaySet(0); set < 1<<7; set++ {
		for _, start := range starts {
			for span := 0; span <= 31; span += 3 {
				rule := RecurrenceRule{Weekdays: set, Start: start, Span: Span(span)}
				got := Expand(rule)
				end := rule.End()

				inSet := 0
				for i := 0; i < span; i++ {
					if set.Has(start.AddDays(i).Weekday()) {
						inSet++
					}
				}
				require.Len(t, got, inSet, "rule=%+v", rule)

				for i, d := range got {
					require.True(t, set.Has(d.Weekday()), "weekday %s not selected in %s", d.Weekday(), set)
					require.False(t, d.Before(start), "%s before start %s", d, start)
					require.True(t, d.Before(end), "%s not before end %s", d, end)
					if i > 0 {
						require.True(t, got[i-1].Before(d), "not strictly increasing at %d: %s, %s", i, got[i-1], d)
					}
				}
			}
		}
	}
}

func TestRecurrenceRule_Validate(t *testing.T) {
	assert.NoError(t, WeeksFrom(NewDate(2026, time.March, 1), NewWeekdaySet(Friday), 4).Validate())
	assert.Error(t, RecurrenceRule{Start: NewDate(2026, time.March, 1), Span: -1}.Validate())
	assert.Error(t, RecurrenceRule{Span: 7}.Validate())
	assert.Error(t, RecurrenceRule{Weekdays: 0x80, Start: NewDate(2026, time.March, 1), Span: 7}.Validate())
	assert.NoError(t, RecurrenceRule{Weekdays: NewWeekdaySet(Friday), Start: NewDate(2026, time.March, 1), Span: MaxSpan}.Validate())
	assert.Error(t, RecurrenceRule{Weekdays: NewWeekdaySet(Friday), Start: NewDate(2026, time.March, 1), Span: MaxSpan + 1}.Validate())
	assert.Error(t, RecurrenceRule{Weekdays: NewWeekdaySet(Friday), Start: NewDate(2026, time.March, 1), Span: 1_000_000}.Validate())
}
