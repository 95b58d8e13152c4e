package visit

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDate_WireFormat(t *testing.T) {
	d, err := ParseDate("2026.02.05")
	require.NoError(t, err)
	assert.Equal(t, NewDate(2026, time.February, 5), d)
	assert.Equal(t, "2026.02.05", d.String())

	b, err := json.Marshal(struct {
		VisitDate Date `json:"visitDate"`
	}{d})
	require.NoError(t, err)
	assert.JSONEq(t, `{"visitDate":"2026.02.05"}`, string(b))

	var back struct {
		VisitDate Date `json:"visitDate"`
	}
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, d, back.VisitDate)

	for _, bad := range []string{"2026-02-05", "2026.2.5", "05.02.2026", "2026.02.30", ""} {
		_, err := ParseDate(bad)
		assert.Error(t, err, bad)
	}
}

func TestDate_Arithmetic(t *testing.T) {
	d := NewDate(2026, time.February, 27)
	assert.Equal(t, NewDate(2026, time.March, 2), d.AddDays(3))
	assert.Equal(t, 3, d.DaysUntil(d.AddDays(3)))
	assert.Equal(t, -1, d.DaysUntil(d.AddDays(-1)))
	assert.Equal(t, Friday, d.Weekday())
	assert.True(t, Date{}.IsZero())
}

func TestWeekday_MondayFirst(t *testing.T) {
	assert.Equal(t, Monday, WeekdayOf(time.Monday))
	assert.Equal(t, Sunday, WeekdayOf(time.Sunday))
	for w := Monday; w <= Sunday; w++ {
		assert.Equal(t, w, WeekdayOf(w.Std()))
	}

	cases := map[string]Weekday{
		"0": Monday, "6": Sunday, "tue": Tuesday, "Thursday": Thursday,
		"화": Tuesday, "토요일": Saturday, " SUN ": Sunday,
	}
	for in, want := range cases {
		got, err := ParseWeekday(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, bad := range []string{"7", "-1", "mo", "x"} {
		_, err := ParseWeekday(bad)
		assert.Error(t, err, bad)
	}
}

func TestWeekdaySet(t *testing.T) {
	s, err := ParseWeekdaySet("thu, tue,,thu")
	require.NoError(t, err)
	assert.Equal(t, []Weekday{Tuesday, Thursday}, s.Days())
	assert.Equal(t, []int{1, 3}, s.Ints())
	assert.Equal(t, "tue,thu", s.String())

	back, err := WeekdaySetFromInts(s.Ints())
	require.NoError(t, err)
	assert.Equal(t, s, back)

	_, err = WeekdaySetFromInts([]int{7})
	assert.Error(t, err)

	empty, err := ParseWeekdaySet("")
	require.NoError(t, err)
	assert.True(t, empty.Empty())
}

func TestReservationRequest_Validate(t *testing.T) {
	base := ReservationRequest{
		Vehicle: "12가3456",
		Phone:   "010-1234-5678",
		Date:    NewDate(2026, time.February, 3),
	}.Normalized()
	require.NoError(t, base.Validate())
	assert.Equal(t, PurposeFamily, base.Purpose)
	assert.Equal(t, 1, base.Days)

	tests := []struct {
		name   string
		mutate func(*ReservationRequest)
	}{
		{"days zero after normalize", func(r *ReservationRequest) { r.Days = 0 }},
		{"days above thirty", func(r *ReservationRequest) { r.Days = 31 }},
		{"negative days", func(r *ReservationRequest) { r.Days = -2 }},
		{"unknown purpose", func(r *ReservationRequest) { r.Purpose = "party" }},
		{"missing vehicle", func(r *ReservationRequest) { r.Vehicle = "  " }},
		{"missing phone", func(r *ReservationRequest) { r.Phone = "" }},
		{"missing date", func(r *ReservationRequest) { r.Date = Date{} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := base
			tt.mutate(&r)
			err := r.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalid))
			var ve *ValidationError
			assert.True(t, errors.As(err, &ve))
		})
	}

	for _, days := range []int{MinDays, MaxDays} {
		r := base
		r.Days = days
		assert.NoError(t, r.Validate(), "days=%d", days)
	}
}

func TestParsePurpose(t *testing.T) {
	p, err := ParsePurpose("")
	require.NoError(t, err)
	assert.Equal(t, PurposeFamily, p)

	p, err = ParsePurpose("돌봄도우미(청소)")
	require.NoError(t, err)
	assert.Equal(t, PurposeCleaning, p)

	p, err = ParsePurpose("Lesson")
	require.NoError(t, err)
	assert.Equal(t, PurposeLesson, p)

	_, err = ParsePurpose("delivery")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestSortAndUpcoming(t *testing.T) {
	rs := []Reservation{
		{ID: 3, ReservationRequest: ReservationRequest{Vehicle: "B", Date: NewDate(2026, time.February, 5)}},
		{ID: 1, ReservationRequest: ReservationRequest{Vehicle: "A", Date: NewDate(2026, time.February, 1)}},
		{ID: 2, ReservationRequest: ReservationRequest{Vehicle: "A", Date: NewDate(2026, time.February, 5)}},
	}
	SortByDate(rs)
	assert.Equal(t, []int64{1, 2, 3}, []int64{rs[0].ID, rs[1].ID, rs[2].ID})

	up := Upcoming(rs, NewDate(2026, time.February, 5))
	assert.Len(t, up, 2)
}

func TestWeekdaySet_JSON(t *testing.T) {
	b, err := json.Marshal(NewWeekdaySet(Thursday, Tuesday))
	require.NoError(t, err)
	assert.JSONEq(t, `[1,3]`, string(b))

	var s WeekdaySet
	require.NoError(t, json.Unmarshal([]byte(`[1,3]`), &s))
	assert.Equal(t, NewWeekdaySet(Tuesday, Thursday), s)
	require.NoError(t, json.Unmarshal([]byte(`"화,목"`), &s))
	assert.Equal(t, NewWeekdaySet(Tuesday, Thursday), s)
	assert.Error(t, json.Unmarshal([]byte(`[7]`), &s))
	assert.Error(t, json.Unmarshal([]byte(`{}`), &s))
}
