package visit

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Weekday numbers days Monday-first: Monday = 0 ... Sunday = 6.
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayNames = [...]string{"mon", "tue", "wed", "thu", "fri", "sat", "sun"}

// korean labels as shown in the apartment portal UI
var weekdayKorean = [...]string{"월", "화", "수", "목", "금", "토", "일"}

func WeekdayOf(wd time.Weekday) Weekday {
	return Weekday((int(wd) + 6) % 7)
}

func (w Weekday) Valid() bool { return w >= Monday && w <= Sunday }

func (w Weekday) Std() time.Weekday { return time.Weekday((int(w) + 1) % 7) }

func (w Weekday) String() string {
	if !w.Valid() {
		return "Weekday(" + strconv.Itoa(int(w)) + ")"
	}
	return weekdayNames[w]
}

func (w Weekday) Korean() string {
	if !w.Valid() {
		return ""
	}
	return weekdayKorean[w]
}

// ParseWeekday accepts "mon".."sun", full English names, Korean day labels
// and the digits 0..6 (Monday = 0).
func ParseWeekday(s string) (Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		w := Weekday(n)
		if !w.Valid() {
			return 0, fmt.Errorf("weekday %d out of range 0..6 (monday=0)", n)
		}
		return w, nil
	}
	for i, name := range weekdayNames {
		if s == name || s == strings.ToLower(Weekday(i).Std().String()) {
			return Weekday(i), nil
		}
	}
	for i, k := range weekdayKorean {
		if s == k || s == k+"요일" {
			return Weekday(i), nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}

// WeekdaySet is a bitmask of selected weekdays.
type WeekdaySet uint8

func NewWeekdaySet(days ...Weekday) WeekdaySet {
	var s WeekdaySet
	for _, d := range days {
		s = s.With(d)
	}
	return s
}

// ParseWeekdaySet parses a comma-separated list, e.g. "tue,thu" or "화,목".
func ParseWeekdaySet(csv string) (WeekdaySet, error) {
	var s WeekdaySet
	for _, p := range strings.Split(csv, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		w, err := ParseWeekday(p)
		if err != nil {
			return 0, err
		}
		s = s.With(w)
	}
	return s, nil
}

func (s WeekdaySet) With(w Weekday) WeekdaySet {
	if !w.Valid() {
		return s
	}
	return s | 1<<uint(w)
}

func (s WeekdaySet) Has(w Weekday) bool {
	return w.Valid() && s&(1<<uint(w)) != 0
}

func (s WeekdaySet) Empty() bool { return s&0x7f == 0 }

func (s WeekdaySet) Days() []Weekday {
	var out []Weekday
	for w := Monday; w <= Sunday; w++ {
		if s.Has(w) {
			out = append(out, w)
		}
	}
	return out
}

// Ints returns the selected days as Monday-first integers, for storage.
func (s WeekdaySet) Ints() []int {
	days := s.Days()
	out := make([]int, 0, len(days))
	for _, d := range days {
		out = append(out, int(d))
	}
	sort.Ints(out)
	return out
}

func WeekdaySetFromInts(in []int) (WeekdaySet, error) {
	var s WeekdaySet
	for _, n := range in {
		w := Weekday(n)
		if !w.Valid() {
			return 0, fmt.Errorf("weekday %d out of range 0..6 (monday=0)", n)
		}
		s = s.With(w)
	}
	return s, nil
}

func (s WeekdaySet) String() string {
	days := s.Days()
	parts := make([]string, 0, len(days))
	for _, d := range days {
		parts = append(parts, d.String())
	}
	return strings.Join(parts, ",")
}

// MarshalJSON encodes the set as Monday-first integers, e.g. [1,3].
func (s WeekdaySet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Ints())
}

// UnmarshalJSON accepts integers or a comma-separated string of names.
func (s *WeekdaySet) UnmarshalJSON(b []byte) error {
	var ints []int
	if err := json.Unmarshal(b, &ints); err == nil {
		set, err := WeekdaySetFromInts(ints)
		if err != nil {
			return err
		}
		*s = set
		return nil
	}
	var csv string
	if err := json.Unmarshal(b, &csv); err != nil {
		return fmt.Errorf("weekdays must be a list of 0..6 or a string like \"tue,thu\"")
	}
	set, err := ParseWeekdaySet(csv)
	if err != nil {
		return err
	}
	*s = set
	return nil
}
