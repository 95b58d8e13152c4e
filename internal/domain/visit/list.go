package visit

import "sort"

// SortByDate orders reservations by visit date, then vehicle, in place.
func SortByDate(rs []Reservation) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].Date != rs[j].Date {
			return rs[i].Date.Before(rs[j].Date)
		}
		return rs[i].Vehicle < rs[j].Vehicle
	})
}

// Upcoming keeps reservations visiting on or after today.
func Upcoming(rs []Reservation, today Date) []Reservation {
	out := make([]Reservation, 0, len(rs))
	for _, r := range rs {
		if !r.Date.Before(today) {
			out = append(out, r)
		}
	}
	return out
}
