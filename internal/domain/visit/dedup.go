package visit

import "strings"

type slotKey struct {
	vehicle string
	date    Date
}

// Index is a point-in-time set of booked (vehicle, date) pairs.
type Index struct {
	booked    map[slotKey]struct{}
	coverDays bool
}

type IndexOption func(*Index)

// CoverDays marks every date a multi-day reservation spans, not only its
// visit date.
func CoverDays() IndexOption {
	return func(ix *Index) { ix.coverDays = true }
}

func NewIndex(existing []Reservation, opts ...IndexOption) *Index {
	ix := &Index{booked: make(map[slotKey]struct{}, len(existing))}
	for _, o := range opts {
		o(ix)
	}
	for _, r := range existing {
		days := 1
		if ix.coverDays && r.Days > 1 {
			days = r.Days
		}
		for i := 0; i < days; i++ {
			ix.Add(r.Vehicle, r.Date.AddDays(i))
		}
	}
	return ix
}

func (ix *Index) Add(vehicle string, d Date) {
	ix.booked[slotKey{vehicle: normalizeVehicle(vehicle), date: d}] = struct{}{}
}

func (ix *Index) Contains(vehicle string, d Date) bool {
	if ix == nil {
		return false
	}
	_, ok := ix.booked[slotKey{vehicle: normalizeVehicle(vehicle), date: d}]
	return ok
}

func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.booked)
}

func normalizeVehicle(v string) string { return strings.TrimSpace(v) }
