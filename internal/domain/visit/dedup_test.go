package visit

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func reservation(vehicle string, d Date, days int) Reservation {
	return Reservation{ReservationRequest: ReservationRequest{Vehicle: vehicle, Date: d, Days: days}}
}

func TestIndex_ExactMatch(t *testing.T) {
	feb5 := NewDate(2026, time.February, 5)
	ix := NewIndex([]Reservation{reservation("12가3456", feb5, 3)})

	assert.True(t, ix.Contains("12가3456", feb5))
	assert.True(t, ix.Contains(" 12가3456 ", feb5))
	assert.False(t, ix.Contains("12가3456", feb5.AddDays(1)), "multi-day coverage is opt-in")
	assert.False(t, ix.Contains("34나5678", feb5))
	assert.Equal(t, 1, ix.Len())
}

func TestIndex_CoverDays(t *testing.T) {
	feb5 := NewDate(2026, time.February, 5)
	ix := NewIndex([]Reservation{reservation("12가3456", feb5, 3)}, CoverDays())

	assert.True(t, ix.Contains("12가3456", feb5))
	assert.True(t, ix.Contains("12가3456", feb5.AddDays(2)))
	assert.False(t, ix.Contains("12가3456", feb5.AddDays(3)))
	assert.False(t, ix.Contains("12가3456", feb5.AddDays(-1)))
}

func TestIndex_Add(t *testing.T) {
	var nilIndex *Index
	assert.False(t, nilIndex.Contains("x", NewDate(2026, time.January, 1)))

	ix := NewIndex(nil)
	d := NewDate(2026, time.January, 1)
	assert.False(t, ix.Contains("x", d))
	ix.Add("x", d)
	assert.True(t, ix.Contains("x", d))
}

// Contains must agree with a linear scan regardless of input order.
func TestIndex_MatchesLinearScan(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	vehicles := []string{"12가3456", "34나5678", "56다7890"}
	base := NewDate(2026, time.February, 1)

	for round := 0; round < 50; round++ {
		var snapshot []Reservation
		n := rng.Intn(20)
		for i := 0; i < n; i++ {
			snapshot = append(snapshot, reservation(vehicles[rng.Intn(len(vehicles))], base.AddDays(rng.Intn(14)), 1+rng.Intn(3)))
		}
		shuffled := append([]Reservation(nil), snapshot...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		ix := NewIndex(snapshot)
		ixShuffled := NewIndex(shuffled)
		for _, v := range vehicles {
			for off := -1; off < 16; off++ {
				d := base.AddDays(off)
				want := false
				for _, r := range snapshot {
					if r.Vehicle == v && r.Date == d {
						want = true
						break
					}
				}
				assert.Equal(t, want, ix.Contains(v, d), "vehicle=%s date=%s", v, d)
				assert.Equal(t, want, ixShuffled.Contains(v, d), "shuffled vehicle=%s date=%s", v, d)
			}
		}
	}
}
