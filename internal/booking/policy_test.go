package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOverlaps(t *testing.T) {
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	at := func(minutes int) time.Time { return base.Add(time.Duration(minutes) * time.Minute) }

	cases := []struct {
		name         string
		aStart, aEnd time.Time
		bStart, bEnd time.Time
		want         bool
	}{
		{"identical windows", at(0), at(60), at(0), at(60), true},
		{"partial overlap", at(30), at(90), at(0), at(60), true},
		{"contained window", at(15), at(45), at(0), at(60), true},
		{"touching end to start", at(60), at(120), at(0), at(60), false},
		{"touching start to end", at(0), at(60), at(60), at(120), false},
		{"disjoint", at(120), at(180), at(0), at(60), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Overlaps(tc.aStart, tc.aEnd, tc.bStart, tc.bEnd))
		})
	}
}

func TestTotalAmountCents(t *testing.T) {
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	// 2 hours at $5.00/h.
	assert.Equal(t, uint64(1000), TotalAmountCents(start, start.Add(2*time.Hour), 500))
	// 90 minutes at $2.00/h prices exactly, no float drift.
	assert.Equal(t, uint64(300), TotalAmountCents(start, start.Add(90*time.Minute), 200))
	// 20 minutes at $3.30/h.
	assert.Equal(t, uint64(110), TotalAmountCents(start, start.Add(20*time.Minute), 330))
	// Degenerate window prices to zero.
	assert.Equal(t, uint64(0), TotalAmountCents(start, start, 500))
}

func TestDurationMinutes(t *testing.T) {
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, uint32(90), DurationMinutes(start, start.Add(90*time.Minute)))
	assert.Equal(t, uint32(0), DurationMinutes(start, start))
	assert.Equal(t, uint32(0), DurationMinutes(start, start.Add(-time.Hour)))
}

func TestSlotNumber(t *testing.T) {
	// A station with 4 slots fills labels 1..4 as availability drops.
	assert.Equal(t, uint32(1), SlotNumber(4, 4))
	assert.Equal(t, uint32(2), SlotNumber(4, 3))
	assert.Equal(t, uint32(4), SlotNumber(4, 1))
	// Out-of-range counters yield no label.
	assert.Equal(t, uint32(0), SlotNumber(4, 0))
	assert.Equal(t, uint32(0), SlotNumber(4, 5))
}

func TestCancellableAt(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	assert.False(t, CancellableAt(now, now.Add(59*time.Minute)))
	assert.True(t, CancellableAt(now, now.Add(60*time.Minute)))
	assert.True(t, CancellableAt(now, now.Add(61*time.Minute)))
	assert.False(t, CancellableAt(now, now.Add(-time.Minute)))
}
