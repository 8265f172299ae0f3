package schedule

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustInterval(t *testing.T, start, end string) Interval {
	t.Helper()

	s, err := time.Parse(time.RFC3339, start)
	require.NoError(t, err)
	e, err := time.Parse(time.RFC3339, end)
	require.NoError(t, err)

	iv, err := NewInterval(s, e)
	require.NoError(t, err)
	return iv
}

func TestNewIntervalRejectsInvertedOrEmpty(t *testing.T) {
	at := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

	_, err := NewInterval(at, at)
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))

	_, err = NewInterval(at.Add(time.Hour), at)
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestNewIntervalNormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	start := time.Date(2026, 6, 1, 12, 0, 0, 0, loc)

	iv, err := NewInterval(start, start.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, time.UTC, iv.Start.Location())
	assert.Equal(t, 10, iv.Start.Hour())
}

func TestOverlaps(t *testing.T) {
	base := mustInterval(t, "2026-06-01T10:00:00Z", "2026-06-01T11:00:00Z")

	assert.True(t, base.Overlaps(mustInterval(t, "2026-06-01T10:30:00Z", "2026-06-01T11:30:00Z")))
	assert.True(t, base.Overlaps(mustInterval(t, "2026-06-01T09:00:00Z", "2026-06-01T12:00:00Z")))
	assert.True(t, base.Overlaps(base))

	// Back-to-back windows share an endpoint but no instant.
	assert.False(t, base.Overlaps(mustInterval(t, "2026-06-01T11:00:00Z", "2026-06-01T12:00:00Z")))
	assert.False(t, base.Overlaps(mustInterval(t, "2026-06-01T09:00:00Z", "2026-06-01T10:00:00Z")))
	assert.False(t, base.Overlaps(mustInterval(t, "2026-06-02T10:00:00Z", "2026-06-02T11:00:00Z")))
}

func TestContains(t *testing.T) {
	outer := mustInterval(t, "2026-06-01T09:00:00Z", "2026-06-01T18:00:00Z")

	assert.True(t, outer.Contains(mustInterval(t, "2026-06-01T10:00:00Z", "2026-06-01T11:30:00Z")))
	assert.True(t, outer.Contains(outer))
	assert.False(t, outer.Contains(mustInterval(t, "2026-06-01T08:00:00Z", "2026-06-01T10:00:00Z")))
	assert.False(t, outer.Contains(mustInterval(t, "2026-06-01T17:00:00Z", "2026-06-01T19:00:00Z")))
}

func TestDayOf(t *testing.T) {
	at := time.Date(2026, 6, 1, 23, 45, 12, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), DayOf(at))

	// A local time late in the evening can fall on the next UTC day.
	loc := time.FixedZone("UTC-3", -3*60*60)
	assert.Equal(t, time.Date(2026, 6, 2, 0, 0, 0, 0, time.UTC),
		DayOf(time.Date(2026, 6, 1, 22, 0, 0, 0, loc)))
}

func TestBulkSlotSpecExcludesWeekday(t *testing.T) {
	// Weekday numbering is 0=Monday..6=Sunday.
	spec := BulkSlotSpec{ExcludedWeekdays: []int{5, 6}}

	assert.True(t, spec.ExcludesWeekday(time.Saturday))
	assert.True(t, spec.ExcludesWeekday(time.Sunday))
	assert.False(t, spec.ExcludesWeekday(time.Monday))
	assert.False(t, spec.ExcludesWeekday(time.Friday))
}

func TestBulkSlotSpecValidate(t *testing.T) {
	valid := func() BulkSlotSpec {
		return BulkSlotSpec{
			CourtIDs:       []uuid.UUID{uuid.New()},
			StartDate:      time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
			EndDate:        time.Date(2026, 6, 3, 0, 0, 0, 0, time.UTC),
			SlotDuration:   90 * time.Minute,
			BreakDuration:  15 * time.Minute,
			DailyStartTime: "09:00",
			DailyEndTime:   "21:00",
		}
	}

	spec := valid()
	require.NoError(t, spec.Validate())

	spec = valid()
	spec.CourtIDs = nil
	assert.Equal(t, KindValidation, KindOf(spec.Validate()))

	spec = valid()
	spec.SlotDuration = 0
	assert.Equal(t, KindValidation, KindOf(spec.Validate()))

	spec = valid()
	spec.BreakDuration = -time.Minute
	assert.Equal(t, KindValidation, KindOf(spec.Validate()))

	spec = valid()
	spec.EndDate = spec.StartDate.AddDate(0, 0, -1)
	assert.Equal(t, KindValidation, KindOf(spec.Validate()))

	spec = valid()
	spec.DailyEndTime = "08:00"
	assert.Equal(t, KindValidation, KindOf(spec.Validate()))

	spec = valid()
	spec.DailyStartTime = "9am"
	assert.Equal(t, KindValidation, KindOf(spec.Validate()))

	spec = valid()
	spec.ExcludedWeekdays = []int{7}
	assert.Equal(t, KindValidation, KindOf(spec.Validate()))
}
