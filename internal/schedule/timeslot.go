package schedule

import (
	"time"

	"github.com/google/uuid"
)

// TimeSlot is a fixed window on one court, optionally bound to one match.
// Version is bumped on every successful bind/release so concurrent
// mutations can be detected without a global lock.
type TimeSlot struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	TournamentID uuid.UUID  `db:"tournament_id" json:"tournament_id"`
	CourtID      uuid.UUID  `db:"court_id" json:"court_id"`
	StartTime    time.Time  `db:"start_time" json:"start_time"`
	EndTime      time.Time  `db:"end_time" json:"end_time"`
	IsAvailable  bool       `db:"is_available" json:"is_available"`
	MatchID      *uuid.UUID `db:"match_id" json:"match_id,omitempty"`
	Version      int64      `db:"version" json:"-"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

func (s *TimeSlot) Interval() Interval {
	return Interval{Start: s.StartTime.UTC(), End: s.EndTime.UTC()}
}

// SlotWithMatch is a listing row joining in the bound match, if any.
type SlotWithMatch struct {
	TimeSlot
	MatchScore1 *int `db:"match_score_1" json:"match_score_1,omitempty"`
	MatchScore2 *int `db:"match_score_2" json:"match_score_2,omitempty"`
}

// BulkSlotSpec drives slot generation: one slot of SlotDuration every
// SlotDuration+BreakDuration within the daily window, per court, per
// non-excluded day of the date range.
type BulkSlotSpec struct {
	CourtIDs         []uuid.UUID   `json:"court_ids"`
	StartDate        time.Time     `json:"start_date"`
	EndDate          time.Time     `json:"end_date"`
	SlotDuration     time.Duration `json:"-"`
	BreakDuration    time.Duration `json:"-"`
	DailyStartTime   string        `json:"daily_start_time"`  // "09:00"
	DailyEndTime     string        `json:"daily_end_time"`    // "21:00"
	ExcludedWeekdays []int         `json:"excluded_weekdays"` // 0=Monday .. 6=Sunday
}

// Validate rejects a malformed spec before any slot is written.
func (b *BulkSlotSpec) Validate() error {
	if len(b.CourtIDs) == 0 {
		return Errorf(KindValidation, "", "at least one court is required")
	}
	if b.SlotDuration <= 0 {
		return Errorf(KindValidation, "", "slot duration must be positive, got %s", b.SlotDuration)
	}
	if b.BreakDuration < 0 {
		return Errorf(KindValidation, "", "break duration must not be negative, got %s", b.BreakDuration)
	}
	if b.EndDate.Before(b.StartDate) {
		return Errorf(KindValidation, "", "date range is inverted")
	}
	start, err := parseTimeOfDay(b.DailyStartTime)
	if err != nil {
		return err
	}
	end, err := parseTimeOfDay(b.DailyEndTime)
	if err != nil {
		return err
	}
	if end <= start {
		return Errorf(KindValidation, "", "daily end time %s is not after daily start time %s",
			b.DailyEndTime, b.DailyStartTime)
	}
	for _, wd := range b.ExcludedWeekdays {
		if wd < 0 || wd > 6 {
			return Errorf(KindValidation, "", "excluded weekday %d out of range 0..6", wd)
		}
	}
	return nil
}

// DailyWindow returns the daily start/end as offsets from midnight.
func (b *BulkSlotSpec) DailyWindow() (start, end time.Duration) {
	start, _ = parseTimeOfDay(b.DailyStartTime)
	end, _ = parseTimeOfDay(b.DailyEndTime)
	return start, end
}

// ExcludesWeekday reports whether slot generation skips the given day.
// ExcludedWeekdays numbers 0=Monday..6=Sunday; time.Weekday numbers Sunday 0.
func (b *BulkSlotSpec) ExcludesWeekday(day time.Weekday) bool {
	n := (int(day) + 6) % 7
	for _, wd := range b.ExcludedWeekdays {
		if wd == n {
			return true
		}
	}
	return false
}

func parseTimeOfDay(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, Errorf(KindValidation, "", "time of day %q is not HH:MM", s)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}
