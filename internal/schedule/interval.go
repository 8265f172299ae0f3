package schedule

import "time"

// Interval is a half-open time window [Start, End). Both instants are
// normalized to UTC at construction; nothing else in the engine compares
// local times.
type Interval struct {
	Start time.Time
	End   time.Time
}

// NewInterval validates and normalizes a half-open interval.
func NewInterval(start, end time.Time) (Interval, error) {
	start = start.UTC()
	end = end.UTC()
	if !start.Before(end) {
		return Interval{}, Errorf(KindValidation, "", "interval start %s is not before end %s",
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return Interval{Start: start, End: end}, nil
}

// Overlaps reports whether two intervals share any instant. Touching
// endpoints do not overlap: [a, b) and [b, c) are disjoint.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && other.Start.Before(i.End)
}

// Contains reports whether other lies fully within i.
func (i Interval) Contains(other Interval) bool {
	return !i.Start.After(other.Start) && !i.End.Before(other.End)
}

func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// DayOf truncates an instant to its UTC calendar day.
func DayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether two instants fall on the same UTC calendar day.
func SameDay(a, b time.Time) bool {
	return DayOf(a).Equal(DayOf(b))
}
