package schedule

import (
	"time"

	"github.com/google/uuid"
)

// Role of a referee on a match. A referee may hold multiple roles on the
// same match only if the roles differ.
type Role string

const (
	RoleMain         Role = "main"
	RoleAssistant    Role = "assistant"
	RoleLineJudge    Role = "line_judge"
	RoleVideoReferee Role = "video_referee"
)

func (r Role) Valid() bool {
	switch r {
	case RoleMain, RoleAssistant, RoleLineJudge, RoleVideoReferee:
		return true
	}
	return false
}

// Referee is a global entity; tournaments reference it, never own it.
type Referee struct {
	ID                 uuid.UUID `db:"id" json:"id"`
	Name               string    `db:"name" json:"name"`
	Email              *string   `db:"email" json:"email,omitempty"`
	Phone              *string   `db:"phone" json:"phone,omitempty"`
	CertificationLevel *string   `db:"certification_level" json:"certification_level,omitempty"`
	Active             bool      `db:"active" json:"active"`
	Notes              *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
}

// RefereeAvailability bounds a referee's assignable windows within one
// tournament. MaxMatchesPerDay nil means unbounded; PreferredCourts is
// advisory only.
type RefereeAvailability struct {
	ID               uuid.UUID   `db:"id" json:"id"`
	RefereeID        uuid.UUID   `db:"referee_id" json:"referee_id"`
	TournamentID     uuid.UUID   `db:"tournament_id" json:"tournament_id"`
	AvailableFrom    time.Time   `db:"available_from" json:"available_from"`
	AvailableTo      time.Time   `db:"available_to" json:"available_to"`
	MaxMatchesPerDay *int        `db:"max_matches_per_day" json:"max_matches_per_day,omitempty"`
	PreferredCourts  CourtIDList `db:"preferred_courts" json:"preferred_courts"`
	Notes            *string     `db:"notes" json:"notes,omitempty"`
}

func (a *RefereeAvailability) Window() Interval {
	return Interval{Start: a.AvailableFrom.UTC(), End: a.AvailableTo.UTC()}
}

// MatchRefereeAssignment pairs a referee with a match in one role. An
// unconfirmed assignment still holds the referee's time.
type MatchRefereeAssignment struct {
	ID        uuid.UUID `db:"id" json:"id"`
	MatchID   uuid.UUID `db:"match_id" json:"match_id"`
	RefereeID uuid.UUID `db:"referee_id" json:"referee_id"`
	Role      Role      `db:"role" json:"role"`
	Confirmed bool      `db:"confirmed" json:"confirmed"`
	Notes     *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// AssignmentWithWindow is an assignment joined to its match's bound slot
// window, if the match is scheduled.
type AssignmentWithWindow struct {
	MatchRefereeAssignment
	SlotStart *time.Time `db:"slot_start" json:"slot_start,omitempty"`
	SlotEnd   *time.Time `db:"slot_end" json:"slot_end,omitempty"`
}

// WindowOrNil returns the assignment's effective time window, or nil if
// the match has no bound slot (unscheduled matches hold no time).
func (a *AssignmentWithWindow) WindowOrNil() *Interval {
	if a.SlotStart == nil || a.SlotEnd == nil {
		return nil
	}
	return &Interval{Start: a.SlotStart.UTC(), End: a.SlotEnd.UTC()}
}

// ConflictPair is one overlapping commitment reported by conflict scans.
type ConflictPair struct {
	RefereeID uuid.UUID `json:"referee_id"`
	MatchA    uuid.UUID `json:"match_a"`
	MatchB    uuid.UUID `json:"match_b"`
	WindowA   Interval  `json:"window_a"`
	WindowB   Interval  `json:"window_b"`
}
