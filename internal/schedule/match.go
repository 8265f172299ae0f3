package schedule

import (
	"time"

	"github.com/google/uuid"
)

// Match is a record produced by the bracket/pairing layer; the engine
// only consumes it. Team1ID/Team2ID reference the two prior stage
// results feeding into this match. CourtID and StartTime are nil until
// the match is bound to a slot.
type Match struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	TournamentID uuid.UUID  `db:"tournament_id" json:"tournament_id"`
	RoundID      *uuid.UUID `db:"round_id" json:"round_id,omitempty"`
	CourtID      *uuid.UUID `db:"court_id" json:"court_id,omitempty"`

	// Ordering hint within a court, used for reschedule targeting.
	Position int `db:"position" json:"position"`

	Team1ID *uuid.UUID `db:"team_1_id" json:"team_1_id,omitempty"`
	Team2ID *uuid.UUID `db:"team_2_id" json:"team_2_id,omitempty"`

	Score1 int `db:"score_1" json:"score_1"`
	Score2 int `db:"score_2" json:"score_2"`

	StartTime       *time.Time `db:"start_time" json:"start_time,omitempty"`
	DurationMinutes *int       `db:"duration_minutes" json:"duration_minutes,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Scheduled reports whether the match currently has a court and time.
func (m *Match) Scheduled() bool {
	return m.CourtID != nil && m.StartTime != nil
}

// Teams returns the non-nil team references.
func (m *Match) Teams() []uuid.UUID {
	var teams []uuid.UUID
	if m.Team1ID != nil {
		teams = append(teams, *m.Team1ID)
	}
	if m.Team2ID != nil {
		teams = append(teams, *m.Team2ID)
	}
	return teams
}
