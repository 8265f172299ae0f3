package store

import (
	"context"

	"github.com/courtside/courtside/internal/schedule"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// MatchStore reads and schedules match records. Matches themselves are
// produced by the bracket layer; the engine only binds them to slots.
type MatchStore struct {
	db *sqlx.DB
}

func NewMatchStore(db *sqlx.DB) *MatchStore {
	return &MatchStore{db: db}
}

func (s *MatchStore) CreateMatch(ctx context.Context, tx *sqlx.Tx, match *schedule.Match) error {
	_, err := tx.NamedExecContext(ctx, `INSERT INTO matches (id, tournament_id, round_id, court_id, position, team_1_id, team_2_id, score_1, score_2, start_time, duration_minutes, created_at)
		VALUES (:id, :tournament_id, :round_id, :court_id, :position, :team_1_id, :team_2_id, :score_1, :score_2, :start_time, :duration_minutes, :created_at)`, match)
	return err
}

func (s *MatchStore) GetMatch(ctx context.Context, id uuid.UUID) (*schedule.Match, error) {
	var match schedule.Match
	err := s.db.GetContext(ctx, &match, "SELECT * FROM matches WHERE id = ?", id)
	return &match, err
}

func (s *MatchStore) GetMatchTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*schedule.Match, error) {
	var match schedule.Match
	err := tx.GetContext(ctx, &match, "SELECT * FROM matches WHERE id = ?", id)
	return &match, err
}

func (s *MatchStore) ListMatches(ctx context.Context, tournamentID uuid.UUID) ([]schedule.Match, error) {
	var matches []schedule.Match
	err := s.db.SelectContext(ctx, &matches,
		"SELECT * FROM matches WHERE tournament_id = ? ORDER BY position ASC, created_at ASC", tournamentID)
	return matches, err
}

// SetSchedule writes a match's derived court and start time from the
// slot it was bound to. A nil slot unschedules the match.
func (s *MatchStore) SetSchedule(ctx context.Context, tx *sqlx.Tx, matchID uuid.UUID, slot *schedule.TimeSlot) error {
	if slot != nil {
		_, err := tx.ExecContext(ctx,
			"UPDATE matches SET court_id = ?, start_time = ? WHERE id = ?",
			slot.CourtID, slot.StartTime, matchID)
		return err
	}
	_, err := tx.ExecContext(ctx,
		"UPDATE matches SET court_id = NULL, start_time = NULL WHERE id = ?", matchID)
	return err
}
