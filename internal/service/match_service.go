package service

import (
	"context"
	"time"

	"github.com/courtside/courtside/internal/schedule"
	"github.com/courtside/courtside/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type MatchService struct {
	db          *sqlx.DB
	matches     *store.MatchStore
	tournaments *store.TournamentStore
	slots       *store.SlotStore
}

func NewMatchService(db *sqlx.DB, matches *store.MatchStore, tournaments *store.TournamentStore, slots *store.SlotStore) *MatchService {
	return &MatchService{db: db, matches: matches, tournaments: tournaments, slots: slots}
}

type MatchInput struct {
	RoundID         *uuid.UUID `json:"round_id"`
	Position        int        `json:"position"`
	Team1ID         *uuid.UUID `json:"team_1_id"`
	Team2ID         *uuid.UUID `json:"team_2_id"`
	DurationMinutes *int       `json:"duration_minutes"`
}

// CreateMatch records an unscheduled match. Court and start time stay
// empty until the match is bound to a slot.
func (s *MatchService) CreateMatch(ctx context.Context, tournamentID uuid.UUID, input MatchInput) (*schedule.Match, error) {
	if input.DurationMinutes != nil && *input.DurationMinutes <= 0 {
		return nil, schedule.Errorf(schedule.KindValidation, "match", "duration must be positive")
	}
	if _, err := s.tournaments.GetTournament(ctx, tournamentID); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	match := schedule.Match{
		ID:              uuid.New(),
		TournamentID:    tournamentID,
		RoundID:         input.RoundID,
		Position:        input.Position,
		Team1ID:         input.Team1ID,
		Team2ID:         input.Team2ID,
		DurationMinutes: input.DurationMinutes,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.matches.CreateMatch(ctx, tx, &match); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &match, nil
}

func (s *MatchService) GetMatch(ctx context.Context, id uuid.UUID) (*schedule.Match, error) {
	return s.matches.GetMatch(ctx, id)
}

func (s *MatchService) ListMatches(ctx context.Context, tournamentID uuid.UUID) ([]schedule.Match, error) {
	return s.matches.ListMatches(ctx, tournamentID)
}

type MatchWithSlot struct {
	Match *schedule.Match    `json:"match"`
	Slot  *schedule.TimeSlot `json:"slot,omitempty"`
}

// GetMatchWithSlot returns the match together with its bound slot, if any.
func (s *MatchService) GetMatchWithSlot(ctx context.Context, id uuid.UUID) (*MatchWithSlot, error) {
	match, err := s.matches.GetMatch(ctx, id)
	if err != nil {
		return nil, err
	}
	slot, err := s.slots.SlotForMatch(ctx, id)
	if err != nil {
		return nil, err
	}
	return &MatchWithSlot{Match: match, Slot: slot}, nil
}
