package service

import (
	"context"
	"time"

	"github.com/courtside/courtside/internal/schedule"
	"github.com/courtside/courtside/internal/store"
	"github.com/courtside/courtside/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type TournamentService struct {
	db          *sqlx.DB
	tournaments *store.TournamentStore
	matches     *store.MatchStore
}

func NewTournamentService(db *sqlx.DB, tournaments *store.TournamentStore, matches *store.MatchStore) *TournamentService {
	return &TournamentService{db: db, tournaments: tournaments, matches: matches}
}

type TournamentData struct {
	Tournament *schedule.Tournament `json:"tournament"`
	Courts     []schedule.Court     `json:"courts"`
	Matches    []schedule.Match     `json:"matches"`
}

// CreateTournament creates the tournament and its courts in one transaction.
func (s *TournamentService) CreateTournament(ctx context.Context, name string, courtNames []string) (*TournamentData, error) {
	if name == "" {
		return nil, schedule.Errorf(schedule.KindValidation, "tournament", "name must not be empty")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	tournament := schedule.Tournament{
		ID:        uuid.New(),
		Name:      name,
		CreatedAt: now,
	}
	if err := s.tournaments.CreateTournament(ctx, tx, &tournament); err != nil {
		return nil, err
	}

	courts := make([]schedule.Court, 0, len(courtNames))
	for _, courtName := range courtNames {
		if utils.StringOrNil(courtName) == nil {
			return nil, schedule.Errorf(schedule.KindValidation, "court", "court name must not be empty")
		}
		court := schedule.Court{
			ID:           uuid.New(),
			TournamentID: tournament.ID,
			Name:         courtName,
			CreatedAt:    now,
		}
		if err := s.tournaments.CreateCourt(ctx, tx, &court); err != nil {
			return nil, err
		}
		courts = append(courts, court)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &TournamentData{Tournament: &tournament, Courts: courts}, nil
}

func (s *TournamentService) GetTournamentData(ctx context.Context, id uuid.UUID) (*TournamentData, error) {
	tournament, err := s.tournaments.GetTournament(ctx, id)
	if err != nil {
		return nil, err
	}

	courts, err := s.tournaments.ListCourts(ctx, id)
	if err != nil {
		return nil, err
	}

	matches, err := s.matches.ListMatches(ctx, id)
	if err != nil {
		return nil, err
	}

	return &TournamentData{
		Tournament: tournament,
		Courts:     courts,
		Matches:    matches,
	}, nil
}

// DeleteTournament removes the tournament; courts, slots, matches and
// referee assignments go with it through the cascade. Referees survive.
func (s *TournamentService) DeleteTournament(ctx context.Context, id uuid.UUID) error {
	if _, err := s.tournaments.GetTournament(ctx, id); err != nil {
		return err
	}
	return s.tournaments.DeleteTournament(ctx, id)
}

func (s *TournamentService) AddCourt(ctx context.Context, tournamentID uuid.UUID, name string) (*schedule.Court, error) {
	if name == "" {
		return nil, schedule.Errorf(schedule.KindValidation, "court", "name must not be empty")
	}
	if _, err := s.tournaments.GetTournament(ctx, tournamentID); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	court := schedule.Court{
		ID:           uuid.New(),
		TournamentID: tournamentID,
		Name:         name,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.tournaments.CreateCourt(ctx, tx, &court); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &court, nil
}

func (s *TournamentService) RenameCourt(ctx context.Context, id uuid.UUID, name string) error {
	if name == "" {
		return schedule.Errorf(schedule.KindValidation, "court", "name must not be empty")
	}
	if _, err := s.tournaments.GetCourt(ctx, id); err != nil {
		return err
	}
	return s.tournaments.RenameCourt(ctx, id, name)
}
