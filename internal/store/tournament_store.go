package store

import (
	"context"

	"github.com/courtside/courtside/internal/schedule"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type TournamentStore struct {
	db *sqlx.DB
}

func NewTournamentStore(db *sqlx.DB) *TournamentStore {
	return &TournamentStore{db: db}
}

func (s *TournamentStore) CreateTournament(ctx context.Context, tx *sqlx.Tx, tournament *schedule.Tournament) error {
	_, err := tx.NamedExecContext(ctx, `INSERT INTO tournaments (id, name, created_at)
		VALUES (:id, :name, :created_at)`, tournament)
	return err
}

func (s *TournamentStore) GetTournament(ctx context.Context, id uuid.UUID) (*schedule.Tournament, error) {
	var tournament schedule.Tournament
	err := s.db.GetContext(ctx, &tournament, "SELECT * FROM tournaments WHERE id = ?", id)
	return &tournament, err
}

// DeleteTournament removes a tournament; its courts, slots, availability
// and assignment rows cascade. Referees are never touched.
func (s *TournamentStore) DeleteTournament(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM tournaments WHERE id = ?", id)
	return err
}

func (s *TournamentStore) CreateCourt(ctx context.Context, tx *sqlx.Tx, court *schedule.Court) error {
	_, err := tx.NamedExecContext(ctx, `INSERT INTO courts (id, tournament_id, name, created_at)
		VALUES (:id, :tournament_id, :name, :created_at)`, court)
	return err
}

func (s *TournamentStore) GetCourt(ctx context.Context, id uuid.UUID) (*schedule.Court, error) {
	var court schedule.Court
	err := s.db.GetContext(ctx, &court, "SELECT * FROM courts WHERE id = ?", id)
	return &court, err
}

func (s *TournamentStore) ListCourts(ctx context.Context, tournamentID uuid.UUID) ([]schedule.Court, error) {
	var courts []schedule.Court
	err := s.db.SelectContext(ctx, &courts,
		"SELECT * FROM courts WHERE tournament_id = ? ORDER BY name ASC", tournamentID)
	return courts, err
}

// RenameCourt is the only mutation courts allow after creation.
func (s *TournamentStore) RenameCourt(ctx context.Context, id uuid.UUID, name string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE courts SET name = ? WHERE id = ?", name, id)
	return err
}
