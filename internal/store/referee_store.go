package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/courtside/courtside/internal/schedule"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// RefereeStore persists referee profiles, per-tournament availability
// windows, and match assignments.
type RefereeStore struct {
	db *sqlx.DB
}

func NewRefereeStore(db *sqlx.DB) *RefereeStore {
	return &RefereeStore{db: db}
}

func (s *RefereeStore) CreateReferee(ctx context.Context, referee *schedule.Referee) error {
	_, err := s.db.NamedExecContext(ctx, `INSERT INTO referees (id, name, email, phone, certification_level, active, notes, created_at)
		VALUES (:id, :name, :email, :phone, :certification_level, :active, :notes, :created_at)`, referee)
	return err
}

func (s *RefereeStore) GetReferee(ctx context.Context, id uuid.UUID) (*schedule.Referee, error) {
	var referee schedule.Referee
	err := s.db.GetContext(ctx, &referee, "SELECT * FROM referees WHERE id = ?", id)
	return &referee, err
}

func (s *RefereeStore) ListReferees(ctx context.Context, activeOnly bool) ([]schedule.Referee, error) {
	query := "SELECT * FROM referees"
	if activeOnly {
		query += " WHERE active = 1"
	}
	query += " ORDER BY name ASC"

	var referees []schedule.Referee
	err := s.db.SelectContext(ctx, &referees, query)
	return referees, err
}

func (s *RefereeStore) UpdateReferee(ctx context.Context, referee *schedule.Referee) error {
	_, err := s.db.NamedExecContext(ctx, `UPDATE referees
		SET name = :name, email = :email, phone = :phone,
		    certification_level = :certification_level, active = :active, notes = :notes
		WHERE id = :id`, referee)
	return err
}

func (s *RefereeStore) DeleteReferee(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM referees WHERE id = ?", id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// UpsertAvailability supersedes any previous availability record for the
// (referee, tournament) pair; records are not versioned.
func (s *RefereeStore) UpsertAvailability(ctx context.Context, a *schedule.RefereeAvailability) error {
	_, err := s.db.NamedExecContext(ctx, `INSERT INTO referee_availability
		(id, referee_id, tournament_id, available_from, available_to, max_matches_per_day, preferred_courts, notes)
		VALUES (:id, :referee_id, :tournament_id, :available_from, :available_to, :max_matches_per_day, :preferred_courts, :notes)
		ON CONFLICT (referee_id, tournament_id) DO UPDATE SET
			available_from = excluded.available_from,
			available_to = excluded.available_to,
			max_matches_per_day = excluded.max_matches_per_day,
			preferred_courts = excluded.preferred_courts,
			notes = excluded.notes`, a)
	return err
}

func (s *RefereeStore) GetAvailability(ctx context.Context, tournamentID, refereeID uuid.UUID) (*schedule.RefereeAvailability, error) {
	var a schedule.RefereeAvailability
	err := s.db.GetContext(ctx, &a,
		"SELECT * FROM referee_availability WHERE tournament_id = ? AND referee_id = ?",
		tournamentID, refereeID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAvailability returns availability records for all active referees
// registered with a tournament.
func (s *RefereeStore) ListAvailability(ctx context.Context, tournamentID uuid.UUID) ([]schedule.RefereeAvailability, error) {
	var records []schedule.RefereeAvailability
	err := s.db.SelectContext(ctx, &records, `SELECT ra.*
		FROM referee_availability ra
		JOIN referees r ON r.id = ra.referee_id
		WHERE ra.tournament_id = ? AND r.active = 1
		ORDER BY r.name ASC`, tournamentID)
	return records, err
}

// AssignmentsForReferee returns every assignment a referee holds across
// all tournaments, joined to the bound slot's window where the match is
// scheduled. Confirmed and unconfirmed rows are both returned; both
// block the referee's time.
func (s *RefereeStore) AssignmentsForReferee(ctx context.Context, refereeID uuid.UUID) ([]schedule.AssignmentWithWindow, error) {
	var assignments []schedule.AssignmentWithWindow
	err := s.db.SelectContext(ctx, &assignments, `SELECT mr.*, ts.start_time AS slot_start, ts.end_time AS slot_end
		FROM match_referees mr
		LEFT JOIN time_slots ts ON ts.match_id = mr.match_id
		WHERE mr.referee_id = ?
		ORDER BY ts.start_time ASC`, refereeID)
	return assignments, err
}

func (s *RefereeStore) AssignmentsForRefereeTx(ctx context.Context, tx *sqlx.Tx, refereeID uuid.UUID) ([]schedule.AssignmentWithWindow, error) {
	var assignments []schedule.AssignmentWithWindow
	err := tx.SelectContext(ctx, &assignments, `SELECT mr.*, ts.start_time AS slot_start, ts.end_time AS slot_end
		FROM match_referees mr
		LEFT JOIN time_slots ts ON ts.match_id = mr.match_id
		WHERE mr.referee_id = ?
		ORDER BY ts.start_time ASC`, refereeID)
	return assignments, err
}

// AssignmentsForTournament returns every assignment on the tournament's
// matches, joined to the bound slot's window where one exists.
func (s *RefereeStore) AssignmentsForTournament(ctx context.Context, tournamentID uuid.UUID) ([]schedule.AssignmentWithWindow, error) {
	var assignments []schedule.AssignmentWithWindow
	err := s.db.SelectContext(ctx, &assignments, `SELECT mr.*, ts.start_time AS slot_start, ts.end_time AS slot_end
		FROM match_referees mr
		JOIN matches m ON m.id = mr.match_id
		LEFT JOIN time_slots ts ON ts.match_id = mr.match_id
		WHERE m.tournament_id = ?
		ORDER BY mr.referee_id ASC, ts.start_time ASC`, tournamentID)
	return assignments, err
}

func (s *RefereeStore) CreateAssignment(ctx context.Context, tx *sqlx.Tx, a *schedule.MatchRefereeAssignment) error {
	_, err := tx.NamedExecContext(ctx, `INSERT INTO match_referees (id, match_id, referee_id, role, confirmed, notes, created_at)
		VALUES (:id, :match_id, :referee_id, :role, :confirmed, :notes, :created_at)`, a)
	return err
}

func (s *RefereeStore) AssignmentExistsTx(ctx context.Context, tx *sqlx.Tx, matchID, refereeID uuid.UUID, role schedule.Role) (bool, error) {
	var count int
	err := tx.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM match_referees WHERE match_id = ? AND referee_id = ? AND role = ?",
		matchID, refereeID, role)
	return count > 0, err
}

func (s *RefereeStore) ListMatchReferees(ctx context.Context, matchID uuid.UUID) ([]schedule.MatchRefereeAssignment, error) {
	var assignments []schedule.MatchRefereeAssignment
	err := s.db.SelectContext(ctx, &assignments,
		"SELECT * FROM match_referees WHERE match_id = ? ORDER BY role ASC, created_at ASC", matchID)
	return assignments, err
}

func (s *RefereeStore) DeleteAssignment(ctx context.Context, matchID, refereeID uuid.UUID, role schedule.Role) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM match_referees WHERE match_id = ? AND referee_id = ? AND role = ?",
		matchID, refereeID, role)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (s *RefereeStore) ConfirmAssignment(ctx context.Context, matchID, refereeID uuid.UUID, role schedule.Role) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE match_referees SET confirmed = 1 WHERE match_id = ? AND referee_id = ? AND role = ?",
		matchID, refereeID, role)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}
