package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/courtside/courtside/internal/schedule"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// SlotStore persists time slots. All binding mutations are conditional
// updates keyed on the slot's version counter, so two concurrent writers
// can never both succeed against the same slot state.
type SlotStore struct {
	db *sqlx.DB
}

func NewSlotStore(db *sqlx.DB) *SlotStore {
	return &SlotStore{db: db}
}

func (s *SlotStore) CreateSlot(ctx context.Context, tx *sqlx.Tx, slot *schedule.TimeSlot) error {
	_, err := tx.NamedExecContext(ctx, `INSERT INTO time_slots (id, tournament_id, court_id, start_time, end_time, is_available, match_id, version, created_at)
		VALUES (:id, :tournament_id, :court_id, :start_time, :end_time, :is_available, :match_id, :version, :created_at)`, slot)
	return err
}

func (s *SlotStore) GetSlot(ctx context.Context, id uuid.UUID) (*schedule.TimeSlot, error) {
	var slot schedule.TimeSlot
	err := s.db.GetContext(ctx, &slot, "SELECT * FROM time_slots WHERE id = ?", id)
	return &slot, err
}

func (s *SlotStore) GetSlotTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*schedule.TimeSlot, error) {
	var slot schedule.TimeSlot
	err := tx.GetContext(ctx, &slot, "SELECT * FROM time_slots WHERE id = ?", id)
	return &slot, err
}

// SlotFilter narrows ListSlots.
type SlotFilter struct {
	CourtID       *uuid.UUID
	Date          *time.Time
	OnlyAvailable bool
}

func (s *SlotStore) ListSlots(ctx context.Context, tournamentID uuid.UUID, filter SlotFilter) ([]schedule.TimeSlot, error) {
	query := "SELECT * FROM time_slots WHERE tournament_id = ?"
	args := []any{tournamentID}

	if filter.CourtID != nil {
		query += " AND court_id = ?"
		args = append(args, *filter.CourtID)
	}
	if filter.Date != nil {
		day := schedule.DayOf(*filter.Date)
		query += " AND start_time >= ? AND start_time < ?"
		args = append(args, day, day.AddDate(0, 0, 1))
	}
	if filter.OnlyAvailable {
		query += " AND is_available = 1"
	}
	query += " ORDER BY start_time ASC, court_id ASC"

	var slots []schedule.TimeSlot
	err := s.db.SelectContext(ctx, &slots, query, args...)
	return slots, err
}

// ListSlotsWithMatches joins each slot to its bound match's scores.
func (s *SlotStore) ListSlotsWithMatches(ctx context.Context, tournamentID uuid.UUID, date *time.Time) ([]schedule.SlotWithMatch, error) {
	query := `SELECT ts.*, m.score_1 AS match_score_1, m.score_2 AS match_score_2
		FROM time_slots ts
		LEFT JOIN matches m ON ts.match_id = m.id
		WHERE ts.tournament_id = ?`
	args := []any{tournamentID}

	if date != nil {
		day := schedule.DayOf(*date)
		query += " AND ts.start_time >= ? AND ts.start_time < ?"
		args = append(args, day, day.AddDate(0, 0, 1))
	}
	query += " ORDER BY ts.start_time ASC, ts.court_id ASC"

	var slots []schedule.SlotWithMatch
	err := s.db.SelectContext(ctx, &slots, query, args...)
	return slots, err
}

// NextAvailableSlot returns the earliest free slot, or nil if none match.
func (s *SlotStore) NextAvailableSlot(ctx context.Context, tournamentID uuid.UUID, courtID *uuid.UUID, after *time.Time) (*schedule.TimeSlot, error) {
	query := "SELECT * FROM time_slots WHERE tournament_id = ? AND is_available = 1"
	args := []any{tournamentID}

	if courtID != nil {
		query += " AND court_id = ?"
		args = append(args, *courtID)
	}
	if after != nil {
		query += " AND start_time > ?"
		args = append(args, after.UTC())
	}
	query += " ORDER BY start_time ASC LIMIT 1"

	var slot schedule.TimeSlot
	err := s.db.GetContext(ctx, &slot, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &slot, nil
}

// SlotsForCourt returns a court's slots ordered by start time, the
// ordering that reschedule position ordinals index into.
func (s *SlotStore) SlotsForCourt(ctx context.Context, tournamentID, courtID uuid.UUID) ([]schedule.TimeSlot, error) {
	var slots []schedule.TimeSlot
	err := s.db.SelectContext(ctx, &slots,
		"SELECT * FROM time_slots WHERE tournament_id = ? AND court_id = ? ORDER BY start_time ASC",
		tournamentID, courtID)
	return slots, err
}

func (s *SlotStore) SlotsForCourtTx(ctx context.Context, tx *sqlx.Tx, tournamentID, courtID uuid.UUID) ([]schedule.TimeSlot, error) {
	var slots []schedule.TimeSlot
	err := tx.SelectContext(ctx, &slots,
		"SELECT * FROM time_slots WHERE tournament_id = ? AND court_id = ? ORDER BY start_time ASC",
		tournamentID, courtID)
	return slots, err
}

// SlotForMatch returns the slot currently bound to a match, or nil.
func (s *SlotStore) SlotForMatch(ctx context.Context, matchID uuid.UUID) (*schedule.TimeSlot, error) {
	var slot schedule.TimeSlot
	err := s.db.GetContext(ctx, &slot, "SELECT * FROM time_slots WHERE match_id = ?", matchID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &slot, nil
}

func (s *SlotStore) SlotForMatchTx(ctx context.Context, tx *sqlx.Tx, matchID uuid.UUID) (*schedule.TimeSlot, error) {
	var slot schedule.TimeSlot
	err := tx.GetContext(ctx, &slot, "SELECT * FROM time_slots WHERE match_id = ?", matchID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &slot, nil
}

// BindMatch binds a match to a free slot iff the slot's state is still
// the one the caller read (same version, unbound, available). Returns
// false without error when the conditional update finds no row.
func (s *SlotStore) BindMatch(ctx context.Context, tx *sqlx.Tx, slotID uuid.UUID, version int64, matchID uuid.UUID) (bool, error) {
	res, err := tx.ExecContext(ctx, `UPDATE time_slots
		SET match_id = ?, is_available = 0, version = version + 1
		WHERE id = ? AND version = ? AND match_id IS NULL AND is_available = 1`,
		matchID, slotID, version)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// Unbind releases a slot iff it is still bound at the given version.
func (s *SlotStore) Unbind(ctx context.Context, tx *sqlx.Tx, slotID uuid.UUID, version int64) (bool, error) {
	res, err := tx.ExecContext(ctx, `UPDATE time_slots
		SET match_id = NULL, is_available = 1, version = version + 1
		WHERE id = ? AND version = ? AND match_id IS NOT NULL`,
		slotID, version)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// OverlappingSlotsTx returns slots on a court that overlap the given
// half-open window, optionally ignoring one slot id. It runs on the
// caller's transaction so the scan and the following insert share one
// consistent view.
func (s *SlotStore) OverlappingSlotsTx(ctx context.Context, tx *sqlx.Tx, courtID uuid.UUID, window schedule.Interval, excludeID *uuid.UUID) ([]schedule.TimeSlot, error) {
	query := `SELECT * FROM time_slots
		WHERE court_id = ? AND start_time < ? AND end_time > ?`
	args := []any{courtID, window.End, window.Start}

	if excludeID != nil {
		query += " AND id != ?"
		args = append(args, *excludeID)
	}

	var slots []schedule.TimeSlot
	err := tx.SelectContext(ctx, &slots, query, args...)
	return slots, err
}

// SetAvailability flips a slot's availability flag iff the slot is still
// at the given version and holds no bound match. A maintenance block is
// lifted the same way it is placed, through the version counter.
func (s *SlotStore) SetAvailability(ctx context.Context, tx *sqlx.Tx, slotID uuid.UUID, version int64, available bool) (bool, error) {
	res, err := tx.ExecContext(ctx, `UPDATE time_slots
		SET is_available = ?, version = version + 1
		WHERE id = ? AND version = ? AND match_id IS NULL`,
		available, slotID, version)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// DeleteSlot removes an unbound slot. Returns false if the slot was
// bound (delete refused) or missing.
func (s *SlotStore) DeleteSlot(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM time_slots WHERE id = ? AND match_id IS NULL", id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}
