package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/courtside/courtside/internal/schedule"
	"github.com/courtside/courtside/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// SlotService owns the slot lifecycle: bulk generation, single-slot
// CRUD, and the match-to-slot binding operations. Binding mutations go
// through the store's version-conditional updates, so concurrent calls
// against the same slot cannot both succeed.
type SlotService struct {
	db          *sqlx.DB
	slots       *store.SlotStore
	matches     *store.MatchStore
	tournaments *store.TournamentStore
	referees    *store.RefereeStore
}

func NewSlotService(db *sqlx.DB, slots *store.SlotStore, matches *store.MatchStore, tournaments *store.TournamentStore, referees *store.RefereeStore) *SlotService {
	return &SlotService{db: db, slots: slots, matches: matches, tournaments: tournaments, referees: referees}
}

// GenerateResult reports a bulk generation run.
type GenerateResult struct {
	Created      []schedule.TimeSlot `json:"created"`
	CreatedCount int                 `json:"created_count"`
	SkippedCount int                 `json:"skipped_count"`
}

// GenerateSlots walks every non-excluded day of the date range and every
// requested court, emitting slots of SlotDuration separated by
// BreakDuration within the daily window. Candidates overlapping a
// pre-existing slot on the same court are skipped and counted, so
// re-running with identical parameters creates nothing new.
func (s *SlotService) GenerateSlots(ctx context.Context, tournamentID uuid.UUID, spec schedule.BulkSlotSpec) (*GenerateResult, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	dailyStart, dailyEnd := spec.DailyWindow()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// Snapshot existing slots per court so collision checks stay in
	// memory for the whole walk. Reading inside the insert transaction
	// keeps the snapshot and the inserts on one consistent view, so a
	// concurrent writer cannot slip an overlapping slot in between.
	existing := make(map[uuid.UUID][]schedule.Interval)
	for _, courtID := range spec.CourtIDs {
		slots, err := s.slots.SlotsForCourtTx(ctx, tx, tournamentID, courtID)
		if err != nil {
			return nil, fmt.Errorf("loading existing slots for court %s: %w", courtID, err)
		}
		for _, slot := range slots {
			existing[courtID] = append(existing[courtID], slot.Interval())
		}
	}

	result := &GenerateResult{}
	step := spec.SlotDuration + spec.BreakDuration

	firstDay := schedule.DayOf(spec.StartDate)
	lastDay := schedule.DayOf(spec.EndDate)

	for day := firstDay; !day.After(lastDay); day = day.AddDate(0, 0, 1) {
		if spec.ExcludesWeekday(day.Weekday()) {
			continue
		}
		windowEnd := day.Add(dailyEnd)

		for _, courtID := range spec.CourtIDs {
			for start := day.Add(dailyStart); !start.Add(spec.SlotDuration).After(windowEnd); start = start.Add(step) {
				candidate := schedule.Interval{Start: start, End: start.Add(spec.SlotDuration)}

				if overlapsAny(existing[courtID], candidate) {
					result.SkippedCount++
					continue
				}

				slot := schedule.TimeSlot{
					ID:           uuid.New(),
					TournamentID: tournamentID,
					CourtID:      courtID,
					StartTime:    candidate.Start,
					EndTime:      candidate.End,
					IsAvailable:  true,
					CreatedAt:    time.Now().UTC(),
				}
				if err := s.slots.CreateSlot(ctx, tx, &slot); err != nil {
					return nil, fmt.Errorf("creating slot %s/%s: %w", courtID, candidate.Start, err)
				}

				existing[courtID] = append(existing[courtID], candidate)
				result.Created = append(result.Created, slot)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	result.CreatedCount = len(result.Created)
	return result, nil
}

func overlapsAny(intervals []schedule.Interval, candidate schedule.Interval) bool {
	for _, iv := range intervals {
		if iv.Overlaps(candidate) {
			return true
		}
	}
	return false
}

// CreateSlot creates one slot after validating its interval and checking
// it against existing slots on the same court.
func (s *SlotService) CreateSlot(ctx context.Context, tournamentID, courtID uuid.UUID, start, end time.Time, available bool) (*schedule.TimeSlot, error) {
	window, err := schedule.NewInterval(start, end)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// The overlap check shares the insert's transaction so a concurrent
	// create cannot commit an overlapping slot between check and insert.
	conflicts, err := s.slots.OverlappingSlotsTx(ctx, tx, courtID, window, nil)
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		return nil, schedule.Errorf(schedule.KindConflict, conflicts[0].ID.String(),
			"window overlaps %d existing slot(s) on this court", len(conflicts))
	}

	slot := schedule.TimeSlot{
		ID:           uuid.New(),
		TournamentID: tournamentID,
		CourtID:      courtID,
		StartTime:    window.Start,
		EndTime:      window.End,
		IsAvailable:  available,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.slots.CreateSlot(ctx, tx, &slot); err != nil {
		return nil, err
	}
	return &slot, tx.Commit()
}

// GetSlot returns one slot by id.
func (s *SlotService) GetSlot(ctx context.Context, slotID uuid.UUID) (*schedule.TimeSlot, error) {
	slot, err := s.slots.GetSlot(ctx, slotID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, schedule.Errorf(schedule.KindNotFound, slotID.String(), "time slot not found")
	}
	return slot, err
}

// SetSlotAvailability opens or closes an unbound slot. Closing a slot
// blocks it for maintenance; reopening it is the only way back, since
// assign refuses unavailable slots and release refuses unbound ones.
func (s *SlotService) SetSlotAvailability(ctx context.Context, slotID uuid.UUID, available bool) (*schedule.TimeSlot, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	slot, err := s.slots.GetSlotTx(ctx, tx, slotID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, schedule.Errorf(schedule.KindNotFound, slotID.String(), "time slot not found")
	}
	if err != nil {
		return nil, err
	}

	if slot.MatchID != nil {
		return nil, schedule.Errorf(schedule.KindPrecondition, slot.MatchID.String(),
			"slot has a bound match; release it first")
	}

	ok, err := s.slots.SetAvailability(ctx, tx, slotID, slot.Version, available)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, schedule.Errorf(schedule.KindConflict, slotID.String(),
			"slot was modified concurrently")
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.slots.GetSlot(ctx, slotID)
}

func (s *SlotService) ListSlots(ctx context.Context, tournamentID uuid.UUID, filter store.SlotFilter) ([]schedule.TimeSlot, error) {
	return s.slots.ListSlots(ctx, tournamentID, filter)
}

func (s *SlotService) ListSlotsWithMatches(ctx context.Context, tournamentID uuid.UUID, date *time.Time) ([]schedule.SlotWithMatch, error) {
	return s.slots.ListSlotsWithMatches(ctx, tournamentID, date)
}

// NextAvailableSlot returns the earliest free slot after the given time.
func (s *SlotService) NextAvailableSlot(ctx context.Context, tournamentID uuid.UUID, courtID *uuid.UUID, after *time.Time) (*schedule.TimeSlot, error) {
	slot, err := s.slots.NextAvailableSlot(ctx, tournamentID, courtID, after)
	if err != nil {
		return nil, err
	}
	if slot == nil {
		return nil, schedule.Errorf(schedule.KindNotFound, "", "no available slot matches the criteria")
	}
	return slot, nil
}

// AssignMatchToSlot binds a match to a free slot. It fails if the slot
// is bound or unavailable, if the match is bound elsewhere, or if any
// referee already assigned to the match would be double-booked by the
// slot's window.
func (s *SlotService) AssignMatchToSlot(ctx context.Context, slotID, matchID uuid.UUID) (*schedule.TimeSlot, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	slot, err := s.slots.GetSlotTx(ctx, tx, slotID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, schedule.Errorf(schedule.KindNotFound, slotID.String(), "time slot not found")
	}
	if err != nil {
		return nil, err
	}

	if slot.MatchID != nil {
		return nil, schedule.Errorf(schedule.KindConflict, slot.MatchID.String(),
			"slot is already bound to a match")
	}
	if !slot.IsAvailable {
		return nil, schedule.Errorf(schedule.KindPrecondition, slotID.String(),
			"slot is marked unavailable; release it first")
	}

	if _, err := s.matches.GetMatchTx(ctx, tx, matchID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, schedule.Errorf(schedule.KindNotFound, matchID.String(), "match not found")
		}
		return nil, err
	}

	if bound, err := s.slots.SlotForMatchTx(ctx, tx, matchID); err != nil {
		return nil, err
	} else if bound != nil {
		return nil, schedule.Errorf(schedule.KindConflict, bound.ID.String(),
			"match is already bound to another slot")
	}

	// Provisional referee assignments become real time commitments the
	// moment the match gets a window; re-check them here.
	if err := s.checkRefereeOverlaps(ctx, tx, matchID, slot.Interval()); err != nil {
		return nil, err
	}

	ok, err := s.slots.BindMatch(ctx, tx, slotID, slot.Version, matchID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, schedule.Errorf(schedule.KindConflict, slotID.String(),
			"slot was modified concurrently")
	}

	if err := s.matches.SetSchedule(ctx, tx, matchID, slot); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.slots.GetSlot(ctx, slotID)
}

// checkRefereeOverlaps rejects a window that would double-book any
// referee already assigned (confirmed or not) to this match.
func (s *SlotService) checkRefereeOverlaps(ctx context.Context, tx *sqlx.Tx, matchID uuid.UUID, window schedule.Interval) error {
	assigned, err := s.referees.ListMatchReferees(ctx, matchID)
	if err != nil {
		return err
	}
	for _, a := range assigned {
		others, err := s.referees.AssignmentsForRefereeTx(ctx, tx, a.RefereeID)
		if err != nil {
			return err
		}
		for _, other := range others {
			if other.MatchID == matchID {
				continue
			}
			if w := other.WindowOrNil(); w != nil && w.Overlaps(window) {
				return schedule.Errorf(schedule.KindConflict, a.RefereeID.String(),
					"referee is committed to match %s during this window", other.MatchID)
			}
		}
	}
	return nil
}

// ReleaseSlot clears a slot's binding. Releasing an unbound slot is a
// precondition failure, never a silent no-op, so double-release bugs
// surface at the caller.
func (s *SlotService) ReleaseSlot(ctx context.Context, slotID uuid.UUID) (*schedule.TimeSlot, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	slot, err := s.slots.GetSlotTx(ctx, tx, slotID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, schedule.Errorf(schedule.KindNotFound, slotID.String(), "time slot not found")
	}
	if err != nil {
		return nil, err
	}

	if slot.MatchID == nil {
		return nil, schedule.Errorf(schedule.KindPrecondition, slotID.String(),
			"slot is not bound to a match")
	}

	ok, err := s.slots.Unbind(ctx, tx, slotID, slot.Version)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, schedule.Errorf(schedule.KindConflict, slotID.String(),
			"slot was modified concurrently")
	}

	if err := s.matches.SetSchedule(ctx, tx, *slot.MatchID, nil); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.slots.GetSlot(ctx, slotID)
}

// DeleteSlot removes a slot that has no bound match.
func (s *SlotService) DeleteSlot(ctx context.Context, slotID uuid.UUID) error {
	slot, err := s.slots.GetSlot(ctx, slotID)
	if errors.Is(err, sql.ErrNoRows) {
		return schedule.Errorf(schedule.KindNotFound, slotID.String(), "time slot not found")
	}
	if err != nil {
		return err
	}
	if slot.MatchID != nil {
		return schedule.Errorf(schedule.KindPrecondition, slot.MatchID.String(),
			"slot has a bound match; release it first")
	}

	ok, err := s.slots.DeleteSlot(ctx, slotID)
	if err != nil {
		return err
	}
	if !ok {
		return schedule.Errorf(schedule.KindConflict, slotID.String(),
			"slot was modified concurrently")
	}
	return nil
}

// RescheduleMatch atomically moves the match bound at (oldCourt, oldPos)
// to the slot at (newCourt, newPos). Positions are ordinals into the
// court's slots ordered by start time. On any failure the original
// binding is untouched.
func (s *SlotService) RescheduleMatch(ctx context.Context, tournamentID, oldCourtID uuid.UUID, oldPos int, newCourtID uuid.UUID, newPos int) (*schedule.TimeSlot, error) {
	oldSlot, err := s.slotAtPosition(ctx, tournamentID, oldCourtID, oldPos)
	if err != nil {
		return nil, err
	}
	newSlot, err := s.slotAtPosition(ctx, tournamentID, newCourtID, newPos)
	if err != nil {
		return nil, err
	}

	if oldSlot.MatchID == nil {
		return nil, schedule.Errorf(schedule.KindPrecondition, oldSlot.ID.String(),
			"source slot is not bound to a match")
	}
	matchID := *oldSlot.MatchID

	if newSlot.ID == oldSlot.ID {
		return nil, schedule.Errorf(schedule.KindValidation, newSlot.ID.String(),
			"target slot is the source slot")
	}
	if newSlot.MatchID != nil {
		return nil, schedule.Errorf(schedule.KindConflict, newSlot.MatchID.String(),
			"target slot is already bound to a match")
	}
	if !newSlot.IsAvailable {
		return nil, schedule.Errorf(schedule.KindPrecondition, newSlot.ID.String(),
			"target slot is marked unavailable")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := s.checkRefereeOverlaps(ctx, tx, matchID, newSlot.Interval()); err != nil {
		return nil, err
	}

	ok, err := s.slots.Unbind(ctx, tx, oldSlot.ID, oldSlot.Version)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, schedule.Errorf(schedule.KindConflict, oldSlot.ID.String(),
			"source slot was modified concurrently")
	}

	ok, err = s.slots.BindMatch(ctx, tx, newSlot.ID, newSlot.Version, matchID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, schedule.Errorf(schedule.KindConflict, newSlot.ID.String(),
			"target slot was modified concurrently")
	}

	if err := s.matches.SetSchedule(ctx, tx, matchID, newSlot); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.slots.GetSlot(ctx, newSlot.ID)
}

func (s *SlotService) slotAtPosition(ctx context.Context, tournamentID, courtID uuid.UUID, pos int) (*schedule.TimeSlot, error) {
	slots, err := s.slots.SlotsForCourt(ctx, tournamentID, courtID)
	if err != nil {
		return nil, err
	}
	if pos < 0 || pos >= len(slots) {
		return nil, schedule.Errorf(schedule.KindNotFound, courtID.String(),
			"court has no slot at position %d", pos)
	}
	return &slots[pos], nil
}

// CourtOccupancy summarizes one court's slots for a day.
type CourtOccupancy struct {
	CourtID        uuid.UUID           `json:"court_id"`
	CourtName      string              `json:"court_name"`
	TotalSlots     int                 `json:"total_slots"`
	AvailableCount int                 `json:"available_count"`
	OccupiedCount  int                 `json:"occupied_count"`
	Slots          []schedule.TimeSlot `json:"slots"`
}

// ScheduleAvailability is the per-court occupancy report for one day.
type ScheduleAvailability struct {
	TournamentID   uuid.UUID        `json:"tournament_id"`
	Date           time.Time        `json:"date"`
	Courts         []CourtOccupancy `json:"courts"`
	TotalSlots     int              `json:"total_slots"`
	AvailableCount int              `json:"available_count"`
	OccupiedCount  int              `json:"occupied_count"`
}

// ScheduleAvailabilityForDate builds the occupancy summary per court.
func (s *SlotService) ScheduleAvailabilityForDate(ctx context.Context, tournamentID uuid.UUID, date time.Time) (*ScheduleAvailability, error) {
	courts, err := s.tournaments.ListCourts(ctx, tournamentID)
	if err != nil {
		return nil, err
	}

	day := schedule.DayOf(date)
	slots, err := s.slots.ListSlots(ctx, tournamentID, store.SlotFilter{Date: &day})
	if err != nil {
		return nil, err
	}

	byCourt := make(map[uuid.UUID][]schedule.TimeSlot)
	for _, slot := range slots {
		byCourt[slot.CourtID] = append(byCourt[slot.CourtID], slot)
	}

	report := &ScheduleAvailability{TournamentID: tournamentID, Date: day}
	for _, court := range courts {
		occ := CourtOccupancy{CourtID: court.ID, CourtName: court.Name, Slots: byCourt[court.ID]}
		for _, slot := range occ.Slots {
			occ.TotalSlots++
			if slot.IsAvailable {
				occ.AvailableCount++
			} else {
				occ.OccupiedCount++
			}
		}
		report.Courts = append(report.Courts, occ)
		report.TotalSlots += occ.TotalSlots
		report.AvailableCount += occ.AvailableCount
		report.OccupiedCount += occ.OccupiedCount
	}
	return report, nil
}
