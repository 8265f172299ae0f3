package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"github.com/courtside/courtside/internal/schedule"
	"github.com/courtside/courtside/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// RefereeService covers referee profiles, per-tournament availability,
// conflict detection, and match assignment. Referees are global:
// conflict scans always run across every tournament they are committed
// to, and unconfirmed assignments block time the same as confirmed ones.
type RefereeService struct {
	db       *sqlx.DB
	referees *store.RefereeStore
	matches  *store.MatchStore
	slots    *store.SlotStore
}

func NewRefereeService(db *sqlx.DB, referees *store.RefereeStore, matches *store.MatchStore, slots *store.SlotStore) *RefereeService {
	return &RefereeService{db: db, referees: referees, matches: matches, slots: slots}
}

// RefereeInput carries the mutable profile fields.
type RefereeInput struct {
	Name               string  `json:"name"`
	Email              *string `json:"email"`
	Phone              *string `json:"phone"`
	CertificationLevel *string `json:"certification_level"`
	Active             bool    `json:"active"`
	Notes              *string `json:"notes"`
}

func (s *RefereeService) CreateReferee(ctx context.Context, input RefereeInput) (*schedule.Referee, error) {
	if input.Name == "" {
		return nil, schedule.Errorf(schedule.KindValidation, "", "referee name is required")
	}
	referee := schedule.Referee{
		ID:                 uuid.New(),
		Name:               input.Name,
		Email:              input.Email,
		Phone:              input.Phone,
		CertificationLevel: input.CertificationLevel,
		Active:             input.Active,
		Notes:              input.Notes,
		CreatedAt:          time.Now().UTC(),
	}
	if err := s.referees.CreateReferee(ctx, &referee); err != nil {
		return nil, err
	}
	return &referee, nil
}

func (s *RefereeService) GetReferee(ctx context.Context, id uuid.UUID) (*schedule.Referee, error) {
	referee, err := s.referees.GetReferee(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, schedule.Errorf(schedule.KindNotFound, id.String(), "referee not found")
	}
	return referee, err
}

func (s *RefereeService) ListReferees(ctx context.Context, activeOnly bool) ([]schedule.Referee, error) {
	return s.referees.ListReferees(ctx, activeOnly)
}

func (s *RefereeService) UpdateReferee(ctx context.Context, id uuid.UUID, input RefereeInput) (*schedule.Referee, error) {
	referee, err := s.GetReferee(ctx, id)
	if err != nil {
		return nil, err
	}
	if input.Name == "" {
		return nil, schedule.Errorf(schedule.KindValidation, "", "referee name is required")
	}
	referee.Name = input.Name
	referee.Email = input.Email
	referee.Phone = input.Phone
	referee.CertificationLevel = input.CertificationLevel
	referee.Active = input.Active
	referee.Notes = input.Notes

	if err := s.referees.UpdateReferee(ctx, referee); err != nil {
		return nil, err
	}
	return referee, nil
}

func (s *RefereeService) DeleteReferee(ctx context.Context, id uuid.UUID) error {
	ok, err := s.referees.DeleteReferee(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return schedule.Errorf(schedule.KindNotFound, id.String(), "referee not found")
	}
	return nil
}

// AvailabilityInput carries an upserted availability window.
type AvailabilityInput struct {
	AvailableFrom    time.Time            `json:"available_from"`
	AvailableTo      time.Time            `json:"available_to"`
	MaxMatchesPerDay *int                 `json:"max_matches_per_day"`
	PreferredCourts  schedule.CourtIDList `json:"preferred_courts"`
	Notes            *string              `json:"notes"`
}

// UpsertAvailability supersedes the referee's availability for a
// tournament. Deleting a tournament removes these rows, never the
// referee.
func (s *RefereeService) UpsertAvailability(ctx context.Context, tournamentID, refereeID uuid.UUID, input AvailabilityInput) (*schedule.RefereeAvailability, error) {
	if _, err := schedule.NewInterval(input.AvailableFrom, input.AvailableTo); err != nil {
		return nil, err
	}
	if input.MaxMatchesPerDay != nil && *input.MaxMatchesPerDay < 0 {
		return nil, schedule.Errorf(schedule.KindValidation, "", "max matches per day must not be negative")
	}
	if _, err := s.GetReferee(ctx, refereeID); err != nil {
		return nil, err
	}

	record := schedule.RefereeAvailability{
		ID:               uuid.New(),
		RefereeID:        refereeID,
		TournamentID:     tournamentID,
		AvailableFrom:    input.AvailableFrom.UTC(),
		AvailableTo:      input.AvailableTo.UTC(),
		MaxMatchesPerDay: input.MaxMatchesPerDay,
		PreferredCourts:  input.PreferredCourts,
		Notes:            input.Notes,
	}
	if err := s.referees.UpsertAvailability(ctx, &record); err != nil {
		return nil, err
	}
	return s.referees.GetAvailability(ctx, tournamentID, refereeID)
}

// CheckAvailability returns the referees whose tournament availability
// window contains the requested window, who hold no overlapping
// commitment anywhere, and whose per-day cap is not yet reached on the
// window's day.
func (s *RefereeService) CheckAvailability(ctx context.Context, tournamentID uuid.UUID, window schedule.Interval) ([]schedule.Referee, error) {
	records, err := s.referees.ListAvailability(ctx, tournamentID)
	if err != nil {
		return nil, err
	}

	var eligible []schedule.Referee
	for _, record := range records {
		if !record.Window().Contains(window) {
			continue
		}

		assignments, err := s.referees.AssignmentsForReferee(ctx, record.RefereeID)
		if err != nil {
			return nil, err
		}
		if conflictsWith(assignments, window, uuid.Nil) {
			continue
		}
		if capReached(assignments, record.MaxMatchesPerDay, schedule.DayOf(window.Start), uuid.Nil) {
			continue
		}

		referee, err := s.referees.GetReferee(ctx, record.RefereeID)
		if err != nil {
			return nil, err
		}
		eligible = append(eligible, *referee)
	}
	return eligible, nil
}

// conflictsWith reports whether any scheduled assignment (confirmed or
// not) overlaps the window. Assignments on excludeMatch are skipped, as
// are assignments whose match has no bound slot.
func conflictsWith(assignments []schedule.AssignmentWithWindow, window schedule.Interval, excludeMatch uuid.UUID) bool {
	for _, a := range assignments {
		if a.MatchID == excludeMatch {
			continue
		}
		if w := a.WindowOrNil(); w != nil && w.Overlaps(window) {
			return true
		}
	}
	return false
}

// capReached counts the distinct matches a referee is committed to on
// the given day. A nil cap means unbounded. Assignments on excludeMatch
// are not counted: adding a second role to a match the referee already
// works does not grow the distinct-match count.
func capReached(assignments []schedule.AssignmentWithWindow, maxPerDay *int, day time.Time, excludeMatch uuid.UUID) bool {
	if maxPerDay == nil {
		return false
	}
	seen := make(map[uuid.UUID]bool)
	for _, a := range assignments {
		if a.MatchID == excludeMatch {
			continue
		}
		if w := a.WindowOrNil(); w != nil && schedule.DayOf(w.Start).Equal(day) {
			seen[a.MatchID] = true
		}
	}
	return len(seen) >= *maxPerDay
}

// RefereeRosterEntry pairs a referee with their tournament availability
// window and their assignments on the tournament's matches.
type RefereeRosterEntry struct {
	Referee      schedule.Referee                `json:"referee"`
	Availability *schedule.RefereeAvailability   `json:"availability,omitempty"`
	Assignments  []schedule.AssignmentWithWindow `json:"assignments"`
}

// TournamentReferees lists every referee involved with a tournament,
// whether through a registered availability window or an assignment on
// one of its matches, ordered by name.
func (s *RefereeService) TournamentReferees(ctx context.Context, tournamentID uuid.UUID) ([]RefereeRosterEntry, error) {
	records, err := s.referees.ListAvailability(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	assignments, err := s.referees.AssignmentsForTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}

	availabilityByReferee := make(map[uuid.UUID]*schedule.RefereeAvailability, len(records))
	for i := range records {
		availabilityByReferee[records[i].RefereeID] = &records[i]
	}
	assignmentsByReferee := make(map[uuid.UUID][]schedule.AssignmentWithWindow)
	for _, a := range assignments {
		assignmentsByReferee[a.RefereeID] = append(assignmentsByReferee[a.RefereeID], a)
	}

	ids := make(map[uuid.UUID]bool)
	for id := range availabilityByReferee {
		ids[id] = true
	}
	for id := range assignmentsByReferee {
		ids[id] = true
	}

	roster := make([]RefereeRosterEntry, 0, len(ids))
	for id := range ids {
		referee, err := s.referees.GetReferee(ctx, id)
		if err != nil {
			return nil, err
		}
		roster = append(roster, RefereeRosterEntry{
			Referee:      *referee,
			Availability: availabilityByReferee[id],
			Assignments:  assignmentsByReferee[id],
		})
	}
	sort.Slice(roster, func(i, j int) bool { return roster[i].Referee.Name < roster[j].Referee.Name })
	return roster, nil
}

// AssignReferee creates a (match, referee, role) assignment. Duplicate,
// overlap, and capacity checks all run inside the write transaction, so
// a concurrent check cannot slip a conflicting row in between.
func (s *RefereeService) AssignReferee(ctx context.Context, matchID, refereeID uuid.UUID, role schedule.Role, confirmed bool) (*schedule.MatchRefereeAssignment, error) {
	if !role.Valid() {
		return nil, schedule.Errorf(schedule.KindValidation, "", "unknown referee role %q", role)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	match, err := s.matches.GetMatchTx(ctx, tx, matchID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, schedule.Errorf(schedule.KindNotFound, matchID.String(), "match not found")
	}
	if err != nil {
		return nil, err
	}

	if _, err := s.GetReferee(ctx, refereeID); err != nil {
		return nil, err
	}

	exists, err := s.referees.AssignmentExistsTx(ctx, tx, matchID, refereeID, role)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, schedule.Errorf(schedule.KindConflict, matchID.String(),
			"referee already holds role %s on this match", role)
	}

	// A match with no bound slot holds no time yet; the assignment
	// succeeds provisionally and is re-checked when the slot binds.
	slot, err := s.slots.SlotForMatchTx(ctx, tx, matchID)
	if err != nil {
		return nil, err
	}
	if slot != nil {
		window := slot.Interval()

		assignments, err := s.referees.AssignmentsForRefereeTx(ctx, tx, refereeID)
		if err != nil {
			return nil, err
		}
		if conflictsWith(assignments, window, matchID) {
			return nil, schedule.Errorf(schedule.KindConflict, refereeID.String(),
				"referee has an overlapping commitment in %s–%s",
				window.Start.Format(time.RFC3339), window.End.Format(time.RFC3339))
		}

		availability, err := s.referees.GetAvailability(ctx, match.TournamentID, refereeID)
		if err != nil {
			return nil, err
		}
		if availability != nil && capReached(assignments, availability.MaxMatchesPerDay, schedule.DayOf(window.Start), matchID) {
			return nil, schedule.Errorf(schedule.KindCapacity, refereeID.String(),
				"referee reached the per-day match cap on %s", schedule.DayOf(window.Start).Format("2006-01-02"))
		}
	}

	assignment := schedule.MatchRefereeAssignment{
		ID:        uuid.New(),
		MatchID:   matchID,
		RefereeID: refereeID,
		Role:      role,
		Confirmed: confirmed,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.referees.CreateAssignment(ctx, tx, &assignment); err != nil {
		return nil, err
	}
	return &assignment, tx.Commit()
}

func (s *RefereeService) ListMatchReferees(ctx context.Context, matchID uuid.UUID) ([]schedule.MatchRefereeAssignment, error) {
	return s.referees.ListMatchReferees(ctx, matchID)
}

func (s *RefereeService) RemoveReferee(ctx context.Context, matchID, refereeID uuid.UUID, role schedule.Role) error {
	ok, err := s.referees.DeleteAssignment(ctx, matchID, refereeID, role)
	if err != nil {
		return err
	}
	if !ok {
		return schedule.Errorf(schedule.KindNotFound, refereeID.String(),
			"no %s assignment for this referee on the match", role)
	}
	return nil
}

func (s *RefereeService) ConfirmAssignment(ctx context.Context, matchID, refereeID uuid.UUID, role schedule.Role) error {
	ok, err := s.referees.ConfirmAssignment(ctx, matchID, refereeID, role)
	if err != nil {
		return err
	}
	if !ok {
		return schedule.Errorf(schedule.KindNotFound, refereeID.String(),
			"no %s assignment for this referee on the match", role)
	}
	return nil
}

// RefereeConflicts reports every pair of the referee's scheduled
// commitments that overlap on the given day. The scan spans all
// tournaments; tournamentID only scopes the report.
func (s *RefereeService) RefereeConflicts(ctx context.Context, refereeID, tournamentID uuid.UUID, date time.Time) ([]schedule.ConflictPair, error) {
	if _, err := s.GetReferee(ctx, refereeID); err != nil {
		return nil, err
	}

	assignments, err := s.referees.AssignmentsForReferee(ctx, refereeID)
	if err != nil {
		return nil, err
	}

	day := schedule.DayOf(date)
	type scheduled struct {
		matchID uuid.UUID
		window  schedule.Interval
	}
	var onDay []scheduled
	for _, a := range assignments {
		if w := a.WindowOrNil(); w != nil && schedule.DayOf(w.Start).Equal(day) {
			onDay = append(onDay, scheduled{matchID: a.MatchID, window: *w})
		}
	}

	var pairs []schedule.ConflictPair
	for i := 0; i < len(onDay); i++ {
		for j := i + 1; j < len(onDay); j++ {
			if onDay[i].matchID == onDay[j].matchID {
				continue
			}
			if onDay[i].window.Overlaps(onDay[j].window) {
				pairs = append(pairs, schedule.ConflictPair{
					RefereeID: refereeID,
					MatchA:    onDay[i].matchID,
					MatchB:    onDay[j].matchID,
					WindowA:   onDay[i].window,
					WindowB:   onDay[j].window,
				})
			}
		}
	}
	return pairs, nil
}
