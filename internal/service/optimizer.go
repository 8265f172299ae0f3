package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/courtside/courtside/internal/schedule"
	"github.com/courtside/courtside/internal/store"
	"github.com/courtside/courtside/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Objective selects the weight profile for the optimizer's violation
// scoring.
type Objective string

const (
	ObjectiveMinimalConflicts    Objective = "minimal_conflicts"
	ObjectiveRefereeAvailability Objective = "referee_availability"
	ObjectiveCourtUsage          Objective = "court_usage"
)

func (o Objective) Valid() bool {
	switch o {
	case ObjectiveMinimalConflicts, ObjectiveRefereeAvailability, ObjectiveCourtUsage:
		return true
	}
	return false
}

// Constraints are the soft limits the optimizer minimizes violations of.
// Zero values mean "unconstrained".
type Constraints struct {
	MaxMatchesPerDayPerTeam int `json:"max_matches_per_day_per_team"`
	MinRestMinutes          int `json:"min_rest_between_matches_minutes"`
	MaxIterations           int `json:"max_iterations"`
}

const defaultMaxIterations = 200

// ViolationReport counts the soft-constraint violations of a schedule
// state.
type ViolationReport struct {
	RefereeConflicts  int `json:"referee_conflicts"`
	OutOfAvailability int `json:"out_of_availability"`
	TeamOverflow      int `json:"team_daily_overflow"`
	RestViolations    int `json:"rest_violations"`
	IdleSlots         int `json:"idle_slots"`
}

// AppliedMove describes one accepted reassignment.
type AppliedMove struct {
	Type         string     `json:"type"` // move | swap
	MatchID      uuid.UUID  `json:"match_id"`
	FromSlotID   uuid.UUID  `json:"from_slot_id"`
	ToSlotID     uuid.UUID  `json:"to_slot_id"`
	OtherMatchID *uuid.UUID `json:"other_match_id,omitempty"`
}

// OptimizeResult summarizes an optimizer run. Remaining violations are
// reported, never raised: soft constraints are minimized, not
// guaranteed eliminated.
type OptimizeResult struct {
	Objective           Objective       `json:"objective"`
	Iterations          int             `json:"iterations"`
	MovesApplied        int             `json:"moves_applied"`
	MovesSkipped        int             `json:"moves_skipped"`
	InitialScore        float64         `json:"initial_score"`
	FinalScore          float64         `json:"final_score"`
	InitialViolations   ViolationReport `json:"initial_violations"`
	RemainingViolations ViolationReport `json:"remaining_violations"`
	Moves               []AppliedMove   `json:"moves"`
}

// Optimizer improves a tournament's schedule by local search: it takes
// a read snapshot, repeatedly picks the single move or swap that most
// reduces the weighted violation score, and applies each accepted move
// through the same version-conditional binding primitives interactive
// calls use. A move whose slot state changed under it is skipped, not
// forced, so the hard binding invariants always hold.
type Optimizer struct {
	db       *sqlx.DB
	slots    *store.SlotStore
	matches  *store.MatchStore
	referees *store.RefereeStore
}

func NewOptimizer(db *sqlx.DB, slots *store.SlotStore, matches *store.MatchStore, referees *store.RefereeStore) *Optimizer {
	return &Optimizer{db: db, slots: slots, matches: matches, referees: referees}
}

type weights struct {
	refConflict   float64
	outOfWindow   float64
	teamOverflow  float64
	restViolation float64
	idleSlot      float64
	nonPreferred  float64
}

func weightsFor(objective Objective) weights {
	switch objective {
	case ObjectiveRefereeAvailability:
		return weights{refConflict: 12, outOfWindow: 8, teamOverflow: 2, restViolation: 1, nonPreferred: 1}
	case ObjectiveCourtUsage:
		return weights{refConflict: 8, outOfWindow: 2, teamOverflow: 4, restViolation: 2, idleSlot: 1}
	default: // minimal_conflicts
		return weights{refConflict: 10, outOfWindow: 2, teamOverflow: 4, restViolation: 2}
	}
}

// snapshot is the optimizer's consistent view of one tournament's
// schedule state. binding is the only part moves mutate.
type snapshot struct {
	slots   map[uuid.UUID]*schedule.TimeSlot
	matches map[uuid.UUID]*schedule.Match
	binding map[uuid.UUID]uuid.UUID // matchID -> slotID

	matchReferees   map[uuid.UUID][]uuid.UUID                   // matchID -> refereeIDs
	externalWindows map[uuid.UUID][]schedule.Interval           // refereeID -> windows outside this tournament
	availability    map[uuid.UUID]*schedule.RefereeAvailability // refereeID -> window/cap

	constraints Constraints
	w           weights
}

// Optimize runs the local search. It stops when no strictly improving
// move exists, the iteration budget runs out, or ctx is cancelled;
// moves already applied stay applied.
func (o *Optimizer) Optimize(ctx context.Context, tournamentID uuid.UUID, objective Objective, constraints Constraints) (*OptimizeResult, error) {
	if !objective.Valid() {
		return nil, schedule.Errorf(schedule.KindValidation, "", "unknown optimization objective %q", objective)
	}
	if constraints.MaxMatchesPerDayPerTeam < 0 || constraints.MinRestMinutes < 0 || constraints.MaxIterations < 0 {
		return nil, schedule.Errorf(schedule.KindValidation, "", "constraints must not be negative")
	}
	if constraints.MaxIterations == 0 {
		constraints.MaxIterations = defaultMaxIterations
	}

	snap, err := o.loadSnapshot(ctx, tournamentID, objective, constraints)
	if err != nil {
		return nil, err
	}

	result := &OptimizeResult{Objective: objective}
	result.InitialViolations = snap.violations()
	result.InitialScore = snap.score(result.InitialViolations)

	for result.Iterations = 0; result.Iterations < constraints.MaxIterations; result.Iterations++ {
		if ctx.Err() != nil {
			break
		}

		move, improved := snap.bestMove()
		if !improved {
			break
		}

		applied, err := o.applyMove(ctx, snap, move)
		if err != nil {
			return nil, err
		}
		if !applied {
			// A concurrent interactive change invalidated the move's
			// preconditions; refresh the touched slots and carry on.
			if err := o.refreshSlots(ctx, snap, move); err != nil {
				return nil, err
			}
			result.MovesSkipped++
			continue
		}

		snap.commitMove(move)
		result.MovesApplied++
		result.Moves = append(result.Moves, move.record())
	}

	result.RemainingViolations = snap.violations()
	result.FinalScore = snap.score(result.RemainingViolations)
	return result, nil
}

func (o *Optimizer) loadSnapshot(ctx context.Context, tournamentID uuid.UUID, objective Objective, constraints Constraints) (*snapshot, error) {
	slots, err := o.slots.ListSlots(ctx, tournamentID, store.SlotFilter{})
	if err != nil {
		return nil, fmt.Errorf("loading slots: %w", err)
	}
	matches, err := o.matches.ListMatches(ctx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("loading matches: %w", err)
	}

	snap := &snapshot{
		slots:           make(map[uuid.UUID]*schedule.TimeSlot, len(slots)),
		matches:         make(map[uuid.UUID]*schedule.Match, len(matches)),
		binding:         make(map[uuid.UUID]uuid.UUID),
		matchReferees:   make(map[uuid.UUID][]uuid.UUID),
		externalWindows: make(map[uuid.UUID][]schedule.Interval),
		availability:    make(map[uuid.UUID]*schedule.RefereeAvailability),
		constraints:     constraints,
		w:               weightsFor(objective),
	}

	for i := range slots {
		slot := &slots[i]
		snap.slots[slot.ID] = slot
		if slot.MatchID != nil {
			snap.binding[*slot.MatchID] = slot.ID
		}
	}
	for i := range matches {
		snap.matches[matches[i].ID] = &matches[i]
	}

	// Referee commitments: in-tournament windows are derived from the
	// binding as it changes; windows in other tournaments are fixed.
	refereeSeen := make(map[uuid.UUID]bool)
	for matchID := range snap.matches {
		assignments, err := o.referees.ListMatchReferees(ctx, matchID)
		if err != nil {
			return nil, fmt.Errorf("loading match referees: %w", err)
		}
		for _, a := range assignments {
			snap.matchReferees[matchID] = append(snap.matchReferees[matchID], a.RefereeID)
			refereeSeen[a.RefereeID] = true
		}
	}

	for refereeID := range refereeSeen {
		all, err := o.referees.AssignmentsForReferee(ctx, refereeID)
		if err != nil {
			return nil, fmt.Errorf("loading referee commitments: %w", err)
		}
		for _, a := range all {
			if _, inTournament := snap.matches[a.MatchID]; inTournament {
				continue
			}
			if w := a.WindowOrNil(); w != nil {
				snap.externalWindows[refereeID] = append(snap.externalWindows[refereeID], *w)
			}
		}

		availability, err := o.referees.GetAvailability(ctx, tournamentID, refereeID)
		if err != nil {
			return nil, err
		}
		if availability != nil {
			snap.availability[refereeID] = availability
		}
	}

	return snap, nil
}

// matchWindow returns the match's effective window under the current
// binding, honoring a custom duration override.
func (s *snapshot) matchWindow(matchID uuid.UUID) *schedule.Interval {
	slotID, ok := s.binding[matchID]
	if !ok {
		return nil
	}
	slot := s.slots[slotID]
	window := slot.Interval()
	if m := s.matches[matchID]; m != nil {
		if d := utils.OrZero(m.DurationMinutes); d > 0 {
			window.End = window.Start.Add(time.Duration(d) * time.Minute)
		}
	}
	return &window
}

func (s *snapshot) violations() ViolationReport {
	var report ViolationReport

	// Referee conflicts and availability-window violations.
	refereeWindows := make(map[uuid.UUID][]schedule.Interval)
	for matchID, refereeIDs := range s.matchReferees {
		window := s.matchWindow(matchID)
		if window == nil {
			continue
		}
		for _, refereeID := range refereeIDs {
			refereeWindows[refereeID] = append(refereeWindows[refereeID], *window)

			if a, ok := s.availability[refereeID]; ok && !a.Window().Contains(*window) {
				report.OutOfAvailability++
			}
		}
	}
	for refereeID, windows := range refereeWindows {
		windows = append(windows, s.externalWindows[refereeID]...)
		for i := 0; i < len(windows); i++ {
			for j := i + 1; j < len(windows); j++ {
				if windows[i].Overlaps(windows[j]) {
					report.RefereeConflicts++
				}
			}
		}
	}

	// Team constraints.
	type teamWindows map[uuid.UUID][]schedule.Interval
	byTeam := make(teamWindows)
	for matchID, m := range s.matches {
		window := s.matchWindow(matchID)
		if window == nil {
			continue
		}
		for _, team := range m.Teams() {
			byTeam[team] = append(byTeam[team], *window)
		}
	}
	for _, windows := range byTeam {
		sort.Slice(windows, func(i, j int) bool { return windows[i].Start.Before(windows[j].Start) })

		if s.constraints.MaxMatchesPerDayPerTeam > 0 {
			perDay := make(map[time.Time]int)
			for _, w := range windows {
				perDay[schedule.DayOf(w.Start)]++
			}
			for _, n := range perDay {
				if n > s.constraints.MaxMatchesPerDayPerTeam {
					report.TeamOverflow += n - s.constraints.MaxMatchesPerDayPerTeam
				}
			}
		}

		if s.constraints.MinRestMinutes > 0 {
			minRest := time.Duration(s.constraints.MinRestMinutes) * time.Minute
			for i := 1; i < len(windows); i++ {
				if windows[i].Start.Sub(windows[i-1].End) < minRest {
					report.RestViolations++
				}
			}
		}
	}

	// Idle slots: free slots that sit before the last bound slot on the
	// same court (schedule holes the search can compact away).
	lastBound := make(map[uuid.UUID]time.Time)
	for _, slotID := range s.binding {
		slot := s.slots[slotID]
		if slot.StartTime.After(lastBound[slot.CourtID]) {
			lastBound[slot.CourtID] = slot.StartTime
		}
	}
	for _, slot := range s.slots {
		if s.slotFree(slot.ID) && slot.StartTime.Before(lastBound[slot.CourtID]) {
			report.IdleSlots++
		}
	}

	return report
}

func (s *snapshot) score(report ViolationReport) float64 {
	score := s.w.refConflict*float64(report.RefereeConflicts) +
		s.w.outOfWindow*float64(report.OutOfAvailability) +
		s.w.teamOverflow*float64(report.TeamOverflow) +
		s.w.restViolation*float64(report.RestViolations) +
		s.w.idleSlot*float64(report.IdleSlots)

	if s.w.nonPreferred > 0 {
		for matchID, refereeIDs := range s.matchReferees {
			slotID, ok := s.binding[matchID]
			if !ok {
				continue
			}
			court := s.slots[slotID].CourtID
			for _, refereeID := range refereeIDs {
				a, ok := s.availability[refereeID]
				if ok && len(a.PreferredCourts) > 0 && !a.PreferredCourts.Contains(court) {
					score += s.w.nonPreferred
				}
			}
		}
	}
	return score
}

func (s *snapshot) slotFree(slotID uuid.UUID) bool {
	slot := s.slots[slotID]
	if !slot.IsAvailable || slot.MatchID != nil {
		return false
	}
	for _, bound := range s.binding {
		if bound == slotID {
			return false
		}
	}
	return true
}

// candidateMove is a tagged reassignment variant: a move of one match to
// a free slot, or a swap of two matches' slots.
type candidateMove struct {
	swap bool

	matchID  uuid.UUID
	fromSlot uuid.UUID
	toSlot   uuid.UUID

	otherMatch uuid.UUID // swap only
}

func (m candidateMove) record() AppliedMove {
	rec := AppliedMove{Type: "move", MatchID: m.matchID, FromSlotID: m.fromSlot, ToSlotID: m.toSlot}
	if m.swap {
		rec.Type = "swap"
		other := m.otherMatch
		rec.OtherMatchID = &other
	}
	return rec
}

// bestMove scans all single-match moves and pairwise swaps and returns
// the one with the lowest resulting score, if it strictly improves on
// the current state.
func (s *snapshot) bestMove() (candidateMove, bool) {
	current := s.score(s.violations())
	best := candidateMove{}
	bestScore := current
	found := false

	boundMatches := make([]uuid.UUID, 0, len(s.binding))
	for matchID := range s.binding {
		boundMatches = append(boundMatches, matchID)
	}
	sort.Slice(boundMatches, func(i, j int) bool {
		return boundMatches[i].String() < boundMatches[j].String()
	})

	var freeSlots []uuid.UUID
	for slotID := range s.slots {
		if s.slotFree(slotID) {
			freeSlots = append(freeSlots, slotID)
		}
	}
	sort.Slice(freeSlots, func(i, j int) bool {
		return freeSlots[i].String() < freeSlots[j].String()
	})

	for _, matchID := range boundMatches {
		from := s.binding[matchID]

		for _, to := range freeSlots {
			s.binding[matchID] = to
			score := s.score(s.violations())
			s.binding[matchID] = from

			if score < bestScore {
				bestScore = score
				best = candidateMove{matchID: matchID, fromSlot: from, toSlot: to}
				found = true
			}
		}
	}

	for i := 0; i < len(boundMatches); i++ {
		for j := i + 1; j < len(boundMatches); j++ {
			a, b := boundMatches[i], boundMatches[j]
			slotA, slotB := s.binding[a], s.binding[b]

			s.binding[a], s.binding[b] = slotB, slotA
			score := s.score(s.violations())
			s.binding[a], s.binding[b] = slotA, slotB

			if score < bestScore {
				bestScore = score
				best = candidateMove{swap: true, matchID: a, fromSlot: slotA, toSlot: slotB, otherMatch: b}
				found = true
			}
		}
	}

	return best, found
}

// applyMove executes one accepted move through the store's conditional
// primitives. Returns false when a precondition no longer holds; the
// transaction rolls back and nothing is partially applied.
func (o *Optimizer) applyMove(ctx context.Context, snap *snapshot, move candidateMove) (bool, error) {
	tx, err := o.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	from := snap.slots[move.fromSlot]
	to := snap.slots[move.toSlot]

	ok, err := o.slots.Unbind(ctx, tx, from.ID, from.Version)
	if err != nil || !ok {
		return false, err
	}

	if move.swap {
		ok, err = o.slots.Unbind(ctx, tx, to.ID, to.Version)
		if err != nil || !ok {
			return false, err
		}
		ok, err = o.slots.BindMatch(ctx, tx, to.ID, to.Version+1, move.matchID)
		if err != nil || !ok {
			return false, err
		}
		ok, err = o.slots.BindMatch(ctx, tx, from.ID, from.Version+1, move.otherMatch)
		if err != nil || !ok {
			return false, err
		}
		if err := o.matches.SetSchedule(ctx, tx, move.matchID, to); err != nil {
			return false, err
		}
		if err := o.matches.SetSchedule(ctx, tx, move.otherMatch, from); err != nil {
			return false, err
		}
		return true, tx.Commit()
	}

	ok, err = o.slots.BindMatch(ctx, tx, to.ID, to.Version, move.matchID)
	if err != nil || !ok {
		return false, err
	}
	if err := o.matches.SetSchedule(ctx, tx, move.matchID, to); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

// commitMove folds an applied move into the snapshot.
func (s *snapshot) commitMove(move candidateMove) {
	from := s.slots[move.fromSlot]
	to := s.slots[move.toSlot]

	if move.swap {
		s.binding[move.matchID] = to.ID
		s.binding[move.otherMatch] = from.ID
		from.MatchID = utils.Ptr(move.otherMatch)
		to.MatchID = utils.Ptr(move.matchID)
		from.Version += 2
		to.Version += 2
		return
	}

	s.binding[move.matchID] = to.ID
	from.MatchID = nil
	from.IsAvailable = true
	from.Version++
	to.MatchID = utils.Ptr(move.matchID)
	to.IsAvailable = false
	to.Version++
}

// refreshSlots re-reads the slots a skipped move touched so the
// snapshot converges with concurrent interactive changes.
func (o *Optimizer) refreshSlots(ctx context.Context, snap *snapshot, move candidateMove) error {
	for _, slotID := range []uuid.UUID{move.fromSlot, move.toSlot} {
		slot, err := o.slots.GetSlot(ctx, slotID)
		if err != nil {
			return err
		}
		snap.slots[slotID] = slot
	}

	// Rebuild the binding for the touched matches from the fresh rows.
	for matchID, slotID := range snap.binding {
		if slotID == move.fromSlot || slotID == move.toSlot {
			fresh := snap.slots[slotID]
			if fresh.MatchID == nil || *fresh.MatchID != matchID {
				delete(snap.binding, matchID)
			}
		}
	}
	for _, slotID := range []uuid.UUID{move.fromSlot, move.toSlot} {
		if m := snap.slots[slotID].MatchID; m != nil {
			snap.binding[*m] = slotID
		}
	}
	return nil
}
