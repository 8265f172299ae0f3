package service

import (
	"context"
	"testing"
	"time"

	"github.com/courtside/courtside/internal/schedule"
	"github.com/courtside/courtside/internal/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *env) setAvailability(t *testing.T, tournamentID, refereeID uuid.UUID, from, to time.Time, maxPerDay *int) {
	t.Helper()

	_, err := e.referees.UpsertAvailability(context.Background(), tournamentID, refereeID, AvailabilityInput{
		AvailableFrom:    from,
		AvailableTo:      to,
		MaxMatchesPerDay: maxPerDay,
	})
	require.NoError(t, err)
}

func TestRefereeCRUD(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	created, err := e.referees.CreateReferee(ctx, RefereeInput{
		Name:   "Alex",
		Email:  utils.Ptr("alex@example.com"),
		Active: true,
	})
	require.NoError(t, err)

	got, err := e.referees.GetReferee(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alex", got.Name)

	_, err = e.referees.UpdateReferee(ctx, created.ID, RefereeInput{Name: "Sam", Active: false})
	require.NoError(t, err)

	active, err := e.referees.ListReferees(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, active)

	require.NoError(t, e.referees.DeleteReferee(ctx, created.ID))
	_, err = e.referees.GetReferee(ctx, created.ID)
	assert.Equal(t, schedule.KindNotFound, schedule.KindOf(err))

	_, err = e.referees.CreateReferee(ctx, RefereeInput{Name: ""})
	assert.Equal(t, schedule.KindValidation, schedule.KindOf(err))
}

func TestCheckAvailabilityContainment(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tournamentID, _ := e.createTournament(t, "Court 1")

	// A covers the morning, B covers most of the day.
	refA := e.createReferee(t, "A")
	refB := e.createReferee(t, "B")
	e.setAvailability(t, tournamentID, refA, day.Add(9*time.Hour), day.Add(12*time.Hour), nil)
	e.setAvailability(t, tournamentID, refB, day.Add(10*time.Hour), day.Add(18*time.Hour), nil)

	window := func(fromH, fromM, toH, toM int) schedule.Interval {
		iv, err := schedule.NewInterval(
			day.Add(time.Duration(fromH)*time.Hour+time.Duration(fromM)*time.Minute),
			day.Add(time.Duration(toH)*time.Hour+time.Duration(toM)*time.Minute))
		require.NoError(t, err)
		return iv
	}

	names := func(referees []schedule.Referee) []string {
		var out []string
		for _, r := range referees {
			out = append(out, r.Name)
		}
		return out
	}

	eligible, err := e.referees.CheckAvailability(ctx, tournamentID, window(10, 0, 11, 30))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"A", "B"}, names(eligible))

	// 11:00-12:30 spills past A's window.
	eligible, err = e.referees.CheckAvailability(ctx, tournamentID, window(11, 0, 12, 30))
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, names(eligible))

	eligible, err = e.referees.CheckAvailability(ctx, tournamentID, window(19, 0, 20, 0))
	require.NoError(t, err)
	assert.Empty(t, eligible)
}

func TestCheckAvailabilityExcludesCommitted(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tournamentID, courts := e.createTournament(t, "Court 1")
	matchID := e.createMatch(t, tournamentID)
	refereeID := e.createReferee(t, "Alex")
	e.setAvailability(t, tournamentID, refereeID, day.Add(9*time.Hour), day.Add(18*time.Hour), nil)

	result, err := e.slots.GenerateSlots(ctx, tournamentID, oneDaySpec(courts, day, "10:00", "11:00", 60, 0))
	require.NoError(t, err)
	_, err = e.slots.AssignMatchToSlot(ctx, result.Created[0].ID, matchID)
	require.NoError(t, err)

	// Unconfirmed assignments block time too.
	_, err = e.referees.AssignReferee(ctx, matchID, refereeID, schedule.RoleMain, false)
	require.NoError(t, err)

	overlapping, err := schedule.NewInterval(day.Add(10*time.Hour+30*time.Minute), day.Add(11*time.Hour+30*time.Minute))
	require.NoError(t, err)
	eligible, err := e.referees.CheckAvailability(ctx, tournamentID, overlapping)
	require.NoError(t, err)
	assert.Empty(t, eligible)

	disjoint, err := schedule.NewInterval(day.Add(11*time.Hour), day.Add(12*time.Hour))
	require.NoError(t, err)
	eligible, err = e.referees.CheckAvailability(ctx, tournamentID, disjoint)
	require.NoError(t, err)
	assert.Len(t, eligible, 1)
}

func TestAssignRefereeProvisionalWithoutSlot(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tournamentID, _ := e.createTournament(t, "Court 1")
	matchID := e.createMatch(t, tournamentID)
	refereeID := e.createReferee(t, "Alex")

	// The match has no slot yet, so no time checks apply.
	assignment, err := e.referees.AssignReferee(ctx, matchID, refereeID, schedule.RoleMain, false)
	require.NoError(t, err)
	assert.False(t, assignment.Confirmed)

	// Same role twice is a duplicate; a second role is fine.
	_, err = e.referees.AssignReferee(ctx, matchID, refereeID, schedule.RoleMain, false)
	assert.Equal(t, schedule.KindConflict, schedule.KindOf(err))

	_, err = e.referees.AssignReferee(ctx, matchID, refereeID, schedule.RoleLineJudge, false)
	require.NoError(t, err)

	_, err = e.referees.AssignReferee(ctx, matchID, refereeID, "goalkeeper", false)
	assert.Equal(t, schedule.KindValidation, schedule.KindOf(err))
}

func TestAssignRefereeRejectsOverlap(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tournamentID, courts := e.createTournament(t, "Court 1", "Court 2")
	match1 := e.createMatch(t, tournamentID)
	match2 := e.createMatch(t, tournamentID)
	refereeID := e.createReferee(t, "Alex")

	result, err := e.slots.GenerateSlots(ctx, tournamentID, oneDaySpec(courts, day, "09:00", "10:00", 60, 0))
	require.NoError(t, err)
	require.Len(t, result.Created, 2)

	_, err = e.slots.AssignMatchToSlot(ctx, result.Created[0].ID, match1)
	require.NoError(t, err)
	_, err = e.slots.AssignMatchToSlot(ctx, result.Created[1].ID, match2)
	require.NoError(t, err)

	_, err = e.referees.AssignReferee(ctx, match1, refereeID, schedule.RoleMain, true)
	require.NoError(t, err)

	// Both matches run 09:00-10:00 on parallel courts.
	_, err = e.referees.AssignReferee(ctx, match2, refereeID, schedule.RoleMain, true)
	require.Error(t, err)
	assert.Equal(t, schedule.KindConflict, schedule.KindOf(err))
}

func TestAssignRefereeEnforcesDailyCap(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tournamentID, courts := e.createTournament(t, "Court 1")
	refereeID := e.createReferee(t, "Alex")
	e.setAvailability(t, tournamentID, refereeID, day, day.Add(23*time.Hour), utils.Ptr(2))

	result, err := e.slots.GenerateSlots(ctx, tournamentID, oneDaySpec(courts, day, "09:00", "15:00", 60, 60))
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(result.Created), 3)

	for i := 0; i < 2; i++ {
		matchID := e.createMatch(t, tournamentID)
		_, err = e.slots.AssignMatchToSlot(ctx, result.Created[i].ID, matchID)
		require.NoError(t, err)
		_, err = e.referees.AssignReferee(ctx, matchID, refereeID, schedule.RoleMain, true)
		require.NoError(t, err)
	}

	// The third scheduled match on the same day exceeds the cap.
	third := e.createMatch(t, tournamentID)
	_, err = e.slots.AssignMatchToSlot(ctx, result.Created[2].ID, third)
	require.NoError(t, err)
	_, err = e.referees.AssignReferee(ctx, third, refereeID, schedule.RoleMain, true)
	require.Error(t, err)
	assert.Equal(t, schedule.KindCapacity, schedule.KindOf(err))
}

func TestAssignRefereeSecondRoleOnCappedDay(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tournamentID, courts := e.createTournament(t, "Court 1")
	refereeID := e.createReferee(t, "Alex")
	e.setAvailability(t, tournamentID, refereeID, day, day.Add(23*time.Hour), utils.Ptr(1))

	matchID := e.createMatch(t, tournamentID)
	result, err := e.slots.GenerateSlots(ctx, tournamentID, oneDaySpec(courts, day, "09:00", "10:00", 60, 0))
	require.NoError(t, err)
	_, err = e.slots.AssignMatchToSlot(ctx, result.Created[0].ID, matchID)
	require.NoError(t, err)

	_, err = e.referees.AssignReferee(ctx, matchID, refereeID, schedule.RoleMain, true)
	require.NoError(t, err)

	// A second role on the same match does not grow the distinct-match
	// count, so the cap of one is not exceeded.
	_, err = e.referees.AssignReferee(ctx, matchID, refereeID, schedule.RoleAssistant, true)
	require.NoError(t, err)

	// A different scheduled match on the same day still is.
	other := e.createMatch(t, tournamentID)
	_, err = e.slots.AssignMatchToSlot(ctx, result.Created[0].ID, other)
	require.Error(t, err)
	free, err := e.slots.CreateSlot(ctx, tournamentID, courts[0], day.Add(11*time.Hour), day.Add(12*time.Hour), true)
	require.NoError(t, err)
	_, err = e.slots.AssignMatchToSlot(ctx, free.ID, other)
	require.NoError(t, err)
	_, err = e.referees.AssignReferee(ctx, other, refereeID, schedule.RoleMain, true)
	assert.Equal(t, schedule.KindCapacity, schedule.KindOf(err))
}

func TestConfirmAndRemoveAssignment(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tournamentID, _ := e.createTournament(t, "Court 1")
	matchID := e.createMatch(t, tournamentID)
	refereeID := e.createReferee(t, "Alex")

	_, err := e.referees.AssignReferee(ctx, matchID, refereeID, schedule.RoleMain, false)
	require.NoError(t, err)

	require.NoError(t, e.referees.ConfirmAssignment(ctx, matchID, refereeID, schedule.RoleMain))
	assignments, err := e.referees.ListMatchReferees(ctx, matchID)
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	assert.True(t, assignments[0].Confirmed)

	err = e.referees.ConfirmAssignment(ctx, matchID, refereeID, schedule.RoleAssistant)
	assert.Equal(t, schedule.KindNotFound, schedule.KindOf(err))

	require.NoError(t, e.referees.RemoveReferee(ctx, matchID, refereeID, schedule.RoleMain))
	err = e.referees.RemoveReferee(ctx, matchID, refereeID, schedule.RoleMain)
	assert.Equal(t, schedule.KindNotFound, schedule.KindOf(err))
}

func TestRefereeConflictsReportsOverlappingPairs(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tournamentID, courts := e.createTournament(t, "Court 1", "Court 2")
	refereeID := e.createReferee(t, "Alex")

	result, err := e.slots.GenerateSlots(ctx, tournamentID, oneDaySpec(courts, day, "09:00", "10:00", 60, 0))
	require.NoError(t, err)
	require.Len(t, result.Created, 2)

	match1 := e.createMatch(t, tournamentID)
	match2 := e.createMatch(t, tournamentID)
	_, err = e.slots.AssignMatchToSlot(ctx, result.Created[0].ID, match1)
	require.NoError(t, err)
	_, err = e.slots.AssignMatchToSlot(ctx, result.Created[1].ID, match2)
	require.NoError(t, err)

	// Force the conflicting state directly; the service-level checks
	// would refuse to create it.
	for _, matchID := range []uuid.UUID{match1, match2} {
		_, err = e.db.Exec(`INSERT INTO match_referees (id, match_id, referee_id, role, confirmed, created_at)
			VALUES (?, ?, ?, 'main', 1, ?)`, uuid.New(), matchID, refereeID, time.Now().UTC())
		require.NoError(t, err)
	}

	pairs, err := e.referees.RefereeConflicts(ctx, refereeID, tournamentID, day)
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, refereeID, pairs[0].RefereeID)
	assert.ElementsMatch(t, []uuid.UUID{match1, match2}, []uuid.UUID{pairs[0].MatchA, pairs[0].MatchB})

	// Another day reports nothing.
	pairs, err = e.referees.RefereeConflicts(ctx, refereeID, tournamentID, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Empty(t, pairs)
}

func TestTournamentRefereeRoster(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tournamentID, _ := e.createTournament(t, "Court 1")
	otherTournament, _ := e.createTournament(t, "Court 1")

	// Casey only registered availability, Alex only holds an assignment,
	// Jordan is committed elsewhere.
	casey := e.createReferee(t, "Casey")
	alex := e.createReferee(t, "Alex")
	jordan := e.createReferee(t, "Jordan")

	e.setAvailability(t, tournamentID, casey, day.Add(9*time.Hour), day.Add(18*time.Hour), nil)

	matchID := e.createMatch(t, tournamentID)
	_, err := e.referees.AssignReferee(ctx, matchID, alex, schedule.RoleMain, false)
	require.NoError(t, err)

	elsewhere := e.createMatch(t, otherTournament)
	_, err = e.referees.AssignReferee(ctx, elsewhere, jordan, schedule.RoleMain, true)
	require.NoError(t, err)

	roster, err := e.referees.TournamentReferees(ctx, tournamentID)
	require.NoError(t, err)
	require.Len(t, roster, 2)

	// Ordered by name.
	assert.Equal(t, "Alex", roster[0].Referee.Name)
	assert.Nil(t, roster[0].Availability)
	require.Len(t, roster[0].Assignments, 1)
	assert.Equal(t, matchID, roster[0].Assignments[0].MatchID)

	assert.Equal(t, "Casey", roster[1].Referee.Name)
	require.NotNil(t, roster[1].Availability)
	assert.True(t, roster[1].Availability.AvailableFrom.Equal(day.Add(9*time.Hour)))
	assert.Empty(t, roster[1].Assignments)
}

func TestUpsertAvailabilityValidation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tournamentID, _ := e.createTournament(t, "Court 1")
	refereeID := e.createReferee(t, "Alex")

	_, err := e.referees.UpsertAvailability(ctx, tournamentID, refereeID, AvailabilityInput{
		AvailableFrom: day.Add(12 * time.Hour),
		AvailableTo:   day.Add(9 * time.Hour),
	})
	assert.Equal(t, schedule.KindValidation, schedule.KindOf(err))

	_, err = e.referees.UpsertAvailability(ctx, tournamentID, refereeID, AvailabilityInput{
		AvailableFrom:    day.Add(9 * time.Hour),
		AvailableTo:      day.Add(12 * time.Hour),
		MaxMatchesPerDay: utils.Ptr(-1),
	})
	assert.Equal(t, schedule.KindValidation, schedule.KindOf(err))

	_, err = e.referees.UpsertAvailability(ctx, tournamentID, uuid.New(), AvailabilityInput{
		AvailableFrom: day.Add(9 * time.Hour),
		AvailableTo:   day.Add(12 * time.Hour),
	})
	assert.Equal(t, schedule.KindNotFound, schedule.KindOf(err))
}
