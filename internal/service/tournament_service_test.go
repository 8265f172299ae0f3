package service

import (
	"context"
	"testing"
	"time"

	"github.com/courtside/courtside/internal/schedule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTournamentWithCourts(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	data, err := e.tournaments.CreateTournament(ctx, "Spring Open", []string{"Court 1", "Court 2"})
	require.NoError(t, err)
	require.Len(t, data.Courts, 2)

	got, err := e.tournaments.GetTournamentData(ctx, data.Tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, "Spring Open", got.Tournament.Name)
	assert.Len(t, got.Courts, 2)
	assert.Empty(t, got.Matches)

	_, err = e.tournaments.CreateTournament(ctx, "", nil)
	assert.Equal(t, schedule.KindValidation, schedule.KindOf(err))
}

func TestDeleteTournamentCascades(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tournamentID, courts := e.createTournament(t, "Court 1")
	matchID := e.createMatch(t, tournamentID)
	refereeID := e.createReferee(t, "Alex")

	result, err := e.slots.GenerateSlots(ctx, tournamentID, oneDaySpec(courts, day, "09:00", "10:00", 60, 0))
	require.NoError(t, err)
	_, err = e.slots.AssignMatchToSlot(ctx, result.Created[0].ID, matchID)
	require.NoError(t, err)
	_, err = e.referees.AssignReferee(ctx, matchID, refereeID, schedule.RoleMain, true)
	require.NoError(t, err)

	require.NoError(t, e.tournaments.DeleteTournament(ctx, tournamentID))

	var slots, matches, assignments, referees int
	require.NoError(t, e.db.Get(&slots, "SELECT COUNT(*) FROM time_slots"))
	require.NoError(t, e.db.Get(&matches, "SELECT COUNT(*) FROM matches"))
	require.NoError(t, e.db.Get(&assignments, "SELECT COUNT(*) FROM match_referees"))
	require.NoError(t, e.db.Get(&referees, "SELECT COUNT(*) FROM referees"))

	assert.Equal(t, 0, slots)
	assert.Equal(t, 0, matches)
	assert.Equal(t, 0, assignments)
	assert.Equal(t, 1, referees, "referees are global and survive the cascade")
}

func TestAddAndRenameCourt(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tournamentID, _ := e.createTournament(t, "Court 1")

	court, err := e.tournaments.AddCourt(ctx, tournamentID, "Court 2")
	require.NoError(t, err)

	require.NoError(t, e.tournaments.RenameCourt(ctx, court.ID, "Show Court"))

	data, err := e.tournaments.GetTournamentData(ctx, tournamentID)
	require.NoError(t, err)
	require.Len(t, data.Courts, 2)

	names := []string{data.Courts[0].Name, data.Courts[1].Name}
	assert.Contains(t, names, "Show Court")
}

func TestMatchServiceCreateAndFetch(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tournamentID, courts := e.createTournament(t, "Court 1")

	duration := 75
	match, err := e.matches.CreateMatch(ctx, tournamentID, MatchInput{DurationMinutes: &duration})
	require.NoError(t, err)
	assert.Nil(t, match.CourtID)
	assert.Nil(t, match.StartTime)

	withSlot, err := e.matches.GetMatchWithSlot(ctx, match.ID)
	require.NoError(t, err)
	assert.Nil(t, withSlot.Slot)

	result, err := e.slots.GenerateSlots(ctx, tournamentID, oneDaySpec(courts, day, "09:00", "10:30", 90, 0))
	require.NoError(t, err)
	_, err = e.slots.AssignMatchToSlot(ctx, result.Created[0].ID, match.ID)
	require.NoError(t, err)

	withSlot, err = e.matches.GetMatchWithSlot(ctx, match.ID)
	require.NoError(t, err)
	require.NotNil(t, withSlot.Slot)
	assert.True(t, withSlot.Slot.StartTime.Equal(day.Add(9*time.Hour)))

	bad := -5
	_, err = e.matches.CreateMatch(ctx, tournamentID, MatchInput{DurationMinutes: &bad})
	assert.Equal(t, schedule.KindValidation, schedule.KindOf(err))
}
