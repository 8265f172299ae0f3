package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/courtside/courtside/internal/schedule"
	"github.com/courtside/courtside/internal/store"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

// setupTestDB creates a throwaway SQLite database and applies migrations.
// A file-backed database is used so that queries running outside an open
// transaction see the same data; every pooled connection to ::memory:
// would get its own empty database. Transactions take the write lock
// immediately, matching db.Open, so concurrent binders queue instead of
// failing a deferred lock upgrade.
func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") + "?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate"
	database, err := sqlx.Connect("sqlite3", dsn)
	require.NoError(t, err, "Failed to connect to test DB")

	_, err = database.Exec("PRAGMA foreign_keys = ON;")
	require.NoError(t, err)

	driver, err := sqlite3.WithInstance(database.DB, &sqlite3.Config{})
	require.NoError(t, err, "Failed to create migrate driver instance")

	m, err := migrate.NewWithDatabaseInstance(
		"file://../../migrations",
		"sqlite3",
		driver,
	)
	require.NoError(t, err, "Failed to create migrate instance")

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		require.NoError(t, err, "Failed to apply migrations")
	}

	return database
}

// env bundles the engine's services over one test database.
type env struct {
	db *sqlx.DB

	slots       *SlotService
	referees    *RefereeService
	tournaments *TournamentService
	matches     *MatchService
	optimizer   *Optimizer

	slotStore *store.SlotStore
}

func newEnv(t *testing.T) *env {
	t.Helper()

	db := setupTestDB(t)
	t.Cleanup(func() { db.Close() })

	slotStore := store.NewSlotStore(db)
	matchStore := store.NewMatchStore(db)
	tournamentStore := store.NewTournamentStore(db)
	refereeStore := store.NewRefereeStore(db)

	return &env{
		db:          db,
		slots:       NewSlotService(db, slotStore, matchStore, tournamentStore, refereeStore),
		referees:    NewRefereeService(db, refereeStore, matchStore, slotStore),
		tournaments: NewTournamentService(db, tournamentStore, matchStore),
		matches:     NewMatchService(db, matchStore, tournamentStore, slotStore),
		optimizer:   NewOptimizer(db, slotStore, matchStore, refereeStore),
		slotStore:   slotStore,
	}
}

// createTournament makes a tournament with the given court names and
// returns its id plus the court ids in declaration order.
func (e *env) createTournament(t *testing.T, courts ...string) (uuid.UUID, []uuid.UUID) {
	t.Helper()

	data, err := e.tournaments.CreateTournament(context.Background(), "Spring Open", courts)
	require.NoError(t, err)

	ids := make([]uuid.UUID, len(data.Courts))
	for i, c := range data.Courts {
		ids[i] = c.ID
	}
	return data.Tournament.ID, ids
}

func (e *env) createMatch(t *testing.T, tournamentID uuid.UUID) uuid.UUID {
	t.Helper()

	match, err := e.matches.CreateMatch(context.Background(), tournamentID, MatchInput{})
	require.NoError(t, err)
	return match.ID
}

func (e *env) createReferee(t *testing.T, name string) uuid.UUID {
	t.Helper()

	referee, err := e.referees.CreateReferee(context.Background(), RefereeInput{Name: name, Active: true})
	require.NoError(t, err)
	return referee.ID
}

func uuidOf(s string) uuid.UUID {
	return uuid.MustParse(s)
}

// oneDaySpec generates slots on a single day within the given window.
func oneDaySpec(courtIDs []uuid.UUID, day time.Time, from, to string, slotMin, breakMin int) schedule.BulkSlotSpec {
	return schedule.BulkSlotSpec{
		CourtIDs:       courtIDs,
		StartDate:      day,
		EndDate:        day,
		SlotDuration:   time.Duration(slotMin) * time.Minute,
		BreakDuration:  time.Duration(breakMin) * time.Minute,
		DailyStartTime: from,
		DailyEndTime:   to,
	}
}
