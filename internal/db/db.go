package db

import (
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// Open connects to the SQLite database at dsn with WAL journaling and
// foreign keys enforced. Transactions begin with an immediate write
// lock so concurrent binders queue on the busy timeout and lose through
// the version check, instead of failing a deferred lock upgrade.
func Open(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// MustOpen is Open for main: it exits on failure.
func MustOpen(dsn string) *sqlx.DB {
	db, err := Open(dsn)
	if err != nil {
		log.Fatalln("Failed to connect to DB:", err)
	}
	log.Println("Database connected.")
	return db
}
