package main

import (
	"log"
	"net/http"
	"os"

	"github.com/courtside/courtside/internal/db"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const (
	defaultAddr    = ":8080"
	defaultDB      = "courtside.db"
	migrationsPath = "file://migrations"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "courtside",
		Short: "Tournament court and referee scheduling service",
	}

	var addr, dbPath string
	serveCmd := &cobra.Command{
		Use:          "serve",
		Short:        "Run the scheduling API server",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(addr, dbPath)
		},
	}
	serveCmd.Flags().StringVar(&addr, "addr", "", "Listen address (default $COURTSIDE_ADDR or :8080)")
	serveCmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (default $COURTSIDE_DB or courtside.db)")

	var migrateDBPath string
	migrateCmd := &cobra.Command{
		Use:          "migrate",
		Short:        "Apply pending database migrations",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(migrateDBPath)
		},
	}
	migrateCmd.Flags().StringVar(&migrateDBPath, "db", "", "SQLite database path (default $COURTSIDE_DB or courtside.db)")

	rootCmd.AddCommand(serveCmd, migrateCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func runServe(addr, dbPath string) error {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	if addr == "" {
		addr = envOr("COURTSIDE_ADDR", defaultAddr)
	}
	if dbPath == "" {
		dbPath = envOr("COURTSIDE_DB", defaultDB)
	}

	database := db.MustOpen(dbPath)
	defer database.Close()

	if err := db.RunMigrations(database.DB, migrationsPath); err != nil {
		return err
	}

	router := newRouter(database)

	log.Printf("Server starting on %s", addr)
	return http.ListenAndServe(addr, router)
}

func runMigrate(dbPath string) error {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	if dbPath == "" {
		dbPath = envOr("COURTSIDE_DB", defaultDB)
	}

	database := db.MustOpen(dbPath)
	defer database.Close()

	if err := db.RunMigrations(database.DB, migrationsPath); err != nil {
		return err
	}
	log.Println("Migrations applied.")
	return nil
}
