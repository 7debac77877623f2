// Package cmd implements timetablectl, an offline operator tool for
// inspecting the static schedule graph a feed loads at startup, without
// bringing up NATS or the diagnostics web service.
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/otptransit/timetablecore/business/data/scheduleload"
	"github.com/otptransit/timetablecore/foundation/database"
)

var rootCmd = &cobra.Command{
	Use:          "timetablectl",
	Short:        "Inspects a feed's static schedule graph",
	Long:         "Loads and inspects the TripPattern/ServiceCalendar graph a timetable updater would load at startup",
	SilenceUsage: true,
}

var (
	dbUser       string
	dbPassword   string
	dbHost       string
	dbName       string
	dbDisableTLS bool
	feedID       string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&dbUser, "db-user", "postgres", "database user")
	rootCmd.PersistentFlags().StringVar(&dbPassword, "db-password", "postgres", "database password")
	rootCmd.PersistentFlags().StringVar(&dbHost, "db-host", "0.0.0.0", "database host")
	rootCmd.PersistentFlags().StringVar(&dbName, "db-name", "postgres", "database name")
	rootCmd.PersistentFlags().BoolVar(&dbDisableTLS, "db-disable-tls", true, "disable database TLS")
	rootCmd.PersistentFlags().StringVar(&feedID, "feed-id", "", "feed ID to load (required)")

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(dumpCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func requireFeedID() error {
	if feedID == "" {
		return fmt.Errorf("--feed-id is required")
	}
	return nil
}

func loadGraph() (*scheduleload.ServiceGraph, error) {
	if err := requireFeedID(); err != nil {
		return nil, err
	}

	db, err := database.Open(database.Config{
		User:       dbUser,
		Password:   dbPassword,
		Host:       dbHost,
		Name:       dbName,
		DisableTLS: dbDisableTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to db: %w", err)
	}
	defer closeDB(db)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	loader := scheduleload.NewLoader(db)
	graph, err := loader.Load(ctx, feedID)
	if err != nil {
		return nil, fmt.Errorf("loading schedule graph: %w", err)
	}
	return graph, nil
}

func closeDB(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		fmt.Printf("error closing database: %v\n", err)
	}
}
