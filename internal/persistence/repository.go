package persistence

import "futures-roll-backtest/internal/models"

// RunRepository defines the interface for persisting finished backtest runs.
// It abstracts the underlying storage mechanism (e.g., BadgerDB, in-memory)
// from the rest of the application.
type RunRepository interface {
	// SaveRun persists a finished backtest result and returns its run ID.
	SaveRun(result *models.BacktestResult) (string, error)

	// LoadRun loads a previously saved result by run ID.
	// If no run is found, it returns (nil, nil).
	LoadRun(runID string) (*models.BacktestResult, error)

	// ListRuns returns the IDs of all saved runs.
	ListRuns() ([]string, error)

	// Close gracefully closes the connection to the database.
	Close() error
}
