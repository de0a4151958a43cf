// Package tasks implements the bot's scheduled background tasks: wizard
// session sweeping and database maintenance.
package tasks

import (
	"log/slog"

	"github.com/veloclub/ridebot/internal/config"
	"github.com/veloclub/ridebot/internal/database"
	"github.com/veloclub/ridebot/internal/wizard"
)

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger   *slog.Logger
	Store    database.Store
	Sessions *wizard.SessionStore
	Config   *config.Config
}
