package handlers

import (
	"log/slog"

	"github.com/veloclub/ridebot/internal/broadcast"
	"github.com/veloclub/ridebot/internal/config"
	"github.com/veloclub/ridebot/internal/ride"
	"github.com/veloclub/ridebot/internal/wizard"
)

// HandlerDeps provides dependencies for Telegram command handlers.
type HandlerDeps struct {
	Logger      *slog.Logger
	Config      *config.Config
	Rides       *ride.Service
	Tracker     *ride.Tracker
	Broadcaster *broadcast.Broadcaster
	Wizard      *wizard.Wizard
}
