package handlers

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewCancelRideHandler creates a handler for /cancelride <id>. The ride is
// cancelled first, then every announced card is refreshed; the reply reports
// the mutation and the propagation outcome separately so a cancelled ride
// with unreachable cards still reads as cancelled.
func NewCancelRideHandler(deps HandlerDeps) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		if update.Message == nil || update.Message.From == nil {
			return
		}
		log := deps.Logger.With("handler", "cancelride")
		msg := update.Message

		rideID, ok := parseRideIDArg(msg.Text)
		if !ok {
			reply(ctx, b, log, msg, fmt.Sprintf(deps.Config.Messages.RideIDUsage, "/cancelride"))
			return
		}

		r, err := deps.Rides.Cancel(ctx, rideID, msg.From.ID)
		if err != nil {
			log.WarnContext(ctx, "Failed to cancel ride",
				"ride_id", rideID, "user_id", msg.From.ID, "error", err)
			reply(ctx, b, log, msg, deps.errorText(err))
			return
		}

		result := deps.Broadcaster.Synchronize(ctx, r)
		reply(ctx, b, log, msg, deps.syncReport(deps.Config.Messages.RideCancelledFmt, result))
	}
}

// NewResumeRideHandler creates a handler for /resumeride <id>, the mirror of
// /cancelride.
func NewResumeRideHandler(deps HandlerDeps) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		if update.Message == nil || update.Message.From == nil {
			return
		}
		log := deps.Logger.With("handler", "resumeride")
		msg := update.Message

		rideID, ok := parseRideIDArg(msg.Text)
		if !ok {
			reply(ctx, b, log, msg, fmt.Sprintf(deps.Config.Messages.RideIDUsage, "/resumeride"))
			return
		}

		r, err := deps.Rides.Resume(ctx, rideID, msg.From.ID)
		if err != nil {
			log.WarnContext(ctx, "Failed to resume ride",
				"ride_id", rideID, "user_id", msg.From.ID, "error", err)
			reply(ctx, b, log, msg, deps.errorText(err))
			return
		}

		result := deps.Broadcaster.Synchronize(ctx, r)
		reply(ctx, b, log, msg, deps.syncReport(deps.Config.Messages.RideResumedFmt, result))
	}
}
