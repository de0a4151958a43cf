package handlers

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewDeleteRideHandler creates a handler for /deleteride <id>. Card messages
// are removed best-effort before the aggregate is deleted; a card that can't
// be removed never blocks the deletion.
func NewDeleteRideHandler(deps HandlerDeps) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		if update.Message == nil || update.Message.From == nil {
			return
		}
		log := deps.Logger.With("handler", "deleteride")
		msg := update.Message

		rideID, ok := parseRideIDArg(msg.Text)
		if !ok {
			reply(ctx, b, log, msg, fmt.Sprintf(deps.Config.Messages.RideIDUsage, "/deleteride"))
			return
		}

		r, err := deps.Rides.Get(ctx, rideID)
		if err != nil {
			reply(ctx, b, log, msg, deps.errorText(err))
			return
		}

		deleted, err := deps.Rides.Delete(ctx, rideID, msg.From.ID)
		if err != nil {
			log.WarnContext(ctx, "Failed to delete ride",
				"ride_id", rideID, "user_id", msg.From.ID, "error", err)
			reply(ctx, b, log, msg, deps.errorText(err))
			return
		}
		if !deleted {
			reply(ctx, b, log, msg, deps.Config.Messages.RideNotFound)
			return
		}

		deps.Broadcaster.Remove(ctx, r)
		reply(ctx, b, log, msg, deps.Config.Messages.RideDeleted)
	}
}
