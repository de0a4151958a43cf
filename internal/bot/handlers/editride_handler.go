package handlers

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/veloclub/ridebot/internal/ride"
)

// NewEditRideHandler creates a handler for /editride <id>, which starts the
// wizard prefilled with the ride's current fields. Each step shows the stored
// value; the skip token keeps it.
func NewEditRideHandler(deps HandlerDeps) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		if update.Message == nil || update.Message.From == nil {
			return
		}
		log := deps.Logger.With("handler", "editride")
		msg := update.Message

		rideID, ok := parseRideIDArg(msg.Text)
		if !ok {
			reply(ctx, b, log, msg, fmt.Sprintf(deps.Config.Messages.RideIDUsage, "/editride"))
			return
		}

		r, err := deps.Rides.Get(ctx, rideID)
		if err != nil {
			log.WarnContext(ctx, "Failed to load ride for editing", "ride_id", rideID, "error", err)
			reply(ctx, b, log, msg, deps.errorText(err))
			return
		}
		if !ride.IsCreator(r, msg.From.ID) {
			reply(ctx, b, log, msg, deps.Config.Messages.NotCreator)
			return
		}

		dest := destinationOf(msg)
		wizardReply := deps.Wizard.StartUpdate(msg.From.ID, msg.Chat.ID, dest.ThreadID, r)
		log.InfoContext(ctx, "Started ride edit wizard",
			"user_id", msg.From.ID, "chat_id", msg.Chat.ID, "ride_id", rideID)
		reply(ctx, b, log, msg, wizardReply.Text)
	}
}
