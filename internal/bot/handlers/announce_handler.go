package handlers

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewAnnounceHandler creates a handler for /announce <id>, posting the ride
// card into the chat (and thread) the command came from. Announcing twice
// into the same chat/thread is rejected; a different thread of the same chat
// is a new destination.
func NewAnnounceHandler(deps HandlerDeps) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		if update.Message == nil || update.Message.From == nil {
			return
		}
		log := deps.Logger.With("handler", "announce")
		msg := update.Message

		rideID, ok := parseRideIDArg(msg.Text)
		if !ok {
			reply(ctx, b, log, msg, fmt.Sprintf(deps.Config.Messages.RideIDUsage, "/announce"))
			return
		}

		r, err := deps.Rides.Get(ctx, rideID)
		if err != nil {
			reply(ctx, b, log, msg, deps.errorText(err))
			return
		}

		dest := destinationOf(msg)
		if _, err := deps.Broadcaster.Announce(ctx, r, dest); err != nil {
			log.WarnContext(ctx, "Failed to announce ride",
				"ride_id", rideID, "chat_id", dest.ChatID, "thread_id", dest.ThreadID, "error", err)
			reply(ctx, b, log, msg, deps.errorText(err))
			return
		}
	}
}
