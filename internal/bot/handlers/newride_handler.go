package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewNewRideHandler creates a handler for /newride, which starts the ride
// creation wizard for the sender in the current chat.
func NewNewRideHandler(deps HandlerDeps) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		if update.Message == nil || update.Message.From == nil {
			return
		}
		log := deps.Logger.With("handler", "newride")
		msg := update.Message
		dest := destinationOf(msg)

		wizardReply := deps.Wizard.StartCreate(msg.From.ID, msg.Chat.ID, dest.ThreadID, nil)
		log.InfoContext(ctx, "Started ride creation wizard",
			"user_id", msg.From.ID, "chat_id", msg.Chat.ID)
		reply(ctx, b, log, msg, wizardReply.Text)
	}
}
