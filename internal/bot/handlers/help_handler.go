package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewHelpHandler creates a handler for the /help command.
func NewHelpHandler(deps HandlerDeps) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		if update.Message == nil {
			return
		}
		log := deps.Logger.With("handler", "help")
		reply(ctx, b, log, update.Message, deps.Config.Messages.Help)
	}
}
