package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewStartHandler creates a handler for the /start command.
func NewStartHandler(deps HandlerDeps) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		if update.Message == nil {
			return
		}
		log := deps.Logger.With("handler", "start")
		reply(ctx, b, log, update.Message, deps.Config.Messages.Welcome)
	}
}
