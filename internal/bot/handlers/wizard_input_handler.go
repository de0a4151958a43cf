package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewWizardInputHandler creates the default message handler. Plain text from a
// user with an active wizard session is fed into the wizard; everything else
// is ignored so group chatter never triggers the bot.
func NewWizardInputHandler(deps HandlerDeps) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		if update.Message == nil || update.Message.From == nil || update.Message.Text == "" {
			return
		}
		log := deps.Logger.With("handler", "wizard_input")
		msg := update.Message

		wizardReply, consumed := deps.Wizard.HandleText(ctx, msg.From.ID, msg.Chat.ID, msg.Text)
		if !consumed {
			return
		}
		if wizardReply.Text != "" {
			reply(ctx, b, log, msg, wizardReply.Text)
		}
	}
}
