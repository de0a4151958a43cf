package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/veloclub/ridebot/internal/broadcast"
	"github.com/veloclub/ridebot/internal/card"
	"github.com/veloclub/ridebot/internal/database"
)

// goneDescriptions are Bad Request descriptions that mean the destination can
// never be delivered to again. Anything else under bad request is a caller bug
// or a transient platform hiccup and must not prune the destination.
var goneDescriptions = []string{
	"message to edit not found",
	"message to delete not found",
	"chat not found",
	"group chat was deleted",
	"bot was kicked",
	"message can't be edited",
	"MESSAGE_ID_INVALID",
}

// Gateway delivers rendered ride cards through the Telegram Bot API and
// classifies delivery failures into permanent versus transient.
type Gateway struct {
	bot    *bot.Bot
	logger *slog.Logger
}

// NewGateway wraps a connected Telegram bot instance.
func NewGateway(b *bot.Bot, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Gateway{
		bot:    b,
		logger: logger.With("component", "telegram_gateway"),
	}
}

// Send posts a new card into the destination chat (and thread, if any).
func (g *Gateway) Send(ctx context.Context, dest broadcast.Destination, rendered card.Rendered) (int, error) {
	params := &bot.SendMessageParams{
		ChatID:    dest.ChatID,
		Text:      rendered.Text,
		ParseMode: models.ParseModeHTML,
	}
	if dest.ThreadID != 0 {
		params.MessageThreadID = dest.ThreadID
	}
	if rendered.Keyboard != nil {
		params.ReplyMarkup = rendered.Keyboard
	}

	msg, err := g.bot.SendMessage(ctx, params)
	if err != nil {
		return 0, g.classify(err)
	}
	return msg.ID, nil
}

// Edit replaces the card at an existing message. Telegram rejects edits that
// change nothing; that case is reported as success since the card is already
// in sync.
func (g *Gateway) Edit(ctx context.Context, ref database.MessageRef, rendered card.Rendered) error {
	params := &bot.EditMessageTextParams{
		ChatID:    ref.ChatID,
		MessageID: ref.MessageID,
		Text:      rendered.Text,
		ParseMode: models.ParseModeHTML,
	}
	if rendered.Keyboard != nil {
		params.ReplyMarkup = rendered.Keyboard
	}

	_, err := g.bot.EditMessageText(ctx, params)
	if err != nil {
		if strings.Contains(err.Error(), "message is not modified") {
			return nil
		}
		return g.classify(err)
	}
	return nil
}

// Delete removes the card message.
func (g *Gateway) Delete(ctx context.Context, ref database.MessageRef) error {
	_, err := g.bot.DeleteMessage(ctx, &bot.DeleteMessageParams{
		ChatID:    ref.ChatID,
		MessageID: ref.MessageID,
	})
	if err != nil {
		return g.classify(err)
	}
	return nil
}

// classify wraps permanently-unreachable failures with
// broadcast.ErrDestinationGone. Rate limits, timeouts, and anything
// unrecognized stay transient so the destination is retried later.
func (g *Gateway) classify(err error) error {
	if errors.Is(err, bot.ErrorForbidden) || errors.Is(err, bot.ErrorNotFound) {
		return fmt.Errorf("%w: %v", broadcast.ErrDestinationGone, err)
	}
	if errors.Is(err, bot.ErrorBadRequest) {
		desc := err.Error()
		for _, gone := range goneDescriptions {
			if strings.Contains(desc, gone) {
				return fmt.Errorf("%w: %v", broadcast.ErrDestinationGone, err)
			}
		}
	}
	return err
}
