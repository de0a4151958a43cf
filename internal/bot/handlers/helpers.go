// Package handlers contains Telegram bot command, callback, and message
// handlers, along with their registration logic.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/veloclub/ridebot/internal/broadcast"
	"github.com/veloclub/ridebot/internal/ride"
)

// reply sends a plain text message into the chat the update came from,
// staying inside the originating forum thread when there is one.
func reply(ctx context.Context, b *tgbot.Bot, log *slog.Logger, msg *models.Message, text string) {
	params := &tgbot.SendMessageParams{
		ChatID: msg.Chat.ID,
		Text:   text,
	}
	if msg.IsTopicMessage {
		params.MessageThreadID = msg.MessageThreadID
	}
	if _, err := b.SendMessage(ctx, params); err != nil {
		log.ErrorContext(ctx, "Failed to send reply", "chat_id", msg.Chat.ID, "error", err)
	}
}

// destinationOf identifies the chat/thread an update should be announced into.
func destinationOf(msg *models.Message) broadcast.Destination {
	dest := broadcast.Destination{ChatID: msg.Chat.ID}
	if msg.IsTopicMessage {
		dest.ThreadID = msg.MessageThreadID
	}
	return dest
}

// parseRideIDArg extracts the ride id argument from "/cmd <id>".
func parseRideIDArg(text string) (uint, bool) {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return 0, false
	}
	id, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// errorText maps a ride operation error onto its configured user-facing
// phrasing. Unknown errors fall back to the general error message.
func (d HandlerDeps) errorText(err error) string {
	switch {
	case errors.Is(err, ride.ErrNotFound):
		return d.Config.Messages.RideNotFound
	case errors.Is(err, ride.ErrNotCreator):
		return d.Config.Messages.NotCreator
	case errors.Is(err, ride.ErrAlreadyCancelled):
		return d.Config.Messages.AlreadyCancelled
	case errors.Is(err, ride.ErrNotCancelled):
		return d.Config.Messages.NotCancelled
	case errors.Is(err, broadcast.ErrDuplicateDestination):
		return d.Config.Messages.AlreadyAnnounced
	}
	if ve := ride.AsValidation(err); ve != nil {
		return ve.Error()
	}
	return d.Config.Messages.GeneralError
}

// syncReport phrases a synchronize outcome using the given format for the
// refreshed count, e.g. "Ride cancelled. 2 message(s) updated."
func (d HandlerDeps) syncReport(format string, result broadcast.Result) string {
	text := fmt.Sprintf(format, result.Updated)
	if result.Removed > 0 {
		text += fmt.Sprintf(d.Config.Messages.RemovedSuffixFmt, result.Removed)
	}
	return text
}
