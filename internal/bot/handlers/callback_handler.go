package handlers

import (
	"context"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/veloclub/ridebot/internal/card"
	"github.com/veloclub/ridebot/internal/database"
)

// NewParticipationCallbackHandler handles the Join/Thinking/Pass buttons on
// announced ride cards. A press that changes nothing (same button twice, or a
// cancelled ride) only answers the callback; cards are refreshed everywhere
// when the state actually changed.
func NewParticipationCallbackHandler(deps HandlerDeps) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		if update.CallbackQuery == nil {
			return
		}
		log := deps.Logger.With("handler", "participation_callback")
		query := update.CallbackQuery

		state, rideID, ok := parseParticipationData(query.Data)
		answer := func(text string) {
			if _, err := b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
				CallbackQueryID: query.ID,
				Text:            text,
			}); err != nil {
				log.WarnContext(ctx, "Failed to answer callback query", "error", err)
			}
		}
		if !ok {
			log.WarnContext(ctx, "Ignoring malformed callback data", "data", query.Data)
			answer("")
			return
		}

		changed, r, err := deps.Tracker.SetParticipation(ctx, rideID, query.From.ID, state)
		if err != nil {
			log.ErrorContext(ctx, "Failed to record participation",
				"ride_id", rideID, "user_id", query.From.ID, "state", state, "error", err)
			answer(deps.Config.Messages.GeneralError)
			return
		}
		if !changed {
			if r != nil && r.Cancelled {
				answer(deps.Config.Messages.AlreadyCancelled)
			} else {
				answer("")
			}
			return
		}

		answer(ackText(state))
		result := deps.Broadcaster.Synchronize(ctx, r)
		if !result.Success {
			log.WarnContext(ctx, "Card refresh failed after participation change",
				"ride_id", rideID, "errors", len(result.Errors))
		}
	}
}

// parseParticipationData splits "ride:<action>:<id>" callback data into a
// participation state and ride id.
func parseParticipationData(data string) (database.ParticipationState, uint, bool) {
	var state database.ParticipationState
	var rest string
	switch {
	case strings.HasPrefix(data, card.CallbackJoin):
		state, rest = database.ParticipationJoined, strings.TrimPrefix(data, card.CallbackJoin)
	case strings.HasPrefix(data, card.CallbackThinking):
		state, rest = database.ParticipationThinking, strings.TrimPrefix(data, card.CallbackThinking)
	case strings.HasPrefix(data, card.CallbackSkip):
		state, rest = database.ParticipationSkipped, strings.TrimPrefix(data, card.CallbackSkip)
	default:
		return "", 0, false
	}
	id, err := strconv.ParseUint(rest, 10, 32)
	if err != nil || id == 0 {
		return "", 0, false
	}
	return state, uint(id), true
}

func ackText(state database.ParticipationState) string {
	switch state {
	case database.ParticipationJoined:
		return "You're in!"
	case database.ParticipationThinking:
		return "Noted, let us know."
	case database.ParticipationSkipped:
		return "Maybe next time."
	}
	return ""
}
