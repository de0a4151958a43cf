package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/veloclub/ridebot/internal/ride"
)

// NewDupRideHandler creates a handler for /dupride <id>, which starts a
// creation wizard prefilled from an existing ride. The date defaults to the
// same time on the following day; every value can be accepted with the skip
// token or overridden step by step.
func NewDupRideHandler(deps HandlerDeps) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		if update.Message == nil || update.Message.From == nil {
			return
		}
		log := deps.Logger.With("handler", "dupride")
		msg := update.Message

		rideID, ok := parseRideIDArg(msg.Text)
		if !ok {
			reply(ctx, b, log, msg, fmt.Sprintf(deps.Config.Messages.RideIDUsage, "/dupride"))
			return
		}

		src, err := deps.Rides.Get(ctx, rideID)
		if err != nil {
			log.WarnContext(ctx, "Failed to load ride for duplication", "ride_id", rideID, "error", err)
			reply(ctx, b, log, msg, deps.errorText(err))
			return
		}

		prefill := &ride.Draft{
			Title:          src.Title,
			Category:       src.Category,
			Date:           src.Date.Add(24 * time.Hour),
			MeetingPoint:   src.MeetingPoint,
			RouteLink:      src.RouteLink,
			Distance:       src.Distance,
			Duration:       src.Duration,
			SpeedMin:       src.SpeedMin,
			SpeedMax:       src.SpeedMax,
			AdditionalInfo: src.AdditionalInfo,
		}

		dest := destinationOf(msg)
		wizardReply := deps.Wizard.StartCreate(msg.From.ID, msg.Chat.ID, dest.ThreadID, prefill)
		log.InfoContext(ctx, "Started ride duplication wizard",
			"user_id", msg.From.ID, "chat_id", msg.Chat.ID, "source_ride_id", rideID)
		reply(ctx, b, log, msg, wizardReply.Text)
	}
}
