package handlers

import (
	"context"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const myRidesPageSize = 10

// NewMyRidesHandler creates a handler for /myrides [page], listing rides the
// sender created, newest ride date first.
func NewMyRidesHandler(deps HandlerDeps) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		if update.Message == nil || update.Message.From == nil {
			return
		}
		log := deps.Logger.With("handler", "myrides")
		msg := update.Message

		page := 1
		if fields := strings.Fields(msg.Text); len(fields) > 1 {
			if n, err := strconv.Atoi(fields[1]); err == nil && n > 0 {
				page = n
			}
		}
		offset := (page - 1) * myRidesPageSize

		rides, err := deps.Rides.ListByCreator(ctx, msg.From.ID, offset, myRidesPageSize)
		if err != nil {
			log.ErrorContext(ctx, "Failed to list rides", "user_id", msg.From.ID, "error", err)
			reply(ctx, b, log, msg, deps.Config.Messages.GeneralError)
			return
		}
		if len(rides) == 0 {
			reply(ctx, b, log, msg, deps.Config.Messages.NoRides)
			return
		}

		var sb strings.Builder
		for _, r := range rides {
			state := ""
			if r.Cancelled {
				state = " (cancelled)"
			}
			sb.WriteString("#" + strconv.FormatUint(uint64(r.ID), 10) + " — " + r.Title +
				", " + r.Date.Format("02 Jan 15:04") + state + "\n")
		}
		reply(ctx, b, log, msg, strings.TrimRight(sb.String(), "\n"))
	}
}
