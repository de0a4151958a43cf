package handlers

import (
	tgbot "github.com/go-telegram/bot"

	"github.com/veloclub/ridebot/internal/card"
)

// RegisteredHandler represents a handler with its registration parameters.
// It encapsulates all information needed to register and document a handler.
type RegisteredHandler struct {
	HandlerType tgbot.HandlerType
	Pattern     string
	Handler     tgbot.HandlerFunc
	Middleware  []tgbot.Middleware
	MatchType   tgbot.MatchType
}

// RegisterAllCommands initializes and returns a map of all available bot
// commands and the participation callback handler.
func RegisterAllCommands(deps HandlerDeps) map[string]RegisteredHandler {
	handlers := make(map[string]RegisteredHandler)

	command := func(name string, h tgbot.HandlerFunc) {
		handlers["/"+name] = RegisteredHandler{
			HandlerType: tgbot.HandlerTypeMessageText,
			Pattern:     name,
			Handler:     h,
			MatchType:   tgbot.MatchTypeCommandStartOnly,
		}
	}

	command("start", NewStartHandler(deps))
	command("help", NewHelpHandler(deps))
	command("newride", NewNewRideHandler(deps))
	command("editride", NewEditRideHandler(deps))
	command("dupride", NewDupRideHandler(deps))
	command("cancelride", NewCancelRideHandler(deps))
	command("resumeride", NewResumeRideHandler(deps))
	command("deleteride", NewDeleteRideHandler(deps))
	command("announce", NewAnnounceHandler(deps))
	command("myrides", NewMyRidesHandler(deps))

	handlers["participation"] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeCallbackQueryData,
		Pattern:     card.CallbackPrefix,
		Handler:     NewParticipationCallbackHandler(deps),
		MatchType:   tgbot.MatchTypePrefix,
	}

	return handlers
}
