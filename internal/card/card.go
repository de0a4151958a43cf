// Package card renders the interactive ride card posted into chats: an HTML
// body describing the ride plus the participation inline keyboard.
package card

import (
	"fmt"
	"html"
	"strings"

	"github.com/go-telegram/bot/models"

	"github.com/veloclub/ridebot/internal/database"
)

// Callback data prefixes for the participation buttons. The callback handler
// matches on CallbackPrefix.
const (
	CallbackPrefix   = "ride:"
	CallbackJoin     = "ride:join:"
	CallbackThinking = "ride:thinking:"
	CallbackSkip     = "ride:skip:"
)

// Rendered is one ready-to-send card: body text (HTML parse mode) and the
// participation keyboard. Cancelled rides carry no keyboard.
type Rendered struct {
	Text     string
	Keyboard *models.InlineKeyboardMarkup
}

// Renderer builds ride cards. It is stateless and safe for concurrent use.
type Renderer struct {
	dateLayout string
}

// NewRenderer creates a card renderer using the given time layout for the
// ride date line.
func NewRenderer(dateLayout string) *Renderer {
	if dateLayout == "" {
		dateLayout = "Mon, 02 Jan 2006 15:04"
	}
	return &Renderer{dateLayout: dateLayout}
}

// Render produces the card for the ride's current state.
func (r *Renderer) Render(ride *database.Ride) Rendered {
	var b strings.Builder

	if ride.Cancelled {
		b.WriteString("❌ <b>CANCELLED</b>\n")
	}
	fmt.Fprintf(&b, "🚴 <b>%s</b>\n", html.EscapeString(ride.Title))
	if ride.Category != "" {
		fmt.Fprintf(&b, "🏷 %s\n", html.EscapeString(ride.Category))
	}
	fmt.Fprintf(&b, "📅 %s\n", ride.Date.Format(r.dateLayout))
	if ride.MeetingPoint != "" {
		fmt.Fprintf(&b, "📍 %s\n", html.EscapeString(ride.MeetingPoint))
	}
	if ride.RouteLink != "" {
		fmt.Fprintf(&b, "🗺 <a href=\"%s\">Route</a>\n", html.EscapeString(ride.RouteLink))
	}

	var details []string
	if ride.Distance != "" {
		details = append(details, html.EscapeString(ride.Distance)+" km")
	}
	if ride.Duration != "" {
		details = append(details, html.EscapeString(ride.Duration)+" h")
	}
	if speed := formatSpeed(ride.SpeedMin, ride.SpeedMax); speed != "" {
		details = append(details, speed)
	}
	if len(details) > 0 {
		b.WriteString("ℹ️ " + strings.Join(details, " · ") + "\n")
	}
	if ride.AdditionalInfo != "" {
		b.WriteString("\n" + html.EscapeString(ride.AdditionalInfo) + "\n")
	}

	joined, thinking, skipped := countStates(ride.Participants)
	if joined+thinking+skipped > 0 {
		fmt.Fprintf(&b, "\n👥 Joined: %d · Thinking: %d · Passed: %d\n", joined, thinking, skipped)
	}

	rendered := Rendered{Text: strings.TrimRight(b.String(), "\n")}
	if !ride.Cancelled {
		rendered.Keyboard = participationKeyboard(ride.ID)
	}
	return rendered
}

func formatSpeed(minSpeed, maxSpeed string) string {
	switch {
	case minSpeed != "" && maxSpeed != "":
		return fmt.Sprintf("%s–%s km/h", html.EscapeString(minSpeed), html.EscapeString(maxSpeed))
	case minSpeed != "":
		return fmt.Sprintf("from %s km/h", html.EscapeString(minSpeed))
	case maxSpeed != "":
		return fmt.Sprintf("up to %s km/h", html.EscapeString(maxSpeed))
	}
	return ""
}

func countStates(participants map[int64]database.ParticipationState) (joined, thinking, skipped int) {
	for _, state := range participants {
		switch state {
		case database.ParticipationJoined:
			joined++
		case database.ParticipationThinking:
			thinking++
		case database.ParticipationSkipped:
			skipped++
		}
	}
	return joined, thinking, skipped
}

func participationKeyboard(rideID uint) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{{
			{Text: "✅ Join", CallbackData: fmt.Sprintf("%s%d", CallbackJoin, rideID)},
			{Text: "🤔 Thinking", CallbackData: fmt.Sprintf("%s%d", CallbackThinking, rideID)},
			{Text: "🙅 Pass", CallbackData: fmt.Sprintf("%s%d", CallbackSkip, rideID)},
		}},
	}
}
