// Package wizard implements the multi-turn conversation that collects or
// edits ride fields. One session per (user, chat); each inbound message
// answers the current step, invalid input re-prompts, and nothing is
// persisted until the final confirmation.
package wizard

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/veloclub/ridebot/internal/broadcast"
	"github.com/veloclub/ridebot/internal/database"
	"github.com/veloclub/ridebot/internal/ride"
)

// SkipToken keeps the prefilled or default value for the current step and
// advances to the next one.
const SkipToken = "-"

const cancelWord = "cancel"

// Reply is the wizard's answer to one inbound message.
type Reply struct {
	Text string
	// Done is set when the session ended (confirmed or cancelled).
	Done bool
}

// RideWriter is the slice of the ride service the wizard commits through.
type RideWriter interface {
	Create(ctx context.Context, draft *ride.Draft, creatorID int64) (*database.Ride, error)
	Update(ctx context.Context, id uint, patch *database.RidePatch, userID int64) (*database.Ride, error)
}

// Announcer is the slice of the broadcaster the wizard publishes through.
type Announcer interface {
	Announce(ctx context.Context, r *database.Ride, dest broadcast.Destination) (*database.MessageRef, error)
	Synchronize(ctx context.Context, r *database.Ride) broadcast.Result
}

// Wizard drives ride creation and editing conversations.
type Wizard struct {
	sessions    *SessionStore
	rides       RideWriter
	broadcaster Announcer
	logger      *slog.Logger
	now         func() time.Time
}

// New creates a wizard over the given session store, ride writer, and
// announcer.
func New(sessions *SessionStore, rides RideWriter, broadcaster Announcer, logger *slog.Logger) *Wizard {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Wizard{
		sessions:    sessions,
		rides:       rides,
		broadcaster: broadcaster,
		logger:      logger.With("component", "wizard"),
		now:         time.Now,
	}
}

// StartCreate opens a creation session. prefill may carry values copied from
// an existing ride (duplicate flow); the user accepts them per step with the
// skip token.
func (w *Wizard) StartCreate(userID, chatID int64, threadID int, prefill *ride.Draft) Reply {
	session := &Session{
		UserID:   userID,
		ChatID:   chatID,
		ThreadID: threadID,
		Step:     StepTitle,
	}
	if prefill != nil {
		session.Draft = *prefill
	}
	w.sessions.Put(session)
	w.logger.Info("Wizard session started", "user_id", userID, "chat_id", chatID, "update", false)
	return Reply{Text: w.prompt(session)}
}

// StartUpdate opens an editing session seeded from the ride's current fields.
func (w *Wizard) StartUpdate(userID, chatID int64, threadID int, r *database.Ride) Reply {
	session := &Session{
		UserID:   userID,
		ChatID:   chatID,
		ThreadID: threadID,
		Step:     StepTitle,
		IsUpdate: true,
		RideID:   r.ID,
		Draft: ride.Draft{
			Title:          r.Title,
			Category:       r.Category,
			Date:           r.Date,
			MeetingPoint:   r.MeetingPoint,
			RouteLink:      r.RouteLink,
			Distance:       r.Distance,
			Duration:       r.Duration,
			SpeedMin:       r.SpeedMin,
			SpeedMax:       r.SpeedMax,
			AdditionalInfo: r.AdditionalInfo,
		},
	}
	w.sessions.Put(session)
	w.logger.Info("Wizard session started", "user_id", userID, "chat_id", chatID, "update", true, "ride_id", r.ID)
	return Reply{Text: w.prompt(session)}
}

// Active reports whether a live session exists for the (user, chat) pair.
func (w *Wizard) Active(userID, chatID int64) bool {
	return w.sessions.Get(userID, chatID) != nil
}

// Cancel discards the session, if any, with no persisted side effects.
func (w *Wizard) Cancel(userID, chatID int64) bool {
	return w.sessions.Delete(userID, chatID)
}

// HandleText feeds one inbound message into the session. The second return
// value reports whether a session consumed the input; when false the message
// was not meant for the wizard.
func (w *Wizard) HandleText(ctx context.Context, userID, chatID int64, text string) (Reply, bool) {
	session := w.sessions.Get(userID, chatID)
	if session == nil {
		return Reply{}, false
	}

	text = strings.TrimSpace(text)
	if strings.EqualFold(text, cancelWord) {
		w.sessions.Delete(userID, chatID)
		w.logger.Info("Wizard session cancelled", "user_id", userID, "chat_id", chatID)
		return Reply{Text: "Cancelled. Nothing was saved.", Done: true}, true
	}

	if session.Step == StepConfirm {
		return w.handleConfirm(ctx, session, text), true
	}

	if reply, ok := w.applyInput(session, text); !ok {
		return reply, true
	}

	session.Step++
	w.sessions.Put(session)
	return Reply{Text: w.prompt(session)}, true
}

// applyInput stores the answer for the current step. Returns ok=false with a
// re-prompt reply when the input is invalid; the step does not advance.
func (w *Wizard) applyInput(session *Session, text string) (Reply, bool) {
	skip := text == SkipToken
	draft := &session.Draft

	switch session.Step {
	case StepTitle:
		if skip {
			if draft.Title == "" {
				return Reply{Text: "A title is required.\n\n" + w.prompt(session)}, false
			}
			return Reply{}, true
		}
		if text == "" {
			return Reply{Text: "A title is required.\n\n" + w.prompt(session)}, false
		}
		draft.Title = text

	case StepCategory:
		if !skip {
			draft.Category = text
		}

	case StepDate:
		if skip {
			if draft.Date.IsZero() {
				return Reply{Text: "A date is required.\n\n" + w.prompt(session)}, false
			}
			return Reply{}, true
		}
		parsed, err := ride.ParseDate(text, w.now())
		if err != nil {
			return Reply{Text: err.Error() + "\n\n" + w.prompt(session)}, false
		}
		draft.Date = parsed

	case StepMeetingPoint:
		if !skip {
			draft.MeetingPoint = text
		}

	case StepRoute:
		if !skip {
			draft.RouteLink = text
		}

	case StepDistance:
		if !skip {
			draft.Distance = text
		}

	case StepDuration:
		if !skip {
			draft.Duration = text
		}

	case StepSpeed:
		if !skip {
			lo, hi := splitSpeed(text)
			draft.SpeedMin = lo
			draft.SpeedMax = hi
		}

	case StepInfo:
		if !skip {
			draft.AdditionalInfo = text
		}
	}

	return Reply{}, true
}

// handleConfirm commits the gathered draft. On a validation error the session
// stays at Confirm so the user can fix a field without restarting.
func (w *Wizard) handleConfirm(ctx context.Context, session *Session, text string) Reply {
	switch strings.ToLower(text) {
	case "yes", "y", "ok", "confirm":
	default:
		return Reply{Text: "Send 'yes' to save, or 'cancel' to discard.\n\n" + w.summary(session)}
	}

	if session.IsUpdate {
		return w.commitUpdate(ctx, session)
	}
	return w.commitCreate(ctx, session)
}

func (w *Wizard) commitCreate(ctx context.Context, session *Session) Reply {
	r, err := w.rides.Create(ctx, &session.Draft, session.UserID)
	if err != nil {
		if ve := ride.AsValidation(err); ve != nil {
			w.sessions.Put(session)
			return Reply{Text: ve.Error() + "\n\nFix the value and confirm again, or 'cancel'."}
		}
		w.logger.Error("Wizard failed to create ride", "user_id", session.UserID, "error", err)
		w.sessions.Put(session)
		return Reply{Text: "Something went wrong saving the ride. Try confirming again."}
	}

	w.sessions.Delete(session.UserID, session.ChatID)

	dest := broadcast.Destination{ChatID: session.ChatID, ThreadID: session.ThreadID}
	if _, err := w.broadcaster.Announce(ctx, r, dest); err != nil {
		w.logger.Error("Failed to announce new ride", "ride_id", r.ID, "error", err)
		return Reply{Text: fmt.Sprintf("Ride #%d saved, but the announcement could not be posted here.", r.ID), Done: true}
	}
	return Reply{Text: fmt.Sprintf("Ride #%d announced. 🚴", r.ID), Done: true}
}

func (w *Wizard) commitUpdate(ctx context.Context, session *Session) Reply {
	draft := session.Draft
	patch := &database.RidePatch{
		Title:          &draft.Title,
		Category:       &draft.Category,
		Date:           &draft.Date,
		MeetingPoint:   &draft.MeetingPoint,
		RouteLink:      &draft.RouteLink,
		Distance:       &draft.Distance,
		Duration:       &draft.Duration,
		SpeedMin:       &draft.SpeedMin,
		SpeedMax:       &draft.SpeedMax,
		AdditionalInfo: &draft.AdditionalInfo,
	}

	r, err := w.rides.Update(ctx, session.RideID, patch, session.UserID)
	if err != nil {
		if ve := ride.AsValidation(err); ve != nil {
			w.sessions.Put(session)
			return Reply{Text: ve.Error() + "\n\nFix the value and confirm again, or 'cancel'."}
		}
		w.logger.Error("Wizard failed to update ride",
			"ride_id", session.RideID, "user_id", session.UserID, "error", err)
		w.sessions.Put(session)
		return Reply{Text: "Something went wrong saving the ride. Try confirming again."}
	}

	w.sessions.Delete(session.UserID, session.ChatID)

	result := w.broadcaster.Synchronize(ctx, r)
	text := fmt.Sprintf("Ride #%d updated. %d message(s) refreshed.", r.ID, result.Updated)
	if result.Removed > 0 {
		text += fmt.Sprintf(" Removed %d unavailable message(s).", result.Removed)
	}
	return Reply{Text: text, Done: true}
}

// prompt returns the question for the session's current step, including the
// current value when one is prefilled.
func (w *Wizard) prompt(session *Session) string {
	draft := &session.Draft
	switch session.Step {
	case StepTitle:
		if draft.Title == "" {
			return "Ride title?"
		}
		return promptLine("Ride title?", draft.Title)
	case StepCategory:
		return promptLine("Category? (road, gravel, MTB, ...)", draft.Category)
	case StepDate:
		if draft.Date.IsZero() {
			return "When? (e.g. 'tomorrow 18:00' or '2025-06-01 10:00')"
		}
		return promptLine("When? (e.g. 'tomorrow 18:00' or '2025-06-01 10:00')",
			draft.Date.Format("Mon, 02 Jan 2006 15:04"))
	case StepMeetingPoint:
		return promptLine("Meeting point?", draft.MeetingPoint)
	case StepRoute:
		return promptLine("Route link?", draft.RouteLink)
	case StepDistance:
		return promptLine("Distance, km?", draft.Distance)
	case StepDuration:
		return promptLine("Expected duration, hours?", draft.Duration)
	case StepSpeed:
		current := draft.SpeedMin
		if draft.SpeedMax != "" {
			current = draft.SpeedMin + "-" + draft.SpeedMax
		}
		return promptLine("Pace, km/h? (e.g. '25-28')", current)
	case StepInfo:
		return promptLine("Anything else riders should know?", draft.AdditionalInfo)
	case StepConfirm:
		return w.summary(session)
	}
	return ""
}

func (w *Wizard) summary(session *Session) string {
	draft := &session.Draft
	var b strings.Builder
	b.WriteString("Here's the ride:\n")
	fmt.Fprintf(&b, "• Title: %s\n", orDash(draft.Title))
	fmt.Fprintf(&b, "• Category: %s\n", orDash(draft.Category))
	date := ""
	if !draft.Date.IsZero() {
		date = draft.Date.Format("Mon, 02 Jan 2006 15:04")
	}
	fmt.Fprintf(&b, "• Date: %s\n", orDash(date))
	fmt.Fprintf(&b, "• Meeting point: %s\n", orDash(draft.MeetingPoint))
	fmt.Fprintf(&b, "• Route: %s\n", orDash(draft.RouteLink))
	fmt.Fprintf(&b, "• Distance: %s\n", orDash(draft.Distance))
	fmt.Fprintf(&b, "• Duration: %s\n", orDash(draft.Duration))
	speed := draft.SpeedMin
	if draft.SpeedMax != "" {
		speed = draft.SpeedMin + "-" + draft.SpeedMax
	}
	fmt.Fprintf(&b, "• Pace: %s\n", orDash(speed))
	fmt.Fprintf(&b, "• Info: %s\n", orDash(draft.AdditionalInfo))
	b.WriteString("\nSend 'yes' to save, or 'cancel' to discard.")
	return b.String()
}

func promptLine(question, current string) string {
	if current != "" {
		return fmt.Sprintf("%s\nCurrent: %s (send %s to keep it)", question, current, SkipToken)
	}
	return fmt.Sprintf("%s (send %s to leave empty)", question, SkipToken)
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}

// splitSpeed parses "25-28", "25 28", or a single "25" into min/max.
func splitSpeed(text string) (string, string) {
	for _, sep := range []string{"-", "–", " "} {
		if lo, hi, found := strings.Cut(text, sep); found {
			return strings.TrimSpace(lo), strings.TrimSpace(hi)
		}
	}
	return strings.TrimSpace(text), ""
}
