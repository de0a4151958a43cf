// Package broadcast keeps every chat a ride was announced into visually in
// sync with the ride's current state. It fans card updates out to all tracked
// destinations, tolerates per-destination failure, and prunes destinations
// the gateway reports as permanently gone.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/veloclub/ridebot/internal/card"
	"github.com/veloclub/ridebot/internal/database"
)

// ErrDestinationGone marks a gateway failure meaning the destination can never
// be reached again (bot kicked, chat deleted, message gone). The gateway wraps
// such failures with this sentinel; anything else is treated as transient.
var ErrDestinationGone = errors.New("destination permanently unreachable")

// ErrDuplicateDestination is returned by Announce when the ride already has a
// card in the requested chat/thread.
var ErrDuplicateDestination = errors.New("ride already announced in this destination")

// Destination is one place a card can be posted: a chat, optionally narrowed
// to a forum thread.
type Destination struct {
	ChatID   int64
	ThreadID int
}

// Gateway is the transport that delivers rendered cards.
type Gateway interface {
	// Send posts a new card and returns the platform message id.
	Send(ctx context.Context, dest Destination, rendered card.Rendered) (int, error)

	// Edit replaces the card at an existing message. Editing to identical
	// content must be reported as success, not an error.
	Edit(ctx context.Context, ref database.MessageRef, rendered card.Rendered) error

	// Delete removes the card message.
	Delete(ctx context.Context, ref database.MessageRef) error
}

// DestinationError is one destination's failure during a fan-out.
type DestinationError struct {
	Ref database.MessageRef
	Err error
}

func (e DestinationError) Error() string {
	return fmt.Sprintf("chat %d thread %d: %v", e.Ref.ChatID, e.Ref.ThreadID, e.Err)
}

func (e DestinationError) Unwrap() error { return e.Err }

// Result is the consolidated outcome of one Synchronize call.
type Result struct {
	// Success is false only when every destination failed with a transient
	// error. Pruning dead destinations is itself a successful outcome.
	Success bool
	Updated int
	Removed int
	Errors  []DestinationError
}

// Broadcaster implements the card fan-out over a store, a gateway, and a
// renderer.
type Broadcaster struct {
	store       database.Store
	gateway     Gateway
	renderer    *card.Renderer
	logger      *slog.Logger
	maxParallel int
}

// NewBroadcaster creates a broadcaster. maxParallel bounds how many
// destinations are contacted concurrently during Synchronize and Remove;
// values below 1 fall back to sequential delivery.
func NewBroadcaster(store database.Store, gateway Gateway, renderer *card.Renderer, logger *slog.Logger, maxParallel int) *Broadcaster {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if maxParallel < 1 {
		maxParallel = 1
	}
	return &Broadcaster{
		store:       store,
		gateway:     gateway,
		renderer:    renderer,
		logger:      logger.With("component", "broadcast"),
		maxParallel: maxParallel,
	}
}

// Announce renders the ride card and posts it into a new destination. The same
// chat/thread pair may hold at most one card per ride; a different thread of
// the same chat counts as a distinct destination.
func (b *Broadcaster) Announce(ctx context.Context, r *database.Ride, dest Destination) (*database.MessageRef, error) {
	for _, ref := range r.Messages {
		if ref.ChatID == dest.ChatID && ref.ThreadID == dest.ThreadID {
			return nil, ErrDuplicateDestination
		}
	}

	rendered := b.renderer.Render(r)
	messageID, err := b.gateway.Send(ctx, dest, rendered)
	if err != nil {
		return nil, fmt.Errorf("failed to send ride card (ride %d, chat %d): %w", r.ID, dest.ChatID, err)
	}

	ref := &database.MessageRef{
		RideID:    r.ID,
		ChatID:    dest.ChatID,
		MessageID: messageID,
		ThreadID:  dest.ThreadID,
	}
	if err := b.store.AddMessageRef(ctx, ref); err != nil {
		if errors.Is(err, database.ErrDuplicateMessageRef) {
			return nil, ErrDuplicateDestination
		}
		return nil, fmt.Errorf("failed to track ride card (ride %d, chat %d): %w", r.ID, dest.ChatID, err)
	}

	r.Messages = append(r.Messages, *ref)
	b.logger.InfoContext(ctx, "Ride announced",
		"ride_id", r.ID, "chat_id", dest.ChatID, "thread_id", dest.ThreadID, "message_id", messageID)
	return ref, nil
}

// destOutcome records one destination's result. Outcomes are collected per
// index so the merge is deterministic regardless of completion order.
type destOutcome struct {
	removed bool
	err     error
}

// Synchronize pushes the ride's current card to every tracked destination.
// All destinations are attempted; permanently unreachable ones are dropped
// from the ride's message list in a single store write so the next call does
// not retry them. Transient failures stay tracked and are retried on the next
// ride mutation.
func (b *Broadcaster) Synchronize(ctx context.Context, r *database.Ride) Result {
	refs := r.Messages
	if len(refs) == 0 {
		return Result{Success: true}
	}

	rendered := b.renderer.Render(r)
	outcomes := make([]destOutcome, len(refs))

	var g errgroup.Group
	g.SetLimit(b.maxParallel)
	for i, ref := range refs {
		g.Go(func() error {
			err := b.gateway.Edit(ctx, ref, rendered)
			switch {
			case err == nil:
			case errors.Is(err, ErrDestinationGone):
				outcomes[i] = destOutcome{removed: true}
			default:
				outcomes[i] = destOutcome{err: err}
			}
			return nil
		})
	}
	// Workers never return errors; Wait is the settle barrier.
	_ = g.Wait()

	var result Result
	kept := make([]database.MessageRef, 0, len(refs))
	for i, ref := range refs {
		switch {
		case outcomes[i].removed:
			result.Removed++
			b.logger.InfoContext(ctx, "Pruning unreachable destination",
				"ride_id", r.ID, "chat_id", ref.ChatID, "thread_id", ref.ThreadID)
		case outcomes[i].err != nil:
			kept = append(kept, ref)
			result.Errors = append(result.Errors, DestinationError{Ref: ref, Err: outcomes[i].err})
			b.logger.WarnContext(ctx, "Failed to update destination, keeping it tracked",
				"ride_id", r.ID, "chat_id", ref.ChatID, "thread_id", ref.ThreadID, "error", outcomes[i].err)
		default:
			kept = append(kept, ref)
			result.Updated++
		}
	}

	if result.Removed > 0 {
		if err := b.store.ReplaceMessageRefs(ctx, r.ID, kept); err != nil {
			b.logger.ErrorContext(ctx, "Failed to persist pruned destination list",
				"ride_id", r.ID, "error", err)
			result.Errors = append(result.Errors, DestinationError{Err: err})
		}
	}
	r.Messages = kept

	result.Success = result.Updated > 0 || result.Removed > 0 || len(result.Errors) == 0
	b.logger.InfoContext(ctx, "Synchronized ride cards",
		"ride_id", r.ID, "updated", result.Updated, "removed", result.Removed, "failed", len(result.Errors))
	return result
}

// Remove deletes the rendered card at every tracked destination, best effort.
// Each destination's failure is logged independently; one failure never stops
// the rest. Used when the ride aggregate itself is being deleted.
func (b *Broadcaster) Remove(ctx context.Context, r *database.Ride) {
	var g errgroup.Group
	g.SetLimit(b.maxParallel)
	for _, ref := range r.Messages {
		g.Go(func() error {
			if err := b.gateway.Delete(ctx, ref); err != nil {
				b.logger.WarnContext(ctx, "Failed to delete ride card",
					"ride_id", r.ID, "chat_id", ref.ChatID, "thread_id", ref.ThreadID, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}
