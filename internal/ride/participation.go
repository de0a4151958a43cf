package ride

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/veloclub/ridebot/internal/database"
)

// Tracker records per-user participation in rides. Only the current state per
// user is kept; no history.
type Tracker struct {
	store  database.Store
	logger *slog.Logger
}

// NewTracker creates a participation tracker backed by the given store.
func NewTracker(store database.Store, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Tracker{
		store:  store,
		logger: logger.With("component", "participation"),
	}
}

// SetParticipation records the user's stance on a ride. It returns false with
// an unchanged ride when the ride is cancelled or the requested state equals
// the stored one; a repeated button press is a no-op, not an error. Switching
// among the three states is always allowed while the ride is active.
func (t *Tracker) SetParticipation(ctx context.Context, rideID uint, userID int64, state database.ParticipationState) (bool, *database.Ride, error) {
	if !state.Valid() {
		return false, nil, fmt.Errorf("unknown participation state %q", state)
	}

	r, err := t.store.GetRide(ctx, rideID)
	if errors.Is(err, database.ErrRideNotFound) {
		return false, nil, ErrNotFound
	}
	if err != nil {
		return false, nil, err
	}

	if r.Cancelled {
		t.logger.DebugContext(ctx, "Ignoring participation on cancelled ride",
			"ride_id", rideID, "user_id", userID, "state", state)
		return false, r, nil
	}
	if current, ok := r.Participants[userID]; ok && current == state {
		t.logger.DebugContext(ctx, "Participation unchanged",
			"ride_id", rideID, "user_id", userID, "state", state)
		return false, r, nil
	}

	if err := t.store.SetParticipant(ctx, rideID, userID, state); err != nil {
		return false, nil, fmt.Errorf("failed to set participation (ride %d, user %d): %w", rideID, userID, err)
	}

	r.Participants[userID] = state
	t.logger.InfoContext(ctx, "Participation recorded",
		"ride_id", rideID, "user_id", userID, "state", state)
	return true, r, nil
}
