package ride

import (
	"context"
	"errors"
	"testing"

	"github.com/veloclub/ridebot/internal/database"
)

func TestTrackerSetParticipation(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc := NewService(store, nil)
	tracker := NewTracker(store, nil)
	ctx := context.Background()

	r, err := svc.Create(ctx, validDraft(), 100)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	changed, got, err := tracker.SetParticipation(ctx, r.ID, 7, database.ParticipationJoined)
	if err != nil {
		t.Fatalf("SetParticipation returned error: %v", err)
	}
	if !changed {
		t.Error("first press must report a change")
	}
	if got.Participants[7] != database.ParticipationJoined {
		t.Errorf("expected joined, got %q", got.Participants[7])
	}

	// Same button again: no change, no extra store write.
	writes := store.setParticipantN
	changed, got, err = tracker.SetParticipation(ctx, r.ID, 7, database.ParticipationJoined)
	if err != nil {
		t.Fatalf("repeated SetParticipation returned error: %v", err)
	}
	if changed {
		t.Error("repeated press must not report a change")
	}
	if store.setParticipantN != writes {
		t.Error("repeated press must not write to the store")
	}
	if got.Participants[7] != database.ParticipationJoined {
		t.Errorf("state drifted on repeated press: %q", got.Participants[7])
	}

	// Switching states is always allowed on an active ride.
	changed, got, err = tracker.SetParticipation(ctx, r.ID, 7, database.ParticipationSkipped)
	if err != nil {
		t.Fatalf("SetParticipation switch returned error: %v", err)
	}
	if !changed || got.Participants[7] != database.ParticipationSkipped {
		t.Errorf("switch failed: changed=%v state=%q", changed, got.Participants[7])
	}
}

func TestTrackerCancelledRide(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc := NewService(store, nil)
	tracker := NewTracker(store, nil)
	ctx := context.Background()

	r, err := svc.Create(ctx, validDraft(), 100)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if _, err := svc.Cancel(ctx, r.ID, 100); err != nil {
		t.Fatalf("Cancel returned error: %v", err)
	}

	changed, got, err := tracker.SetParticipation(ctx, r.ID, 7, database.ParticipationJoined)
	if err != nil {
		t.Fatalf("SetParticipation on cancelled ride returned error: %v", err)
	}
	if changed {
		t.Error("cancelled ride must refuse participation changes")
	}
	if got == nil || !got.Cancelled {
		t.Error("expected the cancelled ride back for rendering")
	}
	if len(got.Participants) != 0 {
		t.Errorf("participation recorded on cancelled ride: %v", got.Participants)
	}
}

func TestTrackerUnknownState(t *testing.T) {
	t.Parallel()

	tracker := NewTracker(newFakeStore(), nil)
	_, _, err := tracker.SetParticipation(context.Background(), 1, 7, database.ParticipationState("maybe"))
	if err == nil {
		t.Fatal("expected error for unknown participation state")
	}
}

func TestTrackerRideNotFound(t *testing.T) {
	t.Parallel()

	tracker := NewTracker(newFakeStore(), nil)
	_, _, err := tracker.SetParticipation(context.Background(), 99, 7, database.ParticipationJoined)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
