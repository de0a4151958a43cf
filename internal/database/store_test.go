package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

// setupStore opens a fresh on-disk database with migrations applied. Each test
// gets its own file so they can run in parallel.
func setupStore(t *testing.T) Store {
	t.Helper()

	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewDB returned error: %v", err)
	}
	t.Cleanup(func() { CloseDB(db) })

	return NewStore(db, nil)
}

func sampleRide(createdBy int64) *Ride {
	return &Ride{
		CreatedBy:    createdBy,
		Title:        "Sunday Gravel",
		Category:     "gravel",
		Date:         time.Date(2026, 9, 6, 9, 0, 0, 0, time.UTC),
		MeetingPoint: "Town square",
		RouteLink:    "https://example.com/route/42",
		Distance:     "80",
		Duration:     "4",
		SpeedMin:     "24",
		SpeedMax:     "28",
	}
}

func TestCreateAndGetRide(t *testing.T) {
	t.Parallel()

	store := setupStore(t)
	ctx := context.Background()

	r := sampleRide(100)
	if err := store.CreateRide(ctx, r); err != nil {
		t.Fatalf("CreateRide returned error: %v", err)
	}
	if r.ID == 0 {
		t.Fatal("CreateRide did not fill in the generated id")
	}

	got, err := store.GetRide(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetRide returned error: %v", err)
	}
	if got.Title != r.Title || got.CreatedBy != 100 || got.Category != "gravel" {
		t.Errorf("GetRide mismatch: %+v", got)
	}
	if !got.Date.Equal(r.Date) {
		t.Errorf("ride date = %v, want %v", got.Date, r.Date)
	}
	if got.Cancelled {
		t.Error("new ride must not be cancelled")
	}
	if len(got.Messages) != 0 {
		t.Errorf("new ride has %d message refs, want 0", len(got.Messages))
	}
	if len(got.Participants) != 0 {
		t.Errorf("new ride has %d participants, want 0", len(got.Participants))
	}
}

func TestGetRideNotFound(t *testing.T) {
	t.Parallel()

	store := setupStore(t)
	if _, err := store.GetRide(context.Background(), 12345); !errors.Is(err, ErrRideNotFound) {
		t.Fatalf("expected ErrRideNotFound, got %v", err)
	}
}

func TestUpdateRide(t *testing.T) {
	t.Parallel()

	store := setupStore(t)
	ctx := context.Background()

	r := sampleRide(100)
	if err := store.CreateRide(ctx, r); err != nil {
		t.Fatalf("CreateRide returned error: %v", err)
	}

	title := "Monday Road"
	cancelled := true
	patch := &RidePatch{Title: &title, Cancelled: &cancelled}
	if err := store.UpdateRide(ctx, r.ID, patch); err != nil {
		t.Fatalf("UpdateRide returned error: %v", err)
	}

	got, err := store.GetRide(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetRide returned error: %v", err)
	}
	if got.Title != "Monday Road" || !got.Cancelled {
		t.Errorf("patch not applied: title=%q cancelled=%v", got.Title, got.Cancelled)
	}
	if got.Category != "gravel" {
		t.Errorf("unpatched field changed: category=%q", got.Category)
	}

	if err := store.UpdateRide(ctx, 12345, patch); !errors.Is(err, ErrRideNotFound) {
		t.Errorf("expected ErrRideNotFound for missing ride, got %v", err)
	}
}

func TestAddMessageRefUniquePerDestination(t *testing.T) {
	t.Parallel()

	store := setupStore(t)
	ctx := context.Background()

	r := sampleRide(100)
	if err := store.CreateRide(ctx, r); err != nil {
		t.Fatalf("CreateRide returned error: %v", err)
	}

	ref := &MessageRef{RideID: r.ID, ChatID: -500, MessageID: 11, ThreadID: 3}
	if err := store.AddMessageRef(ctx, ref); err != nil {
		t.Fatalf("AddMessageRef returned error: %v", err)
	}
	if ref.ID == 0 {
		t.Error("AddMessageRef did not fill in the generated id")
	}

	dup := &MessageRef{RideID: r.ID, ChatID: -500, MessageID: 12, ThreadID: 3}
	if err := store.AddMessageRef(ctx, dup); !errors.Is(err, ErrDuplicateMessageRef) {
		t.Fatalf("expected ErrDuplicateMessageRef, got %v", err)
	}

	otherThread := &MessageRef{RideID: r.ID, ChatID: -500, MessageID: 13, ThreadID: 9}
	if err := store.AddMessageRef(ctx, otherThread); err != nil {
		t.Fatalf("AddMessageRef for another thread returned error: %v", err)
	}

	got, err := store.GetRide(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetRide returned error: %v", err)
	}
	if len(got.Messages) != 2 {
		t.Errorf("expected 2 tracked messages, got %d", len(got.Messages))
	}
}

func TestReplaceMessageRefs(t *testing.T) {
	t.Parallel()

	store := setupStore(t)
	ctx := context.Background()

	r := sampleRide(100)
	if err := store.CreateRide(ctx, r); err != nil {
		t.Fatalf("CreateRide returned error: %v", err)
	}

	refs := make([]*MessageRef, 3)
	for i := range refs {
		refs[i] = &MessageRef{RideID: r.ID, ChatID: int64(-10 * (i + 1)), MessageID: i + 1}
		if err := store.AddMessageRef(ctx, refs[i]); err != nil {
			t.Fatalf("AddMessageRef %d returned error: %v", i, err)
		}
	}

	keep := []MessageRef{*refs[0], *refs[2]}
	if err := store.ReplaceMessageRefs(ctx, r.ID, keep); err != nil {
		t.Fatalf("ReplaceMessageRefs returned error: %v", err)
	}

	got, err := store.GetRide(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetRide returned error: %v", err)
	}
	if len(got.Messages) != 2 {
		t.Fatalf("expected 2 refs after prune, got %d", len(got.Messages))
	}
	for _, ref := range got.Messages {
		if ref.ChatID == -20 {
			t.Error("pruned ref still present")
		}
	}

	if err := store.ReplaceMessageRefs(ctx, r.ID, nil); err != nil {
		t.Fatalf("ReplaceMessageRefs with empty keep returned error: %v", err)
	}
	got, _ = store.GetRide(ctx, r.ID)
	if len(got.Messages) != 0 {
		t.Errorf("expected all refs cleared, got %d", len(got.Messages))
	}
}

func TestSetParticipantUpsert(t *testing.T) {
	t.Parallel()

	store := setupStore(t)
	ctx := context.Background()

	r := sampleRide(100)
	if err := store.CreateRide(ctx, r); err != nil {
		t.Fatalf("CreateRide returned error: %v", err)
	}

	if err := store.SetParticipant(ctx, r.ID, 7, ParticipationJoined); err != nil {
		t.Fatalf("SetParticipant returned error: %v", err)
	}
	if err := store.SetParticipant(ctx, r.ID, 7, ParticipationSkipped); err != nil {
		t.Fatalf("SetParticipant overwrite returned error: %v", err)
	}
	if err := store.SetParticipant(ctx, r.ID, 8, ParticipationThinking); err != nil {
		t.Fatalf("SetParticipant second user returned error: %v", err)
	}

	participants, err := store.GetParticipants(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetParticipants returned error: %v", err)
	}
	if len(participants) != 2 {
		t.Fatalf("expected 2 participant rows, got %d", len(participants))
	}

	got, err := store.GetRide(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetRide returned error: %v", err)
	}
	if got.Participants[7] != ParticipationSkipped {
		t.Errorf("overwrite lost: user 7 state %q", got.Participants[7])
	}
	if got.Participants[8] != ParticipationThinking {
		t.Errorf("user 8 state %q, want thinking", got.Participants[8])
	}

	if err := store.SetParticipant(ctx, r.ID, 7, ParticipationState("maybe")); err == nil {
		t.Error("expected error for unknown state")
	}
}

func TestDeleteRideCascades(t *testing.T) {
	t.Parallel()

	store := setupStore(t)
	ctx := context.Background()

	r := sampleRide(100)
	if err := store.CreateRide(ctx, r); err != nil {
		t.Fatalf("CreateRide returned error: %v", err)
	}
	if err := store.AddMessageRef(ctx, &MessageRef{RideID: r.ID, ChatID: -500, MessageID: 1}); err != nil {
		t.Fatalf("AddMessageRef returned error: %v", err)
	}
	if err := store.SetParticipant(ctx, r.ID, 7, ParticipationJoined); err != nil {
		t.Fatalf("SetParticipant returned error: %v", err)
	}

	deleted, err := store.DeleteRide(ctx, r.ID)
	if err != nil {
		t.Fatalf("DeleteRide returned error: %v", err)
	}
	if !deleted {
		t.Error("expected DeleteRide to report removal")
	}

	if _, err := store.GetRide(ctx, r.ID); !errors.Is(err, ErrRideNotFound) {
		t.Errorf("deleted ride still retrievable: %v", err)
	}
	participants, err := store.GetParticipants(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetParticipants returned error: %v", err)
	}
	if len(participants) != 0 {
		t.Errorf("participants survived ride deletion: %d", len(participants))
	}

	deleted, err = store.DeleteRide(ctx, r.ID)
	if err != nil {
		t.Fatalf("second DeleteRide returned error: %v", err)
	}
	if deleted {
		t.Error("second delete must report nothing removed")
	}
}

func TestListRidesByCreator(t *testing.T) {
	t.Parallel()

	store := setupStore(t)
	ctx := context.Background()

	base := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		r := sampleRide(100)
		r.Title = "Ride"
		r.Date = base.AddDate(0, 0, i)
		if err := store.CreateRide(ctx, r); err != nil {
			t.Fatalf("CreateRide %d returned error: %v", i, err)
		}
	}
	other := sampleRide(200)
	if err := store.CreateRide(ctx, other); err != nil {
		t.Fatalf("CreateRide for other user returned error: %v", err)
	}

	rides, err := store.ListRidesByCreator(ctx, 100, 0, 10)
	if err != nil {
		t.Fatalf("ListRidesByCreator returned error: %v", err)
	}
	if len(rides) != 3 {
		t.Fatalf("expected 3 rides, got %d", len(rides))
	}
	// Newest ride date first.
	for i := 1; i < len(rides); i++ {
		if rides[i].Date.After(rides[i-1].Date) {
			t.Errorf("rides out of order: %v before %v", rides[i-1].Date, rides[i].Date)
		}
	}

	page, err := store.ListRidesByCreator(ctx, 100, 1, 1)
	if err != nil {
		t.Fatalf("paginated ListRidesByCreator returned error: %v", err)
	}
	if len(page) != 1 {
		t.Fatalf("expected 1 ride on page, got %d", len(page))
	}
	if !page[0].Date.Equal(rides[1].Date) {
		t.Errorf("offset 1 returned %v, want %v", page[0].Date, rides[1].Date)
	}
}

func TestRunSQLMaintenance(t *testing.T) {
	t.Parallel()

	store := setupStore(t)
	if err := store.RunSQLMaintenance(context.Background()); err != nil {
		t.Fatalf("RunSQLMaintenance returned error: %v", err)
	}
}
