package broadcast

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/veloclub/ridebot/internal/card"
	"github.com/veloclub/ridebot/internal/database"
)

// stubStore implements database.Store for the message ref operations the
// broadcaster touches; everything else is unused here.
type stubStore struct {
	mu   sync.Mutex
	refs map[uint][]database.MessageRef

	replaceCalls int
	replaceErr   error
}

func newStubStore() *stubStore {
	return &stubStore{refs: make(map[uint][]database.MessageRef)}
}

func (s *stubStore) Ping(context.Context) error                       { return nil }
func (s *stubStore) CreateRide(context.Context, *database.Ride) error { return nil }
func (s *stubStore) GetRide(context.Context, uint) (*database.Ride, error) {
	return nil, database.ErrRideNotFound
}
func (s *stubStore) UpdateRide(context.Context, uint, *database.RidePatch) error { return nil }
func (s *stubStore) DeleteRide(context.Context, uint) (bool, error)              { return false, nil }
func (s *stubStore) ListRidesByCreator(context.Context, int64, int, int) ([]*database.Ride, error) {
	return nil, nil
}
func (s *stubStore) GetParticipants(context.Context, uint) ([]database.Participant, error) {
	return nil, nil
}
func (s *stubStore) SetParticipant(context.Context, uint, int64, database.ParticipationState) error {
	return nil
}
func (s *stubStore) RunSQLMaintenance(context.Context) error { return nil }

func (s *stubStore) AddMessageRef(_ context.Context, ref *database.MessageRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.refs[ref.RideID] {
		if existing.ChatID == ref.ChatID && existing.ThreadID == ref.ThreadID {
			return database.ErrDuplicateMessageRef
		}
	}
	ref.ID = uint(len(s.refs[ref.RideID]) + 1)
	s.refs[ref.RideID] = append(s.refs[ref.RideID], *ref)
	return nil
}

func (s *stubStore) ReplaceMessageRefs(_ context.Context, rideID uint, keep []database.MessageRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaceCalls++
	if s.replaceErr != nil {
		return s.replaceErr
	}
	s.refs[rideID] = append([]database.MessageRef(nil), keep...)
	return nil
}

// stubGateway scripts per-chat outcomes. Zero-value behavior is success.
type stubGateway struct {
	mu         sync.Mutex
	nextMsgID  int
	editErrs   map[int64]error
	sendErrs   map[int64]error
	deleteErrs map[int64]error

	sends   []Destination
	edits   []database.MessageRef
	deletes []database.MessageRef
}

func (g *stubGateway) Send(_ context.Context, dest Destination, _ card.Rendered) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.sendErrs[dest.ChatID]; err != nil {
		return 0, err
	}
	g.sends = append(g.sends, dest)
	g.nextMsgID++
	return g.nextMsgID, nil
}

func (g *stubGateway) Edit(_ context.Context, ref database.MessageRef, _ card.Rendered) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.editErrs[ref.ChatID]; err != nil {
		return err
	}
	g.edits = append(g.edits, ref)
	return nil
}

func (g *stubGateway) Delete(_ context.Context, ref database.MessageRef) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.deleteErrs[ref.ChatID]; err != nil {
		return err
	}
	g.deletes = append(g.deletes, ref)
	return nil
}

func testRide(refs ...database.MessageRef) *database.Ride {
	return &database.Ride{
		ID:           1,
		CreatedBy:    100,
		Title:        "Evening spin",
		Date:         time.Date(2026, 9, 6, 18, 0, 0, 0, time.UTC),
		Messages:     refs,
		Participants: map[int64]database.ParticipationState{},
	}
}

func TestAnnounce(t *testing.T) {
	t.Parallel()

	store := newStubStore()
	gateway := &stubGateway{}
	b := NewBroadcaster(store, gateway, card.NewRenderer(""), nil, 4)

	r := testRide()
	ref, err := b.Announce(context.Background(), r, Destination{ChatID: -500})
	if err != nil {
		t.Fatalf("Announce returned error: %v", err)
	}
	if ref.ChatID != -500 || ref.MessageID == 0 {
		t.Errorf("unexpected ref %+v", ref)
	}
	if len(r.Messages) != 1 {
		t.Errorf("expected ride to track 1 message, got %d", len(r.Messages))
	}
	if len(store.refs[r.ID]) != 1 {
		t.Errorf("expected 1 persisted ref, got %d", len(store.refs[r.ID]))
	}
}

func TestAnnounceDuplicateDestination(t *testing.T) {
	t.Parallel()

	store := newStubStore()
	gateway := &stubGateway{}
	b := NewBroadcaster(store, gateway, card.NewRenderer(""), nil, 4)
	ctx := context.Background()

	r := testRide()
	if _, err := b.Announce(ctx, r, Destination{ChatID: -500, ThreadID: 3}); err != nil {
		t.Fatalf("first Announce returned error: %v", err)
	}

	if _, err := b.Announce(ctx, r, Destination{ChatID: -500, ThreadID: 3}); !errors.Is(err, ErrDuplicateDestination) {
		t.Fatalf("expected ErrDuplicateDestination, got %v", err)
	}

	// A different thread of the same chat is a distinct destination.
	if _, err := b.Announce(ctx, r, Destination{ChatID: -500, ThreadID: 9}); err != nil {
		t.Fatalf("Announce into another thread returned error: %v", err)
	}
	if len(r.Messages) != 2 {
		t.Errorf("expected 2 tracked messages, got %d", len(r.Messages))
	}
}

func TestAnnounceRaceLostToStore(t *testing.T) {
	t.Parallel()

	// An in-memory view that is stale relative to the store still yields the
	// duplicate error, via the store's uniqueness check.
	store := newStubStore()
	gateway := &stubGateway{}
	b := NewBroadcaster(store, gateway, card.NewRenderer(""), nil, 4)
	ctx := context.Background()

	first := testRide()
	if _, err := b.Announce(ctx, first, Destination{ChatID: -500}); err != nil {
		t.Fatalf("first Announce returned error: %v", err)
	}

	stale := testRide() // no knowledge of the first announcement
	if _, err := b.Announce(ctx, stale, Destination{ChatID: -500}); !errors.Is(err, ErrDuplicateDestination) {
		t.Fatalf("expected ErrDuplicateDestination from store check, got %v", err)
	}
}

func TestSynchronizeMixedOutcomes(t *testing.T) {
	t.Parallel()

	refA := database.MessageRef{ID: 1, RideID: 1, ChatID: -10, MessageID: 11}
	refB := database.MessageRef{ID: 2, RideID: 1, ChatID: -20, MessageID: 22}
	refC := database.MessageRef{ID: 3, RideID: 1, ChatID: -30, MessageID: 33}

	store := newStubStore()
	store.refs[1] = []database.MessageRef{refA, refB, refC}
	gateway := &stubGateway{editErrs: map[int64]error{
		-20: fmt.Errorf("gone: %w", ErrDestinationGone),
	}}
	b := NewBroadcaster(store, gateway, card.NewRenderer(""), nil, 4)

	r := testRide(refA, refB, refC)
	result := b.Synchronize(context.Background(), r)

	if !result.Success {
		t.Error("expected Success with reachable destinations remaining")
	}
	if result.Updated != 2 || result.Removed != 1 || len(result.Errors) != 0 {
		t.Errorf("got updated=%d removed=%d errors=%d, want 2/1/0",
			result.Updated, result.Removed, len(result.Errors))
	}
	if len(r.Messages) != 2 {
		t.Fatalf("expected 2 kept refs, got %d", len(r.Messages))
	}
	for _, ref := range r.Messages {
		if ref.ChatID == -20 {
			t.Error("gone destination still tracked after Synchronize")
		}
	}
	if store.replaceCalls != 1 {
		t.Errorf("expected one ReplaceMessageRefs call, got %d", store.replaceCalls)
	}
	if len(store.refs[1]) != 2 {
		t.Errorf("expected 2 persisted refs after prune, got %d", len(store.refs[1]))
	}
}

func TestSynchronizeTransientFailuresKeepRefs(t *testing.T) {
	t.Parallel()

	refA := database.MessageRef{ID: 1, RideID: 1, ChatID: -10, MessageID: 11}
	refB := database.MessageRef{ID: 2, RideID: 1, ChatID: -20, MessageID: 22}

	store := newStubStore()
	store.refs[1] = []database.MessageRef{refA, refB}
	gateway := &stubGateway{editErrs: map[int64]error{
		-10: errors.New("timeout"),
		-20: errors.New("rate limited"),
	}}
	b := NewBroadcaster(store, gateway, card.NewRenderer(""), nil, 4)

	r := testRide(refA, refB)
	result := b.Synchronize(context.Background(), r)

	if result.Success {
		t.Error("all-transient failure must not be reported as success")
	}
	if result.Updated != 0 || result.Removed != 0 || len(result.Errors) != 2 {
		t.Errorf("got updated=%d removed=%d errors=%d, want 0/0/2",
			result.Updated, result.Removed, len(result.Errors))
	}
	if len(r.Messages) != 2 {
		t.Errorf("transient failures must keep refs tracked, got %d", len(r.Messages))
	}
	if store.replaceCalls != 0 {
		t.Error("no prune must be persisted when nothing was removed")
	}
}

func TestSynchronizeNoDestinations(t *testing.T) {
	t.Parallel()

	b := NewBroadcaster(newStubStore(), &stubGateway{}, card.NewRenderer(""), nil, 4)
	result := b.Synchronize(context.Background(), testRide())
	if !result.Success || result.Updated != 0 {
		t.Errorf("empty fan-out must be a trivial success, got %+v", result)
	}
}

func TestRemoveBestEffort(t *testing.T) {
	t.Parallel()

	refA := database.MessageRef{ID: 1, RideID: 1, ChatID: -10, MessageID: 11}
	refB := database.MessageRef{ID: 2, RideID: 1, ChatID: -20, MessageID: 22}
	refC := database.MessageRef{ID: 3, RideID: 1, ChatID: -30, MessageID: 33}

	gateway := &stubGateway{deleteErrs: map[int64]error{-20: errors.New("boom")}}
	b := NewBroadcaster(newStubStore(), gateway, card.NewRenderer(""), nil, 4)

	b.Remove(context.Background(), testRide(refA, refB, refC))

	if len(gateway.deletes) != 2 {
		t.Errorf("expected the 2 deletable cards to be removed, got %d", len(gateway.deletes))
	}
}
