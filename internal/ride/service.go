// Package ride owns the ride lifecycle: creation, field updates, the
// cancelled flag, deletion, and per-user participation. All mutations go
// through the database store so concurrent operations on the same ride
// serialize there.
package ride

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/veloclub/ridebot/internal/database"
)

// Draft holds the full set of ride fields gathered before creation.
type Draft struct {
	Title          string    `validate:"required"`
	Category       string    `validate:"-"`
	Date           time.Time `validate:"required"`
	MeetingPoint   string    `validate:"-"`
	RouteLink      string    `validate:"omitempty,url"`
	Distance       string    `validate:"-"`
	Duration       string    `validate:"-"`
	SpeedMin       string    `validate:"-"`
	SpeedMax       string    `validate:"-"`
	AdditionalInfo string    `validate:"-"`
}

// Service implements the ride state machine over the store.
type Service struct {
	store    database.Store
	logger   *slog.Logger
	validate *validator.Validate
}

// NewService creates a ride service backed by the given store.
func NewService(store database.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		store:    store,
		logger:   logger.With("component", "ride_service"),
		validate: validator.New(),
	}
}

// IsCreator reports whether userID created the ride.
func IsCreator(r *database.Ride, userID int64) bool {
	return r != nil && r.CreatedBy == userID
}

// Create validates the draft and persists a new active ride with no tracked
// messages and no participants.
func (s *Service) Create(ctx context.Context, draft *Draft, creatorID int64) (*database.Ride, error) {
	if draft == nil {
		return nil, &ValidationError{Field: "title", Reason: "nothing to create"}
	}
	if err := s.validateDraft(draft); err != nil {
		return nil, err
	}

	r := &database.Ride{
		CreatedBy:      creatorID,
		Title:          strings.TrimSpace(draft.Title),
		Category:       strings.TrimSpace(draft.Category),
		Date:           draft.Date,
		MeetingPoint:   strings.TrimSpace(draft.MeetingPoint),
		RouteLink:      strings.TrimSpace(draft.RouteLink),
		Distance:       strings.TrimSpace(draft.Distance),
		Duration:       strings.TrimSpace(draft.Duration),
		SpeedMin:       strings.TrimSpace(draft.SpeedMin),
		SpeedMax:       strings.TrimSpace(draft.SpeedMax),
		AdditionalInfo: strings.TrimSpace(draft.AdditionalInfo),
		Cancelled:      false,
		Messages:       nil,
		Participants:   map[int64]database.ParticipationState{},
	}

	if err := s.store.CreateRide(ctx, r); err != nil {
		return nil, fmt.Errorf("failed to create ride: %w", err)
	}

	s.logger.InfoContext(ctx, "Ride created", "ride_id", r.ID, "created_by", creatorID, "title", r.Title)
	return r, nil
}

// Get retrieves a ride by id.
func (s *Service) Get(ctx context.Context, id uint) (*database.Ride, error) {
	r, err := s.store.GetRide(ctx, id)
	if errors.Is(err, database.ErrRideNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Update applies the provided fields to an existing ride. Only the creator may
// update; every provided field is re-validated with the creation rules.
func (s *Service) Update(ctx context.Context, id uint, patch *database.RidePatch, userID int64) (*database.Ride, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !IsCreator(current, userID) {
		return nil, ErrNotCreator
	}

	if err := s.validatePatch(current, patch); err != nil {
		return nil, err
	}

	if err := s.store.UpdateRide(ctx, id, patch); err != nil {
		if errors.Is(err, database.ErrRideNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update ride %d: %w", id, err)
	}

	updated, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Ride updated", "ride_id", id, "user_id", userID)
	return updated, nil
}

// Cancel marks an active ride as cancelled.
func (s *Service) Cancel(ctx context.Context, id uint, userID int64) (*database.Ride, error) {
	return s.setCancelled(ctx, id, userID, true)
}

// Resume clears the cancelled flag of a cancelled ride.
func (s *Service) Resume(ctx context.Context, id uint, userID int64) (*database.Ride, error) {
	return s.setCancelled(ctx, id, userID, false)
}

func (s *Service) setCancelled(ctx context.Context, id uint, userID int64, cancelled bool) (*database.Ride, error) {
	r, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !IsCreator(r, userID) {
		return nil, ErrNotCreator
	}
	if r.Cancelled == cancelled {
		if cancelled {
			return nil, ErrAlreadyCancelled
		}
		return nil, ErrNotCancelled
	}

	patch := &database.RidePatch{Cancelled: &cancelled}
	if err := s.store.UpdateRide(ctx, id, patch); err != nil {
		if errors.Is(err, database.ErrRideNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update ride %d: %w", id, err)
	}

	r.Cancelled = cancelled
	s.logger.InfoContext(ctx, "Ride state changed", "ride_id", id, "user_id", userID, "cancelled", cancelled)
	return r, nil
}

// Delete removes the ride aggregate. Returns whether removal occurred. Rendered
// card cleanup is the caller's concern; deletion of the aggregate is terminal.
func (s *Service) Delete(ctx context.Context, id uint, userID int64) (bool, error) {
	r, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if !IsCreator(r, userID) {
		return false, ErrNotCreator
	}

	deleted, err := s.store.DeleteRide(ctx, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete ride %d: %w", id, err)
	}

	s.logger.InfoContext(ctx, "Ride deleted", "ride_id", id, "user_id", userID, "existed", deleted)
	return deleted, nil
}

// ListByCreator retrieves a page of rides created by the given user.
func (s *Service) ListByCreator(ctx context.Context, creatorID int64, offset, limit int) ([]*database.Ride, error) {
	return s.store.ListRidesByCreator(ctx, creatorID, offset, limit)
}

func (s *Service) validateDraft(draft *Draft) error {
	if err := s.validate.Struct(draft); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			reason := "is required"
			if fe.Tag() == "url" {
				reason = "must be a valid URL"
			}
			return &ValidationError{Field: strings.ToLower(fe.Field()), Reason: reason}
		}
		return err
	}
	return validateSpeedRange(draft.SpeedMin, draft.SpeedMax)
}

func (s *Service) validatePatch(current *database.Ride, patch *database.RidePatch) error {
	if patch == nil {
		return nil
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return &ValidationError{Field: "title", Reason: "is required"}
	}
	if patch.Date != nil && patch.Date.IsZero() {
		return &ValidationError{Field: "date", Reason: "is required"}
	}
	if patch.RouteLink != nil && *patch.RouteLink != "" {
		if err := s.validate.Var(*patch.RouteLink, "url"); err != nil {
			return &ValidationError{Field: "routelink", Reason: "must be a valid URL"}
		}
	}

	speedMin := current.SpeedMin
	speedMax := current.SpeedMax
	if patch.SpeedMin != nil {
		speedMin = *patch.SpeedMin
	}
	if patch.SpeedMax != nil {
		speedMax = *patch.SpeedMax
	}
	return validateSpeedRange(speedMin, speedMax)
}

// validateSpeedRange rejects an inverted range. Speeds are free-form text;
// the check only applies when both ends parse as numbers.
func validateSpeedRange(minSpeed, maxSpeed string) error {
	lo, errLo := strconv.ParseFloat(strings.TrimSpace(minSpeed), 64)
	hi, errHi := strconv.ParseFloat(strings.TrimSpace(maxSpeed), 64)
	if errLo != nil || errHi != nil {
		return nil
	}
	if lo > hi {
		return &ValidationError{Field: "speed", Reason: "minimum speed must not exceed maximum speed"}
	}
	return nil
}
