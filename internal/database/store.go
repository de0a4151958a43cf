package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// Sentinel errors returned by the Store. Callers are expected to check these
// with errors.Is and translate them into their own error taxonomy.
var (
	// ErrRideNotFound is returned when a ride id does not exist. It is distinct
	// from a ride that exists but is cancelled.
	ErrRideNotFound = errors.New("ride not found")

	// ErrDuplicateMessageRef is returned when a ride already tracks a message
	// for the same (chat_id, thread_id) destination.
	ErrDuplicateMessageRef = errors.New("destination already has a message for this ride")
)

// Store defines the interface for database operations.
// Methods accept context.Context for cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// CreateRide inserts a new ride row and fills in its generated ID.
	CreateRide(ctx context.Context, ride *Ride) error

	// GetRide retrieves a ride with its message refs and participants.
	// Returns ErrRideNotFound if the id does not exist.
	GetRide(ctx context.Context, id uint) (*Ride, error)

	// UpdateRide applies the non-nil fields of patch to an existing ride.
	// Returns ErrRideNotFound if the id does not exist.
	UpdateRide(ctx context.Context, id uint, patch *RidePatch) error

	// DeleteRide removes a ride and its message refs and participants.
	// Returns whether a row was actually removed.
	DeleteRide(ctx context.Context, id uint) (bool, error)

	// ListRidesByCreator retrieves rides created by the given user, newest
	// ride date first, with offset/limit pagination.
	ListRidesByCreator(ctx context.Context, creatorID int64, offset, limit int) ([]*Ride, error)

	// AddMessageRef records a newly sent card message for a ride. Returns
	// ErrDuplicateMessageRef if the (chat_id, thread_id) pair is already tracked.
	AddMessageRef(ctx context.Context, ref *MessageRef) error

	// ReplaceMessageRefs drops every tracked ref of the ride that is not in
	// keep. Used to prune destinations observed to be permanently unreachable.
	ReplaceMessageRefs(ctx context.Context, rideID uint, keep []MessageRef) error

	// GetParticipants retrieves all participation rows for a ride.
	GetParticipants(ctx context.Context, rideID uint) ([]Participant, error)

	// SetParticipant inserts or overwrites the participation state for one user.
	SetParticipant(ctx context.Context, rideID uint, userID int64, state ParticipationState) error

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
// It requires a connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateRide inserts a new ride row and fills in its generated ID.
func (s *sqlxStore) CreateRide(ctx context.Context, ride *Ride) error {
	if ride == nil {
		return fmt.Errorf("cannot save nil ride")
	}
	if ride.CreatedBy == 0 {
		return fmt.Errorf("ride must have a non-zero created_by")
	}
	if ride.Title == "" {
		return fmt.Errorf("ride must have a non-empty title")
	}

	now := time.Now().UTC()
	ride.CreatedAt = now
	ride.UpdatedAt = now

	query := `
        INSERT INTO rides (created_at, updated_at, created_by, title, category, ride_date,
                           meeting_point, route_link, distance, duration, speed_min, speed_max,
                           additional_info, cancelled)
        VALUES (:created_at, :updated_at, :created_by, :title, :category, :ride_date,
                :meeting_point, :route_link, :distance, :duration, :speed_min, :speed_max,
                :additional_info, :cancelled);
    `

	result, err := s.db.NamedExecContext(ctx, query, ride)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving ride", "created_by", ride.CreatedBy, "error", err)
		return fmt.Errorf("failed to save ride for user %d: %w", ride.CreatedBy, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		s.logger.WarnContext(ctx, "Could not retrieve last insert ID after saving ride",
			"created_by", ride.CreatedBy, "error", err)
	} else {
		//nolint:gosec // integer overflow conversion is acceptable here
		ride.ID = uint(id)
	}

	s.logger.DebugContext(ctx, "Ride saved successfully", "ride_id", ride.ID, "created_by", ride.CreatedBy)
	return nil
}

// GetRide retrieves a ride with its message refs and participants.
func (s *sqlxStore) GetRide(ctx context.Context, id uint) (*Ride, error) {
	if id == 0 {
		return nil, fmt.Errorf("ride id cannot be zero")
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var ride Ride
	query := `SELECT id, created_at, updated_at, created_by, title, category, ride_date,
	                 meeting_point, route_link, distance, duration, speed_min, speed_max,
	                 additional_info, cancelled
	          FROM rides WHERE id = ?`

	err := s.db.GetContext(ctx, &ride, query, id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		s.logger.DebugContext(ctx, "No ride found", "ride_id", id)
		return nil, ErrRideNotFound

	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "Context timeout or cancellation while fetching ride",
			"ride_id", id, "error", err)
		return nil, err

	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting ride by ID", "ride_id", id, "error", err)
		return nil, fmt.Errorf("failed to get ride %d: %w", id, err)
	}

	refsQuery := `SELECT id, ride_id, chat_id, message_id, thread_id, created_at
	              FROM ride_messages WHERE ride_id = ? ORDER BY id ASC`
	if err := s.db.SelectContext(ctx, &ride.Messages, refsQuery, id); err != nil {
		s.logger.ErrorContext(ctx, "Error getting ride message refs", "ride_id", id, "error", err)
		return nil, fmt.Errorf("failed to get message refs for ride %d: %w", id, err)
	}

	participants, err := s.GetParticipants(ctx, id)
	if err != nil {
		return nil, err
	}
	ride.Participants = make(map[int64]ParticipationState, len(participants))
	for _, p := range participants {
		ride.Participants[p.UserID] = p.State
	}

	return &ride, nil
}

// patchColumns maps RidePatch fields onto their column names. Built per call so
// the SET clause only contains columns the caller actually provided.
func patchColumns(patch *RidePatch) (columns []string, args []any) {
	add := func(column string, value any) {
		columns = append(columns, column+" = ?")
		args = append(args, value)
	}

	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Category != nil {
		add("category", *patch.Category)
	}
	if patch.Date != nil {
		add("ride_date", *patch.Date)
	}
	if patch.MeetingPoint != nil {
		add("meeting_point", *patch.MeetingPoint)
	}
	if patch.RouteLink != nil {
		add("route_link", *patch.RouteLink)
	}
	if patch.Distance != nil {
		add("distance", *patch.Distance)
	}
	if patch.Duration != nil {
		add("duration", *patch.Duration)
	}
	if patch.SpeedMin != nil {
		add("speed_min", *patch.SpeedMin)
	}
	if patch.SpeedMax != nil {
		add("speed_max", *patch.SpeedMax)
	}
	if patch.AdditionalInfo != nil {
		add("additional_info", *patch.AdditionalInfo)
	}
	if patch.Cancelled != nil {
		add("cancelled", *patch.Cancelled)
	}
	return columns, args
}

// UpdateRide applies the non-nil fields of patch to an existing ride.
func (s *sqlxStore) UpdateRide(ctx context.Context, id uint, patch *RidePatch) error {
	if id == 0 {
		return fmt.Errorf("ride id cannot be zero")
	}
	if patch == nil {
		return fmt.Errorf("cannot apply nil patch")
	}

	columns, args := patchColumns(patch)
	if len(columns) == 0 {
		s.logger.DebugContext(ctx, "Empty ride patch, nothing to update", "ride_id", id)
		return nil
	}

	columns = append(columns, "updated_at = ?")
	args = append(args, time.Now().UTC())
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE rides SET %s WHERE id = ?`, strings.Join(columns, ", "))

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error updating ride", "ride_id", id, "error", err)
		return fmt.Errorf("failed to update ride %d: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		s.logger.WarnContext(ctx, "Could not get affected row count when updating ride",
			"ride_id", id, "error", err)
	} else if affected == 0 {
		return ErrRideNotFound
	}

	s.logger.DebugContext(ctx, "Ride updated successfully", "ride_id", id, "fields", len(columns)-1)
	return nil
}

// DeleteRide removes a ride and its message refs and participants in one transaction.
func (s *sqlxStore) DeleteRide(ctx context.Context, id uint) (bool, error) {
	if id == 0 {
		return false, fmt.Errorf("ride id cannot be zero")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction for deleting ride", "ride_id", id, "error", err)
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				if !errors.Is(rollbackErr, sql.ErrTxDone) {
					s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
				}
			}
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM ride_messages WHERE ride_id = ?`, id); err != nil {
		s.logger.ErrorContext(ctx, "Error deleting ride message refs", "ride_id", id, "error", err)
		return false, fmt.Errorf("failed to delete message refs for ride %d: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM ride_participants WHERE ride_id = ?`, id); err != nil {
		s.logger.ErrorContext(ctx, "Error deleting ride participants", "ride_id", id, "error", err)
		return false, fmt.Errorf("failed to delete participants for ride %d: %w", id, err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM rides WHERE id = ?`, id)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error deleting ride", "ride_id", id, "error", err)
		return false, fmt.Errorf("failed to delete ride %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		s.logger.WarnContext(ctx, "Could not get affected row count when deleting ride",
			"ride_id", id, "error", err)
	}

	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit transaction", "ride_id", id, "error", err)
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	tx = nil

	s.logger.DebugContext(ctx, "Ride deleted", "ride_id", id, "existed", affected > 0)
	return affected > 0, nil
}

// ListRidesByCreator retrieves rides created by the given user with pagination.
// Message refs and participants are not loaded for listings.
func (s *sqlxStore) ListRidesByCreator(ctx context.Context, creatorID int64, offset, limit int) ([]*Ride, error) {
	if creatorID == 0 {
		return nil, fmt.Errorf("creator id cannot be zero")
	}
	if limit <= 0 {
		limit = 10
		s.logger.DebugContext(ctx, "No limit provided, using default", "creator_id", creatorID, "default_limit", limit)
	} else if limit > 50 {
		limit = 50
		s.logger.DebugContext(ctx, "Limit exceeded maximum value, capping", "creator_id", creatorID, "capped_limit", limit)
	}
	if offset < 0 {
		offset = 0
	}

	var rides []*Ride
	query := `SELECT id, created_at, updated_at, created_by, title, category, ride_date,
	                 meeting_point, route_link, distance, duration, speed_min, speed_max,
	                 additional_info, cancelled
	          FROM rides
	          WHERE created_by = ?
	          ORDER BY ride_date DESC, id DESC
	          LIMIT ? OFFSET ?`

	err := s.db.SelectContext(ctx, &rides, query, creatorID, limit, offset)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error listing rides by creator",
			"creator_id", creatorID, "offset", offset, "limit", limit, "error", err)
		return nil, fmt.Errorf("failed to list rides for user %d: %w", creatorID, err)
	}

	s.logger.DebugContext(ctx, "Listed rides by creator", "creator_id", creatorID, "count", len(rides))
	return rides, nil
}

// AddMessageRef records a newly sent card message for a ride.
func (s *sqlxStore) AddMessageRef(ctx context.Context, ref *MessageRef) error {
	if ref == nil {
		return fmt.Errorf("cannot save nil message ref")
	}
	if ref.RideID == 0 {
		return fmt.Errorf("message ref must have a non-zero ride_id")
	}
	if ref.ChatID == 0 {
		return fmt.Errorf("message ref must have a non-zero chat_id")
	}

	ref.CreatedAt = time.Now().UTC()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction for saving message ref",
			"ride_id", ref.RideID, "chat_id", ref.ChatID, "error", err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				if !errors.Is(rollbackErr, sql.ErrTxDone) {
					s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
				}
			}
		}
	}()

	var exists bool
	err = tx.GetContext(ctx, &exists,
		`SELECT 1 FROM ride_messages WHERE ride_id = ? AND chat_id = ? AND thread_id = ? LIMIT 1`,
		ref.RideID, ref.ChatID, ref.ThreadID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		s.logger.ErrorContext(ctx, "Error checking for existing message ref",
			"ride_id", ref.RideID, "chat_id", ref.ChatID, "error", err)
		return fmt.Errorf("failed to check for existing message ref: %w", err)
	}
	if exists {
		return ErrDuplicateMessageRef
	}

	query := `
        INSERT INTO ride_messages (ride_id, chat_id, message_id, thread_id, created_at)
        VALUES (:ride_id, :chat_id, :message_id, :thread_id, :created_at);
    `
	result, err := tx.NamedExecContext(ctx, query, ref)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving message ref",
			"ride_id", ref.RideID, "chat_id", ref.ChatID, "error", err)
		return fmt.Errorf("failed to save message ref (ride %d, chat %d): %w", ref.RideID, ref.ChatID, err)
	}

	if id, err := result.LastInsertId(); err == nil {
		//nolint:gosec // integer overflow conversion is acceptable here
		ref.ID = uint(id)
	}

	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit transaction",
			"ride_id", ref.RideID, "chat_id", ref.ChatID, "error", err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	tx = nil

	s.logger.DebugContext(ctx, "Message ref saved successfully",
		"ride_id", ref.RideID, "chat_id", ref.ChatID, "thread_id", ref.ThreadID, "message_id", ref.MessageID)
	return nil
}

// ReplaceMessageRefs drops every tracked ref of the ride that is not in keep.
func (s *sqlxStore) ReplaceMessageRefs(ctx context.Context, rideID uint, keep []MessageRef) error {
	if rideID == 0 {
		return fmt.Errorf("ride id cannot be zero")
	}

	if len(keep) == 0 {
		result, err := s.db.ExecContext(ctx, `DELETE FROM ride_messages WHERE ride_id = ?`, rideID)
		if err != nil {
			s.logger.ErrorContext(ctx, "Error clearing message refs", "ride_id", rideID, "error", err)
			return fmt.Errorf("failed to clear message refs for ride %d: %w", rideID, err)
		}
		count, _ := result.RowsAffected()
		s.logger.DebugContext(ctx, "Cleared message refs", "ride_id", rideID, "removed", count)
		return nil
	}

	keepIDs := make([]uint, 0, len(keep))
	for _, ref := range keep {
		keepIDs = append(keepIDs, ref.ID)
	}

	query, args, err := sqlx.In(`DELETE FROM ride_messages WHERE ride_id = ? AND id NOT IN (?)`, rideID, keepIDs)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error building query for pruning message refs", "ride_id", rideID, "error", err)
		return fmt.Errorf("failed to build query for pruning message refs: %w", err)
	}

	query = s.db.Rebind(query)
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error pruning message refs", "ride_id", rideID, "error", err)
		return fmt.Errorf("failed to prune message refs for ride %d: %w", rideID, err)
	}

	removed, _ := result.RowsAffected()
	s.logger.DebugContext(ctx, "Pruned message refs", "ride_id", rideID, "kept", len(keep), "removed", removed)
	return nil
}

// GetParticipants retrieves all participation rows for a ride.
func (s *sqlxStore) GetParticipants(ctx context.Context, rideID uint) ([]Participant, error) {
	if rideID == 0 {
		return nil, fmt.Errorf("ride id cannot be zero")
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var participants []Participant
	query := `SELECT ride_id, user_id, state, updated_at
	          FROM ride_participants WHERE ride_id = ? ORDER BY updated_at ASC`

	err := s.db.SelectContext(ctx, &participants, query, rideID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error getting ride participants", "ride_id", rideID, "error", err)
		return nil, fmt.Errorf("failed to get participants for ride %d: %w", rideID, err)
	}

	return participants, nil
}

// SetParticipant inserts or overwrites the participation state for one user.
func (s *sqlxStore) SetParticipant(ctx context.Context, rideID uint, userID int64, state ParticipationState) error {
	if rideID == 0 {
		return fmt.Errorf("ride id cannot be zero")
	}
	if userID == 0 {
		return fmt.Errorf("user id cannot be zero")
	}
	if !state.Valid() {
		return fmt.Errorf("unknown participation state %q", state)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction for saving participant",
			"ride_id", rideID, "user_id", userID, "error", err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				if !errors.Is(rollbackErr, sql.ErrTxDone) {
					s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
				}
			}
		}
	}()

	now := time.Now().UTC()

	var exists bool
	err = tx.GetContext(ctx, &exists,
		`SELECT 1 FROM ride_participants WHERE ride_id = ? AND user_id = ? LIMIT 1`, rideID, userID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		s.logger.ErrorContext(ctx, "Error checking for existing participant",
			"ride_id", rideID, "user_id", userID, "error", err)
		return fmt.Errorf("failed to check for existing participant: %w", err)
	}

	if exists {
		_, err = tx.ExecContext(ctx,
			`UPDATE ride_participants SET state = ?, updated_at = ? WHERE ride_id = ? AND user_id = ?`,
			state, now, rideID, userID)
	} else {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO ride_participants (ride_id, user_id, state, updated_at) VALUES (?, ?, ?, ?)`,
			rideID, userID, state, now)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving participant",
			"ride_id", rideID, "user_id", userID, "error", err)
		return fmt.Errorf("failed to save participant (ride %d, user %d): %w", rideID, userID, err)
	}

	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit transaction",
			"ride_id", rideID, "user_id", userID, "error", err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	tx = nil

	s.logger.DebugContext(ctx, "Participant saved successfully",
		"ride_id", rideID, "user_id", userID, "state", state)
	return nil
}

// RunSQLMaintenance executes a VACUUM command on the SQLite database.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting VACUUM", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)...")

	// VACUUM must run outside a transaction in SQLite.
	_, err := s.db.ExecContext(ctx, "VACUUM;")

	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)

	case err != nil:
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return fmt.Errorf("failed to execute VACUUM: %w", err)

	default:
		s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed successfully")
	}

	return nil
}
