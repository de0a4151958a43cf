package database

import (
	"time"
)

// ParticipationState is a user's current stance on a ride.
type ParticipationState string

const (
	ParticipationJoined   ParticipationState = "joined"
	ParticipationThinking ParticipationState = "thinking"
	ParticipationSkipped  ParticipationState = "skipped"
)

// Valid reports whether s is one of the three known states.
func (s ParticipationState) Valid() bool {
	switch s {
	case ParticipationJoined, ParticipationThinking, ParticipationSkipped:
		return true
	}
	return false
}

// Ride is the announced group-ride aggregate. Messages and Participants are
// loaded alongside the row by GetRide; they live in their own tables.
type Ride struct {
	ID        uint      `db:"id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`

	CreatedBy      int64     `db:"created_by"`
	Title          string    `db:"title"`
	Category       string    `db:"category"`
	Date           time.Time `db:"ride_date"`
	MeetingPoint   string    `db:"meeting_point"`
	RouteLink      string    `db:"route_link"`
	Distance       string    `db:"distance"`
	Duration       string    `db:"duration"`
	SpeedMin       string    `db:"speed_min"`
	SpeedMax       string    `db:"speed_max"`
	AdditionalInfo string    `db:"additional_info"`
	Cancelled      bool      `db:"cancelled"`

	Messages     []MessageRef                 `db:"-"`
	Participants map[int64]ParticipationState `db:"-"`
}

// MessageRef points at one rendered ride card in one chat (and optionally one
// forum thread). A ride carries at most one ref per (chat_id, thread_id) pair.
type MessageRef struct {
	ID        uint      `db:"id"`
	RideID    uint      `db:"ride_id"`
	ChatID    int64     `db:"chat_id"`
	MessageID int       `db:"message_id"`
	ThreadID  int       `db:"thread_id"` // 0 means the chat itself, not a thread
	CreatedAt time.Time `db:"created_at"`
}

// Participant is one user's stored participation row for a ride.
type Participant struct {
	RideID    uint               `db:"ride_id"`
	UserID    int64              `db:"user_id"`
	State     ParticipationState `db:"state"`
	UpdatedAt time.Time          `db:"updated_at"`
}

// RidePatch carries a partial ride update. Nil fields are left untouched.
type RidePatch struct {
	Title          *string
	Category       *string
	Date           *time.Time
	MeetingPoint   *string
	RouteLink      *string
	Distance       *string
	Duration       *string
	SpeedMin       *string
	SpeedMax       *string
	AdditionalInfo *string
	Cancelled      *bool
}
