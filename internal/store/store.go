package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned (wrapped) when a lookup matches no row.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned (wrapped) when a unique value is already taken.
	ErrConflict = errors.New("conflict")
)

// User represents a user in the system.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	IsGuest      bool
	SessionID    string // For guest user session tracking
	CreatedAt    time.Time
}

// Meeting binds a signaling room id to a scheduled conference.
type Meeting struct {
	ID        int64
	RoomID    string
	Title     string
	OwnerID   *int64
	CreatedAt time.Time
}

// Participation is one join/leave timestamp pair of a user in a meeting.
type Participation struct {
	ID        int64
	MeetingID int64
	UserID    int64
	JoinedAt  time.Time
	LeftAt    *time.Time // nil while the user is still connected
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	CreateUser(ctx context.Context, username, passwordHash string) (*User, error)

	// CreateGuestUser creates a temporary guest user with session ID.
	CreateGuestUser(ctx context.Context, sessionID string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByUsername retrieves a registered (non-guest) user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)
}

// MeetingStore handles meeting persistence.
type MeetingStore interface {
	// CreateMeeting binds roomID to a new meeting.
	CreateMeeting(ctx context.Context, roomID, title string, ownerID *int64) (*Meeting, error)

	// GetMeeting retrieves a meeting by ID.
	GetMeeting(ctx context.Context, id int64) (*Meeting, error)

	// FindMeetingByRoom returns the meeting bound to roomID or an ErrNotFound error.
	FindMeetingByRoom(ctx context.Context, roomID string) (*Meeting, error)
}

// ParticipationStore records when users join and leave meetings.
type ParticipationStore interface {
	// OpenParticipation stores a join timestamp for userID in meetingID
	// and returns the id of the new record.
	OpenParticipation(ctx context.Context, meetingID, userID int64) (int64, error)

	// CloseParticipation sets the leave timestamp on an open record.
	// Returns ErrNotFound if the record does not exist or is already closed.
	CloseParticipation(ctx context.Context, participationID int64) error

	// ListParticipations lists records of a meeting, oldest first.
	ListParticipations(ctx context.Context, meetingID int64) ([]*Participation, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	MeetingStore
	ParticipationStore

	// Close closes the underlying database connection.
	Close() error
}
