package core

import (
	"context"

	"github.com/vovakirdan/wiremeet/internal/store"
)

// Identity is an authenticated user attached to a connection.
type Identity struct {
	UserID   int64
	Username string
	IsGuest  bool
}

// IdentityVerifier resolves a transport credential (cookie or bearer token) to a user.
// Implementations never fail: nil means the participant stays anonymous.
type IdentityVerifier interface {
	Verify(ctx context.Context, credential string) *Identity
}

// MeetingLookup resolves a room id to its meeting.
// An error wrapping store.ErrNotFound means the room has no meeting.
type MeetingLookup interface {
	FindMeetingByRoom(ctx context.Context, roomID string) (*store.Meeting, error)
}

// ParticipationStore records join and leave timestamps.
type ParticipationStore interface {
	OpenParticipation(ctx context.Context, meetingID, userID int64) (int64, error)
	CloseParticipation(ctx context.Context, participationID int64) error
}
