package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wiremeet/internal/core"
	"github.com/vovakirdan/wiremeet/internal/store"
)

// RoomHandlers serves room info and the meetings bound to rooms.
type RoomHandlers struct {
	hub   *core.Hub
	store store.Store
	log   *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance.
func NewRoomHandlers(hub *core.Hub, st store.Store, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{hub: hub, store: st, log: logger}
}

// MeetingResponse represents a meeting in API responses.
type MeetingResponse struct {
	ID        int64  `json:"id"`
	RoomID    string `json:"room_id"`
	Title     string `json:"title"`
	OwnerID   *int64 `json:"owner_id,omitempty"`
	CreatedAt string `json:"created_at"`
}

// RoomInfoResponse is the read-only view of a live room.
type RoomInfoResponse struct {
	Room    string           `json:"room"`
	Count   int              `json:"count"`
	Meeting *MeetingResponse `json:"meeting,omitempty"`
}

// CreateMeetingRequest represents the create meeting request body.
type CreateMeetingRequest struct {
	RoomID string `json:"room_id" binding:"required,min=1,max=128"`
	Title  string `json:"title" binding:"max=256"`
}

// ParticipationResponse is one join/leave record.
type ParticipationResponse struct {
	UserID   int64   `json:"user_id"`
	JoinedAt string  `json:"joined_at"`
	LeftAt   *string `json:"left_at,omitempty"`
}

// RoomInfo reports how many participants a room has and its meeting.
// GET /api/rooms/:room
func (h *RoomHandlers) RoomInfo(c *gin.Context) {
	info := h.hub.RoomInfo(c.Request.Context(), c.Param("room"))
	resp := RoomInfoResponse{Room: info.Room, Count: info.Count}
	if info.Meeting != nil {
		m := meetingResponse(info.Meeting)
		resp.Meeting = &m
	}
	c.JSON(http.StatusOK, resp)
}

// CreateMeeting binds a room id to a new meeting owned by the caller.
// POST /api/meetings
func (h *RoomHandlers) CreateMeeting(c *gin.Context) {
	uid, ok := userIDFrom(c)
	if !ok {
		h.log.Error().Msg("user_id not found in context")
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req CreateMeetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create meeting request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	roomID := strings.TrimSpace(req.RoomID)
	if roomID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "room_id is required"})
		return
	}

	meeting, err := h.store.CreateMeeting(c.Request.Context(), roomID, strings.TrimSpace(req.Title), &uid)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			c.JSON(http.StatusConflict, ErrorResponse{Error: "room already has a meeting"})
			return
		}
		h.log.Error().Err(err).Str("room", roomID).Msg("failed to create meeting")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Int64("meeting_id", meeting.ID).Str("room", roomID).Int64("owner_id", uid).Msg("meeting created")
	c.JSON(http.StatusCreated, meetingResponse(meeting))
}

// ListParticipations returns the join/leave records of a meeting.
// GET /api/meetings/:id/participations
func (h *RoomHandlers) ListParticipations(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid meeting id"})
		return
	}

	if _, err := h.store.GetMeeting(c.Request.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "meeting not found"})
			return
		}
		h.log.Error().Err(err).Int64("meeting_id", id).Msg("failed to get meeting")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	records, err := h.store.ListParticipations(c.Request.Context(), id)
	if err != nil {
		h.log.Error().Err(err).Int64("meeting_id", id).Msg("failed to list participations")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	resp := make([]ParticipationResponse, 0, len(records))
	for _, p := range records {
		item := ParticipationResponse{UserID: p.UserID, JoinedAt: p.JoinedAt.Format(time.RFC3339)}
		if p.LeftAt != nil {
			left := p.LeftAt.Format(time.RFC3339)
			item.LeftAt = &left
		}
		resp = append(resp, item)
	}
	c.JSON(http.StatusOK, gin.H{"participations": resp})
}

func meetingResponse(m *store.Meeting) MeetingResponse {
	return MeetingResponse{
		ID:        m.ID,
		RoomID:    m.RoomID,
		Title:     m.Title,
		OwnerID:   m.OwnerID,
		CreatedAt: m.CreatedAt.Format(time.RFC3339),
	}
}
