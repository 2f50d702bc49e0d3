package core

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wiremeet/internal/metrics"
	"github.com/vovakirdan/wiremeet/internal/proto"
	"github.com/vovakirdan/wiremeet/internal/store"
)

// Options tune hub behaviour. Zero values fall back to defaults.
type Options struct {
	DefaultRoom       string
	SendBuffer        int
	RelayUnknownTypes bool
	TrackerQueue      int
	StoreTimeout      time.Duration
}

// Deps are the hub's external collaborators. Any of them may be nil.
type Deps struct {
	Verifier      IdentityVerifier
	Meetings      MeetingLookup
	Participation ParticipationStore
}

// ConnectRequest carries what the transport knows about a new socket.
type ConnectRequest struct {
	Room       string
	Credential string
	SessionID  string
}

// RoomInfo is the read-only view of a room.
type RoomInfo struct {
	Room    string
	Count   int
	Meeting *store.Meeting
}

// Stats is a point-in-time summary of the hub.
type Stats struct {
	Connections int
	Rooms       int
}

// Hub coordinates connection lifecycles across the registry, room index,
// router and participation tracker.
type Hub struct {
	registry *Registry
	rooms    *RoomIndex
	router   *Router
	tracker  *Tracker
	verifier IdentityVerifier
	meetings MeetingLookup
	opts     Options
	log      *zerolog.Logger
}

// NewHub creates a hub. Call Run to start background participation tracking.
func NewHub(deps Deps, opts Options, logger *zerolog.Logger) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if opts.DefaultRoom == "" {
		opts.DefaultRoom = "default"
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 64
	}
	if opts.TrackerQueue <= 0 {
		opts.TrackerQueue = 256
	}

	registry := NewRegistry()
	rooms := NewRoomIndex()
	return &Hub{
		registry: registry,
		rooms:    rooms,
		router:   NewRouter(registry, rooms, opts.RelayUnknownTypes, logger),
		tracker:  NewTracker(deps.Meetings, deps.Participation, opts.TrackerQueue, opts.StoreTimeout, logger),
		verifier: deps.Verifier,
		meetings: deps.Meetings,
		opts:     opts,
		log:      logger,
	}
}

// Run blocks until ctx is cancelled, processing participation tasks.
func (h *Hub) Run(ctx context.Context) {
	h.log.Info().Msg("hub started")
	h.tracker.Run(ctx)
	h.log.Info().Msg("hub stopped")
}

// Connect admits a new participant: it registers the connection, joins the
// room, sends the joiner the current members and announces it to the others.
func (h *Hub) Connect(ctx context.Context, req ConnectRequest) (*Conn, error) {
	room := req.Room
	if room == "" {
		room = h.opts.DefaultRoom
	}

	var identity *Identity
	if h.verifier != nil && req.Credential != "" {
		identity = h.verifier.Verify(ctx, req.Credential)
	}

	conn := newConn(uuid.NewString(), room, identity, req.SessionID, h.opts.SendBuffer)
	if !h.registry.Register(conn) {
		h.log.Error().Str("conn_id", conn.ID).Msg("connection id collision")
		return nil, ErrDuplicateConn
	}

	others := h.rooms.Members(room)
	h.rooms.Join(room, conn.ID)
	h.updateGauges()
	metrics.WSConnections.Inc()

	if data, err := json.Marshal(proto.NewRoomMembers(others)); err == nil {
		if err := conn.Send(data); err != nil {
			metrics.Dropped(dropReason(err))
		}
	}

	joined := proto.UserJoined{Type: proto.TypeUserJoined, UserID: conn.ID}
	if identity != nil {
		uid := identity.UserID
		joined.AuthenticatedUserID = &uid
		joined.Username = identity.Username
	}
	if data, err := json.Marshal(joined); err == nil {
		h.router.Broadcast(room, data, conn.ID)
	}

	if identity != nil {
		h.tracker.Open(conn.ID, room, identity.UserID)
	}

	ev := h.log.Info().Str("conn_id", conn.ID).Str("room", room)
	if identity != nil {
		ev = ev.Int64("user_id", identity.UserID)
	}
	ev.Int("members", len(others)+1).Msg("participant joined")
	return conn, nil
}

// Disconnect tears conn down. Only the first call has any effect.
func (h *Hub) Disconnect(conn *Conn) {
	if conn == nil {
		return
	}
	if _, ok := h.registry.Unregister(conn.ID); !ok {
		return
	}
	if conn.Identity != nil {
		h.tracker.Close(conn.ID)
	}
	h.rooms.Leave(conn.Room, conn.ID)
	conn.Close()
	h.updateGauges()

	if data, err := json.Marshal(proto.UserLeft{Type: proto.TypeUserLeft, UserID: conn.ID}); err == nil {
		h.router.Broadcast(conn.Room, data, conn.ID)
	}
	h.log.Info().Str("conn_id", conn.ID).Str("room", conn.Room).Msg("participant left")
}

// Shutdown disconnects every live participant so their leave records are
// queued before Run is cancelled. Writers see Done and close their sockets.
func (h *Hub) Shutdown() {
	conns := h.registry.Snapshot()
	for _, c := range conns {
		h.Disconnect(c)
	}
	h.log.Info().Int("connections", len(conns)).Msg("hub shut down")
}

// Handle routes one inbound frame from conn. Dropped frames are logged only.
func (h *Hub) Handle(conn *Conn, data []byte) {
	err := h.router.Route(conn, data)
	if err == nil {
		return
	}
	metrics.Dropped(dropReason(err))
	ev := h.log.Debug()
	if errors.Is(err, ErrForbiddenType) {
		ev = h.log.Warn()
	}
	ev.Err(err).Str("conn_id", conn.ID).Str("room", conn.Room).Msg("frame dropped")
}

// RoomInfo reports a room's live member count and its meeting, if any.
func (h *Hub) RoomInfo(ctx context.Context, room string) RoomInfo {
	info := RoomInfo{Room: room, Count: h.rooms.Size(room)}
	if h.meetings == nil {
		return info
	}
	meeting, err := h.meetings.FindMeetingByRoom(ctx, room)
	switch {
	case err == nil:
		info.Meeting = meeting
	case errors.Is(err, store.ErrNotFound):
	default:
		h.log.Warn().Err(err).Str("room", room).Msg("meeting lookup failed")
	}
	return info
}

// Members returns a sorted snapshot of the connection ids in room.
func (h *Hub) Members(room string) []string {
	return h.rooms.Members(room)
}

// Lookup returns a live connection by id.
func (h *Hub) Lookup(id string) (*Conn, bool) {
	return h.registry.Lookup(id)
}

// Stats returns current connection and room counts.
func (h *Hub) Stats() Stats {
	return Stats{Connections: h.registry.Len(), Rooms: h.rooms.Len()}
}

func (h *Hub) updateGauges() {
	metrics.SetConnections(h.registry.Len())
	metrics.SetRooms(h.rooms.Len())
}
