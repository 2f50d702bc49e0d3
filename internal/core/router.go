package core

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wiremeet/internal/metrics"
	"github.com/vovakirdan/wiremeet/internal/proto"
)

// Router relays inbound client frames to their recipients.
type Router struct {
	registry     *Registry
	rooms        *RoomIndex
	relayUnknown bool
	log          *zerolog.Logger
}

// NewRouter wires a router over the given registry and room index.
func NewRouter(registry *Registry, rooms *RoomIndex, relayUnknown bool, logger *zerolog.Logger) *Router {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Router{registry: registry, rooms: rooms, relayUnknown: relayUnknown, log: logger}
}

// Route dispatches one raw frame from sender. Errors describe why the frame
// was dropped; nothing is ever sent back to the sender.
func (r *Router) Route(sender *Conn, data []byte) error {
	frame, typ, err := proto.Decode(data)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}
	if proto.IsServerOnly(typ) {
		return fmt.Errorf("%w: %s", ErrForbiddenType, typ)
	}
	if !proto.IsKnown(typ) && !r.relayUnknown {
		return fmt.Errorf("%w: %s", ErrUnknownType, typ)
	}
	metrics.FramesRouted.WithLabelValues(typeLabel(typ)).Inc()

	switch {
	case proto.IsUnicast(typ):
		return r.unicast(sender, frame, typ)
	case typ == proto.TypeSetPresenter:
		return r.broadcast(sender, frame, "")
	default:
		return r.broadcast(sender, frame, sender.ID)
	}
}

func (r *Router) unicast(sender *Conn, frame proto.Frame, typ string) error {
	target := frame.String(proto.FieldTarget)
	if target == "" {
		return fmt.Errorf("%w: %s", ErrMissingTarget, typ)
	}
	frame.SetString(proto.FieldFrom, sender.ID)
	data, err := frame.Encode()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}
	if err := r.registry.Send(target, data); err != nil {
		metrics.Dropped(dropReason(err))
		r.log.Debug().
			Err(err).
			Str("type", typ).
			Str("from", sender.ID).
			Str("target", target).
			Msg("unicast not delivered")
	}
	return nil
}

// broadcast stamps the sender id and fans the frame out to its room.
func (r *Router) broadcast(sender *Conn, frame proto.Frame, exclude string) error {
	frame.SetString(proto.FieldUserID, sender.ID)
	data, err := frame.Encode()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}
	r.Broadcast(sender.Room, data, exclude)
	return nil
}

// Broadcast sends an encoded frame to every member of room except exclude.
// Slow recipients lose the frame instead of delaying the others.
func (r *Router) Broadcast(room string, data []byte, exclude string) {
	for _, id := range r.rooms.Members(room) {
		if id == exclude {
			continue
		}
		if err := r.registry.Send(id, data); err != nil {
			metrics.Dropped(dropReason(err))
			r.log.Debug().Err(err).Str("room", room).Str("conn_id", id).Msg("broadcast not delivered")
		}
	}
}

func typeLabel(typ string) string {
	if proto.IsKnown(typ) {
		return typ
	}
	return "other"
}
