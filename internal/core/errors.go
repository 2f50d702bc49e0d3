package core

import (
	"errors"

	"github.com/vovakirdan/wiremeet/internal/metrics"
)

var (
	// ErrMalformedFrame marks frames that are not a JSON object with a string type.
	ErrMalformedFrame = errors.New("malformed frame")
	// ErrMissingTarget marks unicast frames without a target connection id.
	ErrMissingTarget = errors.New("missing target")
	// ErrForbiddenType marks server-only types sent by a client.
	ErrForbiddenType = errors.New("forbidden message type")
	// ErrUnknownType marks unrecognised types when relaying them is disabled.
	ErrUnknownType = errors.New("unknown message type")

	// ErrConnClosed is returned by Send once the connection is closed.
	ErrConnClosed = errors.New("connection closed")
	// ErrBackpressure is returned by Send when the outbound buffer is full.
	ErrBackpressure = errors.New("backpressure")
	// ErrNotConnected is returned by Registry.Send for unknown ids.
	ErrNotConnected = errors.New("not connected")
	// ErrDuplicateConn means a generated connection id collided.
	ErrDuplicateConn = errors.New("duplicate connection id")
)

// dropReason maps routing and delivery errors to metric labels.
func dropReason(err error) string {
	switch {
	case errors.Is(err, ErrMalformedFrame):
		return metrics.DropMalformed
	case errors.Is(err, ErrMissingTarget):
		return metrics.DropMissingField
	case errors.Is(err, ErrForbiddenType):
		return metrics.DropForbidden
	case errors.Is(err, ErrUnknownType):
		return metrics.DropUnknown
	case errors.Is(err, ErrBackpressure):
		return metrics.DropBackpressure
	default:
		return metrics.DropNoTarget
	}
}
