package proto

import (
	"encoding/json"
	"errors"
)

// Message types exchanged over the signaling socket.
const (
	TypeRoomMembers = "room-members"
	TypeUserJoined  = "user-joined"
	TypeUserLeft    = "user-left"

	TypeOffer        = "offer"
	TypeAnswer       = "answer"
	TypeICECandidate = "ice-candidate"

	TypeAvatarPosition = "avatar-position"
	TypeCanvasDraw     = "canvas-draw"
	TypeCanvasClear    = "canvas-clear"
	TypeSetPresenter   = "set-presenter"
)

// Field names the server reads or overwrites.
const (
	FieldType   = "type"
	FieldTarget = "target"
	FieldFrom   = "from"
	FieldUserID = "userId"
)

var (
	// ErrNotObject is returned when a frame is not a JSON object.
	ErrNotObject = errors.New("frame is not a json object")
	// ErrMissingType is returned when a frame has no string "type" field.
	ErrMissingType = errors.New("frame has no type")
)

// Frame is an inbound or relayed message. Fields other than the ones the
// server touches are kept as raw JSON and forwarded untouched.
type Frame map[string]json.RawMessage

// Decode parses one transport frame and returns it with its type tag.
func Decode(data []byte) (Frame, string, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, "", errors.Join(ErrNotObject, err)
	}
	if f == nil {
		return nil, "", ErrNotObject
	}
	raw, ok := f[FieldType]
	if !ok {
		return nil, "", ErrMissingType
	}
	var typ string
	if err := json.Unmarshal(raw, &typ); err != nil || typ == "" {
		return nil, "", ErrMissingType
	}
	return f, typ, nil
}

// String returns a string field, or "" when absent or not a string.
func (f Frame) String(key string) string {
	raw, ok := f[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// SetString overwrites key with a JSON string value.
func (f Frame) SetString(key, value string) {
	raw, _ := json.Marshal(value)
	f[key] = raw
}

// Encode marshals the frame back to wire form.
func (f Frame) Encode() ([]byte, error) {
	return json.Marshal(f)
}

// RoomMembers is sent to a new connection with the ids already in its room.
type RoomMembers struct {
	Type    string   `json:"type"`
	Members []string `json:"members"`
}

// UserJoined announces a new room member.
type UserJoined struct {
	Type                string `json:"type"`
	UserID              string `json:"userId"`
	AuthenticatedUserID *int64 `json:"authenticatedUserId,omitempty"`
	Username            string `json:"username,omitempty"`
}

// UserLeft announces a departed room member.
type UserLeft struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

// NewRoomMembers builds a room-members frame; members is never encoded as null.
func NewRoomMembers(members []string) RoomMembers {
	if members == nil {
		members = []string{}
	}
	return RoomMembers{Type: TypeRoomMembers, Members: members}
}

// IsUnicast reports whether typ is relayed to a single target.
func IsUnicast(typ string) bool {
	switch typ {
	case TypeOffer, TypeAnswer, TypeICECandidate:
		return true
	}
	return false
}

// IsServerOnly reports whether typ may only be produced by the server.
func IsServerOnly(typ string) bool {
	switch typ {
	case TypeRoomMembers, TypeUserJoined, TypeUserLeft:
		return true
	}
	return false
}

// IsKnown reports whether typ belongs to the closed client type set.
func IsKnown(typ string) bool {
	switch typ {
	case TypeOffer, TypeAnswer, TypeICECandidate,
		TypeAvatarPosition, TypeCanvasDraw, TypeCanvasClear, TypeSetPresenter:
		return true
	}
	return false
}
