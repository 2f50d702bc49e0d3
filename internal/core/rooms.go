package core

import (
	"sort"

	"github.com/puzpuzpuz/xsync/v3"
)

// memberSet is never mutated after it is stored; updates publish a copy.
type memberSet map[string]struct{}

// RoomIndex maps room ids to the connection ids currently present.
// A room entry exists only while it has at least one member.
type RoomIndex struct {
	rooms *xsync.MapOf[string, memberSet]
}

// NewRoomIndex constructs an empty index.
func NewRoomIndex() *RoomIndex {
	return &RoomIndex{rooms: xsync.NewMapOf[string, memberSet]()}
}

// Join adds id to room, creating the room on first join.
func (x *RoomIndex) Join(room, id string) {
	x.rooms.Compute(room, func(old memberSet, _ bool) (memberSet, bool) {
		if _, ok := old[id]; ok {
			return old, false
		}
		next := make(memberSet, len(old)+1)
		for m := range old {
			next[m] = struct{}{}
		}
		next[id] = struct{}{}
		return next, false
	})
}

// Leave removes id from room and drops the room when it becomes empty.
// It reports whether id was a member.
func (x *RoomIndex) Leave(room, id string) bool {
	removed := false
	x.rooms.Compute(room, func(old memberSet, loaded bool) (memberSet, bool) {
		if !loaded {
			return nil, true
		}
		if _, ok := old[id]; !ok {
			return old, false
		}
		removed = true
		if len(old) == 1 {
			return nil, true
		}
		next := make(memberSet, len(old)-1)
		for m := range old {
			if m != id {
				next[m] = struct{}{}
			}
		}
		return next, false
	})
	return removed
}

// Members returns a sorted snapshot of the ids in room.
func (x *RoomIndex) Members(room string) []string {
	set, ok := x.rooms.Load(room)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Size returns the member count of room; zero for unknown rooms.
func (x *RoomIndex) Size(room string) int {
	set, _ := x.rooms.Load(room)
	return len(set)
}

// Has reports whether room currently has an entry.
func (x *RoomIndex) Has(room string) bool {
	_, ok := x.rooms.Load(room)
	return ok
}

// Len returns the number of non-empty rooms.
func (x *RoomIndex) Len() int {
	return x.rooms.Size()
}
