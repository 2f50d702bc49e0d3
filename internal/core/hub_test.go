package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vovakirdan/wiremeet/internal/store"
)

func TestHubJoinAnnouncesMembers(t *testing.T) {
	h := NewHub(Deps{}, Options{}, nil)

	a := mustConnect(t, h, "lobby", "")
	first := mustFrame(t, a, "room-members")
	if members, ok := first["members"].([]any); !ok || len(members) != 0 {
		t.Fatalf("first joiner members = %#v", first["members"])
	}

	b := mustConnect(t, h, "lobby", "")
	second := mustFrame(t, b, "room-members")
	members, _ := second["members"].([]any)
	if len(members) != 1 || members[0] != a.ID {
		t.Fatalf("second joiner members = %#v, want [%s]", second["members"], a.ID)
	}

	joined := mustFrame(t, a, "user-joined")
	if joined["userId"] != b.ID {
		t.Fatalf("user-joined userId = %v, want %s", joined["userId"], b.ID)
	}
	if _, ok := joined["authenticatedUserId"]; ok {
		t.Fatalf("anonymous join carries authenticatedUserId: %+v", joined)
	}
	expectNoFrame(t, b, "user-joined", 50*time.Millisecond)
}

func TestHubDefaultRoom(t *testing.T) {
	h := NewHub(Deps{}, Options{DefaultRoom: "main"}, nil)

	c := mustConnect(t, h, "", "")
	if c.Room != "main" {
		t.Fatalf("room = %q, want main", c.Room)
	}
	if got := h.RoomInfo(context.Background(), "main").Count; got != 1 {
		t.Fatalf("count = %d", got)
	}
}

func TestHubDisconnectAnnouncesLeave(t *testing.T) {
	h := NewHub(Deps{}, Options{}, nil)
	a := mustConnect(t, h, "lobby", "")
	b := mustConnect(t, h, "lobby", "")
	drain(b)

	h.Disconnect(a)

	left := mustFrame(t, b, "user-left")
	if left["userId"] != a.ID {
		t.Fatalf("user-left userId = %v, want %s", left["userId"], a.ID)
	}
	if info := h.RoomInfo(context.Background(), "lobby"); info.Count != 1 {
		t.Fatalf("count after leave = %d, want 1", info.Count)
	}
	select {
	case <-a.Done():
	default:
		t.Fatal("disconnected conn not closed")
	}
}

func TestHubDisconnectIsIdempotent(t *testing.T) {
	h := NewHub(Deps{}, Options{}, nil)
	a := mustConnect(t, h, "lobby", "")
	b := mustConnect(t, h, "lobby", "")
	drain(b)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.Disconnect(a)
		}()
	}
	wg.Wait()

	mustFrame(t, b, "user-left")
	expectNoFrame(t, b, "user-left", 100*time.Millisecond)

	if st := h.Stats(); st.Connections != 1 || st.Rooms != 1 {
		t.Fatalf("stats = %+v", st)
	}
	if got := h.Members("lobby"); len(got) != 1 || got[0] != b.ID {
		t.Fatalf("members = %v", got)
	}
}

func TestHubLastLeaveRemovesRoom(t *testing.T) {
	h := NewHub(Deps{}, Options{}, nil)
	x := mustConnect(t, h, "X", "")

	h.Disconnect(x)

	if got := h.Members("X"); len(got) != 0 {
		t.Fatalf("members = %v", got)
	}
	if info := h.RoomInfo(context.Background(), "X"); info.Count != 0 {
		t.Fatalf("count = %d", info.Count)
	}
	if st := h.Stats(); st.Rooms != 0 || st.Connections != 0 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestHubAuthenticatedJoin(t *testing.T) {
	verifier := fakeVerifier{"good": {UserID: 7, Username: "alice"}}
	h := NewHub(Deps{Verifier: verifier}, Options{}, nil)

	a := mustConnect(t, h, "lobby", "")
	b := mustConnect(t, h, "lobby", "good")
	anon := mustConnect(t, h, "lobby", "bogus")

	if b.Anonymous() || b.Identity.UserID != 7 {
		t.Fatalf("identity = %+v", b.Identity)
	}
	if !anon.Anonymous() {
		t.Fatal("invalid credential must stay anonymous")
	}

	joined := mustFrame(t, a, "user-joined")
	if joined["userId"] != b.ID || joined["authenticatedUserId"] != float64(7) {
		t.Fatalf("user-joined = %+v", joined)
	}
}

func TestHubRoomInfoMeeting(t *testing.T) {
	meetings := &fakeMeetings{byRoom: map[string]*store.Meeting{"lobby": {ID: 3, RoomID: "lobby"}}}
	h := NewHub(Deps{Meetings: meetings}, Options{}, nil)
	mustConnect(t, h, "lobby", "")

	info := h.RoomInfo(context.Background(), "lobby")
	if info.Count != 1 || info.Meeting == nil || info.Meeting.ID != 3 {
		t.Fatalf("info = %+v", info)
	}
	if info := h.RoomInfo(context.Background(), "elsewhere"); info.Meeting != nil || info.Count != 0 {
		t.Fatalf("info = %+v", info)
	}

	meetings.err = errors.New("db down")
	if info := h.RoomInfo(context.Background(), "lobby"); info.Meeting != nil || info.Count != 1 {
		t.Fatalf("lookup failure must still report count: %+v", info)
	}
}

func TestHubTracksParticipation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	parts := &fakeParticipation{}
	h := NewHub(Deps{
		Verifier:      fakeVerifier{"tok": {UserID: 9, Username: "bob"}},
		Meetings:      &fakeMeetings{byRoom: map[string]*store.Meeting{"standup": {ID: 5, RoomID: "standup"}}},
		Participation: parts,
	}, Options{StoreTimeout: time.Second}, nil)
	go h.Run(ctx)

	anon := mustConnect(t, h, "standup", "")
	user := mustConnect(t, h, "standup", "tok")
	elsewhere := mustConnect(t, h, "no-meeting", "tok")

	h.Disconnect(user)
	h.Disconnect(anon)
	h.Disconnect(elsewhere)

	calls := waitCalls(t, parts, 2)
	want := []participationCall{{"open", 1, 5, 9}, {"close", 1, 5, 9}}
	if len(calls) != 2 || calls[0] != want[0] || calls[1] != want[1] {
		t.Fatalf("calls = %+v, want %+v", calls, want)
	}

	time.Sleep(50 * time.Millisecond)
	if calls := parts.snapshot(); len(calls) != 2 {
		t.Fatalf("unexpected extra calls: %+v", calls)
	}
}

func TestHubParticipationFailureDoesNotBlockLifecycle(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	parts := &fakeParticipation{openErr: errors.New("disk full")}
	h := NewHub(Deps{
		Verifier:      fakeVerifier{"tok": {UserID: 1}},
		Meetings:      &fakeMeetings{byRoom: map[string]*store.Meeting{"lobby": {ID: 2}}},
		Participation: parts,
	}, Options{}, nil)
	go h.Run(ctx)

	peer := mustConnect(t, h, "lobby", "")
	user := mustConnect(t, h, "lobby", "tok")
	drain(peer)

	h.Disconnect(user)
	mustFrame(t, peer, "user-left")

	waitCalls(t, parts, 1)
	time.Sleep(50 * time.Millisecond)
	// failed open means there is nothing to close
	if calls := parts.snapshot(); len(calls) != 1 || calls[0].op != "open" {
		t.Fatalf("calls = %+v", calls)
	}
}

func TestHubConnectWithoutRunDoesNotBlock(t *testing.T) {
	h := NewHub(Deps{
		Verifier:      fakeVerifier{"tok": {UserID: 1}},
		Meetings:      &fakeMeetings{},
		Participation: &fakeParticipation{},
	}, Options{TrackerQueue: 1}, nil)

	done := make(chan error, 1)
	go func() {
		for i := 0; i < 10; i++ {
			c, err := h.Connect(context.Background(), ConnectRequest{Room: "lobby", Credential: "tok"})
			if err != nil {
				done <- err
				return
			}
			h.Disconnect(c)
		}
		done <- nil
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("connect: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("lifecycle blocked on a full participation queue")
	}
}

func TestHubParticipationClosesOwnRecord(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	parts := &fakeParticipation{}
	h := NewHub(Deps{
		Verifier:      fakeVerifier{"tok": {UserID: 9}},
		Meetings:      &fakeMeetings{byRoom: map[string]*store.Meeting{"standup": {ID: 5}}},
		Participation: parts,
	}, Options{}, nil)
	go h.Run(ctx)

	// Same user in two tabs: each connection closes the record it opened.
	first := mustConnect(t, h, "standup", "tok")
	second := mustConnect(t, h, "standup", "tok")
	waitCalls(t, parts, 2)

	h.Disconnect(first)
	calls := waitCalls(t, parts, 3)
	if want := (participationCall{"close", 1, 5, 9}); calls[2] != want {
		t.Fatalf("close = %+v, want %+v", calls[2], want)
	}

	h.Disconnect(second)
	calls = waitCalls(t, parts, 4)
	if want := (participationCall{"close", 2, 5, 9}); calls[3] != want {
		t.Fatalf("close = %+v, want %+v", calls[3], want)
	}
}

func TestHubRunDrainsQueueOnCancel(t *testing.T) {
	parts := &fakeParticipation{}
	h := NewHub(Deps{
		Verifier:      fakeVerifier{"tok": {UserID: 9}},
		Meetings:      &fakeMeetings{byRoom: map[string]*store.Meeting{"standup": {ID: 5}}},
		Participation: parts,
	}, Options{StoreTimeout: time.Second}, nil)

	user := mustConnect(t, h, "standup", "tok")
	h.Disconnect(user)

	// Both tasks are still queued when the worker sees the cancel.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	calls := parts.snapshot()
	want := []participationCall{{"open", 1, 5, 9}, {"close", 1, 5, 9}}
	if len(calls) != 2 || calls[0] != want[0] || calls[1] != want[1] {
		t.Fatalf("calls = %+v, want %+v", calls, want)
	}
}

func TestHubShutdownDisconnectsEveryone(t *testing.T) {
	parts := &fakeParticipation{}
	h := NewHub(Deps{
		Verifier:      fakeVerifier{"tok": {UserID: 9}},
		Meetings:      &fakeMeetings{byRoom: map[string]*store.Meeting{"standup": {ID: 5}}},
		Participation: parts,
	}, Options{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	user := mustConnect(t, h, "standup", "tok")
	anon := mustConnect(t, h, "lobby", "")
	waitCalls(t, parts, 1)

	h.Shutdown()
	cancel()
	<-done

	if s := h.Stats(); s.Connections != 0 || s.Rooms != 0 {
		t.Fatalf("stats after shutdown = %+v", s)
	}
	for _, c := range []*Conn{user, anon} {
		select {
		case <-c.Done():
		default:
			t.Fatalf("conn %s still open", c.ID)
		}
	}
	calls := parts.snapshot()
	if len(calls) != 2 || calls[1] != (participationCall{"close", 1, 5, 9}) {
		t.Fatalf("calls = %+v", calls)
	}

	// A second shutdown finds nobody.
	h.Shutdown()
}
