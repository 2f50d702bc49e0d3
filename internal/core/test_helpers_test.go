package core

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/vovakirdan/wiremeet/internal/store"
)

func mustFrame(t *testing.T, c *Conn, typ string) map[string]any {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case data := <-c.Outbound():
			var f map[string]any
			if err := json.Unmarshal(data, &f); err != nil {
				t.Fatalf("bad frame %q: %v", data, err)
			}
			if f["type"] == typ {
				return f
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected frame %q not received by %s", typ, c.ID)
	return nil
}

// expectNoFrame fails if c receives a frame of typ within wait.
func expectNoFrame(t *testing.T, c *Conn, typ string, wait time.Duration) {
	t.Helper()

	deadline := time.Now().Add(wait)
	for time.Now().Before(deadline) {
		select {
		case data := <-c.Outbound():
			var f map[string]any
			_ = json.Unmarshal(data, &f)
			if f["type"] == typ {
				t.Fatalf("unexpected frame for %s: %s", c.ID, data)
			}
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
}

func drain(c *Conn) {
	for {
		select {
		case <-c.Outbound():
		default:
			return
		}
	}
}

func mustConnect(t *testing.T, h *Hub, room, credential string) *Conn {
	t.Helper()
	c, err := h.Connect(context.Background(), ConnectRequest{Room: room, Credential: credential})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	return c
}

type fakeVerifier map[string]*Identity

func (f fakeVerifier) Verify(_ context.Context, credential string) *Identity {
	return f[credential]
}

type fakeMeetings struct {
	byRoom map[string]*store.Meeting
	err    error
}

func (f *fakeMeetings) FindMeetingByRoom(_ context.Context, roomID string) (*store.Meeting, error) {
	if f.err != nil {
		return nil, f.err
	}
	m, ok := f.byRoom[roomID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return m, nil
}

type participationCall struct {
	op        string
	id        int64
	meetingID int64
	userID    int64
}

// fakeParticipation hands out record ids from 1 and logs every call.
type fakeParticipation struct {
	mu      sync.Mutex
	calls   []participationCall
	rows    map[int64]participationCall
	lastID  int64
	openErr error
}

func (f *fakeParticipation) OpenParticipation(_ context.Context, meetingID, userID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		f.calls = append(f.calls, participationCall{"open", 0, meetingID, userID})
		return 0, f.openErr
	}
	if f.rows == nil {
		f.rows = make(map[int64]participationCall)
	}
	f.lastID++
	call := participationCall{"open", f.lastID, meetingID, userID}
	f.rows[call.id] = call
	f.calls = append(f.calls, call)
	return call.id, nil
}

func (f *fakeParticipation) CloseParticipation(_ context.Context, participationID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[participationID]
	if !ok {
		return store.ErrNotFound
	}
	delete(f.rows, participationID)
	f.calls = append(f.calls, participationCall{"close", participationID, row.meetingID, row.userID})
	return nil
}

func (f *fakeParticipation) snapshot() []participationCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]participationCall(nil), f.calls...)
}

func waitCalls(t *testing.T, f *fakeParticipation, n int) []participationCall {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if calls := f.snapshot(); len(calls) >= n {
			return calls
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected %d participation calls, got %+v", n, f.snapshot())
	return nil
}
