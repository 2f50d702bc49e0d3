package core

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wiremeet/internal/metrics"
	"github.com/vovakirdan/wiremeet/internal/store"
)

type taskKind int

const (
	taskOpen taskKind = iota
	taskClose
)

func (k taskKind) String() string {
	if k == taskOpen {
		return "open"
	}
	return "close"
}

type participationTask struct {
	kind   taskKind
	connID string
	room   string
	userID int64
}

type openRecord struct {
	participationID int64
	meetingID       int64
	userID          int64
}

// drainTimeout bounds how long Run keeps applying queued tasks after cancel.
const drainTimeout = 10 * time.Second

// Tracker records meeting participation off the connection path.
// A single worker drains the queue so open and close for one connection
// are applied in the order they were enqueued.
type Tracker struct {
	meetings MeetingLookup
	store    ParticipationStore
	tasks    chan participationTask
	timeout  time.Duration
	log      *zerolog.Logger

	// open is owned by the worker goroutine.
	open map[string]openRecord
}

// NewTracker returns a tracker. With a nil lookup or store every call is a no-op.
func NewTracker(meetings MeetingLookup, st ParticipationStore, queue int, timeout time.Duration, logger *zerolog.Logger) *Tracker {
	if queue <= 0 {
		queue = 1
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Tracker{
		meetings: meetings,
		store:    st,
		tasks:    make(chan participationTask, queue),
		timeout:  timeout,
		log:      logger,
		open:     make(map[string]openRecord),
	}
}

func (t *Tracker) enabled() bool {
	return t.meetings != nil && t.store != nil
}

// Open schedules a join record for connID if room has a meeting.
func (t *Tracker) Open(connID, room string, userID int64) {
	t.enqueue(participationTask{kind: taskOpen, connID: connID, room: room, userID: userID})
}

// Close schedules the leave record for connID, if one was opened.
func (t *Tracker) Close(connID string) {
	t.enqueue(participationTask{kind: taskClose, connID: connID})
}

func (t *Tracker) enqueue(task participationTask) {
	if !t.enabled() {
		return
	}
	select {
	case t.tasks <- task:
	default:
		metrics.ParticipationErrors.WithLabelValues(task.kind.String()).Inc()
		t.log.Warn().
			Str("conn_id", task.connID).
			Str("op", task.kind.String()).
			Msg("participation queue full, task dropped")
	}
}

// Run processes tasks until ctx is cancelled, then applies whatever is still
// queued. Store calls are not cut short by the cancel, only by the timeouts.
func (t *Tracker) Run(ctx context.Context) {
	work := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			t.drain(work)
			return
		case task := <-t.tasks:
			t.process(work, task)
		}
	}
}

func (t *Tracker) drain(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, drainTimeout)
	defer cancel()

	for {
		select {
		case task := <-t.tasks:
			if ctx.Err() != nil {
				lost := len(t.tasks) + 1
				metrics.ParticipationErrors.WithLabelValues("drain").Add(float64(lost))
				t.log.Warn().Int("tasks", lost).Msg("participation drain timed out, tasks dropped")
				return
			}
			t.process(ctx, task)
		default:
			return
		}
	}
}

func (t *Tracker) process(ctx context.Context, task participationTask) {
	taskCtx := ctx
	if t.timeout > 0 {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	switch task.kind {
	case taskOpen:
		t.openParticipation(taskCtx, task)
	case taskClose:
		t.closeParticipation(taskCtx, task)
	}
}

func (t *Tracker) openParticipation(ctx context.Context, task participationTask) {
	meeting, err := t.meetings.FindMeetingByRoom(ctx, task.room)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return
		}
		metrics.ParticipationErrors.WithLabelValues("lookup").Inc()
		t.log.Warn().Err(err).Str("room", task.room).Msg("meeting lookup failed")
		return
	}
	id, err := t.store.OpenParticipation(ctx, meeting.ID, task.userID)
	if err != nil {
		metrics.ParticipationErrors.WithLabelValues("open").Inc()
		t.log.Warn().
			Err(err).
			Str("conn_id", task.connID).
			Int64("meeting_id", meeting.ID).
			Int64("user_id", task.userID).
			Msg("open participation failed")
		return
	}
	t.open[task.connID] = openRecord{participationID: id, meetingID: meeting.ID, userID: task.userID}
}

func (t *Tracker) closeParticipation(ctx context.Context, task participationTask) {
	rec, ok := t.open[task.connID]
	if !ok {
		return
	}
	delete(t.open, task.connID)
	if err := t.store.CloseParticipation(ctx, rec.participationID); err != nil {
		metrics.ParticipationErrors.WithLabelValues("close").Inc()
		t.log.Warn().
			Err(err).
			Str("conn_id", task.connID).
			Int64("participation_id", rec.participationID).
			Int64("meeting_id", rec.meetingID).
			Int64("user_id", rec.userID).
			Msg("close participation failed")
	}
}
