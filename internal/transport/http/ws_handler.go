package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"
	"slices"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-contrib/sessions"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wiremeet/internal/config"
	"github.com/vovakirdan/wiremeet/internal/core"
	"github.com/vovakirdan/wiremeet/internal/metrics"
)

const (
	writeTimeout = 10 * time.Second
	wsPathPrefix = "/ws/"
)

// WSHandler upgrades HTTP connections and bridges them to the hub.
type WSHandler struct {
	hub      *core.Hub
	sessions sessions.Store
	cfg      *config.Config
	log      *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, sessionStore sessions.Store, cfg *config.Config, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{hub: hub, sessions: sessionStore, cfg: cfg, log: logger}
}

func (h *WSHandler) acceptOptions() *websocket.AcceptOptions {
	opts := &websocket.AcceptOptions{}
	if slices.Contains(h.cfg.AllowedOrigins, "*") {
		opts.InsecureSkipVerify = true
	} else {
		opts.OriginPatterns = h.cfg.AllowedOrigins
	}
	return opts
}

// roomFromRequest reads the room from /ws/{room}, falling back to ?room=.
func roomFromRequest(r *stdhttp.Request) (string, bool) {
	room, hasPath := strings.CutPrefix(r.URL.Path, wsPathPrefix)
	if hasPath && room != "" {
		return room, !strings.Contains(room, "/")
	}
	return r.URL.Query().Get("room"), true
}

// ServeHTTP serves GET /ws and GET /ws/{room}.
func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	if r.Method != stdhttp.MethodGet {
		stdhttp.Error(w, "method not allowed", stdhttp.StatusMethodNotAllowed)
		return
	}
	room, ok := roomFromRequest(r)
	if !ok {
		stdhttp.NotFound(w, r)
		return
	}
	cred := credential(r, h.cfg.AuthCookieName)
	sid := sessionID(h.sessions, w, r, h.log)

	conn, err := websocket.Accept(w, r, h.acceptOptions())
	if err != nil {
		h.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("ws accept error")
		return
	}
	defer conn.CloseNow()
	if h.cfg.MaxMessageBytes > 0 {
		conn.SetReadLimit(int64(h.cfg.MaxMessageBytes))
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	member, err := h.hub.Connect(ctx, core.ConnectRequest{
		Room:       room,
		Credential: cred,
		SessionID:  sid,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("hub connect failed")
		_ = conn.Close(websocket.StatusInternalError, "unavailable")
		return
	}

	log := h.log.With().Str("conn_id", member.ID).Str("room", member.Room).Logger()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, member, &log)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, member, &log)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	// Leave the room before the close handshake, which may wait on a dead peer.
	h.hub.Disconnect(member)

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = "connection error"
			log.Warn().Err(err).Msg("ws connection closed with error")
		}
	}

	_ = conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, member *core.Conn, log *zerolog.Logger) error {
	limiter := newRateLimiter(h.cfg.MessagesPerMinute)
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		metrics.FrameSize.WithLabelValues("in").Observe(float64(len(data)))

		if !limiter.allow() {
			metrics.Dropped(metrics.DropRateLimited)
			log.Debug().Msg("rate limit exceeded, frame dropped")
			continue
		}
		h.hub.Handle(member, data)
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, member *core.Conn, log *zerolog.Logger) error {
	var pings <-chan time.Time
	if h.cfg.PingInterval > 0 {
		ticker := time.NewTicker(h.cfg.PingInterval)
		defer ticker.Stop()
		pings = ticker.C
	}

	for {
		select {
		case data := <-member.Outbound():
			if err := h.write(ctx, conn, data); err != nil {
				log.Debug().Err(err).Msg("write ws frame")
				return err
			}
		case <-pings:
			pingCtx, cancel := context.WithTimeout(ctx, h.cfg.PingInterval)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				log.Debug().Err(err).Msg("ping failed")
				return err
			}
		case <-member.Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *WSHandler) write(ctx context.Context, conn *websocket.Conn, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	metrics.FrameSize.WithLabelValues("out").Observe(float64(len(data)))
	return conn.Write(ctx, websocket.MessageText, data)
}
