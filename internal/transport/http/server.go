package http

import (
	stdhttp "net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wiremeet/internal/auth"
	"github.com/vovakirdan/wiremeet/internal/config"
	"github.com/vovakirdan/wiremeet/internal/core"
	"github.com/vovakirdan/wiremeet/internal/metrics"
	"github.com/vovakirdan/wiremeet/internal/store"
)

// NewServer builds the HTTP server exposing the signaling socket and REST API.
func NewServer(hub *core.Hub, authService *auth.Service, st store.Store, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           NewRouter(hub, authService, st, cfg, logger),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// NewRouter serves the signaling socket on a plain mux and hands every other
// path to the gin engine. The socket stays outside gin: gin refuses to hijack
// a response once the upgrade has written its header.
func NewRouter(hub *core.Hub, authService *auth.Service, st store.Store, cfg *config.Config, logger *zerolog.Logger) stdhttp.Handler {
	sessionStore := cookie.NewStore([]byte(cfg.SessionSecret))

	ws := NewWSHandler(hub, sessionStore, cfg, logger)
	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", ws)
	mux.Handle("/ws/", ws)
	mux.Handle("/", newEngine(hub, authService, st, sessionStore, cfg, logger))
	return mux
}

func newEngine(hub *core.Hub, authService *auth.Service, st store.Store, sessionStore sessions.Store, cfg *config.Config, logger *zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(logger))
	r.Use(sessions.Sessions(sessionName, sessionStore))
	r.Use(SessionMiddleware(logger))

	r.GET("/health", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})
	if cfg.MetricsRoute != "" {
		r.GET(cfg.MetricsRoute, gin.WrapH(metrics.Handler()))
	}

	apiHandlers := NewAPIHandlers(authService, cfg.AuthCookieName, logger)
	roomHandlers := NewRoomHandlers(hub, st, logger)
	userHandlers := NewUserHandlers(st, logger)
	requireAuth := AuthMiddleware(authService, cfg.AuthCookieName, logger)

	api := r.Group("/api")
	api.POST("/register", apiHandlers.Register)
	api.POST("/login", apiHandlers.Login)
	api.POST("/guest", apiHandlers.GuestLogin)
	api.POST("/logout", apiHandlers.Logout)
	api.GET("/rooms/:room", roomHandlers.RoomInfo)
	api.GET("/me", requireAuth, userHandlers.Me)

	meetings := api.Group("/meetings", requireAuth)
	meetings.POST("", roomHandlers.CreateMeeting)
	meetings.GET("/:id/participations", roomHandlers.ListParticipations)

	return r
}
