package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wiremeet/internal/auth"
)

const (
	// ContextKeyUserID is the context key for storing user ID.
	ContextKeyUserID = "user_id"
	// ContextKeyUsername is the context key for storing username.
	ContextKeyUsername = "username"
	// ContextKeyIsGuest is the context key for storing guest status.
	ContextKeyIsGuest = "is_guest"
	// ContextKeySessionID holds the browser session id set by SessionMiddleware.
	ContextKeySessionID = "session_id"

	sessionName   = "wiremeet_session"
	sessionIDKey  = "sid"
	cookieMaxAge  = 3600 * 24 * 7
	bearerPrefix  = "Bearer "
	tokenQueryKey = "token"
)

// SessionMiddleware gives every browser a stable session id kept in a signed cookie.
func SessionMiddleware(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		sid, _ := session.Get(sessionIDKey).(string)
		if sid == "" {
			sid = uuid.NewString()
			session.Set(sessionIDKey, sid)
			if err := session.Save(); err != nil {
				logger.Warn().Err(err).Msg("save session")
			}
		}
		c.Set(ContextKeySessionID, sid)
		c.Next()
	}
}

// credential returns the auth token of a request: cookie first, then the
// token query parameter, then a bearer header.
func credential(r *http.Request, cookieName string) string {
	if cookieName != "" {
		if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
			return c.Value
		}
	}
	if v := r.URL.Query().Get(tokenQueryKey); v != "" {
		return v
	}
	return bearerToken(r.Header.Get("Authorization"))
}

// sessionID is SessionMiddleware for handlers mounted outside gin. A freshly
// minted id is queued as Set-Cookie on w, so it must run before the response
// header is written.
func sessionID(st sessions.Store, w http.ResponseWriter, r *http.Request, logger *zerolog.Logger) string {
	session, err := st.Get(r, sessionName)
	if session == nil {
		logger.Debug().Err(err).Msg("load session")
		return uuid.NewString()
	}
	sid, _ := session.Values[sessionIDKey].(string)
	if sid == "" {
		sid = uuid.NewString()
		session.Values[sessionIDKey] = sid
		if err := session.Save(r, w); err != nil {
			logger.Warn().Err(err).Msg("save session")
		}
	}
	return sid
}

func bearerToken(header string) string {
	if !strings.HasPrefix(header, bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(header[len(bearerPrefix):])
}

// AuthMiddleware rejects requests without a valid token in the
// Authorization header or the auth cookie.
func AuthMiddleware(authService *auth.Service, cookieName string, logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" && cookieName != "" {
			token, _ = c.Cookie(cookieName)
		}
		if token == "" {
			logger.Debug().Msg("missing credentials")
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "missing authorization"})
			return
		}

		claims, err := authService.ValidateToken(token)
		if err != nil {
			logger.Debug().Err(err).Msg("invalid token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid token"})
			return
		}

		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeyUsername, claims.Username)
		c.Set(ContextKeyIsGuest, claims.IsGuest)
		c.Next()
	}
}

// LoggerMiddleware creates a middleware that logs HTTP requests.
func LoggerMiddleware(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("http request")
	}
}

func userIDFrom(c *gin.Context) (int64, bool) {
	v, ok := c.Get(ContextKeyUserID)
	if !ok {
		return 0, false
	}
	uid, ok := v.(int64)
	return uid, ok
}
