package http

import (
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestRegisterLoginAndMe(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodPost, "/api/register", `{"username":"alice","password":"password123"}`, "")
	if status != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", status, body)
	}
	reg := decode[AuthResponse](t, body)
	if reg.Token == "" || reg.User.Username != "alice" || reg.User.IsGuest {
		t.Fatalf("unexpected register response: %+v", reg)
	}

	status, _ = env.do(t, http.MethodPost, "/api/register", `{"username":"alice","password":"password123"}`, "")
	if status != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate user, got %d", status)
	}
	status, _ = env.do(t, http.MethodPost, "/api/register", `{"username":"al"}`, "")
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad body, got %d", status)
	}

	status, _ = env.do(t, http.MethodPost, "/api/login", `{"username":"alice","password":"nope-nope"}`, "")
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad password, got %d", status)
	}
	status, body = env.do(t, http.MethodPost, "/api/login", `{"username":"alice","password":"password123"}`, "")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	login := decode[AuthResponse](t, body)

	status, body = env.do(t, http.MethodGet, "/api/me", "", login.Token)
	me := decode[UserResponse](t, body)
	if status != http.StatusOK || me.ID != reg.User.ID || me.Username != "alice" {
		t.Fatalf("me = %d %+v", status, me)
	}

	status, _ = env.do(t, http.MethodGet, "/api/me", "", "")
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", status)
	}
	status, _ = env.do(t, http.MethodGet, "/api/me", "", "not-a-token")
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 for invalid token, got %d", status)
	}
}

func TestGuestSetsCookieAndLogoutClearsIt(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.ts.Client().Post(env.ts.URL+"/api/guest", "application/json", nil)
	if err != nil {
		t.Fatalf("guest: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var authCookie, sessionCookie *http.Cookie
	for _, c := range resp.Cookies() {
		switch c.Name {
		case env.cfg.AuthCookieName:
			authCookie = c
		case sessionName:
			sessionCookie = c
		}
	}
	if authCookie == nil || authCookie.Value == "" || !authCookie.HttpOnly {
		t.Fatalf("auth cookie not set: %+v", resp.Cookies())
	}
	if sessionCookie == nil {
		t.Fatalf("session cookie not set: %+v", resp.Cookies())
	}

	// The cookie alone authenticates REST calls.
	req, _ := http.NewRequest(http.MethodGet, env.ts.URL+"/api/me", nil)
	req.AddCookie(authCookie)
	meResp, err := env.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	meResp.Body.Close()
	if meResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with cookie, got %d", meResp.StatusCode)
	}

	logout, err := env.ts.Client().Post(env.ts.URL+"/api/logout", "application/json", nil)
	if err != nil {
		t.Fatalf("logout: %v", err)
	}
	logout.Body.Close()
	if logout.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", logout.StatusCode)
	}
	cleared := false
	for _, c := range logout.Cookies() {
		if c.Name == env.cfg.AuthCookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Fatalf("auth cookie not cleared: %v", logout.Header.Values("Set-Cookie"))
	}
}

func TestSessionIDIsStable(t *testing.T) {
	env := newTestEnv(t)

	first, err := env.ts.Client().Get(env.ts.URL + "/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	first.Body.Close()
	cookies := first.Cookies()
	if len(cookies) == 0 || !strings.HasPrefix(cookies[0].Name, sessionName) {
		t.Fatalf("expected session cookie, got %v", cookies)
	}

	req, _ := http.NewRequest(http.MethodGet, env.ts.URL+"/health", nil)
	req.AddCookie(cookies[0])
	second, err := env.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	second.Body.Close()
	if len(second.Cookies()) != 0 {
		t.Fatalf("existing session must not be reissued, got %v", second.Cookies())
	}
}

func TestRateLimiterWindow(t *testing.T) {
	now := time.Unix(0, 0)
	rl := newRateLimiter(2)
	rl.now = func() time.Time { return now }

	if !rl.allow() || !rl.allow() {
		t.Fatal("first two frames must pass")
	}
	if rl.allow() {
		t.Fatal("third frame in window must be dropped")
	}
	now = now.Add(time.Minute)
	if !rl.allow() {
		t.Fatal("new window must reset the counter")
	}

	var unlimited *rateLimiter
	if !unlimited.allow() || !newRateLimiter(0).allow() {
		t.Fatal("zero limit means unlimited")
	}
}
