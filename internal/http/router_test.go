package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/corvohq/simple-identity/internal/config"
	"github.com/corvohq/simple-identity/pkg/hash"
	"github.com/corvohq/simple-identity/pkg/identity"
	"github.com/corvohq/simple-identity/pkg/oauth"
	"github.com/corvohq/simple-identity/pkg/store"
)

type capturingNotifier struct {
	bodies []string
}

func (n *capturingNotifier) Send(to, subject, body string) error {
	n.bodies = append(n.bodies, body)
	return nil
}

// lastToken pulls the reset code out of the most recent email body.
func (n *capturingNotifier) lastToken(t *testing.T) string {
	t.Helper()
	if len(n.bodies) == 0 {
		t.Fatal("no email was sent")
	}
	body := n.bodies[len(n.bodies)-1]
	start := strings.Index(body, "<b>")
	end := strings.Index(body, "</b>")
	if start < 0 || end < 0 {
		t.Fatalf("email body carries no reset code: %q", body)
	}
	return body[start+3 : end]
}

func newTestServer(t *testing.T) (*httptest.Server, *capturingNotifier) {
	t.Helper()
	notifier := &capturingNotifier{}
	hasher := hash.New(hash.Params{Time: 1, Memory: 1024, Threads: 1, KeyLen: 32, SaltLen: 16})
	engine := identity.NewEngine(store.NewMemory(), hasher, notifier, identity.Config{
		MutableFields: []string{"username", "bio"},
	})

	router := NewRouter(RouterConfig{
		Logger:             slog.New(slog.NewTextHandler(io.Discard, nil)),
		Engine:             engine,
		Verifier:           oauth.NewVerifier(oauth.GoogleProvider("client-123")),
		EmailEnabled:       true,
		SecurityHeaders:    config.SecurityHeadersConfig{Enabled: false},
		MaxRequestBodySize: 1 << 20,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, notifier
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	var payload map[string]any
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &payload)
	}
	return resp, payload
}

func wantStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("status = %d, want %d", resp.StatusCode, want)
	}
}

func googleAssertion(t *testing.T, email, name string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, oauth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "https://accounts.google.com",
			Audience:  jwt.ClaimStrings{"client-123"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Email: email,
		Name:  name,
	})
	signed, err := token.SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("sign assertion: %v", err)
	}
	return signed
}

func TestRegisterLoginFlow(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, payload := doJSON(t, http.MethodPost, srv.URL+"/v1/auth/register", map[string]string{
		"username": "alice", "password": "pw1", "email": "a@x.com",
	})
	wantStatus(t, resp, http.StatusCreated)
	if payload["username"] != "alice" || payload["email"] != "a@x.com" {
		t.Errorf("register payload = %v", payload)
	}
	userID, _ := payload["user_id"].(string)
	if userID == "" {
		t.Fatal("register payload missing user_id")
	}

	// Duplicate email conflicts.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/v1/auth/register", map[string]string{
		"username": "other", "password": "pw2", "email": "a@x.com",
	})
	wantStatus(t, resp, http.StatusConflict)

	// Login with the right password returns the same ID.
	resp, payload = doJSON(t, http.MethodPost, srv.URL+"/v1/auth/login", map[string]string{
		"email": "a@x.com", "password": "pw1",
	})
	wantStatus(t, resp, http.StatusOK)
	if payload["user_id"] != userID {
		t.Errorf("login user_id = %v, want %v", payload["user_id"], userID)
	}

	// Wrong password and unknown email both map to 401 with one message.
	resp, wrongPW := doJSON(t, http.MethodPost, srv.URL+"/v1/auth/login", map[string]string{
		"email": "a@x.com", "password": "wrong",
	})
	wantStatus(t, resp, http.StatusUnauthorized)
	resp, unknown := doJSON(t, http.MethodPost, srv.URL+"/v1/auth/login", map[string]string{
		"email": "nobody@x.com", "password": "pw1",
	})
	wantStatus(t, resp, http.StatusUnauthorized)
	if wrongPW["message"] != unknown["message"] {
		t.Errorf("login failure messages differ: %v vs %v", wrongPW["message"], unknown["message"])
	}

	// Malformed body.
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/v1/auth/register", strings.NewReader("{not json"))
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp2.Body.Close()
	wantStatus(t, resp2, http.StatusBadRequest)
}

func TestOAuthFlow(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, payload := doJSON(t, http.MethodPost, srv.URL+"/v1/auth/oauth", map[string]string{
		"provider": "google", "assertion": googleAssertion(t, "b@x.com", "Bob"),
	})
	wantStatus(t, resp, http.StatusOK)
	userID, _ := payload["user_id"].(string)
	if userID == "" {
		t.Fatal("oauth payload missing user_id")
	}

	// Idempotent second sign-in.
	resp, payload = doJSON(t, http.MethodPost, srv.URL+"/v1/auth/oauth", map[string]string{
		"provider": "google", "assertion": googleAssertion(t, "b@x.com", "Bob"),
	})
	wantStatus(t, resp, http.StatusOK)
	if payload["user_id"] != userID {
		t.Errorf("second sign-in user_id = %v, want %v", payload["user_id"], userID)
	}

	// Password login against an OAuth account is refused.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/v1/auth/login", map[string]string{
		"email": "b@x.com", "password": "anything",
	})
	wantStatus(t, resp, http.StatusForbidden)

	// A bogus assertion never reaches the engine.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/v1/auth/oauth", map[string]string{
		"provider": "google", "assertion": "garbage",
	})
	wantStatus(t, resp, http.StatusUnauthorized)

	// Username falls back to the assertion's name claim.
	resp, values := doJSON(t, http.MethodGet, srv.URL+"/v1/users/"+userID+"/profile?fields=username,provider", nil)
	wantStatus(t, resp, http.StatusOK)
	if values["username"] != "Bob" || values["provider"] != "google" {
		t.Errorf("profile = %v", values)
	}
}

func TestProfileEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	_, payload := doJSON(t, http.MethodPost, srv.URL+"/v1/auth/register", map[string]string{
		"username": "alice", "password": "pw1", "email": "a@x.com",
	})
	userID := payload["user_id"].(string)

	resp, _ := doJSON(t, http.MethodPatch, srv.URL+"/v1/users/"+userID+"/profile", map[string]string{
		"bio": "hello",
	})
	wantStatus(t, resp, http.StatusNoContent)

	resp, values := doJSON(t, http.MethodGet, srv.URL+"/v1/users/"+userID+"/profile?fields=username,bio,email", nil)
	wantStatus(t, resp, http.StatusOK)
	if values["bio"] != "hello" || values["username"] != "alice" {
		t.Errorf("profile = %v", values)
	}

	// Disallowed field rejects the whole update.
	resp, _ = doJSON(t, http.MethodPatch, srv.URL+"/v1/users/"+userID+"/profile", map[string]string{
		"bio": "changed", "password_hash": "evil",
	})
	wantStatus(t, resp, http.StatusBadRequest)
	_, values = doJSON(t, http.MethodGet, srv.URL+"/v1/users/"+userID+"/profile?fields=bio", nil)
	if values["bio"] != "hello" {
		t.Errorf("bio = %v, want unmodified", values["bio"])
	}

	// Bad id in the path.
	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/v1/users/not-a-uuid/profile?fields=email", nil)
	wantStatus(t, resp, http.StatusBadRequest)
}

func TestChangePasswordAndDelete(t *testing.T) {
	srv, _ := newTestServer(t)

	_, payload := doJSON(t, http.MethodPost, srv.URL+"/v1/auth/register", map[string]string{
		"username": "alice", "password": "pw1", "email": "a@x.com",
	})
	userID := payload["user_id"].(string)

	// new == old is rejected.
	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/v1/auth/change-password", map[string]string{
		"email": "a@x.com", "old_password": "pw1", "new_password": "pw1",
	})
	wantStatus(t, resp, http.StatusBadRequest)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/v1/auth/change-password", map[string]string{
		"email": "a@x.com", "old_password": "pw1", "new_password": "pw2",
	})
	wantStatus(t, resp, http.StatusNoContent)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/v1/auth/login", map[string]string{
		"email": "a@x.com", "password": "pw2",
	})
	wantStatus(t, resp, http.StatusOK)

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/v1/users/"+userID, nil)
	wantStatus(t, resp, http.StatusNoContent)

	// Gone for good.
	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/v1/users/"+userID, nil)
	wantStatus(t, resp, http.StatusBadRequest)
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/v1/auth/login", map[string]string{
		"email": "a@x.com", "password": "pw2",
	})
	wantStatus(t, resp, http.StatusUnauthorized)
}

func TestResetFlow(t *testing.T) {
	srv, notifier := newTestServer(t)

	doJSON(t, http.MethodPost, srv.URL+"/v1/auth/register", map[string]string{
		"username": "alice", "password": "pw1", "email": "a@x.com",
	})

	resp, payload := doJSON(t, http.MethodPost, srv.URL+"/v1/auth/password/reset-request", map[string]string{
		"email": "a@x.com",
	})
	wantStatus(t, resp, http.StatusAccepted)

	token := notifier.lastToken(t)
	// The token travels by email only.
	for _, v := range payload {
		if s, ok := v.(string); ok && strings.Contains(s, token) {
			t.Fatal("reset token must never be echoed to the HTTP caller")
		}
	}

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/v1/auth/password/reset", map[string]string{
		"email": "a@x.com", "token": token, "new_password": "pw2",
	})
	wantStatus(t, resp, http.StatusOK)

	// Single use.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/v1/auth/password/reset", map[string]string{
		"email": "a@x.com", "token": token, "new_password": "pw3",
	})
	wantStatus(t, resp, http.StatusBadRequest)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/v1/auth/login", map[string]string{
		"email": "a@x.com", "password": "pw2",
	})
	wantStatus(t, resp, http.StatusOK)
}

func TestResetFlow_OAuthAccountForbidden(t *testing.T) {
	srv, _ := newTestServer(t)

	doJSON(t, http.MethodPost, srv.URL+"/v1/auth/oauth", map[string]string{
		"provider": "google", "assertion": googleAssertion(t, "b@x.com", "Bob"),
	})

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/v1/auth/password/reset-request", map[string]string{
		"email": "b@x.com",
	})
	wantStatus(t, resp, http.StatusForbidden)
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, payload := doJSON(t, http.MethodGet, srv.URL+"/health", nil)
	wantStatus(t, resp, http.StatusOK)
	if payload["status"] != "ok" {
		t.Errorf("health = %v", payload)
	}
}
