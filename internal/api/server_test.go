package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"tradecore/internal/events"
)

func testServer(cfg Config) *Server {
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	return NewServer(cfg)
}

func do(s *Server, method, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	s := testServer(Config{})

	w := do(s, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, expected 200", w.Code)
	}
}

func TestStatus(t *testing.T) {
	s := testServer(Config{})

	w := do(s, http.MethodGet, "/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, expected 200", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid status body: %v", err)
	}
	if _, ok := body["uptime_seconds"]; !ok {
		t.Fatalf("body=%v, expected uptime_seconds", body)
	}
}

func TestCommandInjection(t *testing.T) {
	commands := make(chan events.Event, 1)
	s := testServer(Config{Commands: commands})

	w := do(s, http.MethodPost, "/api/commands/disable", nil)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status=%d, expected 202, body=%s", w.Code, w.Body.String())
	}

	select {
	case ev := <-commands:
		if !ev.IsCommand() || ev.Command != events.CommandDisable {
			t.Fatalf("event=%+v, expected Disable command", ev)
		}
	default:
		t.Fatal("no command delivered to the feed")
	}
}

func TestCommandWithoutFeedIsUnavailable(t *testing.T) {
	s := testServer(Config{})

	w := do(s, http.MethodPost, "/api/commands/terminate", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d, expected 503", w.Code)
	}
}

func TestCommandAuth(t *testing.T) {
	const secret = "test-secret"
	commands := make(chan events.Event, 1)
	s := testServer(Config{Commands: commands, JWTSecret: secret})

	w := do(s, http.MethodPost, "/api/commands/disable", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d without token, expected 401", w.Code)
	}

	w = do(s, http.MethodPost, "/api/commands/disable", http.Header{
		"Authorization": []string{"Bearer not-a-token"},
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d with garbage token, expected 401", w.Code)
	}

	token, err := IssueToken("ops", secret, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken returned error: %v", err)
	}
	w = do(s, http.MethodPost, "/api/commands/disable", http.Header{
		"Authorization": []string{"Bearer " + token},
	})
	if w.Code != http.StatusAccepted {
		t.Fatalf("status=%d with valid token, expected 202, body=%s", w.Code, w.Body.String())
	}
}

func TestAuditEndpointsWithoutJournal(t *testing.T) {
	s := testServer(Config{})

	for _, path := range []string{"/api/audit/events", "/api/audit/head"} {
		w := do(s, http.MethodGet, path, nil)
		if w.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s status=%d, expected 503", path, w.Code)
		}
	}
}

func TestTokenRoundTrip(t *testing.T) {
	token, err := IssueToken("ops", "secret-a", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken returned error: %v", err)
	}

	id, err := parseToken(token, "secret-a")
	if err != nil {
		t.Fatalf("parseToken returned error: %v", err)
	}
	if id != "ops" {
		t.Fatalf("operator id=%q, expected ops", id)
	}

	if _, err := parseToken(token, "secret-b"); err == nil {
		t.Fatal("parseToken accepted token signed with a different secret")
	}

	if _, err := IssueToken("ops", "", time.Hour); err == nil {
		t.Fatal("IssueToken accepted empty secret")
	}
}
