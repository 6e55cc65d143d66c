package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"live-session-engine/internal/app"
	"live-session-engine/internal/domain"
	"live-session-engine/internal/infra/memory"
)

func newTestServer(t *testing.T, auth *Authenticator) (*httptest.Server, *memory.LedgerStore) {
	t.Helper()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	roster := memory.NewRoster()
	roster.Enroll("class-1", "stu-ada", "")
	ledger := memory.NewLedgerStore()
	bank := memory.NewQuestionBank(memory.NewStaticQuestionLoader(map[string]domain.Question{
		"capital": {
			ID:            "capital",
			Text:          "Capital of France?",
			Type:          domain.QuestionMultipleChoice,
			Options:       []string{"Berlin", "Madrid", "Paris", "Rome"},
			CorrectAnswer: 2,
		},
	}), time.Minute)
	svc := app.NewLiveService(memory.NewSessionStore(), ledger, bank, roster, memory.NewSettingsStore(),
		app.WithClock(func() time.Time { return now }))

	srv := httptest.NewServer(NewServer(svc, auth, WithCORSOrigins([]string{"*"})).Routes())
	t.Cleanup(srv.Close)
	return srv, ledger
}

type client struct {
	t       *testing.T
	baseURL string
	headers map[string]string
}

func (c client) do(method, path string, body interface{}, out interface{}) int {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			c.t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, &buf)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			c.t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func as(t *testing.T, baseURL, id, role string) client {
	return client{t: t, baseURL: baseURL, headers: map[string]string{"X-User-ID": id, "X-User-Role": role}}
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func TestLiveSessionOverHTTP(t *testing.T) {
	srv, ledger := newTestServer(t, nil)
	inst := as(t, srv.URL, "inst-1", "instructor")
	ada := as(t, srv.URL, "stu-ada", "student")

	var sess domain.Session
	if code := inst.do("POST", "/api/v1/sessions", map[string]string{"sessionCode": "abc123", "title": "Geo", "classId": "class-1"}, &sess); code != http.StatusCreated {
		t.Fatalf("create: status %d", code)
	}
	if sess.Code != "ABC123" {
		t.Fatalf("expected normalized code, got %q", sess.Code)
	}

	var joined app.JoinResult
	if code := ada.do("POST", "/api/v1/live/abc123/join", map[string]string{"displayName": "Ada"}, &joined); code != http.StatusOK {
		t.Fatalf("join: status %d", code)
	}
	pid := joined.Participant.ParticipantID

	if code := inst.do("POST", "/api/v1/sessions/"+sess.ID+"/questions", map[string]string{"questionId": "capital"}, nil); code != http.StatusOK {
		t.Fatalf("broadcast: status %d", code)
	}

	var state app.StudentView
	if code := ada.do("GET", "/api/v1/live/ABC123/state?participantId="+pid, nil, &state); code != http.StatusOK {
		t.Fatalf("state: status %d", code)
	}
	if state.CurrentQuestion == nil || len(state.CurrentQuestion.Options) != 4 {
		t.Fatalf("expected live question with options, got %+v", state.CurrentQuestion)
	}

	var fb struct {
		Correct bool `json:"correct"`
		Points  *int `json:"points"`
	}
	if code := ada.do("POST", "/api/v1/live/ABC123/responses", map[string]interface{}{"participantId": pid, "questionId": "capital", "answer": "C"}, &fb); code != http.StatusOK {
		t.Fatalf("respond: status %d", code)
	}
	if !fb.Correct || fb.Points == nil || *fb.Points != 11 {
		t.Fatalf("expected correct answer worth 11, got %+v", fb)
	}

	if code := inst.do("POST", "/api/v1/sessions/"+sess.ID+"/end", nil, &sess); code != http.StatusOK {
		t.Fatalf("end: status %d", code)
	}
	if !sess.Scored {
		t.Fatalf("expected session to be scored")
	}

	var lb domain.Leaderboard
	if code := ada.do("GET", "/api/v1/classes/class-1/leaderboard", nil, &lb); code != http.StatusOK {
		t.Fatalf("leaderboard: status %d", code)
	}
	if len(lb.Entries) != 1 || lb.Entries[0].TotalPoints != 11 || !lb.Entries[0].IsSelf {
		t.Fatalf("unexpected leaderboard %+v", lb.Entries)
	}
	if entry, err := ledger.Get(context.Background(), "class-1", "stu-ada"); err != nil || entry.TotalPoints != 11 {
		t.Fatalf("expected ledger entry with 11 points, got %+v (%v)", entry, err)
	}

	var env errorEnvelope
	if code := ada.do("POST", "/api/v1/live/ABC123/join", map[string]string{"displayName": "Ada"}, &env); code != http.StatusGone {
		t.Fatalf("expected 410 after end, got %d", code)
	}
	if env.Error.Code != ErrCodeClosed {
		t.Fatalf("expected %s, got %+v", ErrCodeClosed, env)
	}
}

func TestErrorMapping(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	inst := as(t, srv.URL, "inst-1", "instructor")
	ada := as(t, srv.URL, "stu-ada", "student")

	var env errorEnvelope
	if code := ada.do("POST", "/api/v1/live/NOPE/join", map[string]string{"displayName": "Ada"}, &env); code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}
	if env.Error.Code != ErrCodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %+v", env)
	}

	if code := ada.do("POST", "/api/v1/sessions", map[string]string{"title": "x"}, &env); code != http.StatusForbidden {
		t.Fatalf("expected 403 for student create, got %d", code)
	}

	var sess domain.Session
	inst.do("POST", "/api/v1/sessions", map[string]string{"sessionCode": "DUP1", "title": "a"}, &sess)
	if code := inst.do("POST", "/api/v1/sessions", map[string]string{"sessionCode": "dup1", "title": "b"}, &env); code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate code, got %d", code)
	}
	if code := inst.do("POST", "/api/v1/sessions/"+sess.ID+"/timer/extend", map[string]int{"seconds": 10}, &env); code != http.StatusConflict {
		t.Fatalf("expected 409 with no active question, got %d", code)
	}
	if code := inst.do("GET", "/api/v1/classes/class-1/leaderboard?limit=x", nil, &env); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", code)
	}
}

func TestBearerTokenIdentity(t *testing.T) {
	auth := NewAuthenticator("test-secret")
	srv, _ := newTestServer(t, auth)

	token, err := auth.IssueToken("inst-1", domain.RoleInstructor, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	inst := client{t: t, baseURL: srv.URL, headers: map[string]string{"Authorization": "Bearer " + token}}
	if code := inst.do("POST", "/api/v1/sessions", map[string]string{"title": "Geo"}, nil); code != http.StatusCreated {
		t.Fatalf("expected 201 with valid token, got %d", code)
	}

	// headers are ignored once a secret is configured
	spoof := as(t, srv.URL, "inst-1", "instructor")
	if code := spoof.do("POST", "/api/v1/sessions", map[string]string{"title": "Geo"}, nil); code != http.StatusForbidden {
		t.Fatalf("expected 403 for header identity, got %d", code)
	}

	bad := client{t: t, baseURL: srv.URL, headers: map[string]string{"Authorization": "Bearer not-a-token"}}
	var env errorEnvelope
	if code := bad.do("POST", "/api/v1/sessions", map[string]string{"title": "Geo"}, &env); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", code)
	}
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}
