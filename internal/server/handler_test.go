package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/gin-gonic/gin"

	"checkin/internal/attendance"
	"checkin/internal/auth"
)

const (
	testKey    = "handler-test-key"
	testIssuer = "checkin-test"
)

// fakeStore keeps people and events in memory; fail makes every call error.
type fakeStore struct {
	mu     sync.Mutex
	people map[string]attendance.Person
	events []attendance.Event
	fail   bool
}

var errDown = errors.New("connection refused")

func (s *fakeStore) ListActivePeople(ctx context.Context, category attendance.Category) ([]attendance.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return nil, errDown
	}
	var out []attendance.Person
	for _, p := range s.people {
		if p.Category == category && p.Active {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *fakeStore) GetPerson(ctx context.Context, category attendance.Category, id string) (*attendance.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return nil, errDown
	}
	p, ok := s.people[id]
	if !ok || p.Category != category {
		return nil, nil
	}
	return &p, nil
}

func (s *fakeStore) InsertPerson(ctx context.Context, p attendance.Person) (attendance.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return attendance.Person{}, errDown
	}
	p.ID = "p" + strconv.Itoa(len(s.people)+1)
	p.Active = true
	s.people[p.ID] = p
	return p, nil
}

func (s *fakeStore) SetPersonActive(ctx context.Context, category attendance.Category, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.people[id]
	if !ok || p.Category != category {
		return attendance.ErrPersonNotFound
	}
	p.Active = active
	s.people[id] = p
	return nil
}

func (s *fakeStore) InsertEvent(ctx context.Context, evt attendance.Event) (attendance.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return attendance.Event{}, errDown
	}
	evt.ID = "e" + strconv.Itoa(len(s.events)+1)
	s.events = append(s.events, evt)
	return evt, nil
}

func (s *fakeStore) GetEvent(ctx context.Context, id string) (attendance.Event, error) {
	return attendance.Event{}, errors.New("not implemented")
}

func (s *fakeStore) EventsSince(ctx context.Context, category attendance.Category, personID string, since time.Time, limit int) ([]attendance.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return nil, errDown
	}
	var out []attendance.Event
	for i := len(s.events) - 1; i >= 0; i-- {
		e := s.events[i]
		if e.Category == category && e.PersonID == personID && !e.OccurredAt.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *fakeStore) RecentEvents(ctx context.Context, category attendance.Category, limit int) ([]attendance.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return nil, errDown
	}
	var out []attendance.Event
	for i := len(s.events) - 1; i >= 0; i-- {
		e := s.events[i]
		if e.Category != category {
			continue
		}
		e.PersonName = s.people[e.PersonID].Name
		out = append(out, e)
	}
	return out, nil
}

type exporterStub struct {
	key string
	err error
}

func (e exporterStub) Export(ctx context.Context, category attendance.Category, loc *time.Location) (string, error) {
	return e.key, e.err
}

type testEnv struct {
	router *gin.Engine
	store  *fakeStore
	now    time.Time
}

func newTestEnv(t *testing.T, exporter Exporter) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hash, err := auth.HashPassword("s3cret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	env := &testEnv{
		store: &fakeStore{people: map[string]attendance.Person{
			"sara": {ID: "sara", Category: attendance.CategoryEmployee, Name: "Sara Ali", Active: true},
			"lina": {ID: "lina", Category: attendance.CategoryIntern, Name: "Lina Fahad", Active: true},
		}},
		now: time.Now().UTC(),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := attendance.NewService(env.store, attendance.Options{
		Location: time.UTC,
		Now:      func() time.Time { return env.now },
		Logger:   logger,
	})
	h := New(svc, exporter, AuthConfig{
		Admin:      auth.Admin{Email: "admin@example.com", PasswordHash: hash},
		Issuer:     testIssuer,
		SigningKey: testKey,
		TTL:        time.Hour,
	}, nil, logger)
	env.router = NewRouter(h, RouterConfig{})
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) adminToken(t *testing.T) string {
	t.Helper()
	tok, err := auth.Issue("admin@example.com", auth.RoleAdmin, testIssuer, testKey, time.Hour, time.Now())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return tok.AccessToken
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func TestListPeople(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, http.MethodGet, "/v1/kiosk/interns/people", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body)
	}
	var body struct {
		People []attendance.Person `json:"people"`
	}
	decode(t, w, &body)
	if len(body.People) != 1 || body.People[0].Name != "Lina Fahad" {
		t.Fatalf("unexpected people %+v", body.People)
	}

	if w := env.do(t, http.MethodGet, "/v1/kiosk/contractors/people", nil, ""); w.Code != http.StatusNotFound {
		t.Fatalf("unknown category: status %d", w.Code)
	}
}

func TestRecordAndStatus(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/v1/kiosk/employees/attendance", map[string]string{"person_id": "sara", "action": "entry"}, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("record status %d: %s", w.Code, w.Body)
	}
	var rec struct {
		Event        attendance.Event `json:"event"`
		Confirmation struct {
			Path               string  `json:"path"`
			ReturnTo           string  `json:"return_to"`
			ReturnAfterSeconds float64 `json:"return_after_seconds"`
		} `json:"confirmation"`
	}
	decode(t, w, &rec)
	if rec.Event.PersonName != "Sara Ali" || rec.Confirmation.Path != "/success/entry" ||
		rec.Confirmation.ReturnTo != "/" || rec.Confirmation.ReturnAfterSeconds != 5 {
		t.Fatalf("unexpected record response %+v", rec)
	}

	w = env.do(t, http.MethodGet, "/v1/kiosk/employees/people/sara/status", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status lookup %d: %s", w.Code, w.Body)
	}
	var st struct {
		Status attendance.State `json:"status"`
	}
	decode(t, w, &st)
	if st.Status.Kind != attendance.Inside || !st.Status.Since.Equal(env.now) {
		t.Fatalf("unexpected status %+v", st.Status)
	}
}

func TestRecordEmptySelection(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, http.MethodPost, "/v1/kiosk/employees/attendance", map[string]string{"person_id": "", "action": "exit"}, "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", w.Code)
	}
	var body map[string]string
	decode(t, w, &body)
	if body["error"] != "please select a person first" {
		t.Fatalf("unexpected error %q", body["error"])
	}
	if len(env.store.events) != 0 {
		t.Fatal("event stored without a selection")
	}
}

func TestRecordUnknownPerson(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, http.MethodPost, "/v1/kiosk/employees/attendance", map[string]string{"person_id": "lina", "action": "entry"}, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status %d, want 404", w.Code)
	}
}

func TestStatusUnavailableIsUnknown(t *testing.T) {
	env := newTestEnv(t, nil)
	env.store.fail = true

	w := env.do(t, http.MethodGet, "/v1/kiosk/employees/people/sara/status", nil, "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status %d, want 503", w.Code)
	}
	var body struct {
		Status attendance.State `json:"status"`
		Error  string           `json:"error"`
	}
	decode(t, w, &body)
	if body.Status.Kind != attendance.Unknown {
		t.Fatalf("state = %s, want unknown", body.Status.Kind)
	}
	if body.Error == "" {
		t.Fatal("expected a user-facing error")
	}
}

func TestConfirmationRoute(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, http.MethodGet, "/v1/confirmation/exit", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	var body map[string]any
	decode(t, w, &body)
	if body["path"] != "/success/exit" || body["return_to"] != "/" {
		t.Fatalf("unexpected body %v", body)
	}
	if w := env.do(t, http.MethodGet, "/v1/confirmation/lunch", nil, ""); w.Code != http.StatusBadRequest {
		t.Fatalf("unknown action: status %d", w.Code)
	}
}

func TestLoginAndSession(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/v1/auth/login", map[string]string{"email": "admin@example.com", "password": "wrong"}, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad password: status %d", w.Code)
	}

	w = env.do(t, http.MethodPost, "/v1/auth/login", map[string]string{"email": "Admin@Example.com", "password": "s3cret"}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("login status %d: %s", w.Code, w.Body)
	}
	var login struct {
		AccessToken string `json:"access_token"`
	}
	decode(t, w, &login)
	if login.AccessToken == "" {
		t.Fatal("missing access token")
	}

	w = env.do(t, http.MethodGet, "/v1/auth/session", nil, login.AccessToken)
	if w.Code != http.StatusOK {
		t.Fatalf("session status %d", w.Code)
	}
	var sess auth.Session
	decode(t, w, &sess)
	if !sess.Active || sess.Email != "admin@example.com" {
		t.Fatalf("unexpected session %+v", sess)
	}

	if w := env.do(t, http.MethodGet, "/v1/auth/session", nil, ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous session: status %d", w.Code)
	}
}

func TestLogsRequireAdmin(t *testing.T) {
	env := newTestEnv(t, nil)
	if w := env.do(t, http.MethodGet, "/v1/admin/employees/logs", nil, ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", w.Code)
	}
}

func TestLogsViews(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.adminToken(t)

	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	env.store.events = []attendance.Event{
		{ID: "e1", PersonID: "sara", Category: attendance.CategoryEmployee, Action: attendance.ActionEntry, OccurredAt: day.Add(8 * time.Hour)},
		{ID: "e2", PersonID: "sara", Category: attendance.CategoryEmployee, Action: attendance.ActionExit, OccurredAt: day.Add(17 * time.Hour)},
	}

	w := env.do(t, http.MethodGet, "/v1/admin/employees/logs", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("logs status %d: %s", w.Code, w.Body)
	}
	var sessions struct {
		View     string                  `json:"view"`
		Sessions []attendance.DaySession `json:"sessions"`
	}
	decode(t, w, &sessions)
	if sessions.View != "sessions" || len(sessions.Sessions) != 1 {
		t.Fatalf("unexpected sessions %+v", sessions)
	}
	if s := sessions.Sessions[0]; s.Day != "2026-03-01" || s.EntryTime == nil || s.ExitTime == nil {
		t.Fatalf("unexpected session %+v", s)
	}

	w = env.do(t, http.MethodGet, "/v1/admin/employees/logs?view=rows&action=exit&name=sara", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("rows status %d: %s", w.Code, w.Body)
	}
	var rows struct {
		Rows []attendance.Row `json:"rows"`
	}
	decode(t, w, &rows)
	if len(rows.Rows) != 1 || rows.Rows[0].ID != "e2" {
		t.Fatalf("unexpected rows %+v", rows.Rows)
	}

	// 20:00 UTC on day one falls on the next day in UTC+5.
	env.store.events = append(env.store.events, attendance.Event{
		ID: "e3", PersonID: "sara", Category: attendance.CategoryEmployee, Action: attendance.ActionEntry, OccurredAt: day.Add(20 * time.Hour),
	})
	w = env.do(t, http.MethodGet, "/v1/admin/employees/logs?tz=Asia/Karachi", nil, token)
	decode(t, w, &sessions)
	if len(sessions.Sessions) != 2 || sessions.Sessions[0].Day != "2026-03-02" {
		t.Fatalf("unexpected local-day sessions %+v", sessions.Sessions)
	}

	if w := env.do(t, http.MethodGet, "/v1/admin/employees/logs?view=grid", nil, token); w.Code != http.StatusBadRequest {
		t.Fatalf("bad view: status %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/v1/admin/employees/logs?tz=Mars/Olympus", nil, token); w.Code != http.StatusBadRequest {
		t.Fatalf("bad tz: status %d", w.Code)
	}
}

func TestLogsUnavailable(t *testing.T) {
	env := newTestEnv(t, nil)
	env.store.fail = true
	if w := env.do(t, http.MethodGet, "/v1/admin/interns/logs", nil, env.adminToken(t)); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status %d, want 503", w.Code)
	}
}

func TestDirectoryAdmin(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.adminToken(t)

	w := env.do(t, http.MethodPost, "/v1/admin/interns/people", map[string]string{"name": "Noura Khalid"}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("add status %d: %s", w.Code, w.Body)
	}
	var p attendance.Person
	decode(t, w, &p)

	w = env.do(t, http.MethodPost, "/v1/admin/interns/people/"+p.ID+"/deactivate", nil, token)
	if w.Code != http.StatusNoContent {
		t.Fatalf("deactivate status %d", w.Code)
	}
	w = env.do(t, http.MethodPost, "/v1/admin/interns/people/ghost/deactivate", nil, token)
	if w.Code != http.StatusNotFound {
		t.Fatalf("deactivate missing: status %d", w.Code)
	}
}

func TestExport(t *testing.T) {
	env := newTestEnv(t, nil)
	if w := env.do(t, http.MethodPost, "/v1/admin/employees/export", nil, env.adminToken(t)); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("unconfigured export: status %d", w.Code)
	}

	env = newTestEnv(t, exporterStub{key: "exports/employee/2026-03-01T080000.jsonl"})
	w := env.do(t, http.MethodPost, "/v1/admin/employees/export", nil, env.adminToken(t))
	if w.Code != http.StatusAccepted {
		t.Fatalf("export status %d: %s", w.Code, w.Body)
	}
	var body map[string]string
	decode(t, w, &body)
	if body["key"] != "exports/employee/2026-03-01T080000.jsonl" {
		t.Fatalf("unexpected key %q", body["key"])
	}
}

func TestHealthz(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := attendance.NewService(&fakeStore{people: map[string]attendance.Person{}}, attendance.Options{Logger: logger})
	h := New(svc, nil, AuthConfig{}, map[string]HealthCheck{
		"db":    func(context.Context) bool { return true },
		"redis": func(context.Context) bool { return false },
	}, logger)
	r := NewRouter(h, RouterConfig{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status %d, want 503", w.Code)
	}
	var body map[string]any
	decode(t, w, &body)
	if body["status"] != "degraded" || body["db"] != true || body["redis"] != false {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestClassify(t *testing.T) {
	for _, tc := range []struct {
		err  error
		want int
	}{
		{attendance.ErrEmptySelection, http.StatusBadRequest},
		{attendance.ErrInvalidInput, http.StatusBadRequest},
		{attendance.ErrPersonNotFound, http.StatusNotFound},
		{attendance.ErrSourceUnavailable, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	} {
		if got, _ := classify(tc.err); got != tc.want {
			t.Errorf("classify(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
