package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/desertthunder/scsync/internal/shared"
)

type fakeQueue struct {
	users []string
	err   error
}

func (q *fakeQueue) Enqueue(userID string) error {
	if q.err != nil {
		return q.err
	}
	q.users = append(q.users, userID)
	return nil
}

func (q *fakeQueue) Len() int { return len(q.users) }

func TestConnectHandler(t *testing.T) {
	oauth, fake := newTestOAuthHandler(nil)
	h := NewConnectHandler(fake.ConnectURL, oauth)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	loc, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("bad redirect location: %v", err)
	}
	state := loc.Query().Get("state")
	if state == "" {
		t.Fatalf("expected a state in %s", loc)
	}

	if rec := callback(oauth, "state="+url.QueryEscape(state)+"&code=good-code"); rec.Code != http.StatusOK {
		t.Errorf("expected issued state to be accepted, got %d", rec.Code)
	}
}

func TestAddUserHandler(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		queueErr  error
		status    int
		body      string
		wantQueue []string
	}{
		{name: "queues user", path: "/users/add?id=42", status: http.StatusAccepted, body: "Processing user: 42", wantQueue: []string{"42"}},
		{name: "legacy path", path: "/addUser?id=7", status: http.StatusAccepted, body: "Processing user: 7", wantQueue: []string{"7"}},
		{name: "missing id", path: "/users/add", status: http.StatusBadRequest, body: "Missing id"},
		{name: "queue full", path: "/users/add?id=42", queueErr: shared.ErrServiceUnavailable, status: http.StatusServiceUnavailable},
		{name: "other queue error", path: "/users/add?id=42", queueErr: shared.ErrInvalidInput, status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			queue := &fakeQueue{err: tt.queueErr}
			router := NewBasicRouter()
			router.Handler(NewAddUserHandler(queue, shared.NewLogger(io.Discard)))

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rec.Code != tt.status {
				t.Errorf("expected %d, got %d", tt.status, rec.Code)
			}
			if tt.body != "" && !strings.Contains(rec.Body.String(), tt.body) {
				t.Errorf("expected body to contain %q, got %q", tt.body, rec.Body.String())
			}
			if strings.Join(queue.users, ",") != strings.Join(tt.wantQueue, ",") {
				t.Errorf("expected queue %v, got %v", tt.wantQueue, queue.users)
			}
		})
	}
}

func TestHealthHandler(t *testing.T) {
	queue := &fakeQueue{users: []string{"1", "2"}}
	rec := httptest.NewRecorder()
	NewHealthHandler(queue).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected JSON content type, got %q", ct)
	}

	var body struct {
		Status string `json:"status"`
		Queued int    `json:"queued"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Status != "ok" || body.Queued != 2 {
		t.Errorf("unexpected body: %+v", body)
	}
}
