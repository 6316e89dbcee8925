package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/scsync/internal/shared"
)

// ConnectHandler redirects the browser to the SoundCloud connect page with a fresh state token.
type ConnectHandler struct {
	connectURL func(state string) string
	oauth      *OAuthHandler
}

// NewConnectHandler creates a handler issuing states through oauth.
func NewConnectHandler(connectURL func(state string) string, oauth *OAuthHandler) *ConnectHandler {
	return &ConnectHandler{connectURL: connectURL, oauth: oauth}
}

func (h *ConnectHandler) Routes() []string {
	return []string{"/{$}"}
}

func (h *ConnectHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	state, err := h.oauth.IssueState()
	if err != nil {
		http.Error(w, "Failed to start authorization", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, h.connectURL(state), http.StatusFound)
}

// AddUserHandler queues a user id for a favorites update.
type AddUserHandler struct {
	queue  Enqueuer
	logger *log.Logger
}

// NewAddUserHandler creates a handler feeding queue.
func NewAddUserHandler(queue Enqueuer, logger *log.Logger) *AddUserHandler {
	return &AddUserHandler{queue: queue, logger: logger}
}

// Routes serves /users/add and the legacy /addUser path.
func (h *AddUserHandler) Routes() []string {
	return []string{"/users/add", "/addUser"}
}

func (h *AddUserHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("id")
	if userID == "" {
		http.Error(w, "Missing id parameter", http.StatusBadRequest)
		return
	}

	if err := h.queue.Enqueue(userID); err != nil {
		h.logger.Warn("failed to queue user", "user", userID, "error", err)
		status := http.StatusInternalServerError
		if errors.Is(err, shared.ErrServiceUnavailable) {
			status = http.StatusServiceUnavailable
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusAccepted)
	fmt.Fprintf(w, "Processing user: %s\n", userID)
}

// HealthHandler reports liveness and queue depth as JSON.
type HealthHandler struct {
	queue Enqueuer
}

func NewHealthHandler(queue Enqueuer) *HealthHandler {
	return &HealthHandler{queue: queue}
}

func (h *HealthHandler) Routes() []string {
	return []string{"/health"}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status": "ok",
		"queued": h.queue.Len(),
	})
}
