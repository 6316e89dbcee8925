package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/scsync/internal/shared"
	"golang.org/x/oauth2"
)

// StateTTL is how long an issued state token remains valid.
const StateTTL = 10 * time.Minute

// OAuthResult contains the result of an OAuth authorization flow.
type OAuthResult struct {
	Token *oauth2.Token
	err   error
}

func (o *OAuthResult) Error() error {
	return o.err
}

// TokenExchanger trades an authorization code for a token.
type TokenExchanger interface {
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
}

// TokenFunc receives each token obtained by the callback. An error fails the callback request.
type TokenFunc func(ctx context.Context, token *oauth2.Token) error

// OAuthHandler handles OAuth2 callback requests for authorization code flow.
// Implements the Handler interface for registration with a Router.
//
// Each issued state token is accepted once, so the handler can serve many users
// while still rejecting replayed or forged callbacks.
type OAuthHandler struct {
	exchanger  TokenExchanger
	onToken    TokenFunc
	logger     *log.Logger
	resultChan chan OAuthResult
	now        func() time.Time

	mu     sync.Mutex
	states map[string]time.Time
}

// NewOAuthHandler creates a new OAuth handler. onToken may be nil.
func NewOAuthHandler(exchanger TokenExchanger, onToken TokenFunc, logger *log.Logger) *OAuthHandler {
	return &OAuthHandler{
		exchanger:  exchanger,
		onToken:    onToken,
		logger:     logger,
		resultChan: make(chan OAuthResult, 1),
		now:        time.Now,
		states:     map[string]time.Time{},
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *OAuthHandler) Routes() []string {
	return []string{"/callback"}
}

// IssueState generates and registers a new state token.
func (h *OAuthHandler) IssueState() (string, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return "", err
	}
	h.AddState(state)
	return state, nil
}

// AddState registers a state token generated elsewhere.
func (h *OAuthHandler) AddState(state string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	for s, expiry := range h.states {
		if now.After(expiry) {
			delete(h.states, s)
		}
	}
	h.states[state] = now.Add(StateTTL)
}

// consumeState reports whether state was issued and unexpired, and invalidates it.
func (h *OAuthHandler) consumeState(state string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	expiry, ok := h.states[state]
	if !ok {
		return false
	}
	delete(h.states, state)
	return !h.now().After(expiry)
}

// ServeHTTP handles the OAuth callback request.
//
// Validates state parameter, exchanges authorization code for tokens, hands the token to the
// TokenFunc and sends the result through the result channel.
func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	if state == "" || !h.consumeState(state) {
		h.Send(OAuthResult{err: shared.ErrInvalidState})
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		errParam := r.URL.Query().Get("error")
		errDesc := r.URL.Query().Get("error_description")
		err := fmt.Errorf("%w: %s - %s", shared.ErrAuthFailed, errParam, errDesc)
		h.Send(OAuthResult{err: err})
		http.Error(w, "Authorization failed", http.StatusBadRequest)
		return
	}

	token, err := h.exchanger.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("token exchange failed", "error", err)
		h.Send(OAuthResult{err: fmt.Errorf("token exchange failed: %w", err)})
		http.Error(w, "Token exchange failed", http.StatusInternalServerError)
		return
	}

	if h.onToken != nil {
		if err := h.onToken(r.Context(), token); err != nil {
			h.logger.Error("failed to handle token", "error", err)
			h.Send(OAuthResult{Token: token, err: err})
			http.Error(w, "Authorization succeeded but the account could not be processed", http.StatusInternalServerError)
			return
		}
	}

	h.Send(OAuthResult{Token: token})

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, `
<!DOCTYPE html>
<html>
<head>
    <title>Authorization Successful</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #ff5500; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>✓ Authorization Successful</h1>
        <p>Your favorites are being synced. You can close this window.</p>
    </div>
</body>
</html>
`)
}

// Send offers the OAuth result to the result channel, dropping it when nobody is waiting.
func (h *OAuthHandler) Send(result OAuthResult) {
	select {
	case h.resultChan <- result:
	default:
	}
}

// Result returns the result channel for receiving OAuth flow completions.
//
// The channel buffers one result; later results are dropped until it is drained.
func (h *OAuthHandler) Result() <-chan OAuthResult {
	return h.resultChan
}
