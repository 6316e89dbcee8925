// SoundCloud API implementation of [OAuthService]
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/desertthunder/scsync/internal/models"
	"github.com/desertthunder/scsync/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	soundcloudAPIURL     = "https://api.soundcloud.com"
	soundcloudConnectURL = "https://soundcloud.com/connect"
	soundcloudTokenURL   = "https://api.soundcloud.com/oauth2/token"
)

// APIError is a non-2xx response from SoundCloud.
type APIError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%v: %s returned status %d", shared.ErrAPIRequest, e.URL, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

func (e *APIError) Unwrap() []error {
	if e.StatusCode == http.StatusUnauthorized {
		return []error{shared.ErrAPIRequest, shared.ErrNotAuthenticated}
	}
	return []error{shared.ErrAPIRequest}
}

// SoundCloudOptions configures a [SoundCloudService]. Empty URLs fall back to the public endpoints.
type SoundCloudOptions struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	APIURL       string
	ConnectURL   string
	TokenURL     string

	// Timeout bounds each API request. Audio transfers are bounded only by their context.
	Timeout time.Duration

	// RequestsPerSecond paces API requests. Zero disables pacing.
	RequestsPerSecond float64

	// HTTPClient is the base client for every request. Defaults to [http.DefaultClient].
	HTTPClient *http.Client
}

// SoundCloudService implements [OAuthService] for the SoundCloud API.
type SoundCloudService struct {
	config  *oauth2.Config
	apiURL  string
	timeout time.Duration
	limiter *rate.Limiter
	base    *http.Client

	mu          sync.RWMutex
	httpClient  *http.Client
	tokenSource oauth2.TokenSource
}

// NewSoundCloudService creates a new SoundCloud service from the given options.
func NewSoundCloudService(opts SoundCloudOptions) (*SoundCloudService, error) {
	if opts.ClientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	apiURL := strings.TrimRight(orDefault(opts.APIURL, soundcloudAPIURL), "/")
	if _, err := url.Parse(apiURL); err != nil {
		return nil, fmt.Errorf("%w: api_url: %v", shared.ErrInvalidConfig, err)
	}

	base := opts.HTTPClient
	if base == nil {
		base = http.DefaultClient
	}

	config := &oauth2.Config{
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		RedirectURL:  opts.RedirectURI,
		Scopes:       []string{"non-expiring"},
		Endpoint: oauth2.Endpoint{
			AuthURL:   orDefault(opts.ConnectURL, soundcloudConnectURL),
			TokenURL:  orDefault(opts.TokenURL, soundcloudTokenURL),
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	return &SoundCloudService{
		config:     config,
		apiURL:     apiURL,
		timeout:    opts.Timeout,
		limiter:    limiter,
		base:       base,
		httpClient: base,
	}, nil
}

func (s *SoundCloudService) Name() string {
	return "SoundCloud"
}

// ConnectURL returns the SoundCloud authorization URL for user login.
func (s *SoundCloudService) ConnectURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.SetAuthURLParam("display", "popup"))
}

// Exchange trades an authorization code for a token without authenticating the service.
func (s *SoundCloudService) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: authorization code", shared.ErrMissingArgument)
	}

	token, err := s.config.Exchange(s.withBaseClient(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to exchange auth code: %v", shared.ErrAuthFailed, err)
	}
	return token, nil
}

// Authenticate routes subsequent requests through an [oauth2.Client] holding token.
//
// ctx must outlive the service; it is used when refreshing the token.
func (s *SoundCloudService) Authenticate(ctx context.Context, token *oauth2.Token) error {
	if token == nil || token.AccessToken == "" {
		return fmt.Errorf("%w: empty access token", shared.ErrInvalidCredentials)
	}

	ctx = s.withBaseClient(ctx)
	source := s.config.TokenSource(ctx, token)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenSource = source
	s.httpClient = oauth2.NewClient(ctx, source)
	return nil
}

// Token returns the current token, refreshing it first if it has expired.
func (s *SoundCloudService) Token() (*oauth2.Token, error) {
	source, _ := s.session()
	if source == nil {
		return nil, shared.ErrNotAuthenticated
	}
	return source.Token()
}

// Me retrieves the authenticated user's profile.
func (s *SoundCloudService) Me(ctx context.Context) (*models.User, error) {
	if source, _ := s.session(); source == nil {
		return nil, fmt.Errorf("%w: call Authenticate first", shared.ErrNotAuthenticated)
	}

	var user models.User
	if err := s.get(ctx, "/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Favorites retrieves one page of a user's favorites using linked partitioning.
func (s *SoundCloudService) Favorites(ctx context.Context, userID, cursor string) (*models.FavoritesPage, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id", shared.ErrMissingArgument)
	}

	params := url.Values{"linked_partitioning": {"1"}}
	if cursor != "" {
		params.Set("cursor", cursor)
	}

	var page models.FavoritesPage
	if err := s.get(ctx, "/users/"+url.PathEscape(userID)+"/favorites", params, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Streams resolves the MP3 stream URL for a track.
//
// A response without an http_mp3_128_url yields [shared.ErrStreamUnavailable].
func (s *SoundCloudService) Streams(ctx context.Context, trackID models.ID) (*models.StreamInfo, error) {
	var info models.StreamInfo
	if err := s.get(ctx, "/i1/tracks/"+url.PathEscape(trackID.String())+"/streams", nil, &info); err != nil {
		return nil, err
	}
	if info.HTTPMP3128URL == "" {
		return nil, fmt.Errorf("%w: track %s", shared.ErrStreamUnavailable, trackID)
	}
	return &info, nil
}

// Open starts a GET for a stream URL. Stream URLs are pre-signed, so no credentials are attached.
func (s *SoundCloudService) Open(ctx context.Context, rawURL string) (io.ReadCloser, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.base.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", shared.ErrTransferFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, 0, newAPIError(resp)
	}

	return resp.Body, resp.ContentLength, nil
}

// get performs a paced GET against the API and decodes the JSON body into result.
func (s *SoundCloudService) get(ctx context.Context, endpoint string, params url.Values, result any) error {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("client_id", s.config.ClientID)
	apiURL := s.apiURL + endpoint + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	_, client := s.session()
	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil {
			return fmt.Errorf("%w: %w: %s", shared.ErrAPIRequest, shared.ErrTimeout, endpoint)
		}
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("%w: failed to decode response from %s: %v", shared.ErrAPIRequest, endpoint, err)
	}
	return nil
}

// session returns the current token source and the client requests go through.
func (s *SoundCloudService) session() (oauth2.TokenSource, *http.Client) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokenSource, s.httpClient
}

// withBaseClient makes oauth2 use the configured base client for token requests.
func (s *SoundCloudService) withBaseClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, s.base)
}

func newAPIError(resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	var redacted string
	if resp.Request != nil && resp.Request.URL != nil {
		u := resp.Request.URL
		redacted = u.Scheme + "://" + u.Host + u.Path
	}
	return &APIError{
		StatusCode: resp.StatusCode,
		URL:        redacted,
		Body:       strings.TrimSpace(string(body)),
	}
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
