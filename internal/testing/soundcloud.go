package testing

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/desertthunder/scsync/internal/models"
	"github.com/desertthunder/scsync/internal/shared"
	"golang.org/x/oauth2"
)

// FakeSoundCloud is an in-memory test double for services.OAuthService.
//
// Favorites pages are keyed by user and cursor, stream URLs by track id, and audio bodies by URL.
// Every call is recorded so tests can assert on request order.
type FakeSoundCloud struct {
	mu sync.Mutex

	Pages      map[string]map[string]*models.FavoritesPage
	PageErrors map[string]error // keyed by cursor
	StreamURLs map[models.ID]string
	StreamErrs map[models.ID]error
	Bodies     map[string]string
	BodyErrs   map[string]error
	Sizes      map[string]int64         // advertised sizes, defaults to len(body)
	Readers    map[string]io.ReadCloser // served instead of Bodies when set
	User       *models.User
	Tokens     map[string]*oauth2.Token // keyed by authorization code

	// OnFavorites runs after a page is served and OnOpen before a body is served,
	// e.g. to cancel a context mid-run.
	OnFavorites func(cursor string)
	OnOpen      func(url string)

	FavoritesCalls []string
	StreamCalls    []models.ID
	OpenCalls      []string
	Token          *oauth2.Token
}

// NewFakeSoundCloud returns an empty fake.
func NewFakeSoundCloud() *FakeSoundCloud {
	return &FakeSoundCloud{
		Pages:      map[string]map[string]*models.FavoritesPage{},
		PageErrors: map[string]error{},
		StreamURLs: map[models.ID]string{},
		StreamErrs: map[models.ID]error{},
		Bodies:     map[string]string{},
		BodyErrs:   map[string]error{},
		Sizes:      map[string]int64{},
		Readers:    map[string]io.ReadCloser{},
		Tokens:     map[string]*oauth2.Token{},
	}
}

// AddPage registers the page served for userID at cursor.
func (f *FakeSoundCloud) AddPage(userID, cursor string, page *models.FavoritesPage) *FakeSoundCloud {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Pages[userID] == nil {
		f.Pages[userID] = map[string]*models.FavoritesPage{}
	}
	f.Pages[userID][cursor] = page
	return f
}

// AddAudio makes track id resolvable and downloadable with the given content.
func (f *FakeSoundCloud) AddAudio(id models.ID, content string) *FakeSoundCloud {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := StreamURL(id)
	f.StreamURLs[id] = u
	f.Bodies[u] = content
	return f
}

func (f *FakeSoundCloud) Name() string { return "fake" }

func (f *FakeSoundCloud) Favorites(ctx context.Context, userID, cursor string) (*models.FavoritesPage, error) {
	page, err := f.favorites(ctx, userID, cursor)
	if f.OnFavorites != nil {
		f.OnFavorites(cursor)
	}
	return page, err
}

func (f *FakeSoundCloud) favorites(ctx context.Context, userID, cursor string) (*models.FavoritesPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.FavoritesCalls = append(f.FavoritesCalls, cursor)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := f.PageErrors[cursor]; ok {
		return nil, err
	}
	page, ok := f.Pages[userID][cursor]
	if !ok {
		return nil, fmt.Errorf("%w: no page for user %s cursor %q", shared.ErrAPIRequest, userID, cursor)
	}
	return page, nil
}

func (f *FakeSoundCloud) Streams(ctx context.Context, trackID models.ID) (*models.StreamInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.StreamCalls = append(f.StreamCalls, trackID)

	if err, ok := f.StreamErrs[trackID]; ok {
		return nil, err
	}
	u, ok := f.StreamURLs[trackID]
	if !ok {
		return nil, fmt.Errorf("%w: track %s", shared.ErrStreamUnavailable, trackID)
	}
	return &models.StreamInfo{HTTPMP3128URL: u}, nil
}

func (f *FakeSoundCloud) Open(ctx context.Context, rawURL string) (io.ReadCloser, int64, error) {
	f.mu.Lock()
	f.OpenCalls = append(f.OpenCalls, rawURL)
	hook := f.OnOpen
	body, ok := f.Bodies[rawURL]
	bodyErr := f.BodyErrs[rawURL]
	size, sized := f.Sizes[rawURL]
	reader := f.Readers[rawURL]
	f.mu.Unlock()

	if hook != nil {
		hook(rawURL)
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	if bodyErr != nil {
		return nil, 0, bodyErr
	}
	if reader != nil {
		return reader, -1, nil
	}
	if !ok {
		return nil, 0, fmt.Errorf("%w: %s not found", shared.ErrAPIRequest, rawURL)
	}
	if !sized {
		size = int64(len(body))
	}
	return io.NopCloser(strings.NewReader(body)), size, nil
}

func (f *FakeSoundCloud) ConnectURL(state string) string {
	return "https://soundcloud.test/connect?state=" + url.QueryEscape(state)
}

func (f *FakeSoundCloud) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	token, ok := f.Tokens[code]
	if !ok {
		return nil, fmt.Errorf("%w: unknown code %q", shared.ErrAuthFailed, code)
	}
	return token, nil
}

func (f *FakeSoundCloud) Authenticate(ctx context.Context, token *oauth2.Token) error {
	if token == nil || token.AccessToken == "" {
		return shared.ErrInvalidCredentials
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Token = token
	return nil
}

func (f *FakeSoundCloud) Me(ctx context.Context) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Token == nil {
		return nil, shared.ErrNotAuthenticated
	}
	if f.User == nil {
		return nil, fmt.Errorf("%w: no user configured", shared.ErrAPIRequest)
	}
	return f.User, nil
}

// Calls returns copies of the recorded call logs.
func (f *FakeSoundCloud) Calls() (favorites []string, streams []models.ID, opens []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.FavoritesCalls...),
		append([]models.ID(nil), f.StreamCalls...),
		append([]string(nil), f.OpenCalls...)
}

// StreamURL is the URL the fake serves audio for id at.
func StreamURL(id models.ID) string {
	return "https://cdn.soundcloud.test/" + id.String() + ".mp3"
}

// NextHref builds a next_href link carrying cursor.
func NextHref(userID, cursor string) string {
	return "https://api.soundcloud.com/users/" + userID + "/favorites?linked_partitioning=1&cursor=" + url.QueryEscape(cursor)
}

// Page builds a favorites page.
func Page(nextHref string, favs ...models.Favorite) *models.FavoritesPage {
	if favs == nil {
		favs = []models.Favorite{}
	}
	return &models.FavoritesPage{Collection: favs, NextHref: nextHref}
}

// Track builds a streamable track favorite.
func Track(id models.ID, permalink string) models.Favorite {
	return models.Favorite{ID: id, Kind: models.KindTrack, Streamable: true, Permalink: permalink}
}

// Playlist builds a streamable playlist favorite.
func Playlist(id models.ID, tracks ...models.Favorite) models.Favorite {
	return models.Favorite{ID: id, Kind: models.KindPlaylist, Streamable: true, Permalink: "set-" + id.String(), Tracks: tracks}
}

// MemoryStore is an in-memory tasks.TrackStore that counts saves.
type MemoryStore struct {
	mu      sync.Mutex
	Doc     models.StoreDocument
	Saves   int
	SaveErr error
	LoadErr error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{Doc: models.StoreDocument{}}
}

func (m *MemoryStore) Load(userID string) (models.UserTrackTable, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	return m.Doc.Table(userID), nil
}

func (m *MemoryStore) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Saves++
	return m.SaveErr
}

// SaveCount returns the number of Save calls so far.
func (m *MemoryStore) SaveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Saves
}
