package models

import (
	"net/url"
)

// Favorite kinds reported by the SoundCloud API.
const (
	KindTrack    = "track"
	KindPlaylist = "playlist"
)

// Favorite is an entity a user has liked. Playlists carry their tracks inline.
type Favorite struct {
	ID         ID         `json:"id"`
	Kind       string     `json:"kind"`
	Streamable bool       `json:"streamable"`
	Permalink  string     `json:"permalink"`
	Title      string     `json:"title,omitempty"`
	Tracks     []Favorite `json:"tracks,omitempty"`
}

// FavoritesPage is one page of a user's favorites with linked partitioning.
type FavoritesPage struct {
	Collection []Favorite `json:"collection"`
	NextHref   string     `json:"next_href,omitempty"`
}

// NextCursor extracts the cursor query parameter from the page's next link.
//
// ok is false when there is no next link, the link does not parse, or it carries no cursor.
func (p *FavoritesPage) NextCursor() (cursor string, ok bool) {
	if p == nil || p.NextHref == "" {
		return "", false
	}

	u, err := url.Parse(p.NextHref)
	if err != nil {
		return "", false
	}

	cursor = u.Query().Get("cursor")
	return cursor, cursor != ""
}

// StreamInfo holds the transient stream URLs for a track.
type StreamInfo struct {
	HTTPMP3128URL string `json:"http_mp3_128_url,omitempty"`
}

// User is the subset of a SoundCloud user profile the service needs.
type User struct {
	ID        ID     `json:"id"`
	Username  string `json:"username"`
	Permalink string `json:"permalink"`
}
