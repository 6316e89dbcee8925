// package services defines the interfaces for talking to SoundCloud
package services

import (
	"context"
	"io"

	"github.com/desertthunder/scsync/internal/models"
	"golang.org/x/oauth2"
)

// Service defines the read operations the sync pipeline needs from a track provider.
type Service interface {
	// Favorites fetches one page of a user's favorites. An empty cursor starts at the beginning.
	Favorites(ctx context.Context, userID, cursor string) (*models.FavoritesPage, error)

	// Streams resolves the transient stream URLs for a track.
	Streams(ctx context.Context, trackID models.ID) (*models.StreamInfo, error)

	// Open starts downloading the resource at url. size is -1 when unknown.
	Open(ctx context.Context, url string) (body io.ReadCloser, size int64, err error)

	// Name returns the name of the service (e.g., "SoundCloud")
	Name() string
}

// OAuthService extends [Service] with the authorization code flow.
type OAuthService interface {
	Service

	// ConnectURL returns the URL a user visits to grant access.
	ConnectURL(state string) string

	// Exchange trades an authorization code for a token.
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)

	// Authenticate makes subsequent requests on behalf of the token's owner.
	Authenticate(ctx context.Context, token *oauth2.Token) error

	// Me returns the profile of the authenticated user.
	Me(ctx context.Context) (*models.User, error)
}
