// Package services implements the SoundCloud API client used by the sync pipeline.
//
// # Service Interface
//
// [Service] covers what the pipeline reads: favorites pages, stream URLs and the audio itself.
// [OAuthService] adds the authorization code flow used by the callback server and the CLI.
//
// # SoundCloud Implementation
//
// [SoundCloudService] sends client_id on every API request. Once [SoundCloudService.Authenticate]
// is called, requests go through an [oauth2.Client] which refreshes expired tokens using the refresh token.
// Requests can be paced client-side with requests_per_second; a 429 is reported like any other failure.
//
// # Error Handling
//
// Non-2xx responses become an [*APIError] that matches [shared.ErrAPIRequest]:
//   - 401 additionally matches [shared.ErrNotAuthenticated]
//   - a stream lookup without an MP3 URL returns [shared.ErrStreamUnavailable]
package services
