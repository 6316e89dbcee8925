// Package server provides HTTP routing, middleware, OAuth handling and the sync queue for the callback server.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # OAuth Callback Handler
//
// [OAuthHandler] implements the OAuth2 authorization code callback flow.
//
// The handler validates the state parameter (CSRF protection), exchanges the authorization code for tokens,
// passes the token to a [TokenFunc] and sends the result through a channel.
// Every state token is single-use, which rejects replays while still serving callbacks from many users.
//
// # Routes
//
//   - GET / : redirect to the SoundCloud connect page ([ConnectHandler])
//   - GET /callback : OAuth callback ([OAuthHandler])
//   - GET /users/add?id= : queue a user for a favorites update ([AddUserHandler])
//   - GET /health : liveness and queue depth ([HealthHandler])
//
// # Sync Queue
//
// [SyncQueue] hands users to exactly one worker goroutine, so a user's run always finishes before the next
// user's run starts and the track store is never written concurrently.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
