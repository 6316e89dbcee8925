package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/desertthunder/scsync/internal/server"
	"github.com/desertthunder/scsync/internal/services"
	"github.com/desertthunder/scsync/internal/tasks"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
)

// Serve runs the callback server and a single sync worker until interrupted.
//
// Every account that completes the connect flow, and every id posted to /users/add, is
// queued for a favorites update. Users run one at a time.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	svc, err := r.soundcloud(ctx)
	if err != nil {
		return err
	}

	sessions, closeDB := r.sessions()
	defer closeDB()

	store := r.trackStore()
	controller := r.controller(svc, store, sessions)
	queue := server.NewSyncQueue(cmd.Int("queue-size"), r.syncUser(controller, store.Reload), r.logger)

	for _, userID := range cmd.StringSlice("user") {
		if err := queue.Enqueue(userID); err != nil {
			return err
		}
	}

	addr := net.JoinHostPort(r.config.Server.Host, strconv.Itoa(r.config.Server.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           r.newRouter(svc, queue),
		ReadHeaderTimeout: 10 * time.Second,
	}

	r.writePlain("Listening on http://%s\n", addr)
	r.writePlain("%s\n", r.styles.Help("Open it in a browser to connect a SoundCloud account"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Serve(gctx, srv, r.logger) })
	g.Go(func() error { return queue.Run(gctx) })

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server stopped: %w", err)
	}
	return nil
}

// newRouter registers the connect, callback, add-user and health routes.
func (r *Runner) newRouter(svc services.OAuthService, queue server.Enqueuer) *server.BasicRouter {
	oauth := server.NewOAuthHandler(svc, r.connectUser(svc, queue), r.logger)

	router := server.NewBasicRouter()
	router.Use(server.RecoverMiddleware(r.logger), server.LoggingMiddleware(r.logger))
	router.Handler(server.NewConnectHandler(svc.ConnectURL, oauth))
	router.Handler(oauth)
	router.Handler(server.NewAddUserHandler(queue, r.logger))
	router.Handler(server.NewHealthHandler(queue))
	return router
}

// connectUser saves a freshly issued token, resolves its account and queues it.
func (r *Runner) connectUser(svc services.OAuthService, queue server.Enqueuer) server.TokenFunc {
	return func(ctx context.Context, token *oauth2.Token) error {
		if err := r.saveTokens(token); err != nil {
			r.logger.Warn("failed to persist token", "error", err)
		}

		// Refreshes happen after the callback request has finished.
		if err := svc.Authenticate(context.WithoutCancel(ctx), token); err != nil {
			return err
		}

		user, err := svc.Me(ctx)
		if err != nil {
			return err
		}

		r.logger.Info("account connected", "user", user.ID, "username", user.Username)
		return queue.Enqueue(user.ID.String())
	}
}

// syncUser is the queue worker's job: a full favorites update for one user.
//
// reload runs before each update so edits made by other processes between runs are kept.
func (r *Runner) syncUser(controller tasks.SyncEngine, reload func()) server.SyncFunc {
	return func(ctx context.Context, userID string) error {
		if reload != nil {
			reload()
		}
		_, err := controller.UpdateFavorites(ctx, userID, func(result *tasks.SyncResult) {
			r.logger.Info("user synced",
				"user", result.UserID,
				"new", result.Records.Inserted,
				"downloaded", result.Downloads.Downloaded,
				"skipped", result.Downloads.Skipped,
			)
		}, nil)
		return err
	}
}
