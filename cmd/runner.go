package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/scsync/internal/repositories"
	"github.com/desertthunder/scsync/internal/services"
	"github.com/desertthunder/scsync/internal/shared"
	"github.com/desertthunder/scsync/internal/tasks"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	service    services.OAuthService
	store      *repositories.TrackStore
	logger     *log.Logger
	output     io.Writer
	styles     *Palette

	mu sync.Mutex // guards config writes from concurrent callbacks
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Service    services.OAuthService
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		service:    opts.Service,
		logger:     opts.Logger,
		output:     opts.Output,
		styles:     DefaultPalette(),
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, serveCommand, updateCommand, resumeCommand, statusCommand, historyCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Before loads the configuration file named by --config and applies flag and environment overrides.
//
// A missing file leaves the defaults in place so that setup commands can run first.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	r.configPath = cmd.String("config")

	if _, err := os.Stat(r.configPath); err == nil {
		config, err := shared.LoadConfig(r.configPath)
		if err != nil {
			return ctx, err
		}
		r.config = config
	} else {
		r.logger.Debug("config file not found, using defaults", "path", r.configPath)
	}

	creds := &r.config.Credentials.SoundCloud
	if v := cmd.String("client-id"); v != "" {
		creds.ClientID = v
	}
	if v := cmd.String("client-secret"); v != "" {
		creds.ClientSecret = v
	}
	if v := cmd.String("redirect-uri"); v != "" {
		creds.RedirectURI = v
	}
	if port := cmd.Int("port"); port > 0 {
		r.config.Server.Port = port
	}

	level := shared.ParseLogLevel(r.config.Logging.Level)
	if cmd.Bool("verbose") {
		level = log.DebugLevel
	}
	shared.SetLogLevel(r.logger, level)

	return ctx, nil
}

// soundcloud returns the configured service, building it from the config on first use.
//
// A stored token authenticates the service; without one only public endpoints are usable.
func (r *Runner) soundcloud(ctx context.Context) (services.OAuthService, error) {
	if r.service != nil {
		return r.service, nil
	}

	creds := r.config.Credentials.SoundCloud
	svc, err := services.NewSoundCloudService(services.SoundCloudOptions{
		ClientID:          creds.ClientID,
		ClientSecret:      creds.ClientSecret,
		RedirectURI:       creds.RedirectURI,
		APIURL:            r.config.SoundCloud.APIURL,
		ConnectURL:        r.config.SoundCloud.ConnectURL,
		TokenURL:          r.config.SoundCloud.TokenURL,
		Timeout:           r.config.SoundCloud.RequestTimeout(),
		RequestsPerSecond: r.config.SoundCloud.RequestsPerSecond,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create SoundCloud service: %w", err)
	}

	if token := creds.Token(); token != nil {
		if err := svc.Authenticate(ctx, token); err != nil {
			r.logger.Warn("stored token rejected, continuing unauthenticated", "error", err)
		}
	} else {
		r.logger.Debug("no stored token, continuing unauthenticated")
	}

	r.service = svc
	return svc, nil
}

// trackStore returns the store backed by storage.tracks_path.
func (r *Runner) trackStore() *repositories.TrackStore {
	if r.store == nil {
		r.store = repositories.OpenTrackStore(r.config.Storage.TracksPath)
	}
	return r.store
}

// openDatabase opens the history database and brings its schema up to date.
func (r *Runner) openDatabase() (*sql.DB, error) {
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

// sessions opens the history repository for recording runs.
//
// History is optional for syncing: on failure it logs a warning and returns a nil repository.
func (r *Runner) sessions() (*repositories.SessionRepository, func()) {
	db, err := r.openDatabase()
	if err != nil {
		r.logger.Warn("sync history disabled", "error", err)
		return nil, func() {}
	}
	return repositories.NewSessionRepository(db), func() { db.Close() }
}

// controller wires the sync pipeline for svc and store.
func (r *Runner) controller(svc services.Service, store tasks.TrackStore, sessions *repositories.SessionRepository) *tasks.SyncController {
	controller := tasks.NewSyncController(svc, store, r.config.Storage.DownloadsDir, r.logger)
	if sessions != nil {
		controller.WithSessions(sessions)
	}
	if r.config.Storage.ProgressBars {
		controller.Downloader().WithProgressBars(os.Stderr)
	}
	return controller
}

// users returns the --user values, or every user in the store when none are given.
func (r *Runner) users(cmd *cli.Command, store *repositories.TrackStore) ([]string, error) {
	users := []string{}
	for _, id := range cmd.StringSlice("user") {
		if id = strings.TrimSpace(id); id != "" {
			users = append(users, id)
		}
	}
	if len(users) > 0 {
		return users, nil
	}

	users, err := store.Users()
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, fmt.Errorf("%w: no users in %s, pass --user", shared.ErrMissingArgument, store.Path())
	}
	return users, nil
}

// saveTokens stores token in the config and writes it to the config path, if any.
func (r *Runner) saveTokens(token *oauth2.Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.config == nil {
		return fmt.Errorf("%w: config is nil", shared.ErrMissingConfig)
	}

	if err := r.config.Credentials.SoundCloud.Update(token); err != nil {
		return fmt.Errorf("failed to update soundcloud credentials: %w", err)
	}

	if r.configPath == "" {
		return nil
	}

	if err := shared.SaveConfig(r.configPath, r.config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	rule := strings.Repeat("═", 39)
	r.writePlain("%s\n", rule)
	r.writePlain("%s\n", r.styles.Title(title))
	r.writePlain("%s\n", rule)
}
