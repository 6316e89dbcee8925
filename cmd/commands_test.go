package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/scsync/internal/formatter"
	"github.com/desertthunder/scsync/internal/models"
	"github.com/desertthunder/scsync/internal/shared"
	"github.com/desertthunder/scsync/internal/tasks"
	tu "github.com/desertthunder/scsync/internal/testing"
	"golang.org/x/oauth2"
)

// testEnv is a config file whose storage and database live in a temp dir.
type testEnv struct {
	dir        string
	configPath string
	config     *shared.Config
	fake       *tu.FakeSoundCloud
	output     *bytes.Buffer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	config := shared.DefaultConfig()
	config.Storage.TracksPath = filepath.Join(dir, "tracks.json")
	config.Storage.DownloadsDir = filepath.Join(dir, "downloads")
	config.Database.Path = filepath.Join(dir, "scsync.db")

	configPath := filepath.Join(dir, "config.toml")
	if err := shared.SaveConfig(configPath, config); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	return &testEnv{
		dir:        dir,
		configPath: configPath,
		config:     config,
		fake:       tu.NewFakeSoundCloud(),
		output:     &bytes.Buffer{},
	}
}

func (e *testEnv) runner() *Runner {
	return NewRunner(RunnerOpts{
		Service: e.fake,
		Logger:  shared.NewLogger(io.Discard),
		Output:  e.output,
	})
}

func (e *testEnv) run(t *testing.T, args ...string) (*Runner, error) {
	t.Helper()
	runner := e.runner()
	argv := append([]string{"scsync", "--config", e.configPath}, args...)
	return runner, newApp(runner).Run(context.Background(), argv)
}

func (e *testEnv) writeTracks(t *testing.T, doc string) {
	t.Helper()
	if err := os.WriteFile(e.config.Storage.TracksPath, []byte(doc), 0644); err != nil {
		t.Fatalf("failed to write track state: %v", err)
	}
}

func (e *testEnv) download(name string) string {
	return filepath.Join(e.config.Storage.DownloadsDir, name)
}

func TestUpdateCommand(t *testing.T) {
	t.Run("downloads new favorites and records history", func(t *testing.T) {
		env := newTestEnv(t)
		env.fake.
			AddPage("1", "", tu.Page(tu.NextHref("1", "c2"), tu.Track("10", "ten"))).
			AddPage("1", "c2", tu.Page("", tu.Playlist("500", tu.Track("2", "two")))).
			AddAudio("10", "audio-10").
			AddAudio("2", "audio-2")

		if _, err := env.run(t, "update", "--user", "1"); err != nil {
			t.Fatalf("update failed: %v", err)
		}

		if got := tu.MustReadFile(t, env.download("ten.mp3")); got != "audio-10" {
			t.Errorf("unexpected ten.mp3 content %q", got)
		}
		tu.AssertFileExists(t, env.download("two.mp3"))

		state := tu.MustReadFile(t, env.config.Storage.TracksPath)
		if strings.Contains(state, `"downloaded": false`) {
			t.Errorf("expected every track downloaded, got %s", state)
		}

		out := env.output.String()
		for _, want := range []string{"update 1 (1/1)", "Pages: 2, new tracks: 2", "Downloaded: 2 of 2 queued"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected output to contain %q, got:\n%s", want, out)
			}
		}

		env.output.Reset()
		if _, err := env.run(t, "history", "--user", "1"); err != nil {
			t.Fatalf("history failed: %v", err)
		}
		if out := env.output.String(); !strings.Contains(out, "update") || !strings.Contains(out, "completed") {
			t.Errorf("expected a completed update in history, got:\n%s", out)
		}

		env.output.Reset()
		if _, err := env.run(t, "history", "--user", "1", "--json"); err != nil {
			t.Fatalf("history --json failed: %v", err)
		}
		var runs []formatter.SessionLine
		if err := json.Unmarshal(env.output.Bytes(), &runs); err != nil {
			t.Fatalf("expected JSON history, got %q: %v", env.output.String(), err)
		}
		if len(runs) != 1 || runs[0].UserID != "1" || runs[0].Mode != "update" || runs[0].Downloaded != 2 {
			t.Errorf("unexpected runs: %+v", runs)
		}
	})

	t.Run("reports skipped tracks", func(t *testing.T) {
		env := newTestEnv(t)
		env.fake.
			AddPage("1", "", tu.Page("", tu.Track("10", "ten"), tu.Track("11", "gone"))).
			AddAudio("10", "audio-10")

		if _, err := env.run(t, "update", "--user", "1"); err != nil {
			t.Fatalf("update failed: %v", err)
		}

		out := env.output.String()
		if !strings.Contains(out, "1 tracks left for the next resume") || !strings.Contains(out, "11 gone") {
			t.Errorf("expected skipped track in summary, got:\n%s", out)
		}
	})

	t.Run("requires a user", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.run(t, "update")
		if !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("a failing user aborts the batch", func(t *testing.T) {
		env := newTestEnv(t)
		env.fake.
			AddPage("2", "", tu.Page("", tu.Track("20", "twenty"))).
			AddAudio("20", "audio-20")

		_, err := env.run(t, "update", "--user", "1", "--user", "2")
		if !errors.Is(err, shared.ErrAPIRequest) || !strings.Contains(err.Error(), "user 1") {
			t.Fatalf("expected user 1 API failure, got %v", err)
		}
		if _, err := os.Stat(env.download("twenty.mp3")); !os.IsNotExist(err) {
			t.Error("expected user 2 not to run")
		}
	})
}

func TestResumeCommand(t *testing.T) {
	env := newTestEnv(t)
	env.writeTracks(t, `{
  "1": {"5": {"id": 5, "downloaded": false, "permalink": "five"}},
  "2": {"7": {"id": 7, "downloaded": true, "permalink": "seven"},
        "8": {"id": 8, "downloaded": false, "permalink": "eight"}}
}`)
	env.fake.AddAudio("5", "audio-5").AddAudio("8", "audio-8")

	if _, err := env.run(t, "resume"); err != nil {
		t.Fatalf("resume failed: %v", err)
	}

	favorites, streams, _ := env.fake.Calls()
	if len(favorites) != 0 {
		t.Errorf("expected resume not to fetch favorites, got %v", favorites)
	}
	if len(streams) != 2 {
		t.Errorf("expected only pending tracks resolved, got %v", streams)
	}
	tu.AssertFileExists(t, env.download("five.mp3"))
	tu.AssertFileExists(t, env.download("eight.mp3"))

	out := env.output.String()
	if !strings.Contains(out, "resume 1 (1/2)") || !strings.Contains(out, "resume 2 (2/2)") {
		t.Errorf("expected both users in order, got:\n%s", out)
	}
}

func TestStatusCommand(t *testing.T) {
	const doc = `{
  "1": {"5": {"id": 5, "downloaded": true, "permalink": "five"},
        "6": {"id": 6, "downloaded": false, "permalink": "six"}},
  "2": {"8": {"id": 8, "downloaded": false, "permalink": "eight"}}
}`

	t.Run("prints a report", func(t *testing.T) {
		env := newTestEnv(t)
		env.writeTracks(t, doc)

		if _, err := env.run(t, "status", "--user", "1"); err != nil {
			t.Fatalf("status failed: %v", err)
		}
		out := env.output.String()
		if !strings.Contains(out, "Tracks: 2 (1 downloaded, 1 pending)") || !strings.Contains(out, "[x] 5 five") {
			t.Errorf("unexpected report:\n%s", out)
		}
	})

	t.Run("writes one file per user", func(t *testing.T) {
		env := newTestEnv(t)
		env.writeTracks(t, doc)
		outDir := filepath.Join(env.dir, "reports")

		if _, err := env.run(t, "status", "--format", "csv", "--output", outDir); err != nil {
			t.Fatalf("status failed: %v", err)
		}
		tu.AssertFileExists(t, filepath.Join(outDir, "1_status.csv"))
		if got := tu.MustReadFile(t, filepath.Join(outDir, "2_status.csv")); !strings.Contains(got, "8,eight,false,eight.mp3") {
			t.Errorf("unexpected csv: %s", got)
		}
	})

	t.Run("rejects unknown formats", func(t *testing.T) {
		env := newTestEnv(t)
		env.writeTracks(t, doc)

		_, err := env.run(t, "status", "--format", "xml")
		if !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag, got %v", err)
		}
	})

	t.Run("corrupt state", func(t *testing.T) {
		env := newTestEnv(t)
		env.writeTracks(t, `{"1": [`)

		_, err := env.run(t, "status")
		if !errors.Is(err, shared.ErrCorruptState) {
			t.Errorf("expected ErrCorruptState, got %v", err)
		}
	})
}

func TestSetupCommands(t *testing.T) {
	t.Run("config", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		runner := NewRunner(RunnerOpts{Logger: shared.NewLogger(io.Discard), Output: &bytes.Buffer{}})
		args := []string{"scsync", "--config", configPath, "setup", "config"}

		if err := newApp(runner).Run(context.Background(), args); err != nil {
			t.Fatalf("setup config failed: %v", err)
		}
		if _, err := shared.LoadConfig(configPath); err != nil {
			t.Errorf("expected a loadable config, got %v", err)
		}

		runner = NewRunner(RunnerOpts{Logger: shared.NewLogger(io.Discard), Output: &bytes.Buffer{}})
		if err := newApp(runner).Run(context.Background(), args); err == nil {
			t.Error("expected an error when the config already exists")
		}
	})

	t.Run("database", func(t *testing.T) {
		env := newTestEnv(t)

		if _, err := env.run(t, "setup", "database"); err != nil {
			t.Fatalf("setup database failed: %v", err)
		}
		tu.AssertFileExists(t, env.config.Database.Path)
	})
}

func TestGlobalFlags(t *testing.T) {
	env := newTestEnv(t)
	t.Setenv("CLIENT_ID", "env-client")
	t.Setenv("PORT", "9099")

	runner, err := env.run(t, "--verbose", "--client-secret", "flag-secret", "setup", "database")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	creds := runner.config.Credentials.SoundCloud
	if creds.ClientID != "env-client" {
		t.Errorf("expected client id from env, got %q", creds.ClientID)
	}
	if creds.ClientSecret != "flag-secret" {
		t.Errorf("expected client secret from flag, got %q", creds.ClientSecret)
	}
	if runner.config.Server.Port != 9099 {
		t.Errorf("expected port from env, got %d", runner.config.Server.Port)
	}
	if runner.configPath != env.configPath {
		t.Errorf("expected config path %q, got %q", env.configPath, runner.configPath)
	}
}

func TestAuthCommands(t *testing.T) {
	t.Run("status without a token", func(t *testing.T) {
		env := newTestEnv(t)
		runner := NewRunner(RunnerOpts{Logger: shared.NewLogger(io.Discard), Output: env.output})
		args := []string{"scsync", "--config", env.configPath, "auth", "status"}

		if err := newApp(runner).Run(context.Background(), args); err != nil {
			t.Fatalf("auth status failed: %v", err)
		}
		if !strings.Contains(env.output.String(), "Not authorized") {
			t.Errorf("unexpected output: %s", env.output.String())
		}
	})

	t.Run("status with an authorized service", func(t *testing.T) {
		env := newTestEnv(t)
		env.fake.Token = &oauth2.Token{AccessToken: "access"}
		env.fake.User = &models.User{ID: "42", Username: "dj"}

		if _, err := env.run(t, "auth", "status"); err != nil {
			t.Fatalf("auth status failed: %v", err)
		}
		out := env.output.String()
		if !strings.Contains(out, "Authorized") || !strings.Contains(out, "User: dj") || !strings.Contains(out, "ID: 42") {
			t.Errorf("unexpected output: %s", out)
		}
	})

	t.Run("status with a rejected token", func(t *testing.T) {
		env := newTestEnv(t)

		if _, err := env.run(t, "auth", "status"); err != nil {
			t.Fatalf("auth status failed: %v", err)
		}
		if !strings.Contains(env.output.String(), "Stored token was rejected") {
			t.Errorf("unexpected output: %s", env.output.String())
		}
	})

	t.Run("connect requires credentials", func(t *testing.T) {
		env := newTestEnv(t)
		runner := env.runner()
		runner.config.Credentials.SoundCloud.ClientSecret = ""

		err := runner.AuthConnect(context.Background(), nil)
		if !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("connect stops when cancelled", func(t *testing.T) {
		env := newTestEnv(t)
		runner := env.runner()
		runner.config.Server.Host = "127.0.0.1"
		runner.config.Server.Port = 0

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if _, err := runner.doOAuth(ctx, env.fake, false); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if !strings.Contains(env.output.String(), "https://soundcloud.test/connect?state=") {
			t.Errorf("expected the connect URL to be printed, got %s", env.output.String())
		}
	})
}

type recordingQueue struct {
	users []string
}

func (q *recordingQueue) Enqueue(userID string) error {
	q.users = append(q.users, userID)
	return nil
}

func (q *recordingQueue) Len() int { return len(q.users) }

func TestServeWiring(t *testing.T) {
	t.Run("connected accounts are saved and queued", func(t *testing.T) {
		env := newTestEnv(t)
		env.fake.User = &models.User{ID: "42", Username: "dj"}
		runner := env.runner()
		runner.configPath = env.configPath
		queue := &recordingQueue{}

		err := runner.connectUser(env.fake, queue)(context.Background(), &oauth2.Token{AccessToken: "fresh"})
		if err != nil {
			t.Fatalf("connectUser failed: %v", err)
		}

		if strings.Join(queue.users, ",") != "42" {
			t.Errorf("expected user 42 queued, got %v", queue.users)
		}
		saved, err := shared.LoadConfig(env.configPath)
		if err != nil {
			t.Fatalf("failed to reload config: %v", err)
		}
		if saved.Credentials.SoundCloud.AccessToken != "fresh" {
			t.Errorf("expected token persisted, got %q", saved.Credentials.SoundCloud.AccessToken)
		}
	})

	t.Run("unknown account is not queued", func(t *testing.T) {
		env := newTestEnv(t)
		queue := &recordingQueue{}

		err := env.runner().connectUser(env.fake, queue)(context.Background(), &oauth2.Token{AccessToken: "fresh"})
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected the profile lookup to fail, got %v", err)
		}
		if len(queue.users) != 0 {
			t.Errorf("expected nothing queued, got %v", queue.users)
		}
	})

	t.Run("worker runs a full update", func(t *testing.T) {
		env := newTestEnv(t)
		env.fake.AddPage("1", "", tu.Page("", tu.Track("10", "ten"))).AddAudio("10", "audio-10")
		store := tu.NewMemoryStore()
		runner := env.runner()

		controller := tasks.NewSyncController(env.fake, store, env.config.Storage.DownloadsDir, runner.logger)
		reloads := 0
		if err := runner.syncUser(controller, func() { reloads++ })(context.Background(), "1"); err != nil {
			t.Fatalf("syncUser failed: %v", err)
		}
		if reloads != 1 {
			t.Errorf("expected one reload before the update, got %d", reloads)
		}
		if !store.Doc.Table("1")["10"].Downloaded {
			t.Error("expected track 10 downloaded")
		}
	})

	t.Run("router serves every route", func(t *testing.T) {
		env := newTestEnv(t)
		queue := &recordingQueue{}
		router := env.runner().newRouter(env.fake, queue)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusFound || !strings.HasPrefix(rec.Header().Get("Location"), "https://soundcloud.test/connect") {
			t.Errorf("expected connect redirect, got %d %q", rec.Code, rec.Header().Get("Location"))
		}

		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=forged&code=x", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected forged callback rejected, got %d", rec.Code)
		}

		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/addUser?id=7", nil))
		if rec.Code != http.StatusAccepted || strings.Join(queue.users, ",") != "7" {
			t.Errorf("expected user 7 queued, got %d %v", rec.Code, queue.users)
		}

		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"queued":1`) {
			t.Errorf("unexpected health response %d %s", rec.Code, rec.Body.String())
		}
	})
}
