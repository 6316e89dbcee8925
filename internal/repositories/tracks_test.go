package repositories

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/scsync/internal/models"
	"github.com/desertthunder/scsync/internal/shared"
	tu "github.com/desertthunder/scsync/internal/testing"
)

func TestTrackStore(t *testing.T) {
	t.Run("absent file is an empty store", func(t *testing.T) {
		store := OpenTrackStore(filepath.Join(t.TempDir(), "tracks.json"))

		table, err := store.Load("42")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if len(table) != 0 {
			t.Errorf("expected empty table, got %d records", len(table))
		}

		users, err := store.Users()
		if err != nil {
			t.Fatalf("Users() error = %v", err)
		}
		if len(users) != 1 || users[0] != "42" {
			t.Errorf("Users() = %v, want [42]", users)
		}
	})

	t.Run("missing user id", func(t *testing.T) {
		store := OpenTrackStore(filepath.Join(t.TempDir(), "tracks.json"))
		if _, err := store.Load(""); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("corrupt file yields ParseError", func(t *testing.T) {
		tc := []struct {
			name    string
			content string
		}{
			{name: "truncated", content: `{"42": {"1": {"id": 1,`},
			{name: "empty", content: ``},
			{name: "wrong shape", content: `[1, 2, 3]`},
			{name: "trailing data", content: `{} {}`},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				path := filepath.Join(t.TempDir(), "tracks.json")
				if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
					t.Fatal(err)
				}

				_, err := OpenTrackStore(path).Load("42")
				if !errors.Is(err, shared.ErrCorruptState) {
					t.Fatalf("expected ErrCorruptState, got %v", err)
				}

				var perr *ParseError
				if !errors.As(err, &perr) {
					t.Fatalf("expected *ParseError, got %T", err)
				}
				if perr.Path != path {
					t.Errorf("ParseError.Path = %q, want %q", perr.Path, path)
				}

				if got := tu.MustReadFile(t, path); got != tt.content {
					t.Error("corrupt file must not be rewritten")
				}
			})
		}
	})

	t.Run("save and reload", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "tracks.json")
		store := OpenTrackStore(path)

		table, err := store.Load("42")
		if err != nil {
			t.Fatal(err)
		}
		table.Insert(&models.TrackRecord{ID: "1", Permalink: "first"})
		table.Insert(&models.TrackRecord{ID: "2", Permalink: "second"})
		table.MarkDownloaded("1")

		if err := store.Save(); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		reloaded, err := OpenTrackStore(path).Load("42")
		if err != nil {
			t.Fatalf("Load() after save error = %v", err)
		}
		if len(reloaded) != 2 {
			t.Fatalf("expected 2 records, got %d", len(reloaded))
		}
		if !reloaded["1"].Downloaded || reloaded["2"].Downloaded {
			t.Errorf("downloaded flags not preserved: %+v %+v", reloaded["1"], reloaded["2"])
		}
		if reloaded["2"].Permalink != "second" {
			t.Errorf("permalink = %q, want second", reloaded["2"].Permalink)
		}
	})

	t.Run("reads documents written by other tools", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tracks.json")
		content := `{"7": {"100": {"id": 100, "downloaded": true, "permalink": "a"}, "200": {"downloaded": false, "permalink": "b"}}}`
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}

		table, err := OpenTrackStore(path).Load("7")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if !table.Has("100") || !table["100"].Downloaded {
			t.Errorf("unexpected record 100: %+v", table["100"])
		}
		if table["200"].ID != "200" {
			t.Errorf("missing id should be filled from key, got %q", table["200"].ID)
		}
	})

	t.Run("numeric ids stay numeric on disk", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tracks.json")
		store := OpenTrackStore(path)
		table, _ := store.Load("42")
		table.Insert(&models.TrackRecord{ID: "123", Permalink: "song"})
		if err := store.Save(); err != nil {
			t.Fatal(err)
		}

		content := tu.MustReadFile(t, path)
		if !strings.Contains(content, `"id": 123`) {
			t.Errorf("expected numeric id in document, got:\n%s", content)
		}
		if !strings.HasSuffix(content, "\n") {
			t.Error("document should end with a newline")
		}
	})

	t.Run("save leaves no temp files", func(t *testing.T) {
		dir := t.TempDir()
		store := OpenTrackStore(filepath.Join(dir, "tracks.json"))
		table, _ := store.Load("42")
		for i, id := range []models.ID{"1", "2", "3"} {
			table.Insert(&models.TrackRecord{ID: id})
			if err := store.Save(); err != nil {
				t.Fatalf("Save() #%d error = %v", i, err)
			}
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 1 || entries[0].Name() != "tracks.json" {
			names := make([]string, 0, len(entries))
			for _, e := range entries {
				names = append(names, e.Name())
			}
			t.Errorf("expected only tracks.json, got %v", names)
		}
	})

	t.Run("reload picks up external edits", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tracks.json")
		store := OpenTrackStore(path)
		table, _ := store.Load("42")
		table.Insert(&models.TrackRecord{ID: "1", Permalink: "one"})
		if err := store.Save(); err != nil {
			t.Fatal(err)
		}

		other := OpenTrackStore(path)
		otherTable, _ := other.Load("42")
		otherTable.MarkDownloaded("1")
		otherTable.Insert(&models.TrackRecord{ID: "2", Permalink: "two"})
		if err := other.Save(); err != nil {
			t.Fatal(err)
		}

		store.Reload()
		table, err := store.Load("42")
		if err != nil {
			t.Fatalf("Load() after Reload error = %v", err)
		}
		if len(table) != 2 || !table["1"].Downloaded {
			t.Fatalf("expected the external edit after reload, got %+v", table)
		}

		table.Insert(&models.TrackRecord{ID: "3", Permalink: "three"})
		if err := store.Save(); err != nil {
			t.Fatal(err)
		}
		content := tu.MustReadFile(t, path)
		for _, want := range []string{`"permalink": "two"`, `"permalink": "three"`} {
			if !strings.Contains(content, want) {
				t.Errorf("expected %s to survive, got:\n%s", want, content)
			}
		}
	})

	t.Run("save over a directory fails", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tracks.json")
		store := OpenTrackStore(path)
		if _, err := store.Load("42"); err != nil {
			t.Fatal(err)
		}

		if err := os.MkdirAll(filepath.Join(path, "occupied"), 0755); err != nil {
			t.Fatal(err)
		}
		if err := store.Save(); err == nil {
			t.Error("expected Save() to fail when the target is a directory")
		}
	})
}
