package models

import (
	"encoding/json"
	"testing"
)

func TestID(t *testing.T) {
	t.Run("UnmarshalJSON", func(t *testing.T) {
		tc := []struct {
			name    string
			input   string
			want    ID
			wantErr bool
		}{
			{name: "number", input: `123456`, want: "123456"},
			{name: "string", input: `"abc-1"`, want: "abc-1"},
			{name: "null", input: `null`, want: ""},
			{name: "object", input: `{}`, wantErr: true},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				var got ID
				err := json.Unmarshal([]byte(tt.input), &got)
				if (err != nil) != tt.wantErr {
					t.Fatalf("Unmarshal() error = %v, wantErr %v", err, tt.wantErr)
				}
				if !tt.wantErr && got != tt.want {
					t.Errorf("Unmarshal() = %q, want %q", got, tt.want)
				}
			})
		}
	})

	t.Run("MarshalJSON keeps numeric ids numeric", func(t *testing.T) {
		data, err := json.Marshal(TrackRecord{ID: "42", Permalink: "song"})
		if err != nil {
			t.Fatalf("Marshal() error = %v", err)
		}
		want := `{"id":42,"downloaded":false,"permalink":"song"}`
		if string(data) != want {
			t.Errorf("Marshal() = %s, want %s", data, want)
		}

		data, _ = json.Marshal(ID("007"))
		if string(data) != `"007"` {
			t.Errorf("ids with leading zeros must stay strings, got %s", data)
		}
	})

	t.Run("Less", func(t *testing.T) {
		if !ID("9").Less("10") {
			t.Error("expected numeric ordering 9 < 10")
		}
		if ID("b").Less("a") {
			t.Error("expected lexical ordering for strings")
		}

		tests := []struct {
			a, b ID
			want bool
		}{
			{"9", "10", true},
			{"10", "1a", true},
			{"1a", "9", false},
			{"100", "abc", true},
			{"0x", "9", false},
			{"0x", "1a", true},
			{"2", "2", false},
		}
		for _, tt := range tests {
			if got := tt.a.Less(tt.b); got != tt.want {
				t.Errorf("%q.Less(%q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		}
	})
}

func TestPendingOrderWithMixedIDs(t *testing.T) {
	table := UserTrackTable{}
	for _, id := range []ID{"9", "10", "1a", "2", "100", "abc", "0x"} {
		table.Insert(&TrackRecord{ID: id, Permalink: "track-" + id.String()})
	}

	want := []ID{"2", "9", "10", "100", "0x", "1a", "abc"}
	for i := 0; i < 50; i++ {
		pending := table.Pending()
		if len(pending) != len(want) {
			t.Fatalf("expected %d pending, got %d", len(want), len(pending))
		}
		for j, rec := range pending {
			if rec.ID != want[j] {
				t.Fatalf("call %d: pending[%d] = %s, want %s", i, j, rec.ID, want[j])
			}
		}
	}
}

func TestUserTrackTable(t *testing.T) {
	table := UserTrackTable{}

	if !table.Insert(&TrackRecord{ID: "10", Permalink: "ten"}) {
		t.Fatal("expected first insert to succeed")
	}
	table.Insert(&TrackRecord{ID: "9", Permalink: "nine"})
	table.Insert(&TrackRecord{ID: "11", Permalink: "eleven"})

	if table.Insert(&TrackRecord{ID: "10", Permalink: "other"}) {
		t.Error("expected duplicate insert to be rejected")
	}
	if table["10"].Permalink != "ten" {
		t.Error("duplicate insert must not overwrite the existing record")
	}

	if !table.MarkDownloaded("10") {
		t.Fatal("expected MarkDownloaded to find record")
	}
	if table.MarkDownloaded("404") {
		t.Error("expected MarkDownloaded to report missing record")
	}

	pending := table.Pending()
	if len(pending) != 2 || pending[0].ID != "9" || pending[1].ID != "11" {
		t.Errorf("unexpected pending order: %+v", pending)
	}

	total, downloaded := table.Counts()
	if total != 3 || downloaded != 1 {
		t.Errorf("Counts() = %d, %d; want 3, 1", total, downloaded)
	}
}

func TestStoreDocument(t *testing.T) {
	doc := StoreDocument{}
	doc.Table("20").Insert(&TrackRecord{ID: "1"})
	doc.Table("3")

	if len(doc.Table("20")) != 1 {
		t.Error("Table should return the same table on repeated calls")
	}

	users := doc.Users()
	if len(users) != 2 || users[0] != "3" || users[1] != "20" {
		t.Errorf("Users() = %v, want [3 20]", users)
	}
}

func TestFavoritesPageNextCursor(t *testing.T) {
	tc := []struct {
		name   string
		page   *FavoritesPage
		want   string
		wantOK bool
	}{
		{name: "nil page", page: nil},
		{name: "no next link", page: &FavoritesPage{}},
		{
			name:   "cursor present",
			page:   &FavoritesPage{NextHref: "https://api.soundcloud.com/users/1/favorites?linked_partitioning=1&cursor=abc%3D"},
			want:   "abc=",
			wantOK: true,
		},
		{
			name: "link without cursor",
			page: &FavoritesPage{NextHref: "https://api.soundcloud.com/users/1/favorites?offset=50"},
		},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.page.NextCursor()
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("NextCursor() = %q, %v; want %q, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestSafeFileName(t *testing.T) {
	tc := []struct {
		rec  TrackRecord
		want string
	}{
		{rec: TrackRecord{ID: "1", Permalink: "my-song"}, want: "my-song"},
		{rec: TrackRecord{ID: "2", Permalink: ""}, want: "2"},
		{rec: TrackRecord{ID: "3", Permalink: "../escape"}, want: "3"},
		{rec: TrackRecord{ID: "4", Permalink: ".."}, want: "4"},
	}

	for _, tt := range tc {
		if got := tt.rec.SafeFileName(); got != tt.want {
			t.Errorf("SafeFileName(%q) = %q, want %q", tt.rec.Permalink, got, tt.want)
		}
	}
}
