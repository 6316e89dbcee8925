package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// ID is an opaque, stable SoundCloud resource identifier.
//
// The API sends ids as JSON numbers; older payloads and hand-edited state files may carry strings.
// Both decode into ID, and numeric ids encode back to JSON numbers.
type ID string

// String returns the id as a plain string.
func (id ID) String() string { return string(id) }

// IsNumeric reports whether the id is a non-negative decimal integer without leading zeros.
func (id ID) IsNumeric() bool {
	s := string(id)
	if s == "" || (len(s) > 1 && s[0] == '0') {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Less orders numeric ids before all others. Numeric ids compare by value, the rest lexically.
func (id ID) Less(other ID) bool {
	a, b := id.IsNumeric(), other.IsNumeric()
	switch {
	case a != b:
		return a
	case a && len(id) != len(other):
		return len(id) < len(other)
	}
	return id < other
}

// MarshalJSON implements [json.Marshaler].
func (id ID) MarshalJSON() ([]byte, error) {
	if id.IsNumeric() {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// UnmarshalJSON implements [json.Unmarshaler].
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*id = ""
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a number or string: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// TrackRecord identifies one favorited track and its download status.
type TrackRecord struct {
	ID         ID     `json:"id"`
	Downloaded bool   `json:"downloaded"`
	Permalink  string `json:"permalink"`
}

// UserTrackTable maps track id to [TrackRecord] for one user.
//
// Records are only ever added or flipped to downloaded; nothing in the pipeline removes them.
type UserTrackTable map[string]*TrackRecord

// Has reports whether a record with the given id exists.
func (t UserTrackTable) Has(id ID) bool {
	_, ok := t[id.String()]
	return ok
}

// Insert adds rec unless a record with the same id already exists. It reports whether rec was added.
func (t UserTrackTable) Insert(rec *TrackRecord) bool {
	if rec == nil || rec.ID == "" || t.Has(rec.ID) {
		return false
	}
	t[rec.ID.String()] = rec
	return true
}

// MarkDownloaded flips the record for id to downloaded. It reports whether the record exists.
func (t UserTrackTable) MarkDownloaded(id ID) bool {
	rec, ok := t[id.String()]
	if !ok {
		return false
	}
	rec.Downloaded = true
	return true
}

// Pending returns the records not yet downloaded, ordered by id.
func (t UserTrackTable) Pending() []*TrackRecord {
	pending := make([]*TrackRecord, 0, len(t))
	for _, rec := range t {
		if !rec.Downloaded {
			pending = append(pending, rec)
		}
	}
	sortRecords(pending)
	return pending
}

// Records returns every record, ordered by id.
func (t UserTrackTable) Records() []*TrackRecord {
	records := make([]*TrackRecord, 0, len(t))
	for _, rec := range t {
		records = append(records, rec)
	}
	sortRecords(records)
	return records
}

// Counts returns the total number of records and how many are downloaded.
func (t UserTrackTable) Counts() (total, downloaded int) {
	for _, rec := range t {
		total++
		if rec.Downloaded {
			downloaded++
		}
	}
	return total, downloaded
}

func sortRecords(records []*TrackRecord) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].ID.Less(records[j].ID)
	})
}

// StoreDocument maps user id to that user's [UserTrackTable]. It is the entire persisted state.
type StoreDocument map[string]UserTrackTable

// Table returns the table for userID, creating an empty one if needed.
func (d StoreDocument) Table(userID string) UserTrackTable {
	table, ok := d[userID]
	if !ok || table == nil {
		table = UserTrackTable{}
		d[userID] = table
	}
	return table
}

// Users returns the user ids in the document, sorted.
func (d StoreDocument) Users() []string {
	users := make([]string, 0, len(d))
	for id := range d {
		users = append(users, id)
	}
	sort.Slice(users, func(i, j int) bool {
		return ID(users[i]).Less(ID(users[j]))
	})
	return users
}

// SafeFileName returns the base name used for the track's downloaded file.
//
// The permalink is used when it is a plain file name; otherwise the id is used.
func (r *TrackRecord) SafeFileName() string {
	name := strings.TrimSpace(r.Permalink)
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`+"\x00") {
		return r.ID.String()
	}
	return name
}
