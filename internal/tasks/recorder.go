package tasks

import (
	"github.com/charmbracelet/log"
	"github.com/desertthunder/scsync/internal/models"
)

// MaxPlaylistDepth bounds how deeply playlists nested inside playlists are flattened.
const MaxPlaylistDepth = 8

// RecordStats tallies what [Recorder.Record] did with a favorite and anything nested in it.
type RecordStats struct {
	Inserted     int // New track records
	Duplicates   int // Entities whose id was already in the table
	Unstreamable int // Entities with streamable=false
	Unsupported  int // Entities of a kind other than track or playlist
	Playlists    int // Playlists flattened
	Truncated    int // Playlists skipped for exceeding MaxPlaylistDepth or repeating
}

// Add accumulates other into s.
func (s *RecordStats) Add(other RecordStats) {
	s.Inserted += other.Inserted
	s.Duplicates += other.Duplicates
	s.Unstreamable += other.Unstreamable
	s.Unsupported += other.Unsupported
	s.Playlists += other.Playlists
	s.Truncated += other.Truncated
}

// Recorder turns favorites into track records, flattening playlists.
//
// Recording is idempotent: an id already present in the table is never overwritten,
// so a downloaded record cannot be reset by a later enumeration.
type Recorder struct {
	logger  *log.Logger
	visited map[models.ID]struct{}
}

// NewRecorder creates a Recorder with an empty playlist visited-set.
func NewRecorder(logger *log.Logger) *Recorder {
	return &Recorder{logger: logger, visited: map[models.ID]struct{}{}}
}

// Reset forgets the playlists seen so far. Call it at the start of each enumeration.
func (r *Recorder) Reset() {
	r.visited = map[models.ID]struct{}{}
}

// Record applies one favorite to table and returns what changed.
func (r *Recorder) Record(table models.UserTrackTable, fav models.Favorite) RecordStats {
	var stats RecordStats
	r.record(table, fav, 0, &stats)
	return stats
}

func (r *Recorder) record(table models.UserTrackTable, fav models.Favorite, depth int, stats *RecordStats) {
	if table.Has(fav.ID) {
		stats.Duplicates++
		return
	}
	if !fav.Streamable {
		stats.Unstreamable++
		return
	}

	switch fav.Kind {
	case models.KindTrack:
		if table.Insert(&models.TrackRecord{ID: fav.ID, Permalink: fav.Permalink}) {
			stats.Inserted++
		}
	case models.KindPlaylist:
		if depth >= MaxPlaylistDepth {
			r.logger.Warn("playlist nested too deeply, skipping", "playlist", fav.ID, "depth", depth)
			stats.Truncated++
			return
		}
		if _, seen := r.visited[fav.ID]; seen {
			r.logger.Debug("playlist already flattened", "playlist", fav.ID)
			stats.Truncated++
			return
		}
		r.visited[fav.ID] = struct{}{}
		stats.Playlists++

		for _, track := range fav.Tracks {
			r.record(table, track, depth+1, stats)
		}
	default:
		r.logger.Debug("unsupported favorite kind", "id", fav.ID, "kind", fav.Kind)
		stats.Unsupported++
	}
}
