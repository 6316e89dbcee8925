// package formatter renders sync status reports to various formats (CSV, Markdown, JSON, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/scsync/internal/models"
	"github.com/desertthunder/scsync/internal/shared"
)

// Format names accepted by [Render].
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatCSV      = "csv"
	FormatJSON     = "json"
)

// TrackLine is one row of a [Report].
type TrackLine struct {
	ID         models.ID `json:"id"`
	Permalink  string    `json:"permalink"`
	Downloaded bool      `json:"downloaded"`
	File       string    `json:"file"`
}

// Report summarizes a user's track table.
type Report struct {
	UserID     string      `json:"user_id"`
	Total      int         `json:"total"`
	Downloaded int         `json:"downloaded"`
	Pending    int         `json:"pending"`
	Tracks     []TrackLine `json:"tracks"`
}

// NewReport builds a report over table, listing tracks in id order.
func NewReport(userID string, table models.UserTrackTable) *Report {
	total, downloaded := table.Counts()
	report := &Report{
		UserID:     userID,
		Total:      total,
		Downloaded: downloaded,
		Pending:    total - downloaded,
		Tracks:     make([]TrackLine, 0, total),
	}
	for _, rec := range table.Records() {
		report.Tracks = append(report.Tracks, TrackLine{
			ID:         rec.ID,
			Permalink:  rec.Permalink,
			Downloaded: rec.Downloaded,
			File:       rec.SafeFileName() + ".mp3",
		})
	}
	return report
}

// ExportToCSV converts a Report to CSV format with columns: ID, Permalink, Downloaded, File
func ExportToCSV(report *Report) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Permalink", "Downloaded", "File"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, track := range report.Tracks {
		record := []string{
			track.ID.String(),
			track.Permalink,
			strconv.FormatBool(track.Downloaded),
			track.File,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a Report to Markdown with separate pending and downloaded sections
func ExportToMarkdown(report *Report) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# Favorites for user %s\n\n", report.UserID))
	buf.WriteString(fmt.Sprintf("**Tracks**: %d\n", report.Total))
	buf.WriteString(fmt.Sprintf("**Downloaded**: %d\n", report.Downloaded))
	buf.WriteString(fmt.Sprintf("**Pending**: %d\n\n", report.Pending))

	section := func(title string, downloaded bool) {
		buf.WriteString(fmt.Sprintf("## %s\n\n", title))
		n := 0
		for _, track := range report.Tracks {
			if track.Downloaded != downloaded {
				continue
			}
			n++
			buf.WriteString(fmt.Sprintf("%d. `%s` %s\n", n, track.ID, track.Permalink))
		}
		if n == 0 {
			buf.WriteString("_None_\n")
		}
		buf.WriteString("\n")
	}
	section("Pending", false)
	section("Downloaded", true)

	return buf.Bytes(), nil
}

// ExportToText converts a Report to plain text format
func ExportToText(report *Report) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("User: %s\n", report.UserID))
	buf.WriteString(fmt.Sprintf("Tracks: %d (%d downloaded, %d pending)\n\n", report.Total, report.Downloaded, report.Pending))

	for _, track := range report.Tracks {
		mark := " "
		if track.Downloaded {
			mark = "x"
		}
		buf.WriteString(fmt.Sprintf("[%s] %s %s\n", mark, track.ID, track.Permalink))
	}

	return buf.Bytes(), nil
}

// ExportToJSON renders the full report as indented JSON.
func ExportToJSON(report *Report) ([]byte, error) {
	return shared.MarshalJSON(report, true)
}

// Render dispatches to the exporter for format.
func Render(report *Report, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case "", FormatText:
		return ExportToText(report)
	case FormatMarkdown, "md":
		return ExportToMarkdown(report)
	case FormatCSV:
		return ExportToCSV(report)
	case FormatJSON:
		return ExportToJSON(report)
	default:
		return nil, fmt.Errorf("%w: unknown format %q (use text, markdown, csv or json)", shared.ErrInvalidFlag, format)
	}
}

// Extension returns the file extension used for format.
func Extension(format string) string {
	switch strings.ToLower(format) {
	case FormatMarkdown, "md":
		return ".md"
	case FormatCSV:
		return ".csv"
	case FormatJSON:
		return ".json"
	default:
		return ".txt"
	}
}

// WriteReport renders report and writes it to path.
//
// Defaults to {user}_status{ext} in the working directory. Returns the path written.
func WriteReport(report *Report, format, path string) (string, error) {
	data, err := Render(report, format)
	if err != nil {
		return "", err
	}

	if path == "" {
		path = report.UserID + "_status" + Extension(format)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}

// SessionLine is the JSON shape of one recorded sync run.
type SessionLine struct {
	ID          string     `json:"id"`
	Sequence    int        `json:"sequence"`
	UserID      string     `json:"user_id"`
	Mode        string     `json:"mode"`
	Status      string     `json:"status"`
	Pages       int        `json:"pages"`
	Recorded    int        `json:"recorded"`
	Downloaded  int        `json:"downloaded"`
	Skipped     int        `json:"skipped"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewSessionLines converts sessions for JSON output, keeping their order.
func NewSessionLines(sessions []*models.SyncSession) []SessionLine {
	lines := make([]SessionLine, 0, len(sessions))
	for _, s := range sessions {
		lines = append(lines, SessionLine{
			ID:          s.ID(),
			Sequence:    s.Sequence(),
			UserID:      s.UserID(),
			Mode:        string(s.Mode()),
			Status:      string(s.Status()),
			Pages:       s.Pages(),
			Recorded:    s.Recorded(),
			Downloaded:  s.Downloaded(),
			Skipped:     s.Skipped(),
			Error:       s.ErrorMessage(),
			StartedAt:   s.StartedAt(),
			CompletedAt: s.CompletedAt(),
		})
	}
	return lines
}

// WriteSessions prints sync history as an aligned table.
func WriteSessions(w io.Writer, sessions []*models.SyncSession) error {
	if len(sessions) == 0 {
		_, err := fmt.Fprintln(w, "No sync sessions recorded")
		return err
	}

	row := "%-5s %-12s %-7s %-10s %6s %8s %10s %7s  %s\n"
	if _, err := fmt.Fprintf(w, row, "#", "USER", "MODE", "STATUS", "PAGES", "RECORDED", "DOWNLOADED", "SKIPPED", "STARTED"); err != nil {
		return err
	}

	for _, s := range sessions {
		started := s.StartedAt().Local().Format(time.DateTime)
		if _, err := fmt.Fprintf(w, row,
			strconv.Itoa(s.Sequence()),
			s.UserID(),
			s.Mode(),
			s.Status(),
			strconv.Itoa(s.Pages()),
			strconv.Itoa(s.Recorded()),
			strconv.Itoa(s.Downloaded()),
			strconv.Itoa(s.Skipped()),
			started,
		); err != nil {
			return err
		}
		if msg := s.ErrorMessage(); msg != "" {
			if _, err := fmt.Fprintf(w, "      error: %s\n", msg); err != nil {
				return err
			}
		}
	}
	return nil
}
