package main

import (
	"context"
	"path/filepath"

	"github.com/desertthunder/scsync/internal/formatter"
	"github.com/desertthunder/scsync/internal/repositories"
	"github.com/urfave/cli/v3"
)

// Status reports downloaded and pending tracks for each user.
//
// With --output the report is written to a file; for several users --output names a directory
// holding one {user}_status file per user.
func (r *Runner) Status(ctx context.Context, cmd *cli.Command) error {
	store := r.trackStore()
	users, err := r.users(cmd, store)
	if err != nil {
		return err
	}

	format := cmd.String("format")
	output := cmd.String("output")

	for _, userID := range users {
		table, err := store.Load(userID)
		if err != nil {
			return err
		}
		report := formatter.NewReport(userID, table)

		if output == "" {
			data, err := formatter.Render(report, format)
			if err != nil {
				return err
			}
			if _, err := r.output.Write(data); err != nil {
				return err
			}
			continue
		}

		path := output
		if len(users) > 1 {
			path = filepath.Join(output, userID+"_status"+formatter.Extension(format))
		}
		written, err := formatter.WriteReport(report, format, path)
		if err != nil {
			return err
		}
		r.logger.Info("report written", "user", userID, "path", written)
		r.writePlain("%s Report for %s written to %s\n", r.styles.OK("✓"), userID, written)
	}
	return nil
}

// History lists recorded sync runs, newest first.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	criteria := map[string]any{"limit": cmd.Int("limit")}
	if userID := cmd.String("user"); userID != "" {
		criteria["user_id"] = userID
	}

	sessions, err := repositories.NewSessionRepository(db).List(criteria)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(formatter.NewSessionLines(sessions), cmd.Bool("pretty"))
	}

	r.writePlainHeader("Sync history")
	return formatter.WriteSessions(r.output, sessions)
}
