// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// globalFlags are accepted before any command.
//
// Credential flags fall back to the CLIENT_ID, CLIENT_SECRET, REDIRECT_URI and PORT environment variables.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file",
			Value:   "config.toml",
		},
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "Enable debug logging",
		},
		&cli.StringFlag{
			Name:    "client-id",
			Usage:   "SoundCloud app client id",
			Sources: cli.EnvVars("CLIENT_ID"),
		},
		&cli.StringFlag{
			Name:    "client-secret",
			Usage:   "SoundCloud app client secret",
			Sources: cli.EnvVars("CLIENT_SECRET"),
		},
		&cli.StringFlag{
			Name:    "redirect-uri",
			Usage:   "OAuth redirect URI registered with the app",
			Sources: cli.EnvVars("REDIRECT_URI"),
		},
		&cli.IntFlag{
			Name:    "port",
			Usage:   "Port for the callback server",
			Sources: cli.EnvVars("PORT"),
		},
	}
}

func userFlag(usage string) cli.Flag {
	return &cli.StringSliceFlag{
		Name:    "user",
		Aliases: []string{"u"},
		Usage:   usage,
	}
}

// setupCommand handles setup operations for configuration and the history database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write a config file from the default template",
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize the history database and run migrations",
				Action: r.SetupDatabase,
			},
		},
	}
}

// authCommand handles SoundCloud authorization
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage SoundCloud authorization",
		Commands: []*cli.Command{
			{
				Name:  "connect",
				Usage: "Authorize with SoundCloud using OAuth2 and save the token",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "no-browser",
						Usage: "Print the connect URL instead of opening a browser",
					},
				},
				Action: r.AuthConnect,
			},
			{
				Name:   "status",
				Usage:  "Show the account the stored token belongs to",
				Action: r.AuthStatus,
			},
		},
	}
}

// serveCommand runs the callback server and the sync worker
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the OAuth callback server and sync users as they connect",
		Flags: []cli.Flag{
			userFlag("User id to queue at startup (repeatable)"),
			&cli.IntFlag{
				Name:  "queue-size",
				Usage: "Maximum number of users waiting to sync",
				Value: 64,
			},
		},
		Action: r.Serve,
	}
}

// updateCommand enumerates favorites and downloads new tracks
func updateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "update",
		Usage: "Fetch favorites and download new tracks",
		Flags: []cli.Flag{
			userFlag("User id to update (repeatable, default: every known user)"),
		},
		Action: r.Update,
	}
}

// resumeCommand downloads pending tracks without contacting the favorites API
func resumeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "resume",
		Usage: "Download tracks left over from earlier runs",
		Flags: []cli.Flag{
			userFlag("User id to resume (repeatable, default: every known user)"),
		},
		Action: r.Resume,
	}
}

// statusCommand reports on the persisted track tables
func statusCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Report downloaded and pending tracks",
		Flags: []cli.Flag{
			userFlag("User id to report on (repeatable, default: every known user)"),
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Report format: text, markdown, csv or json",
				Value:   "text",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write the report to a file (a directory when reporting on several users)",
			},
		},
		Action: r.Status,
	}
}

// historyCommand lists recorded sync sessions
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List recorded sync runs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "user",
				Usage: "Only show runs for this user id",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of runs to show",
				Value: 20,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output runs as JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Indent JSON output",
			},
		},
		Action: r.History,
	}
}
