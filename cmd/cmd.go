package main

import (
	"github.com/urfave/cli/v3"
)

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

func prettyFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print JSON output",
			Value: true,
		},
	}
}

// migrateCommand runs a library migration between two providers
func migrateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Copy artists, albums, liked tracks and playlists from one catalog to another",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:    "source",
				Aliases: []string{"s"},
				Usage:   "Source provider (spotify or youtube)",
			},
			&cli.StringFlag{
				Name:    "target",
				Aliases: []string{"t"},
				Usage:   "Target provider (spotify or youtube)",
			},
			&cli.StringSliceFlag{
				Name:    "pass",
				Aliases: []string{"p"},
				Usage:   "Pass to run (artists, albums, liked_tracks, playlists); repeatable",
			},
			&cli.StringSliceFlag{
				Name:  "album-types",
				Usage: "Album types to migrate, e.g. Album,EP",
			},
			&cli.StringFlag{
				Name:  "scorer",
				Usage: "Similarity scorer (token_sort, ratio or jaro_winkler)",
			},
			&cli.FloatFlag{
				Name:  "min-score",
				Usage: "Reject multi-candidate matches scoring below this",
			},
			&cli.IntFlag{Name: "limit-artists", Usage: "Process at most N artists"},
			&cli.IntFlag{Name: "limit-albums", Usage: "Process at most N albums"},
			&cli.IntFlag{Name: "limit-liked-tracks", Usage: "Process at most N liked tracks"},
			&cli.IntFlag{Name: "limit-playlists", Usage: "Process at most N playlists"},
			&cli.BoolFlag{
				Name:    "dry-run",
				Aliases: []string{"n"},
				Usage:   "Resolve and check membership without writing to the target",
			},
			&cli.FloatFlag{
				Name:  "rps",
				Usage: "Requests per second sent to rate-limited providers",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Print a full report instead of the summary (text, md, csv, yaml, json)",
			},
			&cli.IntFlag{
				Name:  "max-issues",
				Usage: "Unresolved or failed items listed in the summary",
				Value: 20,
			},
			&cli.BoolFlag{
				Name:  "no-history",
				Usage: "Do not record the run in the history database",
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "Hide progress bars",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
		},
		Action: r.Migrate,
	}
}

// resolveCommand looks one entity up in the target catalog
func resolveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "resolve",
		Usage: "Show how an artist, album or track resolves against the target catalog",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "name"},
		},
		Flags: append([]cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:    "target",
				Aliases: []string{"t"},
				Usage:   "Target provider",
			},
			&cli.StringFlag{
				Name:    "kind",
				Aliases: []string{"k"},
				Usage:   "Entity kind (artist, album or track)",
				Value:   "track",
			},
			&cli.StringSliceFlag{
				Name:    "artist",
				Aliases: []string{"a"},
				Usage:   "Credited artist; repeatable, first is primary",
			},
			&cli.StringFlag{
				Name:  "album",
				Usage: "Album name (tracks only)",
			},
			&cli.StringFlag{
				Name:  "scorer",
				Usage: "Similarity scorer (token_sort, ratio or jaro_winkler)",
			},
			&cli.FloatFlag{
				Name:  "min-score",
				Usage: "Reject multi-candidate matches scoring below this",
			},
		}, prettyFlags()...),
		Action: r.Resolve,
	}
}

// exportCommand snapshots a provider's library to disk
func exportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export a library snapshot with one file per playlist",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:  "provider",
				Usage: "Provider to export (defaults to migrate.source)",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format (text, md, csv, yaml, json)",
				Value:   "json",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output directory (default: <provider>_export_<timestamp>)",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Concurrent playlist fetches (max 10)",
				Value: 5,
			},
			&cli.FloatFlag{
				Name:  "rate-limit",
				Usage: "Playlist fetches per second",
				Value: 5,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the export manifest as JSON",
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "Hide progress bars",
			},
		},
		Action: r.Export,
	}
}

// historyCommand inspects recorded migration runs
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Inspect recorded migration runs",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recorded runs, newest first",
				Flags: append([]cli.Flag{
					configFlag(),
					&cli.StringFlag{Name: "source", Usage: "Only runs from this provider"},
					&cli.StringFlag{Name: "target", Usage: "Only runs to this provider"},
					&cli.StringFlag{Name: "status", Usage: "Only runs with this status (running, completed, failed)"},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of runs",
						Value: 20,
					},
				}, prettyFlags()...),
				Action: r.HistoryList,
			},
			{
				Name:  "show",
				Usage: "Print the report of a run (latest, sequence number or id)",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "run", Value: "latest"},
				},
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Report format (text, md, csv, yaml, json)",
						Value:   "text",
					},
				},
				Action: r.HistoryShow,
			},
			{
				Name:  "delete",
				Usage: "Remove a run from the history",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "run"},
				},
				Flags:  []cli.Flag{configFlag()},
				Action: r.HistoryDelete,
			},
		},
	}
}

// authCommand handles provider authentication
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage provider authentication",
		Commands: []*cli.Command{
			{
				Name:  "spotify",
				Usage: "Authorize with Spotify through the browser and save tokens",
				Flags: []cli.Flag{
					configFlag(),
					&cli.IntFlag{
						Name:  "port",
						Usage: "Callback server port (defaults to server.port)",
					},
					&cli.BoolFlag{
						Name:  "no-browser",
						Usage: "Print the authorization URL instead of opening a browser",
					},
				},
				Action: r.AuthSpotify,
			},
			{
				Name:   "status",
				Usage:  "Check which providers are configured",
				Flags:  []cli.Flag{configFlag()},
				Action: r.AuthStatus,
			},
		},
	}
}

// setupCommand initializes config, database and provider credentials
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Initialize configuration, database and credentials",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write an example config file",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupConfig,
			},
			{
				Name:  "database",
				Usage: "Create the history database and run migrations",
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Revert the most recent migration instead",
					},
				},
				Action: r.SetupDatabase,
			},
			{
				Name:  "youtube",
				Usage: "Configure YouTube Music authentication from a browser cURL command",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:  "curl",
						Usage: "cURL command copied from browser DevTools",
					},
					&cli.StringFlag{
						Name:  "curl-file",
						Usage: "Path to a file containing the cURL command",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output path for the auth file (default: ~/.portable/browser.json)",
					},
				},
				Action: r.SetupYouTube,
			},
		},
	}
}
