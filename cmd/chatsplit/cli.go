package main

import (
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/hpungsan/chatsplit/internal/config"
	"github.com/hpungsan/chatsplit/internal/errors"
	"github.com/hpungsan/chatsplit/internal/logging"
	"github.com/hpungsan/chatsplit/internal/ops"
	"github.com/hpungsan/chatsplit/internal/web"
)

// appEnv carries the dependencies shared by all commands.
// log may be replaced by the --verbose hook before a command runs.
type appEnv struct {
	db  *sql.DB
	cfg *config.Config
	log *zap.Logger
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp(env *appEnv) *cli.App {
	app := &cli.App{
		Name:    "chatsplit",
		Usage:   "Split chat exports into flattened JSON shards",
		Version: Version,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "verbose", Usage: "Enable debug logging"},
		},
		Before: func(c *cli.Context) error {
			if !c.Bool("verbose") {
				return nil
			}
			log, err := logging.New("debug", env.cfg.LogFormat)
			if err != nil {
				return outputError(errors.NewInvalidRequest(err.Error()))
			}
			env.log = log
			return nil
		},
		Commands: []*cli.Command{
			splitCmd(env),
			inspectCmd(env),
			historyCmd(env),
			showCmd(env),
			purgeCmd(env),
			serveCmd(env),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// splitCmd creates the split command.
func splitCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "split",
		Usage: "Flatten an export and write it as at most N shard files",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Usage: "Path to the .json export"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output directory for shard files"},
			&cli.IntFlag{Name: "parts", Aliases: []string{"n"}, Usage: "Maximum number of shard files (default: config max_parts)"},
			&cli.StringFlag{Name: "prefix", Usage: "Shard file name prefix (default: input file stem)"},
		},
		Action: func(c *cli.Context) error {
			parts, err := partsFlag(c)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.Split(c.Context, env.db, env.log, env.cfg, ops.ProcessInput{
				InputPath: c.String("input"),
				OutputDir: c.String("output"),
				MaxParts:  parts,
				Prefix:    c.String("prefix"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// inspectCmd creates the inspect command.
func inspectCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "inspect",
		Usage: "Flatten an export without writing; print counts and the shard plan",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Usage: "Path to the .json export"},
			&cli.IntFlag{Name: "parts", Aliases: []string{"n"}, Usage: "Maximum number of shard files for the plan"},
		},
		Action: func(c *cli.Context) error {
			parts, err := partsFlag(c)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.Inspect(c.Context, env.log, env.cfg, ops.InspectInput{
				InputPath: c.String("input"),
				MaxParts:  parts,
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// historyCmd creates the history command.
func historyCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List recorded runs, newest first",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultHistoryLimit, Usage: "Maximum runs to return"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Usage: "Number of runs to skip"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.History(c.Context, env.db, ops.HistoryInput{
				Limit:  c.Int("limit"),
				Offset: c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// showCmd creates the show command.
func showCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show a recorded run, or one of its shards with --shard",
		ArgsUsage: "<run-id>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "shard", Aliases: []string{"s"}, Usage: "1-based shard index to read back"},
		},
		Action: func(c *cli.Context) error {
			id := c.Args().First()

			if c.IsSet("shard") {
				output, err := ops.ReadShard(c.Context, env.db, ops.ReadShardInput{RunID: id, Index: c.Int("shard")})
				if err != nil {
					return outputError(err)
				}
				return outputJSON(output)
			}

			output, err := ops.ShowRun(c.Context, env.db, id)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// purgeCmd creates the purge command.
func purgeCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "purge",
		Usage: "Delete history entries (shard files are kept)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "older-than", Usage: "Only purge runs recorded more than this long ago (e.g., 7d)"},
		},
		Action: func(c *cli.Context) error {
			input := ops.PurgeInput{}

			if olderThan := c.String("older-than"); olderThan != "" {
				days, err := ops.ParseAge(olderThan)
				if err != nil {
					return outputError(err)
				}
				input.OlderThanDays = days
			}

			output, err := ops.Purge(c.Context, env.db, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the read-only run viewer",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: web.DefaultBind, Usage: "Address to bind"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Value: web.DefaultPort, Usage: "Port to listen on"},
		},
		Action: func(c *cli.Context) error {
			port := c.Int("port")
			if port < 1 || port > 65535 {
				return outputError(errors.NewInvalidRequest("port must be between 1 and 65535"))
			}

			srv, err := web.NewServer(env.db, env.cfg, env.log, Version, c.String("bind"), port)
			if err != nil {
				return outputError(errors.NewInternal(err))
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := web.Run(ctx, srv, env.log); err != nil {
				return outputError(errors.NewIO("serve", err))
			}
			return nil
		},
	}
}

// Helper functions

// partsFlag reads --parts; unset means 0 (use config).
func partsFlag(c *cli.Context) (int, error) {
	if !c.IsSet("parts") {
		return 0, nil
	}
	parts := c.Int("parts")
	if parts < 1 {
		return 0, errors.NewInvalidRequest("--parts must be at least 1")
	}
	return parts, nil
}

// outputJSON writes JSON output to stdout.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var sErr *errors.SplitError
	if stderrors.As(err, &sErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", sErr.Code, sErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}
