package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/chatsplit/internal/config"
	"github.com/hpungsan/chatsplit/internal/db"
	"github.com/hpungsan/chatsplit/internal/logging"
	"github.com/hpungsan/chatsplit/internal/mcp"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"split": true, "inspect": true,
	"history": true, "show": true, "purge": true,
	"serve": true, "help": true,
}

// firstCommand returns the first argument that is not a flag, or "".
func firstCommand(args []string) string {
	for _, arg := range args {
		if !strings.HasPrefix(arg, "-") {
			return arg
		}
	}
	return ""
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion(args []string) bool {
	for _, arg := range args {
		switch arg {
		case "--help", "-h", "--version", "-v":
			return true
		}
	}
	return firstCommand(args) == "help"
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode(args []string) bool {
	if len(args) == 0 {
		return false // No args → MCP server
	}
	return cliCommands[firstCommand(args)] || isHelpOrVersion(args)
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
  chatsplit

  Split chat exports into flattened JSON shards

  Usage: chatsplit <command> [options]
         chatsplit --help

  MCP server mode requires piped input.`)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

func main() {
	args := os.Args[1:]

	// No args + interactive terminal → show banner and exit
	if len(args) == 0 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion(args) {
		app := newCLIApp(&appEnv{cfg: config.DefaultConfig()})
		if err := app.Run(os.Args); err != nil {
			fatalf("%v", err)
		}
		return
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fatalf("could not determine home directory: %v", err)
	}
	baseDir := filepath.Join(homeDir, config.RepoDirName)

	cwd, err := os.Getwd()
	if err != nil {
		fatalf("could not determine working directory: %v", err)
	}

	cfg, err := config.LoadWithRepo(baseDir, cwd)
	if err != nil {
		fatalf("failed to load config: %v", err)
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = log.Sync() }()

	if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		log.Warn("ignoring unknown disabled_tools entries", zap.Strings("tools", unknown))
	}

	database, err := db.Init(baseDir)
	if err != nil {
		fatalf("failed to initialize database: %v", err)
	}
	defer database.Close()
	db.ConfigurePool(database, cfg)

	// CLI mode: known subcommand
	if isCLIMode(args) {
		app := newCLIApp(&appEnv{db: database, cfg: cfg, log: log})
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintln(os.Stderr, err)
			database.Close()
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(args) > 0 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", args[0])
		fmt.Fprintf(os.Stderr, "Run 'chatsplit --help' for usage.\n")
		database.Close()
		os.Exit(1)
	}

	// MCP server mode (default)
	if err := mcp.Run(database, cfg, log, Version); err != nil {
		log.Error("mcp server stopped", zap.Error(err))
		database.Close()
		os.Exit(1)
	}
}
