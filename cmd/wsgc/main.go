package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattjoyce/wsgc/internal/config"
	"github.com/mattjoyce/wsgc/internal/gc"
	"github.com/mattjoyce/wsgc/internal/gitexec"
	"github.com/mattjoyce/wsgc/internal/history"
	"github.com/mattjoyce/wsgc/internal/lock"
	"github.com/mattjoyce/wsgc/internal/log"
	"github.com/mattjoyce/wsgc/internal/report"
	"github.com/mattjoyce/wsgc/internal/storage"
	"github.com/mattjoyce/wsgc/internal/workspace"
)

const (
	exitOK    = 0
	exitFatal = 1
	exitUsage = 2
)

func main() {
	os.Exit(runCLI(os.Args[1:]))
}

type options struct {
	clean      bool
	maxCount   int64
	maxPacks   int64
	configPath string
	logLevel   string
	jsonOut    bool
	version    bool
}

func runCLI(args []string) int {
	if len(args) > 0 && args[0] == "version" {
		return runVersion(args[1:])
	}

	fs := flag.NewFlagSet("wsgc", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts options
	fs.BoolVar(&opts.clean, "clean", false, "Delete and re-clone workspaces that need 'git gc'")
	fs.Int64Var(&opts.maxCount, "max_count", config.DefaultMaxCount, "Loose object count at which a workspace needs 'git gc'")
	fs.Int64Var(&opts.maxPacks, "max_packs", config.DefaultMaxPacks, "Pack count at which a workspace needs 'git gc'")
	fs.StringVar(&opts.configPath, "config", "", "Path to configuration file or directory")
	fs.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.BoolVar(&opts.jsonOut, "json", false, "Print the run summary as JSON")
	fs.BoolVar(&opts.version, "version", false, "Show version information")
	fs.Usage = func() { printUsage(fs) }

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "Unexpected arguments: %v\n\n", fs.Args())
		printUsage(fs)
		return exitUsage
	}
	if opts.version {
		return printVersion(opts.jsonOut)
	}

	cfg, err := config.Resolve(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return exitFatal
	}
	applyFlags(fs, cfg, opts)

	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runScan(ctx, cfg, opts, os.Stdout)
}

// applyFlags copies flags given on the command line over the loaded config.
// Flags left at their defaults do not mask config file values.
func applyFlags(fs *flag.FlagSet, cfg *config.Config, opts options) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "max_count":
			cfg.Thresholds.MaxCount = opts.maxCount
		case "max_packs":
			cfg.Thresholds.MaxPacks = opts.maxPacks
		case "log-level":
			cfg.Service.LogLevel = opts.logLevel
		}
	})
}

func runScan(ctx context.Context, cfg *config.Config, opts options, stdout io.Writer) int {
	logger := log.WithComponent("main")
	logger.Info("wsgc starting",
		"version", version,
		"config", cfg.SourceFile,
		"parent_dir", cfg.Workspace.ParentDir,
		"clean", opts.clean,
	)

	runLock, err := lock.Acquire(cfg.State.LockPath)
	if err != nil {
		logger.Error("failed to acquire run lock", "path", cfg.State.LockPath, "error", err)
		fmt.Fprintf(os.Stderr, "Failed to acquire run lock: %v\n", err)
		return exitFatal
	}
	defer runLock.Release()

	mgr, err := workspace.NewFSManager(cfg.Workspace.ParentDir, cfg.Workspace.Pattern)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize workspace manager: %v\n", err)
		return exitFatal
	}

	var recorder gc.Recorder
	if cfg.State.HistoryPath != "" {
		db, err := storage.OpenSQLite(ctx, cfg.State.HistoryPath)
		if err != nil {
			logger.Error("failed to open scan history", "path", cfg.State.HistoryPath, "error", err)
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return exitFatal
		}
		defer db.Close()
		recorder = history.NewStore(db)
		logger.Debug("scan history opened", "path", cfg.State.HistoryPath)
	}

	reporter := report.New(stdout)
	if opts.jsonOut {
		reporter = report.NewJSON(stdout)
	}

	git := gitexec.New(cfg.Git.Binary, nil)
	scanner := gc.NewScanner(mgr, git, git, recorder, reporter, gc.Options{
		Clean: opts.clean,
		Thresholds: gc.Thresholds{
			MaxCount: cfg.Thresholds.MaxCount,
			MaxPacks: cfg.Thresholds.MaxPacks,
		},
		Branch:    cfg.Git.Branch,
		Reference: cfg.Git.Reference,
		RemoteURL: cfg.Git.RemoteURL,
	})

	res, err := scanner.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "Scan interrupted after %d workspace(s)\n", len(res.Checks))
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return exitFatal
	}

	if err := reporter.Finish(res); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write report: %v\n", err)
		return exitFatal
	}
	return exitOK
}

func runVersion(args []string) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output version metadata as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return exitUsage
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(os.Stderr, "Usage: wsgc version [--json]")
		return exitUsage
	}
	return printVersion(*jsonOut)
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprint(os.Stderr, `wsgc - garbage checker for CI git workspaces

Usage:
  wsgc [flags]
  wsgc version [--json]

Scans every directory under the workspace parent whose name matches the
configured pattern, reports whether 'git gc' is required, and with --clean
deletes and re-clones the workspaces that need it.

Flags:
`)
	fs.PrintDefaults()
	fmt.Fprint(os.Stderr, `
Configuration is read from --config, $WSGC_CONFIG, ~/.config/wsgc/config.yaml
or /etc/wsgc/config.yaml, in that order. Flags given on the command line
override the configuration file.
`)
}
