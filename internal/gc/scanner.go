// Package gc walks CI workspaces, flags object stores that have accumulated
// too much garbage, and optionally resets them by deleting and re-cloning.
//
// Workspaces are processed one at a time in sorted order. Every git process
// gets the directory it operates on explicitly; the scanner never changes the
// process working directory.
//
// Failure handling per workspace:
//   - unreadable or empty count-objects output counts as zero objects
//   - a failed delete is logged and the clone still runs
//   - a failed clone is logged and recorded, and the scan moves on
//
// Only a parent directory that cannot be listed aborts a run.
package gc

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mattjoyce/wsgc/internal/gitexec"
	"github.com/mattjoyce/wsgc/internal/history"
	"github.com/mattjoyce/wsgc/internal/log"
	"github.com/mattjoyce/wsgc/internal/objects"
	"github.com/mattjoyce/wsgc/internal/workspace"
)

// Inspector returns the raw `git count-objects -v` output for dir.
type Inspector interface {
	CountObjects(ctx context.Context, dir string) string
}

// Cloner re-creates a workspace from the remote.
type Cloner interface {
	Clone(ctx context.Context, opts gitexec.CloneOptions) (gitexec.Output, error)
	CommandLine(opts gitexec.CloneOptions) string
}

// Recorder persists scan history. All methods are best effort from the
// scanner's point of view.
type Recorder interface {
	BeginRun(ctx context.Context, run history.Run) error
	FinishRun(ctx context.Context, run history.Run) error
	RecordCheck(ctx context.Context, rec history.Record) error
	Last(ctx context.Context, workspace string) (history.Record, bool, error)
}

// Observer is told about progress as it happens.
type Observer interface {
	Checked(c Check)
	Resetting(ws workspace.Workspace, cloneCommand string)
	Reset(c Check)
}

// Options is the per-run configuration. It is fixed once the run starts.
type Options struct {
	Clean      bool
	Thresholds Thresholds
	Branch     string
	Reference  string
	RemoteURL  string
}

// Scanner runs one pass over all workspaces.
type Scanner struct {
	workspaces workspace.Manager
	inspector  Inspector
	cloner     Cloner
	recorder   Recorder
	observer   Observer
	opts       Options
	logger     *slog.Logger
}

// NewScanner wires a scanner. recorder and observer may be nil.
func NewScanner(ws workspace.Manager, inspector Inspector, cloner Cloner, recorder Recorder, observer Observer, opts Options) *Scanner {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Scanner{
		workspaces: ws,
		inspector:  inspector,
		cloner:     cloner,
		recorder:   recorder,
		observer:   observer,
		opts:       opts,
		logger:     log.WithComponent("scan"),
	}
}

// Run inspects every workspace and resets dirty ones when Options.Clean is
// set. The returned error is non-nil only when discovery fails or ctx is
// cancelled; in the latter case the partial result is returned too.
func (s *Scanner) Run(ctx context.Context) (Result, error) {
	res := Result{RunID: history.NewRunID(), Clean: s.opts.Clean}
	logger := s.logger.With("run_id", res.RunID)

	found, err := s.workspaces.Discover(ctx)
	if err != nil {
		return res, fmt.Errorf("discover workspaces in %s: %w", s.workspaces.ParentDir(), err)
	}
	logger.Info("scan started",
		"parent_dir", s.workspaces.ParentDir(),
		"workspaces", len(found),
		"clean", s.opts.Clean,
		"max_count", s.opts.Thresholds.MaxCount,
		"max_packs", s.opts.Thresholds.MaxPacks,
	)

	recorder := s.recorder
	run := history.Run{
		ID:        res.RunID,
		ParentDir: s.workspaces.ParentDir(),
		Clean:     s.opts.Clean,
		MaxCount:  s.opts.Thresholds.MaxCount,
		MaxPacks:  s.opts.Thresholds.MaxPacks,
	}
	if recorder != nil {
		if err := recorder.BeginRun(ctx, run); err != nil {
			logger.Warn("history disabled for this run", "error", err)
			recorder = nil
		}
	}

	for _, ws := range found {
		if err := ctx.Err(); err != nil {
			logger.Warn("scan interrupted", "error", err, "checked", len(res.Checks))
			return res, err
		}

		check := s.inspect(ctx, ws, recorder)
		s.observer.Checked(check)

		if check.Dirty {
			res.Dirty = append(res.Dirty, ws)
			if s.opts.Clean {
				s.reset(ctx, &check)
				s.observer.Reset(check)
			}
		}

		if recorder != nil {
			if err := recorder.RecordCheck(ctx, check.record(res.RunID)); err != nil {
				logger.Warn("failed to record workspace check", "workspace", ws.Dir, "error", err)
			}
		}
		res.Checks = append(res.Checks, check)
	}

	if recorder != nil {
		run.Workspaces = len(res.Checks)
		run.Dirty = len(res.Dirty)
		run.Reset = res.ResetCount()
		if err := recorder.FinishRun(ctx, run); err != nil {
			logger.Warn("failed to finish history run", "error", err)
		}
	}

	logger.Info("scan finished",
		"workspaces", len(res.Checks),
		"dirty", len(res.Dirty),
		"reset", res.ResetCount(),
	)
	return res, nil
}

func (s *Scanner) inspect(ctx context.Context, ws workspace.Workspace, recorder Recorder) Check {
	out := s.inspector.CountObjects(ctx, ws.Dir)
	counts := objects.Parse(out)
	verdict := Evaluate(counts, s.opts.Thresholds)

	check := Check{
		Workspace:   ws,
		Counts:      counts,
		Count:       verdict.Count,
		Packs:       verdict.Packs,
		SizePackKiB: counts.SizePackKiB(),
		Dirty:       verdict.Dirty,
		Digest:      history.Digest(out),
	}

	if recorder != nil {
		prev, ok, err := recorder.Last(ctx, ws.Dir)
		if err != nil {
			s.logger.Debug("history lookup failed", "workspace", ws.Dir, "error", err)
		} else if ok {
			check.Previous = &prev
		}
	}

	log.WithWorkspace(ws.Dir).Debug("workspace inspected",
		"count", check.Count,
		"packs", check.Packs,
		"dirty", check.Dirty,
		"fields", len(counts),
	)
	return check
}

// reset deletes the workspace and clones it again from the parent directory.
func (s *Scanner) reset(ctx context.Context, check *Check) {
	ws := check.Workspace
	logger := log.WithWorkspace(ws.Dir)

	opts := gitexec.CloneOptions{
		Dir:       s.workspaces.ParentDir(),
		Branch:    s.opts.Branch,
		Reference: s.opts.Reference,
		RemoteURL: s.opts.RemoteURL,
		Dest:      ws.Dir,
	}
	s.observer.Resetting(ws, s.cloner.CommandLine(opts))

	if err := s.workspaces.Remove(ctx, ws); err != nil {
		logger.Warn("workspace removal incomplete, cloning anyway", "error", err)
		check.RemoveErr = err
	}

	out, err := s.cloner.Clone(ctx, opts)
	check.Reset = true
	check.CloneOutput = out.Combined()
	if err != nil {
		logger.Warn("clone failed", "exit_code", out.ExitCode, "error", err)
		check.CloneErr = err
		return
	}
	logger.Info("workspace reset", "branch", opts.Branch)
}

type nopObserver struct{}

func (nopObserver) Checked(Check) {}
func (nopObserver) Resetting(workspace.Workspace, string) {}
func (nopObserver) Reset(Check) {}
