// Package gitexec wraps the git subcommands wsgc depends on. Every call takes
// an explicit working directory; nothing here changes the process cwd.
package gitexec

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mattjoyce/wsgc/internal/log"
)

// Git invokes the git binary through a Runner.
type Git struct {
	binary string
	runner Runner
	logger *slog.Logger
}

// New returns a Git that runs binary (defaults to "git") via runner (defaults
// to ExecRunner).
func New(binary string, runner Runner) *Git {
	if strings.TrimSpace(binary) == "" {
		binary = "git"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Git{
		binary: binary,
		runner: runner,
		logger: log.WithComponent("git"),
	}
}

// CountObjects runs `git count-objects -v` in dir and returns its stdout.
// Failures are not surfaced: whatever text was produced, possibly none, is
// returned and the caller treats missing fields as zero.
func (g *Git) CountObjects(ctx context.Context, dir string) string {
	out, err := g.runner.Run(ctx, dir, g.binary, "count-objects", "-v")
	if err != nil {
		g.logger.Debug("count-objects failed",
			"dir", dir,
			"exit_code", out.ExitCode,
			"stderr", strings.TrimSpace(out.Stderr),
			"error", err,
		)
	}
	return out.Stdout
}

// CloneOptions describes a reference-assisted single-branch clone.
type CloneOptions struct {
	// Dir is the working directory for the git process.
	Dir       string
	Branch    string
	Reference string
	RemoteURL string
	Dest      string
}

// CloneArgs returns the git arguments for opts.
func CloneArgs(opts CloneOptions) []string {
	args := []string{"clone", "--single-branch"}
	if opts.Branch != "" {
		args = append(args, "-b", opts.Branch)
	}
	args = append(args, "--verbose")
	if opts.Reference != "" {
		args = append(args, "--reference", opts.Reference)
	}
	return append(args, opts.RemoteURL, opts.Dest)
}

// CommandLine renders the clone invocation for progress output.
func (g *Git) CommandLine(opts CloneOptions) string {
	return g.binary + " " + strings.Join(CloneArgs(opts), " ")
}

// Clone runs git clone for opts and returns everything git printed. The error
// reports a failed start or a non-zero exit; callers decide whether it matters.
func (g *Git) Clone(ctx context.Context, opts CloneOptions) (Output, error) {
	if opts.RemoteURL == "" {
		return Output{ExitCode: -1}, fmt.Errorf("clone: remote URL is empty")
	}
	if opts.Dest == "" {
		return Output{ExitCode: -1}, fmt.Errorf("clone: destination is empty")
	}

	out, err := g.runner.Run(ctx, opts.Dir, g.binary, CloneArgs(opts)...)
	if err != nil {
		return out, fmt.Errorf("git clone %s: %w", opts.Dest, err)
	}
	return out, nil
}
