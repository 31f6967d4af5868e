// Package report renders scan progress and the end-of-run summary for people
// (styled text) or machines (JSON).
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/mattjoyce/wsgc/internal/gc"
	"github.com/mattjoyce/wsgc/internal/workspace"
)

// Reporter implements gc.Observer. In text mode lines are written as checks
// complete; in JSON mode nothing is written until Finish.
type Reporter struct {
	out      io.Writer
	jsonMode bool
	theme    Theme
	now      func() time.Time
}

// New returns a text reporter writing to w.
func New(w io.Writer) *Reporter {
	return &Reporter{out: w, theme: newTheme(w), now: time.Now}
}

// NewJSON returns a reporter that only writes the final summary, as JSON.
func NewJSON(w io.Writer) *Reporter {
	r := New(w)
	r.jsonMode = true
	return r
}

// Line is the diagnostic sentence for one check.
func Line(c gc.Check) string {
	not := "NOT "
	if c.Dirty {
		not = ""
	}
	return fmt.Sprintf("'git gc' is %srequired for workspace %s: count = %d, packs = %d",
		not, c.Workspace.Dir, c.Count, c.Packs)
}

// Advice is the closing hint printed when dirty workspaces were left alone.
func Advice(dirty []workspace.Workspace) string {
	dirs := make([]string, 0, len(dirty))
	for _, ws := range dirty {
		dirs = append(dirs, ws.Dir)
	}
	return fmt.Sprintf("Please turn on the '--clean' flag to clean the dirty workspaces: [%s]", strings.Join(dirs, " "))
}

func (r *Reporter) Checked(c gc.Check) {
	if r.jsonMode {
		return
	}
	style := r.theme.NotRequired
	if c.Dirty {
		style = r.theme.Required
	}
	line := style.Render(Line(c))
	if delta, ok := c.CountDelta(); ok {
		line += " " + r.theme.Dim.Render(r.deltaText(delta, c.Previous.CheckedAt))
	}
	fmt.Fprintln(r.out, line)
}

func (r *Reporter) deltaText(delta int64, since time.Time) string {
	sign := "+"
	if delta < 0 {
		sign = "-"
		delta = -delta
	}
	return fmt.Sprintf("(count %s%s since %s)", sign, humanize.Comma(delta), humanize.RelTime(since, r.now(), "ago", "from now"))
}

func (r *Reporter) Resetting(ws workspace.Workspace, cloneCommand string) {
	if r.jsonMode {
		return
	}
	fmt.Fprintln(r.out, r.theme.Progress.Render(fmt.Sprintf("Cleaning %s ...", ws.Dir)))
	fmt.Fprintln(r.out, r.theme.Dim.Render(fmt.Sprintf("removing %s", ws.Dir)))
	fmt.Fprintln(r.out, r.theme.Dim.Render(cloneCommand))
}

func (r *Reporter) Reset(c gc.Check) {
	if r.jsonMode {
		return
	}
	if out := strings.TrimRight(c.CloneOutput, "\n"); out != "" {
		fmt.Fprintln(r.out, out)
	}
	if c.RemoveErr != nil {
		fmt.Fprintln(r.out, r.theme.Warn.Render(fmt.Sprintf("warning: removing %s: %v", c.Workspace.Dir, c.RemoveErr)))
	}
	if c.CloneErr != nil {
		fmt.Fprintln(r.out, r.theme.Warn.Render(fmt.Sprintf("warning: %v", c.CloneErr)))
	}
	fmt.Fprintln(r.out, r.theme.Progress.Render("... done"))
}

// Finish writes the end-of-run output.
func (r *Reporter) Finish(res gc.Result) error {
	if r.jsonMode {
		enc := json.NewEncoder(r.out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(Summarize(res)); err != nil {
			return fmt.Errorf("encode json report: %w", err)
		}
		return nil
	}
	if res.NeedsAttention() {
		fmt.Fprintln(r.out, r.theme.Advice.Render(Advice(res.Dirty)))
	}
	return nil
}

// Summary is the JSON form of a scan result.
type Summary struct {
	RunID      string             `json:"run_id"`
	Clean      bool               `json:"clean"`
	Workspaces []WorkspaceSummary `json:"workspaces"`
	Dirty      []string           `json:"dirty"`
	Reset      int                `json:"reset"`
	Advice     string             `json:"advice,omitempty"`
}

type WorkspaceSummary struct {
	Workspace   string `json:"workspace"`
	State       string `json:"state"`
	Count       int64  `json:"count"`
	Packs       int64  `json:"packs"`
	SizePackKiB int64  `json:"size_pack_kib"`
	SizePack    string `json:"size_pack"`
	CountDelta  *int64 `json:"count_delta,omitempty"`
	CloneError  string `json:"clone_error,omitempty"`
}

func Summarize(res gc.Result) Summary {
	s := Summary{
		RunID:      res.RunID,
		Clean:      res.Clean,
		Workspaces: make([]WorkspaceSummary, 0, len(res.Checks)),
		Dirty:      make([]string, 0, len(res.Dirty)),
		Reset:      res.ResetCount(),
	}
	for _, c := range res.Checks {
		ws := WorkspaceSummary{
			Workspace:   c.Workspace.Dir,
			State:       string(c.State()),
			Count:       c.Count,
			Packs:       c.Packs,
			SizePackKiB: c.SizePackKiB,
			SizePack:    humanize.IBytes(uint64(max(c.SizePackKiB, 0)) * 1024),
		}
		if delta, ok := c.CountDelta(); ok {
			ws.CountDelta = &delta
		}
		if c.CloneErr != nil {
			ws.CloneError = c.CloneErr.Error()
		}
		s.Workspaces = append(s.Workspaces, ws)
	}
	for _, ws := range res.Dirty {
		s.Dirty = append(s.Dirty, ws.Dir)
	}
	if res.NeedsAttention() {
		s.Advice = Advice(res.Dirty)
	}
	return s
}
