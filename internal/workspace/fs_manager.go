package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// fsManager discovers workspaces on local disk.
type fsManager struct {
	parentDir string
	pattern   string
}

var _ Manager = (*fsManager)(nil)

// NewFSManager returns a Manager for directories under parentDir whose names
// match pattern. An empty pattern means DefaultPattern.
func NewFSManager(parentDir, pattern string) (*fsManager, error) {
	trimmed := strings.TrimSpace(parentDir)
	if trimmed == "" {
		return nil, fmt.Errorf("workspace parent directory is empty")
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace parent directory %q: %w", parentDir, err)
	}

	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		pattern = DefaultPattern
	}
	if err := ValidatePattern(pattern); err != nil {
		return nil, err
	}

	return &fsManager{parentDir: abs, pattern: pattern}, nil
}

// ValidatePattern checks that pattern is a valid single-segment glob.
func ValidatePattern(pattern string) error {
	if strings.ContainsAny(pattern, `/\`) {
		return fmt.Errorf("workspace pattern %q must not contain path separators", pattern)
	}
	if !doublestar.ValidatePattern(pattern) {
		return fmt.Errorf("workspace pattern %q is not a valid glob", pattern)
	}
	return nil
}

func (m *fsManager) ParentDir() string { return m.parentDir }

// Discover lists the parent directory and keeps subdirectories whose name
// matches the pattern. A missing or unreadable parent is an error.
func (m *fsManager) Discover(ctx context.Context) ([]Workspace, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(m.parentDir)
	if err != nil {
		return nil, fmt.Errorf("read workspace parent directory: %w", err)
	}

	var found []Workspace
	for _, entry := range entries {
		ok, err := doublestar.Match(m.pattern, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("match workspace pattern %q: %w", m.pattern, err)
		}
		if !ok {
			continue
		}

		path := filepath.Join(m.parentDir, entry.Name())
		if !isDir(entry, path) {
			continue
		}
		found = append(found, Workspace{Name: entry.Name(), Dir: path})
	}

	sort.Slice(found, func(i, j int) bool { return found[i].Dir < found[j].Dir })
	return found, nil
}

// isDir follows symlinks, so a link to a checkout counts as a workspace.
func isDir(entry os.DirEntry, path string) bool {
	if entry.IsDir() {
		return true
	}
	if entry.Type()&os.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// Remove deletes ws.Dir and everything under it. Only direct children of the
// parent directory are accepted.
func (m *fsManager) Remove(ctx context.Context, ws Workspace) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.checkChild(ws.Dir); err != nil {
		return err
	}
	if err := os.RemoveAll(ws.Dir); err != nil {
		return fmt.Errorf("remove workspace %q: %w", ws.Name, err)
	}
	return nil
}

func (m *fsManager) checkChild(dir string) error {
	clean := filepath.Clean(dir)
	if filepath.Dir(clean) != m.parentDir {
		return fmt.Errorf("workspace %q is not directly under %q", dir, m.parentDir)
	}
	name := filepath.Base(clean)
	if name == "." || name == ".." || name == string(filepath.Separator) {
		return fmt.Errorf("workspace path %q is invalid", dir)
	}
	return nil
}
