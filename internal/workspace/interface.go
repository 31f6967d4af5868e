package workspace

import "context"

// DefaultPattern selects CI checkouts named source, source-a, source_2, ...
const DefaultPattern = "source*"

// Workspace is one CI checkout directly under the parent directory.
type Workspace struct {
	Name string
	Dir  string
}

// Manager finds and removes workspaces under a single parent directory.
type Manager interface {
	// Discover lists matching workspace directories in lexicographic path order.
	Discover(ctx context.Context) ([]Workspace, error)

	// Remove deletes a workspace directory tree.
	Remove(ctx context.Context, ws Workspace) error

	// ParentDir is the directory all workspaces live in.
	ParentDir() string
}
