//go:build !darwin && !linux

package storage

// detectFilesystemType cannot tell network mounts apart here, so the check
// passes and SQLite's own locking errors surface instead.
func detectFilesystemType(path string) (string, error) {
	return "unknown", nil
}
