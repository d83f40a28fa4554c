package techlog

import (
	"errors"
	"os"
)

var (
	// ErrDescriptorNotFound means no logcfg.xml exists in any search path.
	ErrDescriptorNotFound = errors.New("logcfg.xml not found")

	// ErrLocationNotFound means the descriptor has no matching log element.
	ErrLocationNotFound = errors.New("no log location matches keyword")

	// ErrDirNotFound means neither the descriptor nor the configuration
	// yields an existing log directory.
	ErrDirNotFound = errors.New("log directory not found")
)

// Reason maps an error to a short label suitable for logs and metric
// labels.
func Reason(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrDescriptorNotFound):
		return "descriptor_not_found"
	case errors.Is(err, ErrLocationNotFound):
		return "location_not_found"
	case errors.Is(err, ErrDirNotFound):
		return "dir_not_found"
	default:
		return "descriptor_invalid"
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
