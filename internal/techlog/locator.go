// -----------------------------------------------------------------------
// Technology Log Location
// -----------------------------------------------------------------------
//
// The platform writes its technology log wherever logcfg.xml tells it to.
// Each <log location="..."> element declares one output directory, and by
// convention the directory name says what the section collects ("calls",
// "locks", "excps", ...). The locator finds the descriptor and picks the
// first location containing a keyword.
//
// Matching is a case-insensitive substring test on the location value and
// ignores XML namespaces, because descriptors are written by hand and do
// not follow a fixed schema.
//
// -----------------------------------------------------------------------

package techlog

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// DescriptorName is the file name of the technology log descriptor.
const DescriptorName = "logcfg.xml"

// Locator resolves log directories from the first existing descriptor.
type Locator struct {
	// Candidates are descriptor paths in search order.
	Candidates []string
}

// NewLocator returns a Locator with the conventional search paths for the
// current platform.
func NewLocator() *Locator {
	return &Locator{Candidates: DefaultCandidates()}
}

// DefaultCandidates lists the conventional descriptor paths: the working
// directory first, then the platform install configuration directories.
func DefaultCandidates() []string {
	var paths []string
	if wd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(wd, DescriptorName))
	}

	if runtime.GOOS == "windows" {
		for _, env := range []struct{ name, def string }{
			{"ProgramFiles", "C:/Program Files"},
			{"ProgramFiles(x86)", "C:/Program Files (x86)"},
		} {
			base := os.Getenv(env.name)
			if base == "" {
				base = env.def
			}
			paths = append(paths, filepath.Join(base, "1cv8", "conf", DescriptorName))
		}
		return paths
	}

	return append(paths, filepath.Join("/opt/1cv8/conf", DescriptorName))
}

// Descriptor returns the first candidate that exists as a regular file.
func (l *Locator) Descriptor() (string, error) {
	for _, p := range l.Candidates {
		info, err := os.Stat(p)
		if err == nil && info.Mode().IsRegular() {
			return p, nil
		}
	}
	return "", ErrDescriptorNotFound
}

// Resolve returns the first log location containing keyword.
func (l *Locator) Resolve(keyword string) (string, error) {
	path, err := l.Descriptor()
	if err != nil {
		return "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	locations, err := parseLocations(f)
	if err != nil {
		return "", fmt.Errorf("parsing %s: %w", path, err)
	}

	needle := strings.ToLower(keyword)
	for _, loc := range locations {
		if loc != "" && strings.Contains(strings.ToLower(loc), needle) {
			return loc, nil
		}
	}
	return "", fmt.Errorf("%w: %q in %s", ErrLocationNotFound, keyword, path)
}

// parseLocations reads the whole document and returns the location
// attribute of every log element in document order. A document that fails
// to parse yields no locations at all.
func parseLocations(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) {
		return input, nil
	}

	var locations []string
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "log" {
			continue
		}
		for _, attr := range start.Attr {
			if attr.Name.Local == "location" {
				locations = append(locations, attr.Value)
				break
			}
		}
	}
	return locations, nil
}

// Dir returns the first existing directory among the descriptor location
// for keyword and the fallback paths, in that order.
func (l *Locator) Dir(keyword string, fallbacks ...string) (string, error) {
	candidates := make([]string, 0, len(fallbacks)+1)

	loc, err := l.Resolve(keyword)
	if err != nil {
		logger().Debug("log location not resolved from descriptor",
			"keyword", keyword, "reason", Reason(err), "err", err)
	} else {
		candidates = append(candidates, loc)
	}
	for _, fb := range fallbacks {
		if fb != "" {
			candidates = append(candidates, fb)
		}
	}

	for _, dir := range candidates {
		if isDir(dir) {
			return dir, nil
		}
		logger().Debug("log directory does not exist", "keyword", keyword, "dir", dir)
	}
	return "", fmt.Errorf("%w for keyword %q", ErrDirNotFound, keyword)
}
