package rac

import (
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// ExecutableLocator resolves the path of the administration client.
//
// Resolution order: the configured path when it exists, the OS search
// path, then a scan of the install roots. When several installed versions
// are found, the first one whose path contains Preferred wins, otherwise
// the most recently modified one. If nothing is found the bare command
// name is returned and left to the OS.
type ExecutableLocator struct {
	Configured string
	Preferred  string
	Name       string
	Roots      []string

	// ParentDir, when set, is the directory name a scanned executable must
	// sit in, such as "bin" for <root>/<version>/bin/rac.exe.
	ParentDir string

	lookPath func(string) (string, error)
}

// NewExecutableLocator returns a locator with the platform install roots.
func NewExecutableLocator(configured, preferred string) ExecutableLocator {
	l := ExecutableLocator{
		Configured: configured,
		Preferred:  preferred,
		Name:       "rac",
		Roots:      []string{"/opt/1cv8"},
		lookPath:   exec.LookPath,
	}
	if runtime.GOOS == "windows" {
		l.Name = "rac.exe"
		l.ParentDir = "bin"
		progFiles := os.Getenv("ProgramFiles")
		if progFiles == "" {
			progFiles = "C:/Program Files"
		}
		l.Roots = []string{filepath.Join(progFiles, "1cv8")}
	}
	return l
}

// Find returns the executable path. It never fails.
func (l ExecutableLocator) Find() string {
	if l.Configured != "" {
		if _, err := os.Stat(l.Configured); err == nil {
			return l.Configured
		}
		logger().Debug("configured rac path does not exist", "path", l.Configured)
	}

	if l.lookPath != nil {
		if p, err := l.lookPath(l.Name); err == nil {
			return p
		}
	}

	if p := l.scanRoots(); p != "" {
		return p
	}
	return l.Name
}

func (l ExecutableLocator) scanRoots() string {
	type candidate struct {
		path    string
		modTime time.Time
	}
	var found []candidate

	for _, root := range l.Roots {
		if info, err := os.Stat(root); err != nil || !info.IsDir() {
			continue
		}
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if d.IsDir() || d.Name() != l.Name {
				return nil
			}
			if l.ParentDir != "" && filepath.Base(filepath.Dir(path)) != l.ParentDir {
				return nil
			}
			info, err := d.Info()
			if err != nil || !info.Mode().IsRegular() {
				return nil
			}
			found = append(found, candidate{path: path, modTime: info.ModTime()})
			return nil
		})
	}

	if len(found) == 0 {
		return ""
	}

	if l.Preferred != "" {
		for _, c := range found {
			if strings.Contains(c.path, l.Preferred) {
				return c.path
			}
		}
	}

	latest := found[0]
	for _, c := range found[1:] {
		if c.modTime.After(latest.modTime) {
			latest = c
		}
	}
	return latest.path
}
