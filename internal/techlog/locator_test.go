// -----------------------------------------------------------------------------
// Technology Log Location - Tests
// -----------------------------------------------------------------------------
//
// Descriptors are written into temp directories and the Locator is pointed
// at them explicitly, so the tests never depend on an installed platform.
//
// -----------------------------------------------------------------------------

package techlog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const sampleDescriptor = `<?xml version="1.0" encoding="UTF-8"?>
<config xmlns="http://v8.1c.ru/v8/tech-log" xmlns:query="http://v8.1c.ru/v8/tech-log/query">
	<log location="G:/1c_log/zabbix/calls" history="2">
		<event><eq property="name" value="CALL"/></event>
	</log>
	<log location="G:/1c_log/zabbix/locks" history="2">
		<event><eq property="name" value="TLOCK"/></event>
	</log>
	<query:log location="G:\1c_log\Query1c" history="1"/>
	<log location="G:/1c_log/zabbix_excps" history="24"/>
</config>
`

func writeDescriptor(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, DescriptorName)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// -----------------------------------------------------------------------------
// Resolve Tests
// -----------------------------------------------------------------------------

// TestResolveKeyword verifies keyword matching against location values.
func TestResolveKeyword(t *testing.T) {
	path := writeDescriptor(t, t.TempDir(), sampleDescriptor)
	l := &Locator{Candidates: []string{path}}

	tests := []struct {
		keyword string
		want    string
	}{
		{"locks", "G:/1c_log/zabbix/locks"},
		{"calls", "G:/1c_log/zabbix/calls"},
		{"Query1c", `G:\1c_log\Query1c`},
		{"query1C", `G:\1c_log\Query1c`},
		{"excps", "G:/1c_log/zabbix_excps"},
		{"zabbix", "G:/1c_log/zabbix/calls"},
	}

	for _, tt := range tests {
		t.Run(tt.keyword, func(t *testing.T) {
			got, err := l.Resolve(tt.keyword)
			if err != nil {
				t.Fatalf("Resolve(%q) error: %v", tt.keyword, err)
			}
			if got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.keyword, got, tt.want)
			}
		})
	}
}

// TestResolveNoMatch verifies a descriptor without a matching location.
func TestResolveNoMatch(t *testing.T) {
	path := writeDescriptor(t, t.TempDir(), `<config><log location="D:/logs/calls"/></config>`)
	l := &Locator{Candidates: []string{path}}

	_, err := l.Resolve("locks")
	if !errors.Is(err, ErrLocationNotFound) {
		t.Errorf("Resolve() error = %v, want ErrLocationNotFound", err)
	}
}

// TestResolveMissingDescriptor verifies the not-found failure kind.
func TestResolveMissingDescriptor(t *testing.T) {
	l := &Locator{Candidates: []string{filepath.Join(t.TempDir(), DescriptorName)}}

	_, err := l.Resolve("locks")
	if !errors.Is(err, ErrDescriptorNotFound) {
		t.Errorf("Resolve() error = %v, want ErrDescriptorNotFound", err)
	}
}

// TestResolveMalformed verifies a broken document resolves nothing, even
// when a matching element precedes the syntax error.
func TestResolveMalformed(t *testing.T) {
	path := writeDescriptor(t, t.TempDir(), `<config><log location="G:/locks"/><log location=`)
	l := &Locator{Candidates: []string{path}}

	got, err := l.Resolve("locks")
	if err == nil {
		t.Fatalf("Resolve() = %q, want error", got)
	}
	if Reason(err) != "descriptor_invalid" {
		t.Errorf("Reason() = %q, want descriptor_invalid", Reason(err))
	}
}

// TestDescriptorFirstExistingWins verifies candidates are not merged and
// directories are not mistaken for descriptors.
func TestDescriptorFirstExistingWins(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()

	// A directory named logcfg.xml must be skipped.
	dirCandidate := filepath.Join(first, "nested", DescriptorName)
	if err := os.MkdirAll(dirCandidate, 0o755); err != nil {
		t.Fatal(err)
	}
	a := writeDescriptor(t, first, `<config><log location="/a/calls"/></config>`)
	b := writeDescriptor(t, second, `<config><log location="/b/locks"/></config>`)

	l := &Locator{Candidates: []string{dirCandidate, a, b}}

	if _, err := l.Resolve("locks"); !errors.Is(err, ErrLocationNotFound) {
		t.Errorf("Resolve(locks) error = %v, want ErrLocationNotFound from first descriptor", err)
	}
	if got, _ := l.Resolve("calls"); got != "/a/calls" {
		t.Errorf("Resolve(calls) = %q, want /a/calls", got)
	}
}

// -----------------------------------------------------------------------------
// Directory Selection Tests
// -----------------------------------------------------------------------------

// TestDirFallsBackToConfig verifies a missing descriptor directory falls
// back to the configured path.
func TestDirFallsBackToConfig(t *testing.T) {
	tmp := t.TempDir()
	path := writeDescriptor(t, tmp, `<config><log location="/does/not/exist/locks"/></config>`)
	fallback := filepath.Join(tmp, "locks")
	if err := os.Mkdir(fallback, 0o755); err != nil {
		t.Fatal(err)
	}

	l := &Locator{Candidates: []string{path}}
	got, err := l.Dir("locks", fallback)
	if err != nil {
		t.Fatalf("Dir() error: %v", err)
	}
	if got != fallback {
		t.Errorf("Dir() = %q, want %q", got, fallback)
	}
}

// TestDirPrefersDescriptor verifies the descriptor location wins when it
// exists.
func TestDirPrefersDescriptor(t *testing.T) {
	tmp := t.TempDir()
	logDir := filepath.Join(tmp, "zabbix", "calls")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := writeDescriptor(t, tmp, `<config><log location="`+logDir+`"/></config>`)

	l := &Locator{Candidates: []string{path}}
	got, err := l.Dir("calls", tmp)
	if err != nil {
		t.Fatalf("Dir() error: %v", err)
	}
	if got != logDir {
		t.Errorf("Dir() = %q, want %q", got, logDir)
	}
}

// TestDirNotFound verifies the failure kind when nothing exists.
func TestDirNotFound(t *testing.T) {
	l := &Locator{}
	_, err := l.Dir("calls", "", filepath.Join(t.TempDir(), "missing"))
	if !errors.Is(err, ErrDirNotFound) {
		t.Errorf("Dir() error = %v, want ErrDirNotFound", err)
	}
}
