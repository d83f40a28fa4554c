package techlog

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

var errorQuery = ErrorQuery{MaxAge: 2 * time.Hour, MaxFiles: 10, Keep: 5}

// TestScanErrorsOrdering verifies newest file first and, within a file,
// line order.
func TestScanErrorsOrdering(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()

	writeLog(t, filepath.Join(dir, "rphost_1", "older.log"), []string{
		"10:00.0-0,EXCP,1,descr=old failure",
		"10:00.1-0,CALL,1",
	}, now.Add(-90*time.Minute))
	writeLog(t, filepath.Join(dir, "rphost_2", "newer.log"), []string{
		"11:00.0-0,EXCP,1,descr=first",
		"11:00.1-0,CALL,1",
		"11:00.2-0,EXCPCNTX,1,descr=second",
	}, now.Add(-5*time.Minute))

	got := NewScanner().ScanErrors(dir, errorQuery)

	if got.Count != 3 {
		t.Errorf("Count = %d, want 3", got.Count)
	}
	if len(got.Records) != 3 {
		t.Fatalf("len(Records) = %d, want 3", len(got.Records))
	}

	wantOrder := []struct{ file, message string }{
		{"newer.log", "11:00.0-0,EXCP,1,descr=first"},
		{"newer.log", "11:00.2-0,EXCPCNTX,1,descr=second"},
		{"older.log", "10:00.0-0,EXCP,1,descr=old failure"},
	}
	for i, w := range wantOrder {
		if got.Records[i].File != w.file || got.Records[i].Message != w.message {
			t.Errorf("Records[%d] = %+v, want %s %q", i, got.Records[i], w.file, w.message)
		}
	}
}

// TestScanErrorsWindowAndKeep verifies old files are ignored and records
// are capped while the count is not.
func TestScanErrorsWindowAndKeep(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()

	writeLog(t, filepath.Join(dir, "stale.log"), repeat("00:00.0-0,EXCP,1", 50), now.Add(-3*time.Hour))
	writeLog(t, filepath.Join(dir, "fresh.log"), repeat("00:00.0-0,ERROR,1", 8), now)
	writeLog(t, filepath.Join(dir, "notes.txt"), repeat("FATAL", 8), now)

	got := NewScanner().ScanErrors(dir, errorQuery)
	if got.Count != 8 {
		t.Errorf("Count = %d, want 8", got.Count)
	}
	if len(got.Records) != 5 {
		t.Errorf("len(Records) = %d, want 5", len(got.Records))
	}
}

// TestScanErrorsMaxFiles verifies only the newest files are read.
func TestScanErrorsMaxFiles(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	for i := 0; i < 4; i++ {
		name := filepath.Join(dir, string(rune('a'+i))+".log")
		writeLog(t, name, []string{"x,EXCP,1"}, now.Add(-time.Duration(i)*time.Minute))
	}

	got := NewScanner().ScanErrors(dir, ErrorQuery{MaxAge: time.Hour, MaxFiles: 2, Keep: 5})
	if got.Count != 2 {
		t.Errorf("Count = %d, want 2", got.Count)
	}
	if len(got.Records) != 2 || got.Records[0].File != "a.log" || got.Records[1].File != "b.log" {
		t.Errorf("Records = %+v, want a.log then b.log", got.Records)
	}
}

// TestScanErrorsCleansText verifies BOM and invalid bytes are dropped.
func TestScanErrorsCleansText(t *testing.T) {
	dir := t.TempDir()
	content := []byte("\xef\xbb\xbf00:00.0-0,EXCP,1,descr=bad \xff\xfe byte\r\n")
	path := filepath.Join(dir, "bom.log")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	got := NewScanner().ScanErrors(dir, errorQuery)
	if len(got.Records) != 1 {
		t.Fatalf("len(Records) = %d, want 1", len(got.Records))
	}
	if want := "00:00.0-0,EXCP,1,descr=bad  byte"; got.Records[0].Message != want {
		t.Errorf("Message = %q, want %q", got.Records[0].Message, want)
	}
}

// TestScanErrorsCaseInsensitive verifies lowercase tokens match.
func TestScanErrorsCaseInsensitive(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, filepath.Join(dir, "x.log"), []string{
		"00:00.0-0,Conn,1,txt=fatal disconnect",
		"00:00.0-0,Conn,1,txt=Error reading socket",
		"00:00.0-0,Conn,1,txt=all good",
	}, time.Now())

	if got := NewScanner().ScanErrors(dir, errorQuery); got.Count != 2 {
		t.Errorf("Count = %d, want 2", got.Count)
	}
}

// TestScanErrorsKeepsFirstLinesOfFile verifies the kept records of a file
// are its first matches, so the reported last error is the first matching
// line of the newest file.
func TestScanErrorsKeepsFirstLinesOfFile(t *testing.T) {
	dir := t.TempDir()
	lines := []string{"first ERROR line", "ok"}
	for i := 2; i <= 7; i++ {
		lines = append(lines, fmt.Sprintf("ERROR line %d", i))
	}
	writeLog(t, filepath.Join(dir, "a.log"), lines, time.Now())

	got := NewScanner().ScanErrors(dir, errorQuery)
	if got.Count != 7 {
		t.Errorf("Count = %d, want 7", got.Count)
	}
	want := []string{"first ERROR line", "ERROR line 2", "ERROR line 3", "ERROR line 4", "ERROR line 5"}
	if len(got.Records) != len(want) {
		t.Fatalf("len(Records) = %d, want %d", len(got.Records), len(want))
	}
	for i, w := range want {
		if got.Records[i].Message != w {
			t.Errorf("Records[%d] = %q, want %q", i, got.Records[i].Message, w)
		}
	}
}
