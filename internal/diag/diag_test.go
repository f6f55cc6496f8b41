package diag

import (
	"bytes"
	"strings"
	"testing"
)

func TestReportFormatsActionAndDetail(t *testing.T) {
	var buf bytes.Buffer

	w := New(&buf)
	w.Report("Package load failed", "libfoo.so: not found")

	got := buf.String()
	if !strings.Contains(got, "Package load failed") || !strings.Contains(got, "libfoo.so: not found") {
		t.Fatalf("Report output = %q, missing action or detail", got)
	}
}

func TestReportfFormatsArgs(t *testing.T) {
	var buf bytes.Buffer

	w := New(&buf)
	w.Reportf("Malformed manifest", "%s: %d errors", "pkg.dim.json", 3)

	got := buf.String()
	if !strings.Contains(got, "pkg.dim.json: 3 errors") {
		t.Fatalf("Reportf output = %q, want formatted detail", got)
	}
}

func TestNewNilWriterDefaultsToStdout(t *testing.T) {
	w := New(nil)
	if w == nil {
		t.Fatal("New(nil) must still return a usable writer")
	}
}
