package auditlog_test

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ZiyanaliSaiyed/GraphiVault/auditlog"
)

func TestOpenCreatesInitEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")

	l, err := auditlog.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	report, err := l.VerifyIntegrity()
	if err != nil {
		t.Fatalf("verify: %v", err)
	}

	if report.TotalEntries != 1 || report.CorruptedEntries != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestAppendAndVerify(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")

	l, err := auditlog.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if err := l.Append("unlock", "success", map[string]any{
		"method":   "password",
		"filename": "secret-plan.jpg",
		"ignored":  "should not appear",
	}); err != nil {
		t.Fatalf("append: %v", err)
	}

	report, err := l.VerifyIntegrity()
	if err != nil {
		t.Fatalf("verify: %v", err)
	}

	if report.TotalEntries != 2 || report.CorruptedEntries != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}

	if strings.Contains(string(raw), "should not appear") {
		t.Fatalf("dropped key leaked into log: %s", raw)
	}

	if strings.Contains(string(raw), "secret-plan.jpg") {
		t.Fatalf("hashed key leaked its plaintext value into log: %s", raw)
	}

	if !strings.Contains(string(raw), "filename_hash") {
		t.Fatalf("expected filename_hash in log: %s", raw)
	}
}

func TestVerifyIntegrityDetectsTamper(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")

	l, err := auditlog.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if err := l.Append("lock", "success", nil); err != nil {
		t.Fatalf("append: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	tampered := strings.Replace(string(raw), `"status":"success"`, `"status":"failure"`, 1)
	if tampered == string(raw) {
		t.Fatalf("test fixture did not contain expected substring to tamper")
	}

	if err := os.WriteFile(path, []byte(tampered), 0o600); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	report, err := l.VerifyIntegrity()
	if err != nil {
		t.Fatalf("verify: %v", err)
	}

	if report.CorruptedEntries == 0 {
		t.Fatalf("expected tampering to be detected, report: %+v", report)
	}
}

func TestRotationAtSizeLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")

	l, err := auditlog.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	big := strings.Repeat("x", 1024)

	for i := 0; i < 10_300; i++ {
		if err := l.Append("noise", "success", map[string]any{"result": big}); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	if _, err := os.Stat(path + ".1"); err != nil {
		t.Fatalf("expected a rotated file .1 to exist: %v", err)
	}

	fi, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat live log: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open live log: %v", err)
	}
	defer func() { _ = f.Close() }()

	lines := 0

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines++
	}

	if lines == 0 {
		t.Fatalf("expected at least the rotation's init entry in the fresh live file")
	}

	if fi.Size() >= 10*1024*1024 {
		t.Fatalf("expected rotation to have started a fresh, small live file, size=%d", fi.Size())
	}
}
