package auditlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// maxSizeBytes triggers rotation once the current log file reaches it.
const maxSizeBytes = 10 * 1024 * 1024

// maxLogFiles is the number of rotated files (audit.log.1 .. audit.log.N)
// retained alongside the live audit.log.
const maxLogFiles = 5

// Log is the handle to a vault's audit.log file.
type Log struct {
	mu   sync.Mutex // serializes appends, rotations and verification
	path string
}

// Open returns a handle to the audit log at path, creating an empty
// file with an initialization entry if none exists yet.
func Open(path string) (*Log, error) {
	l := &Log{path: path}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := l.createFresh(); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	return l, nil
}

func (l *Log) createFresh() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	entry, err := newEntry("audit_log_init", "success", nil)
	if err != nil {
		return err
	}

	return appendEntry(f, entry)
}

// Append writes a new entry for eventType/status, sanitizing raw via
// [Sanitize]. If the current file has reached [maxSizeBytes], it rotates
// first.
func (l *Log) Append(eventType, status string, raw map[string]any) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.rotateIfNeeded(); err != nil {
		return err
	}

	entry, err := newEntry(eventType, status, Sanitize(raw))
	if err != nil {
		return err
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	return appendEntry(f, entry)
}

func appendEntry(f *os.File, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	_, err = f.Write(append(data, '\n'))

	return err
}

func (l *Log) rotateIfNeeded() error {
	fi, err := os.Stat(l.path)
	if os.IsNotExist(err) {
		return l.createFresh()
	}

	if err != nil {
		return err
	}

	if fi.Size() < maxSizeBytes {
		return nil
	}

	return l.rotate()
}

// rotate shifts audit.log.N -> audit.log.(N+1) for N from maxLogFiles-1
// down to 1, dropping whatever was at maxLogFiles, renames the live file
// to audit.log.1, and starts a fresh live file with an initialization
// entry.
func (l *Log) rotate() error {
	oldest := l.rotatedPath(maxLogFiles)
	if _, err := os.Stat(oldest); err == nil {
		if err := os.Remove(oldest); err != nil {
			return err
		}
	}

	for n := maxLogFiles - 1; n >= 1; n-- {
		from := l.rotatedPath(n)

		if _, err := os.Stat(from); err != nil {
			continue
		}

		if err := os.Rename(from, l.rotatedPath(n+1)); err != nil {
			return err
		}
	}

	if err := os.Rename(l.path, l.rotatedPath(1)); err != nil {
		return err
	}

	return l.createFresh()
}

func (l *Log) rotatedPath(n int) string {
	return fmt.Sprintf("%s.%d", l.path, n)
}

// VerificationReport summarizes a [VerifyIntegrity] pass.
type VerificationReport struct {
	TotalEntries      int
	CorruptedEntries  int
	CorruptedContexts []string // human-readable locators, e.g. "audit.log:17"
}

// VerifyIntegrity reads the live log and every rotated file, recomputing
// each entry's integrity hash. Corrupted entries (bad JSON or hash
// mismatch) are counted but not removed — forensic value outweighs
// tidiness.
func (l *Log) VerifyIntegrity() (VerificationReport, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var report VerificationReport

	files := []string{l.path}
	for n := 1; n <= maxLogFiles; n++ {
		files = append(files, l.rotatedPath(n))
	}

	for _, path := range files {
		if err := verifyFile(path, &report); err != nil {
			return VerificationReport{}, err
		}
	}

	return report, nil
}

func verifyFile(path string, report *VerificationReport) error {
	f, err := os.Open(path) //nolint:gosec
	if os.IsNotExist(err) {
		return nil
	}

	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0

	for scanner.Scan() {
		line++
		report.TotalEntries++

		var entry Entry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			report.CorruptedEntries++
			report.CorruptedContexts = append(report.CorruptedContexts, fmt.Sprintf("%s:%d", path, line))

			continue
		}

		ok, err := verify(entry)
		if err != nil {
			return err
		}

		if !ok {
			report.CorruptedEntries++
			report.CorruptedContexts = append(report.CorruptedContexts, fmt.Sprintf("%s:%d", path, line))
		}
	}

	return scanner.Err()
}

