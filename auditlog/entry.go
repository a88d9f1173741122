// Package auditlog implements the vault's append-only, tamper-evident
// authentication and operation log.
package auditlog

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"
)

// Entry is a single audit-log line. Data carries only the fields that
// survive the privacy discipline in [Sanitize]; this package never sees
// the unsanitized caller data.
type Entry struct {
	Timestamp     time.Time      `json:"timestamp"`
	EventType     string         `json:"event_type"`
	Status        string         `json:"status"`
	Data          map[string]any `json:"data,omitempty"`
	IntegrityHash string         `json:"integrity_hash"`
}

// integrityHashLen is 32 hex characters, i.e. the first 16 bytes of the
// SHA-256 digest.
const integrityHashLen = 32

// computeHash returns the entry's integrity hash: SHA-256 over the
// canonical JSON encoding of every field except IntegrityHash itself,
// truncated to [integrityHashLen] hex characters.
func computeHash(e Entry) (string, error) {
	canonical, err := canonicalJSON(e)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(canonical)

	return hex.EncodeToString(sum[:])[:integrityHashLen], nil
}

// canonicalJSON renders e (minus IntegrityHash) with deterministically
// ordered keys, so the same logical entry always hashes the same way
// regardless of struct field order or map iteration order.
func canonicalJSON(e Entry) ([]byte, error) {
	fields := map[string]any{
		"timestamp":  e.Timestamp.UTC().Format(time.RFC3339Nano),
		"event_type": e.EventType,
		"status":     e.Status,
	}

	if len(e.Data) > 0 {
		fields["data"] = e.Data
	}

	return marshalSorted(fields)
}

// marshalSorted encodes v as JSON with object keys in sorted order at
// every nesting level. [encoding/json] already sorts map[string]any keys
// at each level it encodes, so this is a thin, explicitly-named wrapper
// documenting that the ordering is relied upon, not incidental.
func marshalSorted(v any) ([]byte, error) {
	return json.Marshal(sortedValue(v))
}

func sortedValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}

		sort.Strings(keys)

		out := make(map[string]any, len(t))

		for _, k := range keys {
			out[k] = sortedValue(t[k])
		}

		return out
	default:
		return v
	}
}

func newEntry(eventType, status string, data map[string]any) (Entry, error) {
	e := Entry{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Status:    status,
		Data:      data,
	}

	hash, err := computeHash(e)
	if err != nil {
		return Entry{}, err
	}

	e.IntegrityHash = hash

	return e, nil
}

// verify reports whether e's stored IntegrityHash matches its content.
func verify(e Entry) (bool, error) {
	want, err := computeHash(e)
	if err != nil {
		return false, err
	}

	return want == e.IntegrityHash, nil
}
