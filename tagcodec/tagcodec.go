// Package tagcodec normalizes tag lists and seals/opens them under the
// vault's tag key.
package tagcodec

import (
	"encoding/json"
	"regexp"
	"slices"
	"strings"

	"github.com/ZiyanaliSaiyed/GraphiVault/vaultcrypto"
)

var disallowed = regexp.MustCompile(`[^a-z0-9_\-:/.]`)

// Normalize trims, lower-cases, strips characters outside
// [a-z0-9_\-:/.], drops empties, deduplicates, and sorts the input tag
// list. The result is idempotent: Normalize(Normalize(x)) == Normalize(x).
func Normalize(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))

	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		t = disallowed.ReplaceAllString(t, "")

		if t == "" {
			continue
		}

		if _, ok := seen[t]; ok {
			continue
		}

		seen[t] = struct{}{}

		out = append(out, t)
	}

	slices.Sort(out)

	return out
}

// Encode normalizes tags and seals them as JSON under the tag key.
func Encode(c *vaultcrypto.Controller, tags []string) ([]byte, error) {
	normalized := Normalize(tags)

	data, err := json.Marshal(normalized)
	if err != nil {
		return nil, err
	}

	return c.EncryptTagBytes(data)
}

// Decode opens a blob produced by [Encode] and returns the tag list.
func Decode(c *vaultcrypto.Controller, blob []byte) ([]string, error) {
	if len(blob) == 0 {
		return nil, nil
	}

	data, err := c.DecryptTagBytes(blob)
	if err != nil {
		return nil, err
	}

	var tags []string
	if err := json.Unmarshal(data, &tags); err != nil {
		return nil, err
	}

	return tags, nil
}
