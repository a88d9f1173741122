// Package search implements the query grammar and ranking used by
// search_images (spec §4.7). It never touches ciphertext: callers
// decrypt tag lists and metadata first and hand over plain Records.
package search

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Record is the decrypted projection search ranks over.
type Record struct {
	ID        string
	Name      string
	Tags      []string
	Metadata  map[string]any
	Size      int64
	MimeType  string
	DateAdded time.Time
}

// Result pairs a Record with its computed rank score.
type Result struct {
	Record Record
	Score  float64
}

// Ranking contributions, spec §4.7's scoring table.
const (
	scoreNamePrefix    = 3.0
	scoreNameSubstring = 2.0
	scoreTagExact      = 1.5
	scoreTagSubstring  = 1.0
	scoreMetadata      = 0.5
)

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "of": {}, "in": {}, "on": {},
	"is": {}, "and": {}, "or": {}, "to": {},
}

var fieldAliases = map[string]string{
	"name": "name", "filename": "name",
	"tag":  "tag",
	"type": "type", "format": "type",
	"created": "date", "date": "date",
}

var sizePredicatePattern = regexp.MustCompile(`^([<>])(\d+(?:\.\d+)?)(B|KB|MB|GB)$`)

// FieldFilter is a field:value term; it hard-filters candidates rather
// than contributing to the score.
type FieldFilter struct {
	Field string // "name", "tag", "type", "date"
	Value string
}

// SizePredicate is a >N / <N size bound in bytes.
type SizePredicate struct {
	Op    byte // '>' or '<'
	Bytes int64
}

// Query is a parsed search_images query.
type Query struct {
	Terms  []Term
	Fields []FieldFilter
	Sizes  []SizePredicate
}

// Term is a bare word, quoted phrase, or wildcard pattern to AND
// against every matching candidate.
type Term struct {
	raw      string
	wildcard bool
	contains *regexp.Regexp
	whole    *regexp.Regexp
}

func newTerm(raw string) (Term, error) {
	t := Term{raw: raw}

	if !strings.ContainsAny(raw, "*?") {
		return t, nil
	}

	pattern := wildcardToPattern(raw)

	contains, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return Term{}, err
	}

	whole, err := regexp.Compile("(?i)^" + pattern + "$")
	if err != nil {
		return Term{}, err
	}

	t.wildcard = true
	t.contains = contains
	t.whole = whole

	return t, nil
}

func wildcardToPattern(s string) string {
	var b strings.Builder

	for _, r := range s {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}

	return b.String()
}

func (t Term) containsIn(s string) bool {
	if t.wildcard {
		return t.contains.MatchString(s)
	}

	return strings.Contains(strings.ToLower(s), strings.ToLower(t.raw))
}

func (t Term) isPrefixOf(s string) bool {
	if t.wildcard {
		loc := t.contains.FindStringIndex(s)
		return loc != nil && loc[0] == 0
	}

	return strings.HasPrefix(strings.ToLower(s), strings.ToLower(t.raw))
}

func (t Term) equalsWhole(s string) bool {
	if t.wildcard {
		return t.whole.MatchString(s)
	}

	return strings.EqualFold(t.raw, s)
}

// tokenize splits raw on spaces, treating a "quoted phrase" as one
// token with the quotes stripped (spaces inside quotes are preserved).
func tokenize(raw string) []string {
	var (
		tokens   []string
		b        strings.Builder
		inQuotes bool
	)

	flush := func() {
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}

	for _, r := range raw {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == ' ' && !inQuotes:
			flush()
		default:
			b.WriteRune(r)
		}
	}

	flush()

	return tokens
}

func sizeUnitBytes(unit string) float64 {
	switch unit {
	case "KB":
		return 1024
	case "MB":
		return 1024 * 1024
	case "GB":
		return 1024 * 1024 * 1024
	default:
		return 1
	}
}

// Parse compiles raw into a Query: field:value filters and size
// predicates are extracted as hard filters, stopwords are dropped, and
// everything else becomes a ranked Term.
func Parse(raw string) (Query, error) {
	var q Query

	for _, tok := range tokenize(raw) {
		if tok == "" {
			continue
		}

		if m := sizePredicatePattern.FindStringSubmatch(strings.ToUpper(tok)); m != nil {
			n, err := strconv.ParseFloat(m[2], 64)
			if err != nil {
				return Query{}, err
			}

			q.Sizes = append(q.Sizes, SizePredicate{Op: m[1][0], Bytes: int64(n * sizeUnitBytes(m[3]))})

			continue
		}

		if idx := strings.IndexByte(tok, ':'); idx > 0 {
			field := strings.ToLower(tok[:idx])
			value := tok[idx+1:]

			if canonical, ok := fieldAliases[field]; ok && value != "" {
				q.Fields = append(q.Fields, FieldFilter{Field: canonical, Value: value})
				continue
			}
		}

		if _, stop := stopwords[strings.ToLower(tok)]; stop {
			continue
		}

		term, err := newTerm(tok)
		if err != nil {
			return Query{}, err
		}

		q.Terms = append(q.Terms, term)
	}

	return q, nil
}

// Search filters records and scores the survivors, ordered by score
// descending and ties broken by date_added descending.
func Search(records []Record, q Query) []Result {
	results := make([]Result, 0, len(records))

	for _, r := range records {
		if !matchesFilters(r, q) {
			continue
		}

		score, ok := scoreRecord(r, q)
		if !ok {
			continue
		}

		results = append(results, Result{Record: r, Score: score})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}

		return results[i].Record.DateAdded.After(results[j].Record.DateAdded)
	})

	return results
}

func matchesFilters(r Record, q Query) bool {
	for _, f := range q.Fields {
		switch f.Field {
		case "name":
			if !strings.Contains(strings.ToLower(r.Name), strings.ToLower(f.Value)) {
				return false
			}
		case "tag":
			if !tagContainsSubstring(r.Tags, f.Value) {
				return false
			}
		case "type":
			if !strings.Contains(strings.ToLower(r.MimeType), strings.ToLower(f.Value)) {
				return false
			}
		case "date":
			if r.DateAdded.Format("2006-01-02") != f.Value {
				return false
			}
		}
	}

	for _, s := range q.Sizes {
		switch s.Op {
		case '>':
			if r.Size <= s.Bytes {
				return false
			}
		case '<':
			if r.Size >= s.Bytes {
				return false
			}
		}
	}

	return true
}

func tagContainsSubstring(tags []string, value string) bool {
	value = strings.ToLower(value)

	for _, t := range tags {
		if strings.Contains(strings.ToLower(t), value) {
			return true
		}
	}

	return false
}

// scoreRecord requires every term to match somewhere (name, tag, or
// metadata) — bare terms are ANDed, per spec §4.7.
func scoreRecord(r Record, q Query) (float64, bool) {
	if len(q.Terms) == 0 {
		return 0, true
	}

	var total float64

	for _, term := range q.Terms {
		contribution, matched := termContribution(r, term)
		if !matched {
			return 0, false
		}

		total += contribution
	}

	return total, true
}

func termContribution(r Record, term Term) (float64, bool) {
	var (
		score   float64
		matched bool
	)

	switch {
	case term.isPrefixOf(r.Name):
		score += scoreNamePrefix
		matched = true
	case term.containsIn(r.Name):
		score += scoreNameSubstring
		matched = true
	}

	exact, substring := tagMatch(r.Tags, term)

	switch {
	case exact:
		score += scoreTagExact
		matched = true
	case substring:
		score += scoreTagSubstring
		matched = true
	}

	if metadataContains(r.Metadata, term) {
		score += scoreMetadata
		matched = true
	}

	return score, matched
}

func tagMatch(tags []string, term Term) (exact, substring bool) {
	for _, t := range tags {
		if term.equalsWhole(t) {
			exact = true
		}

		if term.containsIn(t) {
			substring = true
		}
	}

	return exact, substring
}

func metadataContains(meta map[string]any, term Term) bool {
	for _, v := range meta {
		if s, ok := v.(string); ok && term.containsIn(s) {
			return true
		}
	}

	return false
}
