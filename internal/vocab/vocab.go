// Package vocab loads and canonicalizes restricted-vocabulary word lists.
//
// A restricted vocabulary constrains a recognizer's output to a closed word
// set. The canonical serialized form is a JSON string array: lower-cased,
// deduplicated, sorted, terminated by the out-of-vocabulary sentinel token.
// That is the exact grammar payload the lattice recognizer accepts.
package vocab

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
)

// Sentinel is the out-of-vocabulary token appended to every canonical
// vocabulary. Recognizers emit it for audio that matches no listed word.
const Sentinel = "[unk]"

// Vocabulary is a canonical restricted-vocabulary payload.
type Vocabulary struct {
	// JSON is the serialized word list, sentinel included.
	JSON string

	// Size is the number of entries in JSON, sentinel included.
	Size int
}

// Load reads a flat CSV word list from path and returns its canonical form.
// Only the first cell of each row is used. Cells containing embedded newlines
// are skipped with a warning; they cannot be single vocabulary words.
func Load(path string) (Vocabulary, error) {
	f, err := os.Open(path)
	if err != nil {
		return Vocabulary{}, fmt.Errorf("vocab: open %q: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	var words []string
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Vocabulary{}, fmt.Errorf("vocab: read %q: %w", path, err)
		}
		if len(row) == 0 {
			continue
		}
		if strings.Contains(row[0], "\n") {
			slog.Warn("skipping multi-line vocabulary entry", "path", path, "entry", row[0])
			continue
		}
		words = append(words, row[0])
	}

	return canonicalize(words)
}

// Parse canonicalizes a runtime vocabulary override supplied as a JSON array
// of strings. A malformed payload is the caller's (client's) fault.
func Parse(payload string) (Vocabulary, error) {
	var words []string
	if err := json.Unmarshal([]byte(payload), &words); err != nil {
		return Vocabulary{}, fmt.Errorf("vocab: parse vocabulary payload: %w", err)
	}
	return canonicalize(words)
}

// canonicalize lower-cases, deduplicates, sorts, and appends the sentinel.
func canonicalize(words []string) (Vocabulary, error) {
	seen := make(map[string]struct{}, len(words))
	unique := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" || w == Sentinel {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		unique = append(unique, w)
	}
	sort.Strings(unique)
	unique = append(unique, Sentinel)

	data, err := json.Marshal(unique)
	if err != nil {
		return Vocabulary{}, fmt.Errorf("vocab: serialize: %w", err)
	}
	return Vocabulary{JSON: string(data), Size: len(unique)}, nil
}
