// Package headers loads the optional HTTP header file attached to every
// segment request.
package headers

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Blameying/M3U8-Downloader/internal/domain"
)

// Load parses the file at path as a flat JSON object and returns one
// HeaderEntry per string-valued key, in document order. Non-string values
// are skipped. An empty path returns an empty set without touching disk.
//
// The token-stream decoder is used instead of unmarshalling into a map so
// the original key order survives.
func Load(path string) ([]domain.HeaderEntry, error) {
	if path == "" {
		return nil, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open header file %s: %w", path, err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("could not parse header file %s: %w", path, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("header file %s: top-level value must be an object", path)
	}

	var entries []domain.HeaderEntry
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("could not parse header file %s: %w", path, err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("header file %s: unexpected token %v", path, keyTok)
		}

		var val any
		if err := dec.Decode(&val); err != nil {
			return nil, fmt.Errorf("could not parse header file %s: %w", path, err)
		}

		if s, ok := val.(string); ok {
			entries = append(entries, domain.HeaderEntry{Name: key, Value: s})
		}
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("could not parse header file %s: %w", path, err)
	}

	return entries, nil
}
