// Package playlist extracts segment references from an m3u8 document.
//
// This is deliberately not a full HLS parser: variant streams, encryption
// key directives and discontinuity tags are ignored. A line contributes a
// segment if and only if it contains an alphanumeric token ending in ".ts".
package playlist

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"

	"github.com/Blameying/M3U8-Downloader/internal/domain"
)

var segmentPattern = regexp.MustCompile(`[a-zA-Z0-9]+\.ts`)

// Extract scans the playlist line by line and returns the segment names in
// appearance order. Duplicates are preserved. Returns domain.ErrNoSegments
// when the whole document yields nothing.
func Extract(r io.Reader) ([]string, error) {
	var list []string

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if tok := segmentPattern.FindString(scanner.Text()); tok != "" {
			list = append(list, tok)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("could not scan playlist: %w", err)
	}

	if len(list) == 0 {
		return nil, domain.ErrNoSegments
	}

	return list, nil
}

// ExtractFile reads the playlist at path and extracts its segment list.
func ExtractFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open playlist %s: %w", path, err)
	}
	defer f.Close()

	return Extract(f)
}
