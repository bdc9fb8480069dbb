package domain

import "errors"

// ErrNoSegments indicates the playlist was scanned end to end without
// producing a single segment reference. A zero-length plan cannot make
// progress, so this is fatal.
var ErrNoSegments = errors.New("playlist contains no segment references")
