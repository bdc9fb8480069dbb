package domain

// HeaderEntry is a single HTTP header name/value pair attached to every
// segment request. Entries keep the order they appear in the header file
// and duplicates are allowed.
type HeaderEntry struct {
	Name  string
	Value string
}

// Job is the immutable configuration for one download run. It is built once
// by the CLI and never mutated after construction.
type Job struct {
	PlaylistPath string
	BaseURL      string
	OutDir       string
	Headers      []HeaderEntry
	Resume       bool
	Workers      int
}

// SegmentPayload carries one fetched segment from a worker to the writer
// sink. Each payload crosses that boundary exactly once.
type SegmentPayload struct {
	Name string
	Data []byte
}

// SegmentFailure records one segment that could not be fetched.
type SegmentFailure struct {
	Name string
	Err  string
}
