package engine

// Partition splits the segment list into at most workers contiguous chunks,
// one per worker goroutine. The first len(list) % workers chunks carry one
// extra segment, so no chunk is ever more than one segment larger than
// another and every segment lands in exactly one chunk.
//
// When workers exceeds the list length the effective worker count clamps to
// the list length: zero-sized chunks are never produced.
func Partition(list []string, workers int) [][]string {
	if len(list) == 0 {
		return nil
	}
	if workers < 1 {
		workers = 1
	}
	if workers > len(list) {
		workers = len(list)
	}

	base := len(list) / workers
	extra := len(list) % workers

	chunks := make([][]string, 0, workers)
	start := 0
	for i := 0; i < workers; i++ {
		size := base
		if i < extra {
			size++
		}
		chunks = append(chunks, list[start:start+size])
		start += size
	}

	return chunks
}
