package nn

import (
	"golang.org/x/sync/errgroup"
)

// parallelChunks splits [0,n) into at most workers contiguous chunks and runs
// fn on each. chunk is the chunk index, usable to select a private buffer.
func parallelChunks(workers, n int, fn func(chunk, lo, hi int)) int {
	if workers > n {
		workers = n
	}
	if workers <= 1 {
		if n > 0 {
			fn(0, 0, n)
		}
		return 1
	}

	size := (n + workers - 1) / workers
	chunks := (n + size - 1) / size

	var g errgroup.Group
	for c := 0; c < chunks; c++ {
		lo := c * size
		hi := min(lo+size, n)
		g.Go(func() error {
			fn(c, lo, hi)
			return nil
		})
	}
	_ = g.Wait()
	return chunks
}

// chunkCount mirrors the chunking of parallelChunks
func chunkCount(workers, n int) int {
	if workers > n {
		workers = n
	}
	if workers <= 1 {
		return 1
	}
	size := (n + workers - 1) / workers
	return (n + size - 1) / size
}
