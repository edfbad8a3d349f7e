// Package batching splits a row range into fixed-size chunks so that work
// over many tiles never materializes more than one chunk at a time.
package batching

import "iter"

// Chunks yields consecutive [start, end) ranges covering [0, n) with at most
// size rows each. A non-positive size yields the whole range as one chunk.
// The sequence is finite and can be ranged over any number of times.
func Chunks(n, size int) iter.Seq2[int, int] {
	if size <= 0 {
		size = n
	}
	return func(yield func(int, int) bool) {
		for start := 0; start < n; start += size {
			end := min(start+size, n)
			if !yield(start, end) {
				return
			}
		}
	}
}

// Count returns the number of chunks Chunks(n, size) yields.
func Count(n, size int) int {
	if n <= 0 {
		return 0
	}
	if size <= 0 || size >= n {
		return 1
	}
	return (n + size - 1) / size
}

// Concat runs fn over each chunk in order and concatenates the outputs. The
// first error aborts the remaining chunks and no partial output is returned.
func Concat[T any](n, size int, fn func(start, end int) ([]T, error)) ([]T, error) {
	out := make([]T, 0, n)
	for start, end := range Chunks(n, size) {
		part, err := fn(start, end)
		if err != nil {
			return nil, err
		}
		out = append(out, part...)
	}
	return out, nil
}
