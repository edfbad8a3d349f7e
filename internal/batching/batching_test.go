package batching

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type span struct{ start, end int }

func collect(n, size int) []span {
	var out []span
	for s, e := range Chunks(n, size) {
		out = append(out, span{s, e})
	}
	return out
}

func TestChunks(t *testing.T) {
	tests := []struct {
		name string
		n    int
		size int
		want []span
	}{
		{"exact multiple", 6, 3, []span{{0, 3}, {3, 6}}},
		{"ragged tail", 7, 3, []span{{0, 3}, {3, 6}, {6, 7}}},
		{"size larger than n", 2, 64, []span{{0, 2}}},
		{"size one", 3, 1, []span{{0, 1}, {1, 2}, {2, 3}}},
		{"unbatched", 5, 0, []span{{0, 5}}},
		{"empty", 0, 4, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := collect(tt.n, tt.size)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, len(tt.want), Count(tt.n, tt.size))
		})
	}
}

func TestChunksRestartable(t *testing.T) {
	seq := Chunks(10, 4)
	var first, second []int
	for s := range seq {
		first = append(first, s)
	}
	for s := range seq {
		second = append(second, s)
	}
	assert.Equal(t, []int{0, 4, 8}, first)
	assert.Equal(t, first, second)
}

func TestChunksEarlyBreak(t *testing.T) {
	calls := 0
	for range Chunks(100, 10) {
		calls++
		if calls == 2 {
			break
		}
	}
	assert.Equal(t, 2, calls)
}

func TestConcatMatchesUnbatched(t *testing.T) {
	const n = 37
	square := func(start, end int) ([]int, error) {
		out := make([]int, 0, end-start)
		for i := start; i < end; i++ {
			out = append(out, i*i)
		}
		return out, nil
	}

	want, err := square(0, n)
	require.NoError(t, err)
	for _, size := range []int{1, 2, 5, 36, 37, 64, 0} {
		got, err := Concat(n, size, square)
		require.NoError(t, err)
		assert.Equal(t, want, got, "size=%d", size)
	}
}

func TestConcatStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	var seen []int
	out, err := Concat(10, 3, func(start, end int) ([]int, error) {
		seen = append(seen, start)
		if start == 3 {
			return nil, boom
		}
		return make([]int, end-start), nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, out)
	assert.Equal(t, []int{0, 3}, seen)
}
