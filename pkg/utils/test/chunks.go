// Package testutils holds readers used by stream tests to control exactly
// how bytes reach the code under test.
package testutils

import (
	"io"
	"math/rand/v2"
)

// ChunkReader returns its chunks one Read at a time, so a test decides where
// every read boundary falls. A chunk larger than the caller's buffer is
// handed out across several reads.
type ChunkReader struct {
	chunks [][]byte

	// Err is returned once the chunks are exhausted. Nil means io.EOF.
	Err error
}

// NewChunkReader returns a ChunkReader over copies of chunks.
func NewChunkReader(chunks ...[]byte) *ChunkReader {
	cp := make([][]byte, 0, len(chunks))
	for _, c := range chunks {
		cp = append(cp, append([]byte(nil), c...))
	}
	return &ChunkReader{chunks: cp}
}

// NewStringChunkReader is NewChunkReader for string chunks.
func NewStringChunkReader(chunks ...string) *ChunkReader {
	bs := make([][]byte, len(chunks))
	for i, c := range chunks {
		bs[i] = []byte(c)
	}
	return NewChunkReader(bs...)
}

func (r *ChunkReader) Read(p []byte) (int, error) {
	for len(r.chunks) > 0 && len(r.chunks[0]) == 0 {
		r.chunks = r.chunks[1:]
	}
	if len(r.chunks) == 0 {
		if r.Err != nil {
			return 0, r.Err
		}
		return 0, io.EOF
	}

	n := copy(p, r.chunks[0])
	r.chunks[0] = r.chunks[0][n:]
	return n, nil
}

// SplitRandom cuts data into chunks at random byte offsets, including
// offsets inside multi-byte UTF-8 sequences. The same seed yields the same
// split.
func SplitRandom(data []byte, seed uint64, maxChunk int) [][]byte {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	maxChunk = max(maxChunk, 1)

	var chunks [][]byte
	for len(data) > 0 {
		n := min(1+rng.IntN(maxChunk), len(data))
		chunks = append(chunks, data[:n])
		data = data[n:]
	}
	return chunks
}

// SplitEvery cuts data into chunks of n bytes.
func SplitEvery(data []byte, n int) [][]byte {
	n = max(n, 1)

	var chunks [][]byte
	for len(data) > 0 {
		k := min(n, len(data))
		chunks = append(chunks, data[:k])
		data = data[k:]
	}
	return chunks
}
