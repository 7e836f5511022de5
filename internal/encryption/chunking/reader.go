package chunking

import (
	"fmt"
	"io"
)

const (
	DefaultChunkSize = 4 * 1024 * 1024  // 4MB, the stream I/O unit
	MinChunkSize     = 512              // one sector
	MaxChunkSize     = 64 * 1024 * 1024 // 64MB
)

// ChunkReader hands out whole chunks: every Read fills p up to the chunk
// size unless the source ends first.
type ChunkReader struct {
	reader    io.Reader
	chunkSize int
}

func NewChunkReader(reader io.Reader, chunkSize int) (*ChunkReader, error) {
	if err := checkChunkSize(chunkSize); err != nil {
		return nil, err
	}

	return &ChunkReader{
		reader:    reader,
		chunkSize: chunkSize,
	}, nil
}

// Read returns io.EOF only when no bytes were read.
func (r *ChunkReader) Read(p []byte) (n int, err error) {
	if len(p) > r.chunkSize {
		p = p[:r.chunkSize]
	}
	n, err = io.ReadFull(r.reader, p)
	if err == io.ErrUnexpectedEOF {
		err = nil
	}
	return n, err
}

func checkChunkSize(size int) error {
	if size < MinChunkSize || size > MaxChunkSize {
		return fmt.Errorf("invalid chunk size: must be between %d and %d bytes", MinChunkSize, MaxChunkSize)
	}
	return nil
}
