package chunking

import (
	"context"

	"objectstorage/internal/core/domain"
	"objectstorage/internal/platform"
)

// BufferPool hands out fixed-size, sector-aligned buffers. At most
// capacity buffers exist at once; Get blocks while all are in use. A pool
// belongs to one pipeline invocation and is released with it.
type BufferPool struct {
	size  int
	align int
	free  chan []byte
	slots chan struct{}
}

func NewBufferPool(size, align, capacity int) (*BufferPool, error) {
	if size <= 0 || capacity <= 0 {
		return nil, domain.ArgumentError("invalid buffer pool: size %d, capacity %d", size, capacity)
	}
	return &BufferPool{
		size:  size,
		align: align,
		free:  make(chan []byte, capacity),
		slots: make(chan struct{}, capacity),
	}, nil
}

func (p *BufferPool) Get(ctx context.Context) ([]byte, error) {
	select {
	case buf := <-p.free:
		return buf[:p.size], nil
	default:
	}
	select {
	case buf := <-p.free:
		return buf[:p.size], nil
	case p.slots <- struct{}{}:
		return platform.AlignedBuffer(p.size, p.align), nil
	case <-ctx.Done():
		return nil, domain.Canceled(ctx.Err(), "waiting for buffer")
	}
}

// Put returns buf to the pool. Buffers not obtained from Get are ignored.
func (p *BufferPool) Put(buf []byte) {
	if cap(buf) != p.size {
		return
	}
	select {
	case p.free <- buf[:p.size]:
	default:
	}
}

// Release zeroes and drops the idle buffers.
func (p *BufferPool) Release() {
	for {
		select {
		case buf := <-p.free:
			clear(buf)
		default:
			return
		}
	}
}
