package chunking

import (
	"context"
	"io"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/sync/ctxsync"

	"objectstorage/internal/core/domain"
)

// Pipe is a FIFO of chunks bounded by the bytes it holds. Once the
// buffered total reaches the pause threshold, or a write would push it
// over, writers block until readers drain the pipe to the resume
// threshold.
type Pipe struct {
	pause  int
	resume int

	mu       sync.Mutex
	cond     *ctxsync.Cond
	queue    [][]byte
	buffered int
	high     int
	paused   bool
	werr     error // set by CloseWithError; io.EOF on a clean close
	rerr     error // set by CloseRead
}

func NewPipe(pause, resume int) (*Pipe, error) {
	if pause <= 0 || resume < 0 || resume > pause {
		return nil, domain.ArgumentError("invalid pipe thresholds: pause %d, resume %d", pause, resume)
	}
	p := &Pipe{pause: pause, resume: resume}
	p.cond = ctxsync.NewCond(&p.mu)
	return p, nil
}

// Write queues chunk. The pipe keeps the slice; the caller must not
// modify it until a reader has taken it.
func (p *Pipe) Write(ctx context.Context, chunk []byte) error {
	if len(chunk) > p.pause {
		return domain.ArgumentError("chunk of %d bytes exceeds pause threshold %d", len(chunk), p.pause)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for {
		if p.rerr != nil {
			return errors.E("pipe closed by reader", p.rerr)
		}
		if p.werr != nil {
			return domain.Disposed("pipe writer")
		}
		if p.paused && p.buffered <= p.resume {
			p.paused = false
		}
		if !p.paused && p.buffered+len(chunk) <= p.pause {
			break
		}
		p.paused = true
		if err := p.cond.Wait(ctx); err != nil {
			return domain.Canceled(err, "pipe write")
		}
	}

	p.queue = append(p.queue, chunk)
	p.buffered += len(chunk)
	if p.buffered >= p.pause {
		p.paused = true
	}
	if p.buffered > p.high {
		p.high = p.buffered
	}
	p.cond.Broadcast()
	return nil
}

// Read returns the oldest chunk. After the writer closes, Read drains
// what is queued and then returns io.EOF or the writer's error.
func (p *Pipe) Read(ctx context.Context) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.queue) == 0 {
		if p.rerr != nil {
			return nil, domain.Disposed("pipe reader")
		}
		if p.werr != nil {
			return nil, p.werr
		}
		if err := p.cond.Wait(ctx); err != nil {
			return nil, domain.Canceled(err, "pipe read")
		}
	}

	chunk := p.queue[0]
	p.queue[0] = nil
	p.queue = p.queue[1:]
	p.buffered -= len(chunk)
	p.cond.Broadcast()
	return chunk, nil
}

// Close marks the end of the stream.
func (p *Pipe) Close() {
	p.CloseWithError(nil)
}

// CloseWithError ends the stream from the writer side. Readers see err
// after the queue drains, or io.EOF when err is nil.
func (p *Pipe) CloseWithError(err error) {
	if err == nil {
		err = io.EOF
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.werr == nil {
		p.werr = err
	}
	p.cond.Broadcast()
}

// CloseRead abandons the stream from the reader side. Queued chunks are
// dropped and blocked writers fail with err.
func (p *Pipe) CloseRead(err error) {
	if err == nil {
		err = io.ErrClosedPipe
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rerr == nil {
		p.rerr = err
	}
	p.queue = nil
	p.buffered = 0
	p.cond.Broadcast()
}

// Buffered returns the bytes written but not yet read.
func (p *Pipe) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buffered
}

// MaxBuffered returns the most bytes the pipe has held at once.
func (p *Pipe) MaxBuffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.high
}
