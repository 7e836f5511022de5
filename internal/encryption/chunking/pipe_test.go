package chunking

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/grailbio/base/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestNewPipe_Thresholds(t *testing.T) {
	_, err := NewPipe(0, 0)
	assert.True(t, errors.Is(errors.Invalid, err))
	_, err = NewPipe(8, 9)
	assert.True(t, errors.Is(errors.Invalid, err))
	_, err = NewPipe(8, 4)
	assert.NoError(t, err)
}

func TestPipe_FIFOAndEOF(t *testing.T) {
	p, err := NewPipe(64, 32)
	require.NoError(t, err)
	ctx := context.Background()

	for _, s := range []string{"a", "bb", "ccc"} {
		require.NoError(t, p.Write(ctx, []byte(s)))
	}
	p.Close()

	for _, want := range []string{"a", "bb", "ccc"} {
		got, err := p.Read(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, string(got))
	}
	_, err = p.Read(ctx)
	assert.Equal(t, io.EOF, err)
	_, err = p.Read(ctx)
	assert.Equal(t, io.EOF, err)
}

func TestPipe_OversizedChunk(t *testing.T) {
	p, err := NewPipe(16, 8)
	require.NoError(t, err)
	err = p.Write(context.Background(), make([]byte, 17))
	assert.True(t, errors.Is(errors.Invalid, err))
}

func TestPipe_Backpressure(t *testing.T) {
	const chunk = 4
	p, err := NewPipe(4*chunk, 2*chunk)
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		require.NoError(t, p.Write(ctx, make([]byte, chunk)))
	}
	assert.Equal(t, 4*chunk, p.Buffered())

	written := make(chan struct{})
	go func() {
		p.Write(ctx, make([]byte, chunk))
		close(written)
	}()

	// draining one chunk leaves 12 bytes, still above resume
	_, err = p.Read(ctx)
	require.NoError(t, err)
	select {
	case <-written:
		t.Fatal("writer resumed above the resume threshold")
	case <-time.After(50 * time.Millisecond):
	}

	_, err = p.Read(ctx)
	require.NoError(t, err)
	select {
	case <-written:
	case <-time.After(time.Second):
		t.Fatal("writer did not resume at the resume threshold")
	}
	assert.Equal(t, 3*chunk, p.Buffered())
	assert.LessOrEqual(t, p.MaxBuffered(), 4*chunk)
}

func TestPipe_PausesWhenFilledExactly(t *testing.T) {
	const chunk = 4
	p, err := NewPipe(4*chunk, 2*chunk)
	require.NoError(t, err)
	ctx := context.Background()

	// no writer ever blocks while the pipe fills to the pause threshold
	for i := 0; i < 4; i++ {
		require.NoError(t, p.Write(ctx, make([]byte, chunk)))
	}
	_, err = p.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, 3*chunk, p.Buffered())

	// 12 bytes buffered is above resume, so a fresh write must wait
	wctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	err = p.Write(wctx, make([]byte, chunk))
	assert.True(t, errors.Is(errors.Timeout, err), "got %v", err)
	assert.Equal(t, 3*chunk, p.Buffered())

	_, err = p.Read(ctx)
	require.NoError(t, err)
	require.NoError(t, p.Write(ctx, make([]byte, chunk)))
	assert.Equal(t, 3*chunk, p.Buffered())
}

func TestPipe_NeverExceedsPause(t *testing.T) {
	const chunk = 1024
	p, err := NewPipe(4*chunk, 2*chunk)
	require.NoError(t, err)

	src := generateData(200*chunk + 7)
	var got bytes.Buffer

	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		defer p.Close()
		for rest := src; len(rest) > 0; {
			n := min(chunk, len(rest))
			if err := p.Write(ctx, rest[:n]); err != nil {
				return err
			}
			rest = rest[n:]
		}
		return nil
	})
	g.Go(func() error {
		for i := 0; ; i++ {
			b, err := p.Read(ctx)
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return err
			}
			if i%16 == 0 {
				time.Sleep(time.Millisecond)
			}
			got.Write(b)
		}
	})
	require.NoError(t, g.Wait())

	assert.True(t, bytes.Equal(src, got.Bytes()))
	assert.LessOrEqual(t, p.MaxBuffered(), 4*chunk)
	assert.Greater(t, p.MaxBuffered(), 2*chunk)
}

func TestPipe_CloseWithError(t *testing.T) {
	p, err := NewPipe(16, 8)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, p.Write(ctx, []byte("x")))
	boom := errors.E(errors.Integrity, "boom")
	p.CloseWithError(boom)

	b, err := p.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "x", string(b))
	_, err = p.Read(ctx)
	assert.Equal(t, boom, err)

	err = p.Write(ctx, []byte("y"))
	assert.True(t, errors.Is(errors.Precondition, err))
}

func TestPipe_CloseReadUnblocksWriter(t *testing.T) {
	p, err := NewPipe(4, 2)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, p.Write(ctx, make([]byte, 4)))

	res := make(chan error, 1)
	go func() { res <- p.Write(ctx, make([]byte, 4)) }()

	time.Sleep(10 * time.Millisecond)
	p.CloseRead(errors.E(errors.Integrity, "consumer failed"))

	select {
	case err := <-res:
		assert.True(t, errors.Is(errors.Integrity, err), "got %v", err)
	case <-time.After(time.Second):
		t.Fatal("writer stayed blocked")
	}
	assert.Zero(t, p.Buffered())
}

func TestPipe_Cancellation(t *testing.T) {
	p, err := NewPipe(4, 2)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err = p.Read(ctx)
	assert.True(t, errors.Is(errors.Canceled, err), "got %v", err)

	require.NoError(t, p.Write(context.Background(), make([]byte, 4)))
	tctx, tcancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer tcancel()
	err = p.Write(tctx, make([]byte, 1))
	assert.True(t, errors.Is(errors.Timeout, err), "got %v", err)
}
