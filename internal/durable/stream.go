// objectstorage/internal/durable/stream.go
package durable

import (
	"context"
	goerrors "errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/grailbio/base/errors"
	"github.com/sirupsen/logrus"

	"objectstorage/internal/core/domain"
	"objectstorage/internal/platform"
)

// Stream owns one file handle opened for write-through I/O. Every write is
// read back and compared before it is reported as done, and Flush forces
// the data to stable storage with the platform sync call.
//
// A Stream serves one direction of one pipeline. Flush and Close may be
// called from any goroutine.
type Stream struct {
	path     string
	f        *os.File
	writable bool
	opts     Options
	log      logrus.FieldLogger

	opt     platform.Optimizer
	direct  platform.Direct
	staging []byte

	verify    *VerificationBuffer
	verifySrc io.ReaderAt
	metrics   *MetricsCollector

	flushes   FlushCoordinator
	flushing  atomic.Bool
	dirSynced bool // guarded by flushes

	closed atomic.Bool

	mu      sync.Mutex
	pos     int64
	failed  error
	removed bool
}

// Create creates or truncates path for writing.
func Create(path string, opts Options) (*Stream, error) {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC|os.O_SYNC, 0o600)
	if err != nil {
		return nil, domain.NewIOError("open", path, err)
	}
	return newStream(f, path, true, opts)
}

// Open opens path for reading.
func Open(path string, opts Options) (*Stream, error) {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		if goerrors.Is(err, os.ErrNotExist) {
			return nil, errors.E(errors.NotExist, "failed to open", path, err)
		}
		return nil, domain.NewIOError("open", path, err)
	}
	return newStream(f, path, false, opts)
}

func newStream(f *os.File, path string, writable bool, opts Options) (*Stream, error) {
	log := opts.Logger.WithField("path", path)
	s := &Stream{
		path:     path,
		f:        f,
		writable: writable,
		opts:     opts,
		log:      log,
		verify:   NewVerificationBuffer(path, opts.ChunkSize, opts.SectorAlignment),
		metrics:  NewMetricsCollector(log),
	}
	s.verifySrc = readerAtFunc(func(p []byte, off int64) (int, error) {
		return s.rawIO(p, off, false)
	})

	if err := s.initialize(); err != nil {
		f.Close()
		if writable {
			if rmErr := os.Remove(path); rmErr != nil && !goerrors.Is(rmErr, os.ErrNotExist) {
				log.WithError(rmErr).Warn("failed to delete file after setup failure")
			}
		}
		return nil, err
	}
	return s, nil
}

func (s *Stream) initialize() error {
	info, err := s.f.Stat()
	if err != nil {
		return domain.NewIOError("stat", s.path, err)
	}
	opt, err := s.opts.NewOptimizer(s.f, s.writable, s.opts.Logger)
	if err != nil {
		return errors.E("failed to select platform optimizer", err)
	}
	if err := opt.Initialize(info.Size()); err != nil {
		return errors.E("failed to apply platform optimizations", err)
	}
	s.opt = opt
	if d, ok := opt.(platform.Direct); ok && d.Direct() {
		s.direct = d
		s.staging = platform.AlignedBuffer(s.opts.ChunkSize, s.opts.SectorAlignment)
	}
	return nil
}

// Position returns the logical offset of the next Read or Write.
func (s *Stream) Position() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

func (s *Stream) Size() (int64, error) {
	if err := s.usable(); err != nil {
		return 0, err
	}
	info, err := s.f.Stat()
	if err != nil {
		return 0, domain.NewIOError("stat", s.path, err)
	}
	return info.Size(), nil
}

// Write implements io.Writer.
func (s *Stream) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	return s.WriteRange(context.Background(), p, 0, len(p))
}

// WriteRange writes buf[offset:offset+count] at the current position in
// pieces of at most the chunk size, verifying each piece by reading it
// back. On any write or verification failure the handle is closed, the
// file is deleted, and the stream cannot be used again.
func (s *Stream) WriteRange(ctx context.Context, buf []byte, offset, count int) (int, error) {
	if err := validateRange(buf, offset, count); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usableLocked(); err != nil {
		return 0, err
	}
	if !s.writable {
		return 0, errors.E(errors.NotSupported, "write to read-only stream", s.path)
	}

	data := buf[offset : offset+count]
	written := 0
	for len(data) > 0 {
		n := min(len(data), s.opts.ChunkSize)
		start := s.pos
		if err := s.writeVerified(ctx, data[:n], start); err != nil {
			s.log.WithError(err).WithField("position", start).Error("write failed")
			s.abortLocked(err)
			return written, err
		}
		s.pos += int64(n)
		written += n
		data = data[n:]
	}
	return written, nil
}

func (s *Stream) writeVerified(ctx context.Context, piece []byte, start int64) error {
	n, err := s.rawIO(piece, start, true)
	if err != nil {
		return domain.NewIOError("write", s.path, err)
	}
	if n != len(piece) {
		return domain.NewIOError("write", s.path, io.ErrShortWrite)
	}
	s.metrics.Add(n)
	return s.verify.Verify(ctx, s.verifySrc, start, piece)
}

// Read implements io.Reader.
func (s *Stream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usableLocked(); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}

	n, err := s.rawIO(p, s.pos, false)
	s.pos += int64(n)
	switch {
	case err == io.EOF && n > 0:
		return n, nil
	case err == io.EOF:
		return 0, io.EOF
	case err != nil:
		return n, domain.NewIOError("read", s.path, err)
	}
	return n, nil
}

// rawIO issues one positional read or write. With direct I/O active, an
// aligned request goes through the aligned staging buffer when p itself
// is not aligned. The first request that cannot be aligned turns direct
// I/O off for the rest of the stream; the write stream's IV header makes
// that the first write, so uncached I/O serves aligned source reads.
func (s *Stream) rawIO(p []byte, off int64, write bool) (int, error) {
	op := s.f.ReadAt
	if write {
		op = s.f.WriteAt
	}
	if s.direct == nil || !s.direct.Direct() {
		return op(p, off)
	}

	align := s.opts.SectorAlignment
	if off%int64(align) != 0 || len(p)%align != 0 || len(p) > len(s.staging) {
		if err := s.dropDirect("unaligned request"); err != nil {
			return 0, err
		}
		return op(p, off)
	}

	var (
		n   int
		err error
	)
	if platform.IsAligned(p, align) {
		n, err = op(p, off)
	} else {
		buf := s.staging[:len(p)]
		if write {
			copy(buf, p)
		}
		n, err = op(buf, off)
		if !write {
			copy(p, buf[:n])
		}
	}
	if goerrors.Is(err, syscall.EINVAL) {
		// the device wants a coarser alignment than configured
		if derr := s.dropDirect("direct I/O rejected by device"); derr != nil {
			return 0, derr
		}
		return op(p, off)
	}
	return n, err
}

func (s *Stream) dropDirect(reason string) error {
	if err := s.direct.Disable(); err != nil {
		return err
	}
	s.log.WithField("reason", reason).Debug("continuing through page cache")
	clear(s.staging)
	s.staging = nil
	return nil
}

// Flush forces written data to stable storage. While a flush is in flight
// other callers return nil at once without waiting for it. A flush that
// outlives the flush timeout returns a Timeout error, but the platform
// sync it started keeps the coordinator until the call returns, so no two
// syncs ever overlap.
func (s *Stream) Flush(ctx context.Context) error {
	if !s.flushing.CompareAndSwap(false, true) {
		return nil
	}
	defer s.flushing.Store(false)

	if err := s.usable(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.FlushTimeout)
	defer cancel()

	release, err := s.flushes.Acquire(ctx)
	if err != nil {
		return err
	}
	// Close holds mu while it waits for the coordinator, so only the
	// atomic flag may be consulted here.
	if s.closed.Load() {
		release()
		return domain.Disposed("stream " + s.path)
	}

	start := time.Now()
	s.syncParentDir()
	done := make(chan error, 1)
	go func() {
		defer release()
		done <- s.opt.Flush(ctx)
	}()

	select {
	case err := <-done:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		return domain.Canceled(ctx.Err(), "flush of "+s.path)
	}
	s.log.WithField("duration", time.Since(start).String()).Info("flush completed")
	return nil
}

// syncParentDir makes a newly created file's directory entry durable. It
// runs once per stream and only logs failures.
func (s *Stream) syncParentDir() {
	if !s.writable || s.dirSynced {
		return
	}
	s.dirSynced = true
	dir, err := os.Open(filepath.Dir(s.path))
	if err == nil {
		err = dir.Sync()
		dir.Close()
	}
	if err != nil {
		s.log.WithError(err).Debug("directory sync skipped")
	}
}

// Abort closes the stream as failed. A write stream's file is deleted;
// deletion failures are logged only.
func (s *Stream) Abort(cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.abortLocked(cause)
}

func (s *Stream) abortLocked(cause error) {
	if s.failed == nil {
		s.failed = cause
	}
	if !s.closed.Load() {
		if err := s.closeLocked(); err != nil {
			s.log.WithError(err).Warn("failed to close after failure")
		}
	}
	if !s.writable || s.removed {
		return
	}
	s.removed = true
	if err := os.Remove(s.path); err != nil && !goerrors.Is(err, os.ErrNotExist) {
		s.log.WithError(err).Warn("failed to delete untrusted file")
		return
	}
	s.log.Warn("deleted untrusted file")
}

// Close finalizes metrics and releases the handle. It waits for an
// in-flight platform sync to return. Close is idempotent.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return nil
	}
	return s.closeLocked()
}

func (s *Stream) closeLocked() error {
	s.closed.Store(true)
	release, _ := s.flushes.Acquire(context.Background())
	defer release()

	s.metrics.Finalize()
	s.verify.Dispose()
	clear(s.staging)
	if err := s.f.Close(); err != nil {
		return domain.NewIOError("close", s.path, err)
	}
	return nil
}

func (s *Stream) usable() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usableLocked()
}

func (s *Stream) usableLocked() error {
	if s.failed != nil {
		return errors.E(errors.Precondition, "stream unusable after failure", s.path, s.failed)
	}
	if s.closed.Load() {
		return domain.Disposed("stream " + s.path)
	}
	return nil
}

type readerAtFunc func(p []byte, off int64) (int, error)

func (f readerAtFunc) ReadAt(p []byte, off int64) (int, error) {
	return f(p, off)
}
