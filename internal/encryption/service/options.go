package service

import (
	"github.com/sirupsen/logrus"

	"objectstorage/internal/core/domain"
	"objectstorage/internal/core/ports"
	"objectstorage/internal/durable"
	"objectstorage/internal/encryption/chunking"
	"objectstorage/internal/logging"
)

type Option func(*options)

type options struct {
	chunkSize int
	pause     int
	resume    int
	stream    durable.Options
	space     ports.SpaceChecker
	log       logrus.FieldLogger
}

func defaultOptions() options {
	return options{
		chunkSize: domain.ChunkSize,
		pause:     domain.PauseThreshold,
		resume:    domain.ResumeThreshold,
		log:       logging.Discard(),
	}
}

// WithChunkSize sets the pipeline chunk size and scales the pipe
// thresholds to four and two chunks.
func WithChunkSize(n int) Option {
	return func(o *options) {
		o.chunkSize = n
		o.pause = 4 * n
		o.resume = 2 * n
	}
}

// WithStreamOptions configures the durable streams of each invocation.
// A zero ChunkSize follows the pipeline chunk size.
func WithStreamOptions(so durable.Options) Option {
	return func(o *options) {
		o.stream = so
	}
}

// WithSpaceChecker enables the free-space preflight before encryption.
func WithSpaceChecker(c ports.SpaceChecker) Option {
	return func(o *options) {
		o.space = c
	}
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) {
		o.log = logging.OrDiscard(l)
	}
}

func (o options) validate() error {
	if o.chunkSize < chunking.MinChunkSize || o.chunkSize > chunking.MaxChunkSize {
		return domain.ArgumentError("chunk size %d outside [%d, %d]", o.chunkSize, chunking.MinChunkSize, chunking.MaxChunkSize)
	}
	if o.pause < o.chunkSize {
		return domain.ArgumentError("pause threshold %d below chunk size %d", o.pause, o.chunkSize)
	}
	return nil
}

func (o options) streamOptions(log logrus.FieldLogger) durable.Options {
	so := o.stream
	if so.ChunkSize == 0 {
		so.ChunkSize = o.chunkSize
	}
	if so.SectorAlignment == 0 {
		so.SectorAlignment = domain.SectorAlignment
	}
	if so.Logger == nil {
		so.Logger = log
	}
	return so
}
