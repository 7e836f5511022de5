package durable

import (
	"time"

	"github.com/sirupsen/logrus"

	"objectstorage/internal/core/domain"
	"objectstorage/internal/logging"
	"objectstorage/internal/platform"
)

// Options configures a Stream. Zero fields take the package defaults.
type Options struct {
	// ChunkSize is the largest single write issued to the handle and the
	// size of the read-back buffer. It must be a positive multiple of
	// SectorAlignment.
	ChunkSize       int
	SectorAlignment int
	FlushTimeout    time.Duration
	Logger          logrus.FieldLogger
	NewOptimizer    platform.Factory
}

func (o Options) withDefaults() Options {
	if o.ChunkSize == 0 {
		o.ChunkSize = domain.ChunkSize
	}
	if o.SectorAlignment == 0 {
		o.SectorAlignment = domain.SectorAlignment
	}
	if o.FlushTimeout == 0 {
		o.FlushTimeout = domain.FlushTimeout
	}
	o.Logger = logging.OrDiscard(o.Logger)
	if o.NewOptimizer == nil {
		o.NewOptimizer = platform.New
	}
	return o
}

func (o Options) validate() error {
	if o.SectorAlignment <= 0 {
		return domain.ArgumentError("sector alignment must be positive, got %d", o.SectorAlignment)
	}
	if o.ChunkSize <= 0 || o.ChunkSize%o.SectorAlignment != 0 {
		return domain.ArgumentError("buffer size %d must be a positive multiple of the sector alignment %d",
			o.ChunkSize, o.SectorAlignment)
	}
	if o.FlushTimeout < 0 {
		return domain.ArgumentError("flush timeout must not be negative, got %s", o.FlushTimeout)
	}
	return nil
}

func validateRange(buf []byte, offset, count int) error {
	switch {
	case buf == nil:
		return domain.ArgumentError("buffer is nil")
	case offset < 0:
		return domain.ArgumentError("offset %d is negative", offset)
	case count < 0:
		return domain.ArgumentError("count %d is negative", count)
	case offset > len(buf)-count:
		return domain.ArgumentError("offset %d plus count %d exceeds buffer length %d", offset, count, len(buf))
	}
	return nil
}
