//go:build windows

package platform

import (
	"context"
	"errors"
	"os"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/windows"

	"objectstorage/internal/core/domain"
)

type windowsOptimizer struct {
	path     string
	handle   windows.Handle
	writable bool
	log      logrus.FieldLogger
}

func newOptimizer(f *os.File, writable bool, log logrus.FieldLogger) (Optimizer, error) {
	return &windowsOptimizer{
		path:     f.Name(),
		handle:   windows.Handle(f.Fd()),
		writable: writable,
		log:      log.WithFields(logrus.Fields{"platform": "windows", "path": f.Name()}),
	}, nil
}

// Initialize preallocates the valid data length and commits metadata.
// Write-through comes from the handle's O_SYNC open flag; the runtime
// does not expose FILE_FLAG_NO_BUFFERING, so caching stays enabled.
func (o *windowsOptimizer) Initialize(fileLength int64) error {
	if !o.writable {
		o.log.WithField("direct_io", false).Info("optimization applied")
		return nil
	}

	if fileLength > 0 {
		err := windows.SetFileValidData(o.handle, fileLength)
		switch {
		case err == nil:
		case errors.Is(err, windows.ERROR_PRIVILEGE_NOT_HELD), errors.Is(err, windows.ERROR_INVALID_PARAMETER):
			o.log.WithError(err).Warn("SetFileValidData unavailable, valid data length not preallocated")
		default:
			return domain.NewIOError("SetFileValidData", o.path, err)
		}
	}
	if err := windows.FlushFileBuffers(o.handle); err != nil {
		return domain.NewIOError("FlushFileBuffers", o.path, err)
	}

	o.log.WithFields(logrus.Fields{
		"direct_io":   false,
		"file_length": fileLength,
	}).Info("optimization applied")
	return nil
}

func (o *windowsOptimizer) Flush(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return domain.Canceled(err, "flush")
	}
	if !o.writable {
		return nil
	}
	if err := windows.FlushFileBuffers(o.handle); err != nil {
		return domain.NewIOError("FlushFileBuffers", o.path, err)
	}
	return nil
}
