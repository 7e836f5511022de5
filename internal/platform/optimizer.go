// objectstorage/internal/platform/optimizer.go
package platform

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"

	"objectstorage/internal/logging"
)

// Optimizer applies OS-specific durability settings to one open handle
// and performs the native data sync for it.
type Optimizer interface {
	Initialize(fileLength int64) error
	Flush(ctx context.Context) error
}

// Direct is implemented by optimizers that can switch a handle to
// uncached I/O. While Direct reports true, reads and writes on the handle
// need sector-aligned offsets, lengths and memory. Disable turns uncached
// I/O off for the rest of the handle's life; write-through stays.
type Direct interface {
	Direct() bool
	Disable() error
}

// Factory builds the optimizer for a handle.
type Factory func(f *os.File, writable bool, log logrus.FieldLogger) (Optimizer, error)

// New returns the optimizer for the running OS. Unsupported systems fail
// with a NotSupported error.
func New(f *os.File, writable bool, log logrus.FieldLogger) (Optimizer, error) {
	return newOptimizer(f, writable, logging.OrDiscard(log))
}
