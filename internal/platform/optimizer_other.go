//go:build !linux && !windows

package platform

import (
	"os"
	"runtime"

	"github.com/sirupsen/logrus"

	"objectstorage/internal/core/domain"
)

func newOptimizer(_ *os.File, _ bool, _ logrus.FieldLogger) (Optimizer, error) {
	return nil, domain.PlatformUnsupported(runtime.GOOS)
}
