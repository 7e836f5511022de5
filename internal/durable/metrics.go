package durable

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// MetricsCollector counts bytes written to a stream and reports the
// throughput once when the stream is torn down.
type MetricsCollector struct {
	total atomic.Int64
	start time.Time
	now   func() time.Time
	log   logrus.FieldLogger

	once       sync.Once
	throughput float64
}

func NewMetricsCollector(log logrus.FieldLogger) *MetricsCollector {
	return newMetricsCollector(log, time.Now)
}

func newMetricsCollector(log logrus.FieldLogger, now func() time.Time) *MetricsCollector {
	return &MetricsCollector{
		start: now(),
		now:   now,
		log:   log,
	}
}

func (m *MetricsCollector) Add(n int) {
	m.total.Add(int64(n))
}

func (m *MetricsCollector) TotalBytes() int64 {
	return m.total.Load()
}

// Finalize emits the "stream metrics" record on its first call and
// returns the throughput in MiB per second.
func (m *MetricsCollector) Finalize() float64 {
	m.once.Do(func() {
		elapsed := m.now().Sub(m.start)
		total := m.total.Load()
		if secs := elapsed.Seconds(); secs > 0 {
			m.throughput = float64(total) / (1024 * 1024) / secs
		}
		m.log.WithFields(logrus.Fields{
			"total_bytes":     total,
			"elapsed":         elapsed.String(),
			"throughput_mbps": m.throughput,
		}).Info("stream metrics")
	})
	return m.throughput
}
