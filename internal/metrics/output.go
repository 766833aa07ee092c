// Package metrics provides Prometheus metrics for frame output.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	framesWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "loopcam",
		Subsystem: "output",
		Name:      "frames_written_total",
		Help:      "Total frames written per output device",
	}, []string{"device"})

	writeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "loopcam",
		Subsystem: "output",
		Name:      "write_errors_total",
		Help:      "Total failed frame writes per output device",
	}, []string{"device"})

	bytesWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "loopcam",
		Subsystem: "output",
		Name:      "bytes_written_total",
		Help:      "Total bytes written per output device",
	}, []string{"device"})

	openDevices = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "loopcam",
		Subsystem: "output",
		Name:      "open_devices",
		Help:      "Number of output devices held by the current session",
	})

	// Local cache for the feed status summary.
	outputCache   = make(map[string]*OutputDeviceMetrics)
	outputCacheMu sync.RWMutex
)

// OutputDeviceMetrics holds current counter values for one output device.
type OutputDeviceMetrics struct {
	FramesWritten uint64
	WriteErrors   uint64
	BytesWritten  uint64
}

// RecordFrameWritten counts a successful frame write to a device.
func RecordFrameWritten(device string, bytes int) {
	framesWritten.WithLabelValues(device).Inc()
	bytesWritten.WithLabelValues(device).Add(float64(bytes))
	updateCache(device, func(m *OutputDeviceMetrics) {
		m.FramesWritten++
		m.BytesWritten += uint64(bytes)
	})
}

// RecordWriteError counts a failed frame write to a device.
func RecordWriteError(device string) {
	writeErrors.WithLabelValues(device).Inc()
	updateCache(device, func(m *OutputDeviceMetrics) { m.WriteErrors++ })
}

// SetOpenDevices sets the number of devices held by the session.
func SetOpenDevices(n int) {
	openDevices.Set(float64(n))
}

// DeleteOutputMetrics removes all metrics for a device.
func DeleteOutputMetrics(device string) {
	framesWritten.DeleteLabelValues(device)
	writeErrors.DeleteLabelValues(device)
	bytesWritten.DeleteLabelValues(device)

	outputCacheMu.Lock()
	delete(outputCache, device)
	outputCacheMu.Unlock()
}

// GetOutputMetrics returns current counter values for a device.
func GetOutputMetrics(device string) *OutputDeviceMetrics {
	outputCacheMu.RLock()
	defer outputCacheMu.RUnlock()
	if m, ok := outputCache[device]; ok {
		dup := *m
		return &dup
	}
	return nil
}

// GetAllOutputMetrics returns counter values for all devices seen so far.
func GetAllOutputMetrics() map[string]*OutputDeviceMetrics {
	outputCacheMu.RLock()
	defer outputCacheMu.RUnlock()
	result := make(map[string]*OutputDeviceMetrics, len(outputCache))
	for device, m := range outputCache {
		dup := *m
		result[device] = &dup
	}
	return result
}

func updateCache(device string, update func(*OutputDeviceMetrics)) {
	outputCacheMu.Lock()
	defer outputCacheMu.Unlock()
	m, ok := outputCache[device]
	if !ok {
		m = &OutputDeviceMetrics{}
		outputCache[device] = m
	}
	update(m)
}
