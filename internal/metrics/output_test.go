package metrics

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestOutputMetricsCache(t *testing.T) {
	device := "/dev/video9"

	// Clean state
	DeleteOutputMetrics(device)

	// Initially should return nil
	if m := GetOutputMetrics(device); m != nil {
		t.Error("expected nil for unknown device")
	}

	RecordFrameWritten(device, 1024)
	RecordFrameWritten(device, 1024)
	RecordWriteError(device)

	m := GetOutputMetrics(device)
	if m == nil {
		t.Fatal("expected non-nil metrics")
	}
	if m.FramesWritten != 2 {
		t.Errorf("FramesWritten = %d, want 2", m.FramesWritten)
	}
	if m.WriteErrors != 1 {
		t.Errorf("WriteErrors = %d, want 1", m.WriteErrors)
	}
	if m.BytesWritten != 2048 {
		t.Errorf("BytesWritten = %d, want 2048", m.BytesWritten)
	}

	// Verify returned copy is independent
	m.FramesWritten = 999
	m2 := GetOutputMetrics(device)
	if m2.FramesWritten != 2 {
		t.Errorf("cache was modified, FramesWritten = %d, want 2", m2.FramesWritten)
	}

	// Clean up
	DeleteOutputMetrics(device)
	if deleted := GetOutputMetrics(device); deleted != nil {
		t.Error("expected nil after delete")
	}
}

func TestOutputMetricsPrometheusCounters(t *testing.T) {
	device := "/dev/video8"
	DeleteOutputMetrics(device)

	RecordFrameWritten(device, 512)
	RecordFrameWritten(device, 512)
	RecordFrameWritten(device, 512)
	RecordWriteError(device)

	if got := testutil.ToFloat64(framesWritten.WithLabelValues(device)); got != 3 {
		t.Errorf("frames_written_total = %v, want 3", got)
	}
	if got := testutil.ToFloat64(writeErrors.WithLabelValues(device)); got != 1 {
		t.Errorf("write_errors_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(bytesWritten.WithLabelValues(device)); got != 1536 {
		t.Errorf("bytes_written_total = %v, want 1536", got)
	}

	DeleteOutputMetrics(device)
}

func TestSetOpenDevices(t *testing.T) {
	SetOpenDevices(3)
	if got := testutil.ToFloat64(openDevices); got != 3 {
		t.Errorf("open_devices = %v, want 3", got)
	}

	SetOpenDevices(0)
	if got := testutil.ToFloat64(openDevices); got != 0 {
		t.Errorf("open_devices = %v, want 0", got)
	}
}

func TestGetAllOutputMetrics(t *testing.T) {
	// Clean state
	DeleteOutputMetrics("/dev/video1")
	DeleteOutputMetrics("/dev/video2")

	RecordFrameWritten("/dev/video1", 100)
	RecordFrameWritten("/dev/video2", 200)

	all := GetAllOutputMetrics()
	if len(all) < 2 {
		t.Fatalf("expected at least 2 devices, got %d", len(all))
	}

	if all["/dev/video1"] == nil || all["/dev/video1"].BytesWritten != 100 {
		t.Errorf("/dev/video1 = %+v, want BytesWritten 100", all["/dev/video1"])
	}
	if all["/dev/video2"] == nil || all["/dev/video2"].BytesWritten != 200 {
		t.Errorf("/dev/video2 = %+v, want BytesWritten 200", all["/dev/video2"])
	}

	// Verify returned map is independent
	all["/dev/video1"].BytesWritten = 999
	fresh := GetAllOutputMetrics()
	if fresh["/dev/video1"].BytesWritten != 100 {
		t.Errorf("cache was modified")
	}

	DeleteOutputMetrics("/dev/video1")
	DeleteOutputMetrics("/dev/video2")
}

func TestOutputMetricsConcurrency(t *testing.T) {
	device := "/dev/video7"
	DeleteOutputMetrics(device)

	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			RecordFrameWritten(device, 64)
			_ = GetOutputMetrics(device)
			_ = GetAllOutputMetrics()
		}()
	}
	wg.Wait()

	m := GetOutputMetrics(device)
	if m == nil {
		t.Fatal("expected non-nil metrics after concurrent access")
	}
	if m.FramesWritten != 100 {
		t.Errorf("FramesWritten = %d, want 100", m.FramesWritten)
	}

	DeleteOutputMetrics(device)
}
