//go:build linux

package hotplug

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestParseUEvent(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected Event
		ok       bool
	}{
		{
			name:  "video device add",
			input: []byte("add@/devices/virtual/video4linux/video7\x00ACTION=add\x00SUBSYSTEM=video4linux\x00DEVNAME=video7\x00"),
			expected: Event{
				Action: "add",
				Name:   "video7",
				Path:   "/dev/video7",
				KObj:   "/devices/virtual/video4linux/video7",
			},
			ok: true,
		},
		{
			name:  "video device remove",
			input: []byte("remove@/devices/virtual/video4linux/video0\x00SUBSYSTEM=video4linux\x00DEVNAME=video0\x00MAJOR=81\x00MINOR=0\x00"),
			expected: Event{
				Action: "remove",
				Name:   "video0",
				Path:   "/dev/video0",
				KObj:   "/devices/virtual/video4linux/video0",
			},
			ok: true,
		},
		{
			name:  "change event without device name",
			input: []byte("change@/devices/virtual/video4linux/video2\x00SUBSYSTEM=video4linux\x00"),
			expected: Event{
				Action: "change",
				KObj:   "/devices/virtual/video4linux/video2",
			},
			ok: true,
		},
		{
			name:  "other subsystem dropped",
			input: []byte("add@/devices/usb/1-1\x00SUBSYSTEM=usb\x00DEVTYPE=usb_device\x00"),
			ok:    false,
		},
		{
			name:  "sound subsystem dropped",
			input: []byte("add@/devices/sound/card0\x00SUBSYSTEM=sound\x00DEVNAME=snd/pcmC0D0p\x00"),
			ok:    false,
		},
		{
			name:  "no subsystem key dropped",
			input: []byte("add@/devices/test\x00KEY1=value1\x00"),
			ok:    false,
		},
		{
			name:  "udevd rebroadcast dropped",
			input: append([]byte("libudev\x00"), []byte{0xfe, 0xed, 0xca, 0xfe, 0x28, 0x00, 0x00, 0x00}...),
			ok:    false,
		},
		{
			name:  "empty input",
			input: []byte{},
			ok:    false,
		},
		{
			name:  "nil input",
			input: nil,
			ok:    false,
		},
		{
			name:  "no @ separator",
			input: []byte("invalid"),
			ok:    false,
		},
		{
			name:  "missing action",
			input: []byte("@/devices/foo"),
			ok:    false,
		},
		{
			name:  "only null bytes",
			input: []byte{0, 0, 0, 0},
			ok:    false,
		},
		{
			name:  "trailing nulls",
			input: []byte("add@/devices/virtual/video4linux/video1\x00SUBSYSTEM=video4linux\x00DEVNAME=video1\x00\x00\x00"),
			expected: Event{
				Action: "add",
				Name:   "video1",
				Path:   "/dev/video1",
				KObj:   "/devices/virtual/video4linux/video1",
			},
			ok: true,
		},
		{
			name:  "value containing equals",
			input: []byte("add@/devices/virtual/video4linux/video3\x00SUBSYSTEM=video4linux\x00DEVNAME=video3\x00ID_MODEL=cam=loop\x00"),
			expected: Event{
				Action: "add",
				Name:   "video3",
				Path:   "/dev/video3",
				KObj:   "/devices/virtual/video4linux/video3",
			},
			ok: true,
		},
		{
			name:  "very long kernel object path",
			input: []byte("add@/devices/" + strings.Repeat("a", 500) + "\x00SUBSYSTEM=video4linux\x00"),
			expected: Event{
				Action: "add",
				KObj:   "/devices/" + strings.Repeat("a", 500),
			},
			ok: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, ok := ParseUEvent(tt.input)

			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v (event %+v)", ok, tt.ok, result)
			}
			if !tt.ok {
				return
			}

			if result.Action != tt.expected.Action {
				t.Errorf("Action: expected %q, got %q", tt.expected.Action, result.Action)
			}
			if result.Name != tt.expected.Name {
				t.Errorf("Name: expected %q, got %q", tt.expected.Name, result.Name)
			}
			if result.Path != tt.expected.Path {
				t.Errorf("Path: expected %q, got %q", tt.expected.Path, result.Path)
			}
			if result.KObj != tt.expected.KObj {
				t.Errorf("KObj: expected %q, got %q", tt.expected.KObj, result.KObj)
			}
		})
	}
}

func TestNewMonitor(t *testing.T) {
	m, err := NewMonitor()
	if err != nil {
		t.Fatalf("NewMonitor() error: %v", err)
	}
	defer func() { _ = m.Close() }()

	if m.fd <= 0 {
		t.Errorf("expected valid fd, got %d", m.fd)
	}
}

func TestMonitorClose(t *testing.T) {
	m, err := NewMonitor()
	if err != nil {
		t.Fatalf("NewMonitor() error: %v", err)
	}

	if closeErr := m.Close(); closeErr != nil {
		t.Errorf("Close() error: %v", closeErr)
	}

	// Second close should fail (bad file descriptor)
	if closeErr := m.Close(); closeErr == nil {
		t.Error("expected error on second Close()")
	}
}

func TestMonitorRunCancellation(t *testing.T) {
	m, err := NewMonitor()
	if err != nil {
		t.Fatalf("NewMonitor() error: %v", err)
	}
	defer func() { _ = m.Close() }()

	// Use already-cancelled context - Run() should return immediately
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	events := make(chan Event, 10)
	runErr := m.Run(ctx, events)

	if !errors.Is(runErr, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", runErr)
	}

	if _, open := <-events; open {
		t.Error("expected events channel to be closed after Run returned")
	}
}
