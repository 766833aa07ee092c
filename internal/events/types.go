package events

// Event type constants for kelindar/event.
const (
	TypeSessionOpened uint32 = iota + 1
	TypeSessionClosed
	TypeWriteFailed
	TypeDeviceHotplug
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// SessionOpenedEvent is published when a feed session has claimed and
// configured its output devices.
type SessionOpenedEvent struct {
	Devices     []string `json:"devices"`
	Width       int      `json:"width"`
	Height      int      `json:"height"`
	PixelFormat string   `json:"pixel_format"`
	Timestamp   string   `json:"timestamp"`
}

// Type returns the event type identifier for SessionOpenedEvent.
func (e SessionOpenedEvent) Type() uint32 { return TypeSessionOpened }

// SessionClosedEvent is published when a feed session releases its devices.
type SessionClosedEvent struct {
	Devices    []string `json:"devices"`
	FramesSent uint64   `json:"frames_sent"`
	Timestamp  string   `json:"timestamp"`
}

// Type returns the event type identifier for SessionClosedEvent.
func (e SessionClosedEvent) Type() uint32 { return TypeSessionClosed }

// WriteFailedEvent is published when a frame write to a single output
// device fails. The session keeps running; healthy devices still receive
// frames.
type WriteFailedEvent struct {
	DevicePath string `json:"device_path"`
	Error      string `json:"error"`
	Frame      uint64 `json:"frame"`
	Timestamp  string `json:"timestamp"`
}

// Type returns the event type identifier for WriteFailedEvent.
func (e WriteFailedEvent) Type() uint32 { return TypeWriteFailed }

// DeviceHotplugEvent represents a video device appearing or disappearing.
type DeviceHotplugEvent struct {
	Action     string `json:"action"`
	DevicePath string `json:"device_path"`
	Timestamp  string `json:"timestamp"`
}

// Type returns the event type identifier for DeviceHotplugEvent.
func (e DeviceHotplugEvent) Type() uint32 { return TypeDeviceHotplug }
