package camera

import "errors"

// Sentinel errors returned by Open and Send. Device failures wrap one
// of these together with the underlying OS error, so callers can
// classify them with errors.Is.
var (
	ErrUnsupportedFormat = errors.New("unsupported pixel format")
	ErrInvalidDimensions = errors.New("invalid frame dimensions")
	ErrInvalidDevice     = errors.New("invalid device specification")
	ErrInvalidFrameSize  = errors.New("invalid frame size")
	ErrDeviceBusy        = errors.New("device already in use")
	ErrDevicePermission  = errors.New("missing device permissions")
	ErrDeviceNotFound    = errors.New("device does not exist")
	ErrDeviceOpen        = errors.New("device could not be opened")
	ErrNotLoopback       = errors.New("not a v4l2 loopback output device")
	ErrConfigureFormat   = errors.New("device rejected the format")
	ErrAllDevicesBusy    = errors.New("all v4l2 loopback devices are busy")
	ErrNoDeviceFound     = errors.New("no v4l2 loopback device found")
)
