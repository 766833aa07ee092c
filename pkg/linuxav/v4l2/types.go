//go:build linux

package v4l2

// LoopbackDriver is the driver name v4l2loopback devices report in
// their capability struct.
const LoopbackDriver = "v4l2 loopback"

// Capability contains the identity and capability flags a device
// reports through VIDIOC_QUERYCAP.
type Capability struct {
	Driver       string
	Card         string
	BusInfo      string
	Version      uint32
	Capabilities uint32
	DeviceCaps   uint32
}

// Effective returns the capabilities of the opened node. When the
// driver reports per-node device_caps, those take precedence over the
// whole-device capabilities word.
func (c Capability) Effective() uint32 {
	if c.Capabilities&v4l2CapDeviceCaps != 0 {
		return c.DeviceCaps
	}
	return c.Capabilities
}

// OutputCapable reports whether the device accepts video output.
// The check uses the whole-device capabilities word: v4l2loopback
// advertises V4L2_CAP_VIDEO_OUTPUT there even on nodes whose
// device_caps only mention capture.
func (c Capability) OutputCapable() bool {
	return c.Capabilities&v4l2CapVideoOutput != 0
}

// CaptureCapable reports whether the opened node supports video capture.
func (c Capability) CaptureCapable() bool {
	return c.Effective()&v4l2CapVideoCapture != 0
}

// IsLoopback reports whether the device is backed by v4l2loopback.
func (c Capability) IsLoopback() bool {
	return c.Driver == LoopbackDriver
}

// DeviceInfo pairs a device node path with its queried capabilities.
type DeviceInfo struct {
	Path       string
	Capability Capability
}

// FormatInfo contains information about a supported pixel format.
type FormatInfo struct {
	PixelFormat uint32
	FormatName  string
	Emulated    bool
}

// Capability flags.
const (
	v4l2CapVideoCapture = 0x00000001
	v4l2CapVideoOutput  = 0x00000002
	v4l2CapDeviceCaps   = 0x80000000
)

// Format flags.
const (
	v4l2FmtFlagEmulated = 0x0002
)

// Common pixel formats.
const (
	v4l2PixFmtRGB24  = 0x33424752 // 'RGB3'
	v4l2PixFmtBGR24  = 0x33524742 // 'BGR3'
	v4l2PixFmtGrey   = 0x59455247 // 'GREY'
	v4l2PixFmtYUV420 = 0x32315559 // 'YU12'
	v4l2PixFmtNV12   = 0x3231564E // 'NV12'
	v4l2PixFmtYUYV   = 0x56595559 // 'YUYV'
	v4l2PixFmtUYVY   = 0x59565955 // 'UYVY'
)

// Buffer types.
const (
	v4l2BufTypeVideoCapture = 1
	v4l2BufTypeVideoOutput  = 2
)
