// Package camera exposes raw frame buffers as virtual camera output by
// writing them into v4l2loopback devices.
//
// A session is opened with a fixed width, height, and input pixel
// format. RGB and BGR frames are converted to planar I420 before
// writing; YUV formats pass through unmodified. Devices are either
// listed explicitly or auto-detected by probing /dev/video0 through
// /dev/video99 for a free loopback node.
//
//	cam, err := camera.Open(camera.Config{
//	    Width:  1280,
//	    Height: 720,
//	    FPS:    30,
//	    Format: camera.RGB24,
//	})
//	if err != nil {
//	    return err
//	}
//	defer cam.Close()
//
//	for frame := range frames {
//	    cam.Send(frame)
//	}
//
// Sessions are not safe for concurrent use; the process-wide device
// registry shared between sessions is.
package camera

import (
	"fmt"
	"log/slog"
	"strings"
)

// Config describes a camera session to open.
type Config struct {
	Width  int
	Height int

	// FPS is the nominal frame rate. The session records it for
	// callers; it does not pace Send.
	FPS float64

	// Format is the pixel format of the frames handed to Send.
	Format PixelFormat

	// Devices lists the loopback nodes to bind, in order. Leave nil to
	// auto-detect the first free loopback device. An empty non-nil
	// list is rejected.
	Devices []string

	// Registry guards device paths against duplicate binds within this
	// process. Leave nil to share the process-wide registry.
	Registry *Registry

	// OnWrite, when set, receives the outcome of every per-device
	// frame write, with err nil on success. Failures are reported
	// here and logged; they never abort delivery to the remaining
	// devices.
	OnWrite func(device string, bytes int, err error)

	// openDevice replaces the kernel device opener in tests.
	openDevice openFunc
}

// Camera is an open session bound to one or more loopback devices.
// Frames written with Send are delivered to every device.
type Camera struct {
	width   int
	height  int
	fps     float64
	layout  negotiated
	devices []outputDevice
	reg     *Registry
	buf     []byte
	running bool
	frames  uint64
	onWrite func(device string, bytes int, err error)
	log     *slog.Logger
}

// Open negotiates the frame layout, acquires the configured devices,
// and returns a running session.
//
// With an explicit device list every listed device must be acquired;
// any failure rolls the whole attempt back, closing and unregistering
// every device acquired earlier, before the error is returned.
func Open(cfg Config) (*Camera, error) {
	layout, err := negotiate(cfg.Format, cfg.Width, cfg.Height)
	if err != nil {
		return nil, err
	}

	reg := cfg.Registry
	if reg == nil {
		reg = DefaultRegistry()
	}
	open := cfg.openDevice
	if open == nil {
		open = openOutputDevice
	}

	o := opener{
		reg:    reg,
		open:   open,
		width:  cfg.Width,
		height: cfg.Height,
		format: layout.output,
	}

	var devices []outputDevice
	if cfg.Devices != nil {
		devices, err = o.explicit(cfg.Devices)
	} else {
		devices, err = o.auto()
	}
	if err != nil {
		return nil, err
	}

	cam := &Camera{
		width:   cfg.Width,
		height:  cfg.Height,
		fps:     cfg.FPS,
		layout:  layout,
		devices: devices,
		reg:     reg,
		running: true,
		onWrite: cfg.OnWrite,
		log:     slog.With("component", "camera"),
	}
	if layout.convert != convertNone {
		cam.buf = make([]byte, layout.outputSize)
	}

	cam.log.Info("camera session opened",
		"devices", cam.Device(),
		"width", cam.width,
		"height", cam.height,
		"format", layout.input.String(),
		"native_format", layout.output.String())

	return cam, nil
}

// Send delivers one frame to every open device. The frame must be
// sized exactly for the session's width, height, and input format.
//
// Delivery is best-effort: a failing device is reported through the
// OnWrite callback and skipped for this frame, never aborting delivery
// to the healthy devices. Send on a closed session is a no-op.
func (c *Camera) Send(frame []byte) error {
	if !c.running {
		return nil
	}
	if len(frame) != c.layout.inputSize {
		return fmt.Errorf("%w: got %d bytes, want %d for %dx%d %s",
			ErrInvalidFrameSize, len(frame), c.layout.inputSize, c.width, c.height, c.layout.input)
	}

	out := frame
	switch c.layout.convert {
	case convertRGBToI420:
		rgbToI420(c.buf, frame, c.width, c.height, 0, 2)
		out = c.buf
	case convertBGRToI420:
		rgbToI420(c.buf, frame, c.width, c.height, 2, 0)
		out = c.buf
	}

	for _, dev := range c.devices {
		n, err := dev.Write(out)
		if err == nil && n != len(out) {
			err = fmt.Errorf("short write: %d of %d bytes", n, len(out))
		}
		if err != nil {
			c.log.Warn("frame write failed", "path", dev.Path(), "error", err)
		}
		if c.onWrite != nil {
			c.onWrite(dev.Path(), n, err)
		}
	}
	c.frames++

	return nil
}

// Close releases every device and its registry claim. It is idempotent
// and never fails; closing an already closed session does nothing.
func (c *Camera) Close() error {
	if !c.running {
		return nil
	}

	releaseDevices(c.devices, c.reg)
	c.devices = nil
	c.running = false

	c.log.Info("camera session closed", "frames_sent", c.frames)
	return nil
}

// Device returns the bound device paths in acquisition order, joined
// with ", ". It returns the empty string once the session is closed.
func (c *Camera) Device() string {
	return strings.Join(c.Paths(), ", ")
}

// Paths returns the bound device paths in acquisition order.
func (c *Camera) Paths() []string {
	paths := make([]string, 0, len(c.devices))
	for _, dev := range c.devices {
		paths = append(paths, dev.Path())
	}
	return paths
}

// NativeFormat returns the pixel format written to the devices, fixed
// at construction.
func (c *Camera) NativeFormat() PixelFormat {
	return c.layout.output
}

// Format returns the input pixel format Send expects.
func (c *Camera) Format() PixelFormat {
	return c.layout.input
}

// FrameSize returns the exact byte size Send expects per frame.
func (c *Camera) FrameSize() int {
	return c.layout.inputSize
}

// Width returns the frame width in pixels.
func (c *Camera) Width() int {
	return c.width
}

// Height returns the frame height in pixels.
func (c *Camera) Height() int {
	return c.height
}

// FPS returns the nominal frame rate from the configuration.
func (c *Camera) FPS() float64 {
	return c.fps
}

// FramesSent returns the number of frames delivered so far.
func (c *Camera) FramesSent() uint64 {
	return c.frames
}
