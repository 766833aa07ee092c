package camera

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/smazurov/loopcam/pkg/linuxav/v4l2"
)

// outputDevice is the kernel device surface a session drives. The
// concrete implementation is v4l2.Device; tests substitute fakes.
type outputDevice interface {
	Path() string
	Capability() (v4l2.Capability, error)
	SetOutputFormat(width, height int, pixelFormat uint32) error
	Write(frame []byte) (int, error)
	Close() error
}

// openFunc opens a device node for frame output.
type openFunc func(path string) (outputDevice, error)

func openOutputDevice(path string) (outputDevice, error) {
	dev, err := v4l2.OpenWriter(path)
	if err != nil {
		return nil, err
	}
	return dev, nil
}

// autoProbeMax bounds the auto-detect scan to /dev/video0../dev/video99.
const autoProbeMax = 100

// opener acquires loopback devices for one construction attempt, either
// from an explicit path list or by probing.
type opener struct {
	reg    *Registry
	open   openFunc
	width  int
	height int
	format PixelFormat
}

// explicit acquires every listed device in order. Any failure releases
// the devices acquired earlier in the attempt before the error is
// returned, so a failed construction never leaves partial state behind.
func (o opener) explicit(paths []string) ([]outputDevice, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: device list is empty", ErrInvalidDevice)
	}

	var acquired []outputDevice
	for _, path := range paths {
		dev, err := o.acquire(path)
		if err != nil {
			releaseDevices(acquired, o.reg)
			return nil, err
		}
		acquired = append(acquired, dev)
	}

	return acquired, nil
}

// auto probes /dev/video0 through /dev/video99 in ascending order and
// binds the first free loopback output device. Candidates that fail to
// open or validate are skipped silently. A candidate that validates but
// is already claimed by this process is remembered, so an exhausted
// scan can distinguish "all busy" from "nothing found".
func (o opener) auto() ([]outputDevice, error) {
	foundBusy := false

	for i := range autoProbeMax {
		path := fmt.Sprintf("/dev/video%d", i)

		dev, err := o.open(path)
		if err != nil {
			continue
		}
		if err := validateOutput(dev); err != nil {
			_ = dev.Close()
			continue
		}
		if !o.reg.Register(path) {
			foundBusy = true
			_ = dev.Close()
			continue
		}

		// The device checks out and is ours. A format rejection at this
		// point is a real error, not a reason to keep probing.
		if err := o.configure(dev); err != nil {
			_ = dev.Close()
			o.reg.Unregister(path)
			return nil, err
		}

		return []outputDevice{dev}, nil
	}

	if foundBusy {
		return nil, fmt.Errorf("%w at /dev/video[0-%d]; is another session using them?",
			ErrAllDevicesBusy, autoProbeMax-1)
	}
	return nil, fmt.Errorf("%w at /dev/video[0-%d]; did you run 'modprobe v4l2loopback'?",
		ErrNoDeviceFound, autoProbeMax-1)
}

// acquire claims a path in the registry, opens and validates the node,
// and configures the output format. The claim and the descriptor are
// released again on any failure.
func (o opener) acquire(path string) (outputDevice, error) {
	if !o.reg.Register(path) {
		return nil, fmt.Errorf("%w: %s", ErrDeviceBusy, path)
	}

	dev, err := o.open(path)
	if err != nil {
		o.reg.Unregister(path)
		return nil, classifyOpenError(err)
	}

	if err := validateOutput(dev); err != nil {
		_ = dev.Close()
		o.reg.Unregister(path)
		return nil, err
	}

	if err := o.configure(dev); err != nil {
		_ = dev.Close()
		o.reg.Unregister(path)
		return nil, err
	}

	return dev, nil
}

func (o opener) configure(dev outputDevice) error {
	if err := dev.SetOutputFormat(o.width, o.height, uint32(o.format)); err != nil {
		return fmt.Errorf("%w: %s at %dx%d %s: %w",
			ErrConfigureFormat, dev.Path(), o.width, o.height, o.format, err)
	}
	return nil
}

// validateOutput checks that an opened device is a v4l2loopback output
// node.
func validateOutput(dev outputDevice) error {
	cap, err := dev.Capability()
	if err != nil {
		return fmt.Errorf("%w: capabilities of %s could not be queried: %w", ErrNotLoopback, dev.Path(), err)
	}
	if !cap.OutputCapable() {
		return fmt.Errorf("%w: %s is not a video output device", ErrNotLoopback, dev.Path())
	}
	if !cap.IsLoopback() {
		return fmt.Errorf("%w: %s is driven by %q", ErrNotLoopback, dev.Path(), cap.Driver)
	}
	return nil
}

// classifyOpenError maps an open(2) failure onto the session error
// taxonomy, attaching remediation guidance for the common cases.
func classifyOpenError(err error) error {
	switch {
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %w; add your user to the 'video' group (sudo usermod -a -G video $USER) and log in again",
			ErrDevicePermission, err)
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %w", ErrDeviceNotFound, err)
	default:
		return fmt.Errorf("%w: %w", ErrDeviceOpen, err)
	}
}

// releaseDevices closes devices in reverse acquisition order and drops
// their registry claims.
func releaseDevices(devices []outputDevice, reg *Registry) {
	for i := len(devices) - 1; i >= 0; i-- {
		if err := devices[i].Close(); err != nil {
			slog.With("component", "camera").Warn("failed to close device", "path", devices[i].Path(), "error", err)
		}
		reg.Unregister(devices[i].Path())
	}
}
