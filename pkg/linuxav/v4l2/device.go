//go:build linux

package v4l2

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Device is a V4L2 device node opened for frame output.
type Device struct {
	path string
	file *os.File
}

// OpenWriter opens a video device for writing frames. The descriptor
// uses O_SYNC so each write reaches the driver before returning.
//
// Errors are returned as *os.PathError, so callers can classify them
// with errors.Is against fs.ErrPermission and fs.ErrNotExist.
func OpenWriter(path string) (*Device, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|unix.O_SYNC, 0)
	if err != nil {
		return nil, err
	}
	return &Device{path: path, file: f}, nil
}

// Path returns the device node path.
func (d *Device) Path() string {
	return d.path
}

// Capability queries the driver name, card name, and capability flags.
func (d *Device) Capability() (Capability, error) {
	raw := v4l2Capability{}
	if err := ioctl(d.file.Fd(), vidiocQuerycap, unsafe.Pointer(&raw)); err != nil {
		return Capability{}, fmt.Errorf("failed to query capabilities: %w", err)
	}
	return decodeCapability(&raw), nil
}

// SetOutputFormat negotiates the frame format for the output queue.
// Only the dimensions and pixel format are requested; the driver fills
// in derived fields such as bytesperline and sizeimage.
func (d *Device) SetOutputFormat(width, height int, pixelFormat uint32) error {
	format := v4l2Format{}
	format.typ = v4l2BufTypeVideoOutput
	format.pix.width = uint32(width)
	format.pix.height = uint32(height)
	format.pix.pixelformat = pixelFormat
	if err := ioctl(d.file.Fd(), vidiocSFmt, unsafe.Pointer(&format)); err != nil {
		return fmt.Errorf("failed to set output format: %w", err)
	}
	return nil
}

// Write delivers one raw frame to the device.
func (d *Device) Write(frame []byte) (int, error) {
	return d.file.Write(frame)
}

// Close releases the device descriptor.
func (d *Device) Close() error {
	return d.file.Close()
}

// FindDevices finds all V4L2 video devices on the system, sorted by
// device index. Nodes that cannot be opened or queried are skipped.
func FindDevices() ([]DeviceInfo, error) {
	entries, err := os.ReadDir("/sys/class/video4linux")
	if err != nil {
		if os.IsNotExist(err) {
			return []DeviceInfo{}, nil
		}
		return nil, fmt.Errorf("failed to read video4linux directory: %w", err)
	}

	var devices []DeviceInfo

	for _, entry := range entries {
		// The class directory also lists vbi, radio, and subdev nodes.
		if !strings.HasPrefix(entry.Name(), "video") {
			continue
		}

		devicePath := "/dev/" + entry.Name()

		info, err := Probe(devicePath)
		if err != nil {
			slog.With("component", "linuxav").Debug("failed to probe video device", "path", devicePath, "error", err)
			continue
		}

		devices = append(devices, info)
	}

	sort.Slice(devices, func(i, j int) bool {
		return deviceIndex(devices[i].Path) < deviceIndex(devices[j].Path)
	})

	return devices, nil
}

// Probe opens a device node non-blocking, queries its capabilities, and
// closes it again without claiming the device.
func Probe(path string) (DeviceInfo, error) {
	fd, err := openProbe(path)
	if err != nil {
		return DeviceInfo{}, err
	}
	defer unix.Close(fd)

	raw := v4l2Capability{}
	if err := ioctl(uintptr(fd), vidiocQuerycap, unsafe.Pointer(&raw)); err != nil {
		return DeviceInfo{}, fmt.Errorf("failed to query capabilities: %w", err)
	}

	return DeviceInfo{Path: path, Capability: decodeCapability(&raw)}, nil
}

func decodeCapability(raw *v4l2Capability) Capability {
	return Capability{
		Driver:       cstr(raw.driver[:]),
		Card:         cstr(raw.card[:]),
		BusInfo:      cstr(raw.busInfo[:]),
		Version:      raw.version,
		Capabilities: raw.capabilities,
		DeviceCaps:   raw.deviceCaps,
	}
}

// deviceIndex extracts the numeric suffix from a /dev/videoN path.
func deviceIndex(path string) int {
	n, _ := strconv.Atoi(strings.TrimPrefix(filepath.Base(path), "video"))
	return n
}

// cstr converts a null-terminated byte slice to a Go string.
func cstr(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}
