//go:build linux

// Package hotplug watches kernel uevents for video devices appearing and
// disappearing.
//
// The monitor binds a netlink socket to the kernel uevent broadcast group
// and works without cgo or a udev daemon. Events from subsystems other
// than video4linux are dropped at the parser.
package hotplug

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"syscall"
)

// Video device event actions.
const (
	ActionAdd    = "add"
	ActionRemove = "remove"
	ActionChange = "change"
)

// Event is a video4linux device appearing, changing, or disappearing.
type Event struct {
	Action string // "add", "remove", or "change"
	Name   string // kernel device name, e.g. "video7"
	Path   string // device node path, e.g. "/dev/video7"
	KObj   string // kernel object path under /sys
}

const (
	// netlinkKobjectUEvent is the netlink protocol for kernel object events.
	netlinkKobjectUEvent = 15
	// kernelBroadcastGroup carries raw kernel uevents. Group 2 carries
	// udevd's processed rebroadcasts, which use a different framing.
	kernelBroadcastGroup = 1

	subsystemVideo = "video4linux"
)

// Monitor delivers video device events from the kernel.
type Monitor struct {
	fd int
}

// NewMonitor opens the kernel uevent socket.
func NewMonitor() (*Monitor, error) {
	fd, err := syscall.Socket(syscall.AF_NETLINK, syscall.SOCK_DGRAM|syscall.SOCK_CLOEXEC, netlinkKobjectUEvent)
	if err != nil {
		return nil, fmt.Errorf("opening uevent socket: %w", err)
	}

	addr := &syscall.SockaddrNetlink{
		Family: syscall.AF_NETLINK,
		Groups: kernelBroadcastGroup,
	}
	if err := syscall.Bind(fd, addr); err != nil {
		syscall.Close(fd)
		return nil, fmt.Errorf("binding uevent socket: %w", err)
	}

	return &Monitor{fd: fd}, nil
}

// Close releases the netlink socket.
func (m *Monitor) Close() error {
	return syscall.Close(m.fd)
}

// Run reads uevents and sends video device events to the channel until
// ctx is canceled. The channel is closed when Run returns.
func (m *Monitor) Run(ctx context.Context, events chan<- Event) error {
	defer close(events)

	buf := make([]byte, 8192)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		// Bounded receive timeout so cancellation is noticed between
		// events.
		tv := syscall.Timeval{Sec: 1}
		if err := syscall.SetsockoptTimeval(m.fd, syscall.SOL_SOCKET, syscall.SO_RCVTIMEO, &tv); err != nil {
			return err
		}

		n, _, err := syscall.Recvfrom(m.fd, buf, 0)
		if err != nil {
			if errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK) || errors.Is(err, syscall.EINTR) {
				continue
			}
			return err
		}
		if n == 0 {
			continue
		}

		event, ok := ParseUEvent(buf[:n])
		if !ok {
			continue
		}

		select {
		case events <- event:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// ParseUEvent extracts a video device event from a raw kernel uevent.
// The wire format is "ACTION@KOBJ\0KEY=VALUE\0KEY=VALUE\0...". Messages
// from other subsystems, and udevd rebroadcasts with their libudev
// framing, report ok false.
func ParseUEvent(data []byte) (Event, bool) {
	if len(data) == 0 {
		return Event{}, false
	}

	parts := bytes.Split(data, []byte{0})
	if len(parts[0]) == 0 {
		return Event{}, false
	}

	header := string(parts[0])
	atIdx := strings.Index(header, "@")
	if atIdx < 1 {
		return Event{}, false
	}

	event := Event{
		Action: header[:atIdx],
		KObj:   header[atIdx+1:],
	}

	subsystem := ""
	for _, part := range parts[1:] {
		if len(part) == 0 {
			continue
		}
		key, value, found := strings.Cut(string(part), "=")
		if !found || key == "" {
			continue
		}
		switch key {
		case "SUBSYSTEM":
			subsystem = value
		case "DEVNAME":
			event.Name = value
		}
	}

	if subsystem != subsystemVideo {
		return Event{}, false
	}
	if event.Name != "" {
		event.Path = "/dev/" + event.Name
	}

	return event, true
}
