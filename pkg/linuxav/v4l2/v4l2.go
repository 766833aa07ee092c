//go:build linux

// Package v4l2 provides pure Go bindings to the Video4Linux2 (V4L2) API
// for device enumeration, capability queries, and raw frame output to
// loopback devices.
//
// This package does not use cgo, enabling simple cross-compilation for
// different Linux architectures (amd64, arm64, arm).
//
// # Device Enumeration
//
// Use FindDevices to discover all V4L2 video devices:
//
//	devices, err := v4l2.FindDevices()
//	for _, dev := range devices {
//	    fmt.Printf("%s: %s\n", dev.Path, dev.Capability.Card)
//	}
//
// # Frame Output
//
// Open a device for writing, negotiate the output format, and deliver
// raw frames with plain write(2) calls:
//
//	dev, err := v4l2.OpenWriter("/dev/video0")
//	if err != nil {
//	    return err
//	}
//	defer dev.Close()
//
//	if err := dev.SetOutputFormat(1280, 720, v4l2.FourCC('Y', 'U', '1', '2')); err != nil {
//	    return err
//	}
//	_, err = dev.Write(frame)
//
// # Format Queries
//
// Query the pixel formats a device accepts on its output queue:
//
//	formats, _ := v4l2.OutputFormats("/dev/video0")
//	for _, f := range formats {
//	    fmt.Printf("%s: %s\n", v4l2.FormatFourCC(f.PixelFormat), f.FormatName)
//	}
package v4l2
