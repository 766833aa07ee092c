//go:build linux && arm && !arm64

package v4l2

import "unsafe"

// Compile-time struct size assertions for 32-bit ARM.
// These will cause build failures if struct sizes don't match kernel expectations.
var (
	_ [104]byte = [unsafe.Sizeof(v4l2Capability{})]byte{}
	_ [64]byte  = [unsafe.Sizeof(v4l2Fmtdesc{})]byte{}
	_ [48]byte  = [unsafe.Sizeof(v4l2PixFormat{})]byte{}
	_ [204]byte = [unsafe.Sizeof(v4l2Format{})]byte{} // Smaller on 32-bit, no union padding
)

// IOCTL constants for 32-bit ARM.
// Note: Most values are the same as 64-bit since the struct sizes are identical.
// The v4l2_format struct differs because its union is only 4-byte aligned here.
const (
	vidiocQuerycap = 0x80685600
	vidiocEnumFmt  = 0xc0405602
	vidiocSFmt     = 0xc0cc5605 // VIDIOC_S_FMT - v4l2_format is 204 bytes on 32-bit
)

// v4l2Capability has size 104 bytes (same as 64-bit).
type v4l2Capability struct {
	driver       [16]byte
	card         [32]byte
	busInfo      [32]byte
	version      uint32
	capabilities uint32
	deviceCaps   uint32
	reserved     [3]uint32
}

// v4l2Fmtdesc has size 64 bytes (same as 64-bit).
type v4l2Fmtdesc struct {
	index       uint32
	typ         uint32
	flags       uint32
	description [32]byte
	pixelformat uint32
	mbusCode    uint32
	reserved    [3]uint32
}

// v4l2PixFormat has size 48 bytes (same as 64-bit).
type v4l2PixFormat struct {
	width        uint32
	height       uint32
	pixelformat  uint32
	field        uint32
	bytesperline uint32
	sizeimage    uint32
	colorspace   uint32
	priv         uint32
	flags        uint32
	ycbcrEnc     uint32
	quantization uint32
	xferFunc     uint32
}

// v4l2Format has size 204 bytes on 32-bit (vs 208 on 64-bit).
// Pointers are 4 bytes here, so the fmt union starts right after typ.
type v4l2Format struct {
	typ uint32
	pix v4l2PixFormat // union with pix_mp, win, vbi, ...
	_   [152]byte     // padding to the full 200-byte union
}
