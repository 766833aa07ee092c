package camera

import (
	"fmt"
	"strings"

	"github.com/smazurov/loopcam/pkg/linuxav/v4l2"
)

// PixelFormat identifies a raw frame layout by its V4L2 four-character
// code.
type PixelFormat uint32

// Supported pixel formats.
const (
	RGB24 PixelFormat = 0x33424752 // 'RGB3'
	BGR24 PixelFormat = 0x33524742 // 'BGR3'
	Gray  PixelFormat = 0x59455247 // 'GREY'
	I420  PixelFormat = 0x32315559 // 'YU12'
	NV12  PixelFormat = 0x3231564E // 'NV12'
	YUY2  PixelFormat = 0x56595559 // 'YUYV'
	UYVY  PixelFormat = 0x59565955 // 'UYVY'
)

// String returns the four-character code, e.g. "RGB3".
func (f PixelFormat) String() string {
	return v4l2.FormatFourCC(uint32(f))
}

// formatAliases maps common format names onto supported formats.
var formatAliases = map[string]PixelFormat{
	"rgb":   RGB24,
	"rgb24": RGB24,
	"bgr":   BGR24,
	"bgr24": BGR24,
	"gray":  Gray,
	"grey":  Gray,
	"i420":  I420,
	"nv12":  NV12,
	"yuy2":  YUY2,
	"yuyv":  YUY2,
	"uyvy":  UYVY,
}

// ParsePixelFormat maps a format name ("rgb24", "i420") or a V4L2
// four-character code ("RGB3", "YU12") onto a supported pixel format.
func ParsePixelFormat(code string) (PixelFormat, error) {
	if f, ok := formatAliases[strings.ToLower(code)]; ok {
		return f, nil
	}
	if len(code) == 4 {
		f := PixelFormat(v4l2.FourCC(code[0], code[1], code[2], code[3]))
		if _, ok := formats[f]; ok {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, code)
}

type conversion int

const (
	convertNone conversion = iota
	convertRGBToI420
	convertBGRToI420
)

// formatSpec fixes the native output format, the frame size formulas,
// and the conversion for one supported input format.
type formatSpec struct {
	output     PixelFormat
	inputSize  func(w, h int) int
	outputSize func(w, h int) int
	convert    conversion
	evenWidth  bool
	evenHeight bool
}

// formats is the closed set of supported input formats. RGB and BGR
// frames are converted to planar I420; everything else passes through
// unmodified.
var formats = map[PixelFormat]formatSpec{
	RGB24: {output: I420, inputSize: sizeRGB, outputSize: sizeYUV420, convert: convertRGBToI420, evenWidth: true, evenHeight: true},
	BGR24: {output: I420, inputSize: sizeRGB, outputSize: sizeYUV420, convert: convertBGRToI420, evenWidth: true, evenHeight: true},
	Gray:  {output: Gray, inputSize: sizeGray, outputSize: sizeGray},
	I420:  {output: I420, inputSize: sizeYUV420, outputSize: sizeYUV420, evenWidth: true, evenHeight: true},
	NV12:  {output: NV12, inputSize: sizeYUV420, outputSize: sizeYUV420, evenWidth: true, evenHeight: true},
	YUY2:  {output: YUY2, inputSize: sizeYUV422, outputSize: sizeYUV422, evenWidth: true},
	UYVY:  {output: UYVY, inputSize: sizeYUV422, outputSize: sizeYUV422, evenWidth: true},
}

func sizeRGB(w, h int) int    { return w * h * 3 }
func sizeGray(w, h int) int   { return w * h }
func sizeYUV420(w, h int) int { return w * h * 3 / 2 }
func sizeYUV422(w, h int) int { return w * h * 2 }

// negotiated is the fixed frame layout of a session: the format written
// to the devices, the exact frame byte sizes, and the conversion Send
// applies.
type negotiated struct {
	input      PixelFormat
	output     PixelFormat
	inputSize  int
	outputSize int
	convert    conversion
}

// negotiate resolves a requested input format and dimensions into the
// session frame layout. Unknown codes and dimensions the format cannot
// represent are rejected here, before any device is touched.
func negotiate(format PixelFormat, width, height int) (negotiated, error) {
	if width <= 0 || height <= 0 {
		return negotiated{}, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}

	spec, ok := formats[format]
	if !ok {
		return negotiated{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	if (spec.evenWidth && width%2 != 0) || (spec.evenHeight && height%2 != 0) {
		return negotiated{}, fmt.Errorf("%w: %s requires even dimensions, got %dx%d",
			ErrInvalidDimensions, format, width, height)
	}

	return negotiated{
		input:      format,
		output:     spec.output,
		inputSize:  spec.inputSize(width, height),
		outputSize: spec.outputSize(width, height),
		convert:    spec.convert,
	}, nil
}
