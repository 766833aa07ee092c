// Package pattern generates raw video frames for feeding a virtual camera.
//
// Frames are produced directly in the session's input pixel format so the
// feeder exercises the same write path as a real frame source. Both
// patterns are column-based, which keeps generation cheap: one row is
// packed per plane and replicated down the frame.
package pattern

import (
	"fmt"
	"math"

	"github.com/smazurov/loopcam/pkg/camera"
)

// Names of the available patterns.
const (
	NameHue  = "hue"
	NameBars = "bars"
)

// Generator produces frames in a fixed size and pixel format.
type Generator struct {
	width  int
	height int
	format camera.PixelFormat
	bars   bool
	buf    []byte
}

// 100% amplitude color bars, left to right.
var barColors = [8][3]uint8{
	{255, 255, 255}, // white
	{255, 255, 0},   // yellow
	{0, 255, 255},   // cyan
	{0, 255, 0},     // green
	{255, 0, 255},   // magenta
	{255, 0, 0},     // red
	{0, 0, 255},     // blue
	{0, 0, 0},       // black
}

// New creates a generator for the named pattern. Dimensions must already
// satisfy the format's alignment rules; the session negotiates those
// before the generator is built.
func New(width, height int, format camera.PixelFormat, name string) (*Generator, error) {
	g := &Generator{
		width:  width,
		height: height,
		format: format,
	}

	switch name {
	case NameHue:
	case NameBars:
		g.bars = true
	default:
		return nil, fmt.Errorf("unknown pattern %q (valid: %s, %s)", name, NameHue, NameBars)
	}

	size, err := frameSize(width, height, format)
	if err != nil {
		return nil, err
	}
	g.buf = make([]byte, size)
	return g, nil
}

// FrameSize returns the byte length of frames produced by Frame.
func (g *Generator) FrameSize() int {
	return len(g.buf)
}

// Frame renders the frame for tick n. The returned slice is reused by the
// next call.
func (g *Generator) Frame(n uint64) []byte {
	colors := g.columns(n)

	switch g.format {
	case camera.RGB24:
		g.packInterleavedRGB(colors, 0, 1, 2)
	case camera.BGR24:
		g.packInterleavedRGB(colors, 2, 1, 0)
	case camera.Gray:
		g.packGray(colors)
	case camera.I420:
		g.packI420(colors)
	case camera.NV12:
		g.packNV12(colors)
	case camera.YUY2:
		g.packYUV422(colors, 0, 1, 2, 3)
	case camera.UYVY:
		g.packYUV422(colors, 1, 0, 3, 2)
	}
	return g.buf
}

// columns returns the RGB color of each pixel column for tick n.
func (g *Generator) columns(n uint64) [][3]uint8 {
	colors := make([][3]uint8, g.width)
	if g.bars {
		for col := range colors {
			colors[col] = barColors[col*len(barColors)/g.width]
		}
		return colors
	}

	// Solid color stepping one hue degree per frame
	r, gr, b := hueToRGB(float64(n % 360))
	for col := range colors {
		colors[col] = [3]uint8{r, gr, b}
	}
	return colors
}

func (g *Generator) packInterleavedRGB(colors [][3]uint8, rOff, gOff, bOff int) {
	row := g.buf[:g.width*3]
	for col, c := range colors {
		row[col*3+rOff] = c[0]
		row[col*3+gOff] = c[1]
		row[col*3+bOff] = c[2]
	}
	replicateRows(g.buf, len(row), g.height)
}

func (g *Generator) packGray(colors [][3]uint8) {
	row := g.buf[:g.width]
	for col, c := range colors {
		y, _, _ := rgbToYUV(c[0], c[1], c[2])
		row[col] = y
	}
	replicateRows(g.buf, len(row), g.height)
}

func (g *Generator) packI420(colors [][3]uint8) {
	w, h := g.width, g.height
	yPlane := g.buf[:w*h]
	uPlane := g.buf[w*h : w*h*5/4]
	vPlane := g.buf[w*h*5/4:]

	for col, c := range colors {
		y, _, _ := rgbToYUV(c[0], c[1], c[2])
		yPlane[col] = y
	}
	replicateRows(yPlane, w, h)

	// Chroma is subsampled from the left pixel of each column pair
	for col := 0; col < w/2; col++ {
		c := colors[col*2]
		_, u, v := rgbToYUV(c[0], c[1], c[2])
		uPlane[col] = u
		vPlane[col] = v
	}
	replicateRows(uPlane, w/2, h/2)
	replicateRows(vPlane, w/2, h/2)
}

func (g *Generator) packNV12(colors [][3]uint8) {
	w, h := g.width, g.height
	yPlane := g.buf[:w*h]
	uvPlane := g.buf[w*h:]

	for col, c := range colors {
		y, _, _ := rgbToYUV(c[0], c[1], c[2])
		yPlane[col] = y
	}
	replicateRows(yPlane, w, h)

	for col := 0; col < w/2; col++ {
		c := colors[col*2]
		_, u, v := rgbToYUV(c[0], c[1], c[2])
		uvPlane[col*2] = u
		uvPlane[col*2+1] = v
	}
	replicateRows(uvPlane, w, h/2)
}

// packYUV422 fills a packed 4:2:2 row. The offsets locate Y0, U, Y1 and V
// within each four-byte pair group.
func (g *Generator) packYUV422(colors [][3]uint8, y0Off, uOff, y1Off, vOff int) {
	row := g.buf[:g.width*2]
	for col := 0; col < g.width/2; col++ {
		left := colors[col*2]
		right := colors[col*2+1]
		y0, u, v := rgbToYUV(left[0], left[1], left[2])
		y1, _, _ := rgbToYUV(right[0], right[1], right[2])

		group := row[col*4:]
		group[y0Off] = y0
		group[uOff] = u
		group[y1Off] = y1
		group[vOff] = v
	}
	replicateRows(g.buf, len(row), g.height)
}

// replicateRows copies the first row of buf into the remaining rows.
func replicateRows(buf []byte, rowLen, rows int) {
	row := buf[:rowLen]
	for i := 1; i < rows; i++ {
		copy(buf[i*rowLen:(i+1)*rowLen], row)
	}
}

// rgbToYUV converts one pixel to studio-swing BT.601.
func rgbToYUV(r, g, b uint8) (y, u, v uint8) {
	ri, gi, bi := int(r), int(g), int(b)
	y = uint8(((66*ri+129*gi+25*bi+128)>>8) + 16)
	u = uint8(((-38*ri-74*gi+112*bi+128)>>8) + 128)
	v = uint8(((112*ri-94*gi-18*bi+128)>>8) + 128)
	return y, u, v
}

// hueToRGB converts a hue angle in degrees to a fully saturated color.
func hueToRGB(h float64) (uint8, uint8, uint8) {
	x := 1 - math.Abs(math.Mod(h/60, 2)-1)
	c := uint8(math.Round(x * 255))

	switch {
	case h < 60:
		return 255, c, 0
	case h < 120:
		return c, 255, 0
	case h < 180:
		return 0, 255, c
	case h < 240:
		return 0, c, 255
	case h < 300:
		return c, 0, 255
	default:
		return 255, 0, c
	}
}

func frameSize(width, height int, format camera.PixelFormat) (int, error) {
	switch format {
	case camera.RGB24, camera.BGR24:
		return width * height * 3, nil
	case camera.Gray:
		return width * height, nil
	case camera.I420, camera.NV12:
		return width * height * 3 / 2, nil
	case camera.YUY2, camera.UYVY:
		return width * height * 2, nil
	default:
		return 0, fmt.Errorf("unsupported pixel format %v", format)
	}
}
