package camera

// rgbToI420 converts packed 24-bit RGB or BGR into planar I420 using
// BT.601 studio-swing coefficients. rOff and bOff are the byte offsets
// of the red and blue channels within each 3-byte pixel (0 and 2 for
// RGB, 2 and 0 for BGR).
//
// Luma is computed per pixel. Chroma is computed from the rounded
// average of each 2x2 pixel block, so width and height must be even.
// dst must hold width*height*3/2 bytes.
func rgbToI420(dst, src []byte, width, height, rOff, bOff int) {
	yPlane := dst[:width*height]
	uPlane := dst[width*height : width*height*5/4]
	vPlane := dst[width*height*5/4 : width*height*3/2]
	stride := width * 3

	for y := 0; y < height; y++ {
		row := src[y*stride : (y+1)*stride]
		out := yPlane[y*width : (y+1)*width]
		for x := 0; x < width; x++ {
			r := int(row[x*3+rOff])
			g := int(row[x*3+1])
			b := int(row[x*3+bOff])
			out[x] = byte((66*r+129*g+25*b+128)>>8 + 16)
		}
	}

	halfWidth := width / 2
	for cy := 0; cy < height/2; cy++ {
		top := src[2*cy*stride : (2*cy+1)*stride]
		bot := src[(2*cy+1)*stride : (2*cy+2)*stride]
		for cx := 0; cx < halfWidth; cx++ {
			x0 := 2 * cx * 3
			x1 := x0 + 3
			r := (int(top[x0+rOff]) + int(top[x1+rOff]) + int(bot[x0+rOff]) + int(bot[x1+rOff]) + 2) / 4
			g := (int(top[x0+1]) + int(top[x1+1]) + int(bot[x0+1]) + int(bot[x1+1]) + 2) / 4
			b := (int(top[x0+bOff]) + int(top[x1+bOff]) + int(bot[x0+bOff]) + int(bot[x1+bOff]) + 2) / 4
			uPlane[cy*halfWidth+cx] = byte((-38*r-74*g+112*b+128)>>8 + 128)
			vPlane[cy*halfWidth+cx] = byte((112*r-94*g-18*b+128)>>8 + 128)
		}
	}
}
