package compositor

import "streamcast/internal/core/domain"

// PiP layout constants: the camera occupies a quarter of each canvas
// dimension, inset from the bottom-right corner.
const (
	pipFraction     = 4
	pipMargin       = 20
	pipBorder       = 2
	pipCornerRadius = 12
)

// scaleRGBA resizes src to dstW x dstH with nearest-neighbor
// sampling. Raw frames are RGBA, 4 bytes per pixel.
func scaleRGBA(src domain.VideoFrame, dstW, dstH int) []byte {
	dst := make([]byte, dstW*dstH*4)
	if src.Width <= 0 || src.Height <= 0 {
		return dst
	}
	for y := 0; y < dstH; y++ {
		sy := y * src.Height / dstH
		for x := 0; x < dstW; x++ {
			sx := x * src.Width / dstW
			si := (sy*src.Width + sx) * 4
			di := (y*dstW + x) * 4
			copy(dst[di:di+4], src.Pixels[si:si+4])
		}
	}
	return dst
}

// drawPiP overlays the camera frame onto the canvas as a rounded-rect
// picture-in-picture at the bottom-right, with a translucent white
// border. The canvas is modified in place.
func drawPiP(canvas []byte, canvasW, canvasH int, camera domain.VideoFrame) {
	pipW := canvasW / pipFraction
	pipH := canvasH / pipFraction
	if pipW == 0 || pipH == 0 {
		return
	}
	scaled := scaleRGBA(camera, pipW, pipH)

	originX := canvasW - pipW - pipMargin
	originY := canvasH - pipH - pipMargin
	if originX < 0 || originY < 0 {
		return
	}

	for y := 0; y < pipH; y++ {
		for x := 0; x < pipW; x++ {
			if !insideRoundedRect(x, y, pipW, pipH, pipCornerRadius) {
				continue
			}
			di := ((originY+y)*canvasW + originX + x) * 4
			if onBorder(x, y, pipW, pipH, pipCornerRadius) {
				blendWhite(canvas[di : di+4])
				continue
			}
			si := (y*pipW + x) * 4
			copy(canvas[di:di+4], scaled[si:si+4])
		}
	}
}

// insideRoundedRect reports whether (x, y) lies within the rounded
// rectangle of the given size.
func insideRoundedRect(x, y, w, h, r int) bool {
	cx, cy := x, y
	switch {
	case x < r && y < r:
		cx, cy = r-x, r-y
	case x >= w-r && y < r:
		cx, cy = x-(w-r-1), r-y
	case x < r && y >= h-r:
		cx, cy = r-x, y-(h-r-1)
	case x >= w-r && y >= h-r:
		cx, cy = x-(w-r-1), y-(h-r-1)
	default:
		return true
	}
	return cx*cx+cy*cy <= r*r
}

// onBorder reports whether (x, y) is within the border band along the
// rounded-rect edge.
func onBorder(x, y, w, h, r int) bool {
	if !insideRoundedRect(x, y, w, h, r) {
		return false
	}
	inner := x >= pipBorder && x < w-pipBorder &&
		y >= pipBorder && y < h-pipBorder &&
		insideRoundedRect(x-pipBorder, y-pipBorder, w-2*pipBorder, h-2*pipBorder, r)
	return !inner
}

// blendWhite blends 60% white over the pixel.
func blendWhite(px []byte) {
	for i := 0; i < 3; i++ {
		px[i] = uint8((int(px[i])*40 + 255*60) / 100)
	}
	px[3] = 255
}
