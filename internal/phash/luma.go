package phash

import "image"

// grayFrom16 applies the image/color GrayModel weights to 16-bit premultiplied channels.
func grayFrom16(r, g, b uint32) uint32 {
	return (19595*r + 38470*g + 7471*b + 1<<15) >> 24
}

// boxDownsample averages the luma of img into a cols x rows grid. Every
// source pixel lands in exactly one cell. Images smaller than the grid are
// point-sampled instead.
func boxDownsample(img image.Image, cols, rows int) []uint32 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	cells := make([]uint32, cols*rows)

	if w < cols || h < rows {
		for cy := 0; cy < rows; cy++ {
			for cx := 0; cx < cols; cx++ {
				x := b.Min.X + cx*w/cols
				y := b.Min.Y + cy*h/rows
				cells[cy*cols+cx] = lumaAt(img, x, y)
			}
		}
		return cells
	}

	sums := make([]uint64, cols*rows)
	counts := make([]uint64, cols*rows)
	colCell := make([]int, w)
	for x := 0; x < w; x++ {
		colCell[x] = x * cols / w
	}

	for y := 0; y < h; y++ {
		rowBase := (y * rows / h) * cols
		accumulateRow(img, b.Min.X, b.Min.Y+y, w, func(x int, luma uint32) {
			idx := rowBase + colCell[x]
			sums[idx] += uint64(luma)
			counts[idx]++
		})
	}
	for i := range cells {
		cells[i] = uint32(sums[i] / counts[i])
	}
	return cells
}

// accumulateRow calls fn with the luma of each pixel on row y.
func accumulateRow(img image.Image, minX, y, w int, fn func(x int, luma uint32)) {
	switch src := img.(type) {
	case *image.YCbCr:
		off := src.YOffset(minX, y)
		for x := 0; x < w; x++ {
			fn(x, uint32(src.Y[off+x]))
		}
	case *image.Gray:
		off := src.PixOffset(minX, y)
		for x := 0; x < w; x++ {
			fn(x, uint32(src.Pix[off+x]))
		}
	case *image.RGBA:
		off := src.PixOffset(minX, y)
		for x := 0; x < w; x++ {
			p := src.Pix[off+x*4 : off+x*4+3 : off+x*4+3]
			fn(x, grayFrom16(uint32(p[0])*0x101, uint32(p[1])*0x101, uint32(p[2])*0x101))
		}
	case *image.NRGBA:
		off := src.PixOffset(minX, y)
		for x := 0; x < w; x++ {
			p := src.Pix[off+x*4 : off+x*4+4 : off+x*4+4]
			if p[3] != 0xff {
				fn(x, lumaAt(img, minX+x, y))
				continue
			}
			fn(x, grayFrom16(uint32(p[0])*0x101, uint32(p[1])*0x101, uint32(p[2])*0x101))
		}
	default:
		for x := 0; x < w; x++ {
			fn(x, lumaAt(img, minX+x, y))
		}
	}
}

func lumaAt(img image.Image, x, y int) uint32 {
	switch src := img.(type) {
	case *image.YCbCr:
		return uint32(src.Y[src.YOffset(x, y)])
	case *image.Gray:
		return uint32(src.GrayAt(x, y).Y)
	}
	r, g, b, _ := img.At(x, y).RGBA()
	return grayFrom16(r, g, b)
}
