package vision

import (
	"image"
	"math"
)

// gray is a single-channel 8-bit raster. Binary masks use 0 and 255.
type gray struct {
	w, h int
	pix  []uint8
}

func newGray(w, h int) *gray {
	return &gray{w: w, h: h, pix: make([]uint8, w*h)}
}

func (g *gray) at(x, y int) uint8 {
	return g.pix[y*g.w+x]
}

func (g *gray) set(x, y int, v uint8) {
	g.pix[y*g.w+x] = v
}

// clampAt reads with replicated borders.
func (g *gray) clampAt(x, y int) uint8 {
	if x < 0 {
		x = 0
	} else if x >= g.w {
		x = g.w - 1
	}
	if y < 0 {
		y = 0
	} else if y >= g.h {
		y = g.h - 1
	}
	return g.pix[y*g.w+x]
}

// grayscale converts an image to 8-bit intensity using the standard
// luma weights.
func grayscale(img image.Image) *gray {
	b := img.Bounds()
	g := newGray(b.Dx(), b.Dy())
	for y := 0; y < g.h; y++ {
		for x := 0; x < g.w; x++ {
			r, gr, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			v := 0.299*float64(r>>8) + 0.587*float64(gr>>8) + 0.114*float64(bl>>8)
			g.set(x, y, uint8(v+0.5))
		}
	}
	return g
}

// whiteMask isolates near-white/near-gray pixels: low saturation, high
// value in HSV (S ≤ 30, V ≥ 200 on the 0-255 scale). The checkbox body
// is white, so this pass keys directly on its fill.
func whiteMask(img image.Image) *gray {
	b := img.Bounds()
	g := newGray(b.Dx(), b.Dy())
	for y := 0; y < g.h; y++ {
		for x := 0; x < g.w; x++ {
			r16, g16, b16, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			r, gr, bl := int(r16>>8), int(g16>>8), int(b16>>8)

			v := max3(r, gr, bl)
			mn := min3(r, gr, bl)
			s := 0
			if v > 0 {
				s = 255 * (v - mn) / v
			}
			if s <= 30 && v >= 200 {
				g.set(x, y, 255)
			}
		}
	}
	return g
}

func max3(a, b, c int) int {
	if b > a {
		a = b
	}
	if c > a {
		a = c
	}
	return a
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

// gaussianBlur applies a separable Gaussian with the given kernel size.
// Sigma follows the usual size-derived formula 0.3*((k-1)*0.5 - 1) + 0.8.
func gaussianBlur(g *gray, ksize int) *gray {
	sigma := 0.3*(float64(ksize-1)*0.5-1) + 0.8
	half := ksize / 2

	kernel := make([]float64, ksize)
	var sum float64
	for i := range kernel {
		d := float64(i - half)
		kernel[i] = math.Exp(-d * d / (2 * sigma * sigma))
		sum += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= sum
	}

	// Horizontal pass.
	tmp := make([]float64, g.w*g.h)
	for y := 0; y < g.h; y++ {
		for x := 0; x < g.w; x++ {
			var acc float64
			for i := -half; i <= half; i++ {
				acc += kernel[i+half] * float64(g.clampAt(x+i, y))
			}
			tmp[y*g.w+x] = acc
		}
	}

	// Vertical pass.
	out := newGray(g.w, g.h)
	for y := 0; y < g.h; y++ {
		for x := 0; x < g.w; x++ {
			var acc float64
			for i := -half; i <= half; i++ {
				yy := y + i
				if yy < 0 {
					yy = 0
				} else if yy >= g.h {
					yy = g.h - 1
				}
				acc += kernel[i+half] * tmp[yy*g.w+x]
			}
			out.set(x, y, uint8(acc+0.5))
		}
	}
	return out
}

// adaptiveThresholdInv binarizes against a local Gaussian-weighted mean
// and inverts the result: a pixel darker than its neighbourhood mean
// minus c becomes foreground. This makes thin dark borders (like a
// checkbox outline) light up on a clean background.
func adaptiveThresholdInv(g *gray, ksize int, c int) *gray {
	mean := gaussianBlur(g, ksize)
	out := newGray(g.w, g.h)
	for i, v := range g.pix {
		if int(v) <= int(mean.pix[i])-c {
			out.pix[i] = 255
		}
	}
	return out
}

// dilate3x3 grows foreground regions with a full 3×3 kernel, repeated
// iterations times. Used to bridge small gaps in edge maps.
func dilate3x3(g *gray, iterations int) *gray {
	src := g
	for it := 0; it < iterations; it++ {
		dst := newGray(src.w, src.h)
		for y := 0; y < src.h; y++ {
			for x := 0; x < src.w; x++ {
				if src.at(x, y) == 0 {
					continue
				}
				for dy := -1; dy <= 1; dy++ {
					for dx := -1; dx <= 1; dx++ {
						xx, yy := x+dx, y+dy
						if xx >= 0 && xx < src.w && yy >= 0 && yy < src.h {
							dst.set(xx, yy, 255)
						}
					}
				}
			}
		}
		src = dst
	}
	return src
}

// canny runs edge detection with the given hysteresis thresholds against
// the L1 gradient magnitude.
func canny(g *gray, low, high float64) *gray {
	// Sobel gradients.
	gx := make([]float64, g.w*g.h)
	gy := make([]float64, g.w*g.h)
	for y := 0; y < g.h; y++ {
		for x := 0; x < g.w; x++ {
			p := func(dx, dy int) float64 { return float64(g.clampAt(x+dx, y+dy)) }
			gx[y*g.w+x] = -p(-1, -1) - 2*p(-1, 0) - p(-1, 1) +
				p(1, -1) + 2*p(1, 0) + p(1, 1)
			gy[y*g.w+x] = -p(-1, -1) - 2*p(0, -1) - p(1, -1) +
				p(-1, 1) + 2*p(0, 1) + p(1, 1)
		}
	}

	mag := make([]float64, g.w*g.h)
	for i := range mag {
		mag[i] = math.Abs(gx[i]) + math.Abs(gy[i])
	}

	// Non-maximum suppression along the quantized gradient direction.
	nms := make([]float64, g.w*g.h)
	for y := 1; y < g.h-1; y++ {
		for x := 1; x < g.w-1; x++ {
			i := y*g.w + x
			m := mag[i]
			if m == 0 {
				continue
			}
			angle := math.Atan2(gy[i], gx[i]) * 180 / math.Pi
			if angle < 0 {
				angle += 180
			}

			var a, b float64
			switch {
			case angle < 22.5 || angle >= 157.5: // horizontal gradient
				a, b = mag[i-1], mag[i+1]
			case angle < 67.5: // diagonal /
				a, b = mag[i-g.w+1], mag[i+g.w-1]
			case angle < 112.5: // vertical gradient
				a, b = mag[i-g.w], mag[i+g.w]
			default: // diagonal \
				a, b = mag[i-g.w-1], mag[i+g.w+1]
			}
			if m >= a && m >= b {
				nms[i] = m
			}
		}
	}

	// Hysteresis: strong edges seed, weak edges survive only when
	// 8-connected to a strong one.
	const (
		none   = 0
		weak   = 1
		strong = 2
	)
	state := make([]uint8, g.w*g.h)
	var stack []int
	for i, m := range nms {
		if m >= high {
			state[i] = strong
			stack = append(stack, i)
		} else if m >= low {
			state[i] = weak
		}
	}

	out := newGray(g.w, g.h)
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if out.pix[i] != 0 {
			continue
		}
		out.pix[i] = 255

		x, y := i%g.w, i/g.w
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				xx, yy := x+dx, y+dy
				if xx < 0 || xx >= g.w || yy < 0 || yy >= g.h {
					continue
				}
				j := yy*g.w + xx
				if state[j] != none && out.pix[j] == 0 {
					stack = append(stack, j)
				}
			}
		}
	}
	return out
}
