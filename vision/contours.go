package vision

// blob is a connected foreground component with the bounding box and the
// area enclosed by its outer boundary (not its pixel count, so a thin
// rectangular outline reports the area of the rectangle it encloses).
type blob struct {
	x, y, w, h int
	area       float64
}

// findBlobs extracts 8-connected components from a binary mask.
func findBlobs(g *gray) []blob {
	visited := make([]bool, g.w*g.h)
	var blobs []blob
	var queue []int

	for start, v := range g.pix {
		if v == 0 || visited[start] {
			continue
		}

		minX, minY := start%g.w, start/g.w
		maxX, maxY := minX, minY
		topLeft := start

		visited[start] = true
		queue = queue[:0]
		queue = append(queue, start)
		for len(queue) > 0 {
			i := queue[len(queue)-1]
			queue = queue[:len(queue)-1]
			x, y := i%g.w, i/g.w

			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
			if y < topLeft/g.w || (y == topLeft/g.w && x < topLeft%g.w) {
				topLeft = i
			}

			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					xx, yy := x+dx, y+dy
					if xx < 0 || xx >= g.w || yy < 0 || yy >= g.h {
						continue
					}
					j := yy*g.w + xx
					if g.pix[j] != 0 && !visited[j] {
						visited[j] = true
						queue = append(queue, j)
					}
				}
			}
		}

		boundary := traceBoundary(g, topLeft%g.w, topLeft/g.w)
		blobs = append(blobs, blob{
			x:    minX,
			y:    minY,
			w:    maxX - minX + 1,
			h:    maxY - minY + 1,
			area: polygonArea(boundary),
		})
	}
	return blobs
}

// Moore neighbourhood in clockwise order starting west.
var mooreOffsets = [8][2]int{
	{-1, 0}, {-1, -1}, {0, -1}, {1, -1},
	{1, 0}, {1, 1}, {0, 1}, {-1, 1},
}

// traceBoundary walks the outer boundary of the component whose
// topmost-leftmost pixel is (sx, sy), using Moore-neighbour tracing.
// Returns the boundary pixels in order.
func traceBoundary(g *gray, sx, sy int) [][2]int {
	boundary := [][2]int{{sx, sy}}

	// Entered the start pixel coming from the west.
	cx, cy := sx, sy
	dir := 0
	for {
		found := false
		// Scan clockwise starting just after the backtrack direction.
		for i := 0; i < 8; i++ {
			d := (dir + 1 + i) % 8
			nx, ny := cx+mooreOffsets[d][0], cy+mooreOffsets[d][1]
			if nx < 0 || nx >= g.w || ny < 0 || ny >= g.h || g.at(nx, ny) == 0 {
				continue
			}
			// Backtrack direction for the next step points at the
			// previous pixel.
			cx, cy = nx, ny
			dir = (d + 4) % 8
			found = true
			break
		}
		if !found {
			// Isolated pixel.
			break
		}
		if cx == sx && cy == sy {
			break
		}
		boundary = append(boundary, [2]int{cx, cy})
		if len(boundary) > 4*g.w*g.h {
			break
		}
	}
	return boundary
}

// polygonArea is the shoelace area of the traced boundary. Degenerate
// boundaries (points, lines) yield 0.
func polygonArea(pts [][2]int) float64 {
	if len(pts) < 3 {
		return 0
	}
	var sum int
	for i := range pts {
		j := (i + 1) % len(pts)
		sum += pts[i][0]*pts[j][1] - pts[j][0]*pts[i][1]
	}
	if sum < 0 {
		sum = -sum
	}
	return float64(sum) / 2
}
