package vision

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"
)

// drawScene renders a 1300×768 page mock: a flat mid-gray background with
// a white checkbox (dark 2px border) of the given size centered at each
// requested point.
func drawScene(t *testing.T, size int, centers ...[2]int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 1300, 768))
	bg := color.RGBA{R: 120, G: 120, B: 120, A: 255}
	for y := 0; y < 768; y++ {
		for x := 0; x < 1300; x++ {
			img.Set(x, y, bg)
		}
	}

	border := color.RGBA{R: 60, G: 60, B: 60, A: 255}
	fill := color.RGBA{R: 250, G: 250, B: 250, A: 255}
	for _, c := range centers {
		x0, y0 := c[0]-size/2, c[1]-size/2
		for dy := 0; dy < size; dy++ {
			for dx := 0; dx < size; dx++ {
				col := fill
				if dx < 2 || dx >= size-2 || dy < 2 || dy >= size-2 {
					col = border
				}
				img.Set(x0+dx, y0+dy, col)
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode scene: %v", err)
	}
	return buf.Bytes()
}

func TestLocateFindsCheckboxAtAnchor(t *testing.T) {
	tests := []struct {
		name   string
		region Region
		cx, cy int
	}{
		{"full page at anchor", FullPage, 240, 290},
		{"full page off anchor", FullPage, 320, 350},
		{"main panel at anchor", MainPanel, 680, 430},
		{"main panel off anchor", MainPanel, 560, 500},
	}

	loc := NewLocator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shot := drawScene(t, 24, [2]int{tt.cx, tt.cy})

			pt, found, err := loc.Locate(shot, tt.region)
			if err != nil {
				t.Fatalf("Locate: %v", err)
			}
			if !found {
				t.Fatal("expected checkbox to be found")
			}
			if math.Abs(pt.X-float64(tt.cx)) > 5 || math.Abs(pt.Y-float64(tt.cy)) > 5 {
				t.Errorf("click point (%.0f, %.0f) too far from box center (%d, %d)",
					pt.X, pt.Y, tt.cx, tt.cy)
			}
		})
	}
}

func TestLocateIgnoresBoxOutsideRegion(t *testing.T) {
	tests := []struct {
		name   string
		region Region
		cx, cy int
	}{
		{"right of full page window", FullPage, 600, 290},
		{"above full page window", FullPage, 240, 100},
		{"left of main panel window", MainPanel, 300, 430},
		{"below main panel window", MainPanel, 680, 700},
	}

	loc := NewLocator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shot := drawScene(t, 24, [2]int{tt.cx, tt.cy})

			_, found, err := loc.Locate(shot, tt.region)
			if err != nil {
				t.Fatalf("Locate: %v", err)
			}
			if found {
				t.Error("box outside the search window should not be reported")
			}
		})
	}
}

func TestLocateRejectsWrongSizedBoxes(t *testing.T) {
	tests := []struct {
		name string
		size int
	}{
		{"too small", 8},
		{"too large", 48},
	}

	loc := NewLocator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shot := drawScene(t, tt.size, [2]int{240, 290})

			_, found, err := loc.Locate(shot, FullPage)
			if err != nil {
				t.Fatalf("Locate: %v", err)
			}
			if found {
				t.Errorf("%dpx box should be filtered out", tt.size)
			}
		})
	}
}

func TestLocatePrefersCandidateNearAnchor(t *testing.T) {
	// Two valid boxes inside the window; the one at the anchor wins.
	shot := drawScene(t, 24, [2]int{240, 290}, [2]int{380, 380})

	pt, found, err := NewLocator().Locate(shot, FullPage)
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if !found {
		t.Fatal("expected a checkbox to be found")
	}
	if math.Abs(pt.X-240) > 5 || math.Abs(pt.Y-290) > 5 {
		t.Errorf("expected anchor-adjacent box, got (%.0f, %.0f)", pt.X, pt.Y)
	}
}

func TestLocateBadImage(t *testing.T) {
	_, found, err := NewLocator().Locate([]byte("not an image"), FullPage)
	if err == nil {
		t.Fatal("expected decode error")
	}
	if found {
		t.Error("found must be false on decode failure")
	}
}

func TestDedupKeepsHigherScore(t *testing.T) {
	cands := []candidate{
		{pass: "edge", centerX: 240, centerY: 290, score: scoreEdge},
		{pass: "color", centerX: 244, centerY: 293, score: scoreColor},
		{pass: "adaptive", centerX: 300, centerY: 350, score: scoreAdaptive},
	}

	got := dedup(cands)
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates after dedup, got %d", len(got))
	}
	if got[0].pass != "color" {
		t.Errorf("duplicate pair should keep the colour candidate, got %q", got[0].pass)
	}
}

func TestAnchorBoostTiers(t *testing.T) {
	spec := regionSpecs[FullPage]
	tests := []struct {
		name   string
		cx, cy int
		w, h   int
		want   int
	}{
		{"dead center, square", 240, 290, 24, 24, 23},
		{"within 50", 280, 290, 24, 24, 18},
		{"within 80", 300, 350, 24, 24, 13},
		{"within 120", 340, 390, 24, 24, 8},
		{"far, not square", 390, 290, 26, 23, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := candidate{centerX: tt.cx, centerY: tt.cy, w: tt.w, h: tt.h}
			if got := anchorBoost(&c, spec); got != tt.want {
				t.Errorf("anchorBoost = %d, want %d", got, tt.want)
			}
		})
	}
}
