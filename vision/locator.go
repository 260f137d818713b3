// Package vision locates the verification checkbox in page screenshots.
//
// The checkbox renders as a small near-square white box with a thin dark
// border, at a roughly predictable position for each page layout. Three
// independent detection passes (white-fill colour mask, adaptive
// threshold, Canny edges) each propose candidates; geometric filters and
// anchor-distance scoring pick the winner. A not-found result is a normal
// outcome, not an error: it usually means no challenge is on screen.
package vision

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"sort"
)

// Region selects the search window and anchor for one of the two page
// layouts the challenge appears in.
type Region int

const (
	// FullPage is the interstitial challenge covering the whole page.
	FullPage Region = iota
	// MainPanel is the challenge embedded in the page's main content panel.
	MainPanel
)

func (r Region) String() string {
	switch r {
	case FullPage:
		return "full_page"
	case MainPanel:
		return "main_panel"
	default:
		return fmt.Sprintf("Region(%d)", int(r))
	}
}

// Point is a click target in viewport pixel coordinates.
type Point struct {
	X float64
	Y float64
}

// Geometric filters applied to every candidate regardless of pass.
const (
	minBoxSize = 18
	maxBoxSize = 32

	minAspect = 0.85
	maxAspect = 1.15

	minContourArea = 300.0

	// Candidates whose centers are closer than this are duplicates of
	// the same box found by different passes.
	dedupRadius = 15.0
)

// Per-pass base scores. The colour pass keys on the checkbox fill
// directly and is the most trustworthy; edges are the noisiest.
const (
	scoreColor    = 10
	scoreAdaptive = 8
	scoreEdge     = 6
)

// regionSpec is the search window and expected center for a layout. The
// rectangles are calibrated against a 1300×768 viewport.
type regionSpec struct {
	xMin, xMax int
	yMin, yMax int
	anchorX    int
	anchorY    int
}

var regionSpecs = map[Region]regionSpec{
	FullPage:  {xMin: 150, xMax: 400, yMin: 200, yMax: 400, anchorX: 240, anchorY: 290},
	MainPanel: {xMin: 500, xMax: 900, yMin: 300, yMax: 550, anchorX: 680, anchorY: 430},
}

type candidate struct {
	pass    string
	x, y    int
	w, h    int
	centerX int
	centerY int
	score   int
}

// Locator finds checkbox click points in screenshots. It is stateless
// and safe for concurrent use.
type Locator struct{}

func NewLocator() *Locator {
	return &Locator{}
}

// Locate decodes the screenshot and searches the given region for the
// checkbox. The bool is false when no candidate survives the filters;
// the error covers undecodable input only.
func (l *Locator) Locate(screenshot []byte, region Region) (Point, bool, error) {
	img, _, err := image.Decode(bytes.NewReader(screenshot))
	if err != nil {
		return Point{}, false, fmt.Errorf("decode screenshot: %w", err)
	}

	spec, ok := regionSpecs[region]
	if !ok {
		return Point{}, false, fmt.Errorf("unknown region %v", region)
	}

	gs := grayscale(img)

	var candidates []candidate
	candidates = appendCandidates(candidates, "color", scoreColor, findBlobs(whiteMask(img)), spec)
	candidates = appendCandidates(candidates, "adaptive", scoreAdaptive,
		findBlobs(adaptiveThresholdInv(gs, 11, 2)), spec)

	for _, th := range [][2]float64{{10, 50}, {20, 60}, {30, 90}} {
		edges := dilate3x3(canny(gs, th[0], th[1]), 2)
		candidates = appendCandidates(candidates, "edge", scoreEdge, findBlobs(edges), spec)
	}

	candidates = dedup(candidates)
	if len(candidates) == 0 {
		slog.Debug("no checkbox candidate", "region", region)
		return Point{}, false, nil
	}

	for i := range candidates {
		candidates[i].score += anchorBoost(&candidates[i], spec)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	best := candidates[0]
	slog.Debug("checkbox located",
		"region", region,
		"pass", best.pass,
		"x", best.centerX,
		"y", best.centerY,
		"score", best.score,
		"candidates", len(candidates),
	)
	return Point{X: float64(best.centerX), Y: float64(best.centerY)}, true, nil
}

// appendCandidates filters a pass's blobs down to checkbox-shaped boxes
// whose center lies inside the region window.
func appendCandidates(dst []candidate, pass string, score int, blobs []blob, spec regionSpec) []candidate {
	for _, b := range blobs {
		if b.w < minBoxSize || b.w > maxBoxSize || b.h < minBoxSize || b.h > maxBoxSize {
			continue
		}
		aspect := float64(b.w) / float64(b.h)
		if aspect <= minAspect || aspect >= maxAspect {
			continue
		}
		if b.area < minContourArea {
			continue
		}
		cx := b.x + b.w/2
		cy := b.y + b.h/2
		if cx <= spec.xMin || cx >= spec.xMax || cy <= spec.yMin || cy >= spec.yMax {
			continue
		}
		dst = append(dst, candidate{
			pass: pass, x: b.x, y: b.y, w: b.w, h: b.h,
			centerX: cx, centerY: cy, score: score,
		})
	}
	return dst
}

// dedup collapses candidates whose centers fall within dedupRadius of an
// already-kept one, keeping the higher-scored of the pair.
func dedup(cands []candidate) []candidate {
	var kept []candidate
	for _, c := range cands {
		merged := false
		for i := range kept {
			dx := c.centerX - kept[i].centerX
			dy := c.centerY - kept[i].centerY
			if float64(dx*dx+dy*dy) <= dedupRadius*dedupRadius {
				if c.score > kept[i].score {
					kept[i] = c
				}
				merged = true
				break
			}
		}
		if !merged {
			kept = append(kept, c)
		}
	}
	return kept
}

// anchorBoost rewards candidates near the region's expected center, plus
// a small bonus for being very close to square.
func anchorBoost(c *candidate, spec regionSpec) int {
	dx := c.centerX - spec.anchorX
	if dx < 0 {
		dx = -dx
	}
	dy := c.centerY - spec.anchorY
	if dy < 0 {
		dy = -dy
	}

	boost := 0
	switch {
	case dx < 30 && dy < 30:
		boost = 20
	case dx < 50 && dy < 50:
		boost = 15
	case dx < 80 && dy < 80:
		boost = 10
	case dx < 120 && dy < 120:
		boost = 5
	}

	aspect := float64(c.w) / float64(c.h)
	if aspect > 0.95 && aspect < 1.05 {
		boost += 3
	}
	return boost
}
