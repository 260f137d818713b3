package scraper

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/use-agent/domainrank/engine"
	"github.com/use-agent/domainrank/models"
)

// metricsJS walks the rendered page for the three metric labels and, for
// each, the nearby large-font span holding the displayed value. The site
// renders values in a compact notation ("1.2K", "3M"), so extraction
// returns the raw strings and parsing happens on our side.
const metricsJS = `() => {
	const all = Array.from(document.querySelectorAll('*'));

	const labelOf = (text) => all.find(el => el.textContent.trim() === text);

	const valueNear = (label) => {
		if (!label) return null;
		let parent = label;
		for (let i = 0; i < 8; i++) {
			parent = parent.parentElement;
			if (!parent) break;
			for (const span of parent.querySelectorAll('span')) {
				const text = span.textContent.trim();
				const fontSize = window.getComputedStyle(span).fontSize;
				if (text && /^[0-9.,KM]+$/.test(text) && parseFloat(fontSize) > 25) {
					return text;
				}
			}
		}
		return null;
	};

	return {
		domain_rating: valueNear(labelOf('Domain Rating')),
		backlinks: valueNear(labelOf('Backlinks')),
		linking_websites: valueNear(labelOf('Linking websites')),
	};
}`

// ParseMetricValue converts a displayed metric string to an integer:
// thousands separators are stripped, and the K/M suffixes scale by 10^3
// and 10^6.
func ParseMetricValue(s string) (int64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")

	scale := int64(1)
	switch {
	case strings.HasSuffix(s, "K"):
		scale = 1_000
		s = strings.TrimSuffix(s, "K")
	case strings.HasSuffix(s, "M"):
		scale = 1_000_000
		s = strings.TrimSuffix(s, "M")
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int64(f * float64(scale)), nil
}

// extractMetrics evaluates the extraction script and parses whatever
// values the page exposes. Extraction never fails the task: a thrown
// script, a missing label, or an unparseable value all leave the field
// absent, since partial data is still useful.
func extractMetrics(page engine.Page, domain string) models.Metrics {
	var m models.Metrics

	val, err := page.Eval(metricsJS)
	if err != nil {
		slog.Warn("metric extraction script failed", "domain", domain, "error", err)
		return m
	}

	fields := []struct {
		key string
		dst **int64
	}{
		{"domain_rating", &m.DomainRating},
		{"backlinks", &m.Backlinks},
		{"linking_websites", &m.LinkingWebsites},
	}
	for _, f := range fields {
		raw := val.Get(f.key)
		if raw.Nil() {
			continue
		}
		n, err := ParseMetricValue(raw.Str())
		if err != nil {
			slog.Warn("unparseable metric value",
				"domain", domain,
				"metric", f.key,
				"value", raw.Str(),
			)
			continue
		}
		v := n
		*f.dst = &v
	}
	return m
}
