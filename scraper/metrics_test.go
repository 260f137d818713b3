package scraper

import "testing"

func TestParseMetricValue(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"87", 87, false},
		{"12,345", 12345, false},
		{"1.2K", 1200, false},
		{"3M", 3000000, false},
		{"1.5M", 1500000, false},
		{"2,4K", 24000, false}, // separator stripped before suffix scaling
		{"0", 0, false},
		{"", 0, true},
		{"N/A", 0, true},
		{"K", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMetricValue(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseMetricValue(%q) = %d, want error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseMetricValue(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseMetricValue(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}
