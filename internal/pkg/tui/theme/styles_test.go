package theme

import (
	"strings"
	"testing"
)

func TestBar(t *testing.T) {
	tests := []struct {
		ratio      float64
		wantFilled int
	}{
		{0, 0},
		{0.5, 5},
		{1, 10},
		{1.7, 10},
		{-0.2, 0},
	}
	for _, tt := range tests {
		got := Bar(tt.ratio, 10, Teal)
		if n := strings.Count(got, "█"); n != tt.wantFilled {
			t.Errorf("Bar(%v) filled = %d, want %d", tt.ratio, n, tt.wantFilled)
		}
		if n := strings.Count(got, "█") + strings.Count(got, "░"); n != 10 {
			t.Errorf("Bar(%v) width = %d, want 10", tt.ratio, n)
		}
	}
}

func TestCategoryColorCycles(t *testing.T) {
	if CategoryColor(0) != CategoryColor(len(categoryColors)) {
		t.Error("expected colors to cycle")
	}
}
