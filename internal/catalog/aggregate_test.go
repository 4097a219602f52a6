package catalog

import (
	"math"
	"testing"
)

func TestAverageRating(t *testing.T) {
	tests := []struct {
		name    string
		ratings []int
		want    float64
	}{
		{"empty", nil, 0},
		{"single", []int{8}, 8},
		{"two", []int{8, 6}, 7},
		{"thirds round down", []int{10, 10, 5}, 8.33},
		{"thirds round up", []int{10, 10, 0, 0, 0, 0}, 3.33},
		{"two thirds", []int{1, 2, 2}, 1.67},
		{"half away from zero", []int{1, 0, 0, 0, 0, 0, 0, 0}, 0.13},
		{"all zero", []int{0, 0, 0}, 0},
		{"all ten", []int{10, 10}, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AverageRating(tt.ratings)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("AverageRating(%v) = %v, want %v", tt.ratings, got, tt.want)
			}
		})
	}
}

func TestAverageRatingStaysInRange(t *testing.T) {
	ratings := make([]int, 0, 11)
	for r := 0; r <= 10; r++ {
		ratings = append(ratings, r)
		got := AverageRating(ratings)
		if got < 0 || got > 10 {
			t.Fatalf("AverageRating(%v) = %v out of range", ratings, got)
		}
	}
}
