package scoring

import (
	"math"
	"testing"
)

func ptr(v float64) *float64 {
	return &v
}

func TestFuse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content float64
		audio   *float64
		video   *float64
		expect  float64
	}{
		{
			name:    "content only keeps the content score",
			content: 8.0,
			expect:  8.0,
		},
		{
			name:    "content and audio renormalize to 0.75 and 0.25",
			content: 8.0,
			audio:   ptr(4.0),
			expect:  7.0,
		},
		{
			name:    "content and video renormalize to 0.75 and 0.25",
			content: 8.0,
			video:   ptr(4.0),
			expect:  7.0,
		},
		{
			name:    "equal signals fuse to the same value",
			content: 6.0,
			audio:   ptr(6.0),
			video:   ptr(6.0),
			expect:  6.0,
		},
		{
			name:    "all signals use default weights",
			content: 10.0,
			audio:   ptr(5.0),
			video:   ptr(0.0),
			expect:  7.0,
		},
		{
			name:    "rounds to two decimals",
			content: 7.0,
			audio:   ptr(3.333),
			video:   ptr(9.111),
			expect:  6.69,
		},
		{
			name:    "clamps above range",
			content: 14.0,
			expect:  10.0,
		},
		{
			name:    "clamps below range",
			content: -3.0,
			audio:   ptr(-1.0),
			expect:  0.0,
		},
		{
			name:    "zero audio is a present signal",
			content: 8.0,
			audio:   ptr(0.0),
			expect:  6.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Fuse(tt.content, tt.audio, tt.video); got != tt.expect {
				t.Fatalf("expected %v, got %v", tt.expect, got)
			}
		})
	}
}

func TestFuseAlwaysWithinRange(t *testing.T) {
	t.Parallel()

	values := []float64{-100, -0.5, 0, 0.01, 4.999, 5, 7.5, 9.99, 10, 10.01, 1000}
	for _, c := range values {
		for _, a := range values {
			for _, v := range values {
				got := Fuse(c, ptr(a), ptr(v))
				if got < MinScore || got > MaxScore {
					t.Fatalf("fuse(%v, %v, %v) = %v is out of range", c, a, v, got)
				}
				if Round(got) != got {
					t.Fatalf("fuse(%v, %v, %v) = %v is not rounded", c, a, v, got)
				}
			}
		}
	}
}

func TestWeightsFuseCustom(t *testing.T) {
	t.Parallel()

	w := Weights{Content: 0.5, Audio: 0.5, Video: 0}
	if got := w.Fuse(10, ptr(0), ptr(10)); got != 5 {
		t.Fatalf("expected 5, got %v", got)
	}

	zero := Weights{}
	if got := zero.Fuse(6.456, ptr(1), nil); got != 6.46 {
		t.Fatalf("expected content fallback 6.46, got %v", got)
	}
}

func TestClamp(t *testing.T) {
	t.Parallel()

	if got := Clamp(math.NaN()); got != MinScore {
		t.Fatalf("expected NaN to clamp to %v, got %v", MinScore, got)
	}
	if got := Clamp(math.Inf(1)); got != MaxScore {
		t.Fatalf("expected +Inf to clamp to %v, got %v", MaxScore, got)
	}
	if got := Clamp(3.3); got != 3.3 {
		t.Fatalf("expected in-range value to be kept, got %v", got)
	}
}
