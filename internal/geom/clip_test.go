package geom

import (
	"testing"
)

func TestLineIntersect(t *testing.T) {
	p := Point{1.0, 2.0}
	q := Point{-1.0, -2.0}
	got := Line{AxisX, 0.5}.Intersect(p, q)
	want := Point{0.5, 1.0}
	if got != want {
		t.Errorf("Intersect = %v, want %v", got, want)
	}

	got = Line{AxisY, 0.0}.Intersect(Point{0, -1}, Point{2, 1})
	want = Point{1, 0}
	if got != want {
		t.Errorf("Intersect = %v, want %v", got, want)
	}
}

func TestHalfPlaneClip(t *testing.T) {
	square := []Point{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}

	tests := []struct {
		name string
		h    HalfPlane
		in   []Point
		want []Point
	}{
		{
			name: "all inside",
			h:    HalfPlane{AxisX, KeepGreater, -2},
			in:   square,
			want: square,
		},
		{
			name: "all outside",
			h:    HalfPlane{AxisX, KeepGreater, 2},
			in:   square,
			want: nil,
		},
		{
			name: "cut right half",
			h:    HalfPlane{AxisX, KeepGreater, 0},
			in:   square,
			want: []Point{{1, -1}, {1, 1}, {0, 1}, {0, -1}},
		},
		{
			name: "cut bottom half",
			h:    HalfPlane{AxisY, KeepLess, 0},
			in:   square,
			want: []Point{{-1, -1}, {1, -1}, {1, 0}, {-1, 0}},
		},
		{
			name: "empty input",
			h:    HalfPlane{AxisX, KeepGreater, 0},
			in:   nil,
			want: nil,
		},
		{
			name: "single vertex inside",
			h:    HalfPlane{AxisX, KeepGreater, 0},
			in:   []Point{{0.5, 0.5}},
			want: []Point{{0.5, 0.5}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.h.Clip(tt.in, nil)
			if !samePolygon(got, tt.want) {
				t.Errorf("Clip = %v, want %v (up to rotation)", got, tt.want)
			}
		})
	}
}

func TestHalfPlaneContains(t *testing.T) {
	h := HalfPlane{AxisY, KeepGreater, 1.5}
	if !h.Contains(Point{0, 2}) {
		t.Error("point above cut should be contained")
	}
	if h.Contains(Point{0, 1.5}) {
		t.Error("point on cut line is not strictly inside")
	}
	if h.Contains(Point{0, 0}) {
		t.Error("point below cut should not be contained")
	}
}

// samePolygon compares two vertex sequences up to rotation
func samePolygon(a, b []Point) bool {
	if len(a) != len(b) {
		return false
	}
	if len(a) == 0 {
		return true
	}
	for shift := range a {
		ok := true
		for i := range a {
			if a[(i+shift)%len(a)] != b[i] {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

func TestBBoxFitContains(t *testing.T) {
	points := []Point{{0, 0}, {12.3, 4.56}, {7, 8}, {-1.3, -3.7}, {-3, -5}}
	b := NewBBox()
	for _, p := range points {
		b.Fit(p)
	}
	for _, p := range points {
		if !b.Contains(p) {
			t.Errorf("box %v should contain %v", b, p)
		}
	}
	if b.Contains(Point{100, 0}) {
		t.Error("box should not contain far point")
	}
}
