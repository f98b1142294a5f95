package joystick

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"
)

const eps = 1e-9

func near(a, b float64) bool {
	return math.Abs(a-b) <= eps
}

func TestMapPointerBoundaryPassesThrough(t *testing.T) {
	handle, v := MapPointer(r2.Vec{X: 90, Y: 0}, 90)
	if handle != (r2.Vec{X: 90, Y: 0}) {
		t.Fatalf("handle = %+v, want (90,0)", handle)
	}
	if v != (Vector{Forward: 0, Left: -90}) {
		t.Fatalf("vector = %+v, want (0,-90)", v)
	}
}

func TestMapPointerOutsideClampsToBoundary(t *testing.T) {
	handle, v := MapPointer(r2.Vec{X: 180, Y: 0}, 90)
	if !near(handle.X, 90) || !near(handle.Y, 0) {
		t.Fatalf("handle = %+v, want (90,0)", handle)
	}
	if !near(v.Forward, 0) || !near(v.Left, -90) {
		t.Fatalf("vector = %+v, want (0,-90)", v)
	}
	if math.Signbit(v.Forward) {
		t.Fatalf("forward = %g, want +0", v.Forward)
	}
}

func TestConversionHasNoNegativeZero(t *testing.T) {
	for _, screen := range []r2.Vec{{}, {X: 30}, {Y: -30}, {X: 0, Y: 45}} {
		v := ToRobot(screen)
		if math.Signbit(v.Forward) && v.Forward == 0 || math.Signbit(v.Left) && v.Left == 0 {
			t.Fatalf("ToRobot(%v) = %+v, has -0", screen, v)
		}
		back := ToScreen(v)
		if math.Signbit(back.X) && back.X == 0 || math.Signbit(back.Y) && back.Y == 0 {
			t.Fatalf("ToScreen(%+v) = %v, has -0", v, back)
		}
	}
}

func TestMapPointerZero(t *testing.T) {
	handle, v := MapPointer(r2.Vec{}, 90)
	if handle != (r2.Vec{}) || !v.IsZero() {
		t.Fatalf("MapPointer(0,0) = %+v %+v, want zero", handle, v)
	}
}

func TestMapPointerCoordinateConversion(t *testing.T) {
	tests := []struct {
		name   string
		offset r2.Vec
		want   Vector
	}{
		{"up is forward", r2.Vec{X: 0, Y: -30}, Vector{Forward: 30, Left: 0}},
		{"down is back", r2.Vec{X: 0, Y: 30}, Vector{Forward: -30, Left: 0}},
		{"left is left", r2.Vec{X: -30, Y: 0}, Vector{Forward: 0, Left: 30}},
		{"right is negative left", r2.Vec{X: 30, Y: 0}, Vector{Forward: 0, Left: -30}},
		{"upper left", r2.Vec{X: -20, Y: -40}, Vector{Forward: 40, Left: 20}},
		{"clamped lower right", r2.Vec{X: 300, Y: 400}, Vector{Forward: -72, Left: -54}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handle, v := MapPointer(tt.offset, 90)
			if !near(v.Forward, tt.want.Forward) || !near(v.Left, tt.want.Left) {
				t.Fatalf("vector = %+v, want %+v", v, tt.want)
			}
			if !near(v.Forward, -handle.Y) || !near(v.Left, -handle.X) {
				t.Fatalf("vector %+v is not the converted handle %+v", v, handle)
			}
		})
	}
}

func TestClampToRadiusInvariant(t *testing.T) {
	const radius = 90.0
	for dx := -300.0; dx <= 300; dx += 7.5 {
		for dy := -300.0; dy <= 300; dy += 7.5 {
			raw := r2.Vec{X: dx, Y: dy}
			got := ClampToRadius(raw, radius)
			n2 := r2.Norm2(got)
			if n2 > radius*radius+1e-6 {
				t.Fatalf("ClampToRadius(%v) = %v, |v|^2 = %f > R^2", raw, got, n2)
			}
			if r2.Norm2(raw) > radius*radius {
				if math.Abs(r2.Norm(got)-radius) > 1e-9 {
					t.Fatalf("ClampToRadius(%v) = %v, want magnitude %f", raw, got, radius)
				}
				if math.Abs(math.Atan2(got.Y, got.X)-math.Atan2(raw.Y, raw.X)) > 1e-12 {
					t.Fatalf("ClampToRadius(%v) = %v changed direction", raw, got)
				}
			} else if got != raw {
				t.Fatalf("ClampToRadius(%v) = %v, want unchanged", raw, got)
			}
		}
	}
}

func TestMapKeys(t *testing.T) {
	const rk = 60.0
	d := rk * math.Sqrt2 / 2

	tests := []struct {
		name       string
		keys       []Key
		want       Vector
		wantActive bool
	}{
		{"none", nil, Vector{}, false},
		{"forward", []Key{KeyForward}, Vector{Forward: rk}, true},
		{"back", []Key{KeyBack}, Vector{Forward: -rk}, true},
		{"left", []Key{KeyLeft}, Vector{Left: rk}, true},
		{"right", []Key{KeyRight}, Vector{Left: -rk}, true},
		{"forward left", []Key{KeyForward, KeyLeft}, Vector{Forward: d, Left: d}, true},
		{"forward right", []Key{KeyForward, KeyRight}, Vector{Forward: d, Left: -d}, true},
		{"back left", []Key{KeyBack, KeyLeft}, Vector{Forward: -d, Left: d}, true},
		{"back right", []Key{KeyBack, KeyRight}, Vector{Forward: -d, Left: -d}, true},
		{"forward back cancel", []Key{KeyForward, KeyBack}, Vector{}, false},
		{"all four cancel", []Key{KeyForward, KeyBack, KeyLeft, KeyRight}, Vector{}, false},
		{"cancel plus left", []Key{KeyForward, KeyBack, KeyLeft}, Vector{Left: rk}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var set KeySet
			for _, k := range tt.keys {
				set[k] = true
			}
			got, active := MapKeys(set, rk)
			if active != tt.wantActive {
				t.Fatalf("active = %v, want %v", active, tt.wantActive)
			}
			if !near(got.Forward, tt.want.Forward) || !near(got.Left, tt.want.Left) {
				t.Fatalf("MapKeys(%v) = %+v, want %+v", tt.keys, got, tt.want)
			}
			if active && math.Abs(got.Magnitude()-rk) > 1e-9 {
				t.Fatalf("magnitude = %f, want %f", got.Magnitude(), rk)
			}
		})
	}
}

func TestMapKeysDiagonalValue(t *testing.T) {
	got, _ := MapKeys(KeySet{KeyForward: true, KeyRight: true}, 60)
	if math.Abs(got.Forward-42.43) > 0.01 || math.Abs(got.Left+42.43) > 0.01 {
		t.Fatalf("forward+right = %+v, want (≈42.43, ≈-42.43)", got)
	}
}

func TestToScreenInvertsToRobot(t *testing.T) {
	p := r2.Vec{X: 12.5, Y: -40}
	if got := ToScreen(ToRobot(p)); got != p {
		t.Fatalf("ToScreen(ToRobot(%v)) = %v", p, got)
	}
}
