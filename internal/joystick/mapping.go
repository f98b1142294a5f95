// Package joystick maps pointer and keyboard input on a circular control
// surface into a bounded vector in the robot frame.
//
// Input arrives in screen offsets from the surface center (+x right, +y down).
// Output is robot-relative (+Forward ahead, +Left to the left).
package joystick

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

type Key int

const (
	KeyForward Key = iota
	KeyBack
	KeyLeft
	KeyRight
	keyCount
)

func (k Key) String() string {
	switch k {
	case KeyForward:
		return "forward"
	case KeyBack:
		return "back"
	case KeyLeft:
		return "left"
	case KeyRight:
		return "right"
	default:
		return "unknown"
	}
}

// KeySet holds the pressed flag of each Key.
type KeySet [keyCount]bool

func (k Key) valid() bool {
	return k >= KeyForward && k < keyCount
}

// Vector is a bounded surface vector in the robot frame.
type Vector struct {
	Forward float64
	Left    float64
}

func (v Vector) IsZero() bool {
	return v.Forward == 0 && v.Left == 0
}

func (v Vector) Magnitude() float64 {
	return math.Hypot(v.Forward, v.Left)
}

// ToRobot converts a screen offset into the robot frame.
func ToRobot(screen r2.Vec) Vector {
	return Vector{Forward: negate(screen.Y), Left: negate(screen.X)}
}

// ToScreen is the inverse of ToRobot.
func ToScreen(v Vector) r2.Vec {
	return r2.Vec{X: negate(v.Left), Y: negate(v.Forward)}
}

// negate flips the sign of v, keeping zero as +0.
func negate(v float64) float64 {
	if v == 0 {
		return 0
	}
	return -v
}

// ClampToRadius keeps offset inside the disk of the given radius. Points on
// or inside the boundary pass through unchanged; points outside are pulled
// back onto it along the same direction.
func ClampToRadius(offset r2.Vec, radius float64) r2.Vec {
	if r2.Norm2(offset) <= radius*radius {
		return offset
	}
	return r2.Scale(radius, r2.Unit(offset))
}

// MapPointer clamps a raw pointer offset and converts it to the robot frame.
// It returns the clamped handle position (screen frame) and the vector.
func MapPointer(offset r2.Vec, radius float64) (r2.Vec, Vector) {
	handle := ClampToRadius(offset, radius)
	return handle, ToRobot(handle)
}

// diagonalScale is cos(45°). A diagonal key pair puts Rk·cos45° on each
// axis so the combined magnitude is Rk.
var diagonalScale = math.Sqrt2 / 2

// MapKeys converts a set of pressed keys to a vector. Each axis takes ±Rk
// and opposing keys cancel. The second result is false when no axis is
// active, in which case the vector is zero.
func MapKeys(pressed KeySet, keyRadius float64) (Vector, bool) {
	var forward, left float64
	if pressed[KeyForward] {
		forward += keyRadius
	}
	if pressed[KeyBack] {
		forward -= keyRadius
	}
	if pressed[KeyLeft] {
		left += keyRadius
	}
	if pressed[KeyRight] {
		left -= keyRadius
	}

	switch {
	case forward == 0 && left == 0:
		return Vector{}, false
	case forward != 0 && left != 0:
		return Vector{
			Forward: math.Copysign(keyRadius*diagonalScale, forward),
			Left:    math.Copysign(keyRadius*diagonalScale, left),
		}, true
	default:
		return Vector{Forward: forward, Left: left}, true
	}
}
