package motion

import (
	"fmt"
	"log/slog"
	"math"
)

type Translate struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Rotate struct {
	Z float64 `json:"z"`
}

// Command is the body of one control request. Translate X is forward,
// Translate Y is left, Rotate Z is positive for a left turn.
type Command struct {
	Translate Translate `json:"translate"`
	Rotate    Rotate    `json:"rotate"`
}

func (c Command) IsZero() bool {
	return c.Translate.X == 0 && c.Translate.Y == 0 && c.Rotate.Z == 0
}

func (c Command) String() string {
	return fmt.Sprintf("translate=(%.3f,%.3f) rotate=%.3f", c.Translate.X, c.Translate.Y, c.Rotate.Z)
}

func (c Command) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Float64("translate_x", c.Translate.X),
		slog.Float64("translate_y", c.Translate.Y),
		slog.Float64("rotate_z", c.Rotate.Z),
	)
}

// Round3 rounds to three fractional digits.
func Round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ScaleAxis maps a surface axis value in [-radius, radius] onto
// [-limit, limit]. Out-of-range input saturates at the limit.
func ScaleAxis(v, radius, limit float64) float64 {
	if radius <= 0 {
		return 0
	}
	out := clamp(Round3(v/radius*limit), -limit, limit)
	if out == 0 {
		// Normalize -0 so it encodes as 0.
		return 0
	}
	return out
}
