// Package servo tracks the commanded angle of each servo on the robot arm.
package servo

import (
	"errors"
	"fmt"
	"math"
	"sync"
)

var (
	ErrUnknownServo    = errors.New("unknown servo")
	ErrAngleOutOfRange = errors.New("servo angle out of range")
)

type Range struct {
	Min float64
	Max float64
}

// Listener is told about every accepted angle change.
type Listener interface {
	AngleChanged(servoID int, angle float64)
}

// DefaultRanges covers the six 270° joints and the 180° gripper.
func DefaultRanges() []Range {
	return []Range{
		{0, 270}, {0, 270}, {0, 270}, {0, 270}, {0, 270}, {0, 270},
		{0, 180},
	}
}

type Bank struct {
	ranges   []Range
	listener Listener

	mu     sync.Mutex
	angles []float64
}

// NewBank validates initial against ranges. Missing initial angles start at
// the middle of their range.
func NewBank(ranges []Range, initial []float64, listener Listener) (*Bank, error) {
	if len(initial) > len(ranges) {
		return nil, fmt.Errorf("%d initial angles for %d servos", len(initial), len(ranges))
	}
	angles := make([]float64, len(ranges))
	for id, r := range ranges {
		if r.Max < r.Min {
			return nil, fmt.Errorf("servo %d range [%g, %g] is malformed", id, r.Min, r.Max)
		}
		angles[id] = roundAngle((r.Min + r.Max) / 2)
		if id < len(initial) {
			if err := checkAngle(id, ranges[id], initial[id]); err != nil {
				return nil, err
			}
			angles[id] = roundAngle(initial[id])
		}
	}
	return &Bank{ranges: ranges, listener: listener, angles: angles}, nil
}

func roundAngle(a float64) float64 {
	return math.Round(a*10) / 10
}

func checkAngle(id int, r Range, angle float64) error {
	if math.IsNaN(angle) || angle < r.Min || angle > r.Max {
		return fmt.Errorf("%w: servo %d angle %g not in [%g, %g]", ErrAngleOutOfRange, id, angle, r.Min, r.Max)
	}
	return nil
}

// Set changes one servo. It reports false when the angle was already set.
func (b *Bank) Set(id int, angle float64) (bool, error) {
	if id < 0 || id >= len(b.ranges) {
		return false, fmt.Errorf("%w: %d", ErrUnknownServo, id)
	}
	if err := checkAngle(id, b.ranges[id], angle); err != nil {
		return false, err
	}
	angle = roundAngle(angle)

	b.mu.Lock()
	if b.angles[id] == angle {
		b.mu.Unlock()
		return false, nil
	}
	b.angles[id] = angle
	b.mu.Unlock()

	if b.listener != nil {
		b.listener.AngleChanged(id, angle)
	}
	return true, nil
}

// Sync pushes every current angle to the listener, as on startup.
func (b *Bank) Sync() {
	if b.listener == nil {
		return
	}
	for id, a := range b.Angles() {
		b.listener.AngleChanged(id, a)
	}
}

func (b *Bank) Angle(id int) (float64, error) {
	if id < 0 || id >= len(b.ranges) {
		return 0, fmt.Errorf("%w: %d", ErrUnknownServo, id)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.angles[id], nil
}

func (b *Bank) Angles() []float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]float64(nil), b.angles...)
}

func (b *Bank) Range(id int) (Range, bool) {
	if id < 0 || id >= len(b.ranges) {
		return Range{}, false
	}
	return b.ranges[id], true
}

func (b *Bank) Len() int {
	return len(b.ranges)
}
