package motion

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Versifine/teleop/internal/joystick"
)

const (
	SurfaceTranslate = "translate"
	SurfaceRotate    = "rotate"
)

var (
	ErrLimitOutOfRange = errors.New("speed limit out of range")
	ErrUnknownSurface  = errors.New("unknown surface")
)

type Range struct {
	Min float64
	Max float64
}

func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

type Limits struct {
	MaxTranslate float64
	MaxRotate    float64
}

// Sink receives every recomputed command.
type Sink interface {
	Store(cmd Command)
}

// Scaler turns surface vectors into the latest Command. It implements
// joystick.Observer and listens to both the translate and rotate surfaces.
type Scaler struct {
	radius         float64
	translateRange Range
	rotateRange    Range
	sink           Sink

	mu        sync.Mutex
	limits    Limits
	translate joystick.Vector
	rotate    joystick.Vector
	cmd       Command
}

func NewScaler(radius float64, limits Limits, translateRange, rotateRange Range, sink Sink) (*Scaler, error) {
	if radius <= 0 {
		return nil, fmt.Errorf("scaler radius must be positive, got %g", radius)
	}
	if !translateRange.Contains(limits.MaxTranslate) {
		return nil, fmt.Errorf("%w: translate %g not in [%g, %g]",
			ErrLimitOutOfRange, limits.MaxTranslate, translateRange.Min, translateRange.Max)
	}
	if !rotateRange.Contains(limits.MaxRotate) {
		return nil, fmt.Errorf("%w: rotate %g not in [%g, %g]",
			ErrLimitOutOfRange, limits.MaxRotate, rotateRange.Min, rotateRange.Max)
	}
	return &Scaler{
		radius:         radius,
		translateRange: translateRange,
		rotateRange:    rotateRange,
		sink:           sink,
		limits:         limits,
	}, nil
}

func (s *Scaler) VectorChanged(surface string, v joystick.Vector) {
	if err := s.Update(surface, v); err != nil {
		slog.Warn("Ignoring vector", "surface", surface, "error", err)
	}
}

// Update records the vector of one surface and recomputes the command.
func (s *Scaler) Update(surface string, v joystick.Vector) error {
	s.mu.Lock()
	switch surface {
	case SurfaceTranslate:
		s.translate = v
	case SurfaceRotate:
		s.rotate = v
	default:
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownSurface, surface)
	}
	cmd := s.computeLocked()
	s.cmd = cmd
	// Stored under the lock so the sink sees commands in compute order.
	if s.sink != nil {
		s.sink.Store(cmd)
	}
	s.mu.Unlock()

	slog.Debug("Motion command updated", "surface", surface, "command", cmd)
	return nil
}

func (s *Scaler) computeLocked() Command {
	return Command{
		Translate: Translate{
			X: ScaleAxis(s.translate.Forward, s.radius, s.limits.MaxTranslate),
			Y: ScaleAxis(s.translate.Left, s.radius, s.limits.MaxTranslate),
		},
		Rotate: Rotate{
			Z: ScaleAxis(s.rotate.Left, s.radius, s.limits.MaxRotate),
		},
	}
}

// SetMaxTranslate changes the translate limit. The current command is left
// as is; the new limit applies from the next surface update.
func (s *Scaler) SetMaxTranslate(v float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.translateRange.Contains(v) {
		return fmt.Errorf("%w: translate %g not in [%g, %g]",
			ErrLimitOutOfRange, v, s.translateRange.Min, s.translateRange.Max)
	}
	s.limits.MaxTranslate = v
	return nil
}

// SetMaxRotate is the rotate counterpart of SetMaxTranslate.
func (s *Scaler) SetMaxRotate(v float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.rotateRange.Contains(v) {
		return fmt.Errorf("%w: rotate %g not in [%g, %g]",
			ErrLimitOutOfRange, v, s.rotateRange.Min, s.rotateRange.Max)
	}
	s.limits.MaxRotate = v
	return nil
}

func (s *Scaler) Limits() Limits {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.limits
}

func (s *Scaler) Command() Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cmd
}
