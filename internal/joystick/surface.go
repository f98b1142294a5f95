package joystick

import (
	"log/slog"
	"sync"

	"gonum.org/v1/gonum/spatial/r2"
)

// InputState is the raw input seen by one surface.
type InputState struct {
	Engaged bool
	Pointer r2.Vec
	Pressed KeySet
}

func (s InputState) anyKey() bool {
	for _, p := range s.Pressed {
		if p {
			return true
		}
	}
	return false
}

// Observer receives every vector the surface emits, including resets.
// Observers run synchronously and must not call back into the Surface.
type Observer interface {
	VectorChanged(surface string, v Vector)
}

type ObserverFunc func(surface string, v Vector)

func (f ObserverFunc) VectorChanged(surface string, v Vector) { f(surface, v) }

// Surface is one control surface. It owns its InputState and recomputes the
// bounded vector on every input event.
type Surface struct {
	name      string
	radius    float64
	keyRadius float64

	mu        sync.Mutex
	keyboard  bool
	state     InputState
	handle    r2.Vec
	vector    Vector
	observers []Observer
}

func NewSurface(name string, radius, keyRadius float64) *Surface {
	return &Surface{
		name:      name,
		radius:    radius,
		keyRadius: keyRadius,
	}
}

func (s *Surface) Name() string { return s.name }

func (s *Surface) Radius() float64 { return s.radius }

func (s *Surface) KeyRadius() float64 { return s.keyRadius }

func (s *Surface) Observe(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// PointerPress engages the surface when offset lies inside the outer radius.
// A press outside only records the position.
func (s *Surface) PointerPress(offset r2.Vec) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Pointer = offset
	if r2.Norm2(offset) > s.radius*s.radius {
		return false
	}
	s.state.Engaged = true
	s.movePointerLocked(offset)
	return true
}

func (s *Surface) PointerMove(offset r2.Vec) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.Engaged {
		return
	}
	s.movePointerLocked(offset)
}

func (s *Surface) PointerRelease() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.Engaged {
		return
	}
	s.state.Engaged = false
	s.resetLocked()
}

func (s *Surface) movePointerLocked(offset r2.Vec) {
	handle, v := MapPointer(offset, s.radius)
	s.state.Pointer = offset
	s.handle = handle
	s.emitLocked(v)
}

// SetKeyboardEnabled toggles keyboard control. Disabling clears every key
// and resets the vector to zero.
func (s *Surface) SetKeyboardEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keyboard = enabled
	if enabled {
		return
	}
	s.state.Pressed = KeySet{}
	s.resetLocked()
}

func (s *Surface) KeyboardEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keyboard
}

func (s *Surface) KeyPress(k Key) {
	s.setKey(k, true)
}

func (s *Surface) KeyRelease(k Key) {
	s.setKey(k, false)
}

func (s *Surface) setKey(k Key, down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.keyboard || !k.valid() {
		return
	}
	if s.state.Pressed[k] == down {
		return
	}
	s.state.Pressed[k] = down

	v, active := MapKeys(s.state.Pressed, s.keyRadius)
	if !active {
		s.resetLocked()
		return
	}
	s.handle = ToScreen(v)
	s.emitLocked(v)
}

func (s *Surface) resetLocked() {
	s.handle = r2.Vec{}
	s.emitLocked(Vector{})
}

func (s *Surface) emitLocked(v Vector) {
	s.vector = v
	slog.Debug("Surface vector changed", "surface", s.name, "forward", v.Forward, "left", v.Left)
	for _, o := range s.observers {
		o.VectorChanged(s.name, v)
	}
}

func (s *Surface) Vector() Vector {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vector
}

// Handle is the handle position in screen offsets, for renderers.
func (s *Surface) Handle() r2.Vec {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}

func (s *Surface) State() InputState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Surface) AnyKeyPressed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.anyKey()
}
