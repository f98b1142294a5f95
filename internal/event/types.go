package event

import "time"

const (
	TopicStatus Topic = "status"
	TopicVector Topic = "vector"
)

type StatusLevel int

const (
	StatusOK StatusLevel = iota
	StatusError
)

// StatusEvent is one line for the operator status indicator.
type StatusEvent struct {
	Level   StatusLevel
	Message string
	At      time.Time
}

// VectorEvent reports a new bounded vector on a named control surface.
type VectorEvent struct {
	Surface string
	Forward float64
	Left    float64
}
