package dispatch

import "github.com/Versifine/teleop/internal/motion"

type State int

const (
	// StateZero: the last command sent was all zero, or nothing was sent yet.
	StateZero State = iota
	// StateActive: the last command sent moved the robot.
	StateActive
)

func (s State) String() string {
	if s == StateActive {
		return "active"
	}
	return "zero"
}

// Gate decides per tick whether a command goes out. Non-zero commands always
// go out; a zero command goes out once, on the Active→Zero edge.
type Gate struct {
	state State
}

// Decide reports whether cmd should be sent and advances the state.
func (g *Gate) Decide(cmd motion.Command) bool {
	if !cmd.IsZero() {
		g.state = StateActive
		return true
	}
	if g.state == StateActive {
		g.state = StateZero
		return true
	}
	return false
}

func (g *Gate) State() State {
	return g.state
}
