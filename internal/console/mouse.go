package console

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/Versifine/teleop/internal/joystick"
	"gonum.org/v1/gonum/spatial/r2"
)

const maxEscapeLen = 32

type escKind int

const (
	escBare escKind = iota
	escArrow
	escMouse
	escUnknown
)

type escape struct {
	kind  escKind
	arrow byte
	mouse mouseEvent
}

// mouseEvent is one SGR mouse report: ESC [ < b ; col ; row (M|m).
// Columns and rows are 1-based terminal cells.
type mouseEvent struct {
	button  int
	col     int
	row     int
	motion  bool
	release bool
}

func (e mouseEvent) leftButton() bool {
	return e.button == 0
}

// readEscape consumes the rest of a sequence that started with ESC. A lone
// ESC, with nothing buffered behind it, is escBare.
func readEscape(r *bufio.Reader) escape {
	if r.Buffered() == 0 {
		return escape{kind: escBare}
	}
	next, err := r.ReadByte()
	if err != nil || next != '[' {
		return escape{kind: escUnknown}
	}
	b, err := r.ReadByte()
	if err != nil {
		return escape{kind: escUnknown}
	}
	if b != '<' {
		return escape{kind: escArrow, arrow: b}
	}

	var sb strings.Builder
	for sb.Len() < maxEscapeLen {
		c, err := r.ReadByte()
		if err != nil {
			return escape{kind: escUnknown}
		}
		if c == 'M' || c == 'm' {
			ev, err := parseSGRMouse(sb.String(), c)
			if err != nil {
				return escape{kind: escUnknown}
			}
			return escape{kind: escMouse, mouse: ev}
		}
		sb.WriteByte(c)
	}
	return escape{kind: escUnknown}
}

func parseSGRMouse(params string, final byte) (mouseEvent, error) {
	parts := strings.Split(params, ";")
	if len(parts) != 3 {
		return mouseEvent{}, fmt.Errorf("mouse report %q: want 3 fields", params)
	}
	var v [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return mouseEvent{}, fmt.Errorf("mouse report %q: %w", params, err)
		}
		v[i] = n
	}
	code := v[0]
	ev := mouseEvent{
		button:  code & 3,
		col:     v[1],
		row:     v[2],
		motion:  code&32 != 0,
		release: final == 'm',
	}
	// Wheel events carry bit 6.
	if code&64 != 0 {
		ev.button = -1
	}
	return ev, nil
}

// surfaceCenter is the middle cell of the translate (left half) or rotate
// (right half) surface.
func surfaceCenter(right bool, cols, rows int) r2.Vec {
	x := float64(cols) / 4
	if right {
		x = 3 * float64(cols) / 4
	}
	return r2.Vec{X: x, Y: float64(rows) / 2}
}

// cellOffset converts a terminal cell into a screen offset from center.
func cellOffset(col, row int, center r2.Vec, cellW, cellH float64) r2.Vec {
	return r2.Vec{
		X: (float64(col) - center.X) * cellW,
		Y: (float64(row) - center.Y) * cellH,
	}
}

func (c *Console) handleMouse(ev mouseEvent) {
	c.mu.Lock()
	cols, rows := c.cols, c.rows
	grabbed, center := c.grabbed, c.grabCenter
	c.mu.Unlock()

	switch {
	case ev.release:
		if grabbed == nil {
			return
		}
		c.mu.Lock()
		c.grabbed = nil
		c.mu.Unlock()
		grabbed.PointerRelease()

	case ev.motion:
		if grabbed == nil {
			return
		}
		grabbed.PointerMove(cellOffset(ev.col, ev.row, center, c.opts.CellWidth, c.opts.CellHeight))

	case ev.leftButton() && grabbed == nil:
		right := ev.col > cols/2
		var s *joystick.Surface
		if right {
			s = c.rotate
		} else {
			s = c.translate
		}
		origin := surfaceCenter(right, cols, rows)
		if !s.PointerPress(cellOffset(ev.col, ev.row, origin, c.opts.CellWidth, c.opts.CellHeight)) {
			return
		}
		c.mu.Lock()
		c.grabbed, c.grabCenter = s, origin
		c.mu.Unlock()
	}
}
