// Package console is the terminal operator interface. Keys i/k/j/l drive the
// translate surface, the mouse drags either surface, and ':' commands set
// servo angles and speed limits.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/Versifine/teleop/internal/event"
	"github.com/Versifine/teleop/internal/joystick"
	"github.com/Versifine/teleop/internal/motion"
	"github.com/Versifine/teleop/internal/servo"
	"golang.org/x/term"
	"gonum.org/v1/gonum/spatial/r2"
)

const (
	defaultTickInterval = 50 * time.Millisecond
	defaultKeyPulse     = 500 * time.Millisecond
	defaultCols         = 80
	defaultRows         = 24

	// SGR extended mouse reporting with button-event tracking for drags.
	mouseOn  = "\x1b[?1000h\x1b[?1002h\x1b[?1006h"
	mouseOff = "\x1b[?1006l\x1b[?1002l\x1b[?1000l"
)

var errQuit = errors.New("quit")

type Options struct {
	KeyPulse   time.Duration
	CellWidth  float64
	CellHeight float64
	Mouse      bool
	Bus        *event.Bus
	Output     io.Writer
}

type Console struct {
	translate    *joystick.Surface
	rotate       *joystick.Surface
	scaler       *motion.Scaler
	servos       *servo.Bank
	opts         Options
	tickInterval time.Duration

	outMu sync.Mutex
	out   io.Writer

	// keyMu orders keyUntil updates with the matching surface press and
	// release.
	keyMu    sync.Mutex
	keyUntil map[joystick.Key]time.Time

	mu          sync.Mutex
	cols, rows  int
	sizeFd      int
	grabbed     *joystick.Surface
	grabCenter  r2.Vec
	commandMode bool
	commandBuf  []rune
	statusWidth int
	status      event.StatusEvent
}

func New(translate, rotate *joystick.Surface, scaler *motion.Scaler, servos *servo.Bank, opts Options) *Console {
	if opts.KeyPulse <= 0 {
		opts.KeyPulse = defaultKeyPulse
	}
	if opts.CellWidth <= 0 {
		opts.CellWidth = 1
	}
	if opts.CellHeight <= 0 {
		opts.CellHeight = 1
	}
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	return &Console{
		translate:    translate,
		rotate:       rotate,
		scaler:       scaler,
		servos:       servos,
		opts:         opts,
		tickInterval: defaultTickInterval,
		out:          out,
		keyUntil:     make(map[joystick.Key]time.Time),
		cols:         defaultCols,
		rows:         defaultRows,
		sizeFd:       -1,
	}
}

// Start puts stdin into raw mode and runs the console until ctx is done or
// the operator quits.
func (c *Console) Start(ctx context.Context) error {
	if c == nil {
		return fmt.Errorf("console is nil")
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return fmt.Errorf("console needs a terminal on stdin")
	}
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("set terminal raw mode: %w", err)
	}
	defer func() {
		_ = term.Restore(fd, oldState)
		c.print("\r\n")
	}()

	outFd := int(os.Stdout.Fd())
	if term.IsTerminal(outFd) {
		c.mu.Lock()
		c.sizeFd = outFd
		c.mu.Unlock()
		c.refreshSize()
	}

	if c.opts.Mouse {
		c.print(mouseOn)
		defer c.print(mouseOff)
	}

	return c.Run(ctx, os.Stdin)
}

// Run reads operator input from r. It returns nil on quit, EOF or when ctx
// is done.
func (c *Console) Run(ctx context.Context, r io.Reader) error {
	if c.translate == nil || c.rotate == nil {
		return fmt.Errorf("console surfaces are nil")
	}
	if c.scaler == nil || c.servos == nil {
		return fmt.Errorf("console scaler or servo bank is nil")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if bus := c.opts.Bus; bus != nil {
		defer bus.Subscribe(event.TopicStatus, func(raw any) {
			if st, ok := raw.(event.StatusEvent); ok {
				c.setStatus(st)
			}
		})()
		defer bus.Subscribe(event.TopicVector, func(any) {
			c.renderStatusLine()
		})()
	}

	c.printf("[teleop] console started (i/k/j/l pulse, mouse drag, x stop, : command, q quit)\r\n")
	c.renderStatusLine()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.tickLoop(ctx)
	}()
	defer func() {
		cancel()
		wg.Wait()
	}()

	done := make(chan error, 1)
	go func() { done <- c.readLoop(ctx, bufio.NewReader(r)) }()

	select {
	case <-ctx.Done():
		return nil
	case err := <-done:
		if errors.Is(err, errQuit) || errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
}

func (c *Console) readLoop(ctx context.Context, reader *bufio.Reader) error {
	for {
		b, err := reader.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return err
			}
			return fmt.Errorf("read console input: %w", err)
		}
		if ctx.Err() != nil {
			return nil
		}
		if err := c.handleByte(reader, b); err != nil {
			return err
		}
	}
}

func (c *Console) tickLoop(ctx context.Context) {
	ticker := time.NewTicker(c.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			c.expireKeys(now)
			c.refreshSize()
			c.renderStatusLine()
		}
	}
}

func (c *Console) handleByte(reader *bufio.Reader, b byte) error {
	if b == 27 {
		esc := readEscape(reader)
		if c.isCommandMode() {
			if esc.kind == escBare {
				c.cancelCommand()
			}
			return nil
		}
		switch esc.kind {
		case escArrow:
			if k, ok := arrowKey(esc.arrow); ok {
				c.pulse(k, time.Now())
			}
		case escMouse:
			c.handleMouse(esc.mouse)
		}
		c.renderStatusLine()
		return nil
	}

	if c.isCommandMode() {
		c.handleCommandByte(b)
		return nil
	}

	switch b {
	case 3, 'q', 'Q': // Ctrl-C
		c.clearInput()
		return errQuit
	case ':':
		c.enterCommandMode()
		return nil
	case 'x', 'X', ' ':
		c.clearInput()
	default:
		if k, ok := letterKey(b); ok {
			c.pulse(k, time.Now())
		}
	}
	c.renderStatusLine()
	return nil
}

func letterKey(b byte) (joystick.Key, bool) {
	switch b {
	case 'i', 'I':
		return joystick.KeyForward, true
	case 'k', 'K':
		return joystick.KeyBack, true
	case 'j', 'J':
		return joystick.KeyLeft, true
	case 'l', 'L':
		return joystick.KeyRight, true
	}
	return 0, false
}

func arrowKey(b byte) (joystick.Key, bool) {
	switch b {
	case 'A':
		return joystick.KeyForward, true
	case 'B':
		return joystick.KeyBack, true
	case 'D':
		return joystick.KeyLeft, true
	case 'C':
		return joystick.KeyRight, true
	}
	return 0, false
}

// pulse holds k down until now+KeyPulse. Autorepeat keeps re-arming it.
func (c *Console) pulse(k joystick.Key, now time.Time) {
	c.keyMu.Lock()
	defer c.keyMu.Unlock()
	if !c.translate.KeyboardEnabled() {
		return
	}
	if _, held := c.keyUntil[k]; !held {
		c.translate.KeyPress(k)
	}
	c.keyUntil[k] = now.Add(c.opts.KeyPulse)
}

func (c *Console) expireKeys(now time.Time) {
	c.keyMu.Lock()
	defer c.keyMu.Unlock()
	for k, until := range c.keyUntil {
		if !now.Before(until) {
			delete(c.keyUntil, k)
			c.translate.KeyRelease(k)
		}
	}
}

func (c *Console) releaseKeys() {
	c.keyMu.Lock()
	defer c.keyMu.Unlock()
	for k := range c.keyUntil {
		c.translate.KeyRelease(k)
	}
	clear(c.keyUntil)
}

// clearInput drops every held key and any pointer grab.
func (c *Console) clearInput() {
	c.releaseKeys()

	c.mu.Lock()
	grabbed := c.grabbed
	c.grabbed = nil
	c.mu.Unlock()
	if grabbed != nil {
		grabbed.PointerRelease()
	}
}

func (c *Console) refreshSize() {
	c.mu.Lock()
	fd := c.sizeFd
	c.mu.Unlock()
	if fd < 0 {
		return
	}
	cols, rows, err := term.GetSize(fd)
	if err != nil {
		return
	}
	c.setSize(cols, rows)
}

func (c *Console) setSize(cols, rows int) {
	if cols <= 0 || rows <= 0 {
		return
	}
	c.mu.Lock()
	c.cols, c.rows = cols, rows
	c.mu.Unlock()
}

func (c *Console) setStatus(st event.StatusEvent) {
	c.mu.Lock()
	if st.At.Before(c.status.At) {
		c.mu.Unlock()
		return
	}
	c.status = st
	c.mu.Unlock()

	if st.Level == event.StatusError {
		slog.Debug("Status error", "message", st.Message)
	}
	c.renderStatusLine()
}

func (c *Console) currentStatus() event.StatusEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Console) statusLine() string {
	t := c.translate.Vector()
	r := c.rotate.Vector()
	cmd := c.scaler.Command()
	st := c.currentStatus()

	msg := st.Message
	if msg == "" {
		msg = "idle"
	}
	if st.Level == event.StatusError {
		msg = "!" + msg
	}

	return fmt.Sprintf(
		"[T fwd:%6.1f left:%6.1f | R left:%6.1f | x:%.3f y:%.3f z:%.3f | kbd:%s | %s]",
		t.Forward, t.Left, r.Left,
		cmd.Translate.X, cmd.Translate.Y, cmd.Rotate.Z,
		boolLabel(c.translate.KeyboardEnabled()),
		msg,
	)
}

func (c *Console) renderStatusLine() {
	c.mu.Lock()
	if c.commandMode {
		c.mu.Unlock()
		return
	}
	width := c.statusWidth
	c.mu.Unlock()

	line := c.statusLine()
	padding := ""
	if width > len(line) {
		padding = strings.Repeat(" ", width-len(line))
	}
	c.printf("\r%s%s", line, padding)

	c.mu.Lock()
	if len(line) > c.statusWidth {
		c.statusWidth = len(line)
	}
	c.mu.Unlock()
}

func (c *Console) isCommandMode() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commandMode
}

func (c *Console) print(s string) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	_, _ = io.WriteString(c.out, s)
}

func (c *Console) printf(format string, args ...any) {
	c.print(fmt.Sprintf(format, args...))
}

func boolLabel(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
