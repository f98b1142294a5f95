package console

import (
	"log/slog"
	"strconv"
	"strings"
)

func (c *Console) enterCommandMode() {
	c.mu.Lock()
	c.commandMode = true
	c.commandBuf = c.commandBuf[:0]
	c.mu.Unlock()
	c.print("\r\n:")
}

func (c *Console) cancelCommand() {
	c.mu.Lock()
	c.commandMode = false
	c.commandBuf = c.commandBuf[:0]
	c.mu.Unlock()
	c.print("\r\n[teleop] command cancelled\r\n")
	c.renderStatusLine()
}

func (c *Console) handleCommandByte(b byte) {
	switch b {
	case 13, 10: // Enter
		c.mu.Lock()
		cmd := strings.TrimSpace(string(c.commandBuf))
		c.commandMode = false
		c.commandBuf = c.commandBuf[:0]
		c.mu.Unlock()

		c.print("\r\n")
		if cmd != "" {
			c.executeCommand(cmd)
		}
		c.renderStatusLine()
	case 8, 127: // Backspace
		c.mu.Lock()
		if len(c.commandBuf) > 0 {
			c.commandBuf = c.commandBuf[:len(c.commandBuf)-1]
		}
		buf := string(c.commandBuf)
		c.mu.Unlock()
		c.printf("\r:%s \r:%s", buf, buf)
	default:
		if b < 32 || b > 126 {
			return
		}
		c.mu.Lock()
		c.commandBuf = append(c.commandBuf, rune(b))
		buf := string(c.commandBuf)
		c.mu.Unlock()
		c.printf("\r:%s", buf)
	}
}

func (c *Console) executeCommand(cmd string) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return
	}
	slog.Debug("Console command", "command", cmd)

	switch parts[0] {
	case "help":
		c.printHelp()
	case "state":
		c.printState()
	case "servo":
		c.handleServoCommand(parts)
	case "speed":
		c.handleSpeedCommand(parts)
	case "kbd":
		c.handleKeyboardCommand(parts)
	default:
		c.printf("[teleop] unknown command: %s\r\n", parts[0])
	}
}

func (c *Console) handleServoCommand(parts []string) {
	if len(parts) != 3 {
		c.printf("[teleop] usage: :servo <id> <angle>\r\n")
		return
	}
	id, err1 := strconv.Atoi(parts[1])
	angle, err2 := strconv.ParseFloat(parts[2], 64)
	if err1 != nil || err2 != nil {
		c.printf("[teleop] invalid servo args\r\n")
		return
	}
	changed, err := c.servos.Set(id, angle)
	if err != nil {
		c.printf("[teleop] servo rejected: %v\r\n", err)
		return
	}
	if !changed {
		c.printf("[teleop] servo %d unchanged\r\n", id)
		return
	}
	got, _ := c.servos.Angle(id)
	c.printf("[teleop] servo %d -> %.1f°\r\n", id, got)
}

func (c *Console) handleSpeedCommand(parts []string) {
	if len(parts) != 3 {
		c.printf("[teleop] usage: :speed translate|rotate <value>\r\n")
		return
	}
	v, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		c.printf("[teleop] invalid speed value\r\n")
		return
	}
	switch parts[1] {
	case "translate":
		err = c.scaler.SetMaxTranslate(v)
	case "rotate":
		err = c.scaler.SetMaxRotate(v)
	default:
		c.printf("[teleop] usage: :speed translate|rotate <value>\r\n")
		return
	}
	if err != nil {
		c.printf("[teleop] speed rejected: %v\r\n", err)
		return
	}
	l := c.scaler.Limits()
	c.printf("[teleop] max translate=%.3f rotate=%.3f\r\n", l.MaxTranslate, l.MaxRotate)
}

func (c *Console) handleKeyboardCommand(parts []string) {
	if len(parts) != 2 || (parts[1] != "on" && parts[1] != "off") {
		c.printf("[teleop] usage: :kbd on|off\r\n")
		return
	}
	enabled := parts[1] == "on"
	if !enabled {
		c.releaseKeys()
	}
	c.translate.SetKeyboardEnabled(enabled)
	c.printf("[teleop] keyboard %s\r\n", boolLabel(enabled))
}

func (c *Console) printState() {
	t := c.translate.Vector()
	r := c.rotate.Vector()
	l := c.scaler.Limits()
	c.printf("[teleop] translate forward=%.1f left=%.1f engaged=%t keys=%t\r\n",
		t.Forward, t.Left, c.translate.State().Engaged, c.translate.AnyKeyPressed())
	c.printf("[teleop] rotate forward=%.1f left=%.1f engaged=%t\r\n",
		r.Forward, r.Left, c.rotate.State().Engaged)
	c.printf("[teleop] command %s (max translate=%.3f rotate=%.3f)\r\n",
		c.scaler.Command(), l.MaxTranslate, l.MaxRotate)

	angles := c.servos.Angles()
	fields := make([]string, len(angles))
	for id, a := range angles {
		fields[id] = strconv.Itoa(id) + "=" + strconv.FormatFloat(a, 'f', 1, 64)
	}
	c.printf("[teleop] servos %s\r\n", strings.Join(fields, " "))
}

func (c *Console) printHelp() {
	c.print("[teleop] keys:\r\n")
	c.print("  I/K/J/L or arrows: pulse translate forward/back/left/right\r\n")
	c.print("  mouse: drag left half to translate, right half to rotate\r\n")
	c.print("  X or Space: stop all input\r\n")
	c.print("  Q or Ctrl-C: quit\r\n")
	c.print("  : enter command mode\r\n")
	c.print("[teleop] commands:\r\n")
	c.print("  :servo <id> <angle>\r\n")
	c.print("  :speed translate|rotate <value>\r\n")
	c.print("  :kbd on|off\r\n")
	c.print("  :state\r\n")
	c.print("  :help\r\n")
}
