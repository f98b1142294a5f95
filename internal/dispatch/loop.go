package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Versifine/teleop/internal/actuator"
	"github.com/Versifine/teleop/internal/event"
	"github.com/Versifine/teleop/internal/motion"
	"github.com/Versifine/teleop/internal/telemetry"
)

const (
	defaultInterval     = 100 * time.Millisecond
	defaultFlushTimeout = 500 * time.Millisecond
)

type ControlSender interface {
	SendControl(ctx context.Context, cmd motion.Command) error
}

// Source yields the latest command snapshot.
type Source interface {
	Load() (motion.Command, uint64)
}

type Options struct {
	Interval time.Duration
	// Timeout bounds one tick's request. Keep it below Interval.
	Timeout      time.Duration
	FlushTimeout time.Duration
	Bus          *event.Bus
	Recorder     *telemetry.Recorder
}

// Loop sends the latest command at a fixed rate on its own goroutine, so a
// slow actuator never blocks input handling.
type Loop struct {
	source Source
	sender ControlSender
	opts   Options

	mu       sync.Mutex
	gate     Gate
	tick     uint64
	lastKind actuator.ErrorKind
}

func NewLoop(source Source, sender ControlSender, opts Options) *Loop {
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if opts.Timeout <= 0 || opts.Timeout >= opts.Interval {
		opts.Timeout = opts.Interval * 9 / 10
	}
	if opts.FlushTimeout <= 0 {
		opts.FlushTimeout = defaultFlushTimeout
	}
	return &Loop{source: source, sender: sender, opts: opts}
}

// Run ticks until ctx is done, then flushes one final zero command.
func (l *Loop) Run(ctx context.Context) error {
	if l.source == nil || l.sender == nil {
		return fmt.Errorf("dispatch loop needs a source and a sender")
	}
	slog.Info("Dispatch loop started", "interval", l.opts.Interval, "timeout", l.opts.Timeout)

	ticker := time.NewTicker(l.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.Flush()
			slog.Info("Dispatch loop stopped")
			return nil
		case <-ticker.C:
			l.Tick(ctx)
		}
	}
}

// Tick runs one dispatch step and reports whether a request was attempted.
func (l *Loop) Tick(ctx context.Context) bool {
	cmd, _ := l.source.Load()

	l.mu.Lock()
	l.tick++
	tick := l.tick
	send := l.gate.Decide(cmd)
	l.mu.Unlock()

	if !send {
		return false
	}

	kind := telemetry.KindControl
	if cmd.IsZero() {
		kind = telemetry.KindZero
	}

	reqCtx, cancel := context.WithTimeout(ctx, l.opts.Timeout)
	defer cancel()
	l.transmit(reqCtx, tick, kind, cmd)
	return true
}

// Flush sends a zero command with the flush timeout, whatever the gate state.
// It is called once on shutdown.
func (l *Loop) Flush() {
	ctx, cancel := context.WithTimeout(context.Background(), l.opts.FlushTimeout)
	defer cancel()

	l.mu.Lock()
	l.tick++
	tick := l.tick
	l.gate = Gate{}
	l.mu.Unlock()

	l.transmit(ctx, tick, telemetry.KindFlush, motion.Command{})
}

func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.gate.State()
}

func (l *Loop) transmit(ctx context.Context, tick uint64, kind string, cmd motion.Command) {
	start := time.Now()
	err := l.sender.SendControl(ctx, cmd)
	latency := time.Since(start)
	errKind := actuator.Classify(err)
	canceled := errKind == actuator.KindCanceled

	l.mu.Lock()
	changed := errKind != l.lastKind && !canceled
	if !canceled {
		l.lastKind = errKind
	}
	l.mu.Unlock()

	rec := telemetry.Record{
		Tick:       tick,
		Kind:       kind,
		TranslateX: cmd.Translate.X,
		TranslateY: cmd.Translate.Y,
		RotateZ:    cmd.Rotate.Z,
		OK:         err == nil,
		ErrorKind:  string(errKind),
		LatencyMS:  float64(latency.Microseconds()) / 1000,
	}

	if err != nil {
		rec.Error = err.Error()
	}
	if werr := l.opts.Recorder.Write(rec); werr != nil {
		slog.Warn("Telemetry write failed", "error", werr)
	}

	status := event.StatusEvent{Level: event.StatusOK, At: start}
	switch {
	case canceled:
		// The tick was cut short by shutdown. Flush reports the final state.
		slog.Debug("Control dispatch canceled", "tick", tick, "kind", kind)
		return
	case err != nil:
		status.Level = event.StatusError
		status.Message = fmt.Sprintf("%s failed: %v", kind, err)
		// Repeat failures of the same kind only go to debug.
		level := slog.LevelDebug
		if changed {
			level = slog.LevelWarn
		}
		slog.Log(context.Background(), level, "Control dispatch failed",
			"tick", tick, "kind", kind, "error_kind", errKind, "error", err)
	default:
		status.Message = kind + " sent"
		if changed {
			slog.Info("Control dispatch recovered", "tick", tick, "kind", kind)
		}
		slog.Debug("Control sent", "tick", tick, "kind", kind, "command", cmd, "latency", latency)
	}
	l.opts.Bus.Publish(event.TopicStatus, status)
}
