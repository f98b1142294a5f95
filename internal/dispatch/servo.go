package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Versifine/teleop/internal/actuator"
	"github.com/Versifine/teleop/internal/event"
	"github.com/Versifine/teleop/internal/telemetry"
)

type ServoSender interface {
	SendServo(ctx context.Context, servoID int, angle float64) error
}

// ServoDispatcher sends servo changes outside the periodic loop. It implements
// servo.Listener. Each servo has one worker and a depth-1 mailbox: requests
// for the same servo go out in order, and a change that arrives while one is
// in flight replaces any angle still waiting.
type ServoDispatcher struct {
	sender   ServoSender
	timeout  time.Duration
	bus      *event.Bus
	recorder *telemetry.Recorder

	ctx context.Context
	wg  sync.WaitGroup

	mu      sync.Mutex
	pending map[int]float64
	active  map[int]bool
}

func NewServoDispatcher(ctx context.Context, sender ServoSender, timeout time.Duration, bus *event.Bus, recorder *telemetry.Recorder) *ServoDispatcher {
	return &ServoDispatcher{
		sender:   sender,
		timeout:  timeout,
		bus:      bus,
		recorder: recorder,
		ctx:      ctx,
		pending:  make(map[int]float64),
		active:   make(map[int]bool),
	}
}

func (d *ServoDispatcher) AngleChanged(servoID int, angle float64) {
	if d.ctx.Err() != nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending[servoID] = angle
	if d.active[servoID] {
		return
	}
	d.active[servoID] = true
	d.wg.Add(1)
	go d.drain(servoID)
}

func (d *ServoDispatcher) drain(servoID int) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		angle, ok := d.pending[servoID]
		if !ok || d.ctx.Err() != nil {
			delete(d.pending, servoID)
			delete(d.active, servoID)
			d.mu.Unlock()
			return
		}
		delete(d.pending, servoID)
		d.mu.Unlock()

		d.send(servoID, angle)
	}
}

// Wait blocks until every queued servo request has finished.
func (d *ServoDispatcher) Wait() {
	d.wg.Wait()
}

func (d *ServoDispatcher) send(servoID int, angle float64) {
	ctx := d.ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	start := time.Now()
	err := d.sender.SendServo(ctx, servoID, angle)
	errKind := actuator.Classify(err)

	rec := telemetry.Record{
		Kind:      telemetry.KindServo,
		ServoID:   servoID,
		Angle:     angle,
		OK:        err == nil,
		ErrorKind: string(errKind),
		LatencyMS: float64(time.Since(start).Microseconds()) / 1000,
	}
	if err != nil {
		rec.Error = err.Error()
	}
	if werr := d.recorder.Write(rec); werr != nil {
		slog.Warn("Telemetry write failed", "error", werr)
	}

	status := event.StatusEvent{Level: event.StatusOK, At: start}
	switch {
	case errKind == actuator.KindCanceled:
		// Shutdown, not a robot fault.
		slog.Debug("Servo dispatch canceled", "servo_id", servoID, "angle", angle)
		return
	case err != nil:
		status.Level = event.StatusError
		status.Message = fmt.Sprintf("servo %d update failed: %v", servoID, err)
		slog.Warn("Servo dispatch failed", "servo_id", servoID, "angle", angle, "error_kind", errKind, "error", err)
	default:
		status.Message = fmt.Sprintf("servo %d set to %.1f°", servoID, angle)
		slog.Info("Servo update sent", "servo_id", servoID, "angle", angle)
	}
	d.bus.Publish(event.TopicStatus, status)
}
