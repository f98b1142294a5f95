package dispatch

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Versifine/teleop/internal/actuator"
	"github.com/Versifine/teleop/internal/event"
)

type servoCall struct {
	id    int
	angle float64
}

type mockServoSender struct {
	mu    sync.Mutex
	calls []servoCall
	err   error
	// slow delays requests for this angle.
	slow  float64
	delay time.Duration
}

func (m *mockServoSender) SendServo(_ context.Context, id int, angle float64) error {
	if m.delay > 0 && angle == m.slow {
		time.Sleep(m.delay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, servoCall{id, angle})
	return m.err
}

func TestServoDispatcherSendsEachChange(t *testing.T) {
	sender := &mockServoSender{}
	d := NewServoDispatcher(context.Background(), sender, 100*time.Millisecond, nil, nil)

	d.AngleChanged(0, 135)
	d.AngleChanged(6, 90)
	d.Wait()

	if len(sender.calls) != 2 {
		t.Fatalf("calls = %v, want 2", sender.calls)
	}
	seen := map[servoCall]bool{}
	for _, c := range sender.calls {
		seen[c] = true
	}
	if !seen[servoCall{0, 135}] || !seen[servoCall{6, 90}] {
		t.Fatalf("calls = %v", sender.calls)
	}
}

func TestServoDispatcherPublishesFailure(t *testing.T) {
	sender := &mockServoSender{err: actuator.ErrConnection}
	bus := event.NewBus()
	statuses := make(chan event.StatusEvent, 1)
	bus.Subscribe(event.TopicStatus, func(raw any) { statuses <- raw.(event.StatusEvent) })

	d := NewServoDispatcher(context.Background(), sender, 100*time.Millisecond, bus, nil)
	d.AngleChanged(2, 45)
	d.Wait()

	select {
	case st := <-statuses:
		if st.Level != event.StatusError || !strings.Contains(st.Message, "servo 2") {
			t.Fatalf("status = %+v", st)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no status published")
	}
}

func TestServoDispatcherStopsAfterCancel(t *testing.T) {
	sender := &mockServoSender{}
	ctx, cancel := context.WithCancel(context.Background())
	d := NewServoDispatcher(ctx, sender, 0, nil, nil)
	cancel()

	d.AngleChanged(1, 10)
	d.Wait()

	if len(sender.calls) != 0 {
		t.Fatalf("calls after cancel = %v, want none", sender.calls)
	}
}

func TestServoDispatcherKeepsOrderPerServo(t *testing.T) {
	sender := &mockServoSender{slow: 100, delay: 30 * time.Millisecond}
	d := NewServoDispatcher(context.Background(), sender, time.Second, nil, nil)

	d.AngleChanged(0, 100)
	d.AngleChanged(0, 200)
	d.Wait()

	if len(sender.calls) == 0 {
		t.Fatal("no servo request sent")
	}
	if last := sender.calls[len(sender.calls)-1]; last != (servoCall{0, 200}) {
		t.Fatalf("last call = %v, want servo 0 at 200 (calls %v)", last, sender.calls)
	}
}

func TestServoDispatcherLatestWinsWhileBusy(t *testing.T) {
	sender := &mockServoSender{slow: 10, delay: 100 * time.Millisecond}
	d := NewServoDispatcher(context.Background(), sender, time.Second, nil, nil)

	d.AngleChanged(3, 10)
	time.Sleep(20 * time.Millisecond)
	for _, a := range []float64{20, 30, 40} {
		d.AngleChanged(3, a)
	}
	d.Wait()

	want := []servoCall{{3, 10}, {3, 40}}
	if len(sender.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", sender.calls, want)
	}
	for i := range want {
		if sender.calls[i] != want[i] {
			t.Fatalf("calls = %v, want %v", sender.calls, want)
		}
	}
}

func TestServoDispatcherCanceledIsNotAFailure(t *testing.T) {
	sender := &mockServoSender{err: context.Canceled}
	bus := event.NewBus()
	statuses := make(chan event.StatusEvent, 1)
	bus.Subscribe(event.TopicStatus, func(raw any) { statuses <- raw.(event.StatusEvent) })

	d := NewServoDispatcher(context.Background(), sender, 0, bus, nil)
	d.AngleChanged(1, 20)
	d.Wait()

	select {
	case st := <-statuses:
		t.Fatalf("canceled request published status %+v", st)
	case <-time.After(50 * time.Millisecond):
	}
}
