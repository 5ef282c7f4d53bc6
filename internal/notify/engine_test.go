package notify

import (
	"fmt"
	"testing"
	"time"
)

func TestEngineEmitsInFireOrder(t *testing.T) {
	engine := NewEngine(8)
	engine.Start()
	defer engine.Stop()

	now := time.Now()
	if err := engine.Schedule(Reminder{Key: "later", FireAt: now.Add(80 * time.Millisecond)}); err != nil {
		t.Fatalf("schedule later: %v", err)
	}
	if err := engine.Schedule(Reminder{Key: "sooner", FireAt: now.Add(20 * time.Millisecond)}); err != nil {
		t.Fatalf("schedule sooner: %v", err)
	}

	first := waitReminder(t, engine.C(), time.Second)
	second := waitReminder(t, engine.C(), time.Second)
	if first.Key != "sooner" || second.Key != "later" {
		t.Fatalf("unexpected order: first=%s second=%s", first.Key, second.Key)
	}
}

func TestScheduleSameKeyReplaces(t *testing.T) {
	engine := NewEngine(8)
	engine.Start()
	defer engine.Stop()

	now := time.Now()
	if err := engine.Schedule(Reminder{Key: "k", Body: "old", FireAt: now.Add(30 * time.Millisecond)}); err != nil {
		t.Fatalf("schedule old: %v", err)
	}
	if err := engine.Schedule(Reminder{Key: "k", Body: "new", FireAt: now.Add(60 * time.Millisecond)}); err != nil {
		t.Fatalf("schedule new: %v", err)
	}

	got := waitReminder(t, engine.C(), time.Second)
	if got.Body != "new" {
		t.Fatalf("expected the replacement to fire, got body %q", got.Body)
	}

	select {
	case extra := <-engine.C():
		t.Fatalf("replaced reminder fired anyway: %+v", extra)
	case <-time.After(120 * time.Millisecond):
	}
}

func TestCancelSuppressesFiring(t *testing.T) {
	engine := NewEngine(8)
	engine.Start()
	defer engine.Stop()

	if err := engine.Schedule(Reminder{Key: "gone", FireAt: time.Now().Add(40 * time.Millisecond)}); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if !engine.Pending("gone") {
		t.Fatal("expected reminder to be pending before cancel")
	}
	engine.Cancel("gone")
	if engine.Pending("gone") {
		t.Fatal("expected reminder to be gone after cancel")
	}
	// Cancelling an unknown key is a no-op.
	engine.Cancel("never-scheduled")

	select {
	case got := <-engine.C():
		t.Fatalf("cancelled reminder fired: %+v", got)
	case <-time.After(120 * time.Millisecond):
	}
}

func TestNonBlockingDropsWhenConsumerIsSlow(t *testing.T) {
	engine := NewEngine(1)
	engine.Start()
	defer engine.Stop()

	fireAt := time.Now().Add(20 * time.Millisecond)
	for i := 0; i < 25; i++ {
		if err := engine.Schedule(Reminder{Key: fmt.Sprintf("k%d", i), FireAt: fireAt}); err != nil {
			t.Fatalf("schedule %d: %v", i, err)
		}
	}

	time.Sleep(120 * time.Millisecond)
	if engine.Dropped() == 0 {
		t.Fatalf("expected dropped reminders > 0, got %d", engine.Dropped())
	}
}

func TestScheduleValidatesFireTime(t *testing.T) {
	engine := NewEngine(1)
	if err := engine.Schedule(Reminder{Key: "bad"}); err != ErrInvalidFireTime {
		t.Fatalf("expected ErrInvalidFireTime, got %v", err)
	}
}

func waitReminder(t *testing.T, ch <-chan Reminder, timeout time.Duration) Reminder {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for reminder")
		return Reminder{}
	}
}
