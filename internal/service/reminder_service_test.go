package service

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"chore-planner/internal/model"
	"chore-planner/internal/prefs"
)

func TestReminderKey(t *testing.T) {
	if got := ReminderKey(42); got != "ChoreTaskID42" {
		t.Errorf("ReminderKey = %q", got)
	}
}

func TestSecondsUntil(t *testing.T) {
	now := testNow
	tests := []struct {
		name string
		at   time.Time
		want int64
	}{
		{"one hour out", now.Add(time.Hour), 3600},
		{"same instant", now, 0},
		{"in the past", now.Add(-90 * time.Second), -90},
		{"subsecond truncates", now.Add(1500 * time.Millisecond), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SecondsUntil(tt.at, now); got != tt.want {
				t.Errorf("SecondsUntil = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestReminderAtDefaultsToNoon(t *testing.T) {
	svc := NewReminderService(newFakeDispatcher(), &fakePrefs{user: nil}, zap.NewNop())
	due := time.Date(2026, time.June, 17, 23, 59, 59, 999000000, time.UTC)

	got := svc.ReminderAt(due)
	want := time.Date(2026, time.June, 17, 12, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("ReminderAt = %v, want %v", got, want)
	}
}

func TestReminderAtUsesPreferredTime(t *testing.T) {
	user := &prefs.User{Name: "Alex", ReminderHour: 18, ReminderMinute: 30}
	svc := NewReminderService(newFakeDispatcher(), &fakePrefs{user: user}, zap.NewNop())
	due := time.Date(2026, time.June, 17, 23, 59, 59, 999000000, time.UTC)

	got := svc.ReminderAt(due)
	want := time.Date(2026, time.June, 17, 18, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("ReminderAt = %v, want %v", got, want)
	}
}

func TestReminderAtIgnoresUnsetSentinel(t *testing.T) {
	user := &prefs.User{Name: "Alex", ReminderHour: prefs.TimeUnset, ReminderMinute: prefs.TimeUnset}
	svc := NewReminderService(newFakeDispatcher(), &fakePrefs{user: user}, zap.NewNop())
	due := time.Date(2026, time.June, 17, 0, 0, 0, 0, time.UTC)

	got := svc.ReminderAt(due)
	if got.Hour() != DefaultReminderHour || got.Minute() != DefaultReminderMinute {
		t.Errorf("ReminderAt = %v, want the noon default", got)
	}
}

func TestScheduleOrSkip(t *testing.T) {
	task := model.Task{ID: 7, Name: "Water plants", HasReminders: true, DueAt: testNow.AddDate(0, 0, 1)}

	t.Run("schedules future reminder", func(t *testing.T) {
		d := newFakeDispatcher()
		svc := NewReminderService(d, &fakePrefs{user: &prefs.User{Name: "Alex", ReminderHour: prefs.TimeUnset, ReminderMinute: prefs.TimeUnset}}, zap.NewNop())
		svc.ScheduleOrSkip(task, testNow)

		call, ok := d.scheduled["ChoreTaskID7"]
		if !ok {
			t.Fatal("expected a scheduled reminder")
		}
		if call.title != "ChorePlanner" {
			t.Errorf("title = %q", call.title)
		}
		if call.body != `Hey Alex, "Water plants" is due today.` {
			t.Errorf("body = %q", call.body)
		}
	})

	t.Run("skips when reminders are off", func(t *testing.T) {
		d := newFakeDispatcher()
		svc := NewReminderService(d, &fakePrefs{}, zap.NewNop())
		muted := task
		muted.HasReminders = false
		svc.ScheduleOrSkip(muted, testNow)
		if len(d.schedules) != 0 {
			t.Error("nothing should be scheduled")
		}
	})

	t.Run("skips when the instant has passed", func(t *testing.T) {
		d := newFakeDispatcher()
		svc := NewReminderService(d, &fakePrefs{}, zap.NewNop())
		overdue := task
		overdue.DueAt = testNow.AddDate(0, 0, -1)
		svc.ScheduleOrSkip(overdue, testNow)
		if len(d.schedules) != 0 {
			t.Error("nothing should be scheduled for a past instant")
		}
	})

	t.Run("greets anonymously without prefs", func(t *testing.T) {
		d := newFakeDispatcher()
		svc := NewReminderService(d, &fakePrefs{user: nil}, zap.NewNop())
		svc.ScheduleOrSkip(task, testNow)
		if got := d.scheduled["ChoreTaskID7"].body; got != `Hey there, "Water plants" is due today.` {
			t.Errorf("body = %q", got)
		}
	})

	t.Run("dispatch errors are swallowed", func(t *testing.T) {
		d := newFakeDispatcher()
		d.err = errors.New("transport down")
		svc := NewReminderService(d, &fakePrefs{}, zap.NewNop())
		svc.ScheduleOrSkip(task, testNow) // must not panic or propagate
	})
}

func TestRearmCancelsBeforeScheduling(t *testing.T) {
	d := newFakeDispatcher()
	svc := NewReminderService(d, &fakePrefs{}, zap.NewNop())
	task := model.Task{ID: 7, Name: "Water plants", HasReminders: true, DueAt: testNow.AddDate(0, 0, 1)}

	svc.Rearm(task, testNow)
	svc.Rearm(task, testNow)

	if len(d.cancels) != 2 {
		t.Errorf("cancels = %d, want one per rearm", len(d.cancels))
	}
	if len(d.scheduled) != 1 {
		t.Errorf("pending reminders = %d, want exactly one", len(d.scheduled))
	}

	// Disabling reminders and rearming leaves nothing pending.
	task.HasReminders = false
	svc.Rearm(task, testNow)
	if len(d.scheduled) != 0 {
		t.Error("rearm with reminders off must only cancel")
	}
}
