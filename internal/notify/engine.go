// Package notify schedules and delivers local reminders. The engine
// holds pending reminders in a time-ordered queue and emits them on a
// channel when they fall due; delivery is the caller's concern.
package notify

import (
	"container/heap"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var ErrInvalidFireTime = errors.New("notify: invalid fire time")

// Reminder is a pending notification. Key identifies it for
// cancellation and replacement; at most one reminder per key is ever
// pending.
type Reminder struct {
	Key    string
	FireAt time.Time
	Title  string
	Body   string
}

type queueItem struct {
	reminder Reminder
	canceled bool
}

type reminderQueue []*queueItem

func (q reminderQueue) Len() int { return len(q) }

func (q reminderQueue) Less(i, j int) bool {
	return q[i].reminder.FireAt.Before(q[j].reminder.FireAt)
}

func (q reminderQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
}

func (q *reminderQueue) Push(x any) {
	*q = append(*q, x.(*queueItem))
}

func (q *reminderQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[0 : n-1]
	return item
}

// Engine owns the pending reminder queue and a single timer goroutine.
type Engine struct {
	mu      sync.Mutex
	queue   reminderQueue
	byKey   map[string]*queueItem
	out     chan Reminder
	wakeup  chan struct{}
	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
	stopped bool
	dropped uint64
}

func NewEngine(bufferSize int) *Engine {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &Engine{
		queue:  make(reminderQueue, 0),
		byKey:  make(map[string]*queueItem),
		out:    make(chan Reminder, bufferSize),
		wakeup: make(chan struct{}, 1),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// C returns the channel due reminders are emitted on. It is closed when
// the engine stops.
func (e *Engine) C() <-chan Reminder {
	return e.out
}

func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return
	}
	e.started = true
	heap.Init(&e.queue)
	go e.loop()
}

func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.started || e.stopped {
		e.mu.Unlock()
		return
	}
	e.stopped = true
	close(e.stopCh)
	e.mu.Unlock()
	<-e.doneCh
}

// Schedule arms a reminder. If one is already pending under the same
// key it is replaced, so scheduling is idempotent per key.
func (e *Engine) Schedule(r Reminder) error {
	if r.FireAt.IsZero() {
		return ErrInvalidFireTime
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return errors.New("notify: engine stopped")
	}

	if prev, ok := e.byKey[r.Key]; ok {
		prev.canceled = true
	}
	item := &queueItem{reminder: r}
	e.byKey[r.Key] = item
	heap.Push(&e.queue, item)
	e.signalWakeup()
	return nil
}

// Cancel removes the pending reminder for key, if any. Cancelling a key
// with nothing pending is a no-op.
func (e *Engine) Cancel(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if item, ok := e.byKey[key]; ok {
		item.canceled = true
		delete(e.byKey, key)
	}
	e.signalWakeup()
}

// Pending reports whether a reminder is currently armed under key.
func (e *Engine) Pending(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.byKey[key]
	return ok
}

// Dropped counts reminders that fell due while the output channel was
// full.
func (e *Engine) Dropped() uint64 {
	return atomic.LoadUint64(&e.dropped)
}

func (e *Engine) loop() {
	defer close(e.doneCh)
	defer close(e.out)

	var timer *time.Timer
	for {
		next, hasNext := e.peek()
		if !hasNext {
			select {
			case <-e.wakeup:
				continue
			case <-e.stopCh:
				return
			}
		}

		wait := time.Until(next.FireAt)
		if wait < 0 {
			wait = 0
		}
		timer = resetTimer(timer, wait)

		select {
		case <-timer.C:
			for _, r := range e.popDue(time.Now()) {
				select {
				case e.out <- r:
				default:
					atomic.AddUint64(&e.dropped, 1)
				}
			}
		case <-e.wakeup:
			continue
		case <-e.stopCh:
			if timer != nil {
				stopTimer(timer)
			}
			return
		}
	}
}

func (e *Engine) signalWakeup() {
	select {
	case e.wakeup <- struct{}{}:
	default:
	}
}

// peek returns the earliest live reminder, discarding cancelled items
// that have drifted to the top of the queue.
func (e *Engine) peek() (Reminder, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for len(e.queue) > 0 {
		if e.queue[0].canceled {
			heap.Pop(&e.queue)
			continue
		}
		return e.queue[0].reminder, true
	}
	return Reminder{}, false
}

func (e *Engine) popDue(now time.Time) []Reminder {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Reminder, 0)
	for len(e.queue) > 0 {
		item := e.queue[0]
		if !item.canceled && item.reminder.FireAt.After(now) {
			break
		}
		heap.Pop(&e.queue)
		if item.canceled {
			continue
		}
		delete(e.byKey, item.reminder.Key)
		out = append(out, item.reminder)
	}
	return out
}

func resetTimer(timer *time.Timer, d time.Duration) *time.Timer {
	if timer == nil {
		return time.NewTimer(d)
	}
	stopTimer(timer)
	timer.Reset(d)
	return timer
}

func stopTimer(timer *time.Timer) {
	if timer == nil {
		return
	}
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
}
