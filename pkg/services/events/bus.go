// Package events fans committed progress changes out to in-process listeners
package events

import (
	"sync"
	"sync/atomic"
	"time"
)

// Event types
const (
	TypeAttemptRecorded    = "attempt_recorded"
	TypeAchievementGranted = "achievement_granted"
	TypeProgressRecomputed = "progress_recomputed"
)

// ProgressEvent is published after a change to a student's progress has committed
type ProgressEvent struct {
	Type            string    `json:"type"`
	StudentID       string    `json:"student_id"`
	CohortID        string    `json:"cohort_id,omitempty"`
	ExerciseID      string    `json:"exercise_id,omitempty"`
	ModuleID        string    `json:"module_id,omitempty"`
	NormalizedScore int       `json:"normalized_score"`
	Achievements    []string  `json:"achievements,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// Listener receives progress events
type Listener interface {
	OnProgressEvent(event ProgressEvent)
}

// ListenerFunc adapts a function to Listener
type ListenerFunc func(event ProgressEvent)

// OnProgressEvent calls f(event)
func (f ListenerFunc) OnProgressEvent(event ProgressEvent) { f(event) }

// Bus publishes progress events
type Bus interface {
	Publish(event ProgressEvent)
	Subscribe(listener Listener) (unsubscribe func())
	Close()
}

// SimpleBus delivers events asynchronously through a buffered channel.
// Publish never blocks: when the buffer is full the event is dropped.
type SimpleBus struct {
	mu        sync.RWMutex
	listeners map[int]Listener
	nextID    int
	eventChan chan ProgressEvent
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
	dropped   atomic.Int64
}

// NewSimpleBus creates a bus with the given buffer size and starts its dispatcher
func NewSimpleBus(bufferSize int) *SimpleBus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	b := &SimpleBus{
		listeners: make(map[int]Listener),
		eventChan: make(chan ProgressEvent, bufferSize),
		done:      make(chan struct{}),
	}
	b.wg.Add(1)
	go b.processEvents()
	return b
}

// Publish enqueues an event for delivery
func (b *SimpleBus) Publish(event ProgressEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	select {
	case <-b.done:
		return
	default:
	}

	select {
	case b.eventChan <- event:
	default:
		b.dropped.Add(1)
	}
}

// Subscribe registers a listener and returns a function removing it
func (b *SimpleBus) Subscribe(listener Listener) func() {
	if listener == nil {
		return func() {}
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = listener
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.listeners, id)
		b.mu.Unlock()
	}
}

// Dropped returns how many events were discarded because the buffer was full
func (b *SimpleBus) Dropped() int64 {
	return b.dropped.Load()
}

func (b *SimpleBus) processEvents() {
	defer b.wg.Done()
	for event := range b.eventChan {
		b.dispatch(event)
	}
}

func (b *SimpleBus) dispatch(event ProgressEvent) {
	b.mu.RLock()
	listeners := make([]Listener, 0, len(b.listeners))
	for _, l := range b.listeners {
		listeners = append(listeners, l)
	}
	b.mu.RUnlock()

	// outside the lock so listeners may subscribe or publish
	for _, l := range listeners {
		l.OnProgressEvent(event)
	}
}

// Close stops accepting events and waits until the queued ones are delivered
func (b *SimpleBus) Close() {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		close(b.done)
		close(b.eventChan)
		b.mu.Unlock()
	})
	b.wg.Wait()
}

// NopBus discards every event
type NopBus struct{}

// Publish does nothing
func (NopBus) Publish(ProgressEvent) {}

// Subscribe does nothing
func (NopBus) Subscribe(Listener) func() { return func() {} }

// Close does nothing
func (NopBus) Close() {}
