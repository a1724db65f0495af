// Package telemetry captures the raw, append-only interaction log of one
// question session.
package telemetry

import (
	"context"
	"sync"
	"time"
)

// EventType names a raw interaction event.
type EventType string

const (
	EventMount        EventType = "mount"
	EventView         EventType = "view"
	EventFocus        EventType = "focus"
	EventBlur         EventType = "blur"
	EventOptionSelect EventType = "option_select"
	EventSubmitStage  EventType = "submit_stage"
	EventStageEnter   EventType = "stage_enter"
	EventStageReset   EventType = "stage_reset"
	EventComplete     EventType = "complete"
)

// Payload carries the event-specific fields. Unused fields stay empty.
type Payload struct {
	StageID  string `json:"stageId,omitempty"`
	OptionID string `json:"optionId,omitempty"`
	Correct  *bool  `json:"correct,omitempty"`
	Action   string `json:"action,omitempty"`
	Intent   string `json:"intent,omitempty"`
	Tag      string `json:"diagnosticTag,omitempty"`
	Outcome  string `json:"outcome,omitempty"`
}

// Entry is one logged event. Entries are never mutated after append.
type Entry struct {
	Type      EventType `json:"type"`
	Payload   Payload   `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// Sink receives events. *Logger implements it.
type Sink interface {
	Log(t EventType, p Payload)
}

// Logger is the append-only event log for one session. Log is safe to call
// from the focus watcher goroutine and the session goroutine at once.
type Logger struct {
	mu      sync.Mutex
	entries []Entry
	now     func() time.Time
}

// NewLogger creates a Logger. A nil now uses time.Now.
func NewLogger(now func() time.Time) *Logger {
	if now == nil {
		now = time.Now
	}
	return &Logger{now: now}
}

// Log appends an event stamped with the current time.
func (l *Logger) Log(t EventType, p Payload) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, Entry{Type: t, Payload: p, Timestamp: l.now()})
}

// All returns a copy of the log in append order.
func (l *Logger) All() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries logged so far.
func (l *Logger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// FocusEvent is delivered by the host environment when the learner's
// attention moves to or away from the question.
type FocusEvent struct {
	Focused bool
}

// FocusSource is the host environment's focus/blur feed.
type FocusSource interface {
	// Subscribe starts delivery. The returned cancel func stops it; the
	// source may close the channel afterwards.
	Subscribe() (events <-chan FocusEvent, cancel func())
}

// Watch logs focus and blur events from src until the returned release
// func is called or ctx is done. Release is idempotent and returns only
// after the subscription is cancelled and the watcher goroutine exited.
func (l *Logger) Watch(ctx context.Context, src FocusSource) (release func()) {
	if src == nil {
		return func() {}
	}

	events, cancel := src.Subscribe()
	stop := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				// Events delivered before release still belong to the session.
				for {
					select {
					case ev, ok := <-events:
						if !ok {
							return
						}
						l.logFocus(ev)
					default:
						return
					}
				}
			case ev, ok := <-events:
				if !ok {
					return
				}
				l.logFocus(ev)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			cancel()
		})
	}
}

func (l *Logger) logFocus(ev FocusEvent) {
	if ev.Focused {
		l.Log(EventFocus, Payload{})
	} else {
		l.Log(EventBlur, Payload{})
	}
}

// Count returns how many entries of type t are in entries.
func Count(entries []Entry, t EventType) int {
	n := 0
	for _, e := range entries {
		if e.Type == t {
			n++
		}
	}
	return n
}
