package indexer

import (
	"log/slog"
	"sync"
	"time"
)

// State is a stage of an indexing run
type State string

const (
	StateClearing          State = "clearing"
	StateDiscovering       State = "discovering"
	StateExtracting        State = "extracting"
	StateEmbedding         State = "embedding"
	StateWritingStructured State = "writing-structured"
	StateWritingVector     State = "writing-vector"
	StateSummarizing       State = "summarizing"
	StateDone              State = "done"
	StateError             State = "error"
)

// Event reports progress of a run. Done and Total count the units of the
// current state (files, elements or documents) and are zero when the state
// has no countable work.
type Event struct {
	RunID   string
	State   State
	Message string
	Done    int
	Total   int
	Time    time.Time
}

// ProgressSink observes indexing runs. Notify must not block; events a sink
// cannot take are lost.
type ProgressSink interface {
	Notify(Event)
}

// SinkFunc adapts a function to ProgressSink
type SinkFunc func(Event)

// Notify calls f(e)
func (f SinkFunc) Notify(e Event) { f(e) }

// ChannelSink delivers events to a buffered channel, dropping them when it is full
type ChannelSink chan<- Event

// Notify sends e without blocking
func (c ChannelSink) Notify(e Event) {
	select {
	case c <- e:
	default:
	}
}

// broadcaster fans events out to registered sinks
type broadcaster struct {
	mu     sync.RWMutex
	sinks  []ProgressSink
	logger *slog.Logger
}

func (b *broadcaster) add(s ProgressSink) {
	b.mu.Lock()
	b.sinks = append(b.sinks, s)
	b.mu.Unlock()
}

// publish delivers e to the registered sinks, then to extra if set
func (b *broadcaster) publish(e Event, extra ProgressSink) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	b.mu.RLock()
	sinks := b.sinks
	b.mu.RUnlock()

	for _, s := range sinks {
		b.deliver(s, e)
	}
	if extra != nil {
		b.deliver(extra, e)
	}
}

func (b *broadcaster) deliver(s ProgressSink, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Warn("progress sink panicked", "state", e.State, "panic", r)
		}
	}()
	s.Notify(e)
}
