package events

import (
	"log/slog"
	"sync"
)

// defaultFeedCapacity bounds the replay buffer for polling consumers.
const defaultFeedCapacity = 1024

// Feed is an in-memory change feed with a bounded replay buffer and
// optional push subscribers. Polling consumers pass the last sequence
// number they saw; push subscribers receive events on a channel that is
// dropped rather than blocked when full.
type Feed struct {
	mu          sync.RWMutex
	buffer      []TransitionEvent
	capacity    int
	nextSeq     uint64
	subscribers map[chan TransitionEvent]struct{}
	logger      *slog.Logger
}

// NewFeed creates a feed with the given replay capacity; capacity <= 0
// uses the default.
func NewFeed(capacity int, logger *slog.Logger) *Feed {
	if capacity <= 0 {
		capacity = defaultFeedCapacity
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Feed{
		capacity:    capacity,
		nextSeq:     1,
		subscribers: make(map[chan TransitionEvent]struct{}),
		logger:      logger.With("component", "change_feed"),
	}
}

// Publish implements Publisher.
func (f *Feed) Publish(event TransitionEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()

	event.Seq = f.nextSeq
	f.nextSeq++
	f.buffer = append(f.buffer, event)
	if len(f.buffer) > f.capacity {
		f.buffer = f.buffer[len(f.buffer)-f.capacity:]
	}

	// Sends stay under the lock: cancel() closes channels under the
	// same lock, so a send can never hit a just-closed channel. The
	// sends never block.
	for ch := range f.subscribers {
		select {
		case ch <- event:
		default:
			// Slow consumer; the event is still available via Since.
			f.logger.Debug("dropped event for slow subscriber",
				"seq", event.Seq,
				"task_id", event.TaskID)
		}
	}
}

// Since returns all buffered events with Seq > after, oldest first.
// Consumers that fall behind the replay buffer simply miss events and
// should re-list tasks to resynchronize.
func (f *Feed) Since(after uint64) []TransitionEvent {
	f.mu.RLock()
	defer f.mu.RUnlock()

	// Binary search is unnecessary at this buffer size.
	out := make([]TransitionEvent, 0)
	for _, e := range f.buffer {
		if e.Seq > after {
			out = append(out, e)
		}
	}
	return out
}

// Subscribe registers a push consumer. The returned cancel function
// removes the subscription and closes the channel.
func (f *Feed) Subscribe(buffer int) (<-chan TransitionEvent, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan TransitionEvent, buffer)

	f.mu.Lock()
	f.subscribers[ch] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if _, ok := f.subscribers[ch]; ok {
			delete(f.subscribers, ch)
			close(ch)
		}
		f.mu.Unlock()
	}
	return ch, cancel
}

// LastSeq returns the sequence number of the most recently published
// event, or zero when nothing has been published.
func (f *Feed) LastSeq() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.nextSeq - 1
}
