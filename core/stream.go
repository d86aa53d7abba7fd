package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"crybsale/core/types"
	"crybsale/observability"
)

const (
	eventHistoryLimit = 2048
	subscriberBuffer  = 64
)

// ErrInvalidCursor is returned for a cursor that is not a sequence number.
var ErrInvalidCursor = errors.New("invalid cursor")

// EventUpdate is a committed event tagged with its position in the stream.
type EventUpdate struct {
	Sequence  uint64
	Cursor    string
	Event     types.Event
	Timestamp int64
}

func cloneEventUpdate(update EventUpdate) EventUpdate {
	cloned := update
	if len(update.Event.Attributes) > 0 {
		attrs := make(map[string]string, len(update.Event.Attributes))
		for k, v := range update.Event.Attributes {
			attrs[k] = v
		}
		cloned.Event.Attributes = attrs
	}
	return cloned
}

// EventStream fans committed events out to subscribers and keeps a bounded
// history so reconnecting clients can resume from a cursor.
type EventStream struct {
	mu      sync.Mutex
	seq     uint64
	nextID  uint64
	subs    map[uint64]chan EventUpdate
	history []EventUpdate
	metrics *observability.EventMetrics
	gauge   *observability.SaleMetrics
}

// NewEventStream constructs an empty stream.
func NewEventStream() *EventStream {
	return &EventStream{subs: make(map[uint64]chan EventUpdate)}
}

func (s *EventStream) publish(evt *types.Event, timestamp int64) {
	if s == nil || evt == nil {
		return
	}
	s.mu.Lock()
	s.seq++
	update := EventUpdate{
		Sequence:  s.seq,
		Cursor:    strconv.FormatUint(s.seq, 10),
		Event:     *evt,
		Timestamp: timestamp,
	}
	s.history = append(s.history, cloneEventUpdate(update))
	if len(s.history) > eventHistoryLimit {
		excess := len(s.history) - eventHistoryLimit
		trimmed := make([]EventUpdate, eventHistoryLimit)
		copy(trimmed, s.history[excess:])
		s.history = trimmed
	}
	s.metrics.RecordPublished(evt.Type)
	for id, ch := range s.subs {
		select {
		case ch <- cloneEventUpdate(update):
		default:
			// Evict the lagging subscriber; Follow resumes it from history.
			delete(s.subs, id)
			close(ch)
			s.metrics.RecordDropped(evt.Type)
		}
	}
	s.mu.Unlock()
}

// Subscribe registers a subscriber for events committed after cursor. The
// returned backlog holds retained events newer than the cursor. The channel
// is closed when cancel is called, when ctx ends, or when the subscriber
// falls a full buffer behind.
func (s *EventStream) Subscribe(ctx context.Context, cursor string) (<-chan EventUpdate, func(), []EventUpdate, error) {
	if s == nil {
		return nil, nil, nil, fmt.Errorf("event stream not initialised")
	}
	since, err := parseCursor(cursor)
	if err != nil {
		return nil, nil, nil, err
	}
	updates := make(chan EventUpdate, subscriberBuffer)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = updates
	backlog := make([]EventUpdate, 0, len(s.history))
	for _, entry := range s.history {
		if entry.Sequence > since {
			backlog = append(backlog, cloneEventUpdate(entry))
		}
	}
	gauge := s.gauge
	s.mu.Unlock()
	gauge.AddSubscribers(1)

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			if sub, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(sub)
			}
			s.mu.Unlock()
			gauge.AddSubscribers(-1)
		})
	}
	if ctx != nil {
		go func() {
			<-ctx.Done()
			cancel()
		}()
	}
	return updates, cancel, backlog, nil
}

// Follow calls handle for every event committed after cursor, in sequence
// order, until ctx ends or handle fails. When the subscription is evicted for
// lagging it resubscribes from the last handled sequence, so events still in
// the retained history are not lost.
func (s *EventStream) Follow(ctx context.Context, cursor string, handle func(EventUpdate) error) error {
	if s == nil {
		return fmt.Errorf("event stream not initialised")
	}
	last, err := parseCursor(cursor)
	if err != nil {
		return err
	}
	for {
		subCtx, stop := context.WithCancel(ctx)
		updates, cancel, backlog, err := s.Subscribe(subCtx, strconv.FormatUint(last, 10))
		if err != nil {
			stop()
			return err
		}
		err = followOnce(ctx, updates, backlog, &last, handle)
		cancel()
		stop()
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// followOnce returns nil when the subscription channel closes.
func followOnce(ctx context.Context, updates <-chan EventUpdate, backlog []EventUpdate, last *uint64, handle func(EventUpdate) error) error {
	deliver := func(update EventUpdate) error {
		if update.Sequence <= *last {
			return nil
		}
		if err := handle(update); err != nil {
			return err
		}
		*last = update.Sequence
		return nil
	}
	for _, update := range backlog {
		if err := deliver(update); err != nil {
			return err
		}
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if err := deliver(update); err != nil {
				return err
			}
		}
	}
}

func parseCursor(cursor string) (uint64, error) {
	trimmed := strings.TrimSpace(cursor)
	if trimmed == "" {
		return 0, nil
	}
	parsed, err := strconv.ParseUint(trimmed, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w %q", ErrInvalidCursor, cursor)
	}
	return parsed, nil
}

// Sequence returns the cursor of the most recent event.
func (s *EventStream) Sequence() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}
