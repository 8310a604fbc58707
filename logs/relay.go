package logs

import (
	"context"
	"sort"
	"sync"
	"time"

	"gatherinfo/pubsub"
)

const DefaultHistory = 200

type run struct {
	events   []Event
	finished bool
	watchers int
	broker   *pubsub.Broker[Event]
}

// Relay keeps a bounded history of events per run id and fans live events
// out to subscribers of that run.
type Relay struct {
	mu    sync.Mutex
	runs  map[string]*run
	limit int
	done  chan struct{}
}

func NewRelay(limit int) *Relay {
	if limit <= 0 {
		limit = DefaultHistory
	}
	return &Relay{runs: make(map[string]*run), limit: limit, done: make(chan struct{})}
}

func (r *Relay) get(id string) *run {
	rn, ok := r.runs[id]
	if !ok {
		rn = &run{broker: pubsub.NewBroker[Event]()}
		r.runs[id] = rn
	}
	return rn
}

// Append stores ev and publishes it. The oldest events are dropped once the
// history exceeds the limit.
func (r *Relay) Append(id string, ev Event) {
	if id == "" {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rn := r.get(id)
	rn.finished = false
	rn.events = append(rn.events, ev)
	if over := len(rn.events) - r.limit; over > 0 {
		rn.events = append(rn.events[:0:0], rn.events[over:]...)
	}
	rn.broker.Publish(pubsub.LogEvent, ev)
}

// Finish tells live subscribers that the run is over.
func (r *Relay) Finish(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rn, ok := r.runs[id]; ok {
		rn.finished = true
		rn.broker.Publish(pubsub.FinishedEvent, Event{Time: time.Now().UTC(), Level: LevelInfo, Message: "finished"})
	}
}

// Finished reports whether the last thing that happened to run id was Finish.
func (r *Relay) Finished(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rn, ok := r.runs[id]
	return ok && rn.finished
}

func (r *Relay) History(id string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	rn, ok := r.runs[id]
	if !ok {
		return []Event{}
	}
	return append([]Event{}, rn.events...)
}

// Watch returns the current history and a channel of later events, taken
// atomically so nothing is missed or repeated between them. The channel
// closes when ctx is done. A run that is only being watched is forgotten
// once its last watcher leaves without any event having arrived.
func (r *Relay) Watch(ctx context.Context, id string) ([]Event, <-chan pubsub.Event[Event]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rn := r.get(id)
	rn.watchers++
	go func() {
		select {
		case <-ctx.Done():
			r.release(id, rn)
		case <-r.done:
		}
	}()
	return append([]Event{}, rn.events...), rn.broker.Subscribe(ctx)
}

func (r *Relay) release(id string, rn *run) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rn.watchers--
	if rn.watchers > 0 || len(rn.events) > 0 || r.runs[id] != rn {
		return
	}
	rn.broker.Shutdown()
	delete(r.runs, id)
}

// Subscribe returns live events of run id only.
func (r *Relay) Subscribe(ctx context.Context, id string) <-chan pubsub.Event[Event] {
	_, ch := r.Watch(ctx, id)
	return ch
}

// Clear drops the history of id. Live subscribers stay attached.
func (r *Relay) Clear(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rn, ok := r.runs[id]
	if !ok {
		return
	}
	if rn.watchers > 0 {
		rn.events = nil
		return
	}
	rn.broker.Shutdown()
	delete(r.runs, id)
}

// IDs lists runs that have history, sorted.
func (r *Relay) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.runs))
	for id, rn := range r.runs {
		if len(rn.events) > 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Close shuts every run down, closing all subscriber channels.
func (r *Relay) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	select {
	case <-r.done:
	default:
		close(r.done)
	}
	for id, rn := range r.runs {
		rn.broker.Shutdown()
		delete(r.runs, id)
	}
}

// Sink binds a run id to the relay.
func (r *Relay) Sink(id string) Sink {
	return &RunSink{relay: r, id: id}
}

// RunSink appends every emitted event to one run of a Relay.
type RunSink struct {
	relay *Relay
	id    string
}

func (s *RunSink) ID() string { return s.id }

func (s *RunSink) Emit(level Level, message string, extra Fields) {
	s.relay.Append(s.id, Event{Time: time.Now().UTC(), Level: level, Message: message, Extra: extra})
}
