// Package sse streams pipeline events (stage transitions, completed batches)
// to HTTP clients as Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Event types.
const (
	EventStageChanged   = "stage.changed"
	EventBatchCompleted = "batch.completed"
	EventGraphUpdated   = "graph.updated"
)

const (
	clientBuffer = 64
	queueSize    = 256
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// StageChange is the payload of a stage.changed event.
type StageChange struct {
	ID     string `json:"id"`
	Stage  string `json:"stage"`
	Step   int    `json:"step"`
	Reason string `json:"reason"`
}

// GraphUpdate is the payload of a graph.updated event. Changes counts the
// stage transitions folded into it since the previous graph.updated.
type GraphUpdate struct {
	Changes int `json:"changes"`
}

// Option configures a Broker.
type Option func(*Broker)

// WithKeepAlive sets the interval of comment frames written to idle streams.
// Zero disables them.
func WithKeepAlive(d time.Duration) Option {
	return func(b *Broker) { b.keepAlive = d }
}

// Broker fans pipeline events out to subscribed clients. All client state is
// owned by one goroutine; the exported methods talk to it over channels.
type Broker struct {
	graphMin  time.Duration
	keepAlive time.Duration

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker starts a broker that emits at most one graph.updated per
// graphThrottle while stage changes stream in.
func NewBroker(graphThrottle time.Duration, opts ...Option) *Broker {
	if graphThrottle <= 0 {
		graphThrottle = 2 * time.Second
	}
	b := &Broker{
		graphMin:      graphThrottle,
		keepAlive:     15 * time.Second,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, queueSize),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	go b.run()
	return b
}

// hub is the loop-owned state.
type hub struct {
	clients   map[chan []byte]struct{}
	seq       uint64
	lastGraph time.Time
	pending   int
	graphMin  time.Duration
}

// send frames event and offers it to every client. Slow clients lose the
// frame rather than stall the loop.
func (h *hub) send(event Event) {
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return
	}
	h.seq++
	frame := []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", h.seq, event.Type, payload))
	for ch := range h.clients {
		select {
		case ch <- frame:
		default:
		}
	}
}

func (h *hub) stage(event Event, now time.Time) {
	h.send(event)
	h.pending++
	if now.Sub(h.lastGraph) >= h.graphMin {
		h.flushGraph(now)
	}
}

// flushGraph emits the graph.updated held back by the throttle, if any.
func (h *hub) flushGraph(now time.Time) {
	if h.pending == 0 {
		return
	}
	h.send(Event{Type: EventGraphUpdated, Data: GraphUpdate{Changes: h.pending}})
	h.pending = 0
	h.lastGraph = now
}

func (b *Broker) run() {
	defer close(b.stopped)

	h := &hub{clients: make(map[chan []byte]struct{}), graphMin: b.graphMin}
	for {
		select {
		case <-b.stopCh:
			for ch := range h.clients {
				close(ch)
			}
			return
		case ch := <-b.subscribeCh:
			h.clients[ch] = struct{}{}
		case ch := <-b.unsubscribeCh:
			if _, ok := h.clients[ch]; ok {
				delete(h.clients, ch)
				close(ch)
			}
		case event := <-b.publishCh:
			switch event.Type {
			case EventStageChanged:
				h.stage(event, time.Now())
			case EventBatchCompleted:
				// A finished batch settles the graph: clients get the update
				// the throttle suppressed before the batch summary.
				h.flushGraph(time.Now())
				h.send(event)
			default:
				h.send(event)
			}
		case resp := <-b.countReqCh:
			resp <- len(h.clients)
		}
	}
}

// Close stops the loop and closes every client channel. It is idempotent.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe registers a client. The returned channel is closed on
// Unsubscribe or Close.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, clientBuffer)
	if b.closed.Load() {
		close(ch)
		return ch
	}
	select {
	case b.subscribeCh <- ch:
	case <-b.stopped:
		close(ch)
	}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}
	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}
	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish queues event for broadcast. Events reach clients in publish order.
// A stage.changed event counts toward the throttled graph.updated.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishStageChange queues a stage transition. A graph.updated follows it
// unless one went out within the throttle window.
func (b *Broker) PublishStageChange(change StageChange) {
	b.Publish(Event{Type: EventStageChanged, Data: change})
}

// PublishBatch publishes a batch.completed event carrying summary.
func (b *Broker) PublishBatch(summary any) {
	b.Publish(Event{Type: EventBatchCompleted, Data: summary})
}

// ServeHTTP streams events to one client (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	var ping <-chan time.Time
	if b.keepAlive > 0 {
		t := time.NewTicker(b.keepAlive)
		defer t.Stop()
		ping = t.C
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ping:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		case frame, ok := <-ch:
			if !ok {
				return
			}
			if _, err := w.Write(frame); err != nil {
				return
			}
		}
		flusher.Flush()
	}
}
