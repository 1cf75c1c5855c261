// Package sse pushes build notifications to preview browsers as Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Event names sent to clients.
const (
	EventSiteRebuilt  = "site.rebuilt"
	EventBuildFailed  = "site.build_failed"
	EventGraphUpdated = "graph.updated"
)

// clientBuffer bounds undelivered frames per client; slow clients miss frames.
const clientBuffer = 64

// Rebuild describes the outcome of one site build.
type Rebuild struct {
	BuildID  string `json:"build_id"`
	Posts    int    `json:"posts"`
	Duration string `json:"duration"`
	Error    string `json:"error,omitempty"`
}

// frame encodes one SSE message.
func frame(event string, data any) []byte {
	payload, err := json.Marshal(data)
	if err != nil {
		payload = []byte("{}")
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event, payload))
}

// Broker fans build notifications out to connected clients.
//
// A single loop goroutine owns the client set and the graph throttle; the
// exported methods only talk to it over channels.
type Broker struct {
	graphEvery time.Duration

	join    chan chan []byte
	leave   chan chan []byte
	builds  chan Rebuild
	counter chan chan int

	stop    chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker starts a broker. graph.updated is sent at most once per
// graphThrottle; zero or less means two seconds.
func NewBroker(graphThrottle time.Duration) *Broker {
	if graphThrottle <= 0 {
		graphThrottle = 2 * time.Second
	}
	b := &Broker{
		graphEvery: graphThrottle,
		join:       make(chan chan []byte),
		leave:      make(chan chan []byte),
		builds:     make(chan Rebuild, 16),
		counter:    make(chan chan int),
		stop:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}
	go b.loop()
	return b
}

func (b *Broker) loop() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var lastGraph time.Time

	send := func(msg []byte) {
		for ch := range clients {
			select {
			case ch <- msg:
			default:
			}
		}
	}

	for {
		select {
		case <-b.stop:
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-b.join:
			clients[ch] = struct{}{}

		case ch := <-b.leave:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case r := <-b.builds:
			if r.Error != "" {
				send(frame(EventBuildFailed, r))
				continue
			}
			send(frame(EventSiteRebuilt, r))
			if now := time.Now(); now.Sub(lastGraph) >= b.graphEvery {
				lastGraph = now
				send(frame(EventGraphUpdated, map[string]string{"build_id": r.BuildID}))
			}

		case resp := <-b.counter:
			resp <- len(clients)
		}
	}
}

// Close stops the loop and closes every client channel. It is idempotent.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stop)
	}
	<-b.stopped
}

// Subscribe registers a client. The channel is closed by Unsubscribe or Close.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, clientBuffer)
	if b.closed.Load() {
		close(ch)
		return ch
	}
	select {
	case b.join <- ch:
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
	case b.leave <- ch:
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
	case b.counter <- resp:
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

// PublishRebuild announces a finished build. A failed build sends only
// site.build_failed; a successful one sends site.rebuilt followed by a
// throttled graph.updated.
func (b *Broker) PublishRebuild(r Rebuild) {
	if b.closed.Load() {
		return
	}
	select {
	case b.builds <- r:
	case <-b.stopped:
	}
}

// ServeHTTP streams events to one client until it disconnects (GET /api/events).
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
	w.WriteHeader(http.StatusOK)
	// Reconnect quickly after the preview server restarts.
	_, _ = fmt.Fprint(w, "retry: 1000\n\n")
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
