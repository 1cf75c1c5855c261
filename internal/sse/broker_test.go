package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishRebuild_Delivery(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishRebuild(Rebuild{BuildID: "b1", Posts: 2, Duration: "1s"})

	for _, want := range []string{"event: site.rebuilt", "event: graph.updated"} {
		select {
		case msg := <-ch:
			s := string(msg)
			if !strings.Contains(s, want) {
				t.Errorf("got %q, want %s", s, want)
			}
			if !strings.Contains(s, `"build_id":"b1"`) {
				t.Errorf("missing build id in %q", s)
			}
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for %s", want)
		}
	}
}

func TestPublishRebuild_GraphThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// First rebuild should trigger graph.updated.
	b.PublishRebuild(Rebuild{BuildID: "a", Posts: 3})
	// Second rebuild immediately should NOT trigger another graph.updated.
	b.PublishRebuild(Rebuild{BuildID: "b", Posts: 4})

	// Drain and count events.
	time.Sleep(50 * time.Millisecond)
	graphCount := 0
	rebuildCount := 0
loop:
	for {
		select {
		case msg := <-ch:
			s := string(msg)
			if strings.Contains(s, "graph.updated") {
				graphCount++
			} else {
				rebuildCount++
			}
		default:
			break loop
		}
	}

	if rebuildCount != 2 {
		t.Errorf("rebuild events = %d, want 2", rebuildCount)
	}
	if graphCount != 1 {
		t.Errorf("graph events = %d, want 1 (throttled)", graphCount)
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	// Start handler in background.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	// Give handler time to subscribe.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.PublishRebuild(Rebuild{BuildID: "x", Posts: 1, Duration: "1s"})
	time.Sleep(50 * time.Millisecond)

	// Cancel context to disconnect.
	cancel()
	<-done

	body := w.Body.String()
	if !strings.HasPrefix(body, "retry: 1000\n\n") {
		t.Errorf("missing retry hint: %q", body)
	}
	if !strings.Contains(body, "event: site.rebuilt") || !strings.Contains(body, `"posts":1`) {
		t.Errorf("handler output missing event: %q", body)
	}

	// Client should be cleaned up.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishRebuild_SlowClientDoesNotBlock(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Overflow the client buffer; the broker must keep serving.
	for i := 0; i < clientBuffer+10; i++ {
		b.PublishRebuild(Rebuild{BuildID: "x"})
	}
	if b.ClientCount() != 1 {
		t.Errorf("broker stalled or dropped the slow client")
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	// Should be safe no-op after close.
	b.PublishRebuild(Rebuild{BuildID: "late"})
}

func TestPublishRebuild_FailureSkipsGraph(t *testing.T) {
	b := NewBroker(time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishRebuild(Rebuild{BuildID: "f", Error: "list gists: timeout"})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: site.build_failed") || !strings.Contains(s, "timeout") {
			t.Errorf("unexpected message %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}

	time.Sleep(20 * time.Millisecond)
	select {
	case msg := <-ch:
		t.Errorf("unexpected extra event %q", msg)
	default:
	}
}
