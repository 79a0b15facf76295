package transport

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"tickstock-core/internal/filter"
	"tickstock-core/internal/workerpool"
	"tickstock-core/pkg/events"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestPumpForwardsDisplayRecordsToBroadcast verifies items read off a
// display channel end up queued on the hub's broadcast buffer rather than
// requiring a live websocket client to observe.
func TestPumpForwardsDisplayRecordsToBroadcast(t *testing.T) {
	t.Parallel()

	h := NewHub(discardLogger())
	display := make(chan workerpool.DisplayItem, 1)
	stop := make(chan struct{})
	defer close(stop)

	go h.Pump(display, stop)

	display <- workerpool.DisplayItem{Event: events.Event{Ticker: "AAPL", Kind: events.KindTrend}}

	select {
	case item := <-h.broadcast:
		if item.Event.Ticker != "AAPL" {
			t.Errorf("ticker = %v, want AAPL", item.Event.Ticker)
		}
	case <-time.After(time.Second):
		t.Fatal("item was not forwarded to the broadcast channel")
	}
}

// TestPumpExitsWhenDisplayChannelCloses verifies Pump returns instead
// of spinning once the upstream display channel is closed.
func TestPumpExitsWhenDisplayChannelCloses(t *testing.T) {
	t.Parallel()

	h := NewHub(discardLogger())
	display := make(chan workerpool.DisplayItem)
	stop := make(chan struct{})
	close(display)

	done := make(chan struct{})
	go func() {
		h.Pump(display, stop)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Pump did not exit when display channel closed")
	}
}

// TestBroadcastDropsAndCountsWhenBufferFull verifies the broadcast
// buffer's documented overflow behavior: non-blocking, drop with a
// diagnostics counter (§4.4).
func TestBroadcastDropsAndCountsWhenBufferFull(t *testing.T) {
	t.Parallel()

	h := NewHub(discardLogger())
	// Fill the broadcast buffer (capacity 256) without a running Run
	// loop draining it, then push one more to force an overflow.
	for i := 0; i < cap(h.broadcast); i++ {
		h.Broadcast(workerpool.DisplayItem{Event: events.Event{Ticker: "A"}})
	}
	if h.Dropped() != 0 {
		t.Fatalf("expected no drops while buffer has room, got %d", h.Dropped())
	}

	h.Broadcast(workerpool.DisplayItem{Event: events.Event{Ticker: "OVERFLOW"}})
	if h.Dropped() != 1 {
		t.Fatalf("expected exactly one dropped record, got %d", h.Dropped())
	}
}

// TestRunRegistersAndBroadcastsToClients exercises the register/
// broadcast/unregister loop directly against fake clients (no real
// websocket connection), verifying a passing record reaches every
// registered client's send channel.
func TestRunRegistersAndBroadcastsToClients(t *testing.T) {
	t.Parallel()

	h := NewHub(discardLogger())
	stop := make(chan struct{})
	defer close(stop)
	go h.Run(stop)

	c := &Client{hub: h, send: make(chan []byte, 1), filterCfg: filter.DefaultConfig()}
	h.register <- c

	h.Broadcast(workerpool.DisplayItem{Event: events.Event{Ticker: "AAPL", Kind: events.KindAggregate}})

	select {
	case msg := <-c.send:
		if len(msg) == 0 {
			t.Error("expected a non-empty message delivered to client")
		}
	case <-time.After(time.Second):
		t.Fatal("client did not receive broadcast message")
	}

	h.unregister <- c
	select {
	case _, ok := <-c.send:
		if ok {
			t.Error("expected client's send channel to be closed after unregister")
		}
	case <-time.After(time.Second):
		t.Fatal("client send channel was not closed after unregister")
	}
}

// TestRunSkipsClientsWhoseFilterRejectsTheEvent verifies per-subscriber
// filtering: a client with a restrictive trend-strength filter never
// receives a weak trend, while a default-filter client does.
func TestRunSkipsClientsWhoseFilterRejectsTheEvent(t *testing.T) {
	t.Parallel()

	h := NewHub(discardLogger())
	stop := make(chan struct{})
	defer close(stop)
	go h.Run(stop)

	strict := filter.DefaultConfig()
	strict.Trends.Strength = events.StrengthStrong

	picky := &Client{hub: h, send: make(chan []byte, 1), filterCfg: strict}
	open := &Client{hub: h, send: make(chan []byte, 1), filterCfg: filter.DefaultConfig()}
	h.register <- picky
	h.register <- open

	weakTrend, err := events.NewTrend(events.TrendParams{
		Ticker: "AAPL", Price: 10, Direction: events.DirUp,
		Strength: events.StrengthWeak, VWAPPosition: events.VWAPAt,
	})
	if err != nil {
		t.Fatalf("NewTrend: %v", err)
	}
	h.Broadcast(workerpool.DisplayItem{Event: weakTrend})

	select {
	case <-open.send:
	case <-time.After(time.Second):
		t.Fatal("default-filter client did not receive the weak trend")
	}

	select {
	case <-picky.send:
		t.Fatal("strict-filter client should not have received a weak trend")
	case <-time.After(100 * time.Millisecond):
	}
}
