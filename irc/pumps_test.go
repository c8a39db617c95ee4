package irc

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"

	"twitch-ws-irc/telemetry"
)

// runClient запускает Run и останавливает его в t.Cleanup.
func runClient(t *testing.T, c *Client, h LineHandler) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, h) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("Run returned %v, want context.Canceled", err)
			}
		case <-time.After(2 * time.Second):
			t.Errorf("Run did not stop after cancel")
		}
	})
}

func TestRunRepliesToPing(t *testing.T) {
	c, ft := newTestClient(t, Options{Username: "bot"})
	runClient(t, c, NewDispatcher(c))

	ft.incoming <- []byte("PING :tmi.twitch.tv\r\n")
	ft.waitForLine(t, "PONG :tmi.twitch.tv")

	for _, l := range ft.lines() {
		if l.line == "PONG :tmi.twitch.tv" && l.priority {
			t.Fatalf("PONG must use the ordinary send queue")
		}
	}
}

func TestRunSplitsMultiLineMessages(t *testing.T) {
	c, ft := newTestClient(t, Options{Username: "bot"})
	runClient(t, c, NewDispatcher(c))

	ft.incoming <- []byte("PING :a\r\n\r\nPING :b\r\n")
	ft.waitForLine(t, "PONG :a")
	ft.waitForLine(t, "PONG :b")
}

func TestRunAppliesAndForwardsRoomstate(t *testing.T) {
	c, ft := newTestClient(t, Options{Username: "bot", PublicRoomstateQueueSize: 1})
	if _, err := c.Channels().Add("foo"); err != nil {
		t.Fatal(err)
	}
	runClient(t, c, NewDispatcher(c))

	ft.incoming <- []byte("@emote-only=0;followers-only=-1;r9k=0;room-id=42;slow=0;subs-only=0 :tmi.twitch.tv ROOMSTATE #foo")

	select {
	case rs := <-c.Roomstates():
		if rs.ChannelID != 42 || rs.Channel != "foo" {
			t.Fatalf("unexpected roomstate: %+v", rs)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("roomstate was not forwarded")
	}

	ch, ok := c.Channels().Channel(42)
	if !ok || ch.Name() != "foo" {
		t.Fatalf("roomstate must be applied before forwarding")
	}

	ft.incoming <- []byte("@slow=120 :tmi.twitch.tv ROOMSTATE #foo")
	select {
	case rs := <-c.Roomstates():
		if rs.Changed != ChangedSlowMode {
			t.Fatalf("unexpected flags: %s", rs.Changed)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("update was not forwarded")
	}
	if ch.SlowMode() != 120 {
		t.Fatalf("slow mode not applied: %d", ch.SlowMode())
	}
}

func TestRunDropsForwardWhenSubscriberIsSlow(t *testing.T) {
	c, ft := newTestClient(t, Options{Username: "bot", PublicRoomstateQueueSize: 1})
	for _, name := range []string{"a", "b", "c"} {
		if _, err := c.Channels().Add(name); err != nil {
			t.Fatal(err)
		}
	}
	runClient(t, c, NewDispatcher(c))

	ft.incoming <- []byte("@room-id=1;slow=0 :tmi.twitch.tv ROOMSTATE #a")
	ft.incoming <- []byte("@room-id=2;slow=0 :tmi.twitch.tv ROOMSTATE #b")
	ft.incoming <- []byte("@room-id=3;slow=0 :tmi.twitch.tv ROOMSTATE #c")

	// ROOMSTATE обрабатываются по порядку: когда применён третий,
	// пересылка второго уже завершилась
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := c.Channels().Channel(3); ok {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if len(c.Channels().Channels()) != 3 {
		t.Fatal("every roomstate must be applied even if it is not forwarded")
	}

	rs := <-c.Roomstates()
	if rs.ChannelID != 1 {
		t.Fatalf("expected first roomstate in queue, got %+v", rs)
	}
	select {
	case extra := <-c.Roomstates():
		if extra.ChannelID == 2 {
			t.Fatalf("second roomstate must be dropped")
		}
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRunSkipsRoomstateForUnknownChannel(t *testing.T) {
	c, ft := newTestClient(t, Options{Username: "bot", PublicRoomstateQueueSize: 4})
	if _, err := c.Channels().Add("known"); err != nil {
		t.Fatal(err)
	}
	runClient(t, c, NewDispatcher(c))

	ft.incoming <- []byte("@room-id=1;slow=0 :tmi.twitch.tv ROOMSTATE #parted")
	ft.incoming <- []byte("@room-id=2;slow=0 :tmi.twitch.tv ROOMSTATE #known")

	select {
	case rs := <-c.Roomstates():
		if rs.Channel != "known" {
			t.Fatalf("roomstate of a channel outside the registry was forwarded: %+v", rs)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("roomstate was not forwarded")
	}
	if _, ok := c.Channels().Channel(1); ok {
		t.Fatalf("unknown channel must not get state")
	}
}

func parseErrors(t *testing.T, kind string) float64 {
	t.Helper()
	var m dto.Metric
	if err := telemetry.ParseErrors.WithLabelValues(kind).Write(&m); err != nil {
		t.Fatalf("read metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestRunCountsMalformedLineOnce(t *testing.T) {
	telemetry.Init()
	c, ft := newTestClient(t, Options{Username: "bot"})
	runClient(t, c, NewDispatcher(c))

	roomstateBefore := parseErrors(t, "roomstate")
	lineBefore := parseErrors(t, "line")

	ft.incoming <- []byte("@room-id=abc :tmi.twitch.tv ROOMSTATE #foo")
	// строки обрабатываются по порядку: PONG означает, что первая уже учтена
	ft.incoming <- []byte("PING :sync")
	ft.waitForLine(t, "PONG :sync")

	if got := parseErrors(t, "roomstate") - roomstateBefore; got != 1 {
		t.Fatalf("roomstate parse errors: got %v, want 1", got)
	}
	if got := parseErrors(t, "line") - lineBefore; got != 0 {
		t.Fatalf("malformed roomstate must not be counted as a line error, got %v", got)
	}
}

func TestRunSurvivesHandlerPanic(t *testing.T) {
	c, ft := newTestClient(t, Options{Username: "bot"})

	var mu sync.Mutex
	var seen []string
	h := LineHandlerFunc(func(_ context.Context, line []byte) error {
		if string(line) == "boom" {
			panic("handler failure")
		}
		mu.Lock()
		seen = append(seen, string(line))
		mu.Unlock()
		return nil
	})
	runClient(t, c, h)

	ft.incoming <- []byte("boom")
	ft.incoming <- []byte("after")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(seen)
		mu.Unlock()
		if n == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 1 || seen[0] != "after" {
		t.Fatalf("read loop must continue after a panic, saw %q", seen)
	}
}
