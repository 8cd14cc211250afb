package bus

import (
	"testing"
	"time"

	natssrv "github.com/nats-io/nats-server/v2/server"

	"github.com/fluxorio/signal/pkg/signal"
)

func runTestNATSServer(t *testing.T) *natssrv.Server {
	t.Helper()

	opts := &natssrv.Options{
		Port: -1,
	}
	s, err := natssrv.NewServer(opts)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	go s.Start()
	if !s.ReadyForConnections(5 * time.Second) {
		s.Shutdown()
		t.Fatalf("nats server not ready")
	}
	t.Cleanup(func() {
		s.Shutdown()
	})
	return s
}

type testEvent struct {
	ID    int    `json:"id"`
	Label string `json:"label"`
}

func waitFor(t *testing.T, ch <-chan testEvent) testEvent {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
		return testEvent{}
	}
}

func TestClusterBridgeCrossDelivery(t *testing.T) {
	srv := runTestNATSServer(t)
	url := srv.ClientURL()

	busA := NewBus[testEvent](signal.WithLogger(signal.NopLogger()))
	busB := NewBus[testEvent](signal.WithLogger(signal.NopLogger()))

	bridgeA, err := NewClusterBridge(busA, ClusterConfig{
		URL:    url,
		Prefix: "signal.test",
		Name:   "bridge-a",
		Logger: signal.NopLogger(),
	})
	if err != nil {
		t.Fatalf("NewClusterBridge(A): %v", err)
	}
	defer bridgeA.Close()

	bridgeB, err := NewClusterBridge(busB, ClusterConfig{
		URL:    url,
		Prefix: "signal.test",
		Name:   "bridge-b",
		Logger: signal.NopLogger(),
	})
	if err != nil {
		t.Fatalf("NewClusterBridge(B): %v", err)
	}
	defer bridgeB.Close()

	localA := make(chan testEvent, 4)
	remoteB := make(chan testEvent, 4)
	ha, _ := busA.Subscribe("orders", func(v testEvent) { localA <- v })
	hb, _ := busB.Subscribe("orders", func(v testEvent) { remoteB <- v })
	defer ha.Close()
	defer hb.Close()

	want := testEvent{ID: 7, Label: "created"}
	if err := bridgeA.Publish("orders", want); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	// Local delivery is synchronous.
	if got := waitFor(t, localA); got != want {
		t.Errorf("local delivery = %+v, want %+v", got, want)
	}
	// Remote delivery crosses the wire.
	if got := waitFor(t, remoteB); got != want {
		t.Errorf("remote delivery = %+v, want %+v", got, want)
	}
}

// A bridge must not republish its own messages when the server echoes them
// back, or every publish would be delivered locally twice.
func TestClusterBridgeIgnoresOwnEcho(t *testing.T) {
	srv := runTestNATSServer(t)

	b := NewBus[testEvent](signal.WithLogger(signal.NopLogger()))
	bridge, err := NewClusterBridge(b, ClusterConfig{
		URL:    srv.ClientURL(),
		Prefix: "signal.echo",
		Logger: signal.NopLogger(),
	})
	if err != nil {
		t.Fatalf("NewClusterBridge: %v", err)
	}
	defer bridge.Close()

	got := make(chan testEvent, 4)
	h, _ := b.Subscribe("ping", func(v testEvent) { got <- v })
	defer h.Close()

	if err := bridge.Publish("ping", testEvent{ID: 1}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := bridge.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	waitFor(t, got)
	// Allow any echo to arrive before asserting it was suppressed.
	select {
	case v := <-got:
		t.Errorf("callback invoked again with %+v; echo was not suppressed", v)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestClusterBridgeTopicFilter(t *testing.T) {
	srv := runTestNATSServer(t)
	url := srv.ClientURL()

	busA := NewBus[testEvent](signal.WithLogger(signal.NopLogger()))
	busB := NewBus[testEvent](signal.WithLogger(signal.NopLogger()))

	bridgeA, err := NewClusterBridge(busA, ClusterConfig{URL: url, Prefix: "signal.filter", Logger: signal.NopLogger()})
	if err != nil {
		t.Fatalf("NewClusterBridge(A): %v", err)
	}
	defer bridgeA.Close()

	bridgeB, err := NewClusterBridge(busB, ClusterConfig{
		URL:    url,
		Prefix: "signal.filter",
		Topics: []string{"allowed"},
		Logger: signal.NopLogger(),
	})
	if err != nil {
		t.Fatalf("NewClusterBridge(B): %v", err)
	}
	defer bridgeB.Close()

	allowed := make(chan testEvent, 4)
	denied := make(chan testEvent, 4)
	ha, _ := busB.Subscribe("allowed", func(v testEvent) { allowed <- v })
	hd, _ := busB.Subscribe("denied", func(v testEvent) { denied <- v })
	defer ha.Close()
	defer hd.Close()

	if err := bridgeA.Publish("denied", testEvent{ID: 1}); err != nil {
		t.Fatalf("Publish(denied): %v", err)
	}
	if err := bridgeA.Publish("allowed", testEvent{ID: 2}); err != nil {
		t.Fatalf("Publish(allowed): %v", err)
	}

	if got := waitFor(t, allowed); got.ID != 2 {
		t.Errorf("allowed topic received %+v, want ID 2", got)
	}
	select {
	case v := <-denied:
		t.Errorf("filtered topic received %+v", v)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestClusterBridgeClosedPublish(t *testing.T) {
	srv := runTestNATSServer(t)

	b := NewBus[testEvent](signal.WithLogger(signal.NopLogger()))
	bridge, err := NewClusterBridge(b, ClusterConfig{URL: srv.ClientURL(), Logger: signal.NopLogger()})
	if err != nil {
		t.Fatalf("NewClusterBridge: %v", err)
	}

	if err := bridge.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// Close is idempotent.
	if err := bridge.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := bridge.Publish("x", testEvent{}); err == nil {
		t.Error("Publish() on closed bridge succeeded, want error")
	}
}
