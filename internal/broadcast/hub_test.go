package broadcast

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/uhyunpark/hyperlicked-indexer/internal/events"
)

func newTestClient(room string) *Client {
	c := &Client{
		send:          make(chan []byte, 8),
		id:            "test-client",
		subscriptions: map[string]bool{},
		maxSubs:       8,
		log:           zap.NewNop(),
	}
	if room != "" {
		c.subscriptions[room] = true
	}
	return c
}

func TestHubRegisterBroadcastUnregister(t *testing.T) {
	h := NewHub(zap.NewNop(), Config{}, nil, nil)
	stop := make(chan struct{})
	go h.Run(stop)
	defer close(stop)

	client := newTestClient("events:mintA")
	h.register <- client

	deadline := time.Now().Add(time.Second)
	for h.ClientCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for client registration")
		}
		time.Sleep(time.Millisecond)
	}

	h.BroadcastEvent(events.TokenCreated{MintAccount: "mintA", Signature: "sig1"})

	select {
	case payload := <-client.send:
		if len(payload) == 0 {
			t.Error("received empty payload")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for broadcast payload")
	}

	h.unregister <- client
	deadline = time.Now().Add(time.Second)
	for h.ClientCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for client unregistration")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestHubBroadcastSkipsUnsubscribedClients(t *testing.T) {
	h := NewHub(zap.NewNop(), Config{}, nil, nil)
	stop := make(chan struct{})
	go h.Run(stop)
	defer close(stop)

	subscribed := newTestClient("events:mintA")
	other := newTestClient("events:mintB")
	h.register <- subscribed
	h.register <- other

	deadline := time.Now().Add(time.Second)
	for h.ClientCount() != 2 {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for client registration")
		}
		time.Sleep(time.Millisecond)
	}

	h.BroadcastEvent(events.TokenCreated{MintAccount: "mintA", Signature: "sig1"})

	select {
	case <-subscribed.send:
	case <-time.After(time.Second):
		t.Fatal("subscribed client never received the broadcast")
	}

	select {
	case <-other.send:
		t.Fatal("unsubscribed client should not have received the broadcast")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcastClosedOrdersSkipsEmptyRecords(t *testing.T) {
	h := NewHub(zap.NewNop(), Config{ClientSendBuffer: 1}, nil, nil)
	stop := make(chan struct{})
	go h.Run(stop)
	defer close(stop)

	h.BroadcastClosedOrders("mintA", "", nil)

	select {
	case msg := <-h.broadcast:
		t.Fatalf("expected no message queued for an empty record set, got %v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}
