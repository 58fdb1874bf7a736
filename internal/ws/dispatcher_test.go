package ws

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/adityaxdubey/whisper-rebellion/internal/models"
)

func testClient() *Client {
	return &Client{send: make(chan []byte, sendBuffer)}
}

func drainEvent(t *testing.T, c *Client) models.Event {
	t.Helper()
	select {
	case data := <-c.send:
		var ev models.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Fatalf("invalid event frame: %v", err)
		}
		return ev
	default:
		t.Fatal("expected a queued event")
		return models.Event{}
	}
}

func TestDispatchFansOutToAllReceiverConnections(t *testing.T) {
	reg := NewRegistry()
	d := NewDispatcher(reg, zerolog.Nop())

	recvA := testClient()
	recvB := testClient()
	sender := testClient()
	reg.Add("conn-a", recvA, 7)
	reg.Add("conn-b", recvB, 7)
	reg.Add("conn-s", sender, 3)

	msg := &models.Message{ID: 1, SenderID: 3, ReceiverID: 7, Text: "hi", CreatedAt: time.Now()}
	delivered, acked := d.Dispatch(msg, "Alice", "conn-s")

	if delivered != 2 {
		t.Fatalf("expected 2 deliveries, got %d", delivered)
	}
	if !acked {
		t.Fatal("expected sender ack")
	}

	for _, c := range []*Client{recvA, recvB} {
		ev := drainEvent(t, c)
		if ev.Type != models.EventNewMessage {
			t.Errorf("expected %q, got %q", models.EventNewMessage, ev.Type)
		}
		if ev.Payload == nil || ev.Payload.Text != "hi" || ev.Payload.SenderName != "Alice" {
			t.Errorf("bad payload: %+v", ev.Payload)
		}
		if ev.ID == "" {
			t.Error("event id missing")
		}
	}

	ack := drainEvent(t, sender)
	if ack.Type != models.EventMessageSent {
		t.Errorf("expected %q ack, got %q", models.EventMessageSent, ack.Type)
	}
}

func TestDispatchOfflineReceiver(t *testing.T) {
	reg := NewRegistry()
	d := NewDispatcher(reg, zerolog.Nop())

	sender := testClient()
	reg.Add("conn-s", sender, 3)

	msg := &models.Message{ID: 1, SenderID: 3, ReceiverID: 7, Text: "hi"}
	delivered, acked := d.Dispatch(msg, "Alice", "conn-s")

	if delivered != 0 {
		t.Fatalf("expected 0 deliveries, got %d", delivered)
	}
	if !acked {
		t.Fatal("sender must still be acknowledged")
	}
}

func TestDispatchUnknownSenderHandle(t *testing.T) {
	reg := NewRegistry()
	d := NewDispatcher(reg, zerolog.Nop())

	msg := &models.Message{ID: 1, SenderID: 3, ReceiverID: 7, Text: "hi"}
	delivered, acked := d.Dispatch(msg, "Alice", "gone")

	if delivered != 0 || acked {
		t.Fatalf("expected no delivery and no ack, got %d, %v", delivered, acked)
	}
}

func TestDispatchRacesDisconnect(t *testing.T) {
	reg := NewRegistry()
	d := NewDispatcher(reg, zerolog.Nop())
	hub := &Hub{registry: reg, logger: zerolog.Nop()}

	clients := make([]*Client, 16)
	for i := range clients {
		clients[i] = testClient()
		clients[i].ID = fmt.Sprintf("conn-%d", i)
		reg.Add(clients[i].ID, clients[i], 7)
	}

	msg := &models.Message{ID: 1, SenderID: 3, ReceiverID: 7, Text: "hi", CreatedAt: time.Now()}

	// A receiver disconnecting mid-dispatch must drop the frame for
	// that session, never send on a closed channel.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			d.Dispatch(msg, "Alice", "")
		}
	}()
	go func() {
		defer wg.Done()
		for _, c := range clients {
			hub.disconnect(c)
		}
	}()
	wg.Wait()

	if reg.Len() != 0 {
		t.Fatalf("expected empty registry, got %d", reg.Len())
	}
	if clients[0].enqueue(models.Event{Type: models.EventNewMessage}) {
		t.Fatal("enqueue on a closed client must report a drop")
	}
}

func TestCloseSendIdempotent(t *testing.T) {
	c := testClient()
	c.closeSend()
	// Second close must be a no-op, not a panic on the closed channel.
	c.closeSend()
	if c.enqueue(models.Event{}) {
		t.Fatal("closed client accepted an event")
	}
}

func TestDispatchDropsOnFullBuffer(t *testing.T) {
	reg := NewRegistry()
	d := NewDispatcher(reg, zerolog.Nop())

	slow := &Client{send: make(chan []byte)}
	reg.Add("conn-slow", slow, 7)

	msg := &models.Message{ID: 1, SenderID: 3, ReceiverID: 7, Text: "hi"}
	delivered, _ := d.Dispatch(msg, "Alice", "")

	if delivered != 0 {
		t.Fatalf("unbuffered client should drop, got %d deliveries", delivered)
	}
}
