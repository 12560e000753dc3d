package events

import (
	"testing"
	"time"
)

func TestSubscribeAndEmit(t *testing.T) {
	type TestNotif1 struct{}
	type TestNotif2 struct{}

	bus := NewBus()

	sub1, err := bus.Subscribe(&TestNotif1{})
	if err != nil {
		t.Fatal(err)
	}

	sub2, err := bus.Subscribe(&TestNotif2{})
	if err != nil {
		t.Fatal(err)
	}

	go func() {
		bus.Emit(&TestNotif1{})
		bus.Emit(&TestNotif2{})
	}()

	notif1 := <-sub1.Out()
	_, ok := notif1.(*TestNotif1)
	if !ok {
		t.Error("Notification is wrong type")
	}

	notif2 := <-sub2.Out()
	_, ok = notif2.(*TestNotif2)
	if !ok {
		t.Error("Notification is wrong type")
	}

	if err := sub1.Close(); err != nil {
		t.Error(err)
	}

	if err := sub2.Close(); err != nil {
		t.Error(err)
	}

	// Closing twice is harmless and emitting with no subscribers does
	// not block.
	if err := sub1.Close(); err != nil {
		t.Error(err)
	}
	bus.Emit(&TestNotif1{})
}

func TestSubscribeMultipleTypes(t *testing.T) {
	bus := NewBus()

	sub, err := bus.Subscribe([]interface{}{new(FundingSent), new(FundingCredited)})
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Close()

	bus.Emit(&FundingSent{TxID: "a"})
	bus.Emit(&FundingCredited{TxID: "a"})

	if _, ok := (<-sub.Out()).(*FundingSent); !ok {
		t.Error("Expected FundingSent")
	}
	if _, ok := (<-sub.Out()).(*FundingCredited); !ok {
		t.Error("Expected FundingCredited")
	}
}

func TestSubscribe_NonPointer(t *testing.T) {
	bus := NewBus()
	if _, err := bus.Subscribe(FundingSent{}); err == nil {
		t.Error("Expected error subscribing with non-pointer type")
	}
}

func TestMatchField(t *testing.T) {
	bus := NewBus()

	sub, err := bus.Subscribe(new(FundingConfirmed), MatchField("TxID", "want"), MatchField("Chain", "mock"))
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Close()

	bus.Emit(&FundingConfirmed{TxID: "other", Chain: "mock"})
	bus.Emit(&FundingConfirmed{TxID: "want", Chain: "bitcoin"})
	bus.Emit(&FundingConfirmed{TxID: "want", Chain: "mock", Confirmations: 3})

	select {
	case e := <-sub.Out():
		evt := e.(*FundingConfirmed)
		if evt.TxID != "want" || evt.Confirmations != 3 {
			t.Errorf("Received unexpected event %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for event")
	}

	select {
	case e := <-sub.Out():
		t.Errorf("Received unexpected event %+v", e)
	default:
	}
}

func TestBufSize(t *testing.T) {
	bus := NewBus()
	if _, err := bus.Subscribe(new(FundingSent), BufSize(-1)); err == nil {
		t.Error("Expected error for negative buffer")
	}
}
