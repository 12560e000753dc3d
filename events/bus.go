// Package events carries funding progress from the relay client to
// whoever is watching it, usually the CLI.
package events

import "io"

// SubscriptionOpt configures a subscription. See BufSize and MatchField.
type SubscriptionOpt = func(interface{}) error

// Subscription delivers the events of the types it was created for.
type Subscription interface {
	io.Closer

	// Out returns the channel events are delivered on. It is closed by
	// Close.
	Out() <-chan interface{}
}

// Bus routes events to subscribers by their concrete type. Events are
// emitted as pointers, e.g. &FundingSent{...}.
type Bus interface {
	// Subscribe registers for one event type, given as a pointer, or for
	// several types given as a slice of pointers. All of them arrive on
	// the same channel.
	//
	// A subscriber that stops draining Out stalls the funding that is
	// emitting, so size the buffer with BufSize when progress is printed
	// asynchronously.
	//
	// Following a single funding:
	//
	//  sub, err := bus.Subscribe(new(FundingConfirmed), MatchField("TxID", txid))
	//  defer sub.Close()
	//  evt := (<-sub.Out()).(*FundingConfirmed)
	//
	// Following every step:
	//
	//  sub, err := bus.Subscribe([]interface{}{
	//    new(FundingSent),
	//    new(FundingConfirmationUpdate),
	//    new(FundingFailed),
	//  }, BufSize(32))
	//  defer sub.Close()
	//  for e := range sub.Out() {
	//    switch evt := e.(type) {
	//    case *FundingSent:
	//      fmt.Println("sent", evt.TxID)
	//    case *FundingConfirmationUpdate:
	//      fmt.Println(evt.Confirmations, "of", evt.Required)
	//    case *FundingFailed:
	//      fmt.Println("failed at", evt.Step, evt.Err)
	//    }
	//  }
	Subscribe(eventType interface{}, opts ...SubscriptionOpt) (Subscription, error)

	// Emit delivers evt to every matching subscriber of its type and
	// blocks while any of their buffers is full.
	Emit(evt interface{})
}
