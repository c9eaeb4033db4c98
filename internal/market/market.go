package market

import (
	"time"

	"tradecore/internal/instrument"
)

// DataKind tags the payload carried by an Event.
type DataKind string

const (
	// KindOrderBookL1 is a top-of-book update, the only kind this core
	// folds into state. Other kinds are dropped with a warning.
	KindOrderBookL1 DataKind = "order_book_l1"
	KindTrade       DataKind = "public_trade"
	KindCandle      DataKind = "candle"
)

// Event is one market data update delivered by an upstream adapter.
type Event struct {
	Exchange     instrument.Exchange
	Instrument   instrument.ID
	TimeExchange time.Time
	TimeReceived time.Time
	Kind         DataKind
	L1           OrderBookL1 // populated when Kind == KindOrderBookL1
}

// OrderBookL1 is the latest top-of-book for one instrument.
type OrderBookL1 struct {
	LastUpdate time.Time
	BidPrice   float64
	BidAmount  float64
	AskPrice   float64
	AskAmount  float64
}

// Mid returns the mid price, or 0 when either side is missing.
func (l OrderBookL1) Mid() float64 {
	if l.BidPrice == 0 || l.AskPrice == 0 {
		return 0
	}
	return (l.BidPrice + l.AskPrice) / 2
}

// State owns the latest known market data for one instrument.
type State struct {
	L1 OrderBookL1
}

// UpdateFromL1 replaces the stored top-of-book wholesale.
func (s *State) UpdateFromL1(l1 OrderBookL1) {
	s.L1 = l1
}
