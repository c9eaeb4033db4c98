package market

import (
	"context"
	"math/rand"
	"time"

	"tradecore/internal/instrument"
)

// MockFeed generates synthetic top-of-book updates for local development.
// Prices follow a simple random walk around StartPrice with a fixed spread.
type MockFeed struct {
	Instruments []instrument.Instrument
	StartPrice  float64
	Step        float64
	Spread      float64
	Interval    time.Duration
}

// Run starts the feed and returns its output channel. The channel closes
// when ctx is cancelled.
func (m *MockFeed) Run(ctx context.Context) <-chan Event {
	startPrice := m.StartPrice
	if startPrice == 0 {
		startPrice = 100.0
	}
	step := m.Step
	if step == 0 {
		step = 0.5
	}
	spread := m.Spread
	if spread == 0 {
		spread = startPrice * 0.0002
	}
	interval := m.Interval
	if interval == 0 {
		interval = time.Second
	}

	out := make(chan Event, len(m.Instruments))
	prices := make(map[instrument.ID]float64, len(m.Instruments))
	for _, in := range m.Instruments {
		prices[in.ID] = startPrice
	}

	go func() {
		defer close(out)
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				now := time.Now()
				for _, in := range m.Instruments {
					// simple random walk
					price := prices[in.ID] + (rand.Float64()*2-1)*step
					if price < spread {
						price = spread
					}
					prices[in.ID] = price

					ev := Event{
						Exchange:     in.Exchange,
						Instrument:   in.ID,
						TimeExchange: now,
						TimeReceived: now,
						Kind:         KindOrderBookL1,
						L1: OrderBookL1{
							LastUpdate: now,
							BidPrice:   price - spread/2,
							BidAmount:  1 + rand.Float64()*10,
							AskPrice:   price + spread/2,
							AskAmount:  1 + rand.Float64()*10,
						},
					}
					select {
					case out <- ev:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return out
}
