package strategy

import (
	"time"

	"tradecore/internal/instrument"
	"tradecore/internal/order"
)

// Cross is a simple moving-average crossover strategy over top-of-book mid
// prices. It goes long when the short average crosses above the long average
// and exits when it crosses back below. One position per instrument, entries
// as post-only limits at the touch.
//
// The engine calls GenerateOrders from a single goroutine, so Cross keeps its
// price windows unsynchronized.
type Cross struct {
	instruments []instrument.ID
	short       int
	long        int
	window      int
	quantity    float64

	prices     map[instrument.ID][]float64
	lastUpdate map[instrument.ID]time.Time
}

// NewCross builds a crossover strategy for the given instruments. quantity is
// the base-asset size of every entry order.
func NewCross(instruments []instrument.ID, short, long int, quantity float64) *Cross {
	if short <= 0 {
		short = 7
	}
	if long <= short {
		long = short * 3
	}
	window := long * 4
	return &Cross{
		instruments: instruments,
		short:       short,
		long:        long,
		window:      window,
		quantity:    quantity,
		prices:      make(map[instrument.ID][]float64),
		lastUpdate:  make(map[instrument.ID]time.Time),
	}
}

func (s *Cross) GenerateOrders(view StateView) ([]order.RequestCancel, []order.RequestOpen) {
	var (
		cancels []order.RequestCancel
		opens   []order.RequestOpen
	)

	for _, id := range s.instruments {
		quote, ok := view.Quote(id)
		if !ok || quote.BidPrice <= 0 || quote.AskPrice <= 0 {
			continue
		}

		// Only sample when the book actually moved.
		if !quote.LastUpdate.After(s.lastUpdate[id]) {
			continue
		}
		s.lastUpdate[id] = quote.LastUpdate

		window := append(s.prices[id], quote.Mid())
		if len(window) > s.window {
			window = window[len(window)-s.window:]
		}
		s.prices[id] = window

		fast := sma(window, s.short)
		slow := sma(window, s.long)
		if fast == 0 || slow == 0 {
			continue
		}

		pos, _ := view.Position(id)
		flat := pos == nil || pos.IsFlat()
		working := view.OpenOrders(id)

		switch {
		case fast > slow && flat && len(working) == 0:
			opens = append(opens, order.RequestOpen{
				Order: order.Order{
					Instrument: id,
					CID:        order.NewClientOrderID(),
					Side:       order.SideBuy,
				},
				Kind:        order.KindLimit,
				TimeInForce: order.GoodUntilCancelled,
				PostOnly:    true,
				Price:       quote.BidPrice,
				Quantity:    s.quantity,
			})

		case fast < slow && !flat && pos.Quantity > 0:
			// Exit: cancel working entries and sell the position at the ask.
			// A sell still working in any phase means the exit is already
			// underway; proposing another would oversell.
			sellWorking := false
			for _, tracked := range working {
				if tracked.Order.Side == order.SideSell {
					sellWorking = true
					continue
				}
				if tracked.State.Phase != order.PhaseOpen {
					continue
				}
				cancels = append(cancels, order.RequestCancel{
					Order: tracked.Order,
					ID:    tracked.State.Open.ID,
				})
			}
			if sellWorking {
				continue
			}
			opens = append(opens, order.RequestOpen{
				Order: order.Order{
					Instrument: id,
					CID:        order.NewClientOrderID(),
					Side:       order.SideSell,
				},
				Kind:        order.KindLimit,
				TimeInForce: order.GoodUntilCancelled,
				PostOnly:    true,
				Price:       quote.AskPrice,
				Quantity:    pos.Quantity,
			})
		}
	}

	return cancels, opens
}

// sma is the simple moving average of the last period values.
func sma(values []float64, period int) float64 {
	if period <= 0 || len(values) < period {
		return 0
	}
	sum := 0.0
	for i := len(values) - period; i < len(values); i++ {
		sum += values[i]
	}
	return sum / float64(period)
}
