package engine

import (
	"sort"

	"tradecore/internal/market"
	"tradecore/internal/order"
	"tradecore/internal/position"
)

// StateSnapshot is the serializable form of State used by audit consumers
// (journal rows, websocket frames, the ops API). Slices are sorted by key so
// snapshots of equal state encode identically.
type StateSnapshot struct {
	OrdersEnabled   bool                 `json:"orders_enabled"`
	ResyncRequested bool                 `json:"resync_requested"`
	Balances        []BalanceEntry       `json:"balances"`
	Instruments     []InstrumentSnapshot `json:"instruments"`
}

// BalanceEntry is one (exchange, asset) balance row.
type BalanceEntry struct {
	Exchange string  `json:"exchange"`
	Asset    uint64  `json:"asset"`
	Total    float64 `json:"total"`
	Free     float64 `json:"free"`
}

// InstrumentSnapshot is the serializable state of one instrument.
type InstrumentSnapshot struct {
	ID           uint64              `json:"id"`
	Exchange     string              `json:"exchange"`
	NameExchange string              `json:"name_exchange"`
	Market       market.OrderBookL1  `json:"market"`
	Position     position.Position   `json:"position"`
	Orders       []TrackedOrderEntry `json:"orders"`
}

// TrackedOrderEntry is one tracked order row.
type TrackedOrderEntry struct {
	CID      string  `json:"cid"`
	Side     string  `json:"side"`
	Phase    string  `json:"phase"`
	OrderID  string  `json:"order_id,omitempty"`
	Price    float64 `json:"price,omitempty"`
	Quantity float64 `json:"quantity,omitempty"`
	Filled   float64 `json:"filled,omitempty"`
}

// Snapshot renders the state into its serializable form.
func (s *State) Snapshot() StateSnapshot {
	snap := StateSnapshot{
		OrdersEnabled:   s.OrdersEnabled(),
		ResyncRequested: s.resyncRequested,
	}

	for exchange, byAsset := range s.balances.All() {
		for id, bal := range byAsset {
			snap.Balances = append(snap.Balances, BalanceEntry{
				Exchange: string(exchange),
				Asset:    uint64(id),
				Total:    bal.Total,
				Free:     bal.Free,
			})
		}
	}
	sort.Slice(snap.Balances, func(i, j int) bool {
		if snap.Balances[i].Exchange != snap.Balances[j].Exchange {
			return snap.Balances[i].Exchange < snap.Balances[j].Exchange
		}
		return snap.Balances[i].Asset < snap.Balances[j].Asset
	})

	s.instruments.Each(func(state *InstrumentState) {
		entry := InstrumentSnapshot{
			ID:           uint64(state.Instrument.ID),
			Exchange:     string(state.Instrument.Exchange),
			NameExchange: state.Instrument.NameExchange,
			Market:       state.Market.L1,
			Position:     state.Position,
		}
		state.Orders.Each(func(t *order.Tracked) {
			row := TrackedOrderEntry{
				CID:   string(t.CID),
				Side:  string(t.Side),
				Phase: t.State.Phase.String(),
			}
			if t.State.Phase == order.PhaseOpen {
				row.OrderID = string(t.State.Open.ID)
				row.Price = t.State.Open.Price
				row.Quantity = t.State.Open.Quantity
				row.Filled = t.State.Open.FilledQuantity
			}
			if t.State.Phase == order.PhaseCancelInFlight {
				row.OrderID = string(t.State.Cancel.ID)
			}
			entry.Orders = append(entry.Orders, row)
		})
		sort.Slice(entry.Orders, func(i, j int) bool { return entry.Orders[i].CID < entry.Orders[j].CID })
		snap.Instruments = append(snap.Instruments, entry)
	})
	sort.Slice(snap.Instruments, func(i, j int) bool { return snap.Instruments[i].ID < snap.Instruments[j].ID })

	return snap
}
