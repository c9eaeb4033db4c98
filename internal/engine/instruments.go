package engine

import (
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"tradecore/internal/account"
	"tradecore/internal/instrument"
	"tradecore/internal/market"
	"tradecore/internal/order"
	"tradecore/internal/position"
)

// InstrumentState owns everything the engine believes about one instrument:
// its immutable definition, the latest market data, the tracked order map,
// and the position.
type InstrumentState struct {
	Instrument instrument.Instrument
	Market     market.State
	Orders     *order.Orders
	Position   position.Position
}

// Instruments is the immutable-key map of all configured instruments.
// Events referencing instruments absent from this map are rejected with a
// warning, not a crash; the universe is fixed at configuration time.
type Instruments struct {
	m   map[instrument.ID]*InstrumentState
	log *zap.Logger

	// Market data arrives at feed rate, so warns about unconfigured
	// instruments on that path are throttled to avoid log flooding.
	marketWarn *rate.Limiter
}

// NewInstruments builds the instrument universe with flat positions.
func NewInstruments(log *zap.Logger, universe []instrument.Instrument, portfolio position.PortfolioID) *Instruments {
	if log == nil {
		log = zap.NewNop()
	}
	m := make(map[instrument.ID]*InstrumentState, len(universe))
	for _, instr := range universe {
		m[instr.ID] = &InstrumentState{
			Instrument: instr,
			Orders:     order.NewOrders(log),
			Position:   position.Flat(instr.ID, portfolio),
		}
	}
	return &Instruments{
		m:          m,
		log:        log,
		marketWarn: rate.NewLimiter(rate.Limit(1), 5),
	}
}

// State returns the state for one instrument, if configured.
func (i *Instruments) State(id instrument.ID) (*InstrumentState, bool) {
	s, ok := i.m[id]
	return s, ok
}

// Each calls fn for every configured instrument state.
func (i *Instruments) Each(fn func(*InstrumentState)) {
	for _, s := range i.m {
		fn(s)
	}
}

// UpdateFromMarket folds one market data update into the matching
// instrument's market state. Only top-of-book updates are supported.
func (i *Instruments) UpdateFromMarket(event *market.Event) {
	state, ok := i.m[event.Instrument]
	if !ok {
		if i.marketWarn.Allow() {
			i.log.Warn("ignoring market event for unconfigured instrument",
				zap.String("exchange", string(event.Exchange)),
				zap.Uint64("instrument", uint64(event.Instrument)),
			)
		}
		return
	}

	if event.Kind != market.KindOrderBookL1 {
		if i.marketWarn.Allow() {
			i.log.Warn("ignoring market event of unsupported kind",
				zap.String("kind", string(event.Kind)),
				zap.Uint64("instrument", uint64(event.Instrument)),
			)
		}
		return
	}

	state.Market.UpdateFromL1(event.L1)
}

// RecordInFlights inserts OpenInFlight records for approved opens. An
// unconfigured instrument here is programmer error: in-flights are
// synthesized from requests the engine itself generated, so the instrument
// must have been configured. Fail fast.
func (i *Instruments) RecordInFlights(orders []order.Order) {
	for _, ord := range orders {
		state, ok := i.m[ord.Instrument]
		if !ok {
			panic(fmt.Sprintf("cannot record in-flight order for unconfigured instrument %d", ord.Instrument))
		}
		state.Orders.RecordInFlights([]order.Order{ord})
	}
}

// RecordCancelInFlight transitions an order to CancelInFlight after its
// cancel request was approved and sent.
func (i *Instruments) RecordCancelInFlight(request order.RequestCancel) {
	state, ok := i.m[request.Instrument]
	if !ok {
		panic(fmt.Sprintf("cannot record cancel in-flight for unconfigured instrument %d", request.Instrument))
	}
	state.Orders.RecordCancelInFlight(request)
}

// UpdateFromOpen routes an open response to the matching order map.
func (i *Instruments) UpdateFromOpen(response *order.OpenResponse) {
	state, ok := i.m[response.Instrument]
	if !ok {
		i.log.Warn("ignoring open response for unconfigured instrument",
			zap.Uint64("instrument", uint64(response.Instrument)),
			zap.String("cid", string(response.CID)),
		)
		return
	}
	state.Orders.UpdateFromOpen(response)
}

// UpdateFromCancel routes a cancel response to the matching order map.
func (i *Instruments) UpdateFromCancel(response *order.CancelResponse) {
	state, ok := i.m[response.Instrument]
	if !ok {
		i.log.Warn("ignoring cancel response for unconfigured instrument",
			zap.Uint64("instrument", uint64(response.Instrument)),
			zap.String("cid", string(response.CID)),
		)
		return
	}
	state.Orders.UpdateFromCancel(response)
}

// UpdateFromOrderSnapshot reconciles one order to exchange-reported truth.
func (i *Instruments) UpdateFromOrderSnapshot(snapshot *order.ExchangeOrder) {
	state, ok := i.m[snapshot.Instrument]
	if !ok {
		i.log.Warn("ignoring order snapshot for unconfigured instrument",
			zap.Uint64("instrument", uint64(snapshot.Instrument)),
			zap.String("cid", string(snapshot.CID)),
		)
		return
	}
	state.Orders.UpdateFromSnapshot(snapshot)
}

// UpdateFromPositionSnapshot replaces the full position for a configured
// instrument.
func (i *Instruments) UpdateFromPositionSnapshot(snapshot *position.Position) {
	state, ok := i.m[snapshot.Instrument]
	if !ok {
		i.log.Warn("ignoring position snapshot for unconfigured instrument",
			zap.Uint64("instrument", uint64(snapshot.Instrument)),
		)
		return
	}
	state.Position = *snapshot
}

// UpdateFromTrade folds one fill into the matching position. Open-order
// filled quantities are reconciled by order snapshots, not trades.
func (i *Instruments) UpdateFromTrade(trade *order.Trade) {
	state, ok := i.m[trade.Instrument]
	if !ok {
		i.log.Warn("ignoring trade for unconfigured instrument",
			zap.Uint64("instrument", uint64(trade.Instrument)),
			zap.String("trade", string(trade.ID)),
		)
		return
	}
	state.Position.ApplyTrade(trade)
}

// UpdateFromInstrumentSnapshot replaces position and orders for one
// instrument from a full account resync, wiping in-flight requests.
func (i *Instruments) UpdateFromInstrumentSnapshot(snapshot *account.InstrumentSnapshot) {
	state, ok := i.m[snapshot.Position.Instrument]
	if !ok {
		i.log.Warn("ignoring account instrument snapshot for unconfigured instrument",
			zap.Uint64("instrument", uint64(snapshot.Position.Instrument)),
		)
		return
	}
	state.Position = snapshot.Position
	state.Orders.Replace(snapshot.Orders)
}

// Clone returns a deep copy sharing only the logger and limiter.
func (i *Instruments) Clone() *Instruments {
	m := make(map[instrument.ID]*InstrumentState, len(i.m))
	for id, s := range i.m {
		m[id] = &InstrumentState{
			Instrument: s.Instrument,
			Market:     s.Market,
			Orders:     s.Orders.Clone(),
			Position:   s.Position,
		}
	}
	return &Instruments{m: m, log: i.log, marketWarn: i.marketWarn}
}
