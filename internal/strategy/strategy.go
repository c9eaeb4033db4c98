// Package strategy defines the contract the engine consumes to turn state
// into candidate orders. Implementations are pure functions of the state
// view: they propose orders and must not mutate engine state or retain the
// view beyond the call.
package strategy

import (
	"tradecore/internal/asset"
	"tradecore/internal/events"
	"tradecore/internal/instrument"
	"tradecore/internal/market"
	"tradecore/internal/order"
	"tradecore/internal/position"
)

// StateView is the read-only window onto engine state a strategy receives.
type StateView interface {
	Instrument(id instrument.ID) (*instrument.Instrument, bool)
	Quote(id instrument.ID) (market.OrderBookL1, bool)
	Position(id instrument.ID) (*position.Position, bool)
	Balance(exchange instrument.Exchange, id asset.ID) (asset.Balance, bool)
	OpenOrders(id instrument.ID) []order.Tracked
}

// Strategy generates candidate cancel/open requests from current state.
type Strategy interface {
	GenerateOrders(view StateView) (cancels []order.RequestCancel, opens []order.RequestOpen)
}

// State is the strategy's own opaque sub-state, updated from every engine
// event alongside the core state.
type State interface {
	TryUpdate(ev *events.Event) error
	Clone() State
}

// Noop is the default strategy: it never proposes orders.
type Noop struct{}

func (Noop) GenerateOrders(StateView) ([]order.RequestCancel, []order.RequestOpen) {
	return nil, nil
}

// NoopState carries no state and never fails to update.
type NoopState struct{}

func (NoopState) TryUpdate(*events.Event) error { return nil }

func (s NoopState) Clone() State { return s }
