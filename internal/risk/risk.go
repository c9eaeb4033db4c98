// Package risk defines the approval gate between strategy-proposed orders
// and execution-bound requests. Every proposal is either approved or refused
// with a reason; refusals are informational and never retried by the engine.
package risk

import (
	"tradecore/internal/asset"
	"tradecore/internal/events"
	"tradecore/internal/instrument"
	"tradecore/internal/market"
	"tradecore/internal/order"
	"tradecore/internal/position"
)

// Approved wraps a request that passed risk checks.
type Approved[T any] struct {
	Item T
}

// Refused wraps a request that failed risk checks, with a human-readable
// reason.
type Refused[T any] struct {
	Item   T
	Reason string
}

// StateView is the read-only window onto engine state a risk manager
// receives.
type StateView interface {
	Instrument(id instrument.ID) (*instrument.Instrument, bool)
	Quote(id instrument.ID) (market.OrderBookL1, bool)
	Position(id instrument.ID) (*position.Position, bool)
	Balance(exchange instrument.Exchange, id asset.ID) (asset.Balance, bool)
	OpenOrders(id instrument.ID) []order.Tracked
}

// Manager filters strategy-proposed orders against engine state. Every input
// request must appear in exactly one of the four outputs.
type Manager interface {
	ApproveOrders(view StateView, cancels []order.RequestCancel, opens []order.RequestOpen) (
		approvedCancels []Approved[order.RequestCancel],
		approvedOpens []Approved[order.RequestOpen],
		refusedCancels []Refused[order.RequestCancel],
		refusedOpens []Refused[order.RequestOpen],
	)
}

// State is the risk manager's own opaque sub-state, updated from every
// engine event alongside the core state.
type State interface {
	TryUpdate(ev *events.Event) error
	Clone() State
}

// NoopState carries no state and never fails to update.
type NoopState struct{}

func (NoopState) TryUpdate(*events.Event) error { return nil }

func (s NoopState) Clone() State { return s }
