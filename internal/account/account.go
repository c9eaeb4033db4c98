package account

import (
	"tradecore/internal/asset"
	"tradecore/internal/instrument"
	"tradecore/internal/order"
	"tradecore/internal/position"
)

// Snapshot wraps a value that is authoritative, exchange-reported truth.
// Snapshots always win over locally inferred state during reconciliation.
type Snapshot[T any] struct {
	Value T
}

// NewSnapshot wraps v.
func NewSnapshot[T any](v T) Snapshot[T] {
	return Snapshot[T]{Value: v}
}

// EventKind tags the payload carried by an account Event.
type EventKind uint8

const (
	KindSnapshot EventKind = iota + 1
	KindBalanceSnapshot
	KindOrderSnapshot
	KindPositionSnapshot
	KindOrderOpened
	KindOrderCancelled
	KindTrade
	KindConnectivityError
)

func (k EventKind) String() string {
	switch k {
	case KindSnapshot:
		return "snapshot"
	case KindBalanceSnapshot:
		return "balance_snapshot"
	case KindOrderSnapshot:
		return "order_snapshot"
	case KindPositionSnapshot:
		return "position_snapshot"
	case KindOrderOpened:
		return "order_opened"
	case KindOrderCancelled:
		return "order_cancelled"
	case KindTrade:
		return "trade"
	case KindConnectivityError:
		return "connectivity_error"
	default:
		return "unknown"
	}
}

// Event is inbound account and execution feedback from one exchange. The
// payload field selected by Kind is set; all others are nil.
type Event struct {
	Exchange instrument.Exchange
	Kind     EventKind

	Snapshot     *FullSnapshot
	Balance      *Snapshot[asset.AssetBalance]
	Order        *Snapshot[order.ExchangeOrder]
	Position     *Snapshot[position.Position]
	Opened       *order.OpenResponse
	Cancelled    *order.CancelResponse
	Trade        *order.Trade
	Connectivity *ConnectivityError
}

// FullSnapshot is a complete account resync: it replaces all balances and all
// per-instrument positions/orders, wiping in-flight requests.
type FullSnapshot struct {
	Balances    []asset.AssetBalance
	Instruments []InstrumentSnapshot
}

// InstrumentSnapshot is the exchange-reported truth for one instrument inside
// a FullSnapshot.
type InstrumentSnapshot struct {
	Position position.Position
	Orders   []order.OpenOrder
}

// ConnectivityError is a non-API failure on the account link, such as a
// disconnected websocket.
type ConnectivityError struct {
	Reason string
}

func (e *ConnectivityError) Error() string {
	return "account connectivity: " + e.Reason
}

// Constructors matching each EventKind.

func NewFullSnapshotEvent(exchange instrument.Exchange, s FullSnapshot) Event {
	return Event{Exchange: exchange, Kind: KindSnapshot, Snapshot: &s}
}

func NewBalanceSnapshotEvent(exchange instrument.Exchange, b asset.AssetBalance) Event {
	snap := NewSnapshot(b)
	return Event{Exchange: exchange, Kind: KindBalanceSnapshot, Balance: &snap}
}

func NewOrderSnapshotEvent(exchange instrument.Exchange, o order.ExchangeOrder) Event {
	snap := NewSnapshot(o)
	return Event{Exchange: exchange, Kind: KindOrderSnapshot, Order: &snap}
}

func NewPositionSnapshotEvent(exchange instrument.Exchange, p position.Position) Event {
	snap := NewSnapshot(p)
	return Event{Exchange: exchange, Kind: KindPositionSnapshot, Position: &snap}
}

func NewOrderOpenedEvent(exchange instrument.Exchange, r order.OpenResponse) Event {
	return Event{Exchange: exchange, Kind: KindOrderOpened, Opened: &r}
}

func NewOrderCancelledEvent(exchange instrument.Exchange, r order.CancelResponse) Event {
	return Event{Exchange: exchange, Kind: KindOrderCancelled, Cancelled: &r}
}

func NewTradeEvent(exchange instrument.Exchange, t order.Trade) Event {
	return Event{Exchange: exchange, Kind: KindTrade, Trade: &t}
}

func NewConnectivityErrorEvent(exchange instrument.Exchange, reason string) Event {
	return Event{Exchange: exchange, Kind: KindConnectivityError, Connectivity: &ConnectivityError{Reason: reason}}
}
