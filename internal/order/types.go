package order

import (
	"time"

	"github.com/google/uuid"

	"tradecore/internal/instrument"
)

// ClientOrderID is the engine-generated key identifying one order attempt
// end-to-end. It is the only stable key across the order's lifecycle; the
// exchange-assigned OrderID only becomes known once the order is Open.
type ClientOrderID string

// NewClientOrderID allocates a fresh UUID-backed ClientOrderID.
func NewClientOrderID() ClientOrderID {
	return ClientOrderID(uuid.NewString())
}

// OrderID is the exchange-assigned order identifier.
type OrderID string

// Side of an order.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Kind of an order.
type Kind string

const (
	KindLimit  Kind = "limit"
	KindMarket Kind = "market"
)

// TimeInForce policies.
type TimeInForce string

const (
	GoodUntilCancelled TimeInForce = "gtc"
	GoodUntilEndOfDay  TimeInForce = "gtd"
	FillOrKill         TimeInForce = "fok"
	ImmediateOrCancel  TimeInForce = "ioc"
)

// Order is the immutable identity of one order attempt. Instrument, CID and
// Side never change after creation; only the tracked state transitions.
type Order struct {
	Instrument instrument.ID
	CID        ClientOrderID
	Side       Side
}

// RequestOpen asks the execution layer to place a new order. The CID is
// assigned at request-generation time, not by the exchange.
type RequestOpen struct {
	Order
	Kind        Kind
	TimeInForce TimeInForce
	PostOnly    bool
	Price       float64
	Quantity    float64
}

// RequestCancel asks the execution layer to cancel a live order.
type RequestCancel struct {
	Order
	ID OrderID
}

// Open is the exchange-acknowledged state of a live order.
type Open struct {
	ID             OrderID
	TimeUpdate     time.Time
	Price          float64
	Quantity       float64
	FilledQuantity float64
}

// QuantityRemaining returns the unfilled quantity.
func (o Open) QuantityRemaining() float64 {
	return o.Quantity - o.FilledQuantity
}

// CancelInFlight marks an order with a cancel request pending exchange
// acknowledgement. ID may be empty if the order never reached Open.
type CancelInFlight struct {
	ID OrderID
}

// Cancelled is the terminal exchange-confirmed cancel state.
type Cancelled struct {
	ID           OrderID
	TimeExchange time.Time
}

// Phase enumerates the closed set of tracked order states.
type Phase uint8

const (
	PhaseOpenInFlight Phase = iota + 1
	PhaseOpen
	PhaseCancelInFlight
)

func (p Phase) String() string {
	switch p {
	case PhaseOpenInFlight:
		return "open_in_flight"
	case PhaseOpen:
		return "open"
	case PhaseCancelInFlight:
		return "cancel_in_flight"
	default:
		return "unknown"
	}
}

// State is the tagged union of tracked order phases. Exactly one payload is
// meaningful, selected by Phase.
type State struct {
	Phase  Phase
	Open   Open           // valid when Phase == PhaseOpen
	Cancel CancelInFlight // valid when Phase == PhaseCancelInFlight
}

// OpenInFlightState is the initial state for a newly approved open.
func OpenInFlightState() State {
	return State{Phase: PhaseOpenInFlight}
}

// OpenState wraps an exchange acknowledgement.
func OpenState(open Open) State {
	return State{Phase: PhaseOpen, Open: open}
}

// CancelInFlightState marks a pending cancel.
func CancelInFlightState(id OrderID) State {
	return State{Phase: PhaseCancelInFlight, Cancel: CancelInFlight{ID: id}}
}

// Tracked is one order record held by the Orders map.
type Tracked struct {
	Order
	State State
}

// OpenResponse is the execution layer's reply to a RequestOpen. Exactly one
// of Open/Err is set.
type OpenResponse struct {
	Order
	Open *Open
	Err  *ExecutionError
}

// CancelResponse is the execution layer's reply to a RequestCancel. Exactly
// one of Cancelled/Err is set.
type CancelResponse struct {
	Order
	Cancelled *Cancelled
	Err       *ExecutionError
}

// ExchangeStatus enumerates the states an exchange order snapshot can report.
type ExchangeStatus uint8

const (
	ExchangeOpen ExchangeStatus = iota + 1
	ExchangeOpenRejected
	ExchangeCancelRejected
	ExchangeCancelled
)

func (s ExchangeStatus) String() string {
	switch s {
	case ExchangeOpen:
		return "open"
	case ExchangeOpenRejected:
		return "open_rejected"
	case ExchangeCancelRejected:
		return "cancel_rejected"
	case ExchangeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ExchangeOrder is the exchange-reported truth for one order, delivered via
// account resync snapshots. Snapshots always win over locally inferred state.
type ExchangeOrder struct {
	Order
	Status    ExchangeStatus
	Open      Open      // valid when Status == ExchangeOpen
	Cancelled Cancelled // valid when Status == ExchangeCancelled
	Reason    string    // populated for rejections
}

// OpenOrder pairs an order identity with its Open state, as reported inside
// full account snapshots.
type OpenOrder struct {
	Order
	Open Open
}
