package order

import (
	"go.uber.org/zap"
)

// Orders tracks every order attempt for one instrument, keyed by
// ClientOrderID. Each cid maps to at most one record whose state is one of
// the closed Phase set. It is the reconciliation point between locally
// inferred in-flight assumptions and exchange-reported truth.
//
// Anomaly policy follows the engine-wide split: surprising-but-survivable
// inputs are logged and kept tracked; state is never silently lost.
type Orders struct {
	m   map[ClientOrderID]*Tracked
	log *zap.Logger
}

// NewOrders builds an empty order map.
func NewOrders(log *zap.Logger) *Orders {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orders{m: make(map[ClientOrderID]*Tracked), log: log}
}

// Get returns the tracked record for cid, if any.
func (o *Orders) Get(cid ClientOrderID) (*Tracked, bool) {
	t, ok := o.m[cid]
	return t, ok
}

// Len returns the number of tracked orders.
func (o *Orders) Len() int {
	return len(o.m)
}

// Each calls fn for every tracked order.
func (o *Orders) Each(fn func(*Tracked)) {
	for _, t := range o.m {
		fn(t)
	}
}

// RecordInFlights inserts OpenInFlight records for newly approved open
// requests. A duplicate cid indicates a cid-generation bug upstream: the
// existing entry is kept, never overwritten, since it may be a live order.
func (o *Orders) RecordInFlights(orders []Order) {
	for _, ord := range orders {
		if existing, ok := o.m[ord.CID]; ok {
			o.log.Error("order map received OpenInFlight with duplicate ClientOrderId - keeping existing entry",
				zap.String("cid", string(ord.CID)),
				zap.String("existing_phase", existing.State.Phase.String()),
			)
			continue
		}
		o.m[ord.CID] = &Tracked{Order: ord, State: OpenInFlightState()}
	}
}

// UpdateFromOpen applies the execution layer's response to an open request.
//
// Last-write-wins is decided by exchange timestamp, not arrival order, so an
// out-of-order duplicate acknowledgement can never roll state backwards.
func (o *Orders) UpdateFromOpen(response *OpenResponse) {
	tracked, ok := o.m[response.CID]

	switch {
	case ok && response.Err == nil:
		switch tracked.State.Phase {
		case PhaseOpenInFlight:
			o.log.Debug("order map transitioned OpenInFlight to Open",
				zap.Uint64("instrument", uint64(response.Instrument)),
				zap.String("cid", string(response.CID)),
			)
			tracked.State = OpenState(*response.Open)
		case PhaseOpen:
			o.log.Warn("order map received Open response for existing Open order - taking latest exchange timestamp",
				zap.Uint64("instrument", uint64(response.Instrument)),
				zap.String("cid", string(response.CID)),
			)
			if response.Open.TimeUpdate.After(tracked.State.Open.TimeUpdate) {
				tracked.State = OpenState(*response.Open)
			}
		case PhaseCancelInFlight:
			// A cancel is already believed in flight; do not overwrite.
			o.log.Error("order map received Open response for order with CancelInFlight",
				zap.Uint64("instrument", uint64(response.Instrument)),
				zap.String("cid", string(response.CID)),
			)
		}

	case ok && response.Err != nil:
		switch tracked.State.Phase {
		case PhaseOpenInFlight:
			o.log.Warn("order map received ExecutionError for OpenInFlight - removing",
				zap.Uint64("instrument", uint64(response.Instrument)),
				zap.String("cid", string(response.CID)),
				zap.String("error", response.Err.Error()),
			)
			delete(o.m, response.CID)
		case PhaseOpen:
			o.log.Error("order map received ExecutionError for existing Open order - keeping state",
				zap.Uint64("instrument", uint64(response.Instrument)),
				zap.String("cid", string(response.CID)),
				zap.String("error", response.Err.Error()),
			)
		case PhaseCancelInFlight:
			o.log.Error("order map received ExecutionError for existing CancelInFlight - keeping state",
				zap.Uint64("instrument", uint64(response.Instrument)),
				zap.String("cid", string(response.CID)),
				zap.String("error", response.Err.Error()),
			)
		}

	case !ok && response.Err == nil:
		// Defensive: never lose exchange-confirmed state, track it anyway.
		o.log.Warn("order map received Open response for untracked ClientOrderId - now tracking",
			zap.Uint64("instrument", uint64(response.Instrument)),
			zap.String("cid", string(response.CID)),
		)
		o.m[response.CID] = &Tracked{Order: response.Order, State: OpenState(*response.Open)}

	default:
		o.log.Error("order map received ExecutionError for untracked ClientOrderId",
			zap.Uint64("instrument", uint64(response.Instrument)),
			zap.String("cid", string(response.CID)),
			zap.String("error", response.Err.Error()),
		)
	}
}

// UpdateFromCancel applies the execution layer's response to a cancel
// request, mirroring UpdateFromOpen's anomaly policy on the cancel side.
//
// A confirmed cancel is a terminal removal regardless of the locally believed
// phase. An error response keeps state: for a CancelInFlight the order's fate
// is ambiguous (the cancel may or may not have landed) and is flagged for
// operator attention rather than guessed at.
func (o *Orders) UpdateFromCancel(response *CancelResponse) {
	tracked, ok := o.m[response.CID]

	switch {
	case ok && response.Err == nil:
		switch tracked.State.Phase {
		case PhaseOpenInFlight:
			o.log.Warn("order map received Cancelled response for OpenInFlight - removing",
				zap.Uint64("instrument", uint64(response.Instrument)),
				zap.String("cid", string(response.CID)),
			)
		case PhaseOpen:
			o.log.Debug("order map removed Open order after Cancelled response",
				zap.Uint64("instrument", uint64(response.Instrument)),
				zap.String("cid", string(response.CID)),
			)
		case PhaseCancelInFlight:
			o.log.Debug("order map removed CancelInFlight order after Cancelled response",
				zap.Uint64("instrument", uint64(response.Instrument)),
				zap.String("cid", string(response.CID)),
			)
		}
		delete(o.m, response.CID)

	case ok && response.Err != nil:
		switch tracked.State.Phase {
		case PhaseCancelInFlight:
			o.log.Error("order map received ExecutionError for CancelInFlight - order fate ambiguous, keeping state for manual intervention",
				zap.Uint64("instrument", uint64(response.Instrument)),
				zap.String("cid", string(response.CID)),
				zap.String("error", response.Err.Error()),
			)
		default:
			o.log.Error("order map received cancel ExecutionError - keeping state",
				zap.Uint64("instrument", uint64(response.Instrument)),
				zap.String("cid", string(response.CID)),
				zap.String("phase", tracked.State.Phase.String()),
				zap.String("error", response.Err.Error()),
			)
		}

	case !ok && response.Err == nil:
		o.log.Warn("order map received Cancelled response for untracked ClientOrderId",
			zap.Uint64("instrument", uint64(response.Instrument)),
			zap.String("cid", string(response.CID)),
		)

	default:
		o.log.Error("order map received cancel ExecutionError for untracked ClientOrderId",
			zap.Uint64("instrument", uint64(response.Instrument)),
			zap.String("cid", string(response.CID)),
			zap.String("error", response.Err.Error()),
		)
	}
}

// RecordCancelInFlight transitions an order to CancelInFlight after a cancel
// request has been approved and sent.
func (o *Orders) RecordCancelInFlight(request RequestCancel) {
	tracked, ok := o.m[request.CID]
	if !ok {
		o.log.Warn("order map cannot mark CancelInFlight for untracked ClientOrderId",
			zap.Uint64("instrument", uint64(request.Instrument)),
			zap.String("cid", string(request.CID)),
		)
		return
	}
	tracked.State = CancelInFlightState(request.ID)
}

// UpdateFromSnapshot unconditionally reconciles one order to the
// exchange-reported truth delivered by an account resync. Snapshot authority:
// Open upserts, Cancelled and rejections remove, overriding any locally
// believed in-flight status.
func (o *Orders) UpdateFromSnapshot(snapshot *ExchangeOrder) {
	switch snapshot.Status {
	case ExchangeOpen:
		if tracked, ok := o.m[snapshot.CID]; ok {
			tracked.State = OpenState(snapshot.Open)
		} else {
			o.log.Debug("order map now tracking Open order from snapshot",
				zap.Uint64("instrument", uint64(snapshot.Instrument)),
				zap.String("cid", string(snapshot.CID)),
			)
			o.m[snapshot.CID] = &Tracked{Order: snapshot.Order, State: OpenState(snapshot.Open)}
		}

	case ExchangeCancelled, ExchangeOpenRejected, ExchangeCancelRejected:
		if _, ok := o.m[snapshot.CID]; ok {
			o.log.Debug("order map removed order after terminal snapshot",
				zap.Uint64("instrument", uint64(snapshot.Instrument)),
				zap.String("cid", string(snapshot.CID)),
				zap.String("status", snapshot.Status.String()),
			)
			delete(o.m, snapshot.CID)
		}

	default:
		o.log.Error("order map ignoring snapshot with unknown status",
			zap.Uint64("instrument", uint64(snapshot.Instrument)),
			zap.String("cid", string(snapshot.CID)),
		)
	}
}

// Replace wipes all tracked orders and installs the given open orders, used
// by full account resync. All open and cancel in-flight requests are deleted.
func (o *Orders) Replace(opens []OpenOrder) {
	o.m = make(map[ClientOrderID]*Tracked, len(opens))
	for _, open := range opens {
		o.m[open.CID] = &Tracked{Order: open.Order, State: OpenState(open.Open)}
	}
}

// Clone returns a deep copy sharing only the logger.
func (o *Orders) Clone() *Orders {
	m := make(map[ClientOrderID]*Tracked, len(o.m))
	for cid, t := range o.m {
		cp := *t
		m[cid] = &cp
	}
	return &Orders{m: m, log: o.log}
}
