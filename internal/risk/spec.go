package risk

import (
	"fmt"
	"math"

	"tradecore/internal/order"
)

// SpecManager approves orders that satisfy the instrument's exchange trading
// spec: minimum price, tick size, minimum and increment quantity, and
// minimum notional. Orders for unconfigured instruments are refused. Cancel
// requests carry no economic risk and pass once the instrument is known.
type SpecManager struct{}

// tolerance for the tick/increment grid checks; float quantities from
// upstream arithmetic are rarely exact multiples.
const gridEpsilon = 1e-9

func (SpecManager) ApproveOrders(view StateView, cancels []order.RequestCancel, opens []order.RequestOpen) (
	[]Approved[order.RequestCancel],
	[]Approved[order.RequestOpen],
	[]Refused[order.RequestCancel],
	[]Refused[order.RequestOpen],
) {
	var (
		approvedCancels []Approved[order.RequestCancel]
		approvedOpens   []Approved[order.RequestOpen]
		refusedCancels  []Refused[order.RequestCancel]
		refusedOpens    []Refused[order.RequestOpen]
	)

	for _, cancel := range cancels {
		if _, ok := view.Instrument(cancel.Instrument); !ok {
			refusedCancels = append(refusedCancels, Refused[order.RequestCancel]{
				Item:   cancel,
				Reason: "instrument not configured",
			})
			continue
		}
		approvedCancels = append(approvedCancels, Approved[order.RequestCancel]{Item: cancel})
	}

	for _, open := range opens {
		if reason := checkOpen(view, open); reason != "" {
			refusedOpens = append(refusedOpens, Refused[order.RequestOpen]{Item: open, Reason: reason})
			continue
		}
		approvedOpens = append(approvedOpens, Approved[order.RequestOpen]{Item: open})
	}

	return approvedCancels, approvedOpens, refusedCancels, refusedOpens
}

func checkOpen(view StateView, open order.RequestOpen) string {
	instr, ok := view.Instrument(open.Instrument)
	if !ok {
		return "instrument not configured"
	}
	spec := instr.Spec

	if open.Price < spec.Price.Min {
		return fmt.Sprintf("price %v below minimum %v", open.Price, spec.Price.Min)
	}
	if !onGrid(open.Price, spec.Price.TickSize) {
		return fmt.Sprintf("price %v not a multiple of tick size %v", open.Price, spec.Price.TickSize)
	}
	if open.Quantity < spec.Quantity.Min {
		return fmt.Sprintf("quantity %v below minimum %v", open.Quantity, spec.Quantity.Min)
	}
	if !onGrid(open.Quantity, spec.Quantity.Increment) {
		return fmt.Sprintf("quantity %v not a multiple of increment %v", open.Quantity, spec.Quantity.Increment)
	}
	if notional := open.Price * open.Quantity; notional < spec.Notional.Min {
		return fmt.Sprintf("notional %v below minimum %v", notional, spec.Notional.Min)
	}
	return ""
}

func onGrid(value, step float64) bool {
	if step <= 0 {
		return true
	}
	ratio := value / step
	return math.Abs(ratio-math.Round(ratio)) < gridEpsilon
}
