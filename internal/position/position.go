package position

import (
	"time"

	"tradecore/internal/instrument"
	"tradecore/internal/order"
)

// PortfolioID groups positions for portfolio-level queries.
type PortfolioID string

// Position is the per-instrument directional exposure, keyed by
// (instrument, portfolio). Created flat at startup for every configured
// instrument and mutated by trade and snapshot events.
type Position struct {
	Instrument  instrument.ID
	Portfolio   PortfolioID
	Quantity    float64 // signed: >0 long, <0 short
	EntryPrice  float64 // volume-weighted average entry
	RealizedPnL float64
	Fees        float64
	TimeUpdate  time.Time
}

// Flat builds the zero position for a configured instrument.
func Flat(id instrument.ID, portfolio PortfolioID) Position {
	return Position{Instrument: id, Portfolio: portfolio}
}

// IsFlat reports whether the position has no exposure.
func (p *Position) IsFlat() bool {
	return p.Quantity == 0
}

// ApplyTrade folds one fill into the position. Increases re-average the
// entry price; reductions realize PnL against it. A fill through flat closes
// the old exposure first, then opens the remainder at the fill price.
func (p *Position) ApplyTrade(t *order.Trade) {
	signed := t.Quantity
	if t.Side == order.SideSell {
		signed = -signed
	}

	switch {
	case p.Quantity == 0 || sameSign(p.Quantity, signed):
		total := p.Quantity + signed
		if total != 0 {
			p.EntryPrice = (p.EntryPrice*abs(p.Quantity) + t.Price*abs(signed)) / abs(total)
		}
		p.Quantity = total

	case abs(signed) <= abs(p.Quantity):
		// Reduce (possibly to flat); realize against average entry.
		closed := abs(signed)
		p.RealizedPnL += pnl(p.Quantity, p.EntryPrice, t.Price, closed)
		p.Quantity += signed
		if p.Quantity == 0 {
			p.EntryPrice = 0
		}

	default:
		// Fill through flat: close the whole exposure, flip the remainder.
		closed := abs(p.Quantity)
		p.RealizedPnL += pnl(p.Quantity, p.EntryPrice, t.Price, closed)
		p.Quantity += signed
		p.EntryPrice = t.Price
	}

	p.Fees += t.Fees.Fees
	p.TimeUpdate = t.TimeExchange
}

func pnl(oldQty, entry, price, closed float64) float64 {
	if oldQty > 0 {
		return (price - entry) * closed
	}
	return (entry - price) * closed
}

func sameSign(a, b float64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
