package order

import (
	"time"

	"tradecore/internal/asset"
	"tradecore/internal/instrument"
)

// TradeID is the exchange-assigned identifier for one fill.
type TradeID string

// Trade is a partial or full fill of an open order.
type Trade struct {
	ID           TradeID
	Instrument   instrument.ID
	OrderID      OrderID
	TimeExchange time.Time
	Side         Side
	Price        float64
	Quantity     float64
	Fees         AssetFees
}

// AssetFees is the fee charged for a trade, denominated in Asset when known.
type AssetFees struct {
	Asset *asset.ID
	Fees  float64
}
