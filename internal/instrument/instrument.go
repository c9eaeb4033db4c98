package instrument

import "tradecore/internal/asset"

// ID is an engine-assigned identifier for a tradable instrument, stable for
// the process lifetime. IDs are allocated at configuration time.
type ID uint64

// Exchange names a trading venue.
type Exchange string

// Kind classifies an instrument.
type Kind string

const (
	KindSpot      Kind = "spot"
	KindPerpetual Kind = "perpetual"
	KindFuture    Kind = "future"
)

// Instrument describes one configured tradable instrument. Immutable after
// construction; the universe is fixed for the lifetime of a run.
type Instrument struct {
	ID           ID
	Exchange     Exchange
	NameExchange string
	Kind         Kind
	Spec         Spec
}

// Spec holds the exchange trading rules an order must satisfy.
type Spec struct {
	Price    SpecPrice
	Quantity SpecQuantity
	Notional SpecNotional
}

// SpecPrice constrains order prices.
type SpecPrice struct {
	Min      float64
	TickSize float64
}

// SpecQuantity constrains order quantities.
type SpecQuantity struct {
	Unit      QuantityUnit
	AssetID   asset.ID // populated when Unit == UnitAsset
	Min       float64
	Increment float64
}

// QuantityUnit says what an order quantity is denominated in.
type QuantityUnit string

const (
	UnitAsset    QuantityUnit = "asset"
	UnitContract QuantityUnit = "contract"
	UnitQuote    QuantityUnit = "quote"
)

// SpecNotional constrains the order notional (price * quantity).
type SpecNotional struct {
	Min float64
}
