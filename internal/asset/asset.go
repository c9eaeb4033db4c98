package asset

// ID is an engine-assigned identifier for an asset, stable for the process
// lifetime. IDs are allocated at configuration time.
type ID uint64

// Kind classifies an asset.
type Kind string

const (
	KindCrypto Kind = "crypto"
	KindFiat   Kind = "fiat"
)

// Asset describes a configured asset and its exchange-native naming.
type Asset struct {
	ID           ID
	Kind         Kind
	NameInternal string
	NameExchange string
}

// Balance is the {total, free} pair reported per (exchange, asset).
// Balances are replaced wholesale from snapshots, never computed from trades.
type Balance struct {
	Total float64
	Free  float64
}

// Used returns the balance currently reserved by open orders or positions.
func (b Balance) Used() float64 {
	return b.Total - b.Free
}

// AssetBalance pairs an asset identifier with its balance.
type AssetBalance struct {
	Asset   ID
	Balance Balance
}
