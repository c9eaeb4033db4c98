package balance

import (
	"go.uber.org/zap"

	"tradecore/internal/account"
	"tradecore/internal/asset"
	"tradecore/internal/instrument"
)

// Balances owns every (exchange, asset) balance the engine believes in.
// Entries exist only for pairs configured at construction; snapshots for
// anything else are dropped with a warning, since auto-creating entries
// would hide misconfiguration. Snapshots replace total/free wholesale; there
// is no incremental balance model in this core.
type Balances struct {
	m   map[instrument.Exchange]map[asset.ID]asset.Balance
	log *zap.Logger
}

// Seed is the configured starting balance for one (exchange, asset) pair.
type Seed struct {
	Exchange instrument.Exchange
	Asset    asset.ID
	Balance  asset.Balance
}

// NewBalances builds the balance store from the configured universe.
func NewBalances(log *zap.Logger, seeds []Seed) *Balances {
	if log == nil {
		log = zap.NewNop()
	}
	m := make(map[instrument.Exchange]map[asset.ID]asset.Balance)
	for _, s := range seeds {
		byAsset, ok := m[s.Exchange]
		if !ok {
			byAsset = make(map[asset.ID]asset.Balance)
			m[s.Exchange] = byAsset
		}
		byAsset[s.Asset] = s.Balance
	}
	return &Balances{m: m, log: log}
}

// Balance returns the balance for (exchange, asset), if configured.
func (b *Balances) Balance(exchange instrument.Exchange, id asset.ID) (asset.Balance, bool) {
	byAsset, ok := b.m[exchange]
	if !ok {
		return asset.Balance{}, false
	}
	bal, ok := byAsset[id]
	return bal, ok
}

// ByExchange returns all balances held for one exchange. An unconfigured
// exchange yields nil with a warning.
func (b *Balances) ByExchange(exchange instrument.Exchange) map[asset.ID]asset.Balance {
	byAsset, ok := b.m[exchange]
	if !ok {
		b.log.Warn("balance store cannot return balances for unconfigured exchange",
			zap.String("exchange", string(exchange)),
		)
		return nil
	}
	return byAsset
}

// UpdateFromSnapshot replaces one asset balance with exchange-reported
// truth. Applies only if both the exchange and the asset are configured.
func (b *Balances) UpdateFromSnapshot(exchange instrument.Exchange, snapshot account.Snapshot[asset.AssetBalance]) {
	byAsset, ok := b.m[exchange]
	if !ok {
		b.log.Warn("balance store ignoring snapshot for unconfigured exchange",
			zap.String("exchange", string(exchange)),
			zap.Uint64("asset", uint64(snapshot.Value.Asset)),
		)
		return
	}

	if _, ok := byAsset[snapshot.Value.Asset]; !ok {
		b.log.Warn("balance store ignoring snapshot for unconfigured asset",
			zap.String("exchange", string(exchange)),
			zap.Uint64("asset", uint64(snapshot.Value.Asset)),
		)
		return
	}

	byAsset[snapshot.Value.Asset] = snapshot.Value.Balance
}

// All exposes the underlying map for read-only iteration by snapshot
// builders. Callers must not mutate it.
func (b *Balances) All() map[instrument.Exchange]map[asset.ID]asset.Balance {
	return b.m
}

// Clone returns a deep copy sharing only the logger.
func (b *Balances) Clone() *Balances {
	m := make(map[instrument.Exchange]map[asset.ID]asset.Balance, len(b.m))
	for ex, byAsset := range b.m {
		cp := make(map[asset.ID]asset.Balance, len(byAsset))
		for id, bal := range byAsset {
			cp[id] = bal
		}
		m[ex] = cp
	}
	return &Balances{m: m, log: b.log}
}
