package engine

import (
	"fmt"

	"go.uber.org/zap"

	"tradecore/internal/account"
	"tradecore/internal/asset"
	"tradecore/internal/balance"
	"tradecore/internal/events"
	"tradecore/internal/instrument"
	"tradecore/internal/market"
	"tradecore/internal/order"
	"tradecore/internal/position"
	"tradecore/internal/risk"
	"tradecore/internal/strategy"
)

// State is the engine's authoritative in-memory view: balances, per
// instrument market/orders/position, and the opaque strategy and risk
// sub-states. There is exactly one writer during a run; consumers only ever
// see immutable copies taken at snapshot time.
type State struct {
	balances    *balance.Balances
	instruments *Instruments
	strategy    strategy.State
	risk        risk.State

	ordersDisabled  bool
	resyncRequested bool
	degraded        map[instrument.Exchange]bool

	log *zap.Logger
}

// StateConfig assembles a State. Strategy/Risk sub-states default to no-ops.
type StateConfig struct {
	Log       *zap.Logger
	Universe  []instrument.Instrument
	Portfolio position.PortfolioID
	Balances  []balance.Seed
	Strategy  strategy.State
	Risk      risk.State
}

// NewState builds the engine state from the configured universe and starting
// balances.
func NewState(cfg StateConfig) *State {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	strat := cfg.Strategy
	if strat == nil {
		strat = strategy.NoopState{}
	}
	rsk := cfg.Risk
	if rsk == nil {
		rsk = risk.NoopState{}
	}
	return &State{
		balances:    balance.NewBalances(log, cfg.Balances),
		instruments: NewInstruments(log, cfg.Universe, cfg.Portfolio),
		strategy:    strat,
		risk:        rsk,
		degraded:    make(map[instrument.Exchange]bool),
		log:         log,
	}
}

// TryUpdate applies one event to the whole state. Errors from any sub-state
// propagate and invalidate the state; the run loop treats them as fatal.
func (s *State) TryUpdate(ev *events.Event) error {
	switch {
	case ev.IsCommand():
		s.log.Info("updating state from command", zap.String("command", ev.Command.String()))
		if err := s.applyCommand(ev.Command); err != nil {
			return err
		}
	case ev.Account != nil:
		s.log.Debug("updating state from account event",
			zap.String("exchange", string(ev.Account.Exchange)),
			zap.String("kind", ev.Account.Kind.String()),
		)
		s.updateFromAccount(ev.Account)
	case ev.Market != nil:
		s.instruments.UpdateFromMarket(ev.Market)
	default:
		s.log.Warn("ignoring empty engine event")
	}

	if err := s.strategy.TryUpdate(ev); err != nil {
		return fmt.Errorf("strategy state update: %w", err)
	}
	if err := s.risk.TryUpdate(ev); err != nil {
		return fmt.Errorf("risk state update: %w", err)
	}
	return nil
}

func (s *State) applyCommand(cmd events.Command) error {
	switch cmd {
	case events.CommandDisable:
		s.ordersDisabled = true
	case events.CommandEnable:
		s.ordersDisabled = false
	case events.CommandTerminate:
		return ErrTerminated
	case events.CommandReSyncState:
		// The resync itself is the execution collaborator's job; the flag
		// clears when the requested full snapshot arrives.
		s.resyncRequested = true
	default:
		s.log.Warn("ignoring unknown command", zap.Uint8("command", uint8(cmd)))
	}
	return nil
}

func (s *State) updateFromAccount(ev *account.Event) {
	switch ev.Kind {
	case account.KindSnapshot:
		s.updateFromFullSnapshot(ev.Exchange, ev.Snapshot)
	case account.KindBalanceSnapshot:
		s.balances.UpdateFromSnapshot(ev.Exchange, *ev.Balance)
	case account.KindOrderSnapshot:
		s.instruments.UpdateFromOrderSnapshot(&ev.Order.Value)
	case account.KindPositionSnapshot:
		s.instruments.UpdateFromPositionSnapshot(&ev.Position.Value)
	case account.KindOrderOpened:
		s.instruments.UpdateFromOpen(ev.Opened)
	case account.KindOrderCancelled:
		s.instruments.UpdateFromCancel(ev.Cancelled)
	case account.KindTrade:
		s.instruments.UpdateFromTrade(ev.Trade)
	case account.KindConnectivityError:
		// Live-data anomaly, not fatal: flag the exchange as degraded until
		// the next full snapshot proves the link recovered.
		s.log.Warn("account link degraded",
			zap.String("exchange", string(ev.Exchange)),
			zap.String("reason", ev.Connectivity.Reason),
		)
		s.degraded[ev.Exchange] = true
	default:
		s.log.Warn("ignoring account event of unknown kind",
			zap.String("exchange", string(ev.Exchange)),
		)
	}
}

// updateFromFullSnapshot replaces all state for one exchange with the
// authoritative account snapshot. All open and cancel in-flight requests for
// the reported instruments are deleted.
func (s *State) updateFromFullSnapshot(exchange instrument.Exchange, snapshot *account.FullSnapshot) {
	for _, assetBalance := range snapshot.Balances {
		s.balances.UpdateFromSnapshot(exchange, account.NewSnapshot(assetBalance))
	}
	for idx := range snapshot.Instruments {
		s.instruments.UpdateFromInstrumentSnapshot(&snapshot.Instruments[idx])
	}
	s.resyncRequested = false
	delete(s.degraded, exchange)
}

// OrdersEnabled reports whether strategy order generation is active. The
// operator toggles it with Disable/Enable commands.
func (s *State) OrdersEnabled() bool {
	return !s.ordersDisabled
}

// ResyncRequested reports whether an operator resync is pending.
func (s *State) ResyncRequested() bool {
	return s.resyncRequested
}

// Degraded reports whether the account link for an exchange has seen a
// connectivity error since the last full snapshot.
func (s *State) Degraded(exchange instrument.Exchange) bool {
	return s.degraded[exchange]
}

// Instruments exposes the instrument universe for in-package collaborators
// and tests.
func (s *State) Instruments() *Instruments {
	return s.instruments
}

// Balances exposes the balance store.
func (s *State) Balances() *balance.Balances {
	return s.balances
}

// Clone returns a deep copy suitable for audit snapshots. Sub-states clone
// through their own contracts.
func (s *State) Clone() *State {
	degraded := make(map[instrument.Exchange]bool, len(s.degraded))
	for ex, d := range s.degraded {
		degraded[ex] = d
	}
	return &State{
		balances:        s.balances.Clone(),
		instruments:     s.instruments.Clone(),
		strategy:        s.strategy.Clone(),
		risk:            s.risk.Clone(),
		ordersDisabled:  s.ordersDisabled,
		resyncRequested: s.resyncRequested,
		degraded:        degraded,
		log:             s.log,
	}
}

// The read-only view handed to strategy and risk implementations.

// Instrument returns the configured definition for id.
func (s *State) Instrument(id instrument.ID) (*instrument.Instrument, bool) {
	state, ok := s.instruments.State(id)
	if !ok {
		return nil, false
	}
	return &state.Instrument, true
}

// Quote returns the latest top-of-book for id.
func (s *State) Quote(id instrument.ID) (market.OrderBookL1, bool) {
	state, ok := s.instruments.State(id)
	if !ok {
		return market.OrderBookL1{}, false
	}
	return state.Market.L1, true
}

// Position returns the current position for id.
func (s *State) Position(id instrument.ID) (*position.Position, bool) {
	state, ok := s.instruments.State(id)
	if !ok {
		return nil, false
	}
	return &state.Position, true
}

// Balance returns the balance for (exchange, asset).
func (s *State) Balance(exchange instrument.Exchange, id asset.ID) (asset.Balance, bool) {
	return s.balances.Balance(exchange, id)
}

// OpenOrders returns copies of every tracked order for id.
func (s *State) OpenOrders(id instrument.ID) []order.Tracked {
	state, ok := s.instruments.State(id)
	if !ok {
		return nil
	}
	tracked := make([]order.Tracked, 0, state.Orders.Len())
	state.Orders.Each(func(t *order.Tracked) {
		tracked = append(tracked, *t)
	})
	return tracked
}
