package engine

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"tradecore/internal/account"
	"tradecore/internal/asset"
	"tradecore/internal/balance"
	"tradecore/internal/events"
	"tradecore/internal/instrument"
	"tradecore/internal/market"
	"tradecore/internal/order"
	"tradecore/internal/position"
)

func testUniverse() []instrument.Instrument {
	return []instrument.Instrument{
		{
			ID:           1,
			Exchange:     "binance",
			NameExchange: "BTCUSDT",
			Kind:         instrument.KindSpot,
			Spec: instrument.Spec{
				Price:    instrument.SpecPrice{Min: 0.01, TickSize: 0.01},
				Quantity: instrument.SpecQuantity{Unit: instrument.UnitAsset, Min: 0.001, Increment: 0.001},
				Notional: instrument.SpecNotional{Min: 10},
			},
		},
	}
}

func testState() *State {
	return NewState(StateConfig{
		Log:       zap.NewNop(),
		Universe:  testUniverse(),
		Portfolio: "default",
		Balances: []balance.Seed{
			{Exchange: "binance", Asset: 1, Balance: asset.Balance{Total: 10, Free: 10}},
		},
	})
}

func apply(t *testing.T, s *State, ev events.Event) {
	t.Helper()
	if err := s.TryUpdate(&ev); err != nil {
		t.Fatalf("TryUpdate returned error: %v", err)
	}
}

func TestCommands(t *testing.T) {
	s := testState()

	if !s.OrdersEnabled() {
		t.Fatal("orders disabled at startup")
	}

	apply(t, s, events.FromCommand(events.CommandDisable))
	if s.OrdersEnabled() {
		t.Fatal("orders enabled after Disable")
	}

	apply(t, s, events.FromCommand(events.CommandEnable))
	if !s.OrdersEnabled() {
		t.Fatal("orders disabled after Enable")
	}

	apply(t, s, events.FromCommand(events.CommandReSyncState))
	if !s.ResyncRequested() {
		t.Fatal("resync flag not set after ReSyncState")
	}

	ev := events.FromCommand(events.CommandTerminate)
	if err := s.TryUpdate(&ev); !errors.Is(err, ErrTerminated) {
		t.Fatalf("Terminate returned %v, expected ErrTerminated", err)
	}
}

func TestMarketEventUpdatesQuote(t *testing.T) {
	s := testState()
	now := time.Now()

	apply(t, s, events.FromMarket(market.Event{
		Exchange:   "binance",
		Instrument: 1,
		Kind:       market.KindOrderBookL1,
		L1:         market.OrderBookL1{LastUpdate: now, BidPrice: 99, AskPrice: 101},
	}))

	quote, ok := s.Quote(1)
	if !ok {
		t.Fatal("quote not available")
	}
	if quote.BidPrice != 99 || quote.AskPrice != 101 {
		t.Fatalf("quote=%+v, expected bid 99 ask 101", quote)
	}
}

// Market events for unconfigured instruments are dropped without mutating
// state; the universe is fixed at configuration time.
func TestMarketEventUnconfiguredInstrumentIsNoOp(t *testing.T) {
	s := testState()

	apply(t, s, events.FromMarket(market.Event{
		Exchange:   "binance",
		Instrument: 99,
		Kind:       market.KindOrderBookL1,
		L1:         market.OrderBookL1{BidPrice: 1, AskPrice: 2},
	}))

	if _, ok := s.Quote(99); ok {
		t.Fatal("unconfigured instrument acquired a quote")
	}
}

func TestBalanceSnapshot(t *testing.T) {
	s := testState()

	apply(t, s, events.FromAccount(account.NewBalanceSnapshotEvent("binance", asset.AssetBalance{
		Asset:   1,
		Balance: asset.Balance{Total: 20, Free: 12},
	})))

	got, ok := s.Balance("binance", 1)
	if !ok {
		t.Fatal("balance not found")
	}
	if got.Total != 20 || got.Free != 12 {
		t.Fatalf("balance=%+v, expected Total=20 Free=12", got)
	}
}

func TestOrderLifecycleThroughAccountEvents(t *testing.T) {
	s := testState()
	now := time.Now()
	ord := order.Order{Instrument: 1, CID: "cid-1", Side: order.SideBuy}

	s.Instruments().RecordInFlights([]order.Order{ord})

	apply(t, s, events.FromAccount(account.NewOrderOpenedEvent("binance", order.OpenResponse{
		Order: ord,
		Open:  &order.Open{ID: "ord-1", TimeUpdate: now, Price: 100, Quantity: 1},
	})))

	tracked := s.OpenOrders(1)
	if len(tracked) != 1 || tracked[0].State.Phase != order.PhaseOpen {
		t.Fatalf("tracked=%+v, expected one Open order", tracked)
	}

	apply(t, s, events.FromAccount(account.NewOrderCancelledEvent("binance", order.CancelResponse{
		Order:     ord,
		Cancelled: &order.Cancelled{ID: "ord-1", TimeExchange: now},
	})))

	if tracked := s.OpenOrders(1); len(tracked) != 0 {
		t.Fatalf("tracked=%+v, expected empty after cancel", tracked)
	}
}

func TestTradeUpdatesPosition(t *testing.T) {
	s := testState()

	apply(t, s, events.FromAccount(account.NewTradeEvent("binance", order.Trade{
		ID:         "t-1",
		Instrument: 1,
		Side:       order.SideBuy,
		Price:      100,
		Quantity:   2,
	})))

	pos, ok := s.Position(1)
	if !ok {
		t.Fatal("position not found")
	}
	if pos.Quantity != 2 || pos.EntryPrice != 100 {
		t.Fatalf("position=%+v, expected qty 2 entry 100", pos)
	}
}

func TestConnectivityErrorDegradesUntilSnapshot(t *testing.T) {
	s := testState()

	apply(t, s, events.FromAccount(account.NewConnectivityErrorEvent("binance", "websocket disconnected")))
	if !s.Degraded("binance") {
		t.Fatal("exchange not degraded after connectivity error")
	}

	apply(t, s, events.FromCommand(events.CommandReSyncState))

	apply(t, s, events.FromAccount(account.NewFullSnapshotEvent("binance", account.FullSnapshot{
		Balances: []asset.AssetBalance{
			{Asset: 1, Balance: asset.Balance{Total: 15, Free: 15}},
		},
		Instruments: []account.InstrumentSnapshot{
			{Position: position.Position{Instrument: 1, Portfolio: "default", Quantity: 1, EntryPrice: 100}},
		},
	})))

	if s.Degraded("binance") {
		t.Fatal("exchange still degraded after full snapshot")
	}
	if s.ResyncRequested() {
		t.Fatal("resync flag still set after full snapshot")
	}

	got, _ := s.Balance("binance", 1)
	if got.Total != 15 {
		t.Fatalf("balance Total=%v, expected 15", got.Total)
	}
	pos, _ := s.Position(1)
	if pos.Quantity != 1 {
		t.Fatalf("position qty=%v, expected 1", pos.Quantity)
	}
}

// A full snapshot replaces the order map wholesale, wiping in-flight records.
func TestFullSnapshotWipesInFlights(t *testing.T) {
	s := testState()
	now := time.Now()

	s.Instruments().RecordInFlights([]order.Order{
		{Instrument: 1, CID: "cid-stale", Side: order.SideBuy},
	})

	apply(t, s, events.FromAccount(account.NewFullSnapshotEvent("binance", account.FullSnapshot{
		Instruments: []account.InstrumentSnapshot{
			{
				Position: position.Position{Instrument: 1, Portfolio: "default"},
				Orders: []order.OpenOrder{
					{
						Order: order.Order{Instrument: 1, CID: "cid-live", Side: order.SideBuy},
						Open:  order.Open{ID: "ord-live", TimeUpdate: now, Price: 100, Quantity: 1},
					},
				},
			},
		},
	})))

	tracked := s.OpenOrders(1)
	if len(tracked) != 1 {
		t.Fatalf("tracked=%d orders, expected 1", len(tracked))
	}
	if tracked[0].CID != "cid-live" {
		t.Fatalf("tracked cid=%q, expected cid-live", tracked[0].CID)
	}
}

// Snapshot authority: an order snapshot overrides locally believed
// CancelInFlight status.
func TestOrderSnapshotOverridesCancelInFlight(t *testing.T) {
	s := testState()
	now := time.Now()
	ord := order.Order{Instrument: 1, CID: "cid-1", Side: order.SideBuy}

	s.Instruments().RecordInFlights([]order.Order{ord})
	s.Instruments().RecordCancelInFlight(order.RequestCancel{Order: ord, ID: "ord-1"})

	apply(t, s, events.FromAccount(account.NewOrderSnapshotEvent("binance", order.ExchangeOrder{
		Order:  ord,
		Status: order.ExchangeOpen,
		Open:   order.Open{ID: "ord-1", TimeUpdate: now, Price: 100, Quantity: 1},
	})))

	tracked := s.OpenOrders(1)
	if len(tracked) != 1 || tracked[0].State.Phase != order.PhaseOpen {
		t.Fatalf("tracked=%+v, expected one Open order", tracked)
	}
}

func TestCloneIsolation(t *testing.T) {
	s := testState()
	clone := s.Clone()

	apply(t, s, events.FromAccount(account.NewTradeEvent("binance", order.Trade{
		ID:         "t-1",
		Instrument: 1,
		Side:       order.SideBuy,
		Price:      100,
		Quantity:   2,
	})))
	apply(t, s, events.FromCommand(events.CommandDisable))

	pos, _ := clone.Position(1)
	if !pos.IsFlat() {
		t.Fatal("clone position mutated by original's trade")
	}
	if !clone.OrdersEnabled() {
		t.Fatal("clone disabled by original's command")
	}
}
