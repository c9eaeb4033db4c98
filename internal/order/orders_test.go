package order

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func testOrder(cid string) Order {
	return Order{Instrument: 1, CID: ClientOrderID(cid), Side: SideBuy}
}

func testOpen(id string, at time.Time) Open {
	return Open{ID: OrderID(id), TimeUpdate: at, Price: 100, Quantity: 2}
}

func TestRecordInFlights(t *testing.T) {
	orders := NewOrders(zap.NewNop())

	orders.RecordInFlights([]Order{testOrder("cid-1"), testOrder("cid-2")})
	if orders.Len() != 2 {
		t.Fatalf("Len=%d, expected 2", orders.Len())
	}

	tracked, ok := orders.Get("cid-1")
	if !ok {
		t.Fatal("cid-1 not tracked")
	}
	if tracked.State.Phase != PhaseOpenInFlight {
		t.Fatalf("phase=%v, expected OpenInFlight", tracked.State.Phase)
	}
}

// A duplicate cid must never overwrite an existing entry: the existing record
// may be a live exchange order.
func TestRecordInFlightsDuplicateCIDKeepsExisting(t *testing.T) {
	orders := NewOrders(zap.NewNop())
	now := time.Now()

	orders.RecordInFlights([]Order{testOrder("cid-1")})
	orders.UpdateFromOpen(&OpenResponse{
		Order: testOrder("cid-1"),
		Open:  ptr(testOpen("ord-1", now)),
	})

	orders.RecordInFlights([]Order{testOrder("cid-1")})

	tracked, _ := orders.Get("cid-1")
	if tracked.State.Phase != PhaseOpen {
		t.Fatalf("phase=%v, expected Open preserved", tracked.State.Phase)
	}
	if tracked.State.Open.ID != "ord-1" {
		t.Fatalf("order id=%q, expected ord-1", tracked.State.Open.ID)
	}
}

func TestUpdateFromOpen(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		seed      func(*Orders)
		response  OpenResponse
		wantPhase Phase   // 0 means removed / untracked
		wantID    OrderID // checked when wantPhase == PhaseOpen
	}{
		{
			name: "in flight to open",
			seed: func(o *Orders) {
				o.RecordInFlights([]Order{testOrder("cid-1")})
			},
			response: OpenResponse{
				Order: testOrder("cid-1"),
				Open:  ptr(testOpen("ord-1", base)),
			},
			wantPhase: PhaseOpen,
			wantID:    "ord-1",
		},
		{
			name: "open duplicate with newer timestamp wins",
			seed: func(o *Orders) {
				o.RecordInFlights([]Order{testOrder("cid-1")})
				o.UpdateFromOpen(&OpenResponse{
					Order: testOrder("cid-1"),
					Open:  ptr(testOpen("ord-1", base)),
				})
			},
			response: OpenResponse{
				Order: testOrder("cid-1"),
				Open:  ptr(testOpen("ord-2", base.Add(time.Second))),
			},
			wantPhase: PhaseOpen,
			wantID:    "ord-2",
		},
		{
			name: "open duplicate with older timestamp is discarded",
			seed: func(o *Orders) {
				o.RecordInFlights([]Order{testOrder("cid-1")})
				o.UpdateFromOpen(&OpenResponse{
					Order: testOrder("cid-1"),
					Open:  ptr(testOpen("ord-1", base)),
				})
			},
			response: OpenResponse{
				Order: testOrder("cid-1"),
				Open:  ptr(testOpen("ord-stale", base.Add(-time.Second))),
			},
			wantPhase: PhaseOpen,
			wantID:    "ord-1",
		},
		{
			name: "open response for cancel in flight does not overwrite",
			seed: func(o *Orders) {
				o.RecordInFlights([]Order{testOrder("cid-1")})
				o.RecordCancelInFlight(RequestCancel{Order: testOrder("cid-1"), ID: "ord-1"})
			},
			response: OpenResponse{
				Order: testOrder("cid-1"),
				Open:  ptr(testOpen("ord-1", base)),
			},
			wantPhase: PhaseCancelInFlight,
		},
		{
			name: "error removes in flight",
			seed: func(o *Orders) {
				o.RecordInFlights([]Order{testOrder("cid-1")})
			},
			response: OpenResponse{
				Order: testOrder("cid-1"),
				Err:   &ExecutionError{Code: ExecOrderRejected},
			},
			wantPhase: 0,
		},
		{
			name: "error keeps open order",
			seed: func(o *Orders) {
				o.RecordInFlights([]Order{testOrder("cid-1")})
				o.UpdateFromOpen(&OpenResponse{
					Order: testOrder("cid-1"),
					Open:  ptr(testOpen("ord-1", base)),
				})
			},
			response: OpenResponse{
				Order: testOrder("cid-1"),
				Err:   &ExecutionError{Code: ExecRateLimit},
			},
			wantPhase: PhaseOpen,
			wantID:    "ord-1",
		},
		{
			name: "error keeps cancel in flight",
			seed: func(o *Orders) {
				o.RecordInFlights([]Order{testOrder("cid-1")})
				o.RecordCancelInFlight(RequestCancel{Order: testOrder("cid-1"), ID: "ord-1"})
			},
			response: OpenResponse{
				Order: testOrder("cid-1"),
				Err:   &ExecutionError{Code: ExecRateLimit},
			},
			wantPhase: PhaseCancelInFlight,
		},
		{
			name: "untracked open response is tracked anyway",
			seed: func(*Orders) {},
			response: OpenResponse{
				Order: testOrder("cid-unknown"),
				Open:  ptr(testOpen("ord-9", base)),
			},
			wantPhase: PhaseOpen,
			wantID:    "ord-9",
		},
		{
			name: "untracked error is a no-op",
			seed: func(*Orders) {},
			response: OpenResponse{
				Order: testOrder("cid-unknown"),
				Err:   &ExecutionError{Code: ExecOrderRejected},
			},
			wantPhase: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders := NewOrders(zap.NewNop())
			tt.seed(orders)

			orders.UpdateFromOpen(&tt.response)

			tracked, ok := orders.Get(tt.response.CID)
			if tt.wantPhase == 0 {
				if ok {
					t.Fatalf("order still tracked in phase %v, expected removed", tracked.State.Phase)
				}
				return
			}
			if !ok {
				t.Fatal("order not tracked")
			}
			if tracked.State.Phase != tt.wantPhase {
				t.Fatalf("phase=%v, expected %v", tracked.State.Phase, tt.wantPhase)
			}
			if tt.wantPhase == PhaseOpen && tracked.State.Open.ID != tt.wantID {
				t.Fatalf("order id=%q, expected %q", tracked.State.Open.ID, tt.wantID)
			}
		})
	}
}

func TestUpdateFromCancel(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		seed        func(*Orders)
		response    CancelResponse
		wantTracked bool
		wantPhase   Phase
	}{
		{
			name: "confirmed cancel removes open order",
			seed: func(o *Orders) {
				o.RecordInFlights([]Order{testOrder("cid-1")})
				o.UpdateFromOpen(&OpenResponse{
					Order: testOrder("cid-1"),
					Open:  ptr(testOpen("ord-1", base)),
				})
			},
			response: CancelResponse{
				Order:     testOrder("cid-1"),
				Cancelled: &Cancelled{ID: "ord-1", TimeExchange: base},
			},
			wantTracked: false,
		},
		{
			name: "confirmed cancel removes cancel in flight",
			seed: func(o *Orders) {
				o.RecordInFlights([]Order{testOrder("cid-1")})
				o.RecordCancelInFlight(RequestCancel{Order: testOrder("cid-1"), ID: "ord-1"})
			},
			response: CancelResponse{
				Order:     testOrder("cid-1"),
				Cancelled: &Cancelled{ID: "ord-1", TimeExchange: base},
			},
			wantTracked: false,
		},
		{
			name: "confirmed cancel removes open in flight",
			seed: func(o *Orders) {
				o.RecordInFlights([]Order{testOrder("cid-1")})
			},
			response: CancelResponse{
				Order:     testOrder("cid-1"),
				Cancelled: &Cancelled{ID: "ord-1", TimeExchange: base},
			},
			wantTracked: false,
		},
		{
			name: "error keeps cancel in flight for manual intervention",
			seed: func(o *Orders) {
				o.RecordInFlights([]Order{testOrder("cid-1")})
				o.RecordCancelInFlight(RequestCancel{Order: testOrder("cid-1"), ID: "ord-1"})
			},
			response: CancelResponse{
				Order: testOrder("cid-1"),
				Err:   &ExecutionError{Code: ExecRateLimit},
			},
			wantTracked: true,
			wantPhase:   PhaseCancelInFlight,
		},
		{
			name: "error keeps open order",
			seed: func(o *Orders) {
				o.RecordInFlights([]Order{testOrder("cid-1")})
				o.UpdateFromOpen(&OpenResponse{
					Order: testOrder("cid-1"),
					Open:  ptr(testOpen("ord-1", base)),
				})
			},
			response: CancelResponse{
				Order: testOrder("cid-1"),
				Err:   &ExecutionError{Code: ExecOrderAlreadyCanceled},
			},
			wantTracked: true,
			wantPhase:   PhaseOpen,
		},
		{
			name: "untracked confirmed cancel is a no-op",
			seed: func(*Orders) {},
			response: CancelResponse{
				Order:     testOrder("cid-unknown"),
				Cancelled: &Cancelled{ID: "ord-9", TimeExchange: base},
			},
			wantTracked: false,
		},
		{
			name: "untracked error is a no-op",
			seed: func(*Orders) {},
			response: CancelResponse{
				Order: testOrder("cid-unknown"),
				Err:   &ExecutionError{Code: ExecOrderRejected},
			},
			wantTracked: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders := NewOrders(zap.NewNop())
			tt.seed(orders)

			orders.UpdateFromCancel(&tt.response)

			tracked, ok := orders.Get(tt.response.CID)
			if ok != tt.wantTracked {
				t.Fatalf("tracked=%v, expected %v", ok, tt.wantTracked)
			}
			if ok && tracked.State.Phase != tt.wantPhase {
				t.Fatalf("phase=%v, expected %v", tracked.State.Phase, tt.wantPhase)
			}
		})
	}
}

// Snapshots are exchange-reported truth and override any locally believed
// in-flight status.
func TestUpdateFromSnapshotAuthority(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("open snapshot overrides cancel in flight", func(t *testing.T) {
		orders := NewOrders(zap.NewNop())
		orders.RecordInFlights([]Order{testOrder("cid-1")})
		orders.RecordCancelInFlight(RequestCancel{Order: testOrder("cid-1"), ID: "ord-1"})

		orders.UpdateFromSnapshot(&ExchangeOrder{
			Order:  testOrder("cid-1"),
			Status: ExchangeOpen,
			Open:   testOpen("ord-1", base),
		})

		tracked, _ := orders.Get("cid-1")
		if tracked.State.Phase != PhaseOpen {
			t.Fatalf("phase=%v, expected Open", tracked.State.Phase)
		}
	})

	t.Run("cancelled snapshot removes open in flight", func(t *testing.T) {
		orders := NewOrders(zap.NewNop())
		orders.RecordInFlights([]Order{testOrder("cid-1")})

		orders.UpdateFromSnapshot(&ExchangeOrder{
			Order:     testOrder("cid-1"),
			Status:    ExchangeCancelled,
			Cancelled: Cancelled{ID: "ord-1", TimeExchange: base},
		})

		if orders.Len() != 0 {
			t.Fatalf("Len=%d, expected 0", orders.Len())
		}
	})

	t.Run("untracked open snapshot is tracked", func(t *testing.T) {
		orders := NewOrders(zap.NewNop())

		orders.UpdateFromSnapshot(&ExchangeOrder{
			Order:  testOrder("cid-external"),
			Status: ExchangeOpen,
			Open:   testOpen("ord-7", base),
		})

		tracked, ok := orders.Get("cid-external")
		if !ok || tracked.State.Phase != PhaseOpen {
			t.Fatal("externally opened order not tracked as Open")
		}
	})
}

func TestReplaceWipesInFlights(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	orders := NewOrders(zap.NewNop())
	orders.RecordInFlights([]Order{testOrder("cid-1"), testOrder("cid-2")})

	orders.Replace([]OpenOrder{
		{Order: testOrder("cid-3"), Open: testOpen("ord-3", base)},
	})

	if orders.Len() != 1 {
		t.Fatalf("Len=%d, expected 1", orders.Len())
	}
	if _, ok := orders.Get("cid-1"); ok {
		t.Fatal("in-flight cid-1 survived replace")
	}
	tracked, ok := orders.Get("cid-3")
	if !ok || tracked.State.Phase != PhaseOpen {
		t.Fatal("snapshot order cid-3 not tracked as Open")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	orders := NewOrders(zap.NewNop())
	orders.RecordInFlights([]Order{testOrder("cid-1")})

	clone := orders.Clone()
	orders.RecordCancelInFlight(RequestCancel{Order: testOrder("cid-1"), ID: "ord-1"})

	tracked, _ := clone.Get("cid-1")
	if tracked.State.Phase != PhaseOpenInFlight {
		t.Fatalf("clone phase=%v, expected OpenInFlight", tracked.State.Phase)
	}
}

func ptr[T any](v T) *T { return &v }
