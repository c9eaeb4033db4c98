// Package engine holds the trading core: the single-writer run loop, the
// authoritative EngineState aggregate, and the audit stream. One event is
// fully processed (state update, strategy, risk, send, record, audit) before
// the next is pulled; concurrency lives at the boundaries, not here.
package engine

import (
	"errors"

	"go.uber.org/zap"

	"tradecore/internal/events"
	"tradecore/internal/monitor"
	"tradecore/internal/order"
	"tradecore/internal/risk"
	"tradecore/internal/strategy"
)

// Engine consumes the merged event feed, maintains State, runs the
// strategy/risk pipeline, and emits execution requests and audit events.
type Engine struct {
	feed      <-chan events.Event
	execution *Tx[order.ExecutionRequest]
	auditor   *Auditor
	state     *State
	strategy  strategy.Strategy
	risk      risk.Manager
	metrics   *monitor.Metrics
	log       *zap.Logger
}

// Config assembles an Engine. Strategy defaults to the no-op strategy and
// Risk to the spec-based manager.
type Config struct {
	Log       *zap.Logger
	Feed      <-chan events.Event
	Execution *Tx[order.ExecutionRequest]
	Auditor   *Auditor
	State     *State
	Strategy  strategy.Strategy
	Risk      risk.Manager
	Metrics   *monitor.Metrics
}

// New builds an Engine.
func New(cfg Config) *Engine {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	strat := cfg.Strategy
	if strat == nil {
		strat = strategy.Noop{}
	}
	rsk := cfg.Risk
	if rsk == nil {
		rsk = risk.SpecManager{}
	}
	return &Engine{
		feed:      cfg.Feed,
		execution: cfg.Execution,
		auditor:   cfg.Auditor,
		state:     cfg.State,
		strategy:  strat,
		risk:      rsk,
		metrics:   cfg.Metrics,
		log:       log,
	}
}

// Run consumes events until the feed is exhausted, a state update fails, the
// operator terminates, or the execution receiver drops. It returns the
// terminal state for post-run inspection; none of the intended exit paths
// panic.
func (e *Engine) Run() *State {
	// The audit stream always starts with a full snapshot so a consumer
	// can replay Snapshot + Updates into the current state.
	e.auditor.RecordSnapshot(e.state.Clone())

	for ev := range e.feed {
		ev := ev
		e.metrics.IncEvent(ev.Kind())

		if err := e.state.TryUpdate(&ev); err != nil {
			if errors.Is(err, ErrTerminated) {
				e.log.Info("terminating engine", zap.String("reason", "operator command"))
			} else {
				e.log.Error("terminating engine", zap.String("reason", "state update failed"), zap.Error(err))
			}
			break
		}

		var cancels []order.RequestCancel
		var opens []order.RequestOpen
		if e.state.OrdersEnabled() {
			cancels, opens = e.strategy.GenerateOrders(e.state)
		}

		approvedCancels, approvedOpens, refusedCancels, refusedOpens :=
			e.risk.ApproveOrders(e.state, cancels, opens)

		// In-flight identities are synthesized from the approved requests;
		// the cid was assigned at request-generation time.
		inFlights := make([]order.Order, 0, len(approvedOpens))
		for _, approved := range approvedOpens {
			inFlights = append(inFlights, approved.Item.Order)
		}

		if err := e.sendForExecution(approvedCancels, approvedOpens); err != nil {
			e.log.Error("terminating engine", zap.String("reason", "execution receiver dropped"), zap.Error(err))
			break
		}

		// Record in-flights before auditing so the audit stream reflects
		// the state the next iteration will see.
		e.state.instruments.RecordInFlights(inFlights)
		for _, approved := range approvedCancels {
			e.state.instruments.RecordCancelInFlight(approved.Item)
		}

		e.auditor.Record(ev, approvedCancels, approvedOpens, refusedCancels, refusedOpens)

		e.metrics.AddOrdersApproved("cancel", len(approvedCancels))
		e.metrics.AddOrdersApproved("open", len(approvedOpens))
		e.metrics.AddOrdersRefused("cancel", len(refusedCancels))
		e.metrics.AddOrdersRefused("open", len(refusedOpens))
	}

	return e.state
}

// sendForExecution forwards approved batches downstream. A dropped receiver
// is fatal: orders must never be silently discarded.
func (e *Engine) sendForExecution(
	cancels []risk.Approved[order.RequestCancel],
	opens []risk.Approved[order.RequestOpen],
) error {
	if len(cancels) > 0 {
		batch := make([]order.RequestCancel, len(cancels))
		for i, approved := range cancels {
			batch[i] = approved.Item
		}
		if err := e.execution.Send(order.CancelOrders(batch)); err != nil {
			return err
		}
	}

	if len(opens) > 0 {
		batch := make([]order.RequestOpen, len(opens))
		for i, approved := range opens {
			batch[i] = approved.Item
		}
		if err := e.execution.Send(order.OpenOrders(batch)); err != nil {
			return err
		}
	}

	return nil
}
