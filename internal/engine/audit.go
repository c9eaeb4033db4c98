package engine

import (
	"time"

	"go.uber.org/zap"

	"tradecore/internal/events"
	"tradecore/internal/monitor"
	"tradecore/internal/order"
	"tradecore/internal/risk"
)

// AuditKind tags an audit event.
type AuditKind string

const (
	AuditSnapshot AuditKind = "snapshot"
	AuditKindUpdate AuditKind = "update"
)

// AuditEvent is one recorded unit of engine activity: either a full state
// copy or one processed input event plus its derived order actions. A
// consumer can reconstruct full engine history by replaying a Snapshot and
// the Updates after it; ids increase strictly by 1 so gaps are detectable.
type AuditEvent struct {
	ID   uint64
	Time time.Time
	Kind AuditKind

	State  *State       // set when Kind == AuditSnapshot; an immutable copy
	Update *AuditUpdate // set when Kind == AuditKindUpdate
}

// AuditUpdate carries one processed input event and all four order-action
// lists, present even when empty.
type AuditUpdate struct {
	Input          events.Event
	Cancels        []risk.Approved[order.RequestCancel]
	Opens          []risk.Approved[order.RequestOpen]
	RefusedCancels []risk.Refused[order.RequestCancel]
	RefusedOpens   []risk.Refused[order.RequestOpen]
}

// Auditor numbers engine activity into a monotonic audit stream and sends it
// non-blocking on an outbound channel. Auditing is best-effort
// observability: if the receiver is gone the auditor disables itself
// permanently and every later call is a no-op, never a blocking dependency
// of the trading path.
//
// Ids assigned increase strictly by 1; when the channel is full the numbered
// event is dropped, so the strict +1 sequence holds across assigned ids, not
// necessarily across delivered ones. A consumer treats a gap as lost events.
type Auditor struct {
	next     uint64
	tx       *Tx[AuditEvent]
	disabled bool
	log      *zap.Logger
	metrics  *monitor.Metrics
	now      func() time.Time
}

// NewAuditor builds an auditor around the given outbound channel. The first
// event it emits carries id 1.
func NewAuditor(log *zap.Logger, tx *Tx[AuditEvent], metrics *monitor.Metrics) *Auditor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Auditor{next: 1, tx: tx, log: log, metrics: metrics, now: time.Now}
}

// RecordSnapshot emits a full state snapshot. The caller passes an immutable
// copy; the auditor never touches live state.
func (a *Auditor) RecordSnapshot(state *State) {
	if a.disabled {
		return
	}
	a.emit(AuditEvent{
		ID:    a.next,
		Time:  a.now(),
		Kind:  AuditSnapshot,
		State: state,
	})
}

// Record emits one processed input event and its derived order actions.
func (a *Auditor) Record(
	input events.Event,
	cancels []risk.Approved[order.RequestCancel],
	opens []risk.Approved[order.RequestOpen],
	refusedCancels []risk.Refused[order.RequestCancel],
	refusedOpens []risk.Refused[order.RequestOpen],
) {
	if a.disabled {
		return
	}
	a.emit(AuditEvent{
		ID:   a.next,
		Time: a.now(),
		Kind: AuditKindUpdate,
		Update: &AuditUpdate{
			Input:          input,
			Cancels:        cancels,
			Opens:          opens,
			RefusedCancels: refusedCancels,
			RefusedOpens:   refusedOpens,
		},
	})
}

func (a *Auditor) emit(event AuditEvent) {
	a.next++

	switch err := a.tx.TrySend(event); err {
	case nil:
		a.metrics.IncAuditEmitted()
	case ErrRxDropped:
		a.log.Warn("audit receiver dropped - engine audits will no longer be sent")
		a.disabled = true
	case ErrChannelFull:
		// The consumer detects the resulting id gap.
		a.log.Warn("audit channel full - dropping audit event",
			zap.Uint64("id", event.ID),
			zap.String("kind", string(event.Kind)),
		)
		a.metrics.IncAuditDropped()
	}
}
