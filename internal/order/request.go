package order

// RequestKind tags an ExecutionRequest batch.
type RequestKind uint8

const (
	RequestKindCancelOrders RequestKind = iota + 1
	RequestKindOpenOrders
)

// ExecutionRequest is an outbound batch for the execution link. A batch is
// either cancels or opens, never both.
type ExecutionRequest struct {
	Kind    RequestKind
	Cancels []RequestCancel // valid when Kind == RequestKindCancelOrders
	Opens   []RequestOpen   // valid when Kind == RequestKindOpenOrders
}

// CancelOrders builds a cancel batch.
func CancelOrders(cancels []RequestCancel) ExecutionRequest {
	return ExecutionRequest{Kind: RequestKindCancelOrders, Cancels: cancels}
}

// OpenOrders builds an open batch.
func OpenOrders(opens []RequestOpen) ExecutionRequest {
	return ExecutionRequest{Kind: RequestKindOpenOrders, Opens: opens}
}

// IsEmpty reports whether the batch carries no requests.
func (r ExecutionRequest) IsEmpty() bool {
	switch r.Kind {
	case RequestKindCancelOrders:
		return len(r.Cancels) == 0
	case RequestKindOpenOrders:
		return len(r.Opens) == 0
	default:
		return true
	}
}
