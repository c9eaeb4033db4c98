package engine

import "sync"

// Tx is the sending half of an engine outbound channel. Go gives no signal
// when a reader walks away from a channel, so the receiving side announces
// its departure explicitly with CloseRx; after that every send fails with
// ErrRxDropped.
type Tx[T any] struct {
	ch   chan T
	done chan struct{}
	once sync.Once
}

// NewTx builds an outbound channel with the given buffer.
func NewTx[T any](buffer int) *Tx[T] {
	return &Tx[T]{
		ch:   make(chan T, buffer),
		done: make(chan struct{}),
	}
}

// Send delivers v, blocking while the buffer is full. It fails once the
// receiver has dropped.
func (t *Tx[T]) Send(v T) error {
	select {
	case <-t.done:
		return ErrRxDropped
	default:
	}
	select {
	case <-t.done:
		return ErrRxDropped
	case t.ch <- v:
		return nil
	}
}

// TrySend delivers v without blocking. It reports ErrRxDropped when the
// receiver is gone and ErrChannelFull when the buffer has no room.
func (t *Tx[T]) TrySend(v T) error {
	select {
	case <-t.done:
		return ErrRxDropped
	default:
	}
	select {
	case t.ch <- v:
		return nil
	default:
		return ErrChannelFull
	}
}

// Receiver returns the consuming side of the channel.
func (t *Tx[T]) Receiver() <-chan T {
	return t.ch
}

// CloseRx is called by the consumer to signal it will read no further.
func (t *Tx[T]) CloseRx() {
	t.once.Do(func() { close(t.done) })
}

// Close is called by the producer once no further sends will happen. The
// receiver's range then drains the buffer and ends.
func (t *Tx[T]) Close() {
	close(t.ch)
}
