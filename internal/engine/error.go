package engine

import "errors"

// Fatal-path sentinels. The run loop terminates on a state update error or a
// dropped execution receiver; everything else on the live-data path is a
// logged anomaly, never an abort. Misconfiguration discovered at runtime
// (recording an in-flight for an instrument that was never configured) is
// programmer error and panics instead.
var (
	// ErrRxDropped reports that the receiving side of an outbound engine
	// channel is gone.
	ErrRxDropped = errors.New("channel receiver dropped")

	// ErrChannelFull reports a failed non-blocking send on a full channel.
	ErrChannelFull = errors.New("channel full")

	// ErrTerminated is returned by a state update that processed an
	// operator Terminate command. It ends the run loop cleanly and is not
	// a failure.
	ErrTerminated = errors.New("terminated by operator command")
)

// Terminal reports whether an error from the event pipeline must stop the
// run loop. State update failures invalidate the whole state, so every
// update error is terminal; ErrTerminated is terminal by intent.
func Terminal(err error) bool {
	return err != nil
}
