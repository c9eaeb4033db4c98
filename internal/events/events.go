package events

import (
	"tradecore/internal/account"
	"tradecore/internal/market"
)

// Command is an operator instruction to the engine.
type Command uint8

const (
	CommandDisable Command = iota + 1
	CommandEnable
	CommandTerminate
	CommandReSyncState
)

func (c Command) String() string {
	switch c {
	case CommandDisable:
		return "disable"
	case CommandEnable:
		return "enable"
	case CommandTerminate:
		return "terminate"
	case CommandReSyncState:
		return "resync_state"
	default:
		return "unknown"
	}
}

// Event is the union of everything the engine consumes: operator commands,
// account/execution feedback, and market data. Exactly one payload is set.
type Event struct {
	Command Command // non-zero when the event is a command
	Account *account.Event
	Market  *market.Event
}

// FromCommand wraps a command.
func FromCommand(c Command) Event {
	return Event{Command: c}
}

// FromAccount wraps account feedback.
func FromAccount(e account.Event) Event {
	return Event{Account: &e}
}

// FromMarket wraps a market data update.
func FromMarket(e market.Event) Event {
	return Event{Market: &e}
}

// IsCommand reports whether the event is an operator command.
func (e *Event) IsCommand() bool {
	return e.Command != 0
}

// Kind names the event variant for logging and audit records.
func (e *Event) Kind() string {
	switch {
	case e.IsCommand():
		return "command_" + e.Command.String()
	case e.Account != nil:
		return "account_" + e.Account.Kind.String()
	case e.Market != nil:
		return "market_" + string(e.Market.Kind)
	default:
		return "empty"
	}
}
