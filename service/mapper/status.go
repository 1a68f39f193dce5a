package mapper

import "fmt"

// Status is a representation of the state machine's status.
type Status uint8

// The following is an enumeration of all possible statuses the
// state machine can have.
const (
	StatusInitialize Status = iota + 1
	StatusIdle
	StatusForward
	StatusReorg
	StatusRollback
	StatusHalted
)

// String implements the Stringer interface.
func (s Status) String() string {
	switch s {
	case StatusInitialize:
		return "initialize"
	case StatusIdle:
		return "idle"
	case StatusForward:
		return "forward"
	case StatusReorg:
		return "reorg"
	case StatusRollback:
		return "rollback"
	case StatusHalted:
		return "halted"
	default:
		return fmt.Sprintf("invalid status %d", s)
	}
}
