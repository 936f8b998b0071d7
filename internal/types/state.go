package types

// ExecutionState is returned by every pull operation.
type ExecutionState uint8

const (
	// StateHasMore: more data may be available, call again.
	StateHasMore ExecutionState = iota
	// StateDone: no more data will ever arrive.
	StateDone
	// StateWaiting: an asynchronous dependency is not ready yet. Retry the
	// identical call later; nothing happened on this call.
	StateWaiting
)

func (s ExecutionState) String() string {
	switch s {
	case StateHasMore:
		return "HASMORE"
	case StateDone:
		return "DONE"
	case StateWaiting:
		return "WAITING"
	}
	return "UNKNOWN"
}

// RegisterID is the stable identity of a column across an operator's input
// and output blocks.
type RegisterID int
