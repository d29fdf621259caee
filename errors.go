package fsm

import "fmt"

// TooManyStatesError is returned when an operation would push the graph past
// the state ceiling configured on the context.
type TooManyStatesError struct {
	Limit int
}

func (e *TooManyStatesError) Error() string {
	return fmt.Sprintf("fsm: state count exceeds limit of %d", e.Limit)
}

// PriorInteractionError is returned when two priorities with the same key and
// equal value compete during a merge. The operation is aborted; the graph is
// left consistent and can be discarded.
type PriorInteractionError struct {
	ID int
}

func (e *PriorInteractionError) Error() string {
	return fmt.Sprintf("fsm: priority interaction on guard %d", e.ID)
}

// CondCostTooHighError is returned when merging would duplicate a cost-marked
// action past the configured threshold.
type CondCostTooHighError struct {
	CostID int
}

func (e *CondCostTooHighError) Error() string {
	return fmt.Sprintf("fsm: condition cost too high for cost id %d", e.CostID)
}

// RepetitionError is returned for nonsensical repetition bounds.
type RepetitionError struct {
	Times int
}

func (e *RepetitionError) Error() string {
	return fmt.Sprintf("fsm: invalid repetition count %d", e.Times)
}

// TransDensityError is returned when condition expansion would produce a
// transition list denser than the implementation is prepared to handle.
type TransDensityError struct {
	FullSize int
}

func (e *TransDensityError) Error() string {
	return fmt.Sprintf("fsm: condition space of full size %d exceeds density limit", e.FullSize)
}

// structural invariant violations are programmer bugs, not recoverable
// conditions. They abort the library call.
func structuralf(format string, args ...any) {
	panic("fsm: " + fmt.Sprintf(format, args...))
}
