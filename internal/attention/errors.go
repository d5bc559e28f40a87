package attention

import (
	"errors"
	"fmt"
)

var (
	// ErrSequenceTooLong is returned when a forward call presents more
	// positions than the mask was built for.
	ErrSequenceTooLong = errors.New("sequence too long")
	// ErrShapeMismatch is returned when query, key and value tensors do not
	// agree on their shapes.
	ErrShapeMismatch = errors.New("attention shape mismatch")
)

// SequenceTooLongError carries the offending length and the capacity.
type SequenceTooLongError struct {
	Length   int
	Capacity int
}

func (e *SequenceTooLongError) Error() string {
	return fmt.Sprintf("sequence length %d exceeds capacity %d", e.Length, e.Capacity)
}

func (e *SequenceTooLongError) Unwrap() error {
	return ErrSequenceTooLong
}
