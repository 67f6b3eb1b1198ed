package cutplan

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidArgument is returned before any random draws when the
	// sampling inputs are unusable.
	ErrInvalidArgument = errors.New("cutplan: invalid argument")

	// ErrDegenerateBasis means the random draw produced parallel or zero
	// vectors. Sample redraws on it; GenerateBasis returns it as-is.
	ErrDegenerateBasis = errors.New("cutplan: degenerate basis")

	// ErrCutFailed matches every *CutError.
	ErrCutFailed = errors.New("cutplan: cut failed")
)

// CutError records a cut the collaborator rejected.
type CutError struct {
	Index int
	Err   error
}

func (e *CutError) Error() string {
	return fmt.Sprintf("cut %d: %v", e.Index, e.Err)
}

func (e *CutError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrCutFailed) match any cut failure.
func (e *CutError) Is(target error) bool {
	return target == ErrCutFailed
}
