package rfplus

import "errors"

// Sentinel errors returned by the completion pipeline.
var (
	// ErrStructuralViolation indicates an input tree that is empty, not
	// strictly binary, or carries missing or repeated leaf labels.
	ErrStructuralViolation = errors.New("structural violation")
	// ErrLabelConsistency indicates a label or node missing from an index
	// built over the other tree.
	ErrLabelConsistency = errors.New("label consistency violation")
	// ErrArityViolation indicates a node with an unexpected child count
	// while trees are being rewired.
	ErrArityViolation = errors.New("arity violation")
)
