package engram

import (
	"errors"
	"fmt"
)

var (
	// ErrNoLayers is returned when the configuration names no layer ids.
	ErrNoLayers = errors.New("engram: layer id list is empty")

	// ErrNoTokenizer is returned when neither a tokenizer source path
	// nor an explicit vocabulary source is configured.
	ErrNoTokenizer = errors.New("engram: tokenizer source is required")
)

// ErrUnknownLayer indicates a forward call for a layer id the model was
// not built with.
type ErrUnknownLayer struct {
	LayerID int
}

func (e *ErrUnknownLayer) Error() string {
	return fmt.Sprintf("engram: unknown layer id %d", e.LayerID)
}

// ErrShapeMismatch indicates tensor arguments inconsistent with the
// model's configured shapes.
//
// The original underlying error (if any) can be accessed via
// errors.Unwrap.
type ErrShapeMismatch struct {
	What     string
	Expected int
	Actual   int
	cause    error
}

func (e *ErrShapeMismatch) Error() string {
	return fmt.Sprintf("engram: %s length mismatch: expected %d, got %d", e.What, e.Expected, e.Actual)
}

func (e *ErrShapeMismatch) Unwrap() error { return e.cause }
