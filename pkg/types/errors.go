package types

import "errors"

var (
	// ErrValidation marks malformed input rejected before any side effect
	ErrValidation = errors.New("validation error")

	// ErrFatalCoordination marks store or session-state corruption that
	// must halt the surrounding operation
	ErrFatalCoordination = errors.New("fatal coordination error")
)
