package doctree

import "errors"

var (
	// ErrOutOfRange indicates that a point or position does not address an
	// existing block, inline or offset.
	ErrOutOfRange = errors.New("position out of range")

	// ErrUnknownMark indicates a mark name outside the supported set.
	ErrUnknownMark = errors.New("unknown mark")

	// ErrMarkValue indicates a mark value of the wrong type.
	ErrMarkValue = errors.New("invalid mark value")
)
