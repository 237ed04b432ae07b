package youtube

import "errors"

var (
	// ErrChannelNotFound means no channel identifier could be derived for a reference.
	ErrChannelNotFound = errors.New("channel not found")
	// ErrUnsupportedReference means the reference matches none of the accepted shapes.
	ErrUnsupportedReference = errors.New("unsupported channel reference")
)
