package console

import "errors"

var (
	// ErrNoCell is returned when console I/O happens with no cell bound
	// to the stream.
	ErrNoCell = errors.New("no cell is bound to the console stream")
	// ErrNotText is returned for data that is not valid UTF-8 text.
	ErrNotText = errors.New("console data must be UTF-8 text")
	// ErrUnsupportedOperation is returned by operations a console stream
	// cannot provide, such as a descriptor for an unredirected sink.
	ErrUnsupportedOperation = errors.New("unsupported console operation")
)
