package pmbus

import "errors"

// Sentinel errors returned by the Linear11/Linear16 codecs and command
// helpers in this package.
var (
	ErrInvalidDataFormat  = errors.New("pmbus: invalid data format")
	ErrValueOutOfRange    = errors.New("pmbus: value out of range")
	ErrCommandNotSupported = errors.New("pmbus: command not supported")
	ErrCommunication      = errors.New("pmbus: communication error")
)
