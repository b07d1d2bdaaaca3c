// Package mjerr defines the error taxonomy shared across mujina's packages.
package mjerr

import "fmt"

// Kind classifies an Error by the subsystem that produced it.
type Kind int

const (
	Other Kind = iota
	Io
	Serial
	Config
	Protocol
	Hardware
	Pool
	Api
)

func (k Kind) String() string {
	switch k {
	case Io:
		return "io"
	case Serial:
		return "serial"
	case Config:
		return "config"
	case Protocol:
		return "protocol"
	case Hardware:
		return "hardware"
	case Pool:
		return "pool"
	case Api:
		return "api"
	default:
		return "other"
	}
}

// Error is the common error shape used throughout mujina.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func new_(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

func IoErr(format string, args ...any) *Error       { return new_(Io, format, args...) }
func SerialErr(format string, args ...any) *Error   { return new_(Serial, format, args...) }
func ConfigErr(format string, args ...any) *Error    { return new_(Config, format, args...) }
func ProtocolErr(format string, args ...any) *Error  { return new_(Protocol, format, args...) }
func HardwareErr(format string, args ...any) *Error  { return new_(Hardware, format, args...) }
func PoolErr(format string, args ...any) *Error      { return new_(Pool, format, args...) }
func ApiErr(format string, args ...any) *Error       { return new_(Api, format, args...) }

func WrapIo(err error, format string, args ...any) *Error       { return wrap(Io, err, format, args...) }
func WrapSerial(err error, format string, args ...any) *Error   { return wrap(Serial, err, format, args...) }
func WrapConfig(err error, format string, args ...any) *Error   { return wrap(Config, err, format, args...) }
func WrapProtocol(err error, format string, args ...any) *Error { return wrap(Protocol, err, format, args...) }
func WrapHardware(err error, format string, args ...any) *Error { return wrap(Hardware, err, format, args...) }
func WrapPool(err error, format string, args ...any) *Error     { return wrap(Pool, err, format, args...) }
func WrapApi(err error, format string, args ...any) *Error      { return wrap(Api, err, format, args...) }

// KindOf returns the Kind of err if it (or something it wraps) is an *Error,
// and Other otherwise.
func KindOf(err error) Kind {
	var e *Error
	for err != nil {
		if ee, ok := err.(*Error); ok {
			e = ee
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	if e == nil {
		return Other
	}
	return e.Kind
}
