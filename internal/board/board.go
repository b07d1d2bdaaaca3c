// Package board defines the Board abstraction: a connected ASIC mining
// board, its capability-based optional peripherals, and the registry that
// matches a discovered USB descriptor to the factory that knows how to
// bring it up.
package board

import (
	"context"

	"github.com/jbride/mujina/internal/pmbus"
)

// Info identifies a connected board for logging and the status API.
type Info struct {
	Name       string
	VendorID   uint16
	ProductID  uint16
	DevicePath string
	ChipCount  int
}

// Board is a live, initialized mining board. Peripherals that not every
// board exposes (a voltage regulator, a fan controller) are accessed
// through optional capability accessors rather than type assertions, so
// callers never need to downcast a Board to a concrete type.
type Board interface {
	Info() Info

	// Shutdown stops all hashing and releases the board's transport. It
	// must be safe to call more than once.
	Shutdown(ctx context.Context) error

	// VoltageRegulator returns the board's PMBus regulator driver, or nil
	// if this board has none.
	VoltageRegulator() *pmbus.TPS546

	// FanController returns the board's fan/temperature driver, or nil if
	// this board has none.
	FanController() *pmbus.EMC2101
}

// Factory brings up a Board from a freshly discovered device path. It is
// called with a context bounded by the backplane's board-init timeout;
// factories that cannot honor cancellation risk being abandoned mid-init
// by the backplane (see internal/backplane).
type Factory func(ctx context.Context, devicePath string) (Board, error)
