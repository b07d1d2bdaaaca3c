package board

import (
	"context"

	"github.com/jbride/mujina/internal/pmbus"
)

// cpuBoard is a synthetic board backed by no real hardware, used for
// local testing and for CI environments without an attached ASIC. It
// exposes neither a voltage regulator nor a fan controller.
type cpuBoard struct {
	info Info
}

// NewCPUBoard builds the synthetic CPU-hashing board. devicePath is used
// only as an opaque identity string since there is no real device to open.
func NewCPUBoard(ctx context.Context, devicePath string) (Board, error) {
	return &cpuBoard{
		info: Info{
			Name:       "cpu",
			DevicePath: devicePath,
			ChipCount:  1,
		},
	}, nil
}

func (b *cpuBoard) Info() Info                             { return b.info }
func (b *cpuBoard) Shutdown(ctx context.Context) error      { return nil }
func (b *cpuBoard) VoltageRegulator() *pmbus.TPS546         { return nil }
func (b *cpuBoard) FanController() *pmbus.EMC2101           { return nil }
