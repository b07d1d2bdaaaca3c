package board

import (
	"context"

	"github.com/jbride/mujina/internal/mgmtproto"
	"github.com/jbride/mujina/internal/pmbus"
	"github.com/jbride/mujina/internal/transport"
	serialtransport "github.com/jbride/mujina/internal/transport/serial"
)

// BitaxeVendorID/BitaxeProductID are the USB IDs this daemon expects for a
// bitaxe-family board's onboard USB-serial bridge.
const (
	BitaxeVendorID  uint16 = 0x1fc9
	BitaxeProductID uint16 = 0x0083
)

type bitaxeBoard struct {
	info    Info
	stream  transport.Stream
	channel *mgmtproto.Channel
	vreg    *pmbus.TPS546
	fan     *pmbus.EMC2101
}

// NewBitaxeBoard opens the management-protocol serial channel at
// devicePath, brings up the TPS546 voltage regulator with the bitaxe
// factory safety envelope, and returns the initialized Board.
func NewBitaxeBoard(ctx context.Context, devicePath string) (Board, error) {
	stream, err := serialtransport.Open(devicePath)
	if err != nil {
		return nil, err
	}

	ch := mgmtproto.NewChannel(stream)
	i2c := mgmtproto.NewTunnelledI2c(ch)

	vreg := pmbus.NewTPS546(i2c)
	if err := vreg.Init(ctx, pmbus.BitaxeGamma()); err != nil {
		stream.Close()
		return nil, err
	}

	fan := pmbus.NewEMC2101(i2c)

	return &bitaxeBoard{
		info: Info{
			Name:       "bitaxe",
			VendorID:   BitaxeVendorID,
			ProductID:  BitaxeProductID,
			DevicePath: devicePath,
			ChipCount:  1,
		},
		stream:  stream,
		channel: ch,
		vreg:    vreg,
		fan:     fan,
	}, nil
}

func (b *bitaxeBoard) Info() Info { return b.info }

func (b *bitaxeBoard) Shutdown(ctx context.Context) error {
	return b.stream.Close()
}

func (b *bitaxeBoard) VoltageRegulator() *pmbus.TPS546 { return b.vreg }
func (b *bitaxeBoard) FanController() *pmbus.EMC2101   { return b.fan }
