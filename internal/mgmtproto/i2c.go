package mgmtproto

import (
	"context"

	"github.com/jbride/mujina/internal/transport"
)

// Opcodes for the tunnelled I2C operations the management protocol exposes.
const (
	opcodeI2CWrite     byte = 0x10
	opcodeI2CRead      byte = 0x11
	opcodeI2CWriteRead byte = 0x12
)

// TunnelledI2c implements transport.I2c by encoding each operation as a
// management-protocol packet sent over a shared Channel.
type TunnelledI2c struct {
	channel *Channel
}

var _ transport.I2c = (*TunnelledI2c)(nil)

// NewTunnelledI2c builds an I2c bus tunnelled through ch.
func NewTunnelledI2c(ch *Channel) *TunnelledI2c {
	return &TunnelledI2c{channel: ch}
}

func (t *TunnelledI2c) Write(ctx context.Context, addr byte, data []byte) error {
	payload := append([]byte{addr}, data...)
	_, err := t.channel.SendPacket(ctx, Packet{Opcode: opcodeI2CWrite, Payload: payload})
	return err
}

func (t *TunnelledI2c) Read(ctx context.Context, addr byte, buf []byte) error {
	payload := []byte{addr, byte(len(buf))}
	resp, err := t.channel.SendPacket(ctx, Packet{Opcode: opcodeI2CRead, Payload: payload})
	if err != nil {
		return err
	}
	n := copy(buf, resp.Payload)
	_ = n
	return nil
}

func (t *TunnelledI2c) WriteRead(ctx context.Context, addr byte, out []byte, in []byte) error {
	payload := append([]byte{addr, byte(len(out)), byte(len(in))}, out...)
	resp, err := t.channel.SendPacket(ctx, Packet{Opcode: opcodeI2CWriteRead, Payload: payload})
	if err != nil {
		return err
	}
	copy(in, resp.Payload)
	return nil
}
