// Package serial opens the management-protocol and ASIC-chain serial lines.
package serial

import (
	"fmt"

	"github.com/tarm/serial"

	"github.com/jbride/mujina/internal/transport"
)

// Open opens dev at 115200 8N1, the fixed line configuration every mujina
// board uses for its management protocol and chain serial bus.
func Open(dev string) (transport.Stream, error) {
	cfg := &serial.Config{Name: dev, Baud: 115200}
	port, err := serial.OpenPort(cfg)
	if err != nil {
		return nil, fmt.Errorf("serial: open %s: %w", dev, err)
	}
	return port, nil
}
