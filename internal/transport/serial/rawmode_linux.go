//go:build linux

package serial

import (
	"fmt"

	"github.com/daedaluz/goserial"
)

// SetRawMode puts dev into raw 8N1 mode with all input/output processing
// disabled, a configuration tarm/serial's Config cannot express directly.
// Used for the ASIC chain's serial bus, which carries binary frames rather
// than line-oriented text.
func SetRawMode(dev string) error {
	opts := goserial.NewOptions()
	port, err := goserial.Open(dev, opts)
	if err != nil {
		return fmt.Errorf("serial: open %s for raw-mode setup: %w", dev, err)
	}
	defer port.Close()

	t, err := port.GetAttr()
	if err != nil {
		return fmt.Errorf("serial: get termios for %s: %w", dev, err)
	}
	t.MakeRaw()
	t.SetSpeed(115200)
	if err := port.SetAttr(t); err != nil {
		return fmt.Errorf("serial: set raw termios for %s: %w", dev, err)
	}
	return nil
}
