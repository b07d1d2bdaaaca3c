package pmbus

import (
	"context"

	"periph.io/x/conn/v3/physic"

	"github.com/jbride/mujina/internal/mjerr"
	"github.com/jbride/mujina/internal/transport"
)

// EMC2101Address is the fixed I2C address of the EMC2101 fan/temperature
// controller found on bitaxe-family boards.
const EMC2101Address byte = 0x4C

const (
	emc2101RegExternalTempMSB = 0x01
	emc2101RegExternalTempLSB = 0x10
	emc2101RegTachLSB         = 0x46
	emc2101RegTachMSB         = 0x47
	emc2101RegFanConfig       = 0x4A
	emc2101RegFanSetting      = 0x4C
)

// EMC2101 is a thin driver for the fan/external-temperature sensor.
type EMC2101 struct {
	i2c transport.I2c
}

func NewEMC2101(i2c transport.I2c) *EMC2101 {
	return &EMC2101{i2c: i2c}
}

func (e *EMC2101) readReg(ctx context.Context, reg byte) (byte, error) {
	buf := make([]byte, 1)
	if err := e.i2c.WriteRead(ctx, EMC2101Address, []byte{reg}, buf); err != nil {
		return 0, mjerr.WrapHardware(err, "emc2101: read register 0x%02x", reg)
	}
	return buf[0], nil
}

func (e *EMC2101) writeReg(ctx context.Context, reg, value byte) error {
	if err := e.i2c.Write(ctx, EMC2101Address, []byte{reg, value}); err != nil {
		return mjerr.WrapHardware(err, "emc2101: write register 0x%02x", reg)
	}
	return nil
}

// GetExternalTemperature reads the external diode temperature sensor.
func (e *EMC2101) GetExternalTemperature(ctx context.Context) (physic.Temperature, error) {
	msb, err := e.readReg(ctx, emc2101RegExternalTempMSB)
	if err != nil {
		return 0, err
	}
	lsb, err := e.readReg(ctx, emc2101RegExternalTempLSB)
	if err != nil {
		return 0, err
	}
	// 11-bit value: MSB is whole degrees, top 3 bits of LSB are eighths.
	celsius := float64(msb) + float64(lsb>>5)/8.0
	return physic.Temperature(float64(physic.ZeroCelsius) + celsius*float64(physic.Kelvin)), nil
}

// GetFanRPM reads the tachometer and converts the raw count to RPM using
// the standard EMC2101 5-pulse-per-revolution formula.
func (e *EMC2101) GetFanRPM(ctx context.Context) (int, error) {
	lsb, err := e.readReg(ctx, emc2101RegTachLSB)
	if err != nil {
		return 0, err
	}
	msb, err := e.readReg(ctx, emc2101RegTachMSB)
	if err != nil {
		return 0, err
	}
	count := uint16(lsb) | uint16(msb)<<8
	if count == 0 || count == 0xFFFF {
		return 0, nil
	}
	rpm := (5400000 * 1) / int(count)
	return rpm, nil
}

// SetFanSpeed sets the fan PWM duty cycle as a percentage [0, 100].
func (e *EMC2101) SetFanSpeed(ctx context.Context, percent int) error {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	setting := byte(percent * 63 / 100)
	return e.writeReg(ctx, emc2101RegFanSetting, setting)
}
