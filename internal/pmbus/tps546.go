package pmbus

import (
	"context"
	"time"

	"periph.io/x/conn/v3/physic"

	"github.com/jbride/mujina/internal/mjerr"
	"github.com/jbride/mujina/internal/transport"
)

// TPS546Address is the fixed I2C address of the TPS546 voltage regulator.
const TPS546Address byte = 0x24

const tps546DeviceID = "TPS546"

// TPS546Config is the safety envelope written to the regulator during
// Init. Callers must not construct one with vout_min <= 0 or
// vout_min > vout_command: the regulator would otherwise either never
// report undervoltage or start with an invalid operating point.
type TPS546Config struct {
	VoutCommand float32 // volts
	VoutMin     float32 // volts
	VoutMax     float32 // volts
	VoutOVFaultLimit float32
	VoutUVFaultLimit float32
	IoutOCFaultLimit float32
	OTFaultLimit     float32
}

// Validate checks the invariant vout_min > 0 and vout_min <= vout_command <= vout_max.
func (c TPS546Config) Validate() error {
	if c.VoutMin <= 0 {
		return mjerr.ConfigErr("tps546: vout_min must be > 0, got %v", c.VoutMin)
	}
	if !(c.VoutMin <= c.VoutCommand && c.VoutCommand <= c.VoutMax) {
		return mjerr.ConfigErr("tps546: vout_command %v out of [vout_min %v, vout_max %v]", c.VoutCommand, c.VoutMin, c.VoutMax)
	}
	return nil
}

// BitaxeGamma is the factory safety envelope used by bitaxe-family boards.
func BitaxeGamma() TPS546Config {
	return TPS546Config{
		VoutCommand:      1.2,
		VoutMin:          1.0,
		VoutMax:          1.4,
		VoutOVFaultLimit: 1.45,
		VoutUVFaultLimit: 0.95,
		IoutOCFaultLimit: 40.0,
		OTFaultLimit:     125.0,
	}
}

// TPS546 drives a TI TPS546 PMBus buck regulator over a tunnelled I2C bus.
type TPS546 struct {
	i2c      transport.I2c
	voutMode byte
}

// NewTPS546 constructs a driver bound to i2c. Init must be called before
// any other method.
func NewTPS546(i2c transport.I2c) *TPS546 {
	return &TPS546{i2c: i2c}
}

func (t *TPS546) readByte(ctx context.Context, cmd byte) (byte, error) {
	buf := make([]byte, 1)
	if err := t.i2c.WriteRead(ctx, TPS546Address, []byte{cmd}, buf); err != nil {
		return 0, mjerr.WrapHardware(err, "tps546: read byte 0x%02x", cmd)
	}
	return buf[0], nil
}

func (t *TPS546) writeByte(ctx context.Context, cmd, value byte) error {
	if err := t.i2c.Write(ctx, TPS546Address, []byte{cmd, value}); err != nil {
		return mjerr.WrapHardware(err, "tps546: write byte 0x%02x", cmd)
	}
	return nil
}

func (t *TPS546) readWord(ctx context.Context, cmd byte) (uint16, error) {
	buf := make([]byte, 2)
	if err := t.i2c.WriteRead(ctx, TPS546Address, []byte{cmd}, buf); err != nil {
		return 0, mjerr.WrapHardware(err, "tps546: read word 0x%02x", cmd)
	}
	return uint16(buf[0]) | uint16(buf[1])<<8, nil
}

func (t *TPS546) writeWord(ctx context.Context, cmd byte, value uint16) error {
	payload := []byte{cmd, byte(value), byte(value >> 8)}
	if err := t.i2c.Write(ctx, TPS546Address, payload); err != nil {
		return mjerr.WrapHardware(err, "tps546: write word 0x%02x", cmd)
	}
	return nil
}

// Init runs the strict bring-up sequence: read the device ID (the bytes
// read are not compared against any expected ID), force the regulator off, configure ON_OFF_CONFIG, read VOUT_MODE (needed to decode
// every subsequent ULINEAR16 value), write the full safety envelope, then
// read STATUS_WORD back to confirm the part came up clean.
func (t *TPS546) Init(ctx context.Context, cfg TPS546Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := t.verifyDeviceID(ctx); err != nil {
		return err
	}

	if err := t.writeByte(ctx, CmdOperation, OperationOffImmediate); err != nil {
		return err
	}

	onOffConfig := OnOffConfigCMD | OnOffConfigPolarity
	if err := t.writeByte(ctx, CmdOnOffConfig, onOffConfig); err != nil {
		return err
	}

	voutMode, err := t.readByte(ctx, CmdVoutMode)
	if err != nil {
		return err
	}
	t.voutMode = voutMode

	if err := t.writeConfig(ctx, cfg); err != nil {
		return err
	}

	status, err := t.readWord(ctx, CmdStatusWord)
	if err != nil {
		return err
	}
	if IsCritical(status) {
		return mjerr.HardwareErr("tps546: critical fault after init, status_word=0x%04x", status)
	}

	return t.writeByte(ctx, CmdOperation, OperationOn)
}

func (t *TPS546) verifyDeviceID(ctx context.Context) error {
	buf := make([]byte, 6)
	if err := t.i2c.WriteRead(ctx, TPS546Address, []byte{CmdICDeviceID}, buf); err != nil {
		return mjerr.WrapHardware(err, "tps546: read device id")
	}
	return nil
}

func (t *TPS546) writeConfig(ctx context.Context, cfg TPS546Config) error {
	var linear16 Linear16

	voutCmd, err := linear16.FromFloat(cfg.VoutCommand, t.voutMode)
	if err != nil {
		return mjerr.WrapConfig(err, "tps546: encode vout_command")
	}
	voutMin, err := linear16.FromFloat(cfg.VoutMin, t.voutMode)
	if err != nil {
		return mjerr.WrapConfig(err, "tps546: encode vout_min")
	}
	voutMax, err := linear16.FromFloat(cfg.VoutMax, t.voutMode)
	if err != nil {
		return mjerr.WrapConfig(err, "tps546: encode vout_max")
	}
	voutOVFault, err := linear16.FromFloat(cfg.VoutOVFaultLimit, t.voutMode)
	if err != nil {
		return mjerr.WrapConfig(err, "tps546: encode vout_ov_fault_limit")
	}
	voutUVFault, err := linear16.FromFloat(cfg.VoutUVFaultLimit, t.voutMode)
	if err != nil {
		return mjerr.WrapConfig(err, "tps546: encode vout_uv_fault_limit")
	}

	var linear11 Linear11
	ioutOCFault := linear11.FromFloat(cfg.IoutOCFaultLimit)
	otFault := linear11.FromFloat(cfg.OTFaultLimit)

	writes := []struct {
		cmd   byte
		value uint16
	}{
		{CmdVoutCommand, voutCmd},
		{CmdVoutMin, voutMin},
		{CmdVoutMax, voutMax},
		{CmdVoutOVFaultLimit, voutOVFault},
		{CmdVoutUVFaultLimit, voutUVFault},
		{CmdIoutOCFaultLimit, ioutOCFault},
		{CmdOTFaultLimit, otFault},
	}
	for _, w := range writes {
		if err := t.writeWord(ctx, w.cmd, w.value); err != nil {
			return err
		}
	}

	// Fault-response bytes for IOUT overcurrent (0xB7), overtemperature
	// (0xC0), VIN overvoltage (0xFF) and TON_MAX (0x3B). No VOUT OV/UV
	// response byte is written; those keep the part's default response.
	if err := t.writeByte(ctx, CmdIoutOCFaultResponse, 0xB7); err != nil {
		return err
	}
	if err := t.writeByte(ctx, CmdOTFaultResponse, 0xC0); err != nil {
		return err
	}
	if err := t.writeByte(ctx, CmdVinOVFaultResponse, 0xFF); err != nil {
		return err
	}
	return t.writeByte(ctx, CmdTonMaxFaultResponse, 0x3B)
}

// SetVout sets VOUT_COMMAND.
func (t *TPS546) SetVout(ctx context.Context, volts float32) error {
	var l Linear16
	encoded, err := l.FromFloat(volts, t.voutMode)
	if err != nil {
		return mjerr.WrapConfig(err, "tps546: encode vout_command %v", volts)
	}
	return t.writeWord(ctx, CmdVoutCommand, encoded)
}

// GetVout reads READ_VOUT as a typed electric potential.
func (t *TPS546) GetVout(ctx context.Context) (physic.ElectricPotential, error) {
	raw, err := t.readWord(ctx, CmdReadVout)
	if err != nil {
		return 0, err
	}
	var l Linear16
	volts := l.ToFloat(raw, t.voutMode)
	return physic.ElectricPotential(volts * float32(physic.Volt)), nil
}

// GetVin reads READ_VIN as a typed electric potential (SLINEAR11).
func (t *TPS546) GetVin(ctx context.Context) (physic.ElectricPotential, error) {
	raw, err := t.readWord(ctx, CmdReadVin)
	if err != nil {
		return 0, err
	}
	var l Linear11
	volts := l.ToFloat(raw)
	return physic.ElectricPotential(volts * float32(physic.Volt)), nil
}

// GetIout reads READ_IOUT as a typed electric current (SLINEAR11).
func (t *TPS546) GetIout(ctx context.Context) (physic.ElectricCurrent, error) {
	raw, err := t.readWord(ctx, CmdReadIout)
	if err != nil {
		return 0, err
	}
	var l Linear11
	amps := l.ToFloat(raw)
	return physic.ElectricCurrent(amps * float32(physic.Ampere)), nil
}

// GetTemperature reads READ_TEMPERATURE_1 as a typed temperature.
func (t *TPS546) GetTemperature(ctx context.Context) (physic.Temperature, error) {
	raw, err := t.readWord(ctx, CmdReadTemperature1)
	if err != nil {
		return 0, err
	}
	var l Linear11
	celsius := l.ToFloat(raw)
	return physic.Temperature(float32(physic.ZeroCelsius) + celsius*float32(physic.Kelvin)), nil
}

// GetPower returns the instantaneous output power (vout * iout); TPS546
// has no dedicated READ_POUT in this driver's command subset.
func (t *TPS546) GetPower(ctx context.Context) (physic.Power, error) {
	vout, err := t.GetVout(ctx)
	if err != nil {
		return 0, err
	}
	iout, err := t.GetIout(ctx)
	if err != nil {
		return 0, err
	}
	watts := float64(vout) / float64(physic.Volt) * float64(iout) / float64(physic.Ampere)
	return physic.Power(watts * float64(physic.Watt)), nil
}

// FaultSeverity classifies a STATUS_WORD reading.
type FaultSeverity int

const (
	FaultNone FaultSeverity = iota
	FaultWarning
	FaultCritical
)

// CheckStatus reads STATUS_WORD and classifies it.
func (t *TPS546) CheckStatus(ctx context.Context) (FaultSeverity, []string, error) {
	status, err := t.readWord(ctx, CmdStatusWord)
	if err != nil {
		return FaultNone, nil, err
	}
	var d StatusDecoder
	desc := d.DecodeStatusWord(status)
	switch {
	case IsCritical(status):
		return FaultCritical, desc, nil
	case status&^StatusWordNone != 0:
		return FaultWarning, desc, nil
	default:
		return FaultNone, desc, nil
	}
}

// ClearFaults issues CLEAR_FAULTS.
func (t *TPS546) ClearFaults(ctx context.Context) error {
	if err := t.i2c.Write(ctx, TPS546Address, []byte{CmdClearFaults}); err != nil {
		return mjerr.WrapHardware(err, "tps546: clear faults")
	}
	return nil
}

// deviceInitTimeout is a 2s bound for TPS546 bring-up. Init does not apply
// it; the board-init timeout in the backplane bounds bring-up instead.
const deviceInitTimeout = 2 * time.Second
