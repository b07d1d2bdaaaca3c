// Package usb discovers and opens USB ASIC boards using gousb.
package usb

import (
	"fmt"
	"time"

	"github.com/google/gousb"

	"github.com/jbride/mujina/internal/mjerr"
)

// Descriptor identifies a connected USB device by bus/address and its
// VID/PID, enough for the board registry to match against a
// BoardDescriptor (see internal/board).
type Descriptor struct {
	VendorID  gousb.ID
	ProductID gousb.ID
	Bus       int
	Address   int
	Path      string // stable-ish identifier: "bus:address"
}

func (d Descriptor) String() string {
	return fmt.Sprintf("usb %04x:%04x @ %s", d.VendorID, d.ProductID, d.Path)
}

// Enumerate lists every currently connected USB device as a Descriptor.
// Nothing in the daemon calls it; the backplane does not enumerate USB.
func Enumerate(ctx *gousb.Context) ([]Descriptor, error) {
	var out []Descriptor
	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		out = append(out, Descriptor{
			VendorID:  desc.Vendor,
			ProductID: desc.Product,
			Bus:       desc.Bus,
			Address:   desc.Address,
			Path:      fmt.Sprintf("%d:%d", desc.Bus, desc.Address),
		})
		return false // never actually open here, just inspect descriptors
	})
	for _, d := range devs {
		d.Close()
	}
	if err != nil {
		return nil, mjerr.WrapIo(err, "usb: enumerate devices")
	}
	return out, nil
}

// Device is an opened USB board, exposing its single bulk OUT/IN endpoint
// pair as a transport.Stream-compatible pair of Read/Write methods.
type Device struct {
	ctx    *gousb.Context
	dev    *gousb.Device
	config *gousb.Config
	intf   *gousb.Interface
	epOut  *gousb.OutEndpoint
	epIn   *gousb.InEndpoint
}

// Open claims interface 0 alt-setting 0 of the device at vid:pid and opens
// its bulk OUT (0x01) / IN (0x81) endpoints, following the same
// claim-then-open-endpoints sequence as the Bitmain USB driver this is
// grounded on.
func Open(vid, pid gousb.ID) (*Device, error) {
	ctx := gousb.NewContext()
	dev, err := ctx.OpenDeviceWithVIDPID(vid, pid)
	if err != nil {
		ctx.Close()
		return nil, mjerr.WrapHardware(err, "usb: open device %04x:%04x", vid, pid)
	}
	if dev == nil {
		ctx.Close()
		return nil, mjerr.HardwareErr("usb: device %04x:%04x not found", vid, pid)
	}

	if err := dev.SetAutoDetach(true); err != nil {
		dev.Close()
		ctx.Close()
		return nil, mjerr.WrapHardware(err, "usb: set auto detach")
	}

	cfg, err := dev.Config(1)
	if err != nil {
		dev.Close()
		ctx.Close()
		return nil, mjerr.WrapHardware(err, "usb: claim config 1")
	}

	intf, err := cfg.Interface(0, 0)
	if err != nil {
		cfg.Close()
		dev.Close()
		ctx.Close()
		return nil, mjerr.WrapHardware(err, "usb: claim interface 0,0")
	}

	epOut, err := intf.OutEndpoint(0x01)
	if err != nil {
		intf.Close()
		cfg.Close()
		dev.Close()
		ctx.Close()
		return nil, mjerr.WrapHardware(err, "usb: open out endpoint 0x01")
	}
	epIn, err := intf.InEndpoint(0x81)
	if err != nil {
		intf.Close()
		cfg.Close()
		dev.Close()
		ctx.Close()
		return nil, mjerr.WrapHardware(err, "usb: open in endpoint 0x81")
	}

	return &Device{ctx: ctx, dev: dev, config: cfg, intf: intf, epOut: epOut, epIn: epIn}, nil
}

func (d *Device) Write(p []byte) (int, error) {
	n, err := d.epOut.Write(p)
	if err != nil {
		return n, mjerr.WrapIo(err, "usb: bulk write")
	}
	return n, nil
}

func (d *Device) Read(p []byte) (int, error) {
	n, err := d.epIn.Read(p)
	if err != nil {
		return n, mjerr.WrapIo(err, "usb: bulk read")
	}
	return n, nil
}

func (d *Device) Close() error {
	d.intf.Close()
	d.config.Close()
	err := d.dev.Close()
	d.ctx.Close()
	return err
}

// pollInterval is a USB re-enumeration period for polling-based hotplug
// detection. The backplane does not poll USB and does not read it.
const pollInterval = 1 * time.Second

// PollInterval returns pollInterval.
func PollInterval() time.Duration { return pollInterval }
