package sim

import (
	"time"

	"maxpower/internal/mmio"
	"maxpower/internal/regmap"
)

// spiHostDevice is a SPI host. A queued command segment is held until both
// SPIEN and OUTPUT_EN are set, then the TX FIFO drains over the segment.
type spiHostDevice struct {
	act activity

	control    uint32
	configOpts uint32
	csid       uint32
	command    uint32
	queued     bool
	tx         []uint32
}

func (d *spiHostDevice) Name() string { return d.act.name }

func (d *spiHostDevice) settle(now time.Duration) {
	if d.queued && d.act.finished(now) {
		n := (int(mmio.Field32Read(d.command, regmap.SPIHostCommandLenField)) + 1 + 3) / 4
		if n > len(d.tx) {
			n = len(d.tx)
		}
		d.tx = d.tx[n:]
		d.queued = false
	}
}

func (d *spiHostDevice) enabled() bool {
	return mmio.Bit32Read(d.control, regmap.SPIHostControlSPIEnBit) &&
		mmio.Bit32Read(d.control, regmap.SPIHostControlOutputEnBit)
}

func (d *spiHostDevice) Read32(offset uint32, now time.Duration) uint32 {
	d.settle(now)
	switch offset {
	case regmap.SPIHostControlOffset:
		return d.control
	case regmap.SPIHostStatusOffset:
		running := d.act.running(now)
		reg := bit(!running, regmap.SPIHostStatusReadyBit) |
			bit(running, regmap.SPIHostStatusActiveBit) |
			bit(len(d.tx) >= regmap.SPIHostTxDepth, regmap.SPIHostStatusTxFullBit) |
			bit(len(d.tx) == 0, regmap.SPIHostStatusTxEmptyBit)
		return mmio.Field32Write(reg, regmap.SPIHostStatusTxQDField, uint32(len(d.tx)))
	case regmap.SPIHostConfigOptsOffset:
		return d.configOpts
	case regmap.SPIHostCSIDOffset:
		return d.csid
	}
	return 0
}

func (d *spiHostDevice) Write32(offset uint32, value uint32, now time.Duration) {
	d.settle(now)
	switch offset {
	case regmap.SPIHostControlOffset:
		if mmio.Bit32Read(value, regmap.SPIHostControlSwRstBit) {
			d.tx = d.tx[:0]
			d.queued = false
			d.act.reset()
		}
		wasEnabled := d.enabled()
		d.control = value
		if !wasEnabled && d.enabled() && d.queued && !d.act.running(now) {
			d.act.start(now)
		}
	case regmap.SPIHostConfigOptsOffset:
		d.configOpts = value
	case regmap.SPIHostCSIDOffset:
		d.csid = value
	case regmap.SPIHostCommandOffset:
		if d.queued {
			return
		}
		d.command = value
		d.queued = true
		if d.enabled() && !d.act.running(now) {
			d.act.start(now)
		}
	case regmap.SPIHostTxDataOffset:
		if len(d.tx) < regmap.SPIHostTxDepth {
			d.tx = append(d.tx, value)
		}
	}
}

func (d *spiHostDevice) Write8(offset uint32, value uint8, now time.Duration) {
	d.Write32(offset, uint32(value), now)
}
