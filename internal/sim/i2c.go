package sim

import (
	"time"

	"maxpower/internal/mmio"
	"maxpower/internal/regmap"
)

// i2cDevice is an I2C host. Format entries queue until ENABLEHOST is set; the
// queue drains when the transfer completes. With line loopback enabled the
// written data bytes are echoed into the RX FIFO.
type i2cDevice struct {
	act activity

	ctrl     uint32
	targetID uint32
	timing   [5]uint32
	fmt      []uint32
	rx       []byte
	draining bool
}

func (d *i2cDevice) Name() string { return d.act.name }

func (d *i2cDevice) settle(now time.Duration) {
	if d.draining && d.act.finished(now) {
		d.draining = false
		if mmio.Bit32Read(d.ctrl, regmap.I2CCtrlLineLoopbackBit) {
			for _, entry := range d.fmt {
				if mmio.Bit32Read(entry, regmap.I2CFdataStartBit) || mmio.Bit32Read(entry, regmap.I2CFdataReadBit) {
					continue
				}
				if len(d.rx) < regmap.I2CFifoDepth {
					d.rx = append(d.rx, byte(mmio.Field32Read(entry, regmap.I2CFdataByteField)))
				}
			}
		}
		d.fmt = d.fmt[:0]
	}
}

func (d *i2cDevice) Read32(offset uint32, now time.Duration) uint32 {
	d.settle(now)
	switch {
	case offset == regmap.I2CCtrlOffset:
		return d.ctrl
	case offset == regmap.I2CStatusOffset:
		return bit(len(d.fmt) >= regmap.I2CFifoDepth, regmap.I2CStatusFmtFullBit) |
			bit(len(d.fmt) == 0, regmap.I2CStatusFmtEmptyBit) |
			bit(!d.act.running(now), regmap.I2CStatusHostIdleBit) |
			bit(len(d.rx) == 0, regmap.I2CStatusRxEmptyBit)
	case offset == regmap.I2CHostFifoStatusOffset:
		reg := mmio.Field32Write(0, regmap.I2CFmtLevelField, uint32(len(d.fmt)))
		return mmio.Field32Write(reg, regmap.I2CRxLevelField, uint32(len(d.rx)))
	case offset == regmap.I2CRdataOffset:
		if len(d.rx) == 0 {
			return 0
		}
		b := d.rx[0]
		d.rx = d.rx[1:]
		return uint32(b)
	case offset == regmap.I2CTargetIDOffset:
		return d.targetID
	case inWords(offset, regmap.I2CTiming0Offset, len(d.timing)):
		return d.timing[wordIndex(offset, regmap.I2CTiming0Offset)]
	}
	return 0
}

func (d *i2cDevice) Write32(offset uint32, value uint32, now time.Duration) {
	d.settle(now)
	switch {
	case offset == regmap.I2CCtrlOffset:
		wasHost := mmio.Bit32Read(d.ctrl, regmap.I2CCtrlEnableHostBit)
		d.ctrl = value
		if !wasHost && mmio.Bit32Read(value, regmap.I2CCtrlEnableHostBit) &&
			len(d.fmt) > 0 && !d.act.running(now) {
			d.draining = true
			d.act.start(now)
		}
	case offset == regmap.I2CFdataOffset:
		if len(d.fmt) < regmap.I2CFifoDepth {
			d.fmt = append(d.fmt, value)
		}
	case offset == regmap.I2CFifoCtrlOffset:
		if mmio.Bit32Read(value, regmap.I2CFifoCtrlRxRstBit) {
			d.rx = d.rx[:0]
		}
		if mmio.Bit32Read(value, regmap.I2CFifoCtrlFmtRstBit) && !d.draining {
			d.fmt = d.fmt[:0]
		}
	case offset == regmap.I2CTargetIDOffset:
		d.targetID = value
	case inWords(offset, regmap.I2CTiming0Offset, len(d.timing)):
		d.timing[wordIndex(offset, regmap.I2CTiming0Offset)] = value
	}
}

func (d *i2cDevice) Write8(offset uint32, value uint8, now time.Duration) {
	d.Write32(offset, uint32(value), now)
}
