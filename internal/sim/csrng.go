package sim

import (
	"time"

	"maxpower/internal/mmio"
	"maxpower/internal/regmap"
)

// CSRNG command status codes reported in SW_CMD_STS.
const (
	csrngStsSuccess     = 0
	csrngStsInvalidACmd = 1
	csrngStsInvalidSeq  = 3
)

// csrngDevice accepts one application command at a time on its software port.
// Reseed and generate are rejected until an instantiate has completed.
type csrngDevice struct {
	act activity

	ctrl         uint32
	acmd         uint32
	instantiated bool
	sts          uint32
	settled      bool
}

func (d *csrngDevice) Name() string { return d.act.name }

func (d *csrngDevice) settle(now time.Duration) {
	if d.settled || !d.act.finished(now) {
		return
	}
	d.settled = true
	switch d.acmd {
	case regmap.CSRNGCmdInstantiate:
		d.instantiated = true
		d.sts = csrngStsSuccess
	case regmap.CSRNGCmdReseed, regmap.CSRNGCmdGenerate:
		if d.instantiated {
			d.sts = csrngStsSuccess
		} else {
			d.sts = csrngStsInvalidSeq
		}
	default:
		d.sts = csrngStsInvalidACmd
	}
}

func (d *csrngDevice) Read32(offset uint32, now time.Duration) uint32 {
	d.settle(now)
	switch offset {
	case regmap.CSRNGCtrlOffset:
		return d.ctrl
	case regmap.CSRNGSwCmdStsOffset:
		reg := bit(!d.act.running(now), regmap.CSRNGSwCmdStsRdyBit) |
			bit(d.settled, regmap.CSRNGSwCmdStsAckBit)
		return mmio.Field32Write(reg, regmap.CSRNGSwCmdStsField, d.sts)
	}
	return 0
}

func (d *csrngDevice) Write32(offset uint32, value uint32, now time.Duration) {
	d.settle(now)
	switch offset {
	case regmap.CSRNGCtrlOffset:
		d.ctrl = value
	case regmap.CSRNGCmdReqOffset:
		if d.act.running(now) {
			return
		}
		d.acmd = mmio.Field32Read(value, regmap.CSRNGCmdACmdField)
		d.sts = csrngStsSuccess
		d.settled = false
		d.act.start(now)
	}
}

func (d *csrngDevice) Write8(offset uint32, value uint8, now time.Duration) {
	d.Write32(offset, uint32(value), now)
}
