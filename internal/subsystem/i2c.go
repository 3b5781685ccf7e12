package subsystem

import (
	"fmt"

	"maxpower/internal/mmio"
	"maxpower/internal/regmap"
)

// I2CConfig sets the bus timing, the two device IDs the host answers to and
// the target address written to.
type I2CConfig struct {
	TargetAddress uint8
	DeviceIDs     [2]uint8
	// Timing holds the TIMING0..4 register values.
	Timing [5]uint32
}

// DefaultI2CTiming is fast-mode-plus timing for a 1us SCL period with a
// 10ns rise/fall time, in peripheral clock cycles.
var DefaultI2CTiming = [5]uint32{
	mmio.Field32Write(mmio.Field32Write(0, regmap.I2CTimingLowField, 50), regmap.I2CTimingHighField, 50),
	mmio.Field32Write(mmio.Field32Write(0, regmap.I2CTimingLowField, 1), regmap.I2CTimingHighField, 1),
	mmio.Field32Write(mmio.Field32Write(0, regmap.I2CTimingLowField, 26), regmap.I2CTimingHighField, 26),
	mmio.Field32Write(mmio.Field32Write(0, regmap.I2CTimingLowField, 1), regmap.I2CTimingHighField, 1),
	mmio.Field32Write(mmio.Field32Write(0, regmap.I2CTimingLowField, 26), regmap.I2CTimingHighField, 26),
}

// I2C drives one I2C host in line-loopback mode. Stage queues a write
// transaction in the format FIFO; the trigger sets ENABLEHOST; the result is
// the data echoed back into the RX FIFO.
type I2C struct {
	id     string
	r      mmio.Region
	cfg    I2CConfig
	staged int
}

var (
	_ Adapter    = (*I2C)(nil)
	_ Configurer = (*I2C)(nil)
)

// NewI2C returns the adapter for one I2C host behind r.
func NewI2C(id string, r mmio.Region, cfg I2CConfig) *I2C {
	return &I2C{id: id, r: r, cfg: cfg}
}

func (c *I2C) ID() string { return c.id }

func (c *I2C) Configure() error {
	if c.cfg.TargetAddress > 0x7f {
		return fmt.Errorf("%s: target address 0x%x is not 7-bit", c.id, c.cfg.TargetAddress)
	}
	for i, t := range c.cfg.Timing {
		c.r.Write32(regmap.I2CTiming0Offset+uint32(4*i), t)
	}
	id := mmio.Field32Write(0, regmap.I2CTargetAddr0Field, uint32(c.cfg.DeviceIDs[0]))
	id = mmio.Field32Write(id, regmap.I2CTargetMask0Field, 0x7f)
	id = mmio.Field32Write(id, regmap.I2CTargetAddr1Field, uint32(c.cfg.DeviceIDs[1]))
	id = mmio.Field32Write(id, regmap.I2CTargetMask1Field, 0x7f)
	c.r.Write32(regmap.I2CTargetIDOffset, id)

	reset := mmio.Bit32Write(0, regmap.I2CFifoCtrlRxRstBit, true)
	reset = mmio.Bit32Write(reset, regmap.I2CFifoCtrlFmtRstBit, true)
	c.r.Write32(regmap.I2CFifoCtrlOffset, reset)
	c.r.Write32(regmap.I2CCtrlOffset, mmio.Bit32Write(0, regmap.I2CCtrlLineLoopbackBit, true))
	return nil
}

// Stage queues START + address, then data with STOP on the last byte. The
// address entry takes one FIFO slot.
func (c *I2C) Stage(data []byte) error {
	if capacity := regmap.I2CFifoDepth - 1; len(data) > capacity {
		return capacityError(c.id, len(data), capacity)
	}
	if len(data) == 0 {
		return fmt.Errorf("%s: empty transfer", c.id)
	}
	if mmio.Field32Read(c.r.Read32(regmap.I2CHostFifoStatusOffset), regmap.I2CFmtLevelField) != 0 {
		return fmt.Errorf("%s: format FIFO is not empty", c.id)
	}
	addr := mmio.Field32Write(0, regmap.I2CFdataByteField, uint32(c.cfg.TargetAddress)<<1)
	c.r.Write32(regmap.I2CFdataOffset, mmio.Bit32Write(addr, regmap.I2CFdataStartBit, true))
	for i, b := range data {
		entry := mmio.Field32Write(0, regmap.I2CFdataByteField, uint32(b))
		entry = mmio.Bit32Write(entry, regmap.I2CFdataStopBit, i == len(data)-1)
		c.r.Write32(regmap.I2CFdataOffset, entry)
	}
	c.staged = len(data)
	return nil
}

func (c *I2C) PrepareTrigger() (TriggerCommand, error) {
	ctrl := c.r.Read32(regmap.I2CCtrlOffset)
	return TriggerCommand{
		Subsystem: c.id,
		Region:    c.r,
		Offset:    regmap.I2CCtrlOffset,
		Value:     mmio.Bit32Write(ctrl, regmap.I2CCtrlEnableHostBit, true),
	}, nil
}

// IsIdle reports the host state machine idle.
func (c *I2C) IsIdle() bool {
	return mmio.GetBit32(c.r, regmap.I2CStatusOffset, regmap.I2CStatusHostIdleBit)
}

// IsDone reports the format FIFO drained and every byte echoed back.
func (c *I2C) IsDone() bool {
	status := c.r.Read32(regmap.I2CStatusOffset)
	if !mmio.Bit32Read(status, regmap.I2CStatusFmtEmptyBit) || !mmio.Bit32Read(status, regmap.I2CStatusHostIdleBit) {
		return false
	}
	levels := c.r.Read32(regmap.I2CHostFifoStatusOffset)
	return int(mmio.Field32Read(levels, regmap.I2CRxLevelField)) >= c.staged
}

func (c *I2C) ReadResult() (Result, error) {
	if !c.IsDone() {
		return nil, notDone(c.id)
	}
	out := make(Result, c.staged)
	for i := range out {
		out[i] = byte(c.r.Read32(regmap.I2CRdataOffset))
	}
	return out, nil
}
