package subsystem

import (
	"fmt"

	"maxpower/internal/mmio"
	"maxpower/internal/regmap"
)

// CSRNG drives the entropy engine's software command port. Configure enables
// the engine, instantiates it and prebuilds the reseed header that becomes the
// trigger. The result is the command status byte.
type CSRNG struct {
	id     string
	r      mmio.Region
	poller Poller
	reseed uint32
}

var (
	_ Adapter    = (*CSRNG)(nil)
	_ Configurer = (*CSRNG)(nil)
)

// NewCSRNG returns the adapter for the entropy engine behind r.
func NewCSRNG(id string, r mmio.Region, poller Poller) *CSRNG {
	return &CSRNG{id: id, r: r, poller: poller}
}

func (c *CSRNG) ID() string { return c.id }

func (c *CSRNG) Configure() error {
	c.r.Write32(regmap.CSRNGCtrlOffset, regmap.MultiBitBool4True)
	if err := c.poller.Until(c.IsIdle); err != nil {
		return fmt.Errorf("%s: waiting for command ready: %w", c.id, err)
	}
	c.r.Write32(regmap.CSRNGCmdReqOffset, commandHeader(regmap.CSRNGCmdInstantiate))
	if err := c.poller.Until(c.IsDone); err != nil {
		return fmt.Errorf("%s: instantiate: %w", c.id, err)
	}
	if sts := c.status(); sts != 0 {
		return fmt.Errorf("%s: instantiate failed with status %d", c.id, sts)
	}
	c.reseed = commandHeader(regmap.CSRNGCmdReseed)
	return nil
}

// commandHeader builds an application command with no additional data and
// the entropy-source flag left enabled.
func commandHeader(acmd uint32) uint32 {
	h := mmio.Field32Write(0, regmap.CSRNGCmdACmdField, acmd)
	h = mmio.Field32Write(h, regmap.CSRNGCmdCLenField, 0)
	h = mmio.Field32Write(h, regmap.CSRNGCmdFlag0Field, regmap.MultiBitBool4False)
	return mmio.Field32Write(h, regmap.CSRNGCmdGLenField, 0)
}

// Stage accepts no data; the command header was built during Configure.
func (c *CSRNG) Stage(data []byte) error {
	if len(data) > 0 {
		return capacityError(c.id, len(data), 0)
	}
	if c.reseed == 0 {
		return fmt.Errorf("%s: not configured", c.id)
	}
	return nil
}

func (c *CSRNG) PrepareTrigger() (TriggerCommand, error) {
	if c.reseed == 0 {
		return TriggerCommand{}, fmt.Errorf("%s: not configured", c.id)
	}
	return TriggerCommand{
		Subsystem: c.id,
		Region:    c.r,
		Offset:    regmap.CSRNGCmdReqOffset,
		Value:     c.reseed,
	}, nil
}

// IsIdle reports the command interface ready.
func (c *CSRNG) IsIdle() bool {
	return mmio.GetBit32(c.r, regmap.CSRNGSwCmdStsOffset, regmap.CSRNGSwCmdStsRdyBit)
}

// IsDone reports the reseed command acknowledged with the interface ready again.
func (c *CSRNG) IsDone() bool {
	sts := c.r.Read32(regmap.CSRNGSwCmdStsOffset)
	return mmio.Bit32Read(sts, regmap.CSRNGSwCmdStsAckBit) && mmio.Bit32Read(sts, regmap.CSRNGSwCmdStsRdyBit)
}

func (c *CSRNG) status() uint32 {
	return mmio.Field32Read(c.r.Read32(regmap.CSRNGSwCmdStsOffset), regmap.CSRNGSwCmdStsField)
}

func (c *CSRNG) ReadResult() (Result, error) {
	if !c.IsDone() {
		return nil, notDone(c.id)
	}
	return Result{byte(c.status())}, nil
}
