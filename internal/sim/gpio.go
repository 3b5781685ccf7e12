package sim

import (
	"time"

	"maxpower/internal/mmio"
	"maxpower/internal/regmap"
)

// gpioDevice models the lower 16 pins of a GPIO block.
type gpioDevice struct {
	name string
	out  uint32
	oe   uint32
}

func (d *gpioDevice) Name() string { return d.name }

func (d *gpioDevice) Read32(offset uint32, _ time.Duration) uint32 {
	switch offset {
	case regmap.GPIODirectOutOffset:
		return d.out
	case regmap.GPIODirectOEOffset:
		return d.oe
	}
	return 0
}

func (d *gpioDevice) Write32(offset uint32, value uint32, _ time.Duration) {
	switch offset {
	case regmap.GPIODirectOutOffset:
		d.out = value
	case regmap.GPIODirectOEOffset:
		d.oe = value
	case regmap.GPIOMaskedOutLowerOffset:
		d.out = masked(d.out, value)
	case regmap.GPIOMaskedOELowerOffset:
		d.oe = masked(d.oe, value)
	}
}

func (d *gpioDevice) Write8(offset uint32, value uint8, now time.Duration) {
	d.Write32(offset, uint32(value), now)
}

func masked(cur, reg uint32) uint32 {
	mask := mmio.Field32Read(reg, regmap.GPIOMaskedMaskField)
	data := mmio.Field32Read(reg, regmap.GPIOMaskedDataField)
	return cur&^mask | data&mask
}
