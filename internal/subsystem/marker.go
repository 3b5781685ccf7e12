package subsystem

import (
	"maxpower/internal/mmio"
	"maxpower/internal/regmap"
)

// Marker is one GPIO output used to bracket the epoch for an external probe.
// Both register values are computed up front so asserting or clearing is a
// single write.
type Marker struct {
	r   mmio.Region
	on  uint32
	off uint32
	pin uint
}

// NewMarker drives pin through the lower masked-output register.
func NewMarker(r mmio.Region, pin uint) *Marker {
	mask := mmio.Field32Write(0, regmap.GPIOMaskedMaskField, 1<<pin)
	return &Marker{
		r:   r,
		on:  mmio.Field32Write(mask, regmap.GPIOMaskedDataField, 1<<pin),
		off: mask,
		pin: pin,
	}
}

// Configure enables the output driver and drives the pin low.
func (m *Marker) Configure() error {
	m.r.Write32(regmap.GPIOMaskedOELowerOffset, m.on)
	m.r.Write32(regmap.GPIOMaskedOutLowerOffset, m.off)
	return nil
}

// Assert drives the marker pin high.
func (m *Marker) Assert() { m.r.Write32(regmap.GPIOMaskedOutLowerOffset, m.on) }

// Clear drives the marker pin low.
func (m *Marker) Clear() { m.r.Write32(regmap.GPIOMaskedOutLowerOffset, m.off) }

// Values returns the precomputed on and off register values.
func (m *Marker) Values() (on, off uint32) { return m.on, m.off }

// Level reads back the pin's output level.
func (m *Marker) Level() bool {
	return mmio.GetBit32(m.r, regmap.GPIODirectOutOffset, m.pin)
}
