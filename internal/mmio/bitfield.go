package mmio

// Field32 is a contiguous bit field within a 32-bit register.
type Field32 struct {
	Mask  uint32
	Index uint
}

// Bit32Write returns reg with bit set to value.
func Bit32Write(reg uint32, bit uint, value bool) uint32 {
	reg &^= 1 << bit
	if value {
		reg |= 1 << bit
	}
	return reg
}

// Bit32Read reports whether bit is set in reg.
func Bit32Read(reg uint32, bit uint) bool {
	return reg&(1<<bit) != 0
}

// Field32Write returns reg with field replaced by value. Bits of value outside
// the field mask are discarded.
func Field32Write(reg uint32, field Field32, value uint32) uint32 {
	reg &^= field.Mask << field.Index
	return reg | (value&field.Mask)<<field.Index
}

// Field32Read extracts field from reg.
func Field32Read(reg uint32, field Field32) uint32 {
	return (reg >> field.Index) & field.Mask
}
