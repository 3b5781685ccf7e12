package sim

import (
	"math/big"
	"time"

	"maxpower/internal/mmio"
	"maxpower/internal/regmap"
)

const verifierDmemBytes = regmap.VerifierDmemResult + 4*regmap.VerifierMaxWords

// verifierDevice runs a fixed modexp program over its data memory:
// result = signature ^ exponent mod modulus, with every operand stored as a
// little-endian integer. Data memory reads as zero while the program runs.
type verifierDevice struct {
	act activity

	dmem [verifierDmemBytes / 4]uint32
	intr uint32
}

func (d *verifierDevice) Name() string { return d.act.name }

func (d *verifierDevice) Read32(offset uint32, now time.Duration) uint32 {
	running := d.act.running(now)
	if d.act.finished(now) {
		d.intr |= 1 << regmap.VerifierIntrDoneBit
	}
	switch {
	case offset == regmap.VerifierIntrStateOffset:
		return d.intr
	case offset == regmap.VerifierStatusOffset:
		if running {
			return regmap.VerifierStatusBusyExecute
		}
		return regmap.VerifierStatusIdle
	case offset == regmap.VerifierErrBitsOffset:
		return 0
	case inWords(offset, regmap.VerifierDmemOffset, len(d.dmem)):
		if running {
			return 0
		}
		return d.dmem[wordIndex(offset, regmap.VerifierDmemOffset)]
	}
	return 0
}

func (d *verifierDevice) Write32(offset uint32, value uint32, now time.Duration) {
	running := d.act.running(now)
	switch {
	case offset == regmap.VerifierIntrStateOffset:
		d.intr &^= value
	case inWords(offset, regmap.VerifierDmemOffset, len(d.dmem)):
		if !running {
			d.dmem[wordIndex(offset, regmap.VerifierDmemOffset)] = value
		}
	case offset == regmap.VerifierCmdOffset:
		if value == regmap.VerifierCmdExecute && !running {
			d.intr = 0
			d.execute()
			d.act.start(now)
		}
	}
}

func (d *verifierDevice) Write8(offset uint32, value uint8, now time.Duration) {
	d.Write32(offset, uint32(value), now)
}

func (d *verifierDevice) execute() {
	e := d.operand(regmap.VerifierDmemExponent, (regmap.VerifierDmemModulus-regmap.VerifierDmemExponent)/4)
	n := d.operand(regmap.VerifierDmemModulus, regmap.VerifierMaxWords)
	s := d.operand(regmap.VerifierDmemSignature, regmap.VerifierMaxWords)

	out := make([]uint32, regmap.VerifierMaxWords)
	if n.Sign() > 0 {
		r := new(big.Int).Exp(s, e, n)
		copy(out, mmio.BytesToWords(reverse(r.Bytes())))
	}
	copy(d.dmem[regmap.VerifierDmemResult/4:], out)
}

func (d *verifierDevice) operand(byteOffset, words int) *big.Int {
	start := byteOffset / 4
	b := mmio.WordsToBytes(d.dmem[start : start+words])
	return new(big.Int).SetBytes(reverse(b))
}

func reverse(b []byte) []byte {
	out := make([]byte, len(b))
	for i, v := range b {
		out[len(b)-1-i] = v
	}
	return out
}
