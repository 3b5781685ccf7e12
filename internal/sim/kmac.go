package sim

import (
	"time"

	"golang.org/x/crypto/sha3"

	"maxpower/internal/mmio"
	"maxpower/internal/regmap"
)

const kmacRate256 = 136

// kmacDevice is a cSHAKE256/KMAC256 engine driven by START, PROCESS and DONE
// commands. The prefix registers carry encode_string(N) || encode_string(S);
// the digest is exposed as two XOR shares in the state window.
type kmacDevice struct {
	act activity

	cfg       uint32
	keyShare0 [regmap.KMACKeyWords]uint32
	keyShare1 [regmap.KMACKeyWords]uint32
	keyLen    uint32
	prefix    [regmap.KMACPrefixWords]uint32

	absorbing bool
	overrun   bool
	msg       []byte
	state     [regmap.KMACStateBytes]byte
	mask      [regmap.KMACStateBytes]byte
}

func (d *kmacDevice) Name() string { return d.act.name }

func (d *kmacDevice) Read32(offset uint32, now time.Duration) uint32 {
	switch {
	case offset == regmap.KMACCfgOffset:
		return d.cfg
	case offset == regmap.KMACStatusOffset:
		squeeze := d.act.finished(now)
		quiet := !d.act.started && !d.act.running(now)
		return bit(!d.absorbing && quiet, regmap.KMACStatusIdleBit) |
			bit(d.absorbing && quiet, regmap.KMACStatusAbsorbBit) |
			bit(squeeze, regmap.KMACStatusSqueezeBit)
	case offset >= regmap.KMACStateOffset && offset < regmap.KMACStateOffset+2*regmap.KMACStateShareOffset:
		if !d.act.finished(now) {
			return 0
		}
		rel := int(offset - regmap.KMACStateOffset)
		src := d.mask[:]
		if rel < regmap.KMACStateShareOffset {
			src = d.maskedState()
		} else {
			rel -= regmap.KMACStateShareOffset
		}
		if rel+4 > regmap.KMACStateBytes {
			return 0
		}
		return mmio.BytesToWords(src[rel : rel+4])[0]
	}
	return 0
}

func (d *kmacDevice) Write32(offset uint32, value uint32, now time.Duration) {
	switch {
	case offset == regmap.KMACCfgOffset:
		d.cfg = value
	case offset == regmap.KMACKeyLenOffset:
		d.keyLen = value
	case inWords(offset, regmap.KMACKeyShare0Offset, regmap.KMACKeyWords):
		d.keyShare0[wordIndex(offset, regmap.KMACKeyShare0Offset)] = value
	case inWords(offset, regmap.KMACKeyShare1Offset, regmap.KMACKeyWords):
		d.keyShare1[wordIndex(offset, regmap.KMACKeyShare1Offset)] = value
	case inWords(offset, regmap.KMACPrefixOffset, regmap.KMACPrefixWords):
		d.prefix[wordIndex(offset, regmap.KMACPrefixOffset)] = value
	case offset == regmap.KMACMsgFifoOffset:
		d.absorb(mmio.WordsToBytes([]uint32{value}))
	case offset == regmap.KMACCmdOffset:
		d.command(mmio.Field32Read(value, regmap.KMACCmdField), now)
	}
}

func (d *kmacDevice) Write8(offset uint32, value uint8, now time.Duration) {
	if offset == regmap.KMACMsgFifoOffset {
		d.absorb([]byte{value})
		return
	}
	d.Write32(offset, uint32(value), now)
}

func (d *kmacDevice) command(cmd uint32, now time.Duration) {
	switch cmd {
	case regmap.KMACCmdStart:
		if d.absorbing || d.act.started {
			return
		}
		d.absorbing = true
		d.overrun = false
		d.msg = d.msg[:0]
	case regmap.KMACCmdProcess:
		if !d.absorbing || d.act.started {
			return
		}
		d.squeeze()
		d.absorbing = false
		d.act.start(now)
	case regmap.KMACCmdDone:
		d.absorbing = false
		d.msg = d.msg[:0]
		d.state = [regmap.KMACStateBytes]byte{}
		d.act.reset()
	}
}

func (d *kmacDevice) absorb(b []byte) {
	if !d.absorbing {
		return
	}
	if len(d.msg)+len(b) > regmap.KMACMsgBufferBytes {
		d.overrun = true
		return
	}
	d.msg = append(d.msg, b...)
}

// squeeze computes one rate block of output. Only 256-bit strength cSHAKE is
// modeled; other configurations leave the state zeroed.
func (d *kmacDevice) squeeze() {
	d.state = [regmap.KMACStateBytes]byte{}
	if d.overrun ||
		mmio.Field32Read(d.cfg, regmap.KMACCfgStrengthField) != regmap.KMACStrength256 ||
		mmio.Field32Read(d.cfg, regmap.KMACCfgModeField) != regmap.KMACModeCSHAKE {
		return
	}
	n, s, ok := decodePrefix(mmio.WordsToBytes(d.prefix[:]))
	if !ok {
		return
	}
	h := sha3.NewCShake256(n, s)
	if mmio.Bit32Read(d.cfg, regmap.KMACCfgKMACEnBit) {
		if d.keyLen != regmap.KMACKeyLen256 {
			return
		}
		key := make([]uint32, 8)
		for i := range key {
			key[i] = d.keyShare0[i] ^ d.keyShare1[i]
		}
		h.Write(bytepad(encodeString(mmio.WordsToBytes(key)), kmacRate256))
	}
	h.Write(d.msg)
	h.Read(d.state[:kmacRate256])
	for i := range d.mask {
		d.mask[i] = byte(0x5a ^ (i * 29))
	}
}

func (d *kmacDevice) maskedState() []byte {
	out := make([]byte, regmap.KMACStateBytes)
	for i := range out {
		out[i] = d.state[i] ^ d.mask[i]
	}
	return out
}

// decodePrefix splits left_encode(len(N)) || N || left_encode(len(S)) || S.
func decodePrefix(p []byte) (n, s []byte, ok bool) {
	n, rest, ok := decodeString(p)
	if !ok {
		return nil, nil, false
	}
	s, _, ok = decodeString(rest)
	return n, s, ok
}

func decodeString(p []byte) (str, rest []byte, ok bool) {
	if len(p) < 1 {
		return nil, nil, false
	}
	k := int(p[0])
	if k < 1 || k > 2 || len(p) < 1+k {
		return nil, nil, false
	}
	bits := 0
	for _, b := range p[1 : 1+k] {
		bits = bits<<8 | int(b)
	}
	if bits%8 != 0 || len(p) < 1+k+bits/8 {
		return nil, nil, false
	}
	start := 1 + k
	return p[start : start+bits/8], p[start+bits/8:], true
}

func leftEncode(x uint64) []byte {
	n := 1
	for v := x >> 8; v > 0; v >>= 8 {
		n++
	}
	out := make([]byte, n+1)
	out[0] = byte(n)
	for i := n; i >= 1; i-- {
		out[i] = byte(x)
		x >>= 8
	}
	return out
}

func encodeString(s []byte) []byte {
	return append(leftEncode(uint64(len(s))*8), s...)
}

func bytepad(x []byte, w int) []byte {
	out := append(leftEncode(uint64(w)), x...)
	for len(out)%w != 0 {
		out = append(out, 0)
	}
	return out
}
