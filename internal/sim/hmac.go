package sim

import (
	"crypto/hmac"
	"crypto/sha256"
	"time"

	"maxpower/internal/mmio"
	"maxpower/internal/regmap"
)

// hmacDevice hashes the message window with SHA-256, keyed when HMAC mode is
// enabled. Key and digest registers hold raw bytes in little-endian words.
type hmacDevice struct {
	act activity

	cfg     uint32
	key     [regmap.HMACKeyWords]uint32
	msg     []byte
	digest  [regmap.HMACDigestWords]uint32
	overrun bool
	intr    uint32
}

func (d *hmacDevice) Name() string { return d.act.name }

func (d *hmacDevice) Read32(offset uint32, now time.Duration) uint32 {
	done := d.act.finished(now)
	if done {
		d.intr |= 1 << regmap.HMACIntrDoneBit
	}
	switch {
	case offset == regmap.HMACIntrStateOffset:
		return d.intr | bit(d.overrun, regmap.HMACIntrErrBit)
	case offset == regmap.HMACCfgOffset:
		return d.cfg
	case offset == regmap.HMACCmdOffset:
		return 0
	case offset == regmap.HMACStatusOffset:
		return bit(len(d.msg) == 0, regmap.HMACStatusFifoEmptyBit) |
			bit(len(d.msg) >= regmap.HMACMsgBufferBytes, regmap.HMACStatusFifoFullBit) |
			bit(!d.act.running(now), regmap.HMACStatusIdleBit)
	case offset == regmap.HMACMsgLengthLowerOffset:
		return uint32(uint64(len(d.msg)) * 8)
	case offset == regmap.HMACMsgLengthUpperOffset:
		return uint32((uint64(len(d.msg)) * 8) >> 32)
	case inWords(offset, regmap.HMACDigestOffset, regmap.HMACDigestWords):
		if !done {
			return 0
		}
		return d.digest[wordIndex(offset, regmap.HMACDigestOffset)]
	}
	return 0
}

func (d *hmacDevice) Write32(offset uint32, value uint32, now time.Duration) {
	switch {
	case offset == regmap.HMACIntrStateOffset:
		d.intr &^= value
	case offset == regmap.HMACCfgOffset:
		d.cfg = value
	case inWords(offset, regmap.HMACKeyOffset, regmap.HMACKeyWords):
		d.key[wordIndex(offset, regmap.HMACKeyOffset)] = value
	case offset == regmap.HMACMsgFifoOffset:
		d.push(mmio.WordsToBytes([]uint32{value}))
	case offset == regmap.HMACCmdOffset:
		if mmio.Bit32Read(value, regmap.HMACCmdHashStartBit) {
			d.msg = d.msg[:0]
			d.overrun = false
			d.intr = 0
			d.act.reset()
		}
		if mmio.Bit32Read(value, regmap.HMACCmdHashProcessBit) && !d.act.running(now) {
			d.compute()
			d.act.start(now)
		}
	}
}

func (d *hmacDevice) Write8(offset uint32, value uint8, now time.Duration) {
	if offset == regmap.HMACMsgFifoOffset {
		d.push([]byte{value})
		return
	}
	d.Write32(offset, uint32(value), now)
}

func (d *hmacDevice) push(b []byte) {
	if len(d.msg)+len(b) > regmap.HMACMsgBufferBytes {
		d.overrun = true
		return
	}
	d.msg = append(d.msg, b...)
}

func (d *hmacDevice) compute() {
	var sum []byte
	if mmio.Bit32Read(d.cfg, regmap.HMACCfgHMACEnBit) {
		mac := hmac.New(sha256.New, mmio.WordsToBytes(d.key[:]))
		mac.Write(d.msg)
		sum = mac.Sum(nil)
	} else {
		s := sha256.Sum256(d.msg)
		sum = s[:]
	}
	copy(d.digest[:], mmio.BytesToWords(sum))
}
