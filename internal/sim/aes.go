package sim

import (
	"crypto/aes"
	"time"

	"maxpower/internal/mmio"
	"maxpower/internal/regmap"
)

// aesDevice is an AES engine in manual-trigger mode. Only CBC encryption with
// a 256-bit software key is modeled; any other configuration produces zeros.
type aesDevice struct {
	act activity

	ctrl      uint32
	keyShare0 [regmap.AESKeyWords]uint32
	keyShare1 [regmap.AESKeyWords]uint32
	iv        [regmap.AESBlockWords]uint32
	dataIn    [regmap.AESBlockWords]uint32
	loaded    uint8 // bitmask of written DATA_IN words
	pending   [regmap.AESBlockWords]uint32
}

func (d *aesDevice) Name() string { return d.act.name }

func (d *aesDevice) Read32(offset uint32, now time.Duration) uint32 {
	switch {
	case offset == regmap.AESStatusOffset:
		running := d.act.running(now)
		done := d.act.finished(now)
		return bit(!running, regmap.AESStatusIdleBit) |
			bit(done, regmap.AESStatusOutputValidBit) |
			bit(!running && d.loaded != 0xf, regmap.AESStatusInputReadyBit)
	case offset == regmap.AESCtrlOffset:
		return d.ctrl
	case inWords(offset, regmap.AESDataOutOffset, regmap.AESBlockWords):
		if !d.act.finished(now) {
			return 0
		}
		return d.pending[wordIndex(offset, regmap.AESDataOutOffset)]
	}
	return 0
}

func (d *aesDevice) Write32(offset uint32, value uint32, now time.Duration) {
	switch {
	case offset == regmap.AESCtrlOffset:
		d.ctrl = value
	case inWords(offset, regmap.AESKeyShare0Offset, regmap.AESKeyWords):
		d.keyShare0[wordIndex(offset, regmap.AESKeyShare0Offset)] = value
	case inWords(offset, regmap.AESKeyShare1Offset, regmap.AESKeyWords):
		d.keyShare1[wordIndex(offset, regmap.AESKeyShare1Offset)] = value
	case inWords(offset, regmap.AESIVOffset, regmap.AESBlockWords):
		d.iv[wordIndex(offset, regmap.AESIVOffset)] = value
	case inWords(offset, regmap.AESDataInOffset, regmap.AESBlockWords):
		i := wordIndex(offset, regmap.AESDataInOffset)
		d.dataIn[i] = value
		d.loaded |= 1 << i
	case offset == regmap.AESTriggerOffset:
		if mmio.Bit32Read(value, regmap.AESTriggerStartBit) && d.loaded == 0xf && !d.act.running(now) {
			d.encrypt()
			d.loaded = 0
			d.act.start(now)
		}
	}
}

func (d *aesDevice) Write8(offset uint32, value uint8, now time.Duration) {
	d.Write32(offset, uint32(value), now)
}

func (d *aesDevice) encrypt() {
	d.pending = [regmap.AESBlockWords]uint32{}
	if !mmio.Bit32Read(d.ctrl, regmap.AESCtrlOperationBit) ||
		mmio.Field32Read(d.ctrl, regmap.AESCtrlModeField) != regmap.AESModeCBC ||
		mmio.Field32Read(d.ctrl, regmap.AESCtrlKeyLenField) != regmap.AESKeyLen256 {
		return
	}
	var key [regmap.AESKeyWords]uint32
	for i := range key {
		key[i] = d.keyShare0[i] ^ d.keyShare1[i]
	}
	block, err := aes.NewCipher(mmio.WordsToBytes(key[:]))
	if err != nil {
		return
	}
	in := mmio.WordsToBytes(d.dataIn[:])
	iv := mmio.WordsToBytes(d.iv[:])
	for i := range in {
		in[i] ^= iv[i]
	}
	out := make([]byte, regmap.AESBlockBytes)
	block.Encrypt(out, in)
	copy(d.pending[:], mmio.BytesToWords(out))
	// CBC chaining: the next block uses this ciphertext as its IV.
	copy(d.iv[:], d.pending[:])
}

func inWords(offset, base uint32, n int) bool {
	return offset >= base && offset < base+uint32(4*n) && (offset-base)%4 == 0
}

func wordIndex(offset, base uint32) int {
	return int((offset - base) / 4)
}
