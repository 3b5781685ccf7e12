package subsystem

import (
	"fmt"

	"maxpower/internal/mmio"
	"maxpower/internal/regmap"
)

// AESConfig is the software-provided key material for CBC encryption.
type AESConfig struct {
	Key       []byte // 32 bytes
	KeyShare1 []byte // mask; share0 = Key XOR KeyShare1
	IV        []byte // 16 bytes
}

// AES drives the cipher engine in manual mode: a staged block is encrypted
// only when the trigger register is written.
type AES struct {
	id     string
	r      mmio.Region
	cfg    AESConfig
	poller Poller
}

var (
	_ Adapter    = (*AES)(nil)
	_ Configurer = (*AES)(nil)
)

// NewAES returns the adapter for the AES engine behind r. poller bounds the
// configuration-time status waits.
func NewAES(id string, r mmio.Region, cfg AESConfig, poller Poller) *AES {
	return &AES{id: id, r: r, cfg: cfg, poller: poller}
}

func (a *AES) ID() string { return a.id }

// Configure loads the masked key and IV and selects CBC encryption with
// per-block mask reseeding.
func (a *AES) Configure() error {
	if len(a.cfg.Key) != 4*regmap.AESKeyWords || len(a.cfg.KeyShare1) != len(a.cfg.Key) {
		return fmt.Errorf("%s: key and key share must be %d bytes", a.id, 4*regmap.AESKeyWords)
	}
	if len(a.cfg.IV) != regmap.AESBlockBytes {
		return fmt.Errorf("%s: iv must be %d bytes", a.id, regmap.AESBlockBytes)
	}
	if err := a.poller.Until(a.IsIdle); err != nil {
		return fmt.Errorf("%s: waiting for idle: %w", a.id, err)
	}

	ctrl := mmio.Bit32Write(0, regmap.AESCtrlOperationBit, true)
	ctrl = mmio.Field32Write(ctrl, regmap.AESCtrlModeField, regmap.AESModeCBC)
	ctrl = mmio.Field32Write(ctrl, regmap.AESCtrlKeyLenField, regmap.AESKeyLen256)
	ctrl = mmio.Bit32Write(ctrl, regmap.AESCtrlManualBit, true)
	ctrl = mmio.Bit32Write(ctrl, regmap.AESCtrlReseedBit, true)
	a.r.Write32(regmap.AESCtrlOffset, ctrl)

	share0 := make([]byte, len(a.cfg.Key))
	for i := range share0 {
		share0[i] = a.cfg.Key[i] ^ a.cfg.KeyShare1[i]
	}
	writeWindow(a.r, regmap.AESKeyShare0Offset, mmio.BytesToWords(share0))
	writeWindow(a.r, regmap.AESKeyShare1Offset, mmio.BytesToWords(a.cfg.KeyShare1))
	writeWindow(a.r, regmap.AESIVOffset, mmio.BytesToWords(a.cfg.IV))
	return nil
}

// Stage loads one plaintext block.
func (a *AES) Stage(data []byte) error {
	if len(data) > regmap.AESBlockBytes {
		return capacityError(a.id, len(data), regmap.AESBlockBytes)
	}
	if len(data) != regmap.AESBlockBytes {
		return fmt.Errorf("%s: plaintext must be one %d-byte block, got %d", a.id, regmap.AESBlockBytes, len(data))
	}
	if err := a.poller.Until(func() bool {
		return mmio.GetBit32(a.r, regmap.AESStatusOffset, regmap.AESStatusInputReadyBit)
	}); err != nil {
		return fmt.Errorf("%s: waiting for input ready: %w", a.id, err)
	}
	writeWindow(a.r, regmap.AESDataInOffset, mmio.BytesToWords(data))
	return nil
}

func (a *AES) PrepareTrigger() (TriggerCommand, error) {
	return TriggerCommand{
		Subsystem: a.id,
		Region:    a.r,
		Offset:    regmap.AESTriggerOffset,
		Value:     mmio.Bit32Write(0, regmap.AESTriggerStartBit, true),
	}, nil
}

// IsIdle reads STATUS.IDLE.
func (a *AES) IsIdle() bool {
	return mmio.GetBit32(a.r, regmap.AESStatusOffset, regmap.AESStatusIdleBit)
}

// IsDone reads STATUS.OUTPUT_VALID.
func (a *AES) IsDone() bool {
	return mmio.GetBit32(a.r, regmap.AESStatusOffset, regmap.AESStatusOutputValidBit)
}

func (a *AES) ReadResult() (Result, error) {
	if !a.IsDone() {
		return nil, notDone(a.id)
	}
	words := readWindow(a.r, regmap.AESDataOutOffset, regmap.AESBlockWords)
	return Result(mmio.WordsToBytes(words)), nil
}

func writeWindow(r mmio.Region, offset uint32, words []uint32) {
	for i, w := range words {
		r.Write32(offset+uint32(4*i), w)
	}
}

func readWindow(r mmio.Region, offset uint32, n int) []uint32 {
	out := make([]uint32, n)
	for i := range out {
		out[i] = r.Read32(offset + uint32(4*i))
	}
	return out
}
