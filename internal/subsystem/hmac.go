package subsystem

import (
	"fmt"

	"maxpower/internal/mmio"
	"maxpower/internal/regmap"
)

// HMAC drives the SHA-256/HMAC engine. Configure derives a 256-bit key by
// hashing LongKey in plain SHA-256 mode, then opens an HMAC operation with
// that digest as key. Stage pushes the message; the trigger is PROCESS.
type HMAC struct {
	id      string
	r       mmio.Region
	longKey []byte
	poller  Poller
}

var (
	_ Adapter    = (*HMAC)(nil)
	_ Configurer = (*HMAC)(nil)
)

// NewHMAC returns the adapter for the HMAC engine behind r. longKey is hashed
// during Configure and the digest becomes the HMAC key.
func NewHMAC(id string, r mmio.Region, longKey []byte, poller Poller) *HMAC {
	return &HMAC{id: id, r: r, longKey: longKey, poller: poller}
}

func (h *HMAC) ID() string { return h.id }

func (h *HMAC) Configure() error {
	if len(h.longKey) > regmap.HMACMsgBufferBytes {
		return capacityError(h.id, len(h.longKey), regmap.HMACMsgBufferBytes)
	}

	h.r.Write32(regmap.HMACCfgOffset, mmio.Bit32Write(0, regmap.HMACCfgSHAEnBit, true))
	h.start()
	if err := h.push(h.longKey); err != nil {
		return fmt.Errorf("%s: key derivation: %w", h.id, err)
	}
	h.r.Write32(regmap.HMACCmdOffset, mmio.Bit32Write(0, regmap.HMACCmdHashProcessBit, true))
	if err := h.poller.Until(h.IsDone); err != nil {
		return fmt.Errorf("%s: key derivation: %w", h.id, err)
	}
	key := readWindow(h.r, regmap.HMACDigestOffset, regmap.HMACDigestWords)
	h.r.Write32(regmap.HMACIntrStateOffset, 1<<regmap.HMACIntrDoneBit)

	writeWindow(h.r, regmap.HMACKeyOffset, key)
	cfg := mmio.Bit32Write(0, regmap.HMACCfgSHAEnBit, true)
	cfg = mmio.Bit32Write(cfg, regmap.HMACCfgHMACEnBit, true)
	h.r.Write32(regmap.HMACCfgOffset, cfg)
	h.start()
	return nil
}

func (h *HMAC) start() {
	h.r.Write32(regmap.HMACCmdOffset, mmio.Bit32Write(0, regmap.HMACCmdHashStartBit, true))
}

// push writes whole words first and the tail byte by byte, then checks the
// engine counted every bit.
func (h *HMAC) push(data []byte) error {
	words := len(data) / 4
	mmio.WriteWords(h.r, regmap.HMACMsgFifoOffset, mmio.BytesToWords(data[:4*words]))
	for _, b := range data[4*words:] {
		h.r.Write8(regmap.HMACMsgFifoOffset, b)
	}
	want := uint64(len(data)) * 8
	got := uint64(h.r.Read32(regmap.HMACMsgLengthUpperOffset))<<32 | uint64(h.r.Read32(regmap.HMACMsgLengthLowerOffset))
	if got != want {
		return fmt.Errorf("message length is %d bits, want %d", got, want)
	}
	return nil
}

// Stage pushes the message into the engine's message window.
func (h *HMAC) Stage(data []byte) error {
	if len(data) > regmap.HMACMsgBufferBytes {
		return capacityError(h.id, len(data), regmap.HMACMsgBufferBytes)
	}
	if err := h.push(data); err != nil {
		return fmt.Errorf("%s: %w", h.id, err)
	}
	return nil
}

// PrepareTrigger sets PROCESS on the current command register value.
func (h *HMAC) PrepareTrigger() (TriggerCommand, error) {
	cmd := h.r.Read32(regmap.HMACCmdOffset)
	return TriggerCommand{
		Subsystem: h.id,
		Region:    h.r,
		Offset:    regmap.HMACCmdOffset,
		Value:     mmio.Bit32Write(cmd, regmap.HMACCmdHashProcessBit, true),
	}, nil
}

// IsIdle reads STATUS.IDLE.
func (h *HMAC) IsIdle() bool {
	return mmio.GetBit32(h.r, regmap.HMACStatusOffset, regmap.HMACStatusIdleBit)
}

// IsDone reads the hmac_done interrupt state.
func (h *HMAC) IsDone() bool {
	return mmio.GetBit32(h.r, regmap.HMACIntrStateOffset, regmap.HMACIntrDoneBit)
}

func (h *HMAC) ReadResult() (Result, error) {
	if !h.IsDone() {
		return nil, notDone(h.id)
	}
	digest := readWindow(h.r, regmap.HMACDigestOffset, regmap.HMACDigestWords)
	h.r.Write32(regmap.HMACIntrStateOffset, 1<<regmap.HMACIntrDoneBit)
	return Result(mmio.WordsToBytes(digest)), nil
}
