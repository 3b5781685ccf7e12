package subsystem

import (
	"fmt"

	"maxpower/internal/mmio"
	"maxpower/internal/regmap"
)

const (
	kmacFunctionName = "KMAC"
	// The prefix window holds encode_string(N) || encode_string(S).
	kmacMaxCustomization = 4*regmap.KMACPrefixWords - 6 - 3
)

// KMACConfig selects the key, customization string and output length.
type KMACConfig struct {
	Key           []byte // 32 bytes
	Customization []byte
	OutputBits    int
}

// KMAC drives the KMAC256 engine. Staging performs every phase up to the
// squeeze: START, absorb the message, then append right_encode(L). The
// trigger is the PROCESS command.
type KMAC struct {
	id     string
	r      mmio.Region
	cfg    KMACConfig
	poller Poller
}

var (
	_ Adapter    = (*KMAC)(nil)
	_ Configurer = (*KMAC)(nil)
)

// NewKMAC returns the adapter for the KMAC engine behind r.
func NewKMAC(id string, r mmio.Region, cfg KMACConfig, poller Poller) *KMAC {
	return &KMAC{id: id, r: r, cfg: cfg, poller: poller}
}

func (k *KMAC) ID() string { return k.id }

// Configure selects KMAC256 with EDN entropy and loads the key and prefix.
// The engine must be idle.
func (k *KMAC) Configure() error {
	if len(k.cfg.Key) != 32 {
		return fmt.Errorf("%s: key must be 32 bytes, got %d", k.id, len(k.cfg.Key))
	}
	if len(k.cfg.Customization) > kmacMaxCustomization {
		return capacityError(k.id, len(k.cfg.Customization), kmacMaxCustomization)
	}
	if k.cfg.OutputBits <= 0 || k.cfg.OutputBits%32 != 0 || k.cfg.OutputBits > 8*regmap.KMACStateBytes {
		return fmt.Errorf("%s: unsupported output length %d bits", k.id, k.cfg.OutputBits)
	}
	if err := k.poller.Until(func() bool {
		return mmio.GetBit32(k.r, regmap.KMACStatusOffset, regmap.KMACStatusIdleBit)
	}); err != nil {
		return fmt.Errorf("%s: waiting for idle: %w", k.id, err)
	}

	entropy := mmio.Field32Write(0, regmap.KMACEntropyPrescalerField, 0x3ff)
	entropy = mmio.Field32Write(entropy, regmap.KMACEntropyWaitTimerField, 0xffff)
	k.r.Write32(regmap.KMACEntropyPeriodOffset, entropy)
	k.r.Write32(regmap.KMACEntropyRefreshOffset, mmio.Field32Write(0, regmap.KMACHashThresholdField, 1))

	cfg := mmio.Bit32Write(0, regmap.KMACCfgKMACEnBit, true)
	cfg = mmio.Field32Write(cfg, regmap.KMACCfgStrengthField, regmap.KMACStrength256)
	cfg = mmio.Field32Write(cfg, regmap.KMACCfgModeField, regmap.KMACModeCSHAKE)
	cfg = mmio.Field32Write(cfg, regmap.KMACCfgEntropyModeField, regmap.KMACEntropyEDN)
	k.r.Write32(regmap.KMACCfgOffset, cfg)

	k.r.Write32(regmap.KMACKeyLenOffset, regmap.KMACKeyLen256)
	writeWindow(k.r, regmap.KMACKeyShare0Offset, mmio.BytesToWords(k.cfg.Key))
	writeWindow(k.r, regmap.KMACKeyShare1Offset, make([]uint32, len(k.cfg.Key)/4))

	prefix := append(encodeString([]byte(kmacFunctionName)), encodeString(k.cfg.Customization)...)
	words := make([]uint32, regmap.KMACPrefixWords)
	copy(words, mmio.BytesToWords(prefix))
	writeWindow(k.r, regmap.KMACPrefixOffset, words)
	return nil
}

// Stage starts the operation, absorbs data and appends right_encode(L).
func (k *KMAC) Stage(data []byte) error {
	suffix := rightEncode(uint64(k.cfg.OutputBits))
	if capacity := regmap.KMACMsgBufferBytes - len(suffix); len(data) > capacity {
		return capacityError(k.id, len(data), capacity)
	}
	k.r.Write32(regmap.KMACCmdOffset, mmio.Field32Write(0, regmap.KMACCmdField, regmap.KMACCmdStart))
	if !mmio.GetBit32(k.r, regmap.KMACStatusOffset, regmap.KMACStatusAbsorbBit) {
		return fmt.Errorf("%s: engine did not enter absorb state", k.id)
	}
	words := len(data) / 4
	mmio.WriteWords(k.r, regmap.KMACMsgFifoOffset, mmio.BytesToWords(data[:4*words]))
	for _, b := range data[4*words:] {
		k.r.Write8(regmap.KMACMsgFifoOffset, b)
	}
	for _, b := range suffix {
		k.r.Write8(regmap.KMACMsgFifoOffset, b)
	}
	return nil
}

func (k *KMAC) PrepareTrigger() (TriggerCommand, error) {
	return TriggerCommand{
		Subsystem: k.id,
		Region:    k.r,
		Offset:    regmap.KMACCmdOffset,
		Value:     mmio.Field32Write(0, regmap.KMACCmdField, regmap.KMACCmdProcess),
	}, nil
}

// IsIdle reports the engine is absorbing and has not been asked to squeeze,
// which is its resting state between staging and the trigger.
func (k *KMAC) IsIdle() bool {
	status := k.r.Read32(regmap.KMACStatusOffset)
	return mmio.Bit32Read(status, regmap.KMACStatusAbsorbBit) || mmio.Bit32Read(status, regmap.KMACStatusIdleBit)
}

// IsDone reports the squeeze state.
func (k *KMAC) IsDone() bool {
	return mmio.GetBit32(k.r, regmap.KMACStatusOffset, regmap.KMACStatusSqueezeBit)
}

// ReadResult combines both digest shares and ends the operation.
func (k *KMAC) ReadResult() (Result, error) {
	if !k.IsDone() {
		return nil, notDone(k.id)
	}
	n := k.cfg.OutputBits / 32
	share0 := readWindow(k.r, regmap.KMACStateOffset, n)
	share1 := readWindow(k.r, regmap.KMACStateOffset+regmap.KMACStateShareOffset, n)
	digest := make([]uint32, n)
	for i := range digest {
		digest[i] = share0[i] ^ share1[i]
	}
	k.r.Write32(regmap.KMACCmdOffset, mmio.Field32Write(0, regmap.KMACCmdField, regmap.KMACCmdDone))
	return Result(mmio.WordsToBytes(digest)), nil
}

// rightEncode is x in big-endian bytes with no leading zeros, followed by the
// byte count.
func rightEncode(x uint64) []byte {
	n := 1
	for v := x >> 8; v > 0; v >>= 8 {
		n++
	}
	out := make([]byte, n+1)
	for i := n - 1; i >= 0; i-- {
		out[i] = byte(x)
		x >>= 8
	}
	out[n] = byte(n)
	return out
}

func leftEncode(x uint64) []byte {
	enc := rightEncode(x)
	n := len(enc) - 1
	return append([]byte{byte(n)}, enc[:n]...)
}

func encodeString(s []byte) []byte {
	return append(leftEncode(uint64(len(s))*8), s...)
}
