package subsystem

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"math/big"

	"maxpower/internal/mmio"
	"maxpower/internal/regmap"
)

// sha256DigestInfo is the DER prefix of a SHA-256 DigestInfo.
var sha256DigestInfo = []byte{
	0x30, 0x31, 0x30, 0x0d, 0x06, 0x09, 0x60, 0x86, 0x48, 0x01,
	0x65, 0x03, 0x04, 0x02, 0x01, 0x05, 0x00, 0x04, 0x20,
}

// VerifierKey is an RSA public key and the message whose signature is checked.
type VerifierKey struct {
	Modulus  []byte // big-endian
	Exponent uint32
	Message  []byte
}

// Verifier drives the big-number accelerator through an RSA PKCS#1 v1.5 /
// SHA-256 check. Configure loads the key and precomputes the encoded message;
// Stage loads the signature; the trigger is EXECUTE. The result is {1} when
// the recovered encoding matches and {0} otherwise.
type Verifier struct {
	id      string
	r       mmio.Region
	key     VerifierKey
	encoded []byte
}

var (
	_ Adapter    = (*Verifier)(nil)
	_ Configurer = (*Verifier)(nil)
)

// NewVerifier returns the adapter for the signature verifier behind r.
func NewVerifier(id string, r mmio.Region, key VerifierKey) *Verifier {
	return &Verifier{id: id, r: r, key: key}
}

func (v *Verifier) ID() string { return v.id }

func (v *Verifier) Configure() error {
	if len(v.key.Modulus) > 4*regmap.VerifierMaxWords {
		return capacityError(v.id, len(v.key.Modulus), 4*regmap.VerifierMaxWords)
	}
	em, err := encodePKCS1v15SHA256(v.key.Message, len(v.key.Modulus))
	if err != nil {
		return fmt.Errorf("%s: %w", v.id, err)
	}
	v.encoded = em
	if !v.IsIdle() {
		return fmt.Errorf("%s: accelerator is not idle", v.id)
	}
	writeWindow(v.r, regmap.VerifierDmemOffset+regmap.VerifierDmemExponent, []uint32{v.key.Exponent})
	writeWindow(v.r, regmap.VerifierDmemOffset+regmap.VerifierDmemModulus, littleEndianWords(v.key.Modulus))
	return nil
}

// Stage loads a big-endian signature into data memory.
func (v *Verifier) Stage(data []byte) error {
	if len(data) > 4*regmap.VerifierMaxWords {
		return capacityError(v.id, len(data), 4*regmap.VerifierMaxWords)
	}
	writeWindow(v.r, regmap.VerifierDmemOffset+regmap.VerifierDmemSignature, littleEndianWords(data))
	return nil
}

func (v *Verifier) PrepareTrigger() (TriggerCommand, error) {
	if v.encoded == nil {
		return TriggerCommand{}, fmt.Errorf("%s: not configured", v.id)
	}
	return TriggerCommand{
		Subsystem: v.id,
		Region:    v.r,
		Offset:    regmap.VerifierCmdOffset,
		Value:     regmap.VerifierCmdExecute,
	}, nil
}

// IsIdle reports the core status idle.
func (v *Verifier) IsIdle() bool {
	return v.r.Read32(regmap.VerifierStatusOffset) == regmap.VerifierStatusIdle
}

// IsDone reports the done interrupt with the core back to idle.
func (v *Verifier) IsDone() bool {
	return mmio.GetBit32(v.r, regmap.VerifierIntrStateOffset, regmap.VerifierIntrDoneBit) && v.IsIdle()
}

func (v *Verifier) ReadResult() (Result, error) {
	if !v.IsDone() {
		return nil, notDone(v.id)
	}
	words := readWindow(v.r, regmap.VerifierDmemOffset+regmap.VerifierDmemResult, regmap.VerifierMaxWords)
	recovered := new(big.Int).SetBytes(reverseBytes(mmio.WordsToBytes(words)))
	v.r.Write32(regmap.VerifierIntrStateOffset, 1<<regmap.VerifierIntrDoneBit)

	got := make([]byte, len(v.encoded))
	if recovered.BitLen() > 8*len(got) {
		return Result{0}, nil
	}
	recovered.FillBytes(got)
	if bytes.Equal(got, v.encoded) {
		return Result{1}, nil
	}
	return Result{0}, nil
}

// encodePKCS1v15SHA256 builds EM = 0x00 || 0x01 || PS || 0x00 || DigestInfo.
func encodePKCS1v15SHA256(msg []byte, k int) ([]byte, error) {
	digest := sha256.Sum256(msg)
	t := append(append([]byte{}, sha256DigestInfo...), digest[:]...)
	if k < len(t)+11 {
		return nil, fmt.Errorf("modulus of %d bytes is too short for the encoding", k)
	}
	em := make([]byte, k)
	em[1] = 0x01
	for i := 2; i < k-len(t)-1; i++ {
		em[i] = 0xff
	}
	copy(em[k-len(t):], t)
	return em, nil
}

func littleEndianWords(bigEndian []byte) []uint32 {
	return mmio.BytesToWords(reverseBytes(bigEndian))
}

func reverseBytes(b []byte) []byte {
	out := make([]byte, len(b))
	for i, v := range b {
		out[len(b)-1-i] = v
	}
	return out
}
