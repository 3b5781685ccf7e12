package epoch

import (
	"context"

	"maxpower/internal/mmio"
	"maxpower/internal/regmap"
	"maxpower/internal/trace"
	"maxpower/internal/vectors"
)

// Golden is the staged input and the expected result of every subsystem.
// Subsystems without an input entry are staged with nil.
type Golden struct {
	Inputs   map[string][]byte
	Expected map[string][]byte
}

// DefaultGolden returns a private copy of the built-in vectors.
func DefaultGolden() Golden {
	spi := make([]uint32, vectors.SPITxDepth)
	for i := range spi {
		spi[i] = vectors.SPITxWord
	}
	g := Golden{
		Inputs: map[string][]byte{
			regmap.BlockAES:      vectors.AESPlaintext,
			regmap.BlockHMAC:     vectors.HMACMessage,
			regmap.BlockKMAC:     vectors.KMACMessage,
			regmap.BlockI2C0:     vectors.I2CMessage,
			regmap.BlockI2C1:     vectors.I2CMessage,
			regmap.BlockI2C2:     vectors.I2CMessage,
			regmap.BlockSPIHost1: mmio.WordsToBytes(spi),
			regmap.BlockVerifier: vectors.RSASignature,
		},
		Expected: map[string][]byte{
			regmap.BlockADC:      vectors.ADCFilterStatusAll,
			regmap.BlockAES:      vectors.AESCiphertext,
			regmap.BlockCSRNG:    vectors.CSRNGStatusOK,
			regmap.BlockHMAC:     vectors.HMACDigest,
			regmap.BlockI2C0:     vectors.I2CMessage,
			regmap.BlockI2C1:     vectors.I2CMessage,
			regmap.BlockI2C2:     vectors.I2CMessage,
			regmap.BlockKMAC:     vectors.KMACDigest,
			regmap.BlockSPIHost1: vectors.SPIStatusDone,
			regmap.BlockVerifier: vectors.RSAValid,
		},
	}
	return g.Clone()
}

// Clone returns a deep copy, so callers can corrupt one entry without
// touching the shared vectors.
func (g Golden) Clone() Golden {
	return Golden{Inputs: cloneBytesMap(g.Inputs), Expected: cloneBytesMap(g.Expected)}
}

func cloneBytesMap(m map[string][]byte) map[string][]byte {
	out := make(map[string][]byte, len(m))
	for k, v := range m {
		out[k] = append([]byte(nil), v...)
	}
	return out
}

// StagingTask is one unit of concurrent staging work over a fixed set of
// subsystems.
type StagingTask struct {
	Name       string
	Subsystems []string
}

// DefaultStagingTasks covers every subsystem exactly once.
var DefaultStagingTasks = []StagingTask{
	{Name: "crypto-data-load", Subsystems: []string{regmap.BlockAES, regmap.BlockHMAC, regmap.BlockKMAC, regmap.BlockCSRNG}},
	{Name: "comms-data-load", Subsystems: []string{regmap.BlockI2C0, regmap.BlockI2C1, regmap.BlockI2C2, regmap.BlockSPIHost1}},
	{Name: "pubkey-data-load", Subsystems: []string{regmap.BlockVerifier}},
	{Name: "analog-data-load", Subsystems: []string{regmap.BlockADC}},
}

// stagingFunc loads every subsystem of task and marks it staged. It stops at
// the first error; the runtime then skips the epoch.
func (o *Orchestrator) stagingFunc(task StagingTask) func(context.Context) error {
	return func(ctx context.Context) error {
		for _, id := range task.Subsystems {
			s, err := o.board.Subsystem(id)
			if err != nil {
				return stagingFailure(id, err)
			}
			if err := s.adapter.Stage(o.golden.Inputs[id]); err != nil {
				return stagingFailure(id, err)
			}
			if err := s.markStaged(); err != nil {
				return stagingFailure(id, err)
			}
			trace.SafeRecord(o.sink, trace.Event{
				Kind:      trace.EventSubsystemStaged,
				Subsystem: id,
				Tick:      o.board.clock.Now(),
				Reason:    task.Name,
			})
		}
		return nil
	}
}
