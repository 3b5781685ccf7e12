package subsystem

import (
	"fmt"

	"maxpower/internal/mmio"
	"maxpower/internal/regmap"
)

// SPIHostConfig selects chip select and timing.
type SPIHostConfig struct {
	CSID   uint32
	ClkDiv uint32
	// CSNIdle, CSNTrail and CSNLead are chip-select timing in SPI clocks.
	CSNIdle  uint32
	CSNTrail uint32
	CSNLead  uint32
}

// SPIHost drives one SPI host. Stage fills the TX FIFO and queues a single
// quad-width TX segment; the held segment starts when the trigger sets
// OUTPUT_EN and SPIEN. The result is the final STATUS word.
type SPIHost struct {
	id  string
	r   mmio.Region
	cfg SPIHostConfig
}

var (
	_ Adapter    = (*SPIHost)(nil)
	_ Configurer = (*SPIHost)(nil)
)

// NewSPIHost returns the adapter for the SPI host behind r.
func NewSPIHost(id string, r mmio.Region, cfg SPIHostConfig) *SPIHost {
	return &SPIHost{id: id, r: r, cfg: cfg}
}

func (s *SPIHost) ID() string { return s.id }

// Configure leaves the host disabled so queued segments are held.
func (s *SPIHost) Configure() error {
	s.r.Write32(regmap.SPIHostControlOffset, mmio.Bit32Write(0, regmap.SPIHostControlSwRstBit, true))
	s.r.Write32(regmap.SPIHostControlOffset, 0)

	opts := mmio.Field32Write(0, regmap.SPIHostConfigClkDivField, s.cfg.ClkDiv)
	opts = mmio.Field32Write(opts, regmap.SPIHostConfigCSNIdleField, s.cfg.CSNIdle)
	opts = mmio.Field32Write(opts, regmap.SPIHostConfigCSNTrailField, s.cfg.CSNTrail)
	opts = mmio.Field32Write(opts, regmap.SPIHostConfigCSNLeadField, s.cfg.CSNLead)
	s.r.Write32(regmap.SPIHostConfigOptsOffset, opts)
	s.r.Write32(regmap.SPIHostCSIDOffset, s.cfg.CSID)
	return nil
}

// Stage queues data as whole little-endian words.
func (s *SPIHost) Stage(data []byte) error {
	if capacity := 4 * regmap.SPIHostTxDepth; len(data) > capacity {
		return capacityError(s.id, len(data), capacity)
	}
	if len(data) == 0 || len(data)%4 != 0 {
		return fmt.Errorf("%s: payload of %d bytes is not a whole number of words", s.id, len(data))
	}
	status := s.r.Read32(regmap.SPIHostStatusOffset)
	if mmio.Field32Read(status, regmap.SPIHostStatusTxQDField) != 0 {
		return fmt.Errorf("%s: TX FIFO is not empty", s.id)
	}
	mmio.WriteWords(s.r, regmap.SPIHostTxDataOffset, mmio.BytesToWords(data))

	cmd := mmio.Field32Write(0, regmap.SPIHostCommandLenField, uint32(len(data)-1))
	cmd = mmio.Field32Write(cmd, regmap.SPIHostCommandSpeedField, regmap.SPIHostSpeedQuad)
	cmd = mmio.Field32Write(cmd, regmap.SPIHostCommandDirField, regmap.SPIHostDirTx)
	s.r.Write32(regmap.SPIHostCommandOffset, cmd)
	return nil
}

func (s *SPIHost) PrepareTrigger() (TriggerCommand, error) {
	ctrl := s.r.Read32(regmap.SPIHostControlOffset)
	ctrl = mmio.Bit32Write(ctrl, regmap.SPIHostControlOutputEnBit, true)
	ctrl = mmio.Bit32Write(ctrl, regmap.SPIHostControlSPIEnBit, true)
	return TriggerCommand{
		Subsystem: s.id,
		Region:    s.r,
		Offset:    regmap.SPIHostControlOffset,
		Value:     ctrl,
	}, nil
}

// IsIdle reports the host ready and not active.
func (s *SPIHost) IsIdle() bool {
	status := s.r.Read32(regmap.SPIHostStatusOffset)
	return mmio.Bit32Read(status, regmap.SPIHostStatusReadyBit) && !mmio.Bit32Read(status, regmap.SPIHostStatusActiveBit)
}

// IsDone reports the TX FIFO drained and the host no longer active.
func (s *SPIHost) IsDone() bool {
	status := s.r.Read32(regmap.SPIHostStatusOffset)
	return mmio.Bit32Read(status, regmap.SPIHostStatusTxEmptyBit) && !mmio.Bit32Read(status, regmap.SPIHostStatusActiveBit)
}

func (s *SPIHost) ReadResult() (Result, error) {
	if !s.IsDone() {
		return nil, notDone(s.id)
	}
	status := s.r.Read32(regmap.SPIHostStatusOffset)
	return Result(mmio.WordsToBytes([]uint32{status})), nil
}
