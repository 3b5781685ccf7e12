package epoch

import (
	"errors"
	"fmt"
	"sort"
	"sync/atomic"

	"maxpower/internal/config"
	"maxpower/internal/mmio"
	"maxpower/internal/regmap"
	"maxpower/internal/subsystem"
	"maxpower/internal/vectors"
)

// Platform supplies register windows and the shared clock: the simulated
// chip in tests and the CLI, a device mapping on hardware.
type Platform interface {
	Region(block string) (mmio.Region, error)
	Clock() mmio.Clock
}

// SubsystemState is what the orchestrator last observed of a subsystem.
type SubsystemState string

const (
	StateUnknown SubsystemState = "unknown"
	StateIdle    SubsystemState = "idle"
	StateBusy    SubsystemState = "busy"
)

// Subsystem is one block taking part in the epoch.
type Subsystem struct {
	adapter subsystem.Adapter
	timing  config.Timing
	staged  atomic.Bool

	// Written by the orchestrator only, after staging has joined.
	state   SubsystemState
	trigger *subsystem.TriggerCommand
}

// ID is the subsystem name, which is also its block name.
func (s *Subsystem) ID() string { return s.adapter.ID() }

// Adapter drives the subsystem's block.
func (s *Subsystem) Adapter() subsystem.Adapter { return s.adapter }

// Timing is the configured latency and onset.
func (s *Subsystem) Timing() config.Timing { return s.timing }

// Staged reports whether its staging task has loaded the inputs.
func (s *Subsystem) Staged() bool { return s.staged.Load() }

// State is the state observed by the last precondition check.
func (s *Subsystem) State() SubsystemState { return s.state }

// Trigger is the prebuilt trigger write, nil until the epoch prepares it.
func (s *Subsystem) Trigger() *subsystem.TriggerCommand { return s.trigger }

// markStaged sets the staged flag. It can be set once per board.
func (s *Subsystem) markStaged() error {
	if !s.staged.CompareAndSwap(false, true) {
		return fmt.Errorf("%s staged twice", s.ID())
	}
	return nil
}

// Board owns every subsystem adapter and the epoch marker for one run. A board
// is single use: staged flags are never reset.
type Board struct {
	clock      mmio.Clock
	marker     *subsystem.Marker
	subsystems map[string]*Subsystem
	ids        []string
}

// NewBoard builds the adapters for every subsystem in cfg over the platform's
// register windows, keyed with the golden vectors.
func NewBoard(p Platform, cfg config.Config) (*Board, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	clock := p.Clock()
	poller := subsystem.Poller{Clock: clock, Timeout: cfg.ResultTimeout}

	var errs []error
	region := func(block string) mmio.Region {
		r, err := p.Region(block)
		if err != nil {
			errs = append(errs, err)
		}
		return r
	}
	i2c := func(block string, n int) subsystem.Adapter {
		return subsystem.NewI2C(block, region(block), subsystem.I2CConfig{
			TargetAddress: uint8(n + 1),
			DeviceIDs:     vectors.I2CDeviceAddresses[n],
			Timing:        subsystem.DefaultI2CTiming,
		})
	}

	adapters := []subsystem.Adapter{
		subsystem.NewADC(regmap.BlockADC, region(regmap.BlockADC)),
		subsystem.NewAES(regmap.BlockAES, region(regmap.BlockAES), subsystem.AESConfig{
			Key: vectors.AESKey, KeyShare1: vectors.AESKeyShare1, IV: vectors.AESIV,
		}, poller),
		subsystem.NewCSRNG(regmap.BlockCSRNG, region(regmap.BlockCSRNG), poller),
		subsystem.NewHMAC(regmap.BlockHMAC, region(regmap.BlockHMAC), vectors.HMACLongKey, poller),
		i2c(regmap.BlockI2C0, 0),
		i2c(regmap.BlockI2C1, 1),
		i2c(regmap.BlockI2C2, 2),
		subsystem.NewKMAC(regmap.BlockKMAC, region(regmap.BlockKMAC), subsystem.KMACConfig{
			Key:           vectors.KMACKey,
			Customization: vectors.KMACCustomization,
			OutputBits:    vectors.KMACOutputBits,
		}, poller),
		subsystem.NewSPIHost(regmap.BlockSPIHost1, region(regmap.BlockSPIHost1), subsystem.SPIHostConfig{
			CSNIdle: 2, CSNTrail: 2, CSNLead: 2,
		}),
		subsystem.NewVerifier(regmap.BlockVerifier, region(regmap.BlockVerifier), subsystem.VerifierKey{
			Modulus: vectors.RSAModulus, Exponent: vectors.RSAExponent, Message: vectors.RSAMessage,
		}),
	}
	gpio := region(regmap.BlockGPIO)
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	b := &Board{
		clock:      clock,
		marker:     subsystem.NewMarker(gpio, cfg.MarkerPin),
		subsystems: make(map[string]*Subsystem, len(adapters)),
	}
	for _, a := range adapters {
		b.subsystems[a.ID()] = &Subsystem{adapter: a, timing: cfg.Subsystems[a.ID()], state: StateUnknown}
		b.ids = append(b.ids, a.ID())
	}
	sort.Strings(b.ids)
	return b, nil
}

// IDs lists the subsystems in lexical order.
func (b *Board) IDs() []string {
	out := make([]string, len(b.ids))
	copy(out, b.ids)
	return out
}

// Subsystem returns the named subsystem or an error if the board has none.
func (b *Board) Subsystem(id string) (*Subsystem, error) {
	s, ok := b.subsystems[id]
	if !ok {
		return nil, fmt.Errorf("unknown subsystem %q", id)
	}
	return s, nil
}

// Clock is the chip clock all ticks are measured on.
func (b *Board) Clock() mmio.Clock { return b.clock }

// Marker is the epoch marker pin.
func (b *Board) Marker() *subsystem.Marker { return b.marker }

// Timings returns the latency profile of every subsystem.
func (b *Board) Timings() map[string]config.Timing {
	out := make(map[string]config.Timing, len(b.subsystems))
	for id, s := range b.subsystems {
		out[id] = s.timing
	}
	return out
}

// configure runs the one-time setup of the marker and of every adapter that
// needs one, in lexical order.
func (b *Board) configure() error {
	if err := b.marker.Configure(); err != nil {
		return &Failure{Kind: ErrStagingFailure, Phase: PhaseIdle, Subsystem: regmap.BlockGPIO, Msg: "configure marker", Cause: err}
	}
	for _, id := range b.ids {
		c, ok := b.subsystems[id].adapter.(subsystem.Configurer)
		if !ok {
			continue
		}
		if err := c.Configure(); err != nil {
			return &Failure{Kind: ErrStagingFailure, Phase: PhaseIdle, Subsystem: id, Msg: "configure", Cause: err}
		}
	}
	return nil
}
