package sim

import (
	"fmt"
	"sort"
	"time"

	"maxpower/internal/mmio"
	"maxpower/internal/regmap"
	"maxpower/internal/trace"
)

// Options configures a simulated chip.
type Options struct {
	// Period is the duration of one bus access.
	Period time.Duration
	// Latency is how long each block stays active once started, by block
	// name. Blocks missing from the map complete after one bus period.
	Latency map[string]time.Duration
	// Faults injects misbehavior by block name.
	Faults map[string]Fault
	// Sink receives register writes and completion events.
	Sink trace.Sink
}

// Chip is the full set of blocks on one bus.
type Chip struct {
	bus     *Bus
	regions map[string]mmio.Region
	acts    map[string]*activity
}

// NewChip builds every block and attaches it to a fresh bus.
func NewChip(opts Options) (*Chip, error) {
	sink := opts.Sink
	if sink == nil {
		sink = trace.NopSink{}
	}
	bus := NewBus(opts.Period, sink)
	c := &Chip{
		bus:     bus,
		regions: make(map[string]mmio.Region),
		acts:    make(map[string]*activity),
	}

	newAct := func(name string) activity {
		lat, ok := opts.Latency[name]
		if !ok || lat <= 0 {
			lat = bus.Period()
		}
		return activity{name: name, latency: lat, sink: sink}
	}

	aesDev := &aesDevice{act: newAct(regmap.BlockAES)}
	hmacDev := &hmacDevice{act: newAct(regmap.BlockHMAC)}
	kmacDev := &kmacDevice{act: newAct(regmap.BlockKMAC)}
	verifierDev := &verifierDevice{act: newAct(regmap.BlockVerifier)}
	spiDev := &spiHostDevice{act: newAct(regmap.BlockSPIHost1)}
	adcDev := &adcDevice{act: newAct(regmap.BlockADC)}
	csrngDev := &csrngDevice{act: newAct(regmap.BlockCSRNG)}
	c.attach(aesDev, &aesDev.act)
	c.attach(hmacDev, &hmacDev.act)
	c.attach(kmacDev, &kmacDev.act)
	c.attach(verifierDev, &verifierDev.act)
	c.attach(spiDev, &spiDev.act)
	c.attach(adcDev, &adcDev.act)
	c.attach(csrngDev, &csrngDev.act)
	for _, name := range []string{regmap.BlockI2C0, regmap.BlockI2C1, regmap.BlockI2C2} {
		dev := &i2cDevice{act: newAct(name)}
		c.attach(dev, &dev.act)
	}
	c.attach(&gpioDevice{name: regmap.BlockGPIO}, nil)

	for name, fault := range opts.Faults {
		if err := c.InjectFault(name, fault); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Chip) attach(dev Device, act *activity) {
	c.regions[dev.Name()] = c.bus.Attach(dev)
	if act != nil {
		c.acts[dev.Name()] = act
	}
}

// Region returns the register window of the named block.
func (c *Chip) Region(name string) (mmio.Region, error) {
	r, ok := c.regions[name]
	if !ok {
		return nil, fmt.Errorf("unknown block %q", name)
	}
	return r, nil
}

// Clock is the bus clock shared by every block.
func (c *Chip) Clock() mmio.Clock { return c.bus }

// Blocks lists the block names in lexical order.
func (c *Chip) Blocks() []string {
	out := make([]string, 0, len(c.regions))
	for name := range c.regions {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// InjectFault changes how the named block behaves from the next access on.
func (c *Chip) InjectFault(name string, fault Fault) error {
	switch fault {
	case FaultNone, FaultStuck, FaultBusy:
	default:
		return fmt.Errorf("unknown fault %q", fault)
	}
	act, ok := c.acts[name]
	if !ok {
		return fmt.Errorf("block %q cannot take fault %q", name, fault)
	}
	c.bus.mu.Lock()
	act.fault = fault
	c.bus.mu.Unlock()
	return nil
}
