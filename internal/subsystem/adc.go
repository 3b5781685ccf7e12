package subsystem

import (
	"maxpower/internal/mmio"
	"maxpower/internal/regmap"
)

// adcPowerUpCycles is the longest power-up time the controller accepts.
const adcPowerUpCycles = 15

// ADC drives the analog sampler in continuous normal-power scanning with
// every filter on both channels set to the full voltage range. It takes no
// input; the trigger sets the enable bit and the result is the filter status.
type ADC struct {
	id string
	r  mmio.Region
}

var (
	_ Adapter    = (*ADC)(nil)
	_ Configurer = (*ADC)(nil)
)

// NewADC returns the adapter for the ADC controller behind r.
func NewADC(id string, r mmio.Region) *ADC {
	return &ADC{id: id, r: r}
}

func (a *ADC) ID() string { return a.id }

func (a *ADC) Configure() error {
	a.r.Write32(regmap.ADCEnCtlOffset, 0)
	pd := mmio.Field32Write(0, regmap.ADCPdCtlPowerUpTimeField, adcPowerUpCycles)
	pd = mmio.Field32Write(pd, regmap.ADCPdCtlWakeupTimeField, regmap.ADCPdCtlWakeupTimeField.Mask)
	a.r.Write32(regmap.ADCPdCtlOffset, pd)

	filter := mmio.Bit32Write(0, regmap.ADCFilterEnableBit, true)
	filter = mmio.Bit32Write(filter, regmap.ADCFilterInRangeBit, true)
	filter = mmio.Field32Write(filter, regmap.ADCFilterMinField, 0)
	filter = mmio.Field32Write(filter, regmap.ADCFilterMaxField, regmap.ADCMaxVoltage)
	for i := 0; i < regmap.ADCNumFilters; i++ {
		a.r.Write32(regmap.ADCChn0FilterCtlOffset+uint32(4*i), filter)
		a.r.Write32(regmap.ADCChn1FilterCtlOffset+uint32(4*i), filter)
	}
	return nil
}

// Stage accepts no data. It clears stale filter matches so the result only
// reflects the coming epoch.
func (a *ADC) Stage(data []byte) error {
	if len(data) > 0 {
		return capacityError(a.id, len(data), 0)
	}
	a.r.Write32(regmap.ADCFilterStatusOffset, ^uint32(0))
	return nil
}

func (a *ADC) PrepareTrigger() (TriggerCommand, error) {
	en := a.r.Read32(regmap.ADCEnCtlOffset)
	return TriggerCommand{
		Subsystem: a.id,
		Region:    a.r,
		Offset:    regmap.ADCEnCtlOffset,
		Value:     mmio.Bit32Write(en, regmap.ADCEnCtlEnableBit, true),
	}, nil
}

// IsIdle reports the controller disabled.
func (a *ADC) IsIdle() bool {
	return !mmio.GetBit32(a.r, regmap.ADCEnCtlOffset, regmap.ADCEnCtlEnableBit)
}

// IsDone reports a filter match latched in the filter status.
func (a *ADC) IsDone() bool {
	return a.r.Read32(regmap.ADCFilterStatusOffset) != 0
}

func (a *ADC) ReadResult() (Result, error) {
	if !a.IsDone() {
		return nil, notDone(a.id)
	}
	return Result(mmio.WordsToBytes([]uint32{a.r.Read32(regmap.ADCFilterStatusOffset)})), nil
}
