package sim

import (
	"time"

	"maxpower/internal/mmio"
	"maxpower/internal/regmap"
)

// adcSample is the voltage both channels read in the model.
const adcSample = 0x200

// adcDevice is an ADC controller sampling continuously once enabled. After the
// power-up and first-sample latency every enabled filter whose window holds
// the sample sets its bit in the filter status: bit i for channel 0 filter i,
// bit 8+i for channel 1.
type adcDevice struct {
	act activity

	enCtl        uint32
	pdCtl        uint32
	lpSampleCtl  uint32
	sampleCtl    uint32
	fsmRst       uint32
	filters      [regmap.ADCNumChannels][regmap.ADCNumFilters]uint32
	filterStatus uint32
	evaluated    bool
}

func (d *adcDevice) Name() string { return d.act.name }

func (d *adcDevice) settle(now time.Duration) {
	if d.evaluated || !d.act.finished(now) {
		return
	}
	d.evaluated = true
	for ch := range d.filters {
		for i, f := range d.filters[ch] {
			if !mmio.Bit32Read(f, regmap.ADCFilterEnableBit) {
				continue
			}
			lo := mmio.Field32Read(f, regmap.ADCFilterMinField)
			hi := mmio.Field32Read(f, regmap.ADCFilterMaxField)
			inside := adcSample >= lo && adcSample <= hi
			if inside == mmio.Bit32Read(f, regmap.ADCFilterInRangeBit) {
				d.filterStatus |= 1 << uint(ch*regmap.ADCNumFilters+i)
			}
		}
	}
}

func (d *adcDevice) filterIndex(offset uint32) (ch, i int, ok bool) {
	switch {
	case inWords(offset, regmap.ADCChn0FilterCtlOffset, regmap.ADCNumFilters):
		return 0, wordIndex(offset, regmap.ADCChn0FilterCtlOffset), true
	case inWords(offset, regmap.ADCChn1FilterCtlOffset, regmap.ADCNumFilters):
		return 1, wordIndex(offset, regmap.ADCChn1FilterCtlOffset), true
	}
	return 0, 0, false
}

func (d *adcDevice) Read32(offset uint32, now time.Duration) uint32 {
	d.settle(now)
	if ch, i, ok := d.filterIndex(offset); ok {
		return d.filters[ch][i]
	}
	switch offset {
	case regmap.ADCEnCtlOffset:
		// A busy fault looks like a converter someone else already enabled.
		return d.enCtl | bit(d.act.fault == FaultBusy, regmap.ADCEnCtlEnableBit)
	case regmap.ADCPdCtlOffset:
		return d.pdCtl
	case regmap.ADCLpSampleCtlOffset:
		return d.lpSampleCtl
	case regmap.ADCSampleCtlOffset:
		return d.sampleCtl
	case regmap.ADCFsmRstOffset:
		return d.fsmRst
	case regmap.ADCFilterStatusOffset:
		return d.filterStatus
	}
	return 0
}

func (d *adcDevice) Write32(offset uint32, value uint32, now time.Duration) {
	d.settle(now)
	if ch, i, ok := d.filterIndex(offset); ok {
		d.filters[ch][i] = value
		return
	}
	switch offset {
	case regmap.ADCEnCtlOffset:
		was := mmio.Bit32Read(d.enCtl, regmap.ADCEnCtlEnableBit)
		d.enCtl = value
		enable := mmio.Bit32Read(value, regmap.ADCEnCtlEnableBit)
		switch {
		case enable && !was:
			d.evaluated = false
			d.act.start(now)
		case !enable:
			d.act.reset()
		}
	case regmap.ADCPdCtlOffset:
		d.pdCtl = value
	case regmap.ADCLpSampleCtlOffset:
		d.lpSampleCtl = value
	case regmap.ADCSampleCtlOffset:
		d.sampleCtl = value
	case regmap.ADCFsmRstOffset:
		d.fsmRst = value
	case regmap.ADCFilterStatusOffset:
		d.filterStatus &^= value
	}
}

func (d *adcDevice) Write8(offset uint32, value uint8, now time.Duration) {
	d.Write32(offset, uint32(value), now)
}
