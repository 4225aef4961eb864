// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tsl2510

import (
	"fmt"

	"github.com/go-lpc/optics/tsl2510/internal/regs"
)

// IRSaturated is the IR value reported while the sensor is saturated.
const IRSaturated = -3

const maxALSThreshold = 0xffffff

type alsState uint8

const (
	alsStateInit alsState = iota
	alsStateRGB
)

// ambient is the ALS context of a device.
type ambient struct {
	state alsState
	alg   luxAlgorithm

	clearGain uint32 // x1000
	wideGain  uint32 // x1000

	ailt   uint32
	aiht   uint32
	thresh uint32

	status  uint8 // last ALS_STATUS
	status2 uint8 // last ALS_STATUS2

	samples uint64 // processed samples
}

// ALSResult is a snapshot of the last ALS conversion.
type ALSResult struct {
	Clear        uint32
	IR           int32 // IRSaturated when the sensor saturated
	Wideband     uint32
	RawClear     uint32
	RawWideband  uint32
	ClearGain    uint32 // x1000
	WidebandGain uint32 // x1000
	TimeUs       uint32
	Lux          uint64
	LuxAvg       uint64
	Saturated    bool
}

func (r ALSResult) String() string {
	return fmt.Sprintf(
		"ALSResult{Clear:%d IR:%d Wideband:%d Gains:%d/%d Lux:%d(avg=%d)}",
		r.Clear, r.IR, r.Wideband, r.ClearGain, r.WidebandGain, r.Lux, r.LuxAvg,
	)
}

// alsTimeReg converts an integration time into a number of samples,
// given the sample time register value.
func alsTimeReg(us uint32, sampleTime uint16) (uint16, error) {
	tick := (uint32(sampleTime&0x7ff) + 1) * usecPerTick / 1000
	if tick == 0 || us < tick {
		return 0, fmt.Errorf("tsl2510: invalid ALS time %dus (sample time=%dus)", us, tick)
	}
	return uint16(us/tick - 1), nil
}

func (dev *Device) setALSTime(us uint32) error {
	st, err := dev.getWord(regs.SampleTime0)
	if err != nil {
		return fmt.Errorf("tsl2510: could not read sample time: %w", err)
	}
	v, err := alsTimeReg(us, st)
	if err != nil {
		return err
	}

	s := seq{dev: dev}
	s.setByte(regs.ALSNrSamples0, uint8(v))
	s.setByte(regs.ALSNrSamples1, uint8(v>>8))
	if s.err != nil {
		return fmt.Errorf("tsl2510: could not set ALS time %dus: %w", us, s.err)
	}
	return nil
}

func (dev *Device) setALSThresholds(lo, hi uint32) error {
	s := seq{dev: dev}
	s.setByte(regs.AILT0, uint8(lo))
	s.setByte(regs.AILT1, uint8(lo>>8))
	s.setByte(regs.AILT2, uint8(lo>>16))
	s.setByte(regs.AIHT0, uint8(hi))
	s.setByte(regs.AIHT1, uint8(hi>>8))
	s.setByte(regs.AIHT2, uint8(hi>>16))
	if s.err != nil {
		return fmt.Errorf("tsl2510: could not set ALS thresholds: %w", s.err)
	}
	return nil
}

// initALS programs the ALS engine and resets the ALS context.
func (dev *Device) initALS() error {
	var (
		a   = &dev.als
		cfg = &dev.cfg.als
		s   = seq{dev: dev}
	)

	a.state = alsStateInit
	a.alg.Init(AlgConfig{
		TimeUs: cfg.timeUs,
		Gain:   cfg.gain,
		Coef:   cfg.coef,
	})
	a.clearGain = LinearGain(GainCode(cfg.gain))
	a.wideGain = a.clearGain

	pers := uint8(0x01)
	if dev.cfg.mode == AmbientOnly {
		pers = 0x00
	}

	a.ailt = maxALSThreshold
	a.aiht = 0

	s.run(func() error { return dev.setALSTime(cfg.timeUs) })
	s.setField(regs.Cfg5, pers, regs.MaskAPers)
	s.run(func() error { return dev.setALSThresholds(a.ailt, a.aiht) })
	s.run(func() error { return dev.setALSGain(cfg.gain) })
	if dev.cfg.mode == Shared {
		s.setField(regs.Cfg2, high, regs.MaskAIntDirect)
	}
	if s.err != nil {
		return fmt.Errorf("tsl2510: could not initialize ALS engine: %w", s.err)
	}

	a.state = alsStateRGB
	return nil
}

// scaleChannel converts a raw ALS count to the common 1/32 scale.
func scaleChannel(raw uint16, scaled bool, nibble uint8) uint32 {
	v := uint32(raw)
	if !scaled {
		v <<= 4
	}
	if nibble == 0 {
		return v << 1
	}
	return v >> (nibble - 1)
}

// alsEvent reads the ALS status registers when a conversion completed
// and runs the ALS handler when ALS is enabled.
func (dev *Device) alsEvent(status2 uint8) error {
	if status2&regs.ALSDataValid == 0 {
		return nil
	}

	var err error
	dev.als.status, err = dev.getByte(regs.ALSStatus)
	if err != nil {
		return fmt.Errorf("tsl2510: could not read ALS status: %w", err)
	}
	dev.als.status2, err = dev.getByte(regs.ALSStatus2)
	if err != nil {
		return fmt.Errorf("tsl2510: could not read ALS status2: %w", err)
	}

	if dev.mode&ModeALS == 0 {
		return nil
	}
	return dev.handleALS()
}

func (dev *Device) handleALS() error {
	a := &dev.als

	if dev.cfg.als.autoGain {
		a.clearGain = LinearGain(a.status2 & regs.ALSClearNibble)
		a.wideGain = LinearGain((a.status2 & regs.ALSWidebandNibble) >> 4)
	}

	if a.state != alsStateRGB {
		a.state = alsStateRGB
		return nil
	}

	var adc [4]byte
	err := dev.getBuf(regs.ALSDataL0, adc[:])
	if err != nil {
		return fmt.Errorf("tsl2510: could not read ALS data: %w", err)
	}

	sample := Sample{
		Clear: scaleChannel(
			uint16(adc[0])|uint16(adc[1])<<8,
			a.status&regs.ALSData0Scaled != 0,
			a.status2&regs.ALSClearNibble,
		),
		Wideband: scaleChannel(
			uint16(adc[2])|uint16(adc[3])<<8,
			a.status&regs.ALSData1Scaled != 0,
			(a.status2&regs.ALSWidebandNibble)>>4,
		),
		Saturated: a.status&(regs.ALSData0AnalogSat|regs.ALSData1AnalogSat) != 0,
	}
	if sample.Saturated {
		dev.saturated = true
	}
	a.alg.Process(sample)
	a.samples++
	dev.cfg.msg.Debugf(
		"als: clear=%d wideband=%d gains=%d/%d",
		sample.Clear, sample.Wideband, a.clearGain, a.wideGain,
	)

	dev.updates |= UpdateAmbient
	return nil
}

// processFlickerALS derives an ALS sample from the gain-normalized
// averages of the last flicker frame.
func (dev *Device) processFlickerALS() {
	var (
		a  = &dev.als
		fd = &dev.fd
	)
	a.clearGain = fd.clearGain() * 500
	a.wideGain = fd.wideGain() * 500
	a.alg.Process(Sample{
		Clear:     fd.clearN,
		Wideband:  fd.wideN,
		Saturated: dev.saturated,
	})
	a.samples++
}

// SetThreshold stores the ALS configuration threshold.
// The flicker threshold is not configurable and is ignored.
func (dev *Device) SetThreshold(f Feature, v uint32) error {
	switch f {
	case FeatureALS:
		dev.als.thresh = v
		dev.cfg.als.thresh = v
	case FeatureFlicker:
	default:
		return fmt.Errorf("tsl2510: invalid feature %v", f)
	}
	return nil
}

// ALS returns the last ALS result and clears the saturation latch.
func (dev *Device) ALS() ALSResult {
	var (
		a   = &dev.als
		res = a.alg.Result()
		out = ALSResult{
			Clear:        res.Clear,
			IR:           int32(res.IR),
			Wideband:     res.Wideband,
			RawClear:     res.RawClear,
			RawWideband:  res.RawWideband,
			ClearGain:    a.clearGain,
			WidebandGain: a.wideGain,
			TimeUs:       a.alg.Config().TimeUs,
			Lux:          res.Lux,
			LuxAvg:       res.LuxAvg,
			Saturated:    dev.saturated,
		}
	)
	if dev.saturated {
		out.IR = IRSaturated
	}
	dev.saturated = false
	return out
}
