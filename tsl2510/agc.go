// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tsl2510

import (
	"fmt"

	"github.com/go-lpc/optics/tsl2510/internal/regs"
)

// NumGains is the number of gain codes of the sensor.
const NumGains = 14

const (
	high uint8 = 0xff
	low  uint8 = 0x00
)

// GainCode returns the code of the largest tabulated gain not exceeding
// gain, where gain is the linear gain x1000 (16000 is 16x).
// Gains below 1x map to code 0.
func GainCode(gain uint32) uint8 {
	for i := NumGains - 1; i > 0; i-- {
		if LinearGain(uint8(i)) <= gain {
			return uint8(i)
		}
	}
	return 0
}

// LinearGain returns the linear gain x1000 of a gain code.
// Codes past the table saturate to the largest gain.
func LinearGain(code uint8) uint32 {
	return 1000 * gainFactor(code)
}

// gainFactor returns the integer multiplier of a gain code.
func gainFactor(code uint8) uint32 {
	if code >= NumGains {
		code = NumGains - 1
	}
	return 1 << code
}

func flag(on bool) uint8 {
	if on {
		return high
	}
	return low
}

// EnableAGC switches the automatic gain control on or off.
// Both AGC registers are written; a failure on the second one leaves the
// first one updated.
func (dev *Device) EnableAGC(on bool) error {
	cfg0 := uint8(regs.AGCNthIterationIdle)
	if on {
		cfg0 = regs.AGCNthIterationEnable
	}

	err := dev.setByte(regs.ModCalibCfg0, cfg0)
	if err != nil {
		return fmt.Errorf("tsl2510: could not set AGC iteration (on=%v): %w", on, err)
	}
	err = dev.setField(regs.ModCalibCfg2, flag(on), regs.MaskAGCNthIteration)
	if err != nil {
		return fmt.Errorf("tsl2510: could not set AGC enable bit (on=%v): %w", on, err)
	}
	dev.agc.enabled = on
	return nil
}

// SetAGCSaturation switches the saturation-adaptive AGC mode.
func (dev *Device) SetAGCSaturation(on bool) error {
	err := dev.setField(regs.Step1ModPhdSmuxH, flag(on), regs.MaskAGCASat)
	if err != nil {
		return fmt.Errorf("tsl2510: could not set AGC saturation mode (on=%v): %w", on, err)
	}
	dev.agc.asat = on
	return nil
}

// SetAGCPredict switches the predictive AGC mode.
func (dev *Device) SetAGCPredict(on bool) error {
	err := dev.setField(regs.Step2ModPhdSmuxH, flag(on), regs.MaskAGCPredict)
	if err != nil {
		return fmt.Errorf("tsl2510: could not set AGC predict mode (on=%v): %w", on, err)
	}
	dev.agc.predict = on
	return nil
}

// SetAGCSamples sets the number of samples the AGC evaluates before
// changing gains. n must be in [1, 2048].
func (dev *Device) SetAGCSamples(n uint16) error {
	if n == 0 || n > 2048 {
		return fmt.Errorf("tsl2510: invalid AGC sample count %d", n)
	}
	v := n - 1
	s := seq{dev: dev}
	s.setByte(regs.AGCNrSamplesLo, uint8(v))
	s.setField(regs.AGCNrSamplesHi, uint8(v>>8), regs.MaskAGCNrSamplesHi)
	if s.err != nil {
		return fmt.Errorf("tsl2510: could not set AGC sample count %d: %w", n, s.err)
	}
	dev.agc.samples = n
	return nil
}

// SetAGCMaxGain sets the AGC gain ceiling (linear gain x1000).
func (dev *Device) SetAGCMaxGain(gain uint32) error {
	code := GainCode(gain)
	err := dev.setField(regs.Cfg8, code<<4, regs.MaskMaxModGain)
	if err != nil {
		return fmt.Errorf("tsl2510: could not set AGC max gain %d: %w", gain, err)
	}
	dev.agc.maxGain = LinearGain(code)
	return nil
}

// setALSGain programs the gain of both ALS modulators.
func (dev *Device) setALSGain(gain uint32) error {
	code := GainCode(gain)
	s := seq{dev: dev}
	s.setField(regs.Step0ModGainXL, code, regs.MaskAGain0)
	s.setField(regs.Step0ModGainXL, code<<4, regs.MaskAGain1)
	if s.err != nil {
		return fmt.Errorf("tsl2510: could not set ALS gain %d: %w", gain, s.err)
	}
	return nil
}
