// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tsl2510

import (
	"fmt"
	"time"

	"github.com/go-lpc/optics/tsl2510/internal/regs"
)

// Mode is the set of features currently running on a device.
type Mode uint8

const (
	ModeOff     Mode = 0
	ModeALS     Mode = 1 << 0
	ModeFlicker Mode = 1 << 4
)

func (m Mode) String() string {
	switch m {
	case ModeOff:
		return "off"
	case ModeALS:
		return "als"
	case ModeFlicker:
		return "flicker"
	case ModeALS | ModeFlicker:
		return "als+flicker"
	}
	return fmt.Sprintf("Mode(0x%02x)", uint8(m))
}

// Feature is a sensor function that can be enabled independently.
type Feature uint8

const (
	FeatureALS Feature = iota
	FeatureFlicker
)

func (f Feature) String() string {
	switch f {
	case FeatureALS:
		return "als"
	case FeatureFlicker:
		return "flicker"
	}
	return fmt.Sprintf("Feature(%d)", uint8(f))
}

// Device is a TSL2510 ambient light and flicker sensor.
//
// A Device is not safe for concurrent use. Sensor serializes accesses
// to a Device shared between goroutines.
type Device struct {
	cfg  config
	port port

	variant Variant
	trimmed bool
	mode    Mode

	// register shadows
	enable  uint8
	intenab uint8
	status  uint8
	status2 uint8

	agc struct {
		enabled bool
		asat    bool
		predict bool
		samples uint16
		maxGain uint32 // x1000
	}

	fd  flicker
	als ambient

	saturated bool
	updates   Update
}

// New identifies, resets and configures the sensor reached through bus.
// All features are off on return.
func New(bus Bus, opts ...Option) (*Device, error) {
	cfg := newConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	err := cfg.validate()
	if err != nil {
		return nil, err
	}

	dev := &Device{
		cfg: cfg,
		port: port{
			bus:   bus,
			retry: cfg.retry,
			errs:  cfg.errs,
		},
		enable: regs.Reset(regs.Enable),
	}
	dev.fd.samples = cfg.fd.samples
	dev.fd.fifoThr = cfg.fd.fifoThr
	dev.fd.samplingUs = cfg.fd.samplingUs
	dev.fd.hamming = cfg.fd.hamming
	dev.fd.format = cfg.fd.format
	dev.fd.reset()
	dev.als.alg.Init(AlgConfig{
		TimeUs: cfg.als.timeUs,
		Gain:   cfg.als.gain,
		Coef:   cfg.als.coef,
	})

	err = dev.init()
	if err != nil {
		return nil, err
	}
	return dev, nil
}

func (cfg *config) validate() error {
	n := cfg.fd.samples
	switch {
	case n < 16 || n > maxSamples || n&(n-1) != 0:
		return fmt.Errorf("tsl2510: invalid number of flicker samples %d", n)
	case cfg.fd.fifoThr == 0 || cfg.fd.fifoThr > maxFIFOThr:
		return fmt.Errorf("tsl2510: invalid FIFO threshold %d", cfg.fd.fifoThr)
	case cfg.fd.samplingUs == 0:
		return fmt.Errorf("tsl2510: invalid sampling time %dus", cfg.fd.samplingUs)
	case cfg.als.timeUs == 0:
		return fmt.Errorf("tsl2510: invalid ALS time %dus", cfg.als.timeUs)
	case cfg.retry.Retries < 0:
		return fmt.Errorf("tsl2510: invalid retry count %d", cfg.retry.Retries)
	}
	return checkFrameFit(n, cfg.fd.fifoThr, cfg.fd.format)
}

func (dev *Device) init() error {
	err := dev.identify()
	if err != nil {
		return err
	}
	dev.cfg.msg.Infof("found %v (trimmed=%v)", dev.variant, dev.trimmed)

	err = dev.softReset()
	if err != nil {
		return err
	}

	err = dev.setSampleTime(dev.fd.samplingUs)
	if err != nil {
		return err
	}

	for _, f := range []func() error{
		func() error { return dev.SetAGCSaturation(true) },
		func() error { return dev.SetAGCPredict(true) },
		func() error { return dev.EnableAGC(true) },
		func() error { return dev.SetAGCMaxGain(dev.cfg.agc.maxGain) },
		func() error { return dev.SetAGCSamples(dev.cfg.agc.samples) },
		func() error { return dev.SetSensorMode(dev.cfg.mode) },
	} {
		err = f()
		if err != nil {
			return fmt.Errorf("tsl2510: could not configure device: %w", err)
		}
	}

	return nil
}

// softReset resets the device registers, keeping the power state.
func (dev *Device) softReset() error {
	err := dev.setByte(regs.Enable, regs.PON)
	if err != nil {
		return fmt.Errorf("tsl2510: could not power on: %w", err)
	}
	err = dev.setField(regs.Control, high, regs.SoftReset)
	if err != nil {
		return fmt.Errorf("tsl2510: could not soft-reset: %w", err)
	}
	sleep(1 * time.Millisecond)

	err = dev.setByte(regs.Enable, dev.enable)
	if err != nil {
		return fmt.Errorf("tsl2510: could not restore enable register: %w", err)
	}
	return nil
}

// Reset soft-resets the device and turns all features off.
func (dev *Device) Reset() error {
	dev.mode = ModeOff
	dev.enable = regs.Reset(regs.Enable)
	dev.intenab = regs.Reset(regs.IntEnab)
	dev.updates = 0
	dev.saturated = false
	return dev.init()
}

// SetSensorMode selects the photodiodes routed to the ALS modulators.
func (dev *Device) SetSensorMode(mode SensorMode) error {
	lo, hi := uint8(0x66), uint8(0x06)
	if mode == AmbientOnly {
		lo, hi = 0x06, 0x00
	}
	s := seq{dev: dev}
	s.setByte(regs.Step0ModPhdSmuxL, lo)
	s.setByte(regs.Step0ModPhdSmuxH, hi)
	if s.err != nil {
		return fmt.Errorf("tsl2510: could not set sensor mode %d: %w", mode, s.err)
	}
	dev.cfg.mode = mode
	return nil
}

// SetFeature turns f on or off.
// The device is powered down when its last feature is turned off.
func (dev *Device) SetFeature(f Feature, on bool) error {
	var err error
	switch f {
	case FeatureALS:
		err = dev.setALS(on)
	case FeatureFlicker:
		err = dev.setFlicker(on)
	default:
		return fmt.Errorf("tsl2510: invalid feature %v", f)
	}
	if err != nil {
		return err
	}

	err = dev.setByte(regs.IntEnab, dev.intenab)
	if err != nil {
		return fmt.Errorf("tsl2510: could not write interrupt enable: %w", err)
	}
	err = dev.setByte(regs.Enable, dev.enable)
	if err != nil {
		return fmt.Errorf("tsl2510: could not write enable: %w", err)
	}
	dev.cfg.msg.Debugf("feature %v on=%v: mode=%v", f, on, dev.mode)
	return nil
}

func (dev *Device) setALS(on bool) error {
	if !on {
		if dev.mode == ModeALS {
			dev.enable = 0
			dev.intenab = 0
			dev.mode = ModeOff
			return nil
		}
		if dev.mode&ModeALS != 0 {
			dev.enable &^= regs.AEN
			dev.intenab &^= regs.AIEN
		}
		dev.mode &^= ModeALS
		return nil
	}

	if dev.mode&ModeALS == 0 {
		err := dev.initALS()
		if err != nil {
			return err
		}
		dev.enable |= regs.AEN | regs.PON
	} else {
		// force an interrupt.
		err := dev.setWord(regs.AILT0, 0)
		if err == nil {
			err = dev.setByte(regs.AILT2, 0)
		}
		if err != nil {
			return fmt.Errorf("tsl2510: could not clear ALS low threshold: %w", err)
		}
		dev.als.ailt = 0
	}
	dev.mode |= ModeALS
	return nil
}

func (dev *Device) setFlicker(on bool) error {
	if !on {
		err := dev.setField(regs.IntEnab, low, regs.FIEN)
		if err != nil {
			return fmt.Errorf("tsl2510: could not disable FIFO interrupt: %w", err)
		}
		if dev.mode == ModeFlicker {
			dev.enable = 0
			dev.intenab = 0
			dev.mode = ModeOff
			err = dev.setByte(regs.Control, regs.FIFOClear)
			if err != nil {
				return fmt.Errorf("tsl2510: could not clear FIFO: %w", err)
			}
			return nil
		}
		dev.mode &^= ModeFlicker
		dev.enable &^= regs.FDEN
		dev.intenab &^= regs.FIEN
		return nil
	}

	dev.enable |= regs.PON | regs.FDEN
	dev.intenab |= regs.SIEN | regs.FIEN
	dev.mode |= ModeFlicker
	return dev.initFlicker()
}

// FlickerResult is a snapshot of the last flicker estimation.
type FlickerResult struct {
	Frequency   uint32 // mHz, 0 when no flicker was detected
	Peak        int    // spectrum bin of the peak
	Magnitude   int32  // magnitude of the peak
	Threshold   uint64 // detection threshold of the frame
	ClearAvg    uint16
	WidebandAvg uint16
	Gain        uint16 // gain word of the frame trailer
	Checksum    uint16
	Overflows   int
	Frames      uint64 // frames processed since flicker was enabled
}

// Flicker returns the last flicker estimation.
func (dev *Device) Flicker() FlickerResult {
	fd := &dev.fd
	return FlickerResult{
		Frequency:   fd.freq,
		Peak:        fd.peak,
		Magnitude:   fd.peakMag,
		Threshold:   fd.thresh,
		ClearAvg:    fd.clearAvg,
		WidebandAvg: fd.wideAvg,
		Gain:        fd.gain,
		Checksum:    fd.checksum,
		Overflows:   fd.overflows,
		Frames:      fd.frames,
	}
}

// Mode returns the features currently running.
func (dev *Device) Mode() Mode { return dev.mode }

// Variant returns the identified sensor part.
func (dev *Device) Variant() Variant { return dev.variant }

// Trimmed reports whether the sensor carries factory trim data.
func (dev *Device) Trimmed() bool { return dev.trimmed }

// SamplingTime returns the flicker sampling period, in microseconds.
func (dev *Device) SamplingTime() uint32 { return dev.fd.samplingUs }

// FlickerSamples returns the number of samples per flicker frame.
func (dev *Device) FlickerSamples() int { return dev.fd.samples }
