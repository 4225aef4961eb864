// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tsl2510

import (
	"errors"
	"fmt"

	"github.com/go-lpc/optics/internal/dsp"
	"github.com/go-lpc/optics/tsl2510/internal/regs"
)

// Adaptive threshold constants.
const (
	thdClear     = 1800 // target clear level, x1000
	thdRatio     = 3    // x1000
	thdGainMax   = 4096
	thdRatioAuto = 1000 // ratio floor

	peakLo = 5  // first bin of the search band
	peakHi = 50 // last bin of the search band

	usecPerTick = 1389 // sample time register unit, in ns
)

// flicker is the flicker-detection context of a device.
type flicker struct {
	samples    int
	fifoThr    uint16
	samplingUs uint32
	hamming    bool
	format     FIFOFormat

	freq      uint32 // mHz, 0 when no flicker was found
	ready     bool
	level     int    // bytes pending in the sensor FIFO
	gain      uint16 // gain word of the last frame trailer
	checksum  uint16
	overflows int

	clearAvg uint16 // raw frame averages
	wideAvg  uint16
	clearN   uint32 // gain-normalized averages, in 1/128 counts
	wideN    uint32
	peak     int
	peakMag  int32
	thresh   uint64
	frames   uint64 // processed frames

	buf   fifoBuf
	clear [maxSamples]uint16
	wide  [maxSamples]uint16
	mag   [maxSamples]int32
	spec  dsp.Spectrum
}

func (fd *flicker) reset() {
	fd.freq = 0
	fd.ready = false
	fd.level = 0
	fd.gain = 0
	fd.checksum = 0
	fd.overflows = 0
	fd.peak = 0
	fd.peakMag = 0
	fd.thresh = 0
	fd.frames = 0
	fd.buf.init(4 * int(fd.fifoThr))
}

func (fd *flicker) clearGain() uint32 { return gainFactor(uint8(fd.gain & 0x0f)) }
func (fd *flicker) wideGain() uint32  { return gainFactor(uint8(fd.gain>>4) & 0x0f) }

// SampleRate returns the flicker sampling rate, in mHz, for a sampling
// period in microseconds.
func SampleRate(samplingUs uint32) uint32 {
	if samplingUs == 0 {
		return 0
	}
	return uint32(1_000_000_000 / uint64(samplingUs))
}

// BinToMilliHz returns the frequency, in mHz, of bin of an n-point
// spectrum sampled every samplingUs microseconds.
func BinToMilliHz(bin, n int, samplingUs uint32) uint32 {
	if n <= 0 {
		return 0
	}
	return uint32(uint64(bin) * uint64(SampleRate(samplingUs)) / uint64(n))
}

// MilliHzToBin returns the bin of an n-point spectrum sampled every
// samplingUs microseconds closest to the frequency f, in mHz.
func MilliHzToBin(f uint32, n int, samplingUs uint32) int {
	rate := uint64(SampleRate(samplingUs))
	if rate == 0 {
		return 0
	}
	return int((uint64(f)*uint64(n) + rate/2) / rate)
}

// threshold returns the magnitude a spectral peak must exceed to be
// reported as flicker. It scales inversely with the gain-normalized
// brightness, down to a floor.
func threshold(rawAvg uint16, normAvg uint32, dc int32) uint64 {
	var ratio uint64
	switch {
	case rawAvg <= 1:
		ratio = thdClear * thdGainMax
	case normAvg != 0:
		ratio = (thdClear << 7) / uint64(normAvg)
	default:
		ratio = thdClear << 7
	}
	ratio = max(ratio, thdRatioAuto)
	return uint64(max(dc, 0)) * ratio * thdRatio / 1_000_000
}

// peakBin returns the first bin of largest magnitude in [lo, hi].
func peakBin(mag []int32, lo, hi int) int {
	imax := lo
	for i := lo; i <= hi; i++ {
		if mag[i] > mag[imax] {
			imax = i
		}
	}
	return imax
}

// estimateFlicker processes the buffered frame: it computes the channel
// averages, the clear channel spectrum and the dominant flicker frequency.
func (dev *Device) estimateFlicker() error {
	fd := &dev.fd
	defer func() { fd.ready = false }()

	err := fd.readFrame()
	switch {
	case errors.Is(err, errTrailer):
		dev.cfg.msg.Warnf("%+v", err)
	case err != nil:
		return err
	}

	var (
		n    = fd.samples
		sumC uint32
		sumW uint32
	)
	for i := 0; i < n; i++ {
		sumC += uint32(fd.clear[i])
		sumW += uint32(fd.wide[i])
	}
	fd.clearAvg = uint16(sumC / uint32(n))
	fd.wideAvg = uint16(sumW / uint32(n))
	fd.clearN = uint32(fd.clearAvg) << 7 / fd.clearGain()
	fd.wideN = uint32(fd.wideAvg) << 7 / fd.wideGain()

	mag := fd.mag[:n]
	for i, v := range fd.clear[:n] {
		mag[i] = int32(v)
	}
	sat, ok := fd.spec.Transform(mag, fd.hamming)
	if sat {
		dev.saturated = true
		dev.cfg.msg.Debugf("flicker frame saturated")
	}
	if ok {
		hi := min(peakHi, n/2)
		fd.thresh = threshold(fd.clearAvg, fd.clearN, mag[0])
		fd.peak = peakBin(mag, peakLo, hi)
		fd.peakMag = mag[fd.peak]
		fd.frames++
		fd.freq = 0
		if uint64(max(fd.peakMag, 0)) > fd.thresh {
			fd.freq = BinToMilliHz(fd.peak, n, fd.samplingUs)
		}
		dev.cfg.msg.Debugf(
			"flicker: dc=%d peak=%d mag=%d thd=%d freq=%d mHz",
			mag[0], fd.peak, fd.peakMag, fd.thresh, fd.freq,
		)
	}

	return dev.clearFIFO()
}

func sampleTimeReg(us uint32) uint16 {
	return uint16(uint64(us) * 1000 / usecPerTick)
}

// setSampleTime programs the sensor sample period.
func (dev *Device) setSampleTime(us uint32) error {
	v := sampleTimeReg(us)
	s := seq{dev: dev}
	s.setByte(regs.SampleTime0, uint8(v))
	s.setByte(regs.SampleTime1, uint8(v>>8)&regs.MaskSampleTimeHi)
	if s.err != nil {
		return fmt.Errorf("tsl2510: could not set sample time %dus: %w", us, s.err)
	}
	return nil
}

// initFlicker programs the flicker engine and resets the flicker context.
func (dev *Device) initFlicker() error {
	var (
		fd  = &dev.fd
		s   = seq{dev: dev}
		nfd = uint16(fd.samples - 1)
		thr = fd.fifoThr & maxFIFOThr
	)

	s.setByte(regs.FDNrSamples0, uint8(nfd))
	s.setField(regs.FDNrSamples1, uint8(nfd>>8), regs.MaskFDNrSamplesHi)

	s.setByte(regs.FIFOThr, uint8(thr>>1))
	s.setField(regs.Cfg2, uint8(thr&1), regs.MaskFIFOThrLSB)

	// route flicker data only to the FIFO.
	s.setField(regs.ModFIFODataCfg0, low, regs.MaskFIFOWriteEnable)
	s.setField(regs.ModFIFODataCfg1, low, regs.MaskFIFOWriteEnable)
	s.setField(regs.ModFIFODataCfg2, low, regs.MaskFIFOWriteEnable)

	s.setField(regs.MeasSeqrALSFD1, 0x01, regs.MaskSeqrStep)
	s.setField(regs.MeasSeqrFD0, 0x01, regs.MaskSeqrStep)
	s.setField(regs.MeasSeqrFD0, 0x10, regs.MaskSeqrFDStep)

	s.setField(regs.MeasMode1, flag(fd.format.EndMarker), regs.FDEndMarkerWriteEnable)
	s.setField(regs.MeasMode1, flag(fd.format.Checksum), regs.FDChecksumWriteEnable)
	s.setField(regs.MeasMode1, flag(fd.format.Gain), regs.FDGainWriteEnable)

	s.run(dev.clearFIFO)
	s.setField(regs.SIEn, high, regs.SIENFD)
	if s.err != nil {
		return fmt.Errorf("tsl2510: could not initialize flicker engine: %w", s.err)
	}

	fd.reset()
	return nil
}

// reconfigureFlicker stops flicker detection, applies f and restarts it.
// Flicker detection is only restarted if it was running.
func (dev *Device) reconfigureFlicker(f func() error) error {
	if dev.mode&ModeFlicker == 0 {
		return f()
	}

	err := dev.SetFeature(FeatureFlicker, false)
	if err != nil {
		return err
	}
	err = f()
	if err != nil {
		return err
	}
	return dev.SetFeature(FeatureFlicker, true)
}

// SetSamplingTime changes the flicker sampling period, in microseconds.
func (dev *Device) SetSamplingTime(us uint32) error {
	if us == 0 {
		return fmt.Errorf("tsl2510: invalid sampling time %dus", us)
	}
	return dev.reconfigureFlicker(func() error {
		err := dev.setSampleTime(us)
		if err != nil {
			return err
		}
		dev.fd.samplingUs = us
		return nil
	})
}

// SetFlickerSamples changes the number of clear/wideband pairs per frame.
// n must be a power of two in [16, 128].
func (dev *Device) SetFlickerSamples(n int) error {
	if n < 16 || n > maxSamples || n&(n-1) != 0 {
		return fmt.Errorf("tsl2510: invalid number of flicker samples %d", n)
	}
	err := checkFrameFit(n, dev.fd.fifoThr, dev.fd.format)
	if err != nil {
		return err
	}
	return dev.reconfigureFlicker(func() error {
		dev.fd.samples = n
		return nil
	})
}

// SetFIFOThreshold changes the FIFO interrupt threshold, in 16-bit words.
func (dev *Device) SetFIFOThreshold(n uint16) error {
	if n == 0 || n > maxFIFOThr {
		return fmt.Errorf("tsl2510: invalid FIFO threshold %d", n)
	}
	err := checkFrameFit(dev.fd.samples, n, dev.fd.format)
	if err != nil {
		return err
	}
	return dev.reconfigureFlicker(func() error {
		dev.fd.fifoThr = n
		return nil
	})
}

// SetHamming enables or disables the Hamming window of the flicker spectrum.
func (dev *Device) SetHamming(on bool) error {
	return dev.reconfigureFlicker(func() error {
		dev.fd.hamming = on
		return nil
	})
}
