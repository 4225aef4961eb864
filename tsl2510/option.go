// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tsl2510

import (
	"os"
	"sync/atomic"

	"github.com/charmbracelet/log"
)

// msgStream is the logging interface used by devices.
// It is implemented by tdaq's log.MsgStream and by charmbracelet's log.Logger.
type msgStream interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// SensorMode selects how the ALS engine shares the sensor.
type SensorMode uint8

const (
	// Shared runs ALS alongside flicker detection (camera use).
	Shared SensorMode = iota
	// AmbientOnly dedicates the sensor to ALS.
	AmbientOnly
)

// FIFOFormat lists the optional metadata written after each flicker frame.
type FIFOFormat struct {
	EndMarker bool
	Checksum  bool
	Gain      bool
}

type config struct {
	retry RetryPolicy
	errs  *atomic.Uint64
	msg   msgStream
	mode  SensorMode

	als struct {
		timeUs   uint32 // integration time
		gain     uint32 // linear gain, x1000
		autoGain bool
		thresh   uint32
		coef     Coefficients
	}

	fd struct {
		samplingUs uint32 // time between two samples
		samples    int    // clear/wideband pairs per frame
		fifoThr    uint16 // FIFO interrupt threshold, in 16-bit words
		hamming    bool
		format     FIFOFormat
	}

	agc struct {
		maxGain uint32 // linear gain, x1000
		samples uint16
	}
}

func newConfig() config {
	var cfg config
	cfg.retry = DefaultRetryPolicy
	cfg.errs = new(atomic.Uint64)
	cfg.msg = log.NewWithOptions(os.Stdout, log.Options{Prefix: "tsl2510"})
	cfg.mode = Shared

	cfg.als.timeUs = 50000
	cfg.als.gain = 16000
	cfg.als.autoGain = true
	cfg.als.coef = DefaultCoefficients

	cfg.fd.samplingUs = 781
	cfg.fd.samples = 128
	cfg.fd.fifoThr = 270
	cfg.fd.hamming = true
	cfg.fd.format = FIFOFormat{EndMarker: true, Gain: true}

	cfg.agc.maxGain = 4096000
	cfg.agc.samples = 20
	return cfg
}

// Option configures a device.
type Option func(*config)

// WithRetry sets the retry policy of bus transactions.
func WithRetry(p RetryPolicy) Option {
	return func(cfg *config) {
		cfg.retry = p
	}
}

// WithErrorCounter shares a transport error counter between devices.
func WithErrorCounter(cnt *atomic.Uint64) Option {
	return func(cfg *config) {
		cfg.errs = cnt
	}
}

// WithLogger sets the message stream of the device.
func WithLogger(msg msgStream) Option {
	return func(cfg *config) {
		cfg.msg = msg
	}
}

// WithSensorMode selects ALS-only or shared ALS+flicker operation.
func WithSensorMode(mode SensorMode) Option {
	return func(cfg *config) {
		cfg.mode = mode
	}
}

// WithALSTime sets the ALS integration time, in microseconds.
func WithALSTime(us uint32) Option {
	return func(cfg *config) {
		cfg.als.timeUs = us
	}
}

// WithALSGain sets the ALS gain (16000 is 16x).
func WithALSGain(gain uint32) Option {
	return func(cfg *config) {
		cfg.als.gain = gain
	}
}

// WithAutoGain enables reading the ALS gains back from the sensor
// after each conversion.
func WithAutoGain(v bool) Option {
	return func(cfg *config) {
		cfg.als.autoGain = v
	}
}

// WithCoefficients sets the lux formula coefficients.
func WithCoefficients(c Coefficients) Option {
	return func(cfg *config) {
		cfg.als.coef = c
	}
}

// WithSamplingTime sets the flicker sampling period, in microseconds.
func WithSamplingTime(us uint32) Option {
	return func(cfg *config) {
		cfg.fd.samplingUs = us
	}
}

// WithFlickerSamples sets the number of clear/wideband pairs
// per flicker frame. n must be a power of two, at most 128.
func WithFlickerSamples(n int) Option {
	return func(cfg *config) {
		cfg.fd.samples = n
	}
}

// WithFIFOThreshold sets the FIFO interrupt threshold, in 16-bit words.
func WithFIFOThreshold(n uint16) Option {
	return func(cfg *config) {
		cfg.fd.fifoThr = n
	}
}

// WithHamming enables the Hamming window of the flicker spectrum.
func WithHamming(v bool) Option {
	return func(cfg *config) {
		cfg.fd.hamming = v
	}
}

// WithFIFOFormat sets the metadata written after each flicker frame.
func WithFIFOFormat(f FIFOFormat) Option {
	return func(cfg *config) {
		cfg.fd.format = f
	}
}

// WithAGC sets the AGC maximum gain and its sampling window.
func WithAGC(maxGain uint32, samples uint16) Option {
	return func(cfg *config) {
		cfg.agc.maxGain = maxGain
		cfg.agc.samples = samples
	}
}
