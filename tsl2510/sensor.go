// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tsl2510

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Trigger tells a Sensor when the device needs servicing.
type Trigger interface {
	// Next blocks until the device needs servicing or ctx is done.
	Next(ctx context.Context) error
	// Polling reports whether the device is serviced by polling
	// the ALS status rather than by dispatching interrupts.
	Polling() bool
	Close() error
}

// Ticker is a Trigger firing at a fixed period.
type Ticker struct {
	t    *time.Ticker
	poll bool
}

// NewTicker returns a trigger firing every d.
// When poll is true, only completed ALS conversions are serviced.
func NewTicker(d time.Duration, poll bool) *Ticker {
	return &Ticker{t: time.NewTicker(d), poll: poll}
}

func (t *Ticker) Next(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.t.C:
		return nil
	}
}

func (t *Ticker) Polling() bool { return t.poll }

func (t *Ticker) Close() error {
	t.t.Stop()
	return nil
}

// Sensor serializes accesses to a Device shared between goroutines.
//
// Register and FIFO accesses are guarded by one lock, feature
// transitions by another one taken first.
type Sensor struct {
	cfg sync.Mutex // feature transitions
	mu  sync.Mutex // registers and FIFO

	dev *Device
}

// NewSensor wraps dev for concurrent use.
func NewSensor(dev *Device) *Sensor {
	return &Sensor{dev: dev}
}

// Do runs f with exclusive access to the device.
func (s *Sensor) Do(f func(dev *Device) error) error {
	s.cfg.Lock()
	defer s.cfg.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	return f(s.dev)
}

// SetFeature turns a feature of the device on or off.
func (s *Sensor) SetFeature(f Feature, on bool) error {
	return s.Do(func(dev *Device) error {
		return dev.SetFeature(f, on)
	})
}

// ALS returns the last ALS result of the device.
// It returns false when no ALS sample was processed yet.
func (s *Sensor) ALS() (ALSResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dev.als.samples == 0 {
		return ALSResult{}, false
	}
	return s.dev.ALS(), true
}

// Flicker returns the last flicker result of the device.
// It returns false when no flicker frame was processed yet.
func (s *Sensor) Flicker() (FlickerResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dev.fd.frames == 0 {
		return FlickerResult{}, false
	}
	return s.dev.Flicker(), true
}

func (s *Sensor) service(poll bool) (Update, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if poll {
		return s.dev.Poll()
	}
	return s.dev.Dispatch()
}

// Run services the device each time trig fires and calls f with the
// results made available, until ctx is done or a bus transaction fails.
// f is called from a goroutine distinct from the servicing one.
func (s *Sensor) Run(ctx context.Context, trig Trigger, f func(Update)) error {
	grp, ctx := errgroup.WithContext(ctx)
	updates := make(chan Update, 1)

	grp.Go(func() error {
		defer close(updates)
		for {
			err := trig.Next(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("tsl2510: could not wait for trigger: %w", err)
			}

			u, err := s.service(trig.Polling())
			switch {
			case errors.Is(err, ErrStuckInterrupt):
				s.dev.cfg.msg.Warnf("%+v", err)
			case err != nil:
				return fmt.Errorf("tsl2510: could not service device: %w", err)
			}
			if u == 0 {
				continue
			}

			select {
			case updates <- u:
			case <-ctx.Done():
				return nil
			}
		}
	})

	grp.Go(func() error {
		for u := range updates {
			f(u)
		}
		return nil
	})

	return grp.Wait()
}
