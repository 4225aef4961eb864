// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tsl2510

import (
	"context"
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

type gpioLine interface {
	Close() error
}

var (
	gpioRequest = gpioRequestImpl
)

func gpioRequestImpl(chip string, offset int, h func(gpiocdev.LineEvent)) (gpioLine, error) {
	return gpiocdev.RequestLine(
		chip, offset,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithFallingEdge,
		gpiocdev.WithEventHandler(h),
	)
}

// GPIOTrigger is a Trigger firing on the falling edge of the sensor
// interrupt line.
type GPIOTrigger struct {
	line gpioLine
	ch   chan struct{}
}

// NewGPIOTrigger requests the interrupt line offset of the GPIO chip.
func NewGPIOTrigger(chip string, offset int) (*GPIOTrigger, error) {
	trig := &GPIOTrigger{ch: make(chan struct{}, 1)}
	line, err := gpioRequest(chip, offset, trig.handle)
	if err != nil {
		return nil, fmt.Errorf("tsl2510: could not request GPIO line %s:%d: %w", chip, offset, err)
	}
	trig.line = line
	return trig, nil
}

// handle coalesces edges received while the device is being serviced.
func (trig *GPIOTrigger) handle(gpiocdev.LineEvent) {
	select {
	case trig.ch <- struct{}{}:
	default:
	}
}

func (trig *GPIOTrigger) Next(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-trig.ch:
		return nil
	}
}

func (trig *GPIOTrigger) Polling() bool { return false }

func (trig *GPIOTrigger) Close() error {
	return trig.line.Close()
}
