// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tsl2510

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-lpc/optics/tsl2510/internal/regs"
)

// ErrStuckInterrupt is returned by Dispatch when the sensor keeps
// raising interrupts after all of them were processed.
var ErrStuckInterrupt = errors.New("tsl2510: stuck interrupt")

const maxDispatchPasses = 16

// Update is a bit set of sensor results ready to be read.
type Update uint8

const (
	UpdateAmbient   Update = 1 << 1
	UpdateFlicker   Update = 1 << 2
	UpdateSWFlicker Update = 1 << 5
)

func (u Update) String() string {
	if u == 0 {
		return "none"
	}
	var o []string
	if u&UpdateAmbient != 0 {
		o = append(o, "ambient")
	}
	if u&UpdateFlicker != 0 {
		o = append(o, "flicker")
	}
	if u&UpdateSWFlicker != 0 {
		o = append(o, "sw-flicker")
	}
	return strings.Join(o, "|")
}

// Dispatch services the pending interrupts of the sensor and returns
// the results made available since the previous call.
// The interrupt status is re-read after each pass until it is clear.
func (dev *Device) Dispatch() (Update, error) {
	err := dev.dispatch()
	return dev.TakeUpdates(), err
}

func (dev *Device) dispatch() error {
	var (
		err     error
		status5 uint8
	)

	dev.status, err = dev.getByte(regs.Status)
	if err != nil {
		return fmt.Errorf("tsl2510: could not read status: %w", err)
	}
	dev.status2, err = dev.getByte(regs.Status2)
	if err != nil {
		return fmt.Errorf("tsl2510: could not read status2: %w", err)
	}
	if dev.status&regs.SINT != 0 {
		status5, err = dev.getByte(regs.Status5)
		if err != nil {
			return fmt.Errorf("tsl2510: could not read status5: %w", err)
		}
	}

	for pass := 0; ; pass++ {
		if pass >= maxDispatchPasses {
			dev.cfg.msg.Errorf("interrupt still pending after %d passes (status=0x%02x)", pass, dev.status)
			return fmt.Errorf("%w (status=0x%02x)", ErrStuckInterrupt, dev.status)
		}
		dev.cfg.msg.Debugf(
			"dispatch: mode=0x%02x status=0x%02x status2=0x%02x status5=0x%02x",
			uint8(dev.mode), dev.status, dev.status2, status5,
		)

		if dev.status&regs.FINT != 0 {
			err = dev.fifoEvent()
			if err != nil {
				dev.cfg.msg.Errorf("could not handle FIFO event: %+v", err)
			}
		}

		err = dev.alsEvent(dev.status2)
		if err != nil {
			dev.cfg.msg.Errorf("could not handle ALS event: %+v", err)
		}

		if dev.status != 0 {
			err = dev.setByte(regs.Status, dev.status)
			if err != nil {
				return fmt.Errorf("tsl2510: could not clear status: %w", err)
			}
		}
		if status5 != 0 {
			err = dev.setByte(regs.Status5, status5)
			if err != nil {
				return fmt.Errorf("tsl2510: could not clear status5: %w", err)
			}
			status5 = 0
		}

		dev.status, err = dev.getByte(regs.Status)
		if err != nil {
			return fmt.Errorf("tsl2510: could not read status: %w", err)
		}
		if dev.status == 0 {
			return nil
		}
		dev.status2, err = dev.getByte(regs.Status2)
		if err != nil {
			return fmt.Errorf("tsl2510: could not read status2: %w", err)
		}
	}
}

// Poll services a completed ALS conversion without relying on interrupts.
// It returns the results made available since the previous call.
func (dev *Device) Poll() (Update, error) {
	var err error
	dev.status2, err = dev.getByte(regs.Status2)
	if err != nil {
		return dev.TakeUpdates(), fmt.Errorf("tsl2510: could not read status2: %w", err)
	}
	err = dev.alsEvent(dev.status2)
	if err != nil {
		dev.cfg.msg.Errorf("could not handle ALS event: %+v", err)
	}
	return dev.TakeUpdates(), nil
}

// TakeUpdates returns the accumulated result mask and clears it.
func (dev *Device) TakeUpdates() Update {
	u := dev.updates
	dev.updates = 0
	return u
}

// fifoEvent drains the sensor FIFO and, once a complete frame is
// buffered, runs the flicker estimation and the derived ALS computation.
func (dev *Device) fifoEvent() error {
	status0, err := dev.getByte(regs.FIFOStatus0)
	if err != nil {
		return fmt.Errorf("tsl2510: could not read FIFO status: %w", err)
	}
	if dev.mode&ModeFlicker == 0 {
		return nil
	}

	ready, err := dev.drainFIFO(status0)
	if err != nil || !ready {
		return err
	}

	// pause the flicker engine while the frame is processed.
	err = dev.setByte(regs.Enable, regs.PON)
	if err != nil {
		return fmt.Errorf("tsl2510: could not pause flicker engine: %w", err)
	}

	err = dev.estimateFlicker()
	switch {
	case err != nil:
		dev.cfg.msg.Errorf("could not estimate flicker: %+v", err)
	default:
		dev.processFlickerALS()
		dev.updates |= UpdateAmbient | UpdateSWFlicker
	}

	err = dev.setByte(regs.Enable, dev.enable|regs.FDEN|regs.PON)
	if err != nil {
		return fmt.Errorf("tsl2510: could not resume flicker engine: %w", err)
	}
	return nil
}
