// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tsl2510

import (
	"errors"
	"fmt"

	"github.com/go-lpc/optics/tsl2510/internal/regs"
)

var ErrUnknownDevice = errors.New("tsl2510: unknown device")

// Variant identifies a supported sensor part.
type Variant uint8

const (
	Unknown Variant = iota
	TSL2510
	TSL2510Untrimmed
)

func (v Variant) String() string {
	switch v {
	case TSL2510:
		return "TSL2510"
	case TSL2510Untrimmed:
		return "TSL2510 (untrimmed)"
	}
	return fmt.Sprintf("Variant(%d)", uint8(v))
}

// Bus addresses of the sensor, depending on the package revision.
const (
	AddrV0 = 0x39
	AddrV1 = 0x29
)

var variants = []struct {
	variant Variant
	chip    uint8
	chipMsk uint8
	rev     uint8
	revMsk  uint8
}{
	{TSL2510, regs.DeviceID, regs.DeviceIDMask, regs.RevisionID, regs.RevisionMask},
	{TSL2510Untrimmed, regs.DeviceID, regs.DeviceIDMask, regs.RevisionUntrm, regs.RevisionMask},
}

func identify(chip, rev uint8) Variant {
	for _, v := range variants {
		if chip&v.chipMsk != v.chip&v.chipMsk {
			continue
		}
		if rev&v.revMsk < v.rev&v.revMsk {
			continue
		}
		return v.variant
	}
	return Unknown
}

func (dev *Device) identify() error {
	chip, err := dev.getByte(regs.ChipID)
	if err != nil {
		return fmt.Errorf("tsl2510: could not read chip id: %w", err)
	}
	rev, err := dev.getByte(regs.RevID)
	if err != nil {
		return fmt.Errorf("tsl2510: could not read revision id: %w", err)
	}

	dev.variant = identify(chip, rev)
	if dev.variant == Unknown {
		return fmt.Errorf("%w (id=0x%02x, rev=0x%02x)", ErrUnknownDevice, chip, rev)
	}
	dev.trimmed = rev&regs.Trimmed != 0
	return nil
}
