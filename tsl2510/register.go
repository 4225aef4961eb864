// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tsl2510

import (
	"errors"
	"fmt"

	"github.com/go-lpc/optics/tsl2510/internal/regs"
)

var ErrInvalidRegister = errors.New("tsl2510: invalid register")

func checkReg(reg regs.ID, n int) error {
	if int(reg)+n > int(regs.Max) {
		return fmt.Errorf("%w (id=%d, n=%d)", ErrInvalidRegister, reg, n)
	}
	return nil
}

func (dev *Device) getByte(reg regs.ID) (uint8, error) {
	err := checkReg(reg, 1)
	if err != nil {
		return 0, err
	}
	var buf [1]byte
	err = dev.port.read(regs.Addr(reg), buf[:])
	return buf[0], err
}

func (dev *Device) setByte(reg regs.ID, v uint8) error {
	err := checkReg(reg, 1)
	if err != nil {
		return err
	}
	return dev.port.write(regs.Addr(reg), []byte{v})
}

// getWord reads the little-endian word stored at reg and reg+1.
func (dev *Device) getWord(reg regs.ID) (uint16, error) {
	err := checkReg(reg, 2)
	if err != nil {
		return 0, err
	}
	var buf [2]byte
	err = dev.port.read(regs.Addr(reg), buf[:])
	return uint16(buf[0]) | uint16(buf[1])<<8, err
}

// setWord writes the low byte of v to reg and the high byte to reg+1.
func (dev *Device) setWord(reg regs.ID, v uint16) error {
	err := checkReg(reg, 2)
	if err != nil {
		return err
	}
	err = dev.port.write(regs.Addr(reg), []byte{uint8(v)})
	if err != nil {
		return err
	}
	return dev.port.write(regs.Addr(reg+1), []byte{uint8(v >> 8)})
}

func (dev *Device) getBuf(reg regs.ID, p []byte) error {
	err := checkReg(reg, 1)
	if err != nil {
		return err
	}
	return dev.port.read(regs.Addr(reg), p)
}

func (dev *Device) setBuf(reg regs.ID, p []byte) error {
	err := checkReg(reg, 1)
	if err != nil {
		return err
	}
	return dev.port.write(regs.Addr(reg), p)
}

func (dev *Device) getField(reg regs.ID, mask uint8) (uint8, error) {
	v, err := dev.getByte(reg)
	return v & mask, err
}

// setField updates the bits of reg selected by mask.
// The register is only written back when its value changes.
func (dev *Device) setField(reg regs.ID, v, mask uint8) error {
	orig, err := dev.getByte(reg)
	if err != nil {
		return err
	}
	next := orig&^mask | v&mask
	if next == orig {
		return nil
	}
	return dev.setByte(reg, next)
}

// seq runs a sequence of register writes, stopping at the first failure.
// Writes done before a failure are not undone.
type seq struct {
	dev *Device
	err error
}

func (s *seq) setByte(reg regs.ID, v uint8) {
	if s.err != nil {
		return
	}
	s.err = s.dev.setByte(reg, v)
}

func (s *seq) setWord(reg regs.ID, v uint16) {
	if s.err != nil {
		return
	}
	s.err = s.dev.setWord(reg, v)
}

func (s *seq) setField(reg regs.ID, v, mask uint8) {
	if s.err != nil {
		return
	}
	s.err = s.dev.setField(reg, v, mask)
}

func (s *seq) run(f func() error) {
	if s.err != nil {
		return
	}
	s.err = f()
}

// ReadAddr reads the register at the physical address addr.
func (dev *Device) ReadAddr(addr uint8) (uint8, error) {
	reg, ok := regs.Lookup(addr)
	if !ok {
		return 0, fmt.Errorf("%w (addr=0x%02x)", ErrInvalidRegister, addr)
	}
	return dev.getByte(reg)
}

// WriteAddr writes v to the register at the physical address addr.
func (dev *Device) WriteAddr(addr, v uint8) error {
	reg, ok := regs.Lookup(addr)
	if !ok {
		return fmt.Errorf("%w (addr=0x%02x)", ErrInvalidRegister, addr)
	}
	return dev.setByte(reg, v)
}

// TransportErrors returns the number of bus transactions that failed
// after exhausting their retries.
func (dev *Device) TransportErrors() uint64 {
	return dev.cfg.errs.Load()
}
