// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tsl2510

import (
	"fmt"

	"github.com/go-daq/smbus"
)

type smbusConn interface {
	ReadReg(addr, reg uint8) (uint8, error)
	WriteReg(addr, reg, v uint8) error
	ReadBlockData(addr, reg uint8, buf []byte) error
	WriteBlockData(addr, reg uint8, buf []byte) error
	Close() error
}

var (
	smbusOpen = smbusOpenImpl
)

func smbusOpenImpl(bus int, addr uint8) (smbusConn, error) {
	return smbus.Open(bus, addr)
}

// SMBus is a Bus over a Linux SMBus adapter.
type SMBus struct {
	conn smbusConn
	addr uint8 // sensor address on the bus
}

var _ Bus = (*SMBus)(nil)

// OpenSMBus opens the SMBus adapter /dev/i2c-<bus> for the sensor at addr.
func OpenSMBus(bus int, addr uint8) (*SMBus, error) {
	conn, err := smbusOpen(bus, addr)
	if err != nil {
		return nil, fmt.Errorf("tsl2510: could not open smbus %d (addr=0x%02x): %w", bus, addr, err)
	}
	return &SMBus{conn: conn, addr: addr}, nil
}

// Read reads len(p) bytes starting at register reg.
// Transfers larger than one SMBus block are split, each block being
// read from reg: this drains FIFO_DATA, which does not auto-increment.
func (b *SMBus) Read(reg uint8, p []byte) error {
	if len(p) == 1 {
		v, err := b.conn.ReadReg(b.addr, reg)
		if err != nil {
			return err
		}
		p[0] = v
		return nil
	}
	for len(p) > 0 {
		n := min(len(p), blockSize)
		err := b.conn.ReadBlockData(b.addr, reg, p[:n])
		if err != nil {
			return err
		}
		p = p[n:]
	}
	return nil
}

// Write writes p starting at register reg.
func (b *SMBus) Write(reg uint8, p []byte) error {
	if len(p) == 1 {
		return b.conn.WriteReg(b.addr, reg, p[0])
	}
	for len(p) > 0 {
		n := min(len(p), blockSize)
		err := b.conn.WriteBlockData(b.addr, reg, p[:n])
		if err != nil {
			return err
		}
		p = p[n:]
	}
	return nil
}

// Close closes the underlying SMBus adapter.
func (b *SMBus) Close() error {
	return b.conn.Close()
}
