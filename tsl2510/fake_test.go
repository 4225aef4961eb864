// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tsl2510

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-lpc/optics/tsl2510/internal/regs"
)

// fakeSensor emulates the register file of a TSL2510.
//
// STATUS and STATUS5 are write-1-to-clear, CONTROL bits self-clear,
// FIFO_DATA pops from a byte queue whose length drives FIFO_LEVEL and
// the low bits of FIFO_STATUS0, reading ALS data clears ALS_DATA_VALID.
type fakeSensor struct {
	mu     sync.Mutex
	regs   [256]uint8
	fifo   []byte
	ovflow bool // report a FIFO overflow
	stuck  bool // STATUS never clears

	reads  map[uint8]int
	writes map[uint8]int

	fail func(op string, addr uint8) error
}

func newFakeSensor() *fakeSensor {
	f := &fakeSensor{
		reads:  make(map[uint8]int),
		writes: make(map[uint8]int),
	}
	f.powerOn()
	return f
}

func (f *fakeSensor) powerOn() {
	for i := regs.ID(0); i < regs.Max; i++ {
		f.regs[regs.Addr(i)] = regs.Reset(i)
	}
}

func (f *fakeSensor) get(id regs.ID) uint8 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.regs[regs.Addr(id)]
}

func (f *fakeSensor) set(id regs.ID, v uint8) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.regs[regs.Addr(id)] = v
}

func (f *fakeSensor) nwrites(id regs.ID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes[regs.Addr(id)]
}

func (f *fakeSensor) push(p []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fifo = append(f.fifo, p...)
}

func (f *fakeSensor) Read(addr uint8, p []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fail != nil {
		if err := f.fail("read", addr); err != nil {
			return err
		}
	}
	f.reads[addr]++

	switch addr {
	case regs.Addr(regs.FIFOData):
		n := copy(p, f.fifo)
		f.fifo = f.fifo[n:]
		for i := n; i < len(p); i++ {
			p[i] = 0
		}
		return nil
	}

	for i := range p {
		a := int(addr) + i
		if a > 0xff {
			return fmt.Errorf("fake: read past register file (addr=0x%02x, n=%d)", addr, len(p))
		}
		switch uint8(a) {
		case regs.Addr(regs.FIFOLevel):
			p[i] = uint8(len(f.fifo) >> 2)
		case regs.Addr(regs.FIFOStatus0):
			v := uint8(len(f.fifo)) & regs.FIFOLevelLSB
			if f.ovflow {
				v |= regs.FIFOOverflow
			}
			p[i] = v
		default:
			p[i] = f.regs[a]
		}
		if uint8(a) == regs.Addr(regs.ALSDataH1) {
			f.regs[regs.Addr(regs.Status2)] &^= regs.ALSDataValid
		}
	}
	return nil
}

func (f *fakeSensor) Write(addr uint8, p []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fail != nil {
		if err := f.fail("write", addr); err != nil {
			return err
		}
	}
	f.writes[addr]++

	for i, v := range p {
		a := uint8(int(addr) + i)
		switch a {
		case regs.Addr(regs.Status):
			if !f.stuck {
				f.regs[a] &^= v
			}
		case regs.Addr(regs.Status5):
			f.regs[a] &^= v
		case regs.Addr(regs.Control):
			if v&regs.FIFOClear != 0 {
				f.fifo = nil
				f.ovflow = false
			}
			if v&regs.SoftReset != 0 {
				f.powerOn()
			}
			f.regs[a] = v &^ (regs.FIFOClear | regs.SoftReset)
		default:
			f.regs[a] = v
		}
	}
	return nil
}

func discard() *log.Logger {
	return log.New(io.Discard)
}

func newTestDevice(t *testing.T, bus Bus, opts ...Option) *Device {
	t.Helper()
	opts = append([]Option{
		WithLogger(discard()),
		WithRetry(RetryPolicy{}),
	}, opts...)
	dev, err := New(bus, opts...)
	if err != nil {
		t.Fatalf("could not create device: %+v", err)
	}
	return dev
}

// newBareDevice returns a device that was not identified nor configured.
func newBareDevice(bus Bus, p RetryPolicy) *Device {
	cfg := newConfig()
	cfg.msg = discard()
	cfg.retry = p
	return &Device{
		cfg: cfg,
		port: port{
			bus:   bus,
			retry: p,
			errs:  cfg.errs,
		},
	}
}

// noSleep disables retry and reset delays, recording them.
func noSleep(t *testing.T) *[]time.Duration {
	t.Helper()
	var (
		mu     sync.Mutex
		delays []time.Duration
		orig   = sleep
	)
	sleep = func(d time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		delays = append(delays, d)
	}
	t.Cleanup(func() { sleep = orig })
	return &delays
}

// frame returns a FIFO frame of n samples: the clear channel carries a
// sine of amplitude amp and k periods per frame on top of dc, followed
// by an end marker and the gain word.
func frame(n, k int, dc, amp float64, gain uint16) []byte {
	o := make([]byte, 0, 4*n+5)
	for i := 0; i < n; i++ {
		v := dc + amp*math.Sin(2*math.Pi*float64(k*i)/float64(n))
		o = binary.LittleEndian.AppendUint16(o, uint16(math.Round(v)))
		o = binary.LittleEndian.AppendUint16(o, uint16(dc))
	}
	o = append(o, 0, 0, 0)
	o = binary.LittleEndian.AppendUint16(o, gain)
	return o
}

// errBus always fails.
type errBus struct {
	n atomic.Int64
}

func (b *errBus) Read(addr uint8, p []byte) error {
	b.n.Add(1)
	return io.ErrClosedPipe
}

func (b *errBus) Write(addr uint8, p []byte) error {
	b.n.Add(1)
	return io.ErrClosedPipe
}
