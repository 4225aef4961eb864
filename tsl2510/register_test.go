// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tsl2510

import (
	"errors"
	"io"
	"reflect"
	"testing"
	"time"

	"github.com/go-lpc/optics/tsl2510/internal/regs"
)

func TestSetFieldIdempotent(t *testing.T) {
	f := newFakeSensor()
	dev := newBareDevice(f, RetryPolicy{})

	err := dev.setField(regs.Cfg5, 0x03, regs.MaskAPers)
	if err != nil {
		t.Fatalf("could not set field: %+v", err)
	}
	if got, want := f.get(regs.Cfg5), uint8(0x03); got != want {
		t.Fatalf("invalid register value: got=0x%02x, want=0x%02x", got, want)
	}

	err = dev.setField(regs.Cfg5, 0x03, regs.MaskAPers)
	if err != nil {
		t.Fatalf("could not set field: %+v", err)
	}
	if got, want := f.nwrites(regs.Cfg5), 1; got != want {
		t.Fatalf("invalid number of writes: got=%d, want=%d", got, want)
	}

	// other bits are preserved.
	f.set(regs.Cfg2, 0x81)
	err = dev.setField(regs.Cfg2, low, regs.MaskFIFOThrLSB)
	if err != nil {
		t.Fatalf("could not set field: %+v", err)
	}
	if got, want := f.get(regs.Cfg2), uint8(0x80); got != want {
		t.Fatalf("invalid register value: got=0x%02x, want=0x%02x", got, want)
	}
}

func TestWord(t *testing.T) {
	f := newFakeSensor()
	dev := newBareDevice(f, RetryPolicy{})

	err := dev.setWord(regs.ALSNrSamples0, 0x1234)
	if err != nil {
		t.Fatalf("could not set word: %+v", err)
	}
	if lo, hi := f.get(regs.ALSNrSamples0), f.get(regs.ALSNrSamples1); lo != 0x34 || hi != 0x12 {
		t.Fatalf("invalid registers: got=(0x%02x, 0x%02x), want=(0x34, 0x12)", lo, hi)
	}

	v, err := dev.getWord(regs.ALSNrSamples0)
	if err != nil {
		t.Fatalf("could not get word: %+v", err)
	}
	if v != 0x1234 {
		t.Fatalf("invalid word: got=0x%04x, want=0x1234", v)
	}
}

func TestInvalidRegister(t *testing.T) {
	f := newFakeSensor()
	dev := newBareDevice(f, RetryPolicy{})

	for _, tc := range []struct {
		name string
		err  error
	}{
		{"getByte", func() error { _, err := dev.getByte(regs.Max); return err }()},
		{"setByte", dev.setByte(regs.Max, 0)},
		{"getWord", func() error { _, err := dev.getWord(regs.FIFOData); return err }()},
		{"setBuf", dev.setBuf(regs.Max+1, []byte{1})},
		{"read-addr", func() error { _, err := dev.ReadAddr(0x00); return err }()},
		{"write-addr", dev.WriteAddr(0xab, 1)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if !errors.Is(tc.err, ErrInvalidRegister) {
				t.Fatalf("invalid error: got=%v, want=%v", tc.err, ErrInvalidRegister)
			}
		})
	}

	if len(f.reads)+len(f.writes) != 0 {
		t.Fatalf("invalid register accesses reached the bus")
	}

	v, err := dev.ReadAddr(0x92)
	if err != nil {
		t.Fatalf("could not read chip id: %+v", err)
	}
	if v != regs.DeviceID {
		t.Fatalf("invalid chip id: got=0x%02x, want=0x%02x", v, regs.DeviceID)
	}
}

func TestRetry(t *testing.T) {
	delays := noSleep(t)

	f := newFakeSensor()
	n := 0
	f.fail = func(op string, addr uint8) error {
		n++
		if n <= 2 {
			return io.ErrUnexpectedEOF
		}
		return nil
	}

	dev := newBareDevice(f, RetryPolicy{Retries: 3, Delay: time.Millisecond})
	v, err := dev.getByte(regs.ChipID)
	if err != nil {
		t.Fatalf("could not read register: %+v", err)
	}
	if v != regs.DeviceID {
		t.Fatalf("invalid value: got=0x%02x, want=0x%02x", v, regs.DeviceID)
	}
	if got, want := *delays, []time.Duration{time.Millisecond, time.Millisecond}; !reflect.DeepEqual(got, want) {
		t.Fatalf("invalid delays:\ngot= %v\nwant=%v", got, want)
	}
	if got := dev.TransportErrors(); got != 0 {
		t.Fatalf("invalid transport error count: got=%d, want=0", got)
	}
}

func TestRetryExhausted(t *testing.T) {
	delays := noSleep(t)

	bus := new(errBus)
	dev := newBareDevice(bus, RetryPolicy{Retries: 2, Delay: time.Millisecond, Backoff: true})

	err := dev.setByte(regs.Enable, regs.PON)
	if err == nil {
		t.Fatalf("expected an error")
	}

	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("invalid error type: %T", err)
	}
	if terr.Op != "write" || terr.Addr != 0x80 || terr.Attempts != 3 {
		t.Fatalf("invalid transport error: %+v", terr)
	}
	if !errors.Is(err, io.ErrClosedPipe) {
		t.Fatalf("transport error does not wrap bus error: %+v", err)
	}
	if got, want := bus.n.Load(), int64(3); got != want {
		t.Fatalf("invalid number of attempts: got=%d, want=%d", got, want)
	}
	if got, want := *delays, []time.Duration{time.Millisecond, 2 * time.Millisecond}; !reflect.DeepEqual(got, want) {
		t.Fatalf("invalid delays:\ngot= %v\nwant=%v", got, want)
	}
	if got := dev.TransportErrors(); got != 1 {
		t.Fatalf("invalid transport error count: got=%d, want=1", got)
	}
}

func TestSeqStopsOnError(t *testing.T) {
	f := newFakeSensor()
	f.fail = func(op string, addr uint8) error {
		if op == "write" && addr == regs.Addr(regs.AILT1) {
			return io.ErrClosedPipe
		}
		return nil
	}
	dev := newBareDevice(f, RetryPolicy{})

	err := dev.setALSThresholds(0x030201, 0x060504)
	if !errors.Is(err, io.ErrClosedPipe) {
		t.Fatalf("invalid error: %+v", err)
	}
	if got := f.get(regs.AILT0); got != 0x01 {
		t.Fatalf("first write not applied: got=0x%02x", got)
	}
	if got := f.nwrites(regs.AIHT0); got != 0 {
		t.Fatalf("writes were not stopped: got=%d", got)
	}
}
