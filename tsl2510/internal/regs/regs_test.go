// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package regs

import "testing"

func TestTable(t *testing.T) {
	seen := make(map[uint8]ID, Max)
	for i := ID(0); i < Max; i++ {
		addr := Addr(i)
		if j, dup := seen[addr]; dup {
			t.Fatalf("register %d and %d share address 0x%02x", j, i, addr)
		}
		seen[addr] = i
		if i > 0 && Addr(i-1) >= addr {
			t.Fatalf("register %d (0x%02x) not after register %d (0x%02x)",
				i, addr, i-1, Addr(i-1),
			)
		}
	}

	for _, tc := range []struct {
		id    ID
		addr  uint8
		reset uint8
	}{
		{ModChannelCtrl, 0x40, 0x00},
		{Enable, 0x80, 0x00},
		{SampleTime0, 0x83, 0xb3},
		{RevID, 0x91, RevisionID},
		{ChipID, 0x92, DeviceID},
		{Status, 0x93, 0x00},
		{Cfg8, 0xa9, 0xc4},
		{Step0ModGainXL, 0xd4, 0x88},
		{ModCalibCfg2, 0xe6, 0xd3},
		{FIFOThr, 0xfc, 0x7f},
		{FIFOData, 0xff, 0x00},
	} {
		if got, want := Addr(tc.id), tc.addr; got != want {
			t.Errorf("register %d: invalid address: got=0x%02x, want=0x%02x", tc.id, got, want)
		}
		if got, want := Reset(tc.id), tc.reset; got != want {
			t.Errorf("register %d: invalid reset value: got=0x%02x, want=0x%02x", tc.id, got, want)
		}
	}
}

func TestLookup(t *testing.T) {
	id, ok := Lookup(0xfd)
	if !ok || id != FIFOLevel {
		t.Fatalf("invalid lookup: got=(%d, %v), want=(%d, true)", id, ok, FIFOLevel)
	}

	_, ok = Lookup(0xab)
	if ok {
		t.Fatalf("unexpected register at 0xab")
	}
}

func TestWordPairs(t *testing.T) {
	for _, id := range []ID{
		SampleTime0, ALSNrSamples0, FDNrSamples0,
		ALSDataL0, ALSDataL1, ALSDataL2,
		AGCNrSamplesLo, VSyncPeriodL, VSyncPeriodTargetL,
	} {
		if got, want := Addr(id+1), Addr(id)+1; got != want {
			t.Errorf("register %d: high byte not contiguous: got=0x%02x, want=0x%02x", id, got, want)
		}
	}
}
