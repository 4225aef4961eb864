// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-lpc/optics/tsl2510"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	cfg, err := parse([]string{
		"--bus=2", "--addr=0x29", "--flicker", "--period=50ms",
		"--gpio-chip=gpiochip0", "--gpio-line=17", "-o", "out.raw",
	}, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, Config{
		Period: 50 * time.Millisecond,
		Output: "out.raw",
		Level:  "info",
		Sensors: []SensorConfig{{
			Bus:     2,
			Addr:    tsl2510.AddrV1,
			Flicker: true,
			Chip:    "gpiochip0",
			Line:    17,
		}},
	}, cfg)
}

func TestParseFile(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "tsl-mon.yaml")
	err := os.WriteFile(fname, []byte(`
period: 250ms
db: optics
log-level: debug
sensors:
  - serial: TSL-0042
    bus: 1
    addr: 0x39
    flicker: true
  - serial: TSL-0043
    bus: 1
    addr: 0x29
    ambient-only: true
`), 0644)
	require.NoError(t, err)

	cfg, err := parse([]string{"-c", fname, "--db=optics-test", "--auto-gain"}, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, 250*time.Millisecond, cfg.Period)
	assert.Equal(t, "optics-test", cfg.DB)
	assert.Equal(t, "debug", cfg.Level)
	assert.Equal(t, []SensorConfig{
		{Serial: "TSL-0042", Bus: 1, Addr: 0x39, Flicker: true, AutoGain: true},
		{Serial: "TSL-0043", Bus: 1, Addr: 0x29, Ambient: true, AutoGain: true},
	}, cfg.Sensors)
}

func TestParseErrors(t *testing.T) {
	dir := t.TempDir()
	write := func(name, data string) string {
		fname := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(fname, []byte(data), 0644))
		return fname
	}

	for _, tc := range []struct {
		name string
		args []string
	}{
		{"unknown flag", []string{"--no-such-flag"}},
		{"period", []string{"--period=0s"}},
		{"address", []string{"--addr=0x80"}},
		{"mode", []string{"--flicker", "--ambient-only"}},
		{"missing file", []string{"-c", filepath.Join(dir, "missing.yaml")}},
		{"invalid file", []string{"-c", write("invalid.yaml", "sensors: {")}},
		{"duplicate", []string{"-c", write("dup.yaml", `
sensors:
  - bus: 1
    addr: 0x39
  - bus: 1
    addr: 0x39
`)}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parse(tc.args, io.Discard)
			assert.Error(t, err)
		})
	}
}

func TestRecorder(t *testing.T) {
	buf := new(bytes.Buffer)
	rec := newRecorder(buf)

	recs := []tsl2510.Record{
		{Seq: 0, Update: tsl2510.UpdateAmbient, ALS: tsl2510.ALSResult{Lux: 73, IR: 1200}},
		{Seq: 1, Update: tsl2510.UpdateSWFlicker, Flicker: tsl2510.FlickerResult{Frequency: 100031, Frames: 1}},
	}
	for i := range recs {
		require.NoError(t, rec.write(&recs[i]))
	}
	assert.Equal(t, 2, rec.n)

	dec := tsl2510.NewDecoder(buf)
	for i := range recs {
		var got tsl2510.Record
		require.NoError(t, dec.Decode(&got))
		assert.Equal(t, recs[i], got)
	}
	var eof tsl2510.Record
	assert.ErrorIs(t, dec.Decode(&eof), io.EOF)
}

func TestXMainBusError(t *testing.T) {
	orig := openBus
	defer func() { openBus = orig }()
	openBus = func(bus int, addr uint8) (tsl2510.Bus, io.Closer, error) {
		return nil, nil, io.ErrClosedPipe
	}

	cfg := newConfig()
	cfg.Sensors = []SensorConfig{{Bus: 1, Addr: tsl2510.AddrV0}}
	cfg.Output = filepath.Join(t.TempDir(), "out.raw")

	err := xmain(context.Background(), log.New(io.Discard), cfg)
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}

func TestTrigger(t *testing.T) {
	trig, err := newTrigger(SensorConfig{}, time.Millisecond)
	require.NoError(t, err)
	defer trig.Close()
	assert.True(t, trig.Polling())

	fd, err := newTrigger(SensorConfig{Flicker: true}, time.Millisecond)
	require.NoError(t, err)
	defer fd.Close()
	assert.False(t, fd.Polling())
}
