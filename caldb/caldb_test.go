// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package caldb

import (
	"context"
	"database/sql/driver"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/go-lpc/optics/internal/fakedb"
	"github.com/go-lpc/optics/tsl2510"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	drvName = fakedb.Name
}

func TestDSN(t *testing.T) {
	got := dsn("optics")
	for _, want := range []string{"username:s3cr3t@tcp(localhost)/optics", "parseTime=true"} {
		if !strings.Contains(got, want) {
			t.Fatalf("invalid DSN %q: missing %q", got, want)
		}
	}
}

func TestOpen(t *testing.T) {
	db, err := Open("fakedb")
	if err != nil {
		t.Fatalf("could not open caldb: %+v", err)
	}
	defer db.Close()
}

func TestProfile(t *testing.T) {
	db, err := Open("fakedb")
	require.NoError(t, err)
	defer db.Close()

	err = fakedb.Run(context.Background(), fakedb.Rows{
		Names: []string{
			"als_time", "als_gain", "sampling_time", "fd_samples", "fifo_thr", "hamming",
			"coef_a", "coef_b", "coef_wb", "coef_clear",
		},
		Values: [][]driver.Value{
			{int64(50000), int64(64000), int64(780), int64(64), int64(256), true,
				int64(61), int64(45), int64(1600), int64(2000)},
		},
	}, func(ctx context.Context) error {
		p, err := db.Profile(ctx, "TSL-0042")
		if err != nil {
			return err
		}

		assert.Equal(t, Profile{
			Serial:         "TSL-0042",
			ALSTime:        50000,
			ALSGain:        64000,
			SamplingTime:   780,
			FlickerSamples: 64,
			FIFOThreshold:  256,
			Hamming:        true,
			Coef:           tsl2510.DefaultCoefficients,
		}, p)
		assert.Len(t, p.Options(), 7)
		return nil
	})
	require.NoError(t, err)
}

func TestNoProfile(t *testing.T) {
	db, err := Open("fakedb")
	require.NoError(t, err)
	defer db.Close()

	err = fakedb.Run(context.Background(), fakedb.Rows{
		Names: []string{"als_time"},
	}, func(ctx context.Context) error {
		_, err := db.Profile(ctx, "TSL-0000")
		return err
	})
	assert.ErrorIs(t, err, ErrNoProfile)

	err = fakedb.RunError(context.Background(), io.ErrUnexpectedEOF, func(ctx context.Context) error {
		_, err := db.Profile(ctx, "TSL-0000")
		return err
	})
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestRecord(t *testing.T) {
	db, err := Open("fakedb")
	require.NoError(t, err)
	defer db.Close()

	ts := time.Date(2020, 12, 16, 17, 32, 59, 0, time.UTC)
	err = fakedb.Run(context.Background(), fakedb.Rows{}, func(ctx context.Context) error {
		err := db.Record(ctx, Measurement{
			Serial: "TSL-0042",
			Time:   ts,
			Update: tsl2510.UpdateAmbient,
			ALS: tsl2510.ALSResult{
				Lux: 73, LuxAvg: 70, IR: 1200, Clear: 1000, Wideband: 2000,
			},
			Flicker: tsl2510.FlickerResult{Frequency: 100031},
		})
		if err != nil {
			return err
		}

		return db.Record(ctx, Measurement{
			Serial:  "TSL-0042",
			Time:    ts,
			Update:  tsl2510.UpdateSWFlicker,
			Flicker: tsl2510.FlickerResult{Frequency: 100031, Frames: 3},
		})
	})
	require.NoError(t, err)

	execs := fakedb.Execs()
	require.Len(t, execs, 2)
	assert.Contains(t, execs[0].Query, "INSERT INTO measurements")
	assert.Equal(t, []driver.Value{
		"TSL-0042", ts,
		int64(73), int64(70), int64(1200), int64(1000), int64(2000), false,
		nil, nil,
	}, execs[0].Args)
	assert.Equal(t, []driver.Value{
		"TSL-0042", ts,
		nil, nil, nil, nil, nil, nil,
		int64(100031), int64(3),
	}, execs[1].Args)
}

func TestRecordError(t *testing.T) {
	db, err := Open("fakedb")
	require.NoError(t, err)
	defer db.Close()

	want := errors.New("read-only")
	err = fakedb.RunError(context.Background(), want, func(ctx context.Context) error {
		return db.Record(ctx, Measurement{Serial: "TSL-0042", Time: time.Now()})
	})
	assert.ErrorIs(t, err, want)
}
