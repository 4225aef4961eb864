// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package caldb gives access to the calibration database of the light
// sensors: per-sensor acquisition profiles and measurement records.
package caldb // import "github.com/go-lpc/optics/caldb"

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-lpc/optics/tsl2510"
	"github.com/go-sql-driver/mysql"
)

var (
	host = "localhost"
	usr  = "username"
	pwd  = "s3cr3t"

	drvName = "mysql"
)

// ErrNoProfile is returned when a sensor has no acquisition profile.
var ErrNoProfile = errors.New("caldb: no profile")

// DB exposes convenience methods to retrieve acquisition profiles from
// and store measurements into the calibration database.
type DB struct {
	db   *sql.DB
	name string
}

// Open opens a connection to the calibration database dbname.
func Open(dbname string) (*DB, error) {
	db, err := sql.Open(drvName, dsn(dbname))
	if err != nil {
		return nil, fmt.Errorf("caldb: could not open %q db: %w", dbname, err)
	}

	err = ping(db, dbname)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &DB{db: db, name: dbname}, nil
}

func dsn(db string) string {
	cfg := mysql.NewConfig()
	cfg.User = usr
	cfg.Passwd = pwd
	cfg.Net = "tcp"
	cfg.Addr = host
	cfg.DBName = db
	cfg.ParseTime = true
	return cfg.FormatDSN()
}

func ping(db *sql.DB, dbname string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("caldb: could not ping %q db: %w", dbname, err)
	}

	return nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

// Profile is the acquisition configuration of one sensor.
type Profile struct {
	Serial         string
	ALSTime        uint32 // integration time, in microseconds
	ALSGain        uint32 // linear gain, x1000
	SamplingTime   uint32 // flicker sampling period, in microseconds
	FlickerSamples int
	FIFOThreshold  uint16
	Hamming        bool
	Coef           tsl2510.Coefficients
}

// Options returns the device options applying the profile.
func (p Profile) Options() []tsl2510.Option {
	return []tsl2510.Option{
		tsl2510.WithALSTime(p.ALSTime),
		tsl2510.WithALSGain(p.ALSGain),
		tsl2510.WithSamplingTime(p.SamplingTime),
		tsl2510.WithFlickerSamples(p.FlickerSamples),
		tsl2510.WithFIFOThreshold(p.FIFOThreshold),
		tsl2510.WithHamming(p.Hamming),
		tsl2510.WithCoefficients(p.Coef),
	}
}

// Profile returns the latest acquisition profile of the sensor serial.
func (db *DB) Profile(ctx context.Context, serial string) (Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	p := Profile{Serial: serial}
	rows, err := db.db.QueryContext(
		ctx,
		`
SELECT als_time, als_gain, sampling_time, fd_samples, fifo_thr, hamming,
       coef_a, coef_b, coef_wb, coef_clear
FROM profiles
WHERE serial=?
ORDER BY datetime DESC LIMIT 1
`,
		serial,
	)
	if err != nil {
		return p, fmt.Errorf("caldb: could not query profile of %q: %w", serial, err)
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		err = rows.Scan(
			&p.ALSTime, &p.ALSGain,
			&p.SamplingTime, &p.FlickerSamples, &p.FIFOThreshold, &p.Hamming,
			&p.Coef.A, &p.Coef.B, &p.Coef.Wideband, &p.Coef.Clear,
		)
		if err != nil {
			return p, fmt.Errorf("caldb: could not scan profile of %q: %w", serial, err)
		}
		n++
	}

	if err := rows.Err(); err != nil {
		return p, fmt.Errorf("caldb: could not scan db for profile of %q: %w", serial, err)
	}

	if err := ctx.Err(); err != nil {
		return p, fmt.Errorf("caldb: context error while retrieving profile of %q: %w", serial, err)
	}

	if n == 0 {
		return p, fmt.Errorf("%w for sensor %q", ErrNoProfile, serial)
	}

	return p, nil
}

// Measurement is one result of a sensor.
type Measurement struct {
	Serial  string
	Time    time.Time
	Update  tsl2510.Update
	ALS     tsl2510.ALSResult
	Flicker tsl2510.FlickerResult
}

// Record stores m in the measurements table.
// Only the results flagged in m.Update are stored; others are NULL.
func (db *DB) Record(ctx context.Context, m Measurement) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var (
		lux, luxAvg, ir, clr, wb sql.NullInt64
		sat                      sql.NullBool
		freq, frames             sql.NullInt64
	)
	if m.Update&tsl2510.UpdateAmbient != 0 {
		lux = sql.NullInt64{Int64: int64(m.ALS.Lux), Valid: true}
		luxAvg = sql.NullInt64{Int64: int64(m.ALS.LuxAvg), Valid: true}
		ir = sql.NullInt64{Int64: int64(m.ALS.IR), Valid: true}
		clr = sql.NullInt64{Int64: int64(m.ALS.Clear), Valid: true}
		wb = sql.NullInt64{Int64: int64(m.ALS.Wideband), Valid: true}
		sat = sql.NullBool{Bool: m.ALS.Saturated, Valid: true}
	}
	if m.Update&(tsl2510.UpdateFlicker|tsl2510.UpdateSWFlicker) != 0 {
		freq = sql.NullInt64{Int64: int64(m.Flicker.Frequency), Valid: true}
		frames = sql.NullInt64{Int64: int64(m.Flicker.Frames), Valid: true}
	}

	_, err := db.db.ExecContext(
		ctx,
		`
INSERT INTO measurements
	(serial, datetime, lux, lux_avg, ir, clear, wideband, saturated, flicker_mhz, flicker_frames)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		m.Serial, m.Time.UTC(), lux, luxAvg, ir, clr, wb, sat, freq, frames,
	)
	if err != nil {
		return fmt.Errorf("caldb: could not record measurement of %q: %w", m.Serial, err)
	}

	return nil
}
