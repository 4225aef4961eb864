// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command tsl-mon monitors one or more TSL2510 light sensors.
//
// Usage: tsl-mon [options]
//
// Example:
//
//	$> tsl-mon -c ./tsl-mon.yaml
//	$> tsl-mon --bus=1 --addr=0x39 --flicker --gpio-chip=gpiochip0 --gpio-line=17
//	$> tsl-mon --db=optics --serial=TSL-0042 -o ./run-001.raw
//
// Sensors are listed in an optional YAML file:
//
//	period: 100ms
//	db: optics
//	output: ./run-001.raw
//	log-level: info
//	sensors:
//	  - serial: TSL-0042
//	    bus: 1
//	    addr: 0x39
//	    flicker: true
//	    gpio-chip: gpiochip0
//	    gpio-line: 17
//
// Command-line flags override the values of the file.
// Each update of each sensor is logged, and optionally written to the
// output file and recorded into the calibration database.
package main // import "github.com/go-lpc/optics/cmd/tsl-mon"

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-lpc/optics"
	"github.com/go-lpc/optics/caldb"
	"github.com/go-lpc/optics/tsl2510"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
	"gopkg.in/yaml.v3"
)

func main() {
	msg := log.NewWithOptions(os.Stderr, log.Options{
		Prefix:          "tsl-mon",
		ReportTimestamp: true,
	})

	cfg, err := parse(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		msg.Fatalf("could not parse configuration: %+v", err)
	}

	lvl, err := log.ParseLevel(cfg.Level)
	if err != nil {
		msg.Fatalf("could not parse log level %q: %+v", cfg.Level, err)
	}
	msg.SetLevel(lvl)

	if v, _ := optics.Version(); v != "" {
		msg.Debugf("optics %s", v)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, unix.SIGTERM)
	defer stop()

	err = xmain(ctx, msg, cfg)
	if err != nil {
		msg.Fatalf("could not monitor sensors: %+v", err)
	}
}

// Config is the monitor configuration.
type Config struct {
	Period  time.Duration  `yaml:"period"`
	DB      string         `yaml:"db"`
	Output  string         `yaml:"output"`
	Level   string         `yaml:"log-level"`
	Sensors []SensorConfig `yaml:"sensors"`
}

// SensorConfig describes one sensor.
type SensorConfig struct {
	Serial   string `yaml:"serial"`
	Bus      int    `yaml:"bus"`
	Addr     uint8  `yaml:"addr"`
	Flicker  bool   `yaml:"flicker"`
	Ambient  bool   `yaml:"ambient-only"`
	AutoGain bool   `yaml:"auto-gain"`
	Chip     string `yaml:"gpio-chip"`
	Line     int    `yaml:"gpio-line"`
}

func newConfig() Config {
	return Config{
		Period: 100 * time.Millisecond,
		Level:  "info",
	}
}

func parse(args []string, stderr io.Writer) (Config, error) {
	var (
		cfg   = newConfig()
		sc    = SensorConfig{Bus: 1, Addr: tsl2510.AddrV0}
		fname string
	)

	fset := pflag.NewFlagSet("tsl-mon", pflag.ContinueOnError)
	fset.SetOutput(stderr)
	fset.StringVarP(&fname, "config", "c", "", "path to a YAML configuration file")
	fset.DurationVar(&cfg.Period, "period", cfg.Period, "sensor polling period")
	fset.StringVar(&cfg.DB, "db", cfg.DB, "name of the calibration database (empty: no database)")
	fset.StringVarP(&cfg.Output, "output", "o", cfg.Output, "path to the output records file (empty: no file)")
	fset.StringVarP(&cfg.Level, "log-level", "v", cfg.Level, "log level (debug, info, warn, error)")
	fset.StringVar(&sc.Serial, "serial", sc.Serial, "serial number of the sensor")
	fset.IntVar(&sc.Bus, "bus", sc.Bus, "SMBus adapter of the sensor")
	fset.Uint8Var(&sc.Addr, "addr", sc.Addr, "I2C address of the sensor")
	fset.BoolVar(&sc.Flicker, "flicker", sc.Flicker, "enable flicker detection")
	fset.BoolVar(&sc.Ambient, "ambient-only", sc.Ambient, "dedicate the sensor to ALS")
	fset.BoolVar(&sc.AutoGain, "auto-gain", sc.AutoGain, "read ALS gains back after each conversion")
	fset.StringVar(&sc.Chip, "gpio-chip", sc.Chip, "GPIO chip of the interrupt line (empty: polling)")
	fset.IntVar(&sc.Line, "gpio-line", sc.Line, "GPIO offset of the interrupt line")

	err := fset.Parse(args)
	if err != nil {
		return cfg, err
	}

	if fname == "" {
		cfg.Sensors = []SensorConfig{sc}
		return cfg, cfg.validate()
	}

	file := newConfig()
	raw, err := os.ReadFile(fname)
	if err != nil {
		return cfg, fmt.Errorf("could not read config file: %w", err)
	}
	err = yaml.Unmarshal(raw, &file)
	if err != nil {
		return cfg, fmt.Errorf("could not decode config file %q: %w", fname, err)
	}

	if fset.Changed("period") {
		file.Period = cfg.Period
	}
	if fset.Changed("db") {
		file.DB = cfg.DB
	}
	if fset.Changed("output") {
		file.Output = cfg.Output
	}
	if fset.Changed("log-level") {
		file.Level = cfg.Level
	}

	if len(file.Sensors) == 0 {
		file.Sensors = []SensorConfig{{Bus: 1, Addr: tsl2510.AddrV0}}
	}
	for i := range file.Sensors {
		override(fset, &file.Sensors[i], sc)
	}

	return file, file.validate()
}

// override applies the sensor flags set on the command line to dst.
func override(fset *pflag.FlagSet, dst *SensorConfig, src SensorConfig) {
	if fset.Changed("serial") {
		dst.Serial = src.Serial
	}
	if fset.Changed("bus") {
		dst.Bus = src.Bus
	}
	if fset.Changed("addr") {
		dst.Addr = src.Addr
	}
	if fset.Changed("flicker") {
		dst.Flicker = src.Flicker
	}
	if fset.Changed("ambient-only") {
		dst.Ambient = src.Ambient
	}
	if fset.Changed("auto-gain") {
		dst.AutoGain = src.AutoGain
	}
	if fset.Changed("gpio-chip") {
		dst.Chip = src.Chip
	}
	if fset.Changed("gpio-line") {
		dst.Line = src.Line
	}
}

func (cfg Config) validate() error {
	if cfg.Period <= 0 {
		return fmt.Errorf("invalid polling period %v", cfg.Period)
	}
	seen := make(map[[2]int]bool, len(cfg.Sensors))
	for i, sc := range cfg.Sensors {
		if sc.Addr > 0x7f {
			return fmt.Errorf("invalid I2C address 0x%02x for sensor #%d", sc.Addr, i)
		}
		if sc.Flicker && sc.Ambient {
			return fmt.Errorf("sensor #%d: flicker detection needs the shared mode", i)
		}
		key := [2]int{sc.Bus, int(sc.Addr)}
		if seen[key] {
			return fmt.Errorf("sensor #%d: duplicate sensor on bus %d at 0x%02x", i, sc.Bus, sc.Addr)
		}
		seen[key] = true
	}
	return nil
}

func xmain(ctx context.Context, msg *log.Logger, cfg Config) error {
	var db *caldb.DB
	if cfg.DB != "" {
		var err error
		db, err = caldb.Open(cfg.DB)
		if err != nil {
			return fmt.Errorf("could not open calibration db: %w", err)
		}
		defer db.Close()
	}

	var out *recorder
	if cfg.Output != "" {
		f, err := os.Create(cfg.Output)
		if err != nil {
			return fmt.Errorf("could not create output file: %w", err)
		}
		defer f.Close()
		out = newRecorder(f)
	}

	grp, ctx := errgroup.WithContext(ctx)
	for _, sc := range cfg.Sensors {
		mon := &monitor{
			cfg:    sc,
			period: cfg.Period,
			msg:    msg.WithPrefix(fmt.Sprintf("tsl-%d-%02x", sc.Bus, sc.Addr)),
			db:     db,
			out:    out,
		}
		grp.Go(func() error {
			return mon.run(ctx)
		})
	}

	err := grp.Wait()
	if err != nil {
		return err
	}

	if out != nil {
		msg.Infof("records: %d", out.n)
	}
	return nil
}

var openBus = func(bus int, addr uint8) (tsl2510.Bus, io.Closer, error) {
	b, err := tsl2510.OpenSMBus(bus, addr)
	if err != nil {
		return nil, nil, err
	}
	return b, b, nil
}

var newTrigger = func(sc SensorConfig, period time.Duration) (tsl2510.Trigger, error) {
	if sc.Chip == "" {
		return tsl2510.NewTicker(period, !sc.Flicker), nil
	}
	return tsl2510.NewGPIOTrigger(sc.Chip, sc.Line)
}

type monitor struct {
	cfg    SensorConfig
	period time.Duration
	msg    *log.Logger
	db     *caldb.DB
	out    *recorder

	seq uint32
}

func (mon *monitor) options(ctx context.Context) ([]tsl2510.Option, error) {
	opts := []tsl2510.Option{
		tsl2510.WithLogger(mon.msg),
		tsl2510.WithAutoGain(mon.cfg.AutoGain),
	}
	if mon.cfg.Ambient {
		opts = append(opts, tsl2510.WithSensorMode(tsl2510.AmbientOnly))
	}

	if mon.db == nil || mon.cfg.Serial == "" {
		return opts, nil
	}

	p, err := mon.db.Profile(ctx, mon.cfg.Serial)
	switch {
	case errors.Is(err, caldb.ErrNoProfile):
		mon.msg.Warnf("no profile for sensor %q, using defaults", mon.cfg.Serial)
		return opts, nil
	case err != nil:
		return nil, fmt.Errorf("could not retrieve profile: %w", err)
	}
	mon.msg.Debugf("profile: %+v", p)

	return append(opts, p.Options()...), nil
}

func (mon *monitor) run(ctx context.Context) error {
	opts, err := mon.options(ctx)
	if err != nil {
		return err
	}

	bus, closer, err := openBus(mon.cfg.Bus, mon.cfg.Addr)
	if err != nil {
		return fmt.Errorf("could not open bus %d: %w", mon.cfg.Bus, err)
	}
	defer closer.Close()

	dev, err := tsl2510.New(bus, opts...)
	if err != nil {
		return fmt.Errorf("could not create device: %w", err)
	}
	mon.msg.Infof("device %v (trimmed=%v)", dev.Variant(), dev.Trimmed())

	s := tsl2510.NewSensor(dev)
	err = s.SetFeature(tsl2510.FeatureALS, true)
	if err != nil {
		return fmt.Errorf("could not enable ALS: %w", err)
	}
	if mon.cfg.Flicker {
		err = s.SetFeature(tsl2510.FeatureFlicker, true)
		if err != nil {
			return fmt.Errorf("could not enable flicker detection: %w", err)
		}
	}

	trig, err := newTrigger(mon.cfg, mon.period)
	if err != nil {
		return fmt.Errorf("could not create trigger: %w", err)
	}
	defer trig.Close()

	err = s.Run(ctx, trig, func(u tsl2510.Update) {
		mon.handle(ctx, s, u)
	})
	if err != nil {
		return err
	}

	return s.Do(func(dev *tsl2510.Device) error {
		for _, f := range []tsl2510.Feature{tsl2510.FeatureFlicker, tsl2510.FeatureALS} {
			err := dev.SetFeature(f, false)
			if err != nil {
				return fmt.Errorf("could not disable %v: %w", f, err)
			}
		}
		return nil
	})
}

func (mon *monitor) handle(ctx context.Context, s *tsl2510.Sensor, u tsl2510.Update) {
	rec := tsl2510.Record{Seq: mon.seq}
	mon.seq++

	if u&tsl2510.UpdateAmbient != 0 {
		if res, ok := s.ALS(); ok {
			rec.Update |= tsl2510.UpdateAmbient
			rec.ALS = res
			mon.msg.Infof(
				"lux=%d avg=%d ir=%d clear=%d wb=%d sat=%v",
				res.Lux, res.LuxAvg, res.IR, res.Clear, res.Wideband, res.Saturated,
			)
		}
	}
	if u&(tsl2510.UpdateFlicker|tsl2510.UpdateSWFlicker) != 0 {
		if res, ok := s.Flicker(); ok {
			rec.Update |= tsl2510.UpdateSWFlicker
			rec.Flicker = res
			mon.msg.Infof(
				"flicker=%d.%03d Hz peak=%d mag=%d thr=%d frames=%d",
				res.Frequency/1000, res.Frequency%1000,
				res.Peak, res.Magnitude, res.Threshold, res.Frames,
			)
		}
	}
	if rec.Update == 0 {
		return
	}

	if mon.out != nil {
		err := mon.out.write(&rec)
		if err != nil {
			mon.msg.Errorf("could not write record %d: %+v", rec.Seq, err)
		}
	}

	if mon.db != nil && mon.cfg.Serial != "" {
		err := mon.db.Record(ctx, caldb.Measurement{
			Serial:  mon.cfg.Serial,
			Time:    time.Now(),
			Update:  rec.Update,
			ALS:     rec.ALS,
			Flicker: rec.Flicker,
		})
		if err != nil {
			mon.msg.Errorf("could not record measurement %d: %+v", rec.Seq, err)
		}
	}
}

// recorder serializes records of all sensors to a single stream.
type recorder struct {
	mu  sync.Mutex
	enc *tsl2510.Encoder
	n   int
}

func newRecorder(w io.Writer) *recorder {
	return &recorder{enc: tsl2510.NewEncoder(w)}
}

func (r *recorder) write(rec *tsl2510.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	err := r.enc.Encode(rec)
	if err != nil {
		return err
	}
	r.n++
	return nil
}
