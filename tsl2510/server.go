// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tsl2510

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/go-daq/tdaq"
)

// Server exposes a sensor as a TDAQ process.
//
// The /config command body holds 4 uint32 values: the SMBus adapter
// number, the sensor address, the servicing period in milliseconds and
// the bit set of features to run (1<<FeatureALS | 1<<FeatureFlicker).
// An empty body keeps the current configuration.
type Server struct {
	bus    int
	addr   uint8
	period time.Duration
	feats  uint32
	opts   []Option

	open func(bus int, addr uint8) (Bus, error)

	port Bus
	dev  *Sensor

	seq  uint32
	n    int
	drop int
	als  chan []byte
	fd   chan []byte
}

// NewServer returns a TDAQ server for the sensor at addr on the SMBus
// adapter bus. opts are applied to the device at /init.
func NewServer(bus int, addr uint8, opts ...Option) *Server {
	return &Server{
		bus:    bus,
		addr:   addr,
		period: 100 * time.Millisecond,
		feats:  1 << FeatureALS,
		opts:   opts,
		open: func(bus int, addr uint8) (Bus, error) {
			return OpenSMBus(bus, addr)
		},
	}
}

func (srv *Server) features() []Feature {
	var o []Feature
	for _, f := range []Feature{FeatureALS, FeatureFlicker} {
		if srv.feats&(1<<f) != 0 {
			o = append(o, f)
		}
	}
	return o
}

func (srv *Server) reset() {
	srv.seq = 0
	srv.n = 0
	srv.drop = 0
	srv.als = make(chan []byte, 1024)
	srv.fd = make(chan []byte, 1024)
}

func (srv *Server) close() error {
	if srv.port == nil {
		return nil
	}
	var err error
	if c, ok := srv.port.(io.Closer); ok {
		err = c.Close()
	}
	srv.port = nil
	srv.dev = nil
	return err
}

func (srv *Server) OnConfig(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /config command...")
	if len(req.Body) == 0 {
		return nil
	}

	dec := tdaq.NewDecoder(bytes.NewReader(req.Body))
	var (
		bus    = dec.ReadU32()
		addr   = dec.ReadU32()
		period = dec.ReadU32()
		feats  = dec.ReadU32()
	)
	switch {
	case addr > 0x7f:
		return fmt.Errorf("tsl2510: invalid sensor address 0x%x", addr)
	case period == 0:
		return fmt.Errorf("tsl2510: invalid servicing period %dms", period)
	}

	srv.bus = int(bus)
	srv.addr = uint8(addr)
	srv.period = time.Duration(period) * time.Millisecond
	srv.feats = feats
	ctx.Msg.Infof(
		"config: bus=%d addr=0x%02x period=%v features=%v",
		srv.bus, srv.addr, srv.period, srv.features(),
	)
	return nil
}

func (srv *Server) OnInit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /init command...")
	err := srv.close()
	if err != nil {
		ctx.Msg.Warnf("could not close previous bus: %+v", err)
	}

	port, err := srv.open(srv.bus, srv.addr)
	if err != nil {
		ctx.Msg.Errorf("could not open bus: %+v", err)
		return fmt.Errorf("tsl2510: could not open bus %d: %w", srv.bus, err)
	}

	opts := append([]Option{WithLogger(ctx.Msg)}, srv.opts...)
	dev, err := New(port, opts...)
	if err != nil {
		srv.port = port
		_ = srv.close()
		ctx.Msg.Errorf("could not create device: %+v", err)
		return fmt.Errorf("tsl2510: could not create device: %w", err)
	}

	srv.port = port
	srv.dev = NewSensor(dev)
	srv.reset()
	return nil
}

func (srv *Server) OnReset(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /reset command...")
	if srv.dev == nil {
		return fmt.Errorf("tsl2510: device not initialized")
	}
	err := srv.dev.Do(func(dev *Device) error { return dev.Reset() })
	if err != nil {
		return fmt.Errorf("tsl2510: could not reset device: %w", err)
	}
	srv.reset()
	return nil
}

func (srv *Server) OnStart(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /start command...")
	if srv.dev == nil {
		return fmt.Errorf("tsl2510: device not initialized")
	}
	for _, f := range srv.features() {
		err := srv.dev.SetFeature(f, true)
		if err != nil {
			return fmt.Errorf("tsl2510: could not start %v: %w", f, err)
		}
	}
	return nil
}

func (srv *Server) OnStop(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /stop command... -> n=%d (dropped=%d)", srv.n, srv.drop)
	if srv.dev == nil {
		return nil
	}
	for _, f := range srv.features() {
		err := srv.dev.SetFeature(f, false)
		if err != nil {
			return fmt.Errorf("tsl2510: could not stop %v: %w", f, err)
		}
	}
	return nil
}

func (srv *Server) OnQuit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /quit command...")
	return srv.close()
}

// ALSOutput publishes ALS records.
func (srv *Server) ALSOutput(ctx tdaq.Context, dst *tdaq.Frame) error {
	select {
	case <-ctx.Ctx.Done():
		dst.Body = nil
		return nil
	case data := <-srv.als:
		dst.Body = data
	}
	return nil
}

// FlickerOutput publishes flicker records.
func (srv *Server) FlickerOutput(ctx tdaq.Context, dst *tdaq.Frame) error {
	select {
	case <-ctx.Ctx.Done():
		dst.Body = nil
		return nil
	case data := <-srv.fd:
		dst.Body = data
	}
	return nil
}

// Run services the sensor until the run is stopped.
func (srv *Server) Run(ctx tdaq.Context) error {
	if srv.dev == nil {
		return fmt.Errorf("tsl2510: device not initialized")
	}

	poll := srv.feats&(1<<FeatureFlicker) == 0
	trig := NewTicker(srv.period, poll)
	defer trig.Close()

	return srv.dev.Run(ctx.Ctx, trig, func(u Update) {
		srv.publish(ctx, u)
	})
}

func (srv *Server) publish(ctx tdaq.Context, u Update) {
	if u&UpdateAmbient != 0 {
		if res, ok := srv.dev.ALS(); ok {
			srv.send(ctx, srv.als, &Record{Update: UpdateAmbient, ALS: res})
		}
	}
	if u&(UpdateFlicker|UpdateSWFlicker) != 0 {
		if res, ok := srv.dev.Flicker(); ok {
			srv.send(ctx, srv.fd, &Record{Update: UpdateSWFlicker, Flicker: res})
		}
	}
}

func (srv *Server) send(ctx tdaq.Context, ch chan []byte, rec *Record) {
	rec.Seq = srv.seq
	srv.seq++

	buf := new(bytes.Buffer)
	err := NewEncoder(buf).Encode(rec)
	if err != nil {
		ctx.Msg.Errorf("could not encode record %d: %+v", rec.Seq, err)
		return
	}

	select {
	case ch <- buf.Bytes():
		srv.n++
	default:
		srv.drop++
	}
}
