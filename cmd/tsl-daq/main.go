// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command tsl-daq starts a TDAQ server driving a TSL2510 light sensor.
//
// The sensor is attached to I2C bus 1 at its default address unless
// the /config command says otherwise. ALS and flicker records are
// published on the /als and /flicker outputs.
package main // import "github.com/go-lpc/optics/cmd/tsl-daq"

import (
	"context"
	"log"
	"os"

	"github.com/go-daq/tdaq"
	"github.com/go-daq/tdaq/flags"
	"github.com/go-lpc/optics/tsl2510"
)

func main() {
	cmd := flags.New()

	dev := tsl2510.NewServer(1, tsl2510.AddrV0)

	srv := tdaq.New(cmd, os.Stdout)
	srv.CmdHandle("/config", dev.OnConfig)
	srv.CmdHandle("/init", dev.OnInit)
	srv.CmdHandle("/reset", dev.OnReset)
	srv.CmdHandle("/start", dev.OnStart)
	srv.CmdHandle("/stop", dev.OnStop)
	srv.CmdHandle("/quit", dev.OnQuit)

	srv.OutputHandle("/als", dev.ALSOutput)
	srv.OutputHandle("/flicker", dev.FlickerOutput)

	srv.RunHandle(dev.Run)

	err := srv.Run(context.Background())
	if err != nil {
		log.Panicf("error: %+v", err)
	}
}
