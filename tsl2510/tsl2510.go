// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package tsl2510 drives the TSL2510 ambient light and flicker sensor.
//
// A Device runs two features: ALS, which reports lux and IR levels
// from the clear and wideband channels, and flicker detection, which
// estimates the dominant light modulation frequency from frames of
// samples drained from the sensor FIFO.
//
// Devices are serviced from the sensor interrupt line (Dispatch) or
// by polling (Poll). Results are read back with ALS and Flicker.
package tsl2510 // import "github.com/go-lpc/optics/tsl2510"
