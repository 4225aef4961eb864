// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tsl2510

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Bus is the register transport to a sensor.
// addr is the physical register address of the first byte transferred.
type Bus interface {
	Read(addr uint8, p []byte) error
	Write(addr uint8, p []byte) error
}

// RetryPolicy configures how failed bus transactions are retried.
type RetryPolicy struct {
	Retries int           // number of retries after the first attempt
	Delay   time.Duration // wait before each retry
	Backoff bool          // double the wait after each retry
}

// DefaultRetryPolicy is used when no policy is configured.
var DefaultRetryPolicy = RetryPolicy{
	Retries: 5,
	Delay:   10 * time.Millisecond,
}

// TransportError is returned when a bus transaction failed after
// exhausting its retry budget.
type TransportError struct {
	Op       string // "read" or "write"
	Addr     uint8  // register address
	Attempts int
	Err      error // last error from the bus
}

func (e *TransportError) Error() string {
	return fmt.Sprintf(
		"tsl2510: could not %s register 0x%02x after %d attempts: %+v",
		e.Op, e.Addr, e.Attempts, e.Err,
	)
}

func (e *TransportError) Unwrap() error { return e.Err }

var sleep = time.Sleep

// port is a Bus with retries and a transport error counter.
type port struct {
	bus   Bus
	retry RetryPolicy
	errs  *atomic.Uint64
}

func (p *port) read(addr uint8, buf []byte) error {
	return p.do("read", addr, buf, p.bus.Read)
}

func (p *port) write(addr uint8, buf []byte) error {
	return p.do("write", addr, buf, p.bus.Write)
}

func (p *port) do(op string, addr uint8, buf []byte, f func(uint8, []byte) error) error {
	var (
		err   error
		delay = p.retry.Delay
		n     = 0
	)
	for {
		n++
		err = f(addr, buf)
		if err == nil {
			return nil
		}
		if n > p.retry.Retries {
			break
		}
		sleep(delay)
		if p.retry.Backoff {
			delay *= 2
		}
	}
	p.errs.Add(1)
	return &TransportError{Op: op, Addr: addr, Attempts: n, Err: err}
}
