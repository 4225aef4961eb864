// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dsp provides integer-only signal processing kernels:
// square root, Hamming window, radix-2 FFT and magnitude in Q16 fixed point.
package dsp // import "github.com/go-lpc/optics/internal/dsp"

import "math"

const (
	// One is 1.0 in Q16.
	One = 1 << 16

	// TableLen is the number of entries of the sine and cosine tables,
	// covering one full period.
	TableLen = 512

	// WindowLen is the number of coefficients of the Hamming window.
	WindowLen = 128

	// MaxLen is the largest supported transform size.
	MaxLen = 256

	// Saturation is the raw sample level flagged as saturated.
	Saturation = 0x3fff
)

var (
	sinQ16  [TableLen]int64
	cosQ16  [TableLen]int64
	hamming [WindowLen]int64
)

func init() {
	for i := range sinQ16 {
		phi := 2 * math.Pi * float64(i) / TableLen
		sinQ16[i] = int64(math.Round(One * math.Sin(phi)))
		cosQ16[i] = int64(math.Round(One * math.Cos(phi)))
	}
	for i := range hamming {
		phi := 2 * math.Pi * float64(i) / WindowLen
		hamming[i] = int64(math.Round(One * (0.54 - 0.46*math.Cos(phi))))
	}
}

// Hamming returns the i-th Q16 coefficient of the 128-point Hamming window.
func Hamming(i int) int32 { return int32(hamming[i]) }

// Sin returns the Q16 sine of 2*pi*i/TableLen.
func Sin(i int) int32 { return int32(sinQ16[i]) }

// Cos returns the Q16 cosine of 2*pi*i/TableLen.
func Cos(i int) int32 { return int32(cosQ16[i]) }

// log2 returns log2(n) when n is a power of two, and -1 otherwise.
func log2(n int) int {
	if n <= 0 || n&(n-1) != 0 {
		return -1
	}
	i := 0
	for n > 1 {
		n >>= 1
		i++
	}
	return i
}

func bitReverse(x uint, log2n int) uint {
	var n uint
	for i := 0; i < log2n; i++ {
		n <<= 1
		n |= x & 1
		x >>= 1
	}
	return n
}
