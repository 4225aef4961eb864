// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dsp

// FFT computes the radix-2 decimation-in-time transform of (ar, ai)
// into (Ar, Ai), scaled to Q16.
// len(ar) must be a power of two no larger than TableLen, and all four
// slices must have the same length.
// FFT reports whether the transform was performed.
func FFT(ar, ai []int32, Ar, Ai []int64) bool {
	n := len(ar)
	log2n := log2(n)
	if log2n < 0 || n > TableLen || len(ai) != n || len(Ar) != n || len(Ai) != n {
		return false
	}

	for i := 0; i < n; i++ {
		rev := bitReverse(uint(i), log2n)
		Ar[i] = int64(ar[rev]) << 16
		Ai[i] = int64(ai[rev]) << 16
	}

	for s := 1; s <= log2n; s++ {
		var (
			m    = 1 << s
			half = m >> 1
			wmr  = cosQ16[TableLen>>s]
			wmi  = -sinQ16[TableLen>>s]
		)
		for k := 0; k < n; k += m {
			var (
				wr int64 = One
				wi int64
			)
			for j := 0; j < half; j++ {
				i1 := k + j
				i2 := i1 + half

				tr := (wr*Ar[i2] - wi*Ai[i2]) >> 16
				ti := (wr*Ai[i2] + wi*Ar[i2]) >> 16
				ur := Ar[i1]
				ui := Ai[i1]

				Ar[i1] = ur + tr
				Ai[i1] = ui + ti
				Ar[i2] = ur - tr
				Ai[i2] = ui - ti

				wr, wi = (wr*wmr-wi*wmi)>>16, (wr*wmi+wi*wmr)>>16
			}
		}
	}
	return true
}

// Magnitude stores in mag the modulus of each (re, im) bin.
// Inputs are shifted right by 4 before squaring and each square by 7,
// so bins up to 50 bits wide do not overflow.
func Magnitude(re, im []int64, mag []int32) {
	for i := range mag {
		tr := re[i] >> 4
		ti := im[i] >> 4
		sq := uint64((tr*tr)>>7) + uint64((ti*ti)>>7)
		mag[i] = int32(ISqrt(sq))
	}
}
