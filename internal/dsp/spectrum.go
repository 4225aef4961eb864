// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dsp

// Spectrum holds the scratch buffers of one magnitude-spectrum computation.
// A Spectrum must not be shared between concurrent transforms.
type Spectrum struct {
	br [MaxLen]int32
	bi [MaxLen]int32
	re [MaxLen]int64
	im [MaxLen]int64
}

// Transform replaces data with its magnitude spectrum.
//
// When window is true, samples are weighted by the n-point Hamming
// window, taken from the WindowLen-point table with a stride of
// WindowLen/n (which requires len(data) <= WindowLen), and rescaled to Q6.
// Otherwise they are only rescaled to Q6.
//
// Transform reports whether any input sample reached the saturation level
// and whether the spectrum was computed. Unsupported sizes leave data
// untouched.
func (s *Spectrum) Transform(data []int32, window bool) (saturated, ok bool) {
	n := len(data)
	if n > MaxLen || log2(n) < 0 || (window && n > WindowLen) {
		return false, false
	}

	stride := 0
	if window {
		stride = WindowLen / n
	}
	for i, v := range data {
		if v >= Saturation {
			saturated = true
		}
		w := int64(One)
		if window {
			w = hamming[i*stride]
		}
		s.br[i] = int32((int64(v) * w) >> 10)
		s.bi[i] = 0
	}

	var (
		re = s.re[:n]
		im = s.im[:n]
	)
	FFT(s.br[:n], s.bi[:n], re, im)
	for i := range re {
		re[i] >>= 6
		im[i] >>= 6
	}
	Magnitude(re, im, data)
	return saturated, true
}
