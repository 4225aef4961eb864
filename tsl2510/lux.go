// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tsl2510

// Coefficients holds the calibration constants of the lux and IR formulas.
//
//	IR  = (Wideband*wb - Clear*clear) / 1000
//	lux = clear * (A*ratio + B) >> 10
type Coefficients struct {
	A        uint32
	B        uint32
	Wideband uint32 // x1000
	Clear    uint32 // x1000
}

// DefaultCoefficients are the factory lux and IR coefficients.
var DefaultCoefficients = Coefficients{
	A:        61,
	B:        45,
	Wideband: 1600,
	Clear:    2000,
}

const (
	maxCWRatio  = 15
	luxAvgCount = 8
)

// Sample is one ALS conversion, after channel scaling.
type Sample struct {
	Clear     uint32
	Wideband  uint32
	Saturated bool
}

// AlgConfig configures an ALS algorithm.
type AlgConfig struct {
	TimeUs uint32 // integration time
	Gain   uint32 // linear gain, x1000
	Coef   Coefficients
}

// LuxResult is the output of an ALS algorithm.
type LuxResult struct {
	RawClear    uint32
	RawWideband uint32
	Clear       uint32 // IR-rejected clear counts
	Wideband    uint32 // IR-rejected wideband counts
	IR          uint32
	CWRatio     uint32
	Lux         uint64
	LuxAvg      uint64 // average over the last samples
}

// Algorithm turns ALS samples into lux and IR readings.
type Algorithm interface {
	Init(cfg AlgConfig)
	Process(s Sample)
	Result() LuxResult
	SetConfig(cfg AlgConfig)
	Config() AlgConfig
}

// luxAlgorithm implements the clear/wideband ratio lux formula.
type luxAlgorithm struct {
	cfg AlgConfig
	res LuxResult

	hist [luxAvgCount]uint64
	n    int
	pos  int
}

var _ Algorithm = (*luxAlgorithm)(nil)

func (alg *luxAlgorithm) Init(cfg AlgConfig) {
	*alg = luxAlgorithm{cfg: cfg}
}

func (alg *luxAlgorithm) SetConfig(cfg AlgConfig) { alg.cfg = cfg }
func (alg *luxAlgorithm) Config() AlgConfig { return alg.cfg }
func (alg *luxAlgorithm) Result() LuxResult { return alg.res }

func (alg *luxAlgorithm) Process(s Sample) {
	var (
		coef = alg.cfg.Coef
		clr  = uint64(s.Clear)
		wb   = uint64(s.Wideband)
	)

	alg.res.RawClear = s.Clear
	alg.res.RawWideband = s.Wideband
	alg.res.Clear = s.Clear
	alg.res.Wideband = s.Wideband

	alg.res.IR = 0
	if !s.Saturated && wb >= clr {
		var (
			tw = uint64(coef.Wideband) * wb
			tc = uint64(coef.Clear) * clr
		)
		if tw > tc {
			alg.res.IR = uint32((tw - tc) / 1000)
		}
	}

	ratio := uint64(maxCWRatio)
	if wb != 0 {
		ratio = min(clr/wb, maxCWRatio)
	}
	alg.res.CWRatio = uint32(ratio)

	var lux uint64
	switch ratio {
	case 0:
		lux = clr * (uint64(coef.A)*clr/wb + uint64(coef.B))
	default:
		lux = clr * (uint64(coef.A)*ratio + uint64(coef.B))
	}
	alg.res.Lux = lux >> 10

	alg.hist[alg.pos] = alg.res.Lux
	alg.pos = (alg.pos + 1) % luxAvgCount
	if alg.n < luxAvgCount {
		alg.n++
	}
	var sum uint64
	for _, v := range alg.hist[:alg.n] {
		sum += v
	}
	alg.res.LuxAvg = sum / uint64(alg.n)
}
