// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package regs holds the register map of the TSL2510 light sensor.
package regs // import "github.com/go-lpc/optics/tsl2510/internal/regs"

// ID is the logical index of a device register.
type ID uint8

const (
	ModChannelCtrl ID = iota
	Enable
	MeasMode0
	MeasMode1
	SampleTime0
	SampleTime1
	ALSNrSamples0
	ALSNrSamples1
	FDNrSamples0
	FDNrSamples1
	WTime
	AILT0
	AILT1
	AILT2
	AIHT0
	AIHT1
	AIHT2
	AuxID
	RevID
	ChipID
	Status
	ALSStatus
	ALSDataL0
	ALSDataH0
	ALSDataL1
	ALSDataH1
	ALSDataL2
	ALSDataH2
	ALSStatus2
	ALSStatus3
	Status2
	Status3
	Status4
	Status5
	Cfg0
	Cfg1
	Cfg2
	Cfg3
	Cfg4
	Cfg5
	Cfg6
	Cfg7
	Cfg8
	Cfg9
	AGCNrSamplesLo
	AGCNrSamplesHi
	TriggerMode
	Control
	IntEnab
	SIEn
	ModCompCfg1
	MeasSeqrFD0
	MeasSeqrALSFD1
	MeasSeqrAPersVSyncWait
	MeasSeqrResidual0
	MeasSeqrResidual1Wait
	Step0ModGainXL
	Step1ModGainXL
	Step2ModGainXL
	Step3ModGainXL
	Step0ModPhdSmuxL
	Step0ModPhdSmuxH
	Step1ModPhdSmuxL
	Step1ModPhdSmuxH
	Step2ModPhdSmuxL
	Step2ModPhdSmuxH
	Step3ModPhdSmuxL
	Step3ModPhdSmuxH
	ModCalibCfg0
	ModCalibCfg2
	VSyncPeriodL
	VSyncPeriodH
	VSyncPeriodTargetL
	VSyncPeriodTargetH
	VSyncControl
	VSyncCfg
	VSyncGPIOInt
	ModFIFODataCfg0
	ModFIFODataCfg1
	ModFIFODataCfg2
	FIFOThr
	FIFOLevel
	FIFOStatus0
	FIFOData

	Max // number of registers
)

// Register is an entry of the device register map.
type Register struct {
	Addr  uint8 // physical address on the bus
	Reset uint8 // value after power-on or soft reset
}

var table = [Max]Register{
	ModChannelCtrl:         {0x40, 0x00},
	Enable:                 {0x80, 0x00},
	MeasMode0:              {0x81, 0x04},
	MeasMode1:              {0x82, 0x0c},
	SampleTime0:            {0x83, 0xb3},
	SampleTime1:            {0x84, 0x00},
	ALSNrSamples0:          {0x85, 0x00},
	ALSNrSamples1:          {0x86, 0x00},
	FDNrSamples0:           {0x87, 0x00},
	FDNrSamples1:           {0x88, 0x00},
	WTime:                  {0x89, 0x00},
	AILT0:                  {0x8a, 0x00},
	AILT1:                  {0x8b, 0x00},
	AILT2:                  {0x8c, 0x00},
	AIHT0:                  {0x8d, 0x00},
	AIHT1:                  {0x8e, 0x00},
	AIHT2:                  {0x8f, 0x00},
	AuxID:                  {0x90, 0x00},
	RevID:                  {0x91, 0x10},
	ChipID:                 {0x92, 0x5c},
	Status:                 {0x93, 0x00},
	ALSStatus:              {0x94, 0x00},
	ALSDataL0:              {0x95, 0x00},
	ALSDataH0:              {0x96, 0x00},
	ALSDataL1:              {0x97, 0x00},
	ALSDataH1:              {0x98, 0x00},
	ALSDataL2:              {0x99, 0x00},
	ALSDataH2:              {0x9a, 0x00},
	ALSStatus2:             {0x9b, 0x00},
	ALSStatus3:             {0x9c, 0x00},
	Status2:                {0x9d, 0x00},
	Status3:                {0x9e, 0x08},
	Status4:                {0x9f, 0x00},
	Status5:                {0xa0, 0x00},
	Cfg0:                   {0xa1, 0x08},
	Cfg1:                   {0xa2, 0x00},
	Cfg2:                   {0xa3, 0x01},
	Cfg3:                   {0xa4, 0x00},
	Cfg4:                   {0xa5, 0x00},
	Cfg5:                   {0xa6, 0x00},
	Cfg6:                   {0xa7, 0x03},
	Cfg7:                   {0xa8, 0x01},
	Cfg8:                   {0xa9, 0xc4},
	Cfg9:                   {0xaa, 0x00},
	AGCNrSamplesLo:         {0xac, 0x00},
	AGCNrSamplesHi:         {0xad, 0x00},
	TriggerMode:            {0xae, 0x00},
	Control:                {0xb1, 0x00},
	IntEnab:                {0xba, 0x00},
	SIEn:                   {0xbb, 0x00},
	ModCompCfg1:            {0xce, 0x80},
	MeasSeqrFD0:            {0xcf, 0x01},
	MeasSeqrALSFD1:         {0xd0, 0x01},
	MeasSeqrAPersVSyncWait: {0xd1, 0x01},
	MeasSeqrResidual0:      {0xd2, 0xff},
	MeasSeqrResidual1Wait:  {0xd3, 0x1f},
	Step0ModGainXL:         {0xd4, 0x88},
	Step1ModGainXL:         {0xd6, 0x88},
	Step2ModGainXL:         {0xd8, 0x88},
	Step3ModGainXL:         {0xda, 0x88},
	Step0ModPhdSmuxL:       {0xdc, 0x66},
	Step0ModPhdSmuxH:       {0xdd, 0x06},
	Step1ModPhdSmuxL:       {0xde, 0x84},
	Step1ModPhdSmuxH:       {0xdf, 0xf3},
	Step2ModPhdSmuxL:       {0xe0, 0x07},
	Step2ModPhdSmuxH:       {0xe1, 0xf8},
	Step3ModPhdSmuxL:       {0xe2, 0x24},
	Step3ModPhdSmuxH:       {0xe3, 0x03},
	ModCalibCfg0:           {0xe4, 0xff},
	ModCalibCfg2:           {0xe6, 0xd3},
	VSyncPeriodL:           {0xf2, 0x00},
	VSyncPeriodH:           {0xf3, 0x00},
	VSyncPeriodTargetL:     {0xf4, 0x00},
	VSyncPeriodTargetH:     {0xf5, 0x00},
	VSyncControl:           {0xf6, 0x00},
	VSyncCfg:               {0xf7, 0x00},
	VSyncGPIOInt:           {0xf8, 0x02},
	ModFIFODataCfg0:        {0xf9, 0x8f},
	ModFIFODataCfg1:        {0xfa, 0x8f},
	ModFIFODataCfg2:        {0xfb, 0x8f},
	FIFOThr:                {0xfc, 0x7f},
	FIFOLevel:              {0xfd, 0x00},
	FIFOStatus0:            {0xfe, 0x00},
	FIFOData:               {0xff, 0x00},
}

// Addr returns the physical address of register id.
// id must be smaller than Max.
func Addr(id ID) uint8 { return table[id].Addr }

// Reset returns the reset value of register id.
// id must be smaller than Max.
func Reset(id ID) uint8 { return table[id].Reset }

// Lookup returns the logical id of the register at the physical address addr.
func Lookup(addr uint8) (ID, bool) {
	for i, r := range table {
		if r.Addr == addr {
			return ID(i), true
		}
	}
	return Max, false
}

// ENABLE
const (
	PON  = 0x01
	AEN  = 0x02
	FDEN = 0x40
)

// STATUS
const (
	SINT = 0x01
	FINT = 0x04
	AINT = 0x08
	MINT = 0x80
)

// STATUS2
const (
	MOD0SatAnalog = 0x01
	MOD1SatAnalog = 0x02
	FDSatDigital  = 0x08
	ASatDigital   = 0x10
	ALSDataValid  = 0x40
)

// ALS_STATUS
const (
	ALSData1Scaled    = 0x02
	ALSData0Scaled    = 0x04
	ALSData1AnalogSat = 0x10
	ALSData0AnalogSat = 0x20
)

// ALS_STATUS2 nibbles: clear (low) and wideband (high) channel
// scale, also read back as gain codes when auto-gain runs.
const (
	ALSClearNibble    = 0x0f
	ALSWidebandNibble = 0xf0
)

// INTENAB
const (
	SIEN = 0x01
	FIEN = 0x04
	AIEN = 0x08
	MIEN = 0x80
)

// SIEN register
const SIENFD = 0x02

// MEAS_MODE1
const (
	FDGainWriteEnable      = 0x20
	FDChecksumWriteEnable  = 0x40
	FDEndMarkerWriteEnable = 0x80
)

// CONTROL
const (
	FIFOClear = 0x02
	SoftReset = 0x08
)

// FIFO_STATUS0
const (
	FIFOLevelLSB  = 0x03
	FIFOUnderflow = 0x40
	FIFOOverflow  = 0x80
)

// Field masks.
const (
	MaskAPers             = 0x0f // CFG5
	MaskAIntDirect        = 0x80 // CFG2
	MaskFIFOThrLSB        = 0x01 // CFG2
	MaskAGain0            = 0x0f // STEP0_MOD_GAINX_L
	MaskAGain1            = 0xf0 // STEP0_MOD_GAINX_L
	MaskAGCASat           = 0xf0 // STEP1_MOD_PHDX_SMUX_H
	MaskAGCPredict        = 0xf0 // STEP2_MOD_PHDX_SMUX_H
	MaskAGCNthIteration   = 0x20 // MOD_CALIB_CFG2
	MaskMaxModGain        = 0xf0 // CFG8
	MaskFIFOWriteEnable   = 0x80 // MOD_FIFO_DATA_CFGx
	MaskFDNrSamplesHi     = 0x07 // FD_NR_SAMPLES1
	MaskAGCNrSamplesHi    = 0x07 // AGC_NR_SAMPLES_HI
	MaskSampleTimeHi      = 0x07 // SAMPLE_TIME1
	MaskSeqrStep          = 0x0f // MEAS_SEQR_*
	MaskSeqrFDStep        = 0xf0 // MEAS_SEQR_FD_0
	AGCNthIterationEnable = 0x01 // MOD_CALIB_CFG0 while AGC runs
	AGCNthIterationIdle   = 0xff // MOD_CALIB_CFG0 while AGC is off
)

// Device identification.
const (
	DeviceID      = 0x5c
	DeviceIDMask  = 0xff
	RevisionID    = 0x10
	RevisionUntrm = 0x00
	RevisionMask  = 0x1f
	Trimmed       = 0x10
)
