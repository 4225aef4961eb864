// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tsl2510

import (
	"encoding/binary"
	"io"

	"github.com/go-lpc/optics/internal/crc16"
	"golang.org/x/xerrors"
)

const (
	gbHeader  = 0xb0 // record header marker
	gbTrailer = 0xa0 // record trailer marker
	alsHeader = 0xb1 // ALS block marker
	fdHeader  = 0xb4 // flicker block marker
)

// Record is one acquisition of a sensor, as exchanged on the wire.
// Only the results flagged in Update are encoded.
type Record struct {
	Seq     uint32 // record sequence number
	Update  Update
	ALS     ALSResult
	Flicker FlickerResult
}

// Encoder writes records to an output stream.
// Encoder computes the CRC-16 checksum of each record on the fly and
// appends it after the record trailer.
type Encoder struct {
	w   io.Writer
	buf []byte
	err error
	crc crc16.Hash16
}

// NewEncoder returns a new Encoder that writes to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{
		w:   w,
		buf: make([]byte, 8),
		crc: crc16.New(nil),
	}
}

// Encode writes rec to the stream, followed by its CRC-16 checksum.
func (enc *Encoder) Encode(rec *Record) error {
	if rec == nil {
		return nil
	}

	enc.crc.Reset()

	enc.writeU8(gbHeader)
	if enc.err != nil {
		return xerrors.Errorf("tsl2510: could not write record header marker: %w", enc.err)
	}
	enc.writeU32(rec.Seq)

	if rec.Update&UpdateAmbient != 0 {
		als := &rec.ALS
		enc.writeU8(alsHeader)
		enc.writeU32(als.Clear)
		enc.writeU32(uint32(als.IR))
		enc.writeU32(als.Wideband)
		enc.writeU32(als.RawClear)
		enc.writeU32(als.RawWideband)
		enc.writeU32(als.ClearGain)
		enc.writeU32(als.WidebandGain)
		enc.writeU32(als.TimeUs)
		enc.writeU64(als.Lux)
		enc.writeU64(als.LuxAvg)
		enc.writeBool(als.Saturated)
	}

	if rec.Update&(UpdateFlicker|UpdateSWFlicker) != 0 {
		fd := &rec.Flicker
		enc.writeU8(fdHeader)
		enc.writeU32(fd.Frequency)
		enc.writeU16(uint16(fd.Peak))
		enc.writeU32(uint32(fd.Magnitude))
		enc.writeU64(fd.Threshold)
		enc.writeU16(fd.ClearAvg)
		enc.writeU16(fd.WidebandAvg)
		enc.writeU16(fd.Gain)
		enc.writeU16(fd.Checksum)
		enc.writeU32(uint32(fd.Overflows))
		enc.writeU64(fd.Frames)
	}

	enc.writeU8(gbTrailer)
	crc := enc.crc.Sum16()
	enc.writeU16(crc)

	if enc.err != nil {
		return xerrors.Errorf("tsl2510: could not write record %d: %w", rec.Seq, enc.err)
	}
	return nil
}

func (enc *Encoder) write(p []byte) {
	if enc.err != nil {
		return
	}
	_, enc.err = enc.w.Write(p)
	_, _ = enc.crc.Write(p) // can not fail.
}

func (enc *Encoder) writeBool(v bool) {
	var b uint8
	if v {
		b = 1
	}
	enc.writeU8(b)
}

func (enc *Encoder) writeU8(v uint8) {
	enc.buf[0] = v
	enc.write(enc.buf[:1])
}

func (enc *Encoder) writeU16(v uint16) {
	binary.BigEndian.PutUint16(enc.buf[:2], v)
	enc.write(enc.buf[:2])
}

func (enc *Encoder) writeU32(v uint32) {
	binary.BigEndian.PutUint32(enc.buf[:4], v)
	enc.write(enc.buf[:4])
}

func (enc *Encoder) writeU64(v uint64) {
	binary.BigEndian.PutUint64(enc.buf[:8], v)
	enc.write(enc.buf[:8])
}

// Decoder reads and validates records from an input stream.
type Decoder struct {
	r   io.Reader
	buf []byte
	err error
	crc crc16.Hash16
}

// NewDecoder returns a new Decoder that reads from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{
		r:   r,
		buf: make([]byte, 8),
		crc: crc16.New(nil),
	}
}

// Decode reads the next record from the stream.
// Decode returns io.EOF when the stream ends on a record boundary.
func (dec *Decoder) Decode(rec *Record) error {
	dec.crc.Reset()

	v := dec.readU8()
	if dec.err != nil {
		if xerrors.Is(dec.err, io.EOF) {
			return io.EOF
		}
		return xerrors.Errorf("tsl2510: could not read record header marker: %w", dec.err)
	}
	if v != gbHeader {
		return xerrors.Errorf("tsl2510: invalid record header marker (got=0x%x)", v)
	}

	*rec = Record{Seq: dec.readU32()}

loop:
	for {
		v := dec.readU8()
		if dec.err != nil {
			if xerrors.Is(dec.err, io.EOF) {
				dec.err = io.ErrUnexpectedEOF
			}
			return xerrors.Errorf(
				"tsl2510: record %d could not read block header/record trailer: %w",
				rec.Seq, dec.err,
			)
		}

		switch v {
		default:
			return xerrors.Errorf("tsl2510: record %d invalid block/trailer marker (got=0x%x)", rec.Seq, v)

		case alsHeader:
			als := &rec.ALS
			als.Clear = dec.readU32()
			als.IR = int32(dec.readU32())
			als.Wideband = dec.readU32()
			als.RawClear = dec.readU32()
			als.RawWideband = dec.readU32()
			als.ClearGain = dec.readU32()
			als.WidebandGain = dec.readU32()
			als.TimeUs = dec.readU32()
			als.Lux = dec.readU64()
			als.LuxAvg = dec.readU64()
			als.Saturated = dec.readU8() != 0
			rec.Update |= UpdateAmbient

		case fdHeader:
			fd := &rec.Flicker
			fd.Frequency = dec.readU32()
			fd.Peak = int(dec.readU16())
			fd.Magnitude = int32(dec.readU32())
			fd.Threshold = dec.readU64()
			fd.ClearAvg = dec.readU16()
			fd.WidebandAvg = dec.readU16()
			fd.Gain = dec.readU16()
			fd.Checksum = dec.readU16()
			fd.Overflows = int(dec.readU32())
			fd.Frames = dec.readU64()
			rec.Update |= UpdateSWFlicker

		case gbTrailer:
			var (
				comp = dec.crc.Sum16()
				recv = dec.readU16()
			)
			if dec.err != nil {
				return xerrors.Errorf("tsl2510: record %d could not read CRC-16: %w", rec.Seq, dec.err)
			}
			if comp != recv {
				return xerrors.Errorf(
					"tsl2510: record %d inconsistent CRC: recv=0x%04x comp=0x%04x",
					rec.Seq, recv, comp,
				)
			}
			break loop
		}

		if dec.err != nil {
			if xerrors.Is(dec.err, io.EOF) {
				dec.err = io.ErrUnexpectedEOF
			}
			return xerrors.Errorf("tsl2510: record %d could not read block: %w", rec.Seq, dec.err)
		}
	}

	return nil
}

func (dec *Decoder) load(n int) {
	if dec.err != nil {
		return
	}
	_, dec.err = io.ReadFull(dec.r, dec.buf[:n])
	if dec.err == nil {
		_, _ = dec.crc.Write(dec.buf[:n]) // can not fail.
	}
}

func (dec *Decoder) readU8() uint8 {
	dec.load(1)
	return dec.buf[0]
}

func (dec *Decoder) readU16() uint16 {
	dec.load(2)
	return binary.BigEndian.Uint16(dec.buf[:2])
}

func (dec *Decoder) readU32() uint32 {
	dec.load(4)
	return binary.BigEndian.Uint32(dec.buf[:4])
}

func (dec *Decoder) readU64() uint64 {
	dec.load(8)
	return binary.BigEndian.Uint64(dec.buf[:8])
}
