// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tsl2510

import (
	"bytes"
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"
)

func TestCodec(t *testing.T) {
	recs := []Record{
		{
			Seq:    1,
			Update: UpdateAmbient,
			ALS: ALSResult{
				Clear: 1000, IR: 1200, Wideband: 2000,
				RawClear: 1000, RawWideband: 2000,
				ClearGain: 2000, WidebandGain: 2000,
				TimeUs: 50000, Lux: 73, LuxAvg: 73,
			},
		},
		{
			Seq:    2,
			Update: UpdateSWFlicker,
			Flicker: FlickerResult{
				Frequency: 100031, Peak: 10, Magnitude: 1240000,
				Threshold: 37500, ClearAvg: 500, WidebandAvg: 500,
				Gain: 0x11, Checksum: 0x1234, Overflows: 2, Frames: 42,
			},
		},
		{
			Seq:    3,
			Update: UpdateAmbient | UpdateSWFlicker,
			ALS:    ALSResult{IR: IRSaturated, Saturated: true},
			Flicker: FlickerResult{
				Frequency: 120038, Peak: 12, Frames: 1 << 40,
			},
		},
		{Seq: 4},
	}

	buf := new(bytes.Buffer)
	enc := NewEncoder(buf)
	for i := range recs {
		err := enc.Encode(&recs[i])
		if err != nil {
			t.Fatalf("could not encode record %d: %+v", i, err)
		}
	}

	dec := NewDecoder(bytes.NewReader(buf.Bytes()))
	for i, want := range recs {
		var got Record
		err := dec.Decode(&got)
		if err != nil {
			t.Fatalf("could not decode record %d: %+v", i, err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("record %d: round trip failed:\ngot= %+v\nwant=%+v", i, got, want)
		}
	}

	var rec Record
	err := dec.Decode(&rec)
	if err != io.EOF {
		t.Fatalf("invalid error: got=%v, want=%v", err, io.EOF)
	}
}

func TestCodecSize(t *testing.T) {
	buf := new(bytes.Buffer)
	err := NewEncoder(buf).Encode(&Record{Update: UpdateAmbient | UpdateSWFlicker})
	if err != nil {
		t.Fatalf("could not encode: %+v", err)
	}
	const want = 1 + 4 + (1 + 8*4 + 2*8 + 1) + (1 + 4 + 2 + 4 + 8 + 4*2 + 4 + 8) + 1 + 2
	if got := buf.Len(); got != want {
		t.Fatalf("invalid record size: got=%d, want=%d", got, want)
	}
}

func TestDecodeErrors(t *testing.T) {
	buf := new(bytes.Buffer)
	err := NewEncoder(buf).Encode(&Record{
		Seq:    7,
		Update: UpdateAmbient,
		ALS:    ALSResult{Clear: 1, Lux: 2},
	})
	if err != nil {
		t.Fatalf("could not encode: %+v", err)
	}
	raw := buf.Bytes()

	for _, tc := range []struct {
		name string
		raw  []byte
		want string
		err  error
	}{
		{
			name: "header",
			raw:  append([]byte{0x42}, raw[1:]...),
			want: "invalid record header marker",
		},
		{
			name: "block",
			raw:  append(append([]byte{}, raw[:5]...), 0x42),
			want: "invalid block/trailer marker",
		},
		{
			name: "crc",
			raw: func() []byte {
				o := append([]byte{}, raw...)
				o[8] ^= 0xff
				return o
			}(),
			want: "inconsistent CRC",
		},
		{
			name: "short-block",
			raw:  raw[:12],
			err:  io.ErrUnexpectedEOF,
		},
		{
			name: "short-crc",
			raw:  raw[:len(raw)-1],
			err:  io.ErrUnexpectedEOF,
		},
		{
			name: "no-trailer",
			raw:  raw[:5],
			err:  io.ErrUnexpectedEOF,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var rec Record
			err := NewDecoder(bytes.NewReader(tc.raw)).Decode(&rec)
			if err == nil {
				t.Fatalf("expected an error")
			}
			if tc.want != "" && !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("invalid error: got=%q, want=%q", err, tc.want)
			}
			if tc.err != nil && !errors.Is(err, tc.err) {
				t.Fatalf("invalid error: got=%v, want=%v", err, tc.err)
			}
		})
	}
}

type failWriter struct{ n int }

func (w *failWriter) Write(p []byte) (int, error) {
	if w.n <= 0 {
		return 0, io.ErrShortWrite
	}
	w.n--
	return len(p), nil
}

func TestEncodeError(t *testing.T) {
	for _, n := range []int{0, 3} {
		err := NewEncoder(&failWriter{n: n}).Encode(&Record{Update: UpdateAmbient})
		if !errors.Is(err, io.ErrShortWrite) {
			t.Fatalf("n=%d: invalid error: %+v", n, err)
		}
	}

	err := NewEncoder(io.Discard).Encode(nil)
	if err != nil {
		t.Fatalf("could not encode nil record: %+v", err)
	}
}
