// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tsl2510

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/go-lpc/optics/tsl2510/internal/regs"
	"golang.org/x/xerrors"
)

const (
	blockSize  = 32  // largest bus block transfer
	maxSamples = 128 // clear/wideband pairs per frame
	maxFIFOThr = 0x1ff
	maxBufLen  = 4 * maxFIFOThr
	maxMetaLen = 3 + 2 + 2
)

var (
	errBufFull = errors.New("tsl2510: FIFO buffer full")
	errTrailer = errors.New("tsl2510: invalid flicker frame trailer")
)

// fifoBuf stages bytes drained from the sensor FIFO until a complete
// frame is available. Its capacity is fixed when flicker detection
// is (re)initialized.
type fifoBuf struct {
	buf [maxBufLen]byte
	p   []byte
	r   int
	w   int
}

func (b *fifoBuf) init(n int) {
	n = min(n, maxBufLen)
	b.p = b.buf[:n]
	b.reset()
}

func (b *fifoBuf) reset() {
	b.r = 0
	b.w = 0
}

func (b *fifoBuf) Len() int { return b.w - b.r }
func (b *fifoBuf) Cap() int { return len(b.p) }
func (b *fifoBuf) full() bool { return b.w >= len(b.p) }

// Write appends p to the buffer.
// Write never truncates: it fails when p does not fit entirely.
func (b *fifoBuf) Write(p []byte) (int, error) {
	if len(p) > len(b.p)-b.w {
		return 0, errBufFull
	}
	n := copy(b.p[b.w:], p)
	b.w += n
	return n, nil
}

func (b *fifoBuf) Read(p []byte) (int, error) {
	if b.Len() == 0 {
		return 0, io.EOF
	}
	n := copy(p, b.p[b.r:b.w])
	b.r += n
	return n, nil
}

// metaLayout returns the size of the trailer written after each frame,
// and the offsets of the checksum and gain fields within it.
func metaLayout(f FIFOFormat) (size, checksum, gain int) {
	if f.EndMarker {
		size += 3
	}
	if f.Checksum {
		checksum = size
		size += 2
	}
	if f.Gain {
		gain = size
		size += 2
	}
	return size, checksum, gain
}

// checkFrameFit checks that the staging buffer of a FIFO threshold of thr
// words holds a frame of n samples and its trailer.
func checkFrameFit(n int, thr uint16, f FIFOFormat) error {
	meta, _, _ := metaLayout(f)
	if 4*int(thr) <= 4*n+meta {
		return fmt.Errorf(
			"tsl2510: FIFO threshold %d too small for frames of %d samples (%d bytes)",
			thr, n, 4*n+meta,
		)
	}
	return nil
}

// clearFIFO empties the sensor FIFO.
func (dev *Device) clearFIFO() error {
	err := dev.setField(regs.Control, high, regs.FIFOClear)
	if err != nil {
		return fmt.Errorf("tsl2510: could not clear FIFO: %w", err)
	}
	return nil
}

// resetFIFO empties the sensor FIFO and the staging buffer.
func (dev *Device) resetFIFO() error {
	dev.fd.level = 0
	dev.fd.buf.reset()
	dev.fd.ready = false
	return dev.clearFIFO()
}

// drainFIFO moves the bytes pending in the sensor FIFO to the staging
// buffer, and reports whether a complete frame is buffered.
// Overflows of either FIFO reset both of them and abort the cycle.
func (dev *Device) drainFIFO(status0 uint8) (bool, error) {
	fd := &dev.fd

	lvl, err := dev.getByte(regs.FIFOLevel)
	if err != nil {
		return false, fmt.Errorf("tsl2510: could not read FIFO level: %w", err)
	}
	fd.level = int(lvl)<<2 | int(status0&regs.FIFOLevelLSB)

	if status0&regs.FIFOOverflow != 0 {
		fd.overflows++
		dev.cfg.msg.Warnf("FIFO overflow (level=%d)", fd.level)
		return false, dev.resetFIFO()
	}
	if status0&regs.FIFOUnderflow != 0 {
		dev.cfg.msg.Warnf("FIFO underflow (level=%d)", fd.level)
	}

	var chunk [blockSize]byte
	for n := fd.level; n > 0; {
		sz := min(n, blockSize)
		err = dev.getBuf(regs.FIFOData, chunk[:sz])
		if err != nil {
			return false, fmt.Errorf("tsl2510: could not read FIFO data: %w", err)
		}
		n -= sz

		_, err = fd.buf.Write(chunk[:sz])
		if err != nil || fd.buf.full() {
			fd.overflows++
			dev.cfg.msg.Warnf("FIFO buffer full (len=%d, cap=%d)", fd.buf.Len(), fd.buf.Cap())
			return false, dev.resetFIFO()
		}
	}

	if fd.buf.Len() >= 4*fd.samples {
		fd.ready = true
	}
	return fd.ready, nil
}

// readFrame extracts one frame of clear/wideband samples and its trailer
// from the staging buffer. The staging buffer is emptied afterwards.
// Trailer errors wrap errTrailer: samples are valid, the previous gain
// is kept.
func (fd *flicker) readFrame() error {
	defer fd.buf.reset()

	var (
		n   = fd.samples
		raw [4 * maxSamples]byte
	)
	_, err := io.ReadFull(&fd.buf, raw[:4*n])
	if err != nil {
		return xerrors.Errorf("tsl2510: could not read flicker frame (n=%d): %w", n, err)
	}
	for i := 0; i < n; i++ {
		fd.clear[i] = binary.LittleEndian.Uint16(raw[4*i:])
		fd.wide[i] = binary.LittleEndian.Uint16(raw[4*i+2:])
	}

	size, cs, g := metaLayout(fd.format)
	if size == 0 {
		return nil
	}
	if fd.buf.Len() < size {
		return xerrors.Errorf("%w (len=%d, want=%d)", errTrailer, fd.buf.Len(), size)
	}

	var meta [maxMetaLen]byte
	_, err = io.ReadFull(&fd.buf, meta[:size])
	if err != nil {
		return xerrors.Errorf("tsl2510: could not read flicker frame trailer: %w", err)
	}

	if fd.format.Checksum {
		fd.checksum = binary.LittleEndian.Uint16(meta[cs:])
	}
	if fd.format.Gain {
		if fd.format.EndMarker && (meta[0] != 0 || meta[1] != 0 || meta[2] != 0) {
			return xerrors.Errorf("%w (end marker=0x%02x%02x%02x)", errTrailer, meta[2], meta[1], meta[0])
		}
		fd.gain = binary.LittleEndian.Uint16(meta[g:])
	}
	return nil
}
