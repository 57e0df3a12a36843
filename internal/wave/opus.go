/*
 * Copyright (c) 2026 Hardiyanto Y -Ebiet.
 * This software is part of the FMX (Famix Tracker) project.
 * This code is provided "as is", without warranty of any kind.
 */

package wave

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/hraban/opus"
)

// Stream header: magic, then sample rate (uint32) and channel count
// (uint8), both big endian like the rest of the framing.
const opusMagic = "FMXOPUS1"

// OpusSink encodes mono PCM into 20ms Opus frames, each written as a
// big-endian uint16 length prefix followed by the frame payload. The
// sample rate must be one of the Opus family (8/12/16/24/48 kHz).
type OpusSink struct {
	f         *os.File
	w         *bufio.Writer
	enc       *opus.Encoder
	frameSize int
	pending   []int16
	out       []byte
}

func NewOpusSink(path string, sampleRate int) (*OpusSink, error) {
	switch sampleRate {
	case 8000, 12000, 16000, 24000, 48000:
	default:
		return nil, fmt.Errorf("opus output needs an 8/12/16/24/48 kHz rate, got %d", sampleRate)
	}

	enc, err := opus.NewEncoder(sampleRate, 1, opus.AppAudio)
	if err != nil {
		return nil, fmt.Errorf("create opus encoder: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create opus output: %w", err)
	}
	w := bufio.NewWriter(f)

	if _, err := w.WriteString(opusMagic); err != nil {
		f.Close()
		return nil, err
	}
	if err := binary.Write(w, binary.BigEndian, uint32(sampleRate)); err != nil {
		f.Close()
		return nil, err
	}
	if err := binary.Write(w, binary.BigEndian, uint8(1)); err != nil {
		f.Close()
		return nil, err
	}

	return &OpusSink{
		f:         f,
		w:         w,
		enc:       enc,
		frameSize: sampleRate / 50, // 20ms
		out:       make([]byte, 1500),
	}, nil
}

func (s *OpusSink) WriteFrames(frames []int16) error {
	s.pending = append(s.pending, frames...)
	for len(s.pending) >= s.frameSize {
		if err := s.encodeFrame(s.pending[:s.frameSize]); err != nil {
			return err
		}
		s.pending = s.pending[s.frameSize:]
	}
	return nil
}

func (s *OpusSink) encodeFrame(pcm []int16) error {
	n, err := s.enc.Encode(pcm, s.out)
	if err != nil {
		return fmt.Errorf("encode opus frame: %w", err)
	}
	if err := binary.Write(s.w, binary.BigEndian, uint16(n)); err != nil {
		return err
	}
	if _, err := s.w.Write(s.out[:n]); err != nil {
		return err
	}
	return nil
}

// Close pads the tail to a whole frame with silence, flushes and releases
// the file.
func (s *OpusSink) Close() error {
	var err error
	if len(s.pending) > 0 {
		tail := make([]int16, s.frameSize)
		copy(tail, s.pending)
		err = s.encodeFrame(tail)
		s.pending = nil
	}
	if ferr := s.w.Flush(); err == nil {
		err = ferr
	}
	if cerr := s.f.Close(); err == nil {
		err = cerr
	}
	return err
}
