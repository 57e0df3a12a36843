/*
 * Copyright (c) 2026 Hardiyanto Y -Ebiet.
 * This software is part of the FMX (Famix Tracker) project.
 * This code is provided "as is", without warranty of any kind.
 */

// Package wave provides the file sinks for offline rendering: plain WAV
// and length-prefixed Opus streams.
package wave

import (
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVSink writes mono 16-bit PCM to a RIFF/WAVE file.
type WAVSink struct {
	f   *os.File
	enc *wav.Encoder
	buf *audio.IntBuffer
}

func NewWAVSink(path string, sampleRate int) (*WAVSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create wav output: %w", err)
	}
	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	return &WAVSink{
		f:   f,
		enc: enc,
		buf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
			SourceBitDepth: 16,
		},
	}, nil
}

func (s *WAVSink) WriteFrames(frames []int16) error {
	if len(frames) == 0 {
		return nil
	}
	if cap(s.buf.Data) < len(frames) {
		s.buf.Data = make([]int, len(frames))
	}
	s.buf.Data = s.buf.Data[:len(frames)]
	for i, v := range frames {
		s.buf.Data[i] = int(v)
	}
	if err := s.enc.Write(s.buf); err != nil {
		return fmt.Errorf("write wav block: %w", err)
	}
	return nil
}

// Close finalizes the RIFF header and releases the file.
func (s *WAVSink) Close() error {
	encErr := s.enc.Close()
	fileErr := s.f.Close()
	if encErr != nil {
		return fmt.Errorf("finalize wav: %w", encErr)
	}
	return fileErr
}
