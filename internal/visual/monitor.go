/*
 * Copyright (c) 2026 Hardiyanto Y -Ebiet.
 * This software is part of the FMX (Famix Tracker) project.
 * This code is provided "as is", without warranty of any kind.
 */

// Package visual consumes the engine's live sample feed and turns it
// into waveform and spectrum views.
package visual

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"
	"sync"

	"github.com/mjibson/go-dsp/fft"
)

const (
	history_seconds = 2
	fft_size        = 1024
)

// Monitor buffers the most recent seconds of the engine's output. It is
// handed to the engine as the visualizer collaborator; FlushSamples runs
// on the engine goroutine, all queries on the front-end side.
type Monitor struct {
	mu      sync.Mutex
	rate    int
	ring    []int16
	pos     int
	filled  int
	problem bool
}

func NewMonitor() *Monitor { return &Monitor{} }

func (m *Monitor) SetSampleRate(rate int) {
	m.mu.Lock()
	m.rate = rate
	m.ring = make([]int16, rate*history_seconds)
	m.pos = 0
	m.filled = 0
	m.mu.Unlock()
}

// FlushSamples appends one tick's samples to the history ring.
func (m *Monitor) FlushSamples(buf []int16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.ring) == 0 {
		return
	}
	for _, v := range buf {
		m.ring[m.pos] = v
		m.pos = (m.pos + 1) % len(m.ring)
	}
	m.filled += len(buf)
	if m.filled > len(m.ring) {
		m.filled = len(m.ring)
	}
}

// ReportAudioProblem latches the device failure flag for the UI.
func (m *Monitor) ReportAudioProblem() {
	m.mu.Lock()
	m.problem = true
	m.mu.Unlock()
}

func (m *Monitor) AudioProblem() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.problem
}

func (m *Monitor) ClearProblem() {
	m.mu.Lock()
	m.problem = false
	m.mu.Unlock()
}

// snapshot copies the buffered history, oldest sample first.
func (m *Monitor) snapshot() []int16 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int16, m.filled)
	start := (m.pos - m.filled + len(m.ring)) % maxInt(len(m.ring), 1)
	for i := 0; i < m.filled; i++ {
		out[i] = m.ring[(start+i)%len(m.ring)]
	}
	return out
}

// Waveform reduces the history to RMS amplitude points scaled 0-255.
func (m *Monitor) Waveform(points int) []byte {
	pcm := m.snapshot()
	if points <= 0 || len(pcm) == 0 {
		return nil
	}
	step := len(pcm) / points
	if step == 0 {
		step = 1
	}

	wave := make([]byte, 0, points)
	for i := 0; i < len(pcm); i += step {
		var sum float64
		count := 0
		for j := 0; j < step && (i+j) < len(pcm); j++ {
			val := float64(pcm[i+j])
			sum += val * val
			count++
		}
		rms := math.Sqrt(sum / float64(count))
		wave = append(wave, uint8(math.Min((rms/32768.0)*255.0*5.0, 255.0)))
	}
	return wave
}

// Spectrum returns the magnitudes of the newest FFT window, fft_size/2
// linear frequency bins.
func (m *Monitor) Spectrum() []float64 {
	pcm := m.snapshot()
	if len(pcm) < fft_size {
		return nil
	}
	window := make([]float64, fft_size)
	for i := 0; i < fft_size; i++ {
		window[i] = float64(pcm[len(pcm)-fft_size+i])
	}
	coeffs := fft.FFTReal(window)

	mags := make([]float64, fft_size/2)
	for i := range mags {
		mags[i] = math.Sqrt(real(coeffs[i])*real(coeffs[i]) + imag(coeffs[i])*imag(coeffs[i]))
	}
	return mags
}

// SpectrogramPNG renders the buffered history as a PNG image.
func (m *Monitor) SpectrogramPNG(width, height int) ([]byte, error) {
	pcm := m.snapshot()
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	step := len(pcm) / maxInt(width, 1)
	if step < fft_size {
		step = fft_size
	}

	for x := 0; x < width; x++ {
		start := x * step
		if start+fft_size > len(pcm) {
			break
		}
		window := make([]float64, fft_size)
		for i := 0; i < fft_size; i++ {
			window[i] = float64(pcm[start+i])
		}
		coeffs := fft.FFTReal(window)

		for y := 0; y < height; y++ {
			idx := (height - 1 - y) * (fft_size / 2) / height
			mag := math.Sqrt(real(coeffs[idx])*real(coeffs[idx]) + imag(coeffs[idx])*imag(coeffs[idx]))
			intensity := uint8(math.Min(mag/500, 255))
			img.Set(x, y, color.RGBA{R: intensity / 2, G: intensity, B: intensity / 2, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
