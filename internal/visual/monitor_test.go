package visual

import (
	"bytes"
	"math"
	"testing"
)

func feedSine(m *Monitor, n int) {
	buf := make([]int16, n)
	for i := range buf {
		buf[i] = int16(16000 * math.Sin(2*math.Pi*440*float64(i)/44100))
	}
	m.FlushSamples(buf)
}

func TestMonitorWaveform(t *testing.T) {
	m := NewMonitor()
	m.SetSampleRate(44100)
	feedSine(m, 44100)

	wave := m.Waveform(100)
	if len(wave) == 0 {
		t.Fatal("no waveform points")
	}
	loud := 0
	for _, v := range wave {
		if v > 0 {
			loud++
		}
	}
	if loud == 0 {
		t.Fatal("sine reduced to silence")
	}

	if m.Waveform(0) != nil {
		t.Fatal("zero points must return nothing")
	}
}

func TestMonitorSpectrumPeak(t *testing.T) {
	m := NewMonitor()
	m.SetSampleRate(44100)
	feedSine(m, 8192)

	mags := m.Spectrum()
	if len(mags) != fft_size/2 {
		t.Fatalf("bins = %d, want %d", len(mags), fft_size/2)
	}

	peak := 0
	for i, v := range mags {
		if v > mags[peak] {
			peak = i
		}
	}
	// 440 Hz lands near bin 440/(44100/1024) ~= 10
	if peak < 8 || peak > 12 {
		t.Fatalf("peak bin = %d, want ~10 for 440 Hz", peak)
	}
}

func TestMonitorSpectrumNeedsData(t *testing.T) {
	m := NewMonitor()
	m.SetSampleRate(44100)
	if m.Spectrum() != nil {
		t.Fatal("spectrum produced without samples")
	}
}

func TestMonitorProblemLatch(t *testing.T) {
	m := NewMonitor()
	if m.AudioProblem() {
		t.Fatal("problem flag set at start")
	}
	m.ReportAudioProblem()
	if !m.AudioProblem() {
		t.Fatal("problem flag not latched")
	}
	m.ClearProblem()
	if m.AudioProblem() {
		t.Fatal("problem flag not cleared")
	}
}

func TestMonitorSpectrogramPNG(t *testing.T) {
	m := NewMonitor()
	m.SetSampleRate(44100)
	feedSine(m, 44100)

	img, err := m.SpectrogramPNG(64, 32)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(img, []byte("\x89PNG")) {
		t.Fatal("not a PNG")
	}
}

func TestMonitorRingWraps(t *testing.T) {
	m := NewMonitor()
	m.SetSampleRate(1000) // 2s ring = 2000 samples
	for i := 0; i < 10; i++ {
		feedSine(m, 500)
	}
	snap := m.snapshot()
	if len(snap) != 2000 {
		t.Fatalf("history = %d samples, want ring size 2000", len(snap))
	}
}
