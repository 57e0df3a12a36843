package sound

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"
	"github.com/faiface/beep/speaker"
)

// BlockCount derives the buffer block count from the configured buffer
// length. More blocks trade latency for underrun safety.
func BlockCount(bufferLenMs int) int {
	blocks := 2
	if bufferLenMs > 100 {
		blocks += bufferLenMs / 66
	}
	return blocks
}

// Device is the platform audio output connection. The engine opens it on
// reset, pushes one tick's samples at a time and treats every failure as
// non-fatal.
type Device interface {
	Open(sampleRate, sampleSize, bufferLenMs, device, blocks int) error
	Close()
	// Reset drops any queued audio.
	Reset()
	IsOpen() bool
	DeviceCount() int
	SetVolume(linear float64)
	// PlayBuffer queues one sample block, waiting (bounded) for buffer
	// space. An Interrupt unblocks the wait early.
	PlayBuffer(samples []int16) error
	Interrupt()
}

const (
	devicePollInterval = 5 * time.Millisecond
	devicePlayTimeout  = 2 * time.Second
)

// SpeakerDevice plays through the beep speaker. Mono int16 engine samples
// are widened to the speaker's stereo float format at this boundary only.
type SpeakerDevice struct {
	mu        sync.Mutex
	open      bool
	rate      int
	ring      []int16
	head      int
	count     int
	interrupt chan struct{}
	vol       *effects.Volume
}

func NewSpeakerDevice() *SpeakerDevice { return &SpeakerDevice{} }

func (d *SpeakerDevice) Open(sampleRate, sampleSize, bufferLenMs, device, blocks int) error {
	if sampleRate <= 0 || bufferLenMs <= 0 || blocks < 2 || device != 0 {
		return fmt.Errorf("%w: bad device params %d Hz / %d ms / %d blocks",
			ErrDeviceUnavailable, sampleRate, bufferLenMs, blocks)
	}
	_ = sampleSize // engine samples are int16 regardless

	sr := beep.SampleRate(sampleRate)
	if err := speaker.Init(sr, sr.N(time.Duration(bufferLenMs)*time.Millisecond)); err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	d.mu.Lock()
	d.open = true
	d.rate = sampleRate
	d.ring = make([]int16, blocks*sampleRate*bufferLenMs/1000)
	d.head = 0
	d.count = 0
	d.interrupt = make(chan struct{}, 1)
	d.vol = &effects.Volume{Streamer: deviceStreamer{d}, Base: 2}
	d.mu.Unlock()

	speaker.Play(d.vol)
	return nil
}

func (d *SpeakerDevice) Close() {
	d.mu.Lock()
	wasOpen := d.open
	d.open = false
	d.head = 0
	d.count = 0
	d.mu.Unlock()
	if wasOpen {
		speaker.Clear()
	}
}

func (d *SpeakerDevice) Reset() {
	d.mu.Lock()
	d.head = 0
	d.count = 0
	d.mu.Unlock()
}

func (d *SpeakerDevice) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}

// DeviceCount: the speaker backend exposes the system default output only.
func (d *SpeakerDevice) DeviceCount() int { return 1 }

func (d *SpeakerDevice) SetVolume(linear float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.vol == nil {
		return
	}
	speaker.Lock()
	if linear <= 0 {
		d.vol.Silent = true
	} else {
		d.vol.Silent = false
		d.vol.Volume = math.Log2(linear)
	}
	speaker.Unlock()
}

func (d *SpeakerDevice) PlayBuffer(samples []int16) error {
	deadline := time.Now().Add(devicePlayTimeout)
	for len(samples) > 0 {
		d.mu.Lock()
		if !d.open {
			d.mu.Unlock()
			return ErrDeviceUnavailable
		}
		free := len(d.ring) - d.count
		n := len(samples)
		if n > free {
			n = free
		}
		for i := 0; i < n; i++ {
			d.ring[(d.head+d.count+i)%len(d.ring)] = samples[i]
		}
		d.count += n
		intr := d.interrupt
		d.mu.Unlock()

		samples = samples[n:]
		if len(samples) == 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: buffer sync timed out", ErrDeviceUnavailable)
		}
		select {
		case <-intr:
			return nil // abandoned, engine is closing or resetting
		case <-time.After(devicePollInterval):
		}
	}
	return nil
}

func (d *SpeakerDevice) Interrupt() {
	d.mu.Lock()
	intr := d.interrupt
	d.mu.Unlock()
	if intr != nil {
		select {
		case intr <- struct{}{}:
		default:
		}
	}
}

// deviceStreamer feeds the speaker from the ring, silence on underrun.
type deviceStreamer struct{ d *SpeakerDevice }

func (s deviceStreamer) Stream(samples [][2]float64) (int, bool) {
	d := s.d
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range samples {
		if d.count > 0 {
			v := float64(d.ring[d.head]) / 32768.0
			d.head = (d.head + 1) % len(d.ring)
			d.count--
			samples[i] = [2]float64{v, v}
		} else {
			samples[i] = [2]float64{0, 0}
		}
	}
	return len(samples), true
}

func (s deviceStreamer) Err() error { return nil }
