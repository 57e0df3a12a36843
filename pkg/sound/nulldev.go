package sound

import "sync"

// NullDevice is a Device that swallows every sample immediately. It backs
// offline rendering on machines without audio hardware; playback through
// it runs unpaced.
type NullDevice struct {
	mu   sync.Mutex
	open bool
	vol  float64
}

func NewNullDevice() *NullDevice { return &NullDevice{} }

func (d *NullDevice) Open(sampleRate, sampleSize, bufferLenMs, device, blocks int) error {
	if sampleRate <= 0 || device != 0 {
		return ErrDeviceUnavailable
	}
	d.mu.Lock()
	d.open = true
	d.mu.Unlock()
	return nil
}

func (d *NullDevice) Close() {
	d.mu.Lock()
	d.open = false
	d.mu.Unlock()
}

func (d *NullDevice) Reset() {}

func (d *NullDevice) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}

func (d *NullDevice) DeviceCount() int { return 1 }

func (d *NullDevice) SetVolume(linear float64) {
	d.mu.Lock()
	d.vol = linear
	d.mu.Unlock()
}

func (d *NullDevice) PlayBuffer(samples []int16) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return ErrDeviceUnavailable
	}
	return nil
}

func (d *NullDevice) Interrupt() {}
