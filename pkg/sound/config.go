package sound

import "famix/pkg/chip"

const (
	default_sample_rate = 44100
	default_sample_size = 16
	default_buffer_ms   = 40
	average_bpm_window  = 24
)

// Config is injected at construction and replaced wholesale by a
// LoadSettings command; the engine never reaches into process-wide state.
type Config struct {
	SampleRate  int
	SampleSize  int
	BufferLenMs int
	Device      int

	MixVolume  float64 // linear master gain, 1.0 = unity
	ChipLevels chip.MixerLevels

	// RetrieveChanState re-applies the song state captured at the cursor
	// when playback starts mid-song.
	RetrieveChanState bool
	// AverageBPM enables the rolling tempo display.
	AverageBPM bool
}

func DefaultConfig() Config {
	return Config{
		SampleRate:  default_sample_rate,
		SampleSize:  default_sample_size,
		BufferLenMs: default_buffer_ms,
		Device:      0,
		MixVolume:   1.0,
		ChipLevels:  chip.DefaultMixerLevels(),
	}
}
