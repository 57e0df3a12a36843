package chip

// Machine selects the console timing variant.
type Machine int

const (
	NTSC Machine = iota
	PAL
)

// Base CPU clocks. One tick of the engine loop corresponds to one video
// frame, so the engine steps the chip by BaseFreq/frameRate cycles.
const (
	BaseFreqNTSC = 1789773
	BaseFreqPAL  = 1662607
)

func (m Machine) BaseFreq() int {
	if m == PAL {
		return BaseFreqPAL
	}
	return BaseFreqNTSC
}

func (m Machine) String() string {
	if m == PAL {
		return "PAL"
	}
	return "NTSC"
}

// Mask identifies the sound hardware selected for the session. Only the
// internal 2A03 is emulated; expansion bits are carried so the engine can
// issue the matching enable writes.
type Mask int

const (
	Chip2A03 Mask = 0
	ChipVRC6 Mask = 1 << iota
	ChipVRC7
	ChipFDS
	ChipMMC5
	ChipN163
	ChipS5B
)

// MixerLevels are linear per-chip gains, 1.0 = unity.
type MixerLevels struct {
	APU1 float64
	APU2 float64
	VRC6 float64
	VRC7 float64
	MMC5 float64
	FDS  float64
	N163 float64
	S5B  float64
}

func DefaultMixerLevels() MixerLevels {
	return MixerLevels{APU1: 1, APU2: 1, VRC6: 1, VRC7: 1, MMC5: 1, FDS: 1, N163: 1, S5B: 1}
}

// DPCMSample is raw delta-modulation data auditioned or played outside the
// document. It is shared by reference; the chip drops it on ClearSample.
type DPCMSample struct {
	Name string
	Data []byte
}

// DPCMState reports the sample playback position and delta counter for
// the status displays.
type DPCMState struct {
	SamplePos    int
	DeltaCounter int
}

// Chip is the emulation driver surface consumed by the sound engine.
// The engine goroutine is the only writer; concurrent read-only register
// inspection must go through the engine's register lock.
type Chip interface {
	Reset()
	Write(addr uint16, value byte)
	Read(addr uint16) byte
	// Step advances the emulation by the given cycle budget and returns
	// the produced mono sample block. The block is valid until the next
	// Step call.
	Step(cycles int) []int16
	SetSampleRate(rate int)
	SetMachineRate(m Machine, frameRate int)
	SetMixerLevels(levels MixerLevels)
	SetExternalSound(mask Mask)
	WriteSample(s *DPCMSample)
	ClearSample()
	DPCMPlaying() bool
	GetDPCMState() DPCMState
	// RegisterSnapshot returns the last value written to a register, for
	// read-only inspection. ok is false for never-written registers.
	RegisterSnapshot(addr uint16) (value byte, ok bool)
	// ChannelFreq reports the current output frequency in Hz of an
	// internal channel (0=pulse1 1=pulse2 2=triangle 3=noise 4=dmc).
	ChannelFreq(channel int) float64
}
