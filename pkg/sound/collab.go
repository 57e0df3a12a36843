package sound

import "famix/pkg/song"

// Document is the narrow, read-only surface the engine consumes from the
// song document. pkg/song.Memory satisfies it; persistence and import
// formats belong to the document side.
type Document interface {
	IsFileLoaded() bool
	IsPAL() bool
	FrameRate() int
	TrackCount() int
	TrackName(track int) string
	ChannelCount() int
	ChannelIndex(channel int) int
	ExpansionEnabled(mask int) bool
	FrameCount(track int) int
	PatternLength(track int) int
	Tempo(track int) int
	Speed(track int) int
	HighlightAt(track, frame, row int) int
	ActiveNote(track, frame, channel, row int) song.NoteEvent
}

// Visualizer receives the live sample feed. Engine-owned pointer, set from
// the controller context behind its own lock.
type Visualizer interface {
	SetSampleRate(rate int)
	FlushSamples(buf []int16)
	ReportAudioProblem()
}

// MIDISink mirrors played notes out to a MIDI collaborator.
type MIDISink interface {
	WriteNote(channelIndex, note, octave, velocity int)
}

// RenderSink accepts ordered PCM frame blocks during offline rendering.
// The container format is the sink's responsibility.
type RenderSink interface {
	WriteFrames(frames []int16) error
	Close() error
}
