package song

// Note values as stored in a pattern row. 1..12 are C..B within Octave.
const (
	NoteNone    = 0
	NoteC       = 1
	NoteCs      = 2
	NoteD       = 3
	NoteDs      = 4
	NoteE       = 5
	NoteF       = 6
	NoteFs      = 7
	NoteG       = 8
	NoteGs      = 9
	NoteA       = 10
	NoteAs      = 11
	NoteB       = 12
	NoteRelease = 13
	NoteHalt    = 14
)

// VolumeNone marks a row without a volume column entry.
const VolumeNone = -1

// NoteEvent is one pattern cell: what a channel should do at a given
// track/frame/row position.
type NoteEvent struct {
	Note       int
	Octave     int
	Instrument int
	Volume     int
	Effect     byte
	Param      byte
}

// IsNote reports whether the event carries an actual pitch.
func (e NoteEvent) IsNote() bool { return e.Note >= NoteC && e.Note <= NoteB }

// Semitone returns the absolute semitone index (C-0 = 0), valid only when
// IsNote is true.
func (e NoteEvent) Semitone() int { return e.Octave*12 + e.Note - 1 }

// Pattern is one frame worth of rows for a single channel.
type Pattern []NoteEvent

// Track is an independent song inside a module: its own tempo, speed and
// frame (order) list. Frames[f][ch] is the pattern played by channel ch in
// frame f.
type Track struct {
	Name   string
	Tempo  int
	Speed  int
	Rows   int // rows per pattern
	Frames [][]Pattern
}

// Memory is an in-memory module implementing the document surface the
// engine consumes. Persistence and import formats live elsewhere.
type Memory struct {
	TitleText  string
	MachinePAL bool
	Rate       int // frame rate override, 0 = machine default
	Channels   int
	Expansion  int // expansion chip mask, engine interprets
	Highlight  int // rows per beat highlight
	Loaded     bool
	Tracks     []*Track
}

func (m *Memory) IsFileLoaded() bool { return m != nil && m.Loaded }

func (m *Memory) IsPAL() bool { return m.MachinePAL }

// FrameRate returns the configured refresh rate, falling back to the
// machine default.
func (m *Memory) FrameRate() int {
	if m.Rate > 0 {
		return m.Rate
	}
	if m.MachinePAL {
		return 50
	}
	return 60
}

func (m *Memory) TrackCount() int { return len(m.Tracks) }

func (m *Memory) ChannelCount() int { return m.Channels }

func (m *Memory) ChannelIndex(channel int) int { return channel }

func (m *Memory) ExpansionEnabled(mask int) bool { return m.Expansion&mask == mask && mask != 0 }

func (m *Memory) TrackName(track int) string {
	if t := m.track(track); t != nil {
		return t.Name
	}
	return ""
}

func (m *Memory) FrameCount(track int) int {
	if t := m.track(track); t != nil {
		return len(t.Frames)
	}
	return 0
}

func (m *Memory) PatternLength(track int) int {
	if t := m.track(track); t != nil {
		return t.Rows
	}
	return 0
}

func (m *Memory) Tempo(track int) int {
	if t := m.track(track); t != nil {
		return t.Tempo
	}
	return 0
}

func (m *Memory) Speed(track int) int {
	if t := m.track(track); t != nil {
		return t.Speed
	}
	return 0
}

// HighlightAt reports the rows-per-beat highlight active at a position.
// The memory module keeps one global highlight.
func (m *Memory) HighlightAt(track, frame, row int) int {
	if m.Highlight > 0 {
		return m.Highlight
	}
	return 4
}

// ActiveNote returns the pattern cell at the given position, or a zero
// event when the position is out of range.
func (m *Memory) ActiveNote(track, frame, channel, row int) NoteEvent {
	t := m.track(track)
	if t == nil || frame < 0 || frame >= len(t.Frames) {
		return NoteEvent{Volume: VolumeNone}
	}
	chans := t.Frames[frame]
	if channel < 0 || channel >= len(chans) {
		return NoteEvent{Volume: VolumeNone}
	}
	p := chans[channel]
	if row < 0 || row >= len(p) {
		return NoteEvent{Volume: VolumeNone}
	}
	return p[row]
}

func (m *Memory) track(track int) *Track {
	if m == nil || track < 0 || track >= len(m.Tracks) {
		return nil
	}
	return m.Tracks[track]
}
