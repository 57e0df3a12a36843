package song

import "testing"

func TestMemoryDefaults(t *testing.T) {
	m := &Memory{Loaded: true, Channels: 5}
	if m.FrameRate() != 60 {
		t.Fatalf("NTSC frame rate = %d, want 60", m.FrameRate())
	}
	m.MachinePAL = true
	if m.FrameRate() != 50 {
		t.Fatalf("PAL frame rate = %d, want 50", m.FrameRate())
	}
	m.Rate = 70
	if m.FrameRate() != 70 {
		t.Fatalf("override frame rate = %d, want 70", m.FrameRate())
	}
	if m.HighlightAt(0, 0, 0) != 4 {
		t.Fatalf("default highlight = %d, want 4", m.HighlightAt(0, 0, 0))
	}
}

func TestActiveNoteOutOfRange(t *testing.T) {
	m := Demo()
	for _, pos := range [][4]int{
		{-1, 0, 0, 0},
		{9, 0, 0, 0},
		{0, 9, 0, 0},
		{0, 0, 9, 0},
		{0, 0, 0, 99},
	} {
		ev := m.ActiveNote(pos[0], pos[1], pos[2], pos[3])
		if ev.Note != NoteNone || ev.Volume != VolumeNone {
			t.Fatalf("ActiveNote%v = %+v, want empty", pos, ev)
		}
	}
}

func TestSemitone(t *testing.T) {
	cases := []struct {
		note, octave, want int
	}{
		{NoteC, 0, 0},
		{NoteB, 0, 11},
		{NoteA, 4, 57},
	}
	for _, c := range cases {
		ev := NoteEvent{Note: c.note, Octave: c.octave}
		if got := ev.Semitone(); got != c.want {
			t.Errorf("semitone(%d,%d) = %d, want %d", c.note, c.octave, got, c.want)
		}
	}
}

func TestIsNote(t *testing.T) {
	if (NoteEvent{Note: NoteHalt}).IsNote() {
		t.Fatal("halt counted as a note")
	}
	if (NoteEvent{Note: NoteRelease}).IsNote() {
		t.Fatal("release counted as a note")
	}
	if !(NoteEvent{Note: NoteC}).IsNote() {
		t.Fatal("C not counted as a note")
	}
}

func TestDemoShape(t *testing.T) {
	m := Demo()
	if !m.IsFileLoaded() {
		t.Fatal("demo not loaded")
	}
	if m.TrackCount() != 2 {
		t.Fatalf("tracks = %d, want 2", m.TrackCount())
	}
	if m.Tempo(0) != 150 || m.Speed(0) != 6 {
		t.Fatalf("track 0 tempo/speed = %d/%d, want 150/6", m.Tempo(0), m.Speed(0))
	}
	if m.FrameCount(0) != 2 || m.PatternLength(0) != 16 {
		t.Fatalf("track 0 shape = %d frames x %d rows", m.FrameCount(0), m.PatternLength(0))
	}
	for track := 0; track < m.TrackCount(); track++ {
		for f := 0; f < m.FrameCount(track); f++ {
			for ch := 0; ch < m.ChannelCount(); ch++ {
				for r := 0; r < m.PatternLength(track); r++ {
					m.ActiveNote(track, f, ch, r)
				}
			}
		}
	}
}
