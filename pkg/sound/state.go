package sound

import (
	"fmt"

	"famix/pkg/song"
)

// channelSnapshot is the most recent note/instrument/volume a channel has
// seen at or before a song position.
type channelSnapshot struct {
	Note       int
	Octave     int
	Instrument int
	Volume     int
	Valid      bool
}

// SongStateSnapshot captures per-channel playback state at a track/frame/
// row, used to resume mid-song playback ("retrieve channel state") and
// for read-only inspection while not playing.
type SongStateSnapshot struct {
	Track    int
	Frame    int
	Row      int
	Channels []channelSnapshot
}

// RetrieveSongState scans backwards from the given position and collects
// the last effective note, instrument and volume for every channel.
func RetrieveSongState(doc Document, track, frame, row int) *SongStateSnapshot {
	s := &SongStateSnapshot{
		Track:    track,
		Frame:    frame,
		Row:      row,
		Channels: make([]channelSnapshot, doc.ChannelCount()),
	}

	for ch := range s.Channels {
		cs := &s.Channels[ch]
		cs.Volume = song.VolumeNone
		f, r := frame, row
		for {
			ev := doc.ActiveNote(track, f, ch, r)
			// The volume column persists independently of notes; the
			// nearest entry at or before the position wins.
			if cs.Volume == song.VolumeNone && ev.Volume != song.VolumeNone {
				cs.Volume = ev.Volume
			}
			if !cs.Valid && ev.IsNote() {
				cs.Note = ev.Note
				cs.Octave = ev.Octave
				cs.Instrument = ev.Instrument
				cs.Valid = true
			}
			if cs.Valid && cs.Volume != song.VolumeNone {
				break
			}
			r--
			if r < 0 {
				f--
				if f < 0 {
					break
				}
				r = doc.PatternLength(track) - 1
			}
		}
	}
	return s
}

var noteNames = [12]string{"C-", "C#", "D-", "D#", "E-", "F-", "F#", "G-", "G#", "A-", "A#", "B-"}

// ChannelStateString formats one channel's snapshot for display.
func (s *SongStateSnapshot) ChannelStateString(channel int) string {
	if channel < 0 || channel >= len(s.Channels) {
		return "none"
	}
	cs := s.Channels[channel]
	if !cs.Valid {
		return "none"
	}
	vol := "-"
	if cs.Volume != song.VolumeNone {
		vol = fmt.Sprintf("%X", cs.Volume)
	}
	return fmt.Sprintf("%s%d %02X v%s", noteNames[(cs.Note-1)%12], cs.Octave, cs.Instrument, vol)
}
