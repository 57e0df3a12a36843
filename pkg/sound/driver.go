package sound

import (
	"fmt"
	"math"

	"famix/pkg/chip"
	"famix/pkg/song"
)

// Pattern effects understood by the driver.
const (
	EffectNone  = 0
	EffectJump  = 'B' // queue frame
	EffectHalt  = 'C' // stop the song
	EffectSpeed = 'F' // param < 0x20 sets speed, otherwise tempo
)

// 2A03 channel order used throughout the driver.
const (
	ChannelPulse1 = iota
	ChannelPulse2
	ChannelTriangle
	ChannelNoise
	ChannelDPCM
	channelCount
)

type channelState struct {
	active     bool
	semitone   int
	instrument int
	volume     int
	trigger    bool
}

// trackDriver turns the cursor position into chip register writes, one
// tick at a time. It runs only on the engine goroutine, under the
// register lock.
type trackDriver struct {
	eng     *Engine
	chp     chip.Chip
	doc     Document
	cursor  *PlayerCursor
	tempo   *tempoCounter
	chans   [channelCount]channelState
	periods [96]int
	started bool
	halt    bool
}

func newTrackDriver(eng *Engine) *trackDriver {
	return &trackDriver{eng: eng}
}

func (d *trackDriver) LoadDocument(doc Document, c chip.Chip) {
	d.doc = doc
	d.chp = c
	machine := chip.NTSC
	if doc.IsPAL() {
		machine = chip.PAL
	}
	d.buildPeriodTable(machine)
}

// buildPeriodTable derives the 11-bit timer period for every note, A-4
// tuned to 440 Hz.
func (d *trackDriver) buildPeriodTable(machine chip.Machine) {
	base := float64(machine.BaseFreq())
	for s := range d.periods {
		freq := 440 * math.Pow(2, float64(s-57)/12)
		p := int(base/(16*freq) - 0.5)
		if p < 0 {
			p = 0
		}
		if p > 0x7FF {
			p = 0x7FF
		}
		d.periods[s] = p
	}
}

func (d *trackDriver) SetTempoCounter(t *tempoCounter) { d.tempo = t }

func (d *trackDriver) StartPlayer(cursor *PlayerCursor) {
	d.cursor = cursor
	d.started = false
	d.halt = false
}

func (d *trackDriver) StopPlayer() { d.cursor = nil }

func (d *trackDriver) IsPlaying() bool { return d.cursor != nil }

func (d *trackDriver) PlayerCursor() *PlayerCursor { return d.cursor }

func (d *trackDriver) ShouldHalt() bool { return d.halt }

func (d *trackDriver) ResetTracks() {
	for i := range d.chans {
		d.chans[i] = channelState{}
	}
}

// Tick advances the tempo counter, plays any new row and refreshes the
// channel registers.
func (d *trackDriver) Tick() {
	if d.cursor == nil {
		return
	}
	if d.tempo.Tick() {
		if d.started {
			d.cursor.StepRow()
		} else {
			d.started = true
		}
		d.playRow()
		d.eng.onStepRow()
		d.eng.onUpdateRow(d.cursor.Frame(), d.cursor.Row())
	}
	d.cursor.Tick()
	d.updateRegisters()
}

func (d *trackDriver) playRow() {
	track, frame, row := d.cursor.Track(), d.cursor.Frame(), d.cursor.Row()
	n := d.doc.ChannelCount()
	if n > channelCount {
		n = channelCount
	}
	for ch := 0; ch < n; ch++ {
		ev := d.doc.ActiveNote(track, frame, ch, row)
		d.runEffect(ev)
		if d.eng.isChannelMutedLocked(ch) {
			continue
		}
		d.QueueNote(ch, ev)
		d.eng.onPlayNote(ch, ev)
	}
}

func (d *trackDriver) runEffect(ev song.NoteEvent) {
	switch ev.Effect {
	case EffectJump:
		d.cursor.QueueFrame(int(ev.Param))
	case EffectHalt:
		d.halt = true
	case EffectSpeed:
		if ev.Param < 0x20 {
			s := int(ev.Param)
			if s < 1 {
				s = 1 // F00 in the pattern data must not stall the row clock
			}
			d.tempo.speed = s
		} else {
			d.tempo.tempo = int(ev.Param)
		}
		d.tempo.decrement = d.tempo.tempo * 24 / d.tempo.speed
	}
}

// QueueNote applies one pattern event to a channel.
func (d *trackDriver) QueueNote(ch int, ev song.NoteEvent) {
	if ch < 0 || ch >= channelCount {
		return
	}
	cs := &d.chans[ch]
	switch {
	case ev.Note == song.NoteHalt, ev.Note == song.NoteRelease:
		cs.active = false
	case ev.IsNote():
		cs.active = true
		cs.semitone = ev.Semitone()
		cs.instrument = ev.Instrument
		cs.trigger = true
		if ev.Volume != song.VolumeNone {
			cs.volume = ev.Volume
		} else if cs.volume == 0 {
			cs.volume = 15
		}
	default:
		if ev.Volume != song.VolumeNone {
			cs.volume = ev.Volume
		}
	}
}

// LoadSoundState primes the channels from a mid-song snapshot.
func (d *trackDriver) LoadSoundState(s *SongStateSnapshot) {
	for ch := 0; ch < len(s.Channels) && ch < channelCount; ch++ {
		cs := s.Channels[ch]
		if !cs.Valid {
			continue
		}
		vol := cs.Volume
		if vol == song.VolumeNone {
			vol = 15
		}
		d.chans[ch] = channelState{
			active:     true,
			semitone:   cs.Octave*12 + cs.Note - 1,
			instrument: cs.Instrument,
			volume:     vol,
			trigger:    true,
		}
	}
}

func (d *trackDriver) updateRegisters() {
	d.writePulse(0x4000, &d.chans[ChannelPulse1])
	d.writePulse(0x4004, &d.chans[ChannelPulse2])
	d.writeTriangle(&d.chans[ChannelTriangle])
	d.writeNoise(&d.chans[ChannelNoise])
	// DPCM is driven by sample preview and instrument playback only.
}

func (d *trackDriver) writePulse(base uint16, cs *channelState) {
	if !cs.active {
		d.chp.Write(base, 0x30) // constant volume 0
		return
	}
	period := d.period(cs.semitone)
	d.chp.Write(base, 0x70|byte(cs.volume&0x0F)) // duty 01, halt length, constant volume
	d.chp.Write(base+2, byte(period&0xFF))
	if cs.trigger {
		d.chp.Write(base+3, byte(period>>8)&7)
		cs.trigger = false
	}
}

func (d *trackDriver) writeTriangle(cs *channelState) {
	if !cs.active {
		d.chp.Write(0x4008, 0x80) // linear counter 0
		return
	}
	period := d.period(cs.semitone)
	d.chp.Write(0x4008, 0xFF)
	d.chp.Write(0x400A, byte(period&0xFF))
	if cs.trigger {
		d.chp.Write(0x400B, byte(period>>8)&7)
		cs.trigger = false
	}
}

func (d *trackDriver) writeNoise(cs *channelState) {
	if !cs.active {
		d.chp.Write(0x400C, 0x30)
		return
	}
	d.chp.Write(0x400C, 0x30|byte(cs.volume&0x0F))
	d.chp.Write(0x400E, byte(cs.semitone&0x0F))
	if cs.trigger {
		d.chp.Write(0x400F, 0)
		cs.trigger = false
	}
}

func (d *trackDriver) period(semitone int) int {
	if semitone < 0 {
		semitone = 0
	}
	if semitone >= len(d.periods) {
		semitone = len(d.periods) - 1
	}
	return d.periods[semitone]
}

func (d *trackDriver) ChannelNote(ch int) int {
	if ch < 0 || ch >= channelCount || !d.chans[ch].active {
		return -1
	}
	return d.chans[ch].semitone
}

func (d *trackDriver) ChannelVolume(ch int) int {
	if ch < 0 || ch >= channelCount {
		return 0
	}
	return d.chans[ch].volume
}

func (d *trackDriver) ChannelStateString(ch int) string {
	if ch < 0 || ch >= channelCount || !d.chans[ch].active {
		return "none"
	}
	cs := d.chans[ch]
	return fmt.Sprintf("%s%d %02X v%X", noteNames[cs.semitone%12], cs.semitone/12, cs.instrument, cs.volume)
}
