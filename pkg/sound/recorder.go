package sound

import "fmt"

// NoRecordChannel means no channel is armed for instrument recording.
const NoRecordChannel = -1

// RecordSetting controls instrument capture.
type RecordSetting struct {
	Interval  int  // ticks between captures, minimum 1
	MaxFrames int  // capture budget in sequence steps, 0 = unbounded
	Reset     bool // discard the cache when the channel changes
}

// RecordedInstrument is the instrument definition built from per-tick
// captures of the armed channel.
type RecordedInstrument struct {
	Name      string
	Volume    []int
	Arpeggio  []int // semitone offsets from the first captured note
	DutyCycle []int
}

// recordingSession exists only while a record channel is armed and
// playback runs; captures are correlated to the elapsed tick count.
type recordingSession struct {
	startTick int
	baseNote  int
	haveBase  bool
	inst      *RecordedInstrument
}

// instrumentRecorder observes the driver each tick and accumulates an
// instrument definition. Engine-goroutine only, except for the armed
// channel which the controller flips under the register lock.
type instrumentRecorder struct {
	eng     *Engine
	channel int
	setting RecordSetting
	session *recordingSession
	done    *RecordedInstrument
	dumps   int
}

func newInstrumentRecorder(eng *Engine) *instrumentRecorder {
	return &instrumentRecorder{
		eng:     eng,
		channel: NoRecordChannel,
		setting: RecordSetting{Interval: 1},
	}
}

func (r *instrumentRecorder) RecordChannel() int { return r.channel }

func (r *instrumentRecorder) SetRecordChannel(ch int) {
	r.channel = ch
	if r.setting.Reset {
		r.done = nil
	}
}

func (r *instrumentRecorder) Setting() RecordSetting { return r.setting }

func (r *instrumentRecorder) SetSetting(s RecordSetting) {
	if s.Interval < 1 {
		s.Interval = 1
	}
	r.setting = s
}

func (r *instrumentRecorder) StartRecording(startTick int) {
	r.session = &recordingSession{
		startTick: startTick,
		inst:      &RecordedInstrument{Name: fmt.Sprintf("recorded ch %d", r.channel)},
	}
}

// RecordInstrument captures the armed channel's current state for one
// tick.
func (r *instrumentRecorder) RecordInstrument(ticks int) {
	if r.session == nil || r.channel == NoRecordChannel {
		return
	}
	if (ticks-r.session.startTick)%r.setting.Interval != 0 {
		return
	}
	inst := r.session.inst
	if r.setting.MaxFrames > 0 && len(inst.Volume) >= r.setting.MaxFrames {
		return
	}

	d := r.eng.driver
	note := d.ChannelNote(r.channel)
	if note >= 0 && !r.session.haveBase {
		r.session.baseNote = note
		r.session.haveBase = true
	}
	arp := 0
	vol := 0
	if note >= 0 {
		arp = note - r.session.baseNote
		vol = d.ChannelVolume(r.channel)
	}
	inst.Volume = append(inst.Volume, vol)
	inst.Arpeggio = append(inst.Arpeggio, arp)
	inst.DutyCycle = append(inst.DutyCycle, 1)
}

// StopRecording ends the session, keeping the capture for retrieval.
func (r *instrumentRecorder) StopRecording() {
	if r.session == nil {
		return
	}
	if len(r.session.inst.Volume) > 0 {
		r.done = r.session.inst
		r.dumps++
	}
	r.session = nil
}

// RecordInstrumentResult hands out the finished capture, once.
func (r *instrumentRecorder) RecordInstrumentResult() *RecordedInstrument {
	inst := r.done
	r.done = nil
	return inst
}

// ReleaseCurrent discards any in-progress or finished capture.
func (r *instrumentRecorder) ReleaseCurrent() {
	r.session = nil
	r.done = nil
}

func (r *instrumentRecorder) ResetRecordCache() {
	r.done = nil
	r.dumps = 0
}

func (r *instrumentRecorder) SetDumpCount(n int) { r.dumps = n }
