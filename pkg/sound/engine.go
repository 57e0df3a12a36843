/*
 * Copyright (c) 2026 Hardiyanto Y -Ebiet.
 * This software is part of the FMX (Famix Tracker) project.
 * This code is provided "as is", without warranty of any kind.
 */

package sound

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"famix/pkg/chip"
	"famix/pkg/song"
)

// State of the playback controller.
type State int

const (
	Idle State = iota
	Playing
	Rendering
	ShuttingDown
)

func (s State) String() string {
	switch s {
	case Playing:
		return "PLAYING"
	case Rendering:
		return "RENDERING"
	case ShuttingDown:
		return "SHUTTING_DOWN"
	}
	return "IDLE"
}

const (
	wait_stop_poll     = 100 * time.Millisecond
	wait_stop_iters    = 40 // 4s total
	remove_doc_iters   = 50 // 5s total
	shutdown_timeout   = 3 * time.Second
	idle_sleep         = 40 * time.Millisecond
	sequence_timeout   = 5 // ticks before a reported position goes stale
)

type docBox struct{ d Document }

// Engine is the sound generator: one dedicated goroutine drives the chip
// emulation, consumes commands from the controller context and routes the
// produced samples to the device or an attached render session.
//
// Three locks guard cross-context state: apuMu around chip register
// access and everything the controller may inspect mid-tick, renderMu
// around the render session, visMu around the visualizer pointer.
type Engine struct {
	cfg Config

	chp      chip.Chip
	dev      Device
	doc      atomic.Pointer[docBox]
	driver   *trackDriver
	tempo    *tempoCounter
	tdisplay *tempoDisplay
	recorder *instrumentRecorder

	apuMu    sync.Mutex
	renderMu sync.Mutex
	visMu    sync.Mutex

	renderer *WaveRenderer
	vis      Visualizer
	midi     MIDISink

	queue    commandQueue
	alive    atomic.Bool
	shutting atomic.Bool
	playing  atomic.Bool
	closed   chan struct{}

	haltRequest  atomic.Bool
	updateCycles atomic.Int32
	sampleRate   atomic.Int32
	frameCounter atomic.Int64
	lastTrack    atomic.Int32
	lastHl       atomic.Int32

	waveChanged   atomic.Bool
	waveChangedIn atomic.Bool

	muted [channelCount]bool

	seqID      any
	seqPos     int
	seqTimeout int

	// bounded-wait knobs, shrunk by tests
	waitPoll  time.Duration
	waitIters int
	idleSleep time.Duration
}

func NewEngine(cfg Config) *Engine {
	if cfg.SampleRate <= 0 {
		cfg = DefaultConfig()
	}
	e := &Engine{
		cfg:       cfg,
		chp:       chip.NewAPU(cfg.SampleRate),
		dev:       NewSpeakerDevice(),
		closed:    make(chan struct{}),
		seqPos:    -1,
		waitPoll:  wait_stop_poll,
		waitIters: wait_stop_iters,
		idleSleep: idle_sleep,
	}
	e.driver = newTrackDriver(e)
	e.recorder = newInstrumentRecorder(e)
	e.updateCycles.Store(int32(chip.BaseFreqNTSC / 60))
	e.sampleRate.Store(int32(cfg.SampleRate))
	return e
}

// UseDevice swaps the audio backend; call before InitializeSound.
func (e *Engine) UseDevice(d Device) { e.dev = d }

// UseChip swaps the emulation driver; call before InitializeSound.
func (e *Engine) UseChip(c chip.Chip) {
	e.chp = c
	if doc := e.document(); doc != nil {
		e.driver.LoadDocument(doc, c)
	}
}

func (e *Engine) UseMIDI(m MIDISink) {
	e.apuMu.Lock()
	e.midi = m
	e.apuMu.Unlock()
}

// AssignDocument binds the document collaborator. Only the first document
// is accepted; later ones are used for imports and get their own engine.
func (e *Engine) AssignDocument(doc Document) {
	if doc == nil || e.document() != nil {
		return
	}
	e.doc.Store(&docBox{doc})
	e.apuMu.Lock()
	e.tempo = newTempoCounter(doc)
	e.driver.LoadDocument(doc, e.chp)
	e.driver.SetTempoCounter(e.tempo)
	e.apuMu.Unlock()
	e.LoadMachineSettings()

	mask := chip.Chip2A03
	for _, m := range []chip.Mask{chip.ChipVRC6, chip.ChipVRC7, chip.ChipFDS,
		chip.ChipMMC5, chip.ChipN163, chip.ChipS5B} {
		if doc.ExpansionEnabled(int(m)) {
			mask |= m
		}
	}
	e.setChip(mask)
}

func (e *Engine) document() Document {
	if box := e.doc.Load(); box != nil {
		return box.d
	}
	return nil
}

// SetVisualizer attaches (or detaches, with nil) the sample feed consumer.
// The engine goroutine replaces the config wholesale on LoadSettings, so
// the rate comes from its own atomic rather than the config.
func (e *Engine) SetVisualizer(v Visualizer) {
	e.visMu.Lock()
	e.vis = v
	if v != nil {
		v.SetSampleRate(int(e.sampleRate.Load()))
	}
	e.visMu.Unlock()
}

// LoadMachineSettings recomputes the per-tick cycle budget from the
// document's machine type and frame rate.
func (e *Engine) LoadMachineSettings() {
	machine := chip.NTSC
	rate := 60
	if doc := e.document(); doc != nil {
		if doc.IsPAL() {
			machine = chip.PAL
			rate = 50
		}
		if r := doc.FrameRate(); r > 0 {
			rate = r
		}
	}
	e.updateCycles.Store(int32(machine.BaseFreq() / rate))
	e.apuMu.Lock()
	e.chp.SetMachineRate(machine, rate)
	e.apuMu.Unlock()
}

// ======================================================
// Engine lifecycle
// ======================================================

// InitializeSound starts the engine goroutine. A failing device open is
// non-fatal: the thread still starts, reports the problem through the
// visualizer and no-ops every tick until a later successful reset.
func (e *Engine) InitializeSound() error {
	if e.alive.Swap(true) {
		return nil // already running
	}
	e.shutting.Store(false)
	e.closed = make(chan struct{})
	go e.run()
	return nil
}

// Shutdown asks the engine goroutine to exit and waits up to 3s.
func (e *Engine) Shutdown() bool {
	if !e.alive.Load() {
		return true
	}
	e.Post(quitCommand{})
	if e.dev != nil {
		e.dev.Interrupt()
	}
	select {
	case <-e.closed:
		return true
	case <-time.After(shutdown_timeout):
		log.Printf("[engine] shutdown timed out")
		return false
	}
}

func (e *Engine) IsRunning() bool { return e.alive.Load() }

func (e *Engine) run() {
	defer close(e.closed)
	defer e.alive.Store(false)

	if err := e.resetAudioDevice(); err != nil {
		log.Printf("[engine] failed to reset audio device: %v", err)
		e.reportAudioProblem()
	}
	e.resetChip()
	e.frameCounter.Store(0)

	for {
		for _, c := range e.queue.drain() {
			e.handleCommand(c)
		}
		if e.shutting.Load() {
			break
		}
		e.tick()
	}

	e.haltPlayer()
	e.closeAudio()
}

// Post enqueues a command, FIFO, non-blocking. Commands posted before the
// engine is started are silently dropped.
func (e *Engine) Post(c Command) {
	if !e.alive.Load() {
		return
	}
	e.queue.post(c)
}

func (e *Engine) handleCommand(c Command) {
	switch cmd := c.(type) {
	case PlayCommand:
		e.beginPlayer(cmd.Cursor)
	case StopCommand:
		e.haltPlayer()
	case ResetCommand:
		if cmd.Cursor == nil {
			return
		}
		e.lastTrack.Store(int32(cmd.Cursor.Track()))
		if e.IsPlaying() {
			e.beginPlayer(cmd.Cursor)
		}
	case LoadSettingsCommand:
		e.cfg = cmd.Config
		if err := e.resetAudioDevice(); err != nil {
			log.Printf("[engine] failed to reset audio device: %v", err)
			e.reportAudioProblem()
		}
	case SilentAllCommand:
		e.makeSilent()
	case StartRenderCommand:
		e.startRendering()
	case StopRenderCommand:
		e.stopRendering()
	case PreviewSampleCommand:
		e.playPreviewSample(cmd)
	case WriteRegisterCommand:
		e.apuMu.Lock()
		e.chp.Write(cmd.Addr, cmd.Value)
		e.apuMu.Unlock()
	case SetChipCommand:
		e.setChip(cmd.Mask)
	case CloseAudioCommand:
		e.closeAudio()
		if cmd.Done != nil {
			close(cmd.Done)
		}
	case RemoveDocumentCommand:
		e.removeDocument()
	case quitCommand:
		e.shutting.Store(true)
	}
}

// ======================================================
// Tick loop (single authority)
// ======================================================

func (e *Engine) tick() {
	doc := e.document()
	if e.dev == nil || !e.dev.IsOpen() || doc == nil || !doc.IsFileLoaded() {
		// Degraded: nothing to drive until a successful reset or load.
		time.Sleep(e.idleSleep)
		return
	}

	e.frameCounter.Add(1)

	e.renderMu.Lock()
	if e.isRenderingLocked() {
		e.renderer.Tick()
	}
	e.renderMu.Unlock()

	// Drive the emulation under the register lock; the waveform flag is
	// copied and cleared first so concurrent editor writes are seen as a
	// consistent snapshot, never torn.
	e.apuMu.Lock()
	if e.tdisplay != nil {
		e.tdisplay.Tick()
	}
	e.waveChangedIn.Store(e.waveChanged.Swap(false))
	e.driver.Tick()
	samples := e.chp.Step(int(e.updateCycles.Load()))
	e.apuMu.Unlock()

	e.playBuffer(samples)

	// Render session scheduling: the session may end the render or queue
	// the next track of a chained export.
	startTrack := -1
	stopRender := false
	e.renderMu.Lock()
	if e.renderer != nil {
		if e.renderer.ShouldStopRender() {
			stopRender = true
		} else if e.renderer.ShouldStartPlayer() {
			startTrack = e.renderer.RenderTrack()
		}
	}
	e.renderMu.Unlock()
	if stopRender {
		e.stopRendering()
	} else if startTrack >= 0 {
		e.beginPlayer(NewPlayerCursor(doc, startTrack))
	}

	// Halt policy: device/document unavailability already no-opped above;
	// only an explicit request or the render stop condition halts.
	if e.driver.ShouldHalt() || e.haltRequest.Load() || e.shouldStopPlayer() {
		e.haltPlayer()
	}

	if e.IsPlaying() {
		e.apuMu.Lock()
		if e.recorder.RecordChannel() != NoRecordChannel {
			e.recorder.RecordInstrument(e.playerTicksLocked())
		}
		e.apuMu.Unlock()
	}
}

// playBuffer routes one tick's samples: render sink while rendering,
// otherwise device plus visualizer. Never both in the same tick.
func (e *Engine) playBuffer(samples []int16) {
	e.renderMu.Lock()
	if e.isRenderingLocked() {
		err := e.renderer.FlushBuffer(samples)
		e.renderMu.Unlock()
		if err != nil {
			log.Printf("[engine] render flush failed: %v", err)
		}
		return
	}
	e.renderMu.Unlock()

	if err := e.dev.PlayBuffer(samples); err != nil {
		log.Printf("[engine] device write failed: %v", err)
		e.reportAudioProblem()
		return
	}

	e.visMu.Lock()
	if e.vis != nil {
		e.vis.FlushSamples(samples)
	}
	e.visMu.Unlock()
}

// FrameRate returns the number of ticks since the last call; the front
// end uses it as the achieved refresh rate.
func (e *Engine) FrameRate() int {
	return int(e.frameCounter.Swap(0))
}

// ======================================================
// Playback controller
// ======================================================

func (e *Engine) beginPlayer(cursor *PlayerCursor) {
	if cursor == nil {
		return
	}
	doc := e.document()
	if doc == nil || e.dev == nil || !e.dev.IsOpen() || !doc.IsFileLoaded() {
		return // Play is a no-op without an open device and loaded file
	}

	e.apuMu.Lock()
	e.driver.StartPlayer(cursor)
	if e.cfg.AverageBPM {
		e.tdisplay = newTempoDisplay(e.tempo, average_bpm_window)
	} else {
		e.tdisplay = nil
	}
	e.tempo.LoadTempo(cursor.Track())
	e.apuMu.Unlock()

	e.haltRequest.Store(false)
	e.lastTrack.Store(int32(cursor.Track()))
	e.lastHl.Store(int32(doc.HighlightAt(cursor.Track(), cursor.Frame(), cursor.Row())))

	e.makeSilent()
	e.resetChip()

	if e.cfg.RetrieveChanState {
		e.applyGlobalState(doc, cursor)
	}

	e.apuMu.Lock()
	if e.recorder.RecordChannel() != NoRecordChannel {
		e.recorder.StartRecording(cursor.Ticks())
	}
	e.apuMu.Unlock()

	e.playing.Store(true)
}

// haltPlayer moves the player back to the non-playing state: full channel
// silencing, sample cleared, recording session ended.
func (e *Engine) haltPlayer() {
	e.makeSilent()
	e.apuMu.Lock()
	e.chp.ClearSample()
	e.recorder.StopRecording()
	e.driver.StopPlayer()
	e.tdisplay = nil
	e.apuMu.Unlock()
	e.playing.Store(false)
	e.haltRequest.Store(false)
}

func (e *Engine) makeSilent() {
	e.apuMu.Lock()
	e.chp.Reset()
	e.chp.ClearSample()
	e.driver.ResetTracks()
	e.apuMu.Unlock()
}

// resetChip resets the emulation and re-enables the channels.
func (e *Engine) resetChip() {
	e.apuMu.Lock()
	e.chp.Reset()
	e.chp.Write(0x4015, 0x0F)
	e.chp.Write(0x4017, 0x00)
	e.chp.Write(0x4023, 0x02) // FDS enable, ignored without the expansion
	e.chp.Write(0x5015, 0x03) // MMC5
	e.chp.ClearSample()
	e.apuMu.Unlock()
}

func (e *Engine) setChip(mask chip.Mask) {
	e.apuMu.Lock()
	e.chp.SetExternalSound(mask)
	e.chp.Write(0x4015, 0x0F)
	e.chp.Write(0x4017, 0x00)
	if mask&chip.ChipMMC5 != 0 {
		e.chp.Write(0x5015, 0x03)
	}
	e.apuMu.Unlock()
}

// applyGlobalState replays the channel state captured at the cursor so a
// mid-song start sounds right.
func (e *Engine) applyGlobalState(doc Document, cursor *PlayerCursor) {
	st := RetrieveSongState(doc, cursor.Track(), cursor.Frame(), cursor.Row())
	e.apuMu.Lock()
	e.driver.LoadSoundState(st)
	e.apuMu.Unlock()
	e.lastHl.Store(int32(doc.HighlightAt(cursor.Track(), cursor.Frame(), cursor.Row())))
}

// ApplyGlobalState re-applies the snapshot at the current position.
func (e *Engine) ApplyGlobalState() {
	doc := e.document()
	if doc == nil {
		return
	}
	frame, row := e.PlayerPos()
	e.applyGlobalState(doc, NewPlayerCursorAt(doc, e.PlayerTrack(), frame, row))
}

// driver callbacks, engine goroutine, apuMu held

func (e *Engine) onStepRow() {
	if e.tdisplay != nil {
		e.tdisplay.StepRow()
	}
	e.renderMu.Lock()
	if e.isRenderingLocked() {
		e.renderer.StepRow()
	}
	e.renderMu.Unlock()
}

func (e *Engine) onUpdateRow(frame, row int) {
	if doc := e.document(); doc != nil {
		e.lastHl.Store(int32(doc.HighlightAt(int(e.lastTrack.Load()), frame, row)))
	}
}

func (e *Engine) onPlayNote(ch int, ev song.NoteEvent) {
	if !ev.IsNote() || e.midi == nil {
		return
	}
	doc := e.document()
	if doc == nil {
		return
	}
	vel := ev.Volume
	if vel == song.VolumeNone {
		vel = 15
	}
	e.midi.WriteNote(doc.ChannelIndex(ch), ev.Note, ev.Octave, vel)
}

// ======================================================
// Controller-facing interface
// ======================================================

func (e *Engine) StartPlayer(cursor *PlayerCursor) { e.Post(PlayCommand{Cursor: cursor}) }

// Play starts a track from the top.
func (e *Engine) Play(track int) {
	doc := e.document()
	if doc == nil {
		return
	}
	e.Post(PlayCommand{Cursor: NewPlayerCursor(doc, track)})
}

// PlayAt starts playback from an arbitrary position.
func (e *Engine) PlayAt(track, frame, row int) {
	doc := e.document()
	if doc == nil {
		return
	}
	e.Post(PlayCommand{Cursor: NewPlayerCursorAt(doc, track, frame, row)})
}

func (e *Engine) StopPlayer() { e.Post(StopCommand{}) }

func (e *Engine) ResetPlayer(track int) {
	doc := e.document()
	if doc == nil {
		return
	}
	e.Post(ResetCommand{Cursor: NewPlayerCursor(doc, track)})
}

func (e *Engine) LoadSettings(cfg Config) { e.Post(LoadSettingsCommand{Config: cfg}) }

func (e *Engine) SilentAll() { e.Post(SilentAllCommand{}) }

// WriteRegister is the direct chip interface for the register editor.
func (e *Engine) WriteRegister(addr uint16, value byte) {
	e.Post(WriteRegisterCommand{Addr: addr, Value: value})
}

// SelectChip stops playback, then switches the emulated expansion sound.
func (e *Engine) SelectChip(mask chip.Mask) {
	if e.IsPlaying() {
		e.StopPlayer()
	}
	if !e.WaitForStop() {
		log.Printf("[engine] could not stop player for chip change")
		return
	}
	e.Post(SetChipCommand{Mask: mask})
}

// PreviewSample auditions a DPCM sample outside the document. The sample
// reference transfers to the engine and is dropped once playback ends or
// CancelPreviewSample is called.
func (e *Engine) PreviewSample(s *chip.DPCMSample, offset, pitch int) {
	e.Post(PreviewSampleCommand{Sample: s, Offset: offset, Pitch: pitch})
}

// CancelPreviewSample drops the sample reference; required before the
// underlying data is deleted.
func (e *Engine) CancelPreviewSample() {
	e.apuMu.Lock()
	e.chp.ClearSample()
	e.apuMu.Unlock()
}

// PreviewDone reports whether one-shot sample playback has finished.
func (e *Engine) PreviewDone() bool {
	e.apuMu.Lock()
	defer e.apuMu.Unlock()
	return !e.chp.DPCMPlaying()
}

func (e *Engine) IsPlaying() bool { return e.playing.Load() }

func (e *Engine) State() State {
	switch {
	case e.shutting.Load():
		return ShuttingDown
	case e.IsRendering():
		return Rendering
	case e.IsPlaying():
		return Playing
	}
	return Idle
}

// WaitForStop polls until playback stops, 4s bound. Returns false, without
// crashing, when the player is stuck; the stop command must already have
// been issued.
func (e *Engine) WaitForStop() bool {
	for i := 0; i < e.waitIters && e.IsPlaying(); i++ {
		time.Sleep(e.waitPoll)
	}
	if e.IsPlaying() {
		log.Printf("[engine] wait for stop timed out: %v", ErrWaitTimeout)
		return false
	}
	return true
}

// RemoveDocument detaches the document: stops playback, posts the removal
// and polls up to 5s for the engine to acknowledge.
func (e *Engine) RemoveDocument() {
	e.StopPlayer()
	e.WaitForStop()
	e.Post(RemoveDocumentCommand{})
	for i := 0; i < remove_doc_iters && e.document() != nil; i++ {
		time.Sleep(e.waitPoll)
	}
	if e.document() != nil {
		log.Printf("[engine] could not remove document: %v", ErrWaitTimeout)
	}
}

func (e *Engine) removeDocument() {
	e.haltPlayer()
	e.doc.Store(nil)
	e.apuMu.Lock()
	e.recorder.SetDumpCount(0)
	e.recorder.ReleaseCurrent()
	e.recorder.ResetRecordCache()
	e.apuMu.Unlock()
	log.Printf("[engine] document removed")
}

// CloseAudio flushes and releases the device from the engine goroutine;
// done (optional) is closed on completion.
func (e *Engine) CloseAudio(done chan struct{}) {
	e.Post(CloseAudioCommand{Done: done})
}

// ======================================================
// Cursor and state queries (register lock shared with the tick loop)
// ======================================================

func (e *Engine) PlayerPos() (frame, row int) {
	e.apuMu.Lock()
	defer e.apuMu.Unlock()
	if c := e.driver.PlayerCursor(); c != nil {
		return c.Frame(), c.Row()
	}
	return 0, 0
}

func (e *Engine) PlayerTrack() int { return int(e.lastTrack.Load()) }

func (e *Engine) PlayerTicks() int {
	e.apuMu.Lock()
	defer e.apuMu.Unlock()
	return e.playerTicksLocked()
}

func (e *Engine) playerTicksLocked() int {
	if c := e.driver.PlayerCursor(); c != nil {
		return c.Ticks()
	}
	return 0
}

func (e *Engine) MoveToFrame(frame int) {
	e.apuMu.Lock()
	if c := e.driver.PlayerCursor(); c != nil {
		c.SetPosition(frame, 0)
	}
	e.apuMu.Unlock()
}

func (e *Engine) SetQueueFrame(frame int) {
	e.apuMu.Lock()
	if c := e.driver.PlayerCursor(); c != nil {
		c.QueueFrame(frame)
	}
	e.apuMu.Unlock()
}

func (e *Engine) QueueFrame() (int, bool) {
	e.apuMu.Lock()
	defer e.apuMu.Unlock()
	if c := e.driver.PlayerCursor(); c != nil {
		return c.QueuedFrame()
	}
	return 0, false
}

// SetChannelMute flips a channel mute. Muting the channel armed for
// instrument recording clears the armed channel.
func (e *Engine) SetChannelMute(ch int, mute bool) {
	if ch < 0 || ch >= channelCount {
		return
	}
	e.apuMu.Lock()
	e.muted[ch] = mute
	if mute && ch == e.recorder.RecordChannel() {
		e.recorder.SetRecordChannel(NoRecordChannel)
	}
	e.apuMu.Unlock()
}

func (e *Engine) IsChannelMuted(ch int) bool {
	e.apuMu.Lock()
	defer e.apuMu.Unlock()
	return e.isChannelMutedLocked(ch)
}

func (e *Engine) isChannelMutedLocked(ch int) bool {
	if ch < 0 || ch >= channelCount {
		return true
	}
	return e.muted[ch]
}

// PlaySingleRow sounds one row on all unmuted channels without starting
// the player.
func (e *Engine) PlaySingleRow(track, frame, row int) {
	doc := e.document()
	if doc == nil || !doc.IsFileLoaded() {
		return
	}
	e.lastTrack.Store(int32(track))
	e.apuMu.Lock()
	n := doc.ChannelCount()
	if n > channelCount {
		n = channelCount
	}
	for ch := 0; ch < n; ch++ {
		if e.muted[ch] {
			continue
		}
		ev := doc.ActiveNote(track, frame, ch, row)
		e.driver.QueueNote(ch, ev)
		e.onPlayNote(ch, ev)
	}
	e.apuMu.Unlock()
}

// RecallChannelState formats the effective note/instrument/volume of a
// channel, live while playing, from the song data otherwise.
func (e *Engine) RecallChannelState(ch int) string {
	if e.IsPlaying() {
		e.apuMu.Lock()
		defer e.apuMu.Unlock()
		return e.driver.ChannelStateString(ch)
	}
	doc := e.document()
	if doc == nil {
		return "none"
	}
	return RetrieveSongState(doc, e.PlayerTrack(), 0, 0).ChannelStateString(ch)
}

func (e *Engine) ChannelNote(ch int) int {
	e.apuMu.Lock()
	defer e.apuMu.Unlock()
	return e.driver.ChannelNote(ch)
}

func (e *Engine) ChannelVolume(ch int) int {
	e.apuMu.Lock()
	defer e.apuMu.Unlock()
	return e.driver.ChannelVolume(ch)
}

// RegisterSnapshot reads the last value written to a chip register; the
// explicitly locked read path shared with the tick loop.
func (e *Engine) RegisterSnapshot(addr uint16) (byte, bool) {
	e.apuMu.Lock()
	defer e.apuMu.Unlock()
	return e.chp.RegisterSnapshot(addr)
}

func (e *Engine) ChannelFreq(channel int) float64 {
	e.apuMu.Lock()
	defer e.apuMu.Unlock()
	return e.chp.ChannelFreq(channel)
}

func (e *Engine) GetDPCMState() chip.DPCMState {
	e.apuMu.Lock()
	defer e.apuMu.Unlock()
	return e.chp.GetDPCMState()
}

// WaveChanged marks the editor-side waveform memory dirty; the tick loop
// copies and clears it atomically.
func (e *Engine) WaveChanged() { e.waveChanged.Store(true) }

func (e *Engine) HasWaveChanged() bool { return e.waveChangedIn.Load() }

// ======================================================
// Tempo display
// ======================================================

func (e *Engine) AverageBPM() float64 {
	e.apuMu.Lock()
	defer e.apuMu.Unlock()
	if e.tdisplay != nil {
		return e.tdisplay.AverageBPM()
	}
	if e.tempo != nil {
		return e.tempo.Tempo()
	}
	return 0
}

// CurrentBPM scales the tempo by the active row highlight and clamps it
// to one row per tick.
func (e *Engine) CurrentBPM() float64 {
	doc := e.document()
	if doc == nil {
		return 0
	}
	max := float64(doc.FrameRate()) * 15
	bpm := e.AverageBPM()
	if bpm > max {
		bpm = max
	}
	hl := int(e.lastHl.Load())
	if hl == 0 {
		hl = 4
	}
	return bpm * 4 / float64(hl)
}

// ======================================================
// Sequence play position diagnostics
// ======================================================

// SetSequencePlayPos records the step an instrument sequence is on; only
// refreshes while the same sequence identity keeps playing.
func (e *Engine) SetSequencePlayPos(seq any, pos int) {
	e.apuMu.Lock()
	if seq == e.seqID {
		e.seqPos = pos
		e.seqTimeout = sequence_timeout
	}
	e.apuMu.Unlock()
}

// SequencePlayPos returns the recorded step for the sequence, or -1 once
// the position has gone stale (5 polls without a refresh) or the identity
// changed.
func (e *Engine) SequencePlayPos(seq any) int {
	e.apuMu.Lock()
	defer e.apuMu.Unlock()
	if e.seqID != seq {
		e.seqPos = -1
	}
	if e.seqTimeout == 0 {
		e.seqPos = -1
	} else {
		e.seqTimeout--
	}
	ret := e.seqPos
	e.seqID = seq
	return ret
}

// ======================================================
// Instrument recorder
// ======================================================

func (e *Engine) RecordChannel() int {
	e.apuMu.Lock()
	defer e.apuMu.Unlock()
	return e.recorder.RecordChannel()
}

func (e *Engine) SetRecordChannel(ch int) {
	e.apuMu.Lock()
	e.recorder.SetRecordChannel(ch)
	e.apuMu.Unlock()
}

func (e *Engine) RecordSetting() RecordSetting {
	e.apuMu.Lock()
	defer e.apuMu.Unlock()
	return e.recorder.Setting()
}

func (e *Engine) SetRecordSetting(s RecordSetting) {
	e.apuMu.Lock()
	e.recorder.SetSetting(s)
	e.apuMu.Unlock()
}

// RecordInstrumentResult hands out the most recent finished capture, once.
func (e *Engine) RecordInstrumentResult() *RecordedInstrument {
	e.apuMu.Lock()
	defer e.apuMu.Unlock()
	return e.recorder.RecordInstrumentResult()
}

// ======================================================
// Rendering
// ======================================================

// RenderToFile attaches a render session. A running player is halted
// first; an unopenable sink aborts the render and leaves the player
// stopped.
func (e *Engine) RenderToFile(r *WaveRenderer) error {
	if r == nil {
		return ErrRenderIO
	}
	if e.IsPlaying() {
		e.haltRequest.Store(true)
		e.WaitForStop()
	}
	if err := r.openFirst(); err != nil {
		e.StopPlayer()
		log.Printf("[engine] could not open render output: %v", err)
		return err
	}
	e.renderMu.Lock()
	e.renderer = r
	e.renderMu.Unlock()
	e.Post(StartRenderCommand{})
	return nil
}

func (e *Engine) StopRendering() { e.Post(StopRenderCommand{}) }

func (e *Engine) IsRendering() bool {
	e.renderMu.Lock()
	defer e.renderMu.Unlock()
	return e.isRenderingLocked()
}

func (e *Engine) isRenderingLocked() bool {
	return e.renderer != nil && e.renderer.Started() && !e.renderer.Finished()
}

// IsBackgroundTask reports whether the engine is busy with an unattended
// job the front end should not interrupt.
func (e *Engine) IsBackgroundTask() bool { return e.IsRendering() }

func (e *Engine) startRendering() {
	e.resetBuffer()
	e.renderMu.Lock()
	if e.renderer != nil {
		e.renderer.Start()
	}
	e.renderMu.Unlock()
}

func (e *Engine) stopRendering() {
	e.renderMu.Lock()
	r := e.renderer
	e.renderer = nil
	e.renderMu.Unlock()
	if r == nil {
		return
	}
	r.release()
	if err := r.Err(); err != nil {
		log.Printf("[engine] render ended with error: %v", err)
	}
	e.resetBuffer()
	e.haltPlayer()
	e.resetChip()
}

func (e *Engine) shouldStopPlayer() bool {
	e.renderMu.Lock()
	defer e.renderMu.Unlock()
	return e.isRenderingLocked() && e.renderer.ShouldStopPlayer()
}

// ======================================================
// Device handling
// ======================================================

// resetAudioDevice (re)opens the output against the current config. The
// engine must be able to continue when this fails.
func (e *Engine) resetAudioDevice() error {
	if e.dev == nil {
		return ErrDeviceUnavailable
	}
	if e.dev.IsOpen() {
		e.dev.Close()
	}

	cfg := e.cfg
	if cfg.Device < 0 || cfg.Device >= e.dev.DeviceCount() {
		// Invalid device detected, reset to 0 and persist the correction.
		cfg.Device = 0
		e.cfg.Device = 0
	}
	blocks := BlockCount(cfg.BufferLenMs)

	if err := e.dev.Open(cfg.SampleRate, cfg.SampleSize, cfg.BufferLenMs, cfg.Device, blocks); err != nil {
		return err
	}
	e.dev.SetVolume(cfg.MixVolume)
	e.sampleRate.Store(int32(cfg.SampleRate))

	e.visMu.Lock()
	if e.vis != nil {
		e.vis.SetSampleRate(cfg.SampleRate)
	}
	e.visMu.Unlock()

	e.apuMu.Lock()
	e.chp.SetSampleRate(cfg.SampleRate)
	e.chp.SetMixerLevels(cfg.ChipLevels)
	e.apuMu.Unlock()
	e.LoadMachineSettings()

	log.Printf("[engine] opened sound: %d Hz, %d bits, %d ms (%d blocks)",
		cfg.SampleRate, cfg.SampleSize, cfg.BufferLenMs, blocks)
	return nil
}

// resetBuffer drops queued audio and resets the emulation.
func (e *Engine) resetBuffer() {
	e.dev.Reset()
	e.apuMu.Lock()
	e.chp.Reset()
	e.apuMu.Unlock()
}

func (e *Engine) closeAudio() {
	if e.dev != nil {
		e.dev.Interrupt()
		e.dev.Close()
	}
}

func (e *Engine) reportAudioProblem() {
	e.visMu.Lock()
	if e.vis != nil {
		e.vis.ReportAudioProblem()
	}
	e.visMu.Unlock()
}

// ======================================================
// Sample preview
// ======================================================

// playPreviewSample loads the sample and fires one-shot playback via the
// DPCM registers.
func (e *Engine) playPreviewSample(cmd PreviewSampleCommand) {
	if cmd.Sample == nil || len(cmd.Sample.Data) == 0 {
		return
	}
	loop := 0
	length := ((len(cmd.Sample.Data) - 1) >> 4) - (cmd.Offset << 2)
	if length < 0 {
		length = 0
	}

	e.apuMu.Lock()
	e.chp.WriteSample(cmd.Sample)
	e.chp.Write(0x4010, byte(cmd.Pitch|loop))
	e.chp.Write(0x4012, byte(cmd.Offset)) // load address, starts at $C000
	e.chp.Write(0x4013, byte(length))
	e.chp.Write(0x4015, 0x0F)
	e.chp.Write(0x4015, 0x1F) // fire sample
	e.apuMu.Unlock()
}
