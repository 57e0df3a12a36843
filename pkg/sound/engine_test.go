package sound

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"famix/pkg/chip"
	"famix/pkg/song"
)

func testEngine(doc Document) *Engine {
	e := NewEngine(DefaultConfig())
	e.UseDevice(NewNullDevice())
	e.waitPoll = time.Millisecond
	e.idleSleep = time.Millisecond
	if doc != nil {
		e.AssignDocument(doc)
	}
	return e
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type failDevice struct{ NullDevice }

func (d *failDevice) Open(sampleRate, sampleSize, bufferLenMs, device, blocks int) error {
	return ErrDeviceUnavailable
}

type countingDevice struct {
	NullDevice
	calls atomic.Int32
}

func (d *countingDevice) PlayBuffer(samples []int16) error {
	d.calls.Add(1)
	return d.NullDevice.PlayBuffer(samples)
}

type fakeVis struct {
	mu      sync.Mutex
	rate    int
	samples int
	problem bool
}

func (v *fakeVis) SetSampleRate(rate int) {
	v.mu.Lock()
	v.rate = rate
	v.mu.Unlock()
}

func (v *fakeVis) FlushSamples(buf []int16) {
	v.mu.Lock()
	v.samples += len(buf)
	v.mu.Unlock()
}

func (v *fakeVis) ReportAudioProblem() {
	v.mu.Lock()
	v.problem = true
	v.mu.Unlock()
}

func (v *fakeVis) hasProblem() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.problem
}

func (v *fakeVis) sampleRate() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.rate
}

type memSink struct {
	mu        sync.Mutex
	samples   int
	closed    bool
	failWrite bool
}

func (s *memSink) WriteFrames(frames []int16) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrite {
		return errors.New("disk full")
	}
	s.samples += len(frames)
	return nil
}

func (s *memSink) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *memSink) stats() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.samples, s.closed
}

func TestPlayWithoutDocumentIsNoOp(t *testing.T) {
	e := testEngine(nil)
	if err := e.InitializeSound(); err != nil {
		t.Fatal(err)
	}
	defer e.Shutdown()

	e.Post(PlayCommand{Cursor: NewPlayerCursor(song.Demo(), 0)})
	time.Sleep(50 * time.Millisecond)
	if e.IsPlaying() {
		t.Fatal("player started without a document")
	}
	if e.State() != Idle {
		t.Fatalf("state = %v, want Idle", e.State())
	}
}

func TestPlayStartsAndStops(t *testing.T) {
	e := testEngine(song.Demo())
	if err := e.InitializeSound(); err != nil {
		t.Fatal(err)
	}
	defer e.Shutdown()

	e.Play(0)
	waitFor(t, "player start", e.IsPlaying)
	if e.State() != Playing {
		t.Fatalf("state = %v, want Playing", e.State())
	}
	if e.PlayerTrack() != 0 {
		t.Fatalf("track = %d, want 0", e.PlayerTrack())
	}

	e.StopPlayer()
	waitFor(t, "player stop", func() bool { return !e.IsPlaying() })
	if e.State() != Idle {
		t.Fatalf("state = %v, want Idle", e.State())
	}
}

func TestPlayWithFailedDeviceIsNoOp(t *testing.T) {
	e := testEngine(song.Demo())
	e.UseDevice(&failDevice{})
	vis := &fakeVis{}
	e.SetVisualizer(vis)

	if err := e.InitializeSound(); err != nil {
		t.Fatal(err)
	}
	defer e.Shutdown()

	waitFor(t, "audio problem report", vis.hasProblem)

	e.Play(0)
	time.Sleep(50 * time.Millisecond)
	if e.IsPlaying() {
		t.Fatal("player started with a failed device")
	}
}

func TestCycleBudget(t *testing.T) {
	ntsc := testEngine(song.Demo())
	if got := int(ntsc.updateCycles.Load()); got != chip.BaseFreqNTSC/60 {
		t.Fatalf("NTSC cycle budget = %d, want %d", got, chip.BaseFreqNTSC/60)
	}

	pal := testEngine(&song.Memory{MachinePAL: true, Loaded: true, Channels: 5,
		Tracks: []*song.Track{{Tempo: 150, Speed: 6, Rows: 16}}})
	if got := int(pal.updateCycles.Load()); got != chip.BaseFreqPAL/50 {
		t.Fatalf("PAL cycle budget = %d, want %d", got, chip.BaseFreqPAL/50)
	}
}

func TestMuteClearsRecordChannel(t *testing.T) {
	e := testEngine(song.Demo())
	e.SetRecordChannel(2)
	if e.RecordChannel() != 2 {
		t.Fatalf("record channel = %d, want 2", e.RecordChannel())
	}

	e.SetChannelMute(1, true)
	if e.RecordChannel() != 2 {
		t.Fatal("muting an unrelated channel cleared the record channel")
	}

	e.SetChannelMute(2, true)
	if e.RecordChannel() != NoRecordChannel {
		t.Fatal("muting the armed channel did not clear the record channel")
	}
	if !e.IsChannelMuted(2) {
		t.Fatal("channel 2 not muted")
	}
}

func TestWaitForStopTimeout(t *testing.T) {
	e := testEngine(song.Demo())
	e.waitIters = 3
	e.playing.Store(true) // engine not running, never clears

	start := time.Now()
	if e.WaitForStop() {
		t.Fatal("WaitForStop reported success for a stuck player")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("WaitForStop blocked %v past its bound", elapsed)
	}
}

func TestSequencePlayPosGoesStale(t *testing.T) {
	e := testEngine(nil)
	seq := &struct{ id int }{1}

	if got := e.SequencePlayPos(seq); got != -1 {
		t.Fatalf("initial pos = %d, want -1", got)
	}
	e.SetSequencePlayPos(seq, 7)
	if got := e.SequencePlayPos(seq); got != 7 {
		t.Fatalf("pos = %d, want 7", got)
	}
	// without refreshes the position survives a bounded number of polls
	for i := 0; i < 4; i++ {
		if got := e.SequencePlayPos(seq); got != 7 {
			t.Fatalf("poll %d: pos = %d, want 7", i, got)
		}
	}
	if got := e.SequencePlayPos(seq); got != -1 {
		t.Fatalf("stale pos = %d, want -1", got)
	}

	// identity change invalidates immediately
	e.SetSequencePlayPos(seq, 3)
	other := &struct{ id int }{2}
	if got := e.SequencePlayPos(other); got != -1 {
		t.Fatalf("pos for different sequence = %d, want -1", got)
	}
}

func TestRenderChainedExport(t *testing.T) {
	e := testEngine(song.Demo())
	if err := e.InitializeSound(); err != nil {
		t.Fatal(err)
	}
	defer e.Shutdown()

	var mu sync.Mutex
	sinks := map[int]*memSink{}
	open := func(track int) (RenderSink, error) {
		s := &memSink{}
		mu.Lock()
		sinks[track] = s
		mu.Unlock()
		return s, nil
	}

	r, err := NewWaveRenderer([]RenderJob{
		{Track: 0, Ticks: 30},
		{Track: 1, Ticks: 30},
	}, open)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.RenderToFile(r); err != nil {
		t.Fatal(err)
	}

	waitFor(t, "render finish", func() bool { return !e.IsRendering() && !e.IsPlaying() })

	mu.Lock()
	defer mu.Unlock()
	for _, track := range []int{0, 1} {
		s := sinks[track]
		if s == nil {
			t.Fatalf("track %d sink never opened", track)
		}
		n, closed := s.stats()
		if n == 0 {
			t.Errorf("track %d sink got no samples", track)
		}
		if !closed {
			t.Errorf("track %d sink not closed", track)
		}
	}
}

func TestRenderToFileBadSink(t *testing.T) {
	e := testEngine(song.Demo())
	r, err := NewWaveRenderer([]RenderJob{{Track: 0, Ticks: 10}}, func(track int) (RenderSink, error) {
		return nil, errors.New("permission denied")
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := e.RenderToFile(r); err == nil {
		t.Fatal("RenderToFile accepted an unopenable sink")
	}
	if e.IsRendering() {
		t.Fatal("render session attached despite sink failure")
	}
}

func TestPlayBufferRoutesToRenderSinkOnly(t *testing.T) {
	e := testEngine(song.Demo())
	dev := &countingDevice{}
	dev.Open(44100, 16, 40, 0, 2)
	e.UseDevice(dev)

	ms := &memSink{}
	e.renderer = &WaveRenderer{jobs: []RenderJob{{Track: 0, Ticks: 10}}, sink: ms, started: true}

	e.playBuffer(make([]int16, 64))
	if n, _ := ms.stats(); n != 64 {
		t.Fatalf("render sink got %d samples, want 64", n)
	}
	if dev.calls.Load() != 0 {
		t.Fatal("device written while rendering")
	}

	e.renderer = nil
	e.playBuffer(make([]int16, 64))
	if dev.calls.Load() != 1 {
		t.Fatal("device not written after render detach")
	}
	if n, _ := ms.stats(); n != 64 {
		t.Fatal("render sink written outside the render session")
	}
}

func TestPreviewSampleRegisters(t *testing.T) {
	e := testEngine(nil)
	data := make([]byte, 256)
	for i := range data {
		data[i] = 0xAA
	}
	e.playPreviewSample(PreviewSampleCommand{
		Sample: &chip.DPCMSample{Name: "kick", Data: data},
		Offset: 2,
		Pitch:  5,
	})

	checks := []struct {
		addr uint16
		want byte
	}{
		{0x4010, 5},
		{0x4012, 2},
		{0x4013, byte(((256 - 1) >> 4) - (2 << 2))},
		{0x4015, 0x1F},
	}
	for _, c := range checks {
		v, written := e.RegisterSnapshot(c.addr)
		if !written {
			t.Fatalf("$%04X never written", c.addr)
		}
		if v != c.want {
			t.Errorf("$%04X = $%02X, want $%02X", c.addr, v, c.want)
		}
	}

	if e.PreviewDone() {
		t.Fatal("preview reported done right after start")
	}
	for i := 0; i < 400 && !e.PreviewDone(); i++ {
		e.apuMu.Lock()
		e.chp.Step(chip.BaseFreqNTSC / 60)
		e.apuMu.Unlock()
	}
	if !e.PreviewDone() {
		t.Fatal("preview never finished")
	}
}

func TestHaltEffectStopsPlayback(t *testing.T) {
	pat := song.Pattern{
		{Note: song.NoteC, Octave: 3, Volume: song.VolumeNone},
		{Volume: song.VolumeNone, Effect: EffectHalt},
		{Volume: song.VolumeNone},
		{Volume: song.VolumeNone},
	}
	doc := &song.Memory{
		Loaded:   true,
		Channels: 1,
		Tracks: []*song.Track{{
			Tempo: 150, Speed: 6, Rows: 4,
			Frames: [][]song.Pattern{{pat}},
		}},
	}

	e := testEngine(doc)
	if err := e.InitializeSound(); err != nil {
		t.Fatal(err)
	}
	defer e.Shutdown()

	e.Play(0)
	waitFor(t, "halt effect", func() bool { return !e.IsPlaying() })
}

func TestRemoveDocument(t *testing.T) {
	e := testEngine(song.Demo())
	if err := e.InitializeSound(); err != nil {
		t.Fatal(err)
	}
	defer e.Shutdown()

	e.Play(0)
	waitFor(t, "player start", e.IsPlaying)

	e.RemoveDocument()
	if e.document() != nil {
		t.Fatal("document still attached")
	}
	if e.IsPlaying() {
		t.Fatal("player still running after document removal")
	}
}

func TestShutdown(t *testing.T) {
	e := testEngine(song.Demo())
	if err := e.InitializeSound(); err != nil {
		t.Fatal(err)
	}
	if !e.Shutdown() {
		t.Fatal("shutdown timed out")
	}
	waitFor(t, "engine exit", func() bool { return !e.IsRunning() })

	// posts after shutdown are dropped, not queued
	e.Post(PlayCommand{Cursor: NewPlayerCursor(song.Demo(), 0)})
}

func TestCurrentBPMScaling(t *testing.T) {
	e := testEngine(song.Demo())
	// not playing: AverageBPM falls back to the track tempo, highlight 4
	e.tempo.LoadTempo(0)
	e.lastHl.Store(4)
	if got := e.CurrentBPM(); got != 150 {
		t.Fatalf("CurrentBPM = %v, want 150", got)
	}
	e.lastHl.Store(8)
	if got := e.CurrentBPM(); got != 75 {
		t.Fatalf("CurrentBPM with highlight 8 = %v, want 75", got)
	}
}

func TestFrameRateCounter(t *testing.T) {
	e := testEngine(nil)
	e.frameCounter.Store(61)
	if got := e.FrameRate(); got != 61 {
		t.Fatalf("FrameRate = %d, want 61", got)
	}
	if got := e.FrameRate(); got != 0 {
		t.Fatalf("FrameRate after swap = %d, want 0", got)
	}
}

func TestWaveChangedFlagHandOff(t *testing.T) {
	e := testEngine(nil)
	e.WaveChanged()
	if e.HasWaveChanged() {
		t.Fatal("flag visible before the tick copied it")
	}
	e.waveChangedIn.Store(e.waveChanged.Swap(false))
	if !e.HasWaveChanged() {
		t.Fatal("flag lost in hand-off")
	}
	if e.waveChanged.Load() {
		t.Fatal("source flag not cleared")
	}
}

func TestRecallChannelStateStopped(t *testing.T) {
	e := testEngine(song.Demo())
	got := e.RecallChannelState(0)
	if got == "" || got == "none" {
		t.Fatalf("channel 0 state = %q, want a formatted note", got)
	}
	if got := e.RecallChannelState(99); got != "none" {
		t.Fatalf("out of range channel state = %q, want none", got)
	}
}

func TestCommandQueueFIFO(t *testing.T) {
	var q commandQueue
	q.post(StopCommand{})
	q.post(SilentAllCommand{})
	q.post(StartRenderCommand{})

	items := q.drain()
	if len(items) != 3 {
		t.Fatalf("drained %d commands, want 3", len(items))
	}
	if _, ok := items[0].(StopCommand); !ok {
		t.Fatalf("items[0] = %T, want StopCommand", items[0])
	}
	if _, ok := items[1].(SilentAllCommand); !ok {
		t.Fatalf("items[1] = %T, want SilentAllCommand", items[1])
	}
	if _, ok := items[2].(StartRenderCommand); !ok {
		t.Fatalf("items[2] = %T, want StartRenderCommand", items[2])
	}
	if len(q.drain()) != 0 {
		t.Fatal("second drain not empty")
	}
}

func TestCloseAudioSignalsDone(t *testing.T) {
	e := testEngine(song.Demo())
	if err := e.InitializeSound(); err != nil {
		t.Fatal(err)
	}
	defer e.Shutdown()

	done := make(chan struct{})
	e.CloseAudio(done)
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("CloseAudio never signaled")
	}
	if e.dev.IsOpen() {
		t.Fatal("device still open after CloseAudio")
	}
}

func TestVisualizerRateFollowsSettings(t *testing.T) {
	e := testEngine(song.Demo())
	if err := e.InitializeSound(); err != nil {
		t.Fatal(err)
	}
	defer e.Shutdown()

	cfg := DefaultConfig()
	cfg.SampleRate = 48000
	e.LoadSettings(cfg)
	waitFor(t, "settings applied", func() bool { return e.sampleRate.Load() == 48000 })

	// a visualizer attached from the controller side sees the new rate
	// without touching the engine-owned config
	vis := &fakeVis{}
	e.SetVisualizer(vis)
	if vis.sampleRate() != 48000 {
		t.Fatalf("visualizer rate = %d, want 48000", vis.sampleRate())
	}
}

type fakeMIDI struct {
	mu    sync.Mutex
	notes int
}

func (m *fakeMIDI) WriteNote(channelIndex, note, octave, velocity int) {
	m.mu.Lock()
	m.notes++
	m.mu.Unlock()
}

func (m *fakeMIDI) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.notes
}

func TestPlaySingleRowHitsMIDI(t *testing.T) {
	e := testEngine(song.Demo())
	mid := &fakeMIDI{}
	e.UseMIDI(mid)

	e.PlaySingleRow(0, 0, 0)
	if mid.count() != 4 {
		t.Fatalf("midi notes = %d, want 4 (row 0 sounds on four channels)", mid.count())
	}

	e.SetChannelMute(0, true)
	e.PlaySingleRow(0, 0, 0)
	if mid.count() != 7 {
		t.Fatalf("midi notes = %d, want 7 (muted channel skipped)", mid.count())
	}
}

func ExampleBlockCount() {
	fmt.Println(BlockCount(40), BlockCount(200))
	// Output: 2 5
}
