package sound

import (
	"testing"

	"famix/pkg/song"
)

func tempoDoc(tempo, speed int) Document {
	return &song.Memory{
		Loaded:   true,
		Channels: 5,
		Tracks:   []*song.Track{{Tempo: tempo, Speed: speed, Rows: 16}},
	}
}

func TestTempoSixTicksPerRow(t *testing.T) {
	c := newTempoCounter(tempoDoc(150, 6))
	c.LoadTempo(0)

	// tempo 150, speed 6 at 60 Hz: a row starts every 6 ticks
	rows := 0
	for tick := 0; tick < 60; tick++ {
		if c.Tick() {
			rows++
		}
	}
	if rows != 10 {
		t.Fatalf("rows in 60 ticks = %d, want 10", rows)
	}
}

func TestTempoDefaultsApplied(t *testing.T) {
	c := newTempoCounter(tempoDoc(0, 0))
	c.LoadTempo(0)
	if c.tempo != 150 || c.speed != 6 || c.frameRate != 60 {
		t.Fatalf("defaults = %d/%d/%d, want 150/6/60", c.tempo, c.speed, c.frameRate)
	}
	if got := c.Tempo(); got != 150 {
		t.Fatalf("Tempo = %v, want 150", got)
	}
}

func TestTempoFirstTickStartsRow(t *testing.T) {
	c := newTempoCounter(tempoDoc(150, 6))
	c.LoadTempo(0)
	if !c.Tick() {
		t.Fatal("first tick did not start a row")
	}
	if c.Tick() {
		t.Fatal("second tick started a row early")
	}
}

func TestTempoDisplayAverage(t *testing.T) {
	c := newTempoCounter(tempoDoc(150, 6))
	c.LoadTempo(0)
	d := newTempoDisplay(c, average_bpm_window)

	if got := d.AverageBPM(); got != 150 {
		t.Fatalf("empty window AverageBPM = %v, want nominal tempo 150", got)
	}

	// steady playback: 6 ticks per row reports the nominal tempo; the
	// partial first row only primes the counter and is not recorded
	for i := 0; i < 12*6; i++ {
		d.Tick()
		if c.Tick() {
			d.StepRow()
		}
	}
	if got := d.AverageBPM(); got != 150 {
		t.Fatalf("steady AverageBPM = %v, want 150", got)
	}
}

func TestTempoDisplayWindowBounded(t *testing.T) {
	c := newTempoCounter(tempoDoc(150, 6))
	c.LoadTempo(0)
	d := newTempoDisplay(c, 4)

	for i := 0; i < 100; i++ {
		d.Tick()
		d.Tick()
		d.StepRow()
	}
	if d.filled != 4 {
		t.Fatalf("window filled = %d, want 4", d.filled)
	}
}
