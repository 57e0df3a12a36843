package sound

// tempoCounter implements the classic tracker tempo loop: every tick it
// subtracts tempo*24/speed from an accumulator primed with 60*frameRate;
// the row steps when the accumulator runs out. With tempo 150, speed 6 at
// 60 Hz that is exactly 6 ticks per row.
type tempoCounter struct {
	doc       Document
	tempo     int
	speed     int
	frameRate int
	accum     int
	decrement int
}

func newTempoCounter(doc Document) *tempoCounter {
	return &tempoCounter{doc: doc}
}

func (t *tempoCounter) LoadTempo(track int) {
	t.tempo = t.doc.Tempo(track)
	t.speed = t.doc.Speed(track)
	t.frameRate = t.doc.FrameRate()
	if t.tempo <= 0 {
		t.tempo = 150
	}
	if t.speed <= 0 {
		t.speed = 6
	}
	if t.frameRate <= 0 {
		t.frameRate = 60
	}
	t.decrement = t.tempo * 24 / t.speed
	t.accum = 0
}

// Tick advances one engine tick; reports whether a new row starts.
func (t *tempoCounter) Tick() bool {
	if t.decrement == 0 {
		return false
	}
	if t.accum <= 0 {
		t.accum += 60 * t.frameRate
		t.accum -= t.decrement
		return true
	}
	t.accum -= t.decrement
	return false
}

// Tempo returns the nominal BPM-like tempo of the loaded track.
func (t *tempoCounter) Tempo() float64 {
	if t.speed == 0 {
		return 0
	}
	return float64(t.tempo*6) / float64(t.speed)
}

// tempoDisplay keeps a rolling average of ticks-per-row over a fixed
// window and reports it as a BPM figure. Only alive while playing with
// the average-BPM setting on.
type tempoDisplay struct {
	counter   *tempoCounter
	window    []int
	pos       int
	filled    int
	tickCount int
	primed    bool
}

func newTempoDisplay(counter *tempoCounter, size int) *tempoDisplay {
	return &tempoDisplay{counter: counter, window: make([]int, size)}
}

func (d *tempoDisplay) Tick() { d.tickCount++ }

// StepRow records the tick count of the row that just ended. The first row
// after start is partial and only primes the counter.
func (d *tempoDisplay) StepRow() {
	if !d.primed {
		d.primed = true
		d.tickCount = 0
		return
	}
	if d.tickCount == 0 {
		return
	}
	d.window[d.pos] = d.tickCount
	d.pos = (d.pos + 1) % len(d.window)
	if d.filled < len(d.window) {
		d.filled++
	}
	d.tickCount = 0
}

// AverageBPM reports 15*frameRate/avgTicksPerRow, which matches the
// counter's nominal tempo when playback is steady.
func (d *tempoDisplay) AverageBPM() float64 {
	if d.filled == 0 {
		return d.counter.Tempo()
	}
	sum := 0
	for i := 0; i < d.filled; i++ {
		sum += d.window[i]
	}
	avg := float64(sum) / float64(d.filled)
	if avg == 0 {
		return d.counter.Tempo()
	}
	return 15 * float64(d.counter.frameRate) / avg
}
