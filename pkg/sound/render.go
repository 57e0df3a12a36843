package sound

import "fmt"

// RenderJob is one track's worth of offline export. Exactly one of Ticks
// or Rows must be set; the job ends when the limit is reached.
type RenderJob struct {
	Track int
	Ticks int // engine ticks (frames of emulated time)
	Rows  int // pattern rows
}

// WaveRenderer is the render session attached to the tick loop. It counts
// progress through its job list and schedules the playback commands for
// chained multi-track export itself; the engine only polls it. All calls
// happen under the engine's renderer lock.
type WaveRenderer struct {
	jobs     []RenderJob
	open     func(track int) (RenderSink, error)
	sink     RenderSink
	idx      int
	ticks    int
	rows     int
	started  bool
	finished bool
	pending  bool // a Play command should be issued for the current job
	err      error
}

// NewWaveRenderer builds a session over the given jobs; open supplies the
// sink for each track as the chain advances.
func NewWaveRenderer(jobs []RenderJob, open func(track int) (RenderSink, error)) (*WaveRenderer, error) {
	if len(jobs) == 0 {
		return nil, fmt.Errorf("%w: no render jobs", ErrRenderIO)
	}
	for _, j := range jobs {
		if j.Ticks <= 0 && j.Rows <= 0 {
			return nil, fmt.Errorf("%w: job for track %d has no stop limit", ErrRenderIO, j.Track)
		}
	}
	return &WaveRenderer{jobs: jobs, open: open}, nil
}

// openFirst opens the first job's sink; called before the session is
// attached so an unopenable sink aborts the render up front.
func (r *WaveRenderer) openFirst() error {
	sink, err := r.open(r.jobs[0].Track)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRenderIO, err)
	}
	r.sink = sink
	return nil
}

func (r *WaveRenderer) Start() {
	r.started = true
	r.pending = true
}

func (r *WaveRenderer) Started() bool  { return r.started }
func (r *WaveRenderer) Finished() bool { return r.finished }
func (r *WaveRenderer) Err() error     { return r.err }

func (r *WaveRenderer) RenderTrack() int { return r.jobs[r.idx].Track }

// ShouldStartPlayer is a one-shot: it reports that the engine must issue
// a Play command for RenderTrack and arms itself again only when the
// chain advances.
func (r *WaveRenderer) ShouldStartPlayer() bool {
	if r.started && !r.finished && r.pending {
		r.pending = false
		return true
	}
	return false
}

func (r *WaveRenderer) ShouldStopRender() bool {
	return r.started && (r.finished || r.err != nil)
}

// ShouldStopPlayer reports the render-session stop condition checked by
// the per-tick halt policy.
func (r *WaveRenderer) ShouldStopPlayer() bool { return r.finished }

func (r *WaveRenderer) Tick() {
	if !r.started || r.finished {
		return
	}
	r.ticks++
	if lim := r.jobs[r.idx].Ticks; lim > 0 && r.ticks >= lim {
		r.advance()
	}
}

func (r *WaveRenderer) StepRow() {
	if !r.started || r.finished {
		return
	}
	r.rows++
	if lim := r.jobs[r.idx].Rows; lim > 0 && r.rows >= lim {
		r.advance()
	}
}

func (r *WaveRenderer) advance() {
	r.closeSink()
	r.idx++
	r.ticks = 0
	r.rows = 0
	if r.idx >= len(r.jobs) {
		r.finished = true
		return
	}
	sink, err := r.open(r.jobs[r.idx].Track)
	if err != nil {
		r.err = fmt.Errorf("%w: %v", ErrRenderIO, err)
		r.finished = true
		return
	}
	r.sink = sink
	r.pending = true
}

func (r *WaveRenderer) FlushBuffer(samples []int16) error {
	if r.sink == nil || len(samples) == 0 {
		return nil
	}
	if err := r.sink.WriteFrames(samples); err != nil {
		r.err = fmt.Errorf("%w: %v", ErrRenderIO, err)
		return r.err
	}
	return nil
}

func (r *WaveRenderer) closeSink() {
	if r.sink != nil {
		if err := r.sink.Close(); err != nil && r.err == nil {
			r.err = fmt.Errorf("%w: %v", ErrRenderIO, err)
		}
		r.sink = nil
	}
}

// release shuts the session down, closing any open sink.
func (r *WaveRenderer) release() {
	r.closeSink()
	r.finished = true
}
