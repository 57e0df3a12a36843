package sound

import (
	"errors"
	"testing"
)

func TestWaveRendererValidatesJobs(t *testing.T) {
	if _, err := NewWaveRenderer(nil, nil); err == nil {
		t.Fatal("empty job list accepted")
	}
	if _, err := NewWaveRenderer([]RenderJob{{Track: 0}}, nil); err == nil {
		t.Fatal("job without a stop limit accepted")
	}
}

func TestWaveRendererTickLimit(t *testing.T) {
	s := &memSink{}
	r, err := NewWaveRenderer([]RenderJob{{Track: 0, Ticks: 5}}, func(int) (RenderSink, error) {
		return s, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := r.openFirst(); err != nil {
		t.Fatal(err)
	}
	r.Start()

	if !r.ShouldStartPlayer() {
		t.Fatal("no play requested for the first job")
	}
	if r.ShouldStartPlayer() {
		t.Fatal("play request repeated")
	}

	for i := 0; i < 5; i++ {
		if r.Finished() {
			t.Fatalf("finished after %d ticks, want 5", i)
		}
		r.Tick()
	}
	if !r.Finished() {
		t.Fatal("not finished after the tick limit")
	}
	if _, closed := s.stats(); !closed {
		t.Fatal("sink not closed at the job end")
	}
	if !r.ShouldStopRender() || !r.ShouldStopPlayer() {
		t.Fatal("stop conditions not raised")
	}
}

func TestWaveRendererRowLimit(t *testing.T) {
	s := &memSink{}
	r, _ := NewWaveRenderer([]RenderJob{{Track: 0, Rows: 3}}, func(int) (RenderSink, error) {
		return s, nil
	})
	if err := r.openFirst(); err != nil {
		t.Fatal(err)
	}
	r.Start()
	r.ShouldStartPlayer()

	for i := 0; i < 3; i++ {
		r.Tick() // tick progress must not end a row-limited job
		r.StepRow()
	}
	if !r.Finished() {
		t.Fatal("not finished after the row limit")
	}
}

func TestWaveRendererChainAdvances(t *testing.T) {
	opened := []int{}
	sinks := map[int]*memSink{}
	r, _ := NewWaveRenderer([]RenderJob{
		{Track: 2, Ticks: 2},
		{Track: 5, Ticks: 2},
	}, func(track int) (RenderSink, error) {
		opened = append(opened, track)
		s := &memSink{}
		sinks[track] = s
		return s, nil
	})
	if err := r.openFirst(); err != nil {
		t.Fatal(err)
	}
	r.Start()

	if !r.ShouldStartPlayer() || r.RenderTrack() != 2 {
		t.Fatal("first job not scheduled")
	}
	r.FlushBuffer([]int16{1, 2, 3})
	r.Tick()
	r.Tick()

	if r.Finished() {
		t.Fatal("chain ended after the first job")
	}
	if !r.ShouldStartPlayer() || r.RenderTrack() != 5 {
		t.Fatal("second job not scheduled after advance")
	}
	if _, closed := sinks[2].stats(); !closed {
		t.Fatal("first sink left open across the chain")
	}

	r.FlushBuffer([]int16{4})
	r.Tick()
	r.Tick()
	if !r.Finished() {
		t.Fatal("chain did not finish")
	}

	if len(opened) != 2 || opened[0] != 2 || opened[1] != 5 {
		t.Fatalf("opened = %v, want [2 5]", opened)
	}
	if n, _ := sinks[2].stats(); n != 3 {
		t.Fatalf("first sink samples = %d, want 3", n)
	}
	if n, _ := sinks[5].stats(); n != 1 {
		t.Fatalf("second sink samples = %d, want 1", n)
	}
}

func TestWaveRendererSecondOpenFails(t *testing.T) {
	calls := 0
	r, _ := NewWaveRenderer([]RenderJob{
		{Track: 0, Ticks: 1},
		{Track: 1, Ticks: 1},
	}, func(track int) (RenderSink, error) {
		calls++
		if calls > 1 {
			return nil, errors.New("disk full")
		}
		return &memSink{}, nil
	})
	if err := r.openFirst(); err != nil {
		t.Fatal(err)
	}
	r.Start()
	r.Tick()

	if !r.Finished() || r.Err() == nil {
		t.Fatal("failed chain advance did not abort the session")
	}
	if !r.ShouldStopRender() {
		t.Fatal("stop condition not raised on error")
	}
}

func TestWaveRendererWriteFailure(t *testing.T) {
	s := &memSink{failWrite: true}
	r, _ := NewWaveRenderer([]RenderJob{{Track: 0, Ticks: 10}}, func(int) (RenderSink, error) {
		return s, nil
	})
	if err := r.openFirst(); err != nil {
		t.Fatal(err)
	}
	r.Start()

	if err := r.FlushBuffer([]int16{1}); err == nil {
		t.Fatal("sink write failure not propagated")
	}
	if !errors.Is(r.Err(), ErrRenderIO) {
		t.Fatalf("err = %v, want ErrRenderIO", r.Err())
	}
}
