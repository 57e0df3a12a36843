package sound

// PlayerCursor locates the current playback position. Created on the
// controller side, handed to the engine with the Play/Reset command and
// exclusively owned by the playback controller while active.
type PlayerCursor struct {
	doc    Document
	track  int
	frame  int
	row    int
	ticks  int
	queued int // next frame override, -1 = none
}

func NewPlayerCursor(doc Document, track int) *PlayerCursor {
	return &PlayerCursor{doc: doc, track: track, queued: -1}
}

// NewPlayerCursorAt starts playback from an arbitrary position.
func NewPlayerCursorAt(doc Document, track, frame, row int) *PlayerCursor {
	return &PlayerCursor{doc: doc, track: track, frame: frame, row: row, queued: -1}
}

func (c *PlayerCursor) Track() int { return c.track }
func (c *PlayerCursor) Frame() int { return c.frame }
func (c *PlayerCursor) Row() int   { return c.row }
func (c *PlayerCursor) Ticks() int { return c.ticks }

func (c *PlayerCursor) SetPosition(frame, row int) {
	c.frame = frame
	c.row = row
}

func (c *PlayerCursor) QueueFrame(frame int) { c.queued = frame }

func (c *PlayerCursor) QueuedFrame() (int, bool) {
	if c.queued < 0 {
		return 0, false
	}
	return c.queued, true
}

// Tick counts one engine tick of playback.
func (c *PlayerCursor) Tick() { c.ticks++ }

// StepRow advances to the next row, honoring a queued frame at the
// pattern boundary and wrapping at the end of the frame list. Reports
// whether a frame boundary was crossed.
func (c *PlayerCursor) StepRow() bool {
	c.row++
	if c.row < c.doc.PatternLength(c.track) {
		return false
	}
	c.row = 0
	if c.queued >= 0 {
		c.frame = c.queued
		c.queued = -1
	} else {
		c.frame++
	}
	if frames := c.doc.FrameCount(c.track); frames > 0 && c.frame >= frames {
		c.frame = 0
	}
	return true
}
