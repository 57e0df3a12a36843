package sound

import (
	"sync"

	"famix/pkg/chip"
)

// Command is the tagged variant posted from the controller context.
// Payload ownership transfers to the engine on enqueue; handlers dispose
// of payloads even on early-return paths.
type Command interface{ isCommand() }

type PlayCommand struct{ Cursor *PlayerCursor }

type StopCommand struct{}

type ResetCommand struct{ Cursor *PlayerCursor }

// LoadSettingsCommand replaces the engine configuration and resets the
// audio device against it.
type LoadSettingsCommand struct{ Config Config }

type SilentAllCommand struct{}

type StartRenderCommand struct{}

type StopRenderCommand struct{}

type PreviewSampleCommand struct {
	Sample *chip.DPCMSample
	Offset int
	Pitch  int
}

type WriteRegisterCommand struct {
	Addr  uint16
	Value byte
}

type SetChipCommand struct{ Mask chip.Mask }

// CloseAudioCommand flushes and releases the device; Done (optional) is
// closed once the device is released.
type CloseAudioCommand struct{ Done chan struct{} }

type RemoveDocumentCommand struct{}

type quitCommand struct{}

func (PlayCommand) isCommand()          {}
func (StopCommand) isCommand()          {}
func (ResetCommand) isCommand()         {}
func (LoadSettingsCommand) isCommand()  {}
func (SilentAllCommand) isCommand()     {}
func (StartRenderCommand) isCommand()   {}
func (StopRenderCommand) isCommand()    {}
func (PreviewSampleCommand) isCommand() {}
func (WriteRegisterCommand) isCommand() {}
func (SetChipCommand) isCommand()       {}
func (CloseAudioCommand) isCommand()    {}
func (RemoveDocumentCommand) isCommand() {}
func (quitCommand) isCommand()           {}

// commandQueue keeps strict FIFO order and never refuses a post. The
// engine drains everything pending once per tick.
type commandQueue struct {
	mu    sync.Mutex
	items []Command
}

func (q *commandQueue) post(c Command) {
	q.mu.Lock()
	q.items = append(q.items, c)
	q.mu.Unlock()
}

func (q *commandQueue) drain() []Command {
	q.mu.Lock()
	items := q.items
	q.items = nil
	q.mu.Unlock()
	return items
}
