package sound

import "errors"

// Failure taxonomy. Device and IO failures are absorbed where they occur
// and reported through the diagnostic collaborator; none of them crash the
// engine.
var (
	ErrDeviceUnavailable   = errors.New("sound: audio device unavailable")
	ErrDocumentUnavailable = errors.New("sound: no document loaded")
	ErrRenderIO            = errors.New("sound: render sink failure")
	ErrWaitTimeout         = errors.New("sound: bounded wait exceeded")
)
