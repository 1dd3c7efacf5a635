package audio

import "errors"

var (
	// ErrPlaybackAdmission means the channel was full and the interrupt mode
	// did not allow replacing an instance.
	ErrPlaybackAdmission = errors.New("audio: no free channel slot")
	ErrUnknownSource     = errors.New("audio: unknown source")
	ErrSourceNotLoaded   = errors.New("audio: source not loaded")
	// ErrUnsupportedSource is returned when registering a file type no
	// decoder is configured for.
	ErrUnsupportedSource = errors.New("audio: unsupported source type")
	ErrNoBackend         = errors.New("audio: no backend")
)

// ErrDuplicateID is returned when an id is registered for two sources.
var ErrDuplicateID = errors.New("audio: id already registered")
