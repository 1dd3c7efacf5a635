package preload

import (
	"errors"
	"fmt"
)

var (
	// ErrUnrecognizedItem is returned when a value cannot be turned into an Item.
	ErrUnrecognizedItem = errors.New("preload: unrecognized item")
	// ErrNoStrategy is reported for an item no registered strategy accepts.
	ErrNoStrategy = errors.New("preload: no strategy found")
	// ErrDuplicateStrategy is returned when registering a strategy twice.
	ErrDuplicateStrategy = errors.New("preload: strategy already registered")
	// ErrDuplicateID is returned when an id is reused for a different src.
	ErrDuplicateID = errors.New("preload: id already used")
	ErrLoadTimeout = errors.New("preload: load timed out")
	ErrLoadAborted = errors.New("preload: load aborted")
	ErrFileLoad    = errors.New("preload: file load failed")
	// ErrJSONFormat is reported when a payload is not valid for its declared type.
	ErrJSONFormat = errors.New("preload: malformed json")
)

// ItemError ties a load failure to the item it happened on.
type ItemError struct {
	Item Item
	Err  error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Item.ID, e.Item.Src, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}
