package preload

// EventType names a queue event.
type EventType string

const (
	EventLoadStart    EventType = "loadstart"
	EventProgress     EventType = "progress"
	EventFileProgress EventType = "fileprogress"
	EventFileStart    EventType = "filestart"
	EventFileLoad     EventType = "fileload"
	EventError        EventType = "error"
	EventFileError    EventType = "fileerror"
	EventComplete     EventType = "complete"
)

// Event is delivered to queue listeners. Fields not relevant to Type are
// zero.
type Event struct {
	Type   EventType
	Item   Item
	Result any
	Raw    any
	// Progress is the aggregate progress for EventProgress and the item's
	// own progress for EventFileProgress.
	Progress float64
	Err      error
}
