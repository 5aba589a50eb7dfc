package models

// Direction marks whether an event records a system-call entry or its return.
type Direction string

const (
	DirectionEnter Direction = "enter"
	DirectionExit  Direction = "exit"
)

// Event is one parsed system-call record of a run.
type Event struct {
	Seq       int64
	Timestamp int64 // microseconds since the first event of the run
	CPU       string
	UID       string
	Process   string
	ThreadID  string
	Direction Direction
	Type      string
	Args      []string
}

// IsExit reports whether the event carries a known outcome.
func (e Event) IsExit() bool {
	return e.Direction == DirectionExit
}
