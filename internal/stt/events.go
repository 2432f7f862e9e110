package stt

// EventKind tags a transcript event.
type EventKind int

const (
	KindIntermediate EventKind = iota // display-only preview, superseded by the next event
	KindFinal                         // appended to the durable transcript
	KindNoMatch                       // backend heard audio but recognized nothing
	KindError                         // backend failure; recognition halts
)

// String returns the metric/log label for the kind.
func (k EventKind) String() string {
	switch k {
	case KindIntermediate:
		return "intermediate"
	case KindFinal:
		return "final"
	case KindNoMatch:
		return "no_match"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one transcript event produced by the streaming backend.
type Event struct {
	Kind EventKind
	Text string // recognized text for Intermediate/Final
	Err  string // failure detail for Error
}

// State is the transcription service lifecycle state.
type State int

const (
	StateUnconfigured State = iota
	StateConfigured
	StateRecognizing
	StateStopped
)

// String returns the log label for the state.
func (s State) String() string {
	switch s {
	case StateUnconfigured:
		return "unconfigured"
	case StateConfigured:
		return "configured"
	case StateRecognizing:
		return "recognizing"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
