package recording

type State int

const (
	Created State = iota
	Started
	Appending
	Finishing
	Completed
	Failed
	Cancelled
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Started:
		return "started"
	case Appending:
		return "appending"
	case Finishing:
		return "finishing"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	}
	return "unknown"
}

func (s State) Terminal() bool {
	return s == Completed || s == Failed || s == Cancelled
}

// Active states own an open sink
func (s State) Active() bool {
	return s == Started || s == Appending
}
