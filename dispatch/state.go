package dispatch

// State is the position of a dispatch cycle in its lifecycle.
type State int

const (
	Idle State = iota
	Resolving
	Building
	Dispatching
	Aggregating
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Resolving:
		return "resolving"
	case Building:
		return "building"
	case Dispatching:
		return "dispatching"
	case Aggregating:
		return "aggregating"
	case Done:
		return "done"
	case Failed:
		return "failed"
	}
	return "unknown"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
