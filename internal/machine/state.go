package machine

type State uint32

const (
	StateIdle State = iota
	StateOrdering
	StatePaying
	StateDispensing
	StateRefunding
	StateMaintenance
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateOrdering:
		return "Ordering"
	case StatePaying:
		return "Paying"
	case StateDispensing:
		return "Dispensing"
	case StateRefunding:
		return "Refunding"
	case StateMaintenance:
		return "Maintenance"
	default:
		return "invalid"
	}
}
