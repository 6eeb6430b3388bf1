package mode

// Mode is the retrieval breadth strategy.
type Mode string

// Search mode constants, ordered by increasing breadth.
const (
	// Precise favours precision: few, highly relevant segments.
	Precise    Mode = "precise"
	Balanced   Mode = "balanced"
	Thorough   Mode = "thorough"
	Exhaustive Mode = "exhaustive"
)

// EscalationOrder is the fixed order adaptive recall walks when results are empty.
var EscalationOrder = []Mode{Balanced, Thorough, Exhaustive}

// IsValid checks if the mode is one of the supported values.
func (m Mode) IsValid() bool {
	return m == Precise || m == Balanced || m == Thorough || m == Exhaustive
}

// Rank returns the breadth ordinal (Precise=0 .. Exhaustive=3), or -1 for unknown modes.
// Ordering must go through Rank: the string values do not sort by breadth.
func (m Mode) Rank() int {
	switch m {
	case Precise:
		return 0
	case Balanced:
		return 1
	case Thorough:
		return 2
	case Exhaustive:
		return 3
	default:
		return -1
	}
}

// BroaderThan reports whether m retrieves strictly more broadly than other.
func (m Mode) BroaderThan(other Mode) bool {
	return m.Rank() > other.Rank()
}

// Escalations returns the modes of EscalationOrder strictly broader than start.
func Escalations(start Mode) []Mode {
	out := make([]Mode, 0, len(EscalationOrder))
	for _, m := range EscalationOrder {
		if m.BroaderThan(start) {
			out = append(out, m)
		}
	}
	return out
}
