package workflow

import "fmt"

// Kind identifies a recognition workflow.
type Kind int

const (
	// Separated: every audio stream carries its own stem and is recognized on its own.
	Separated Kind = iota + 1
	// Mixed: the first audio stream carries the full mix and goes through the escalation ladder.
	Mixed
)

func (k Kind) String() string {
	switch k {
	case Separated:
		return "separated"
	case Mixed:
		return "mixed"
	default:
		return fmt.Sprintf("workflow(%d)", int(k))
	}
}

type rule struct {
	kind    Kind
	matches func(Topology) bool
}

// rules are evaluated in order; the first match wins.
var rules = []rule{
	{kind: Separated, matches: func(t Topology) bool { return t.AudioCount() >= 4 }},
	{kind: Mixed, matches: func(t Topology) bool { return t.AudioCount() <= 2 }},
}

// Select picks the workflow for topo. Three audio streams match nothing.
func Select(topo Topology) (Kind, error) {
	for _, r := range rules {
		if r.matches(topo) {
			return r.kind, nil
		}
	}
	return 0, fmt.Errorf("%d audio streams: %w", topo.AudioCount(), ErrNoWorkflowMatch)
}
