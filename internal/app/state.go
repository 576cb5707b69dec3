package service

// State is a step of the classification loop.
type State int

// Loop states. A run starts in StateSelect and always ends in StateDone.
const (
	StateSelect State = iota
	StateEmbed
	StateMatch
	StateRuleScore
	StatePersist
	StateDone
)

var stateNames = [...]string{
	StateSelect:    "select",
	StateEmbed:     "embed",
	StateMatch:     "match",
	StateRuleScore: "rule_score",
	StatePersist:   "persist",
	StateDone:      "done",
}

func (s State) String() string {
	if s < StateSelect || s > StateDone {
		return "unknown"
	}
	return stateNames[s]
}
