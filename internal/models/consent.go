package models

// Decision is a visitor's recorded consent choice. The zero value is
// DecisionUnknown, meaning no choice has been recorded yet.
type Decision string

const (
	DecisionUnknown  Decision = ""
	DecisionGranted  Decision = "granted"
	DecisionDeclined Decision = "declined"
)

// ParseDecision maps a stored string onto a Decision. Anything that is not
// an exact match is treated as unknown rather than an error so that a
// corrupted store value degrades to "ask again".
func ParseDecision(s string) Decision {
	switch Decision(s) {
	case DecisionGranted:
		return DecisionGranted
	case DecisionDeclined:
		return DecisionDeclined
	default:
		return DecisionUnknown
	}
}

// Known reports whether a decision has actually been recorded.
func (d Decision) Known() bool {
	return d == DecisionGranted || d == DecisionDeclined
}

// String implements fmt.Stringer.
func (d Decision) String() string {
	if d == DecisionUnknown {
		return "unknown"
	}
	return string(d)
}

// DecisionSource labels how a decision came to be persisted.
type DecisionSource string

const (
	SourceUser DecisionSource = "user"
	SourceAuto DecisionSource = "auto"
)
