package models

// OutcomeKind classifies the status message shown under a form.
type OutcomeKind string

const (
	OutcomeNone            OutcomeKind = ""
	OutcomePending         OutcomeKind = "pending"
	OutcomeSuccess         OutcomeKind = "success"
	OutcomeValidationError OutcomeKind = "validation-error"
	OutcomeNetworkError    OutcomeKind = "network-error"
	OutcomeServerError     OutcomeKind = "server-error"
)

// Outcome is the transient status attached to a form after a state-changing action.
type Outcome struct {
	Kind    OutcomeKind `json:"kind,omitempty"`
	Message string      `json:"message,omitempty"`
}

// IsZero reports whether no status message is set.
func (o Outcome) IsZero() bool {
	return o.Kind == OutcomeNone && o.Message == ""
}

// IsError reports whether the outcome represents a failed action.
func (o Outcome) IsError() bool {
	switch o.Kind {
	case OutcomeValidationError, OutcomeNetworkError, OutcomeServerError:
		return true
	}
	return false
}

// RegisterResult is the registration server's answer to a successful submission.
type RegisterResult struct {
	Status  int
	Message string
}
