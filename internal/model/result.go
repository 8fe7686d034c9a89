package model

// Reason is a machine-checkable code for an expected business failure.
type Reason string

const (
	ReasonValidation        Reason = "validation"
	ReasonChildUnavailable  Reason = "child_unavailable"
	ReasonNotFound          Reason = "not_found"
	ReasonInvalidTransition Reason = "invalid_transition"
	ReasonTokenInvalid      Reason = "token_invalid"
)
