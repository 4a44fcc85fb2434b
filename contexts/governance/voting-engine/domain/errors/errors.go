package errors

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidQuestionInput = errors.New("invalid question input")
	ErrInvalidBallotInput   = errors.New("invalid ballot input")
	ErrChoiceNotAllowed     = errors.New("choice is not in the question's choice set")
	ErrQuestionNotFound     = errors.New("question not found")
	ErrAssemblyNotFound     = errors.New("assembly not found")
	ErrUnknownVoter         = errors.New("voter is not in the question's roster snapshot")
	ErrMissingConsent       = errors.New("pre-vote requires accepted consent")
	ErrStorageConflict      = errors.New("ballot upsert retries exhausted under contention")
	ErrVersionConflict      = errors.New("ballot version conflict")
	ErrIntegrity            = errors.New("roster mills do not sum to the declared building total")
	ErrQuestionClosed       = errors.New("question is closed")
	ErrConflict             = errors.New("conflicting write")
)

// IneligibleStateError rejects a ballot source that is illegal in the
// question's current lifecycle state. Callers surface it as a user-visible
// "voting is not open" message.
type IneligibleStateError struct {
	State  string
	Source string
}

func (e *IneligibleStateError) Error() string {
	return fmt.Sprintf("source %q is not accepted while question is %q", e.Source, e.State)
}

// IsIneligibleState reports whether err is an IneligibleStateError.
func IsIneligibleState(err error) bool {
	var target *IneligibleStateError
	return errors.As(err, &target)
}
