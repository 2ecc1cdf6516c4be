package brief

import (
	"errors"
	"fmt"
	"strings"

	"github.com/abelbrown/viralengine/internal/model"
)

var (
	// ErrInvalidTransition rejects a status change the brief lifecycle
	// does not allow.
	ErrInvalidTransition = errors.New("invalid brief transition")

	// ErrNotApproved is the validation error for generating content from
	// a brief that is not approved.
	ErrNotApproved = errors.New("brief is not approved")

	// ErrNoSignals means a brief was requested without any source signal.
	ErrNoSignals = errors.New("brief requires at least one signal")

	// ErrSchema means generator output did not match the brief schema.
	ErrSchema = errors.New("brief does not match schema")
)

// TransitionError describes a refused status change.
type TransitionError struct {
	ID   string
	From model.BriefStatus
	To   model.BriefStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("brief %s: cannot move from %s to %s", e.ID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// SchemaError lists what was wrong with a generated brief.
type SchemaError struct {
	Problems []string
}

func (e *SchemaError) Error() string {
	return "brief does not match schema: " + strings.Join(e.Problems, "; ")
}

func (e *SchemaError) Unwrap() error { return ErrSchema }
