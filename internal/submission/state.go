package submission

import (
	"errors"
	"fmt"
)

// State is the controller's position in the submission lifecycle.
type State int

const (
	// StateIdle accepts new submissions.
	StateIdle State = iota
	// StateValidating checks the draft before anything is mutated.
	StateValidating
	// StateSubmitting waits on the generation service.
	StateSubmitting
	// StateSucceeded holds briefly after a successful reconciliation.
	StateSucceeded
	// StateFailed holds briefly after a failed reconciliation.
	StateFailed
)

// String returns the lower-case state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateSubmitting:
		return "submitting"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Input drives a state transition.
type Input int

const (
	// InputSubmit starts validating an accepted draft.
	InputSubmit Input = iota
	// InputReject ends validation without sending anything.
	InputReject
	// InputAccept ends validation and starts the remote call.
	InputAccept
	// InputResolve reports a successful reconciliation.
	InputResolve
	// InputFail reports an application or transport failure.
	InputFail
	// InputSettle returns a finished submission to idle.
	InputSettle
)

// String returns the lower-case input name.
func (in Input) String() string {
	switch in {
	case InputSubmit:
		return "submit"
	case InputReject:
		return "reject"
	case InputAccept:
		return "accept"
	case InputResolve:
		return "resolve"
	case InputFail:
		return "fail"
	case InputSettle:
		return "settle"
	default:
		return "unknown"
	}
}

// ErrInvalidTransition is returned by Transition for undefined pairs.
var ErrInvalidTransition = errors.New("invalid state transition")

var transitions = map[State]map[Input]State{
	StateIdle: {
		InputSubmit: StateValidating,
	},
	StateValidating: {
		InputReject: StateIdle,
		InputAccept: StateSubmitting,
	},
	StateSubmitting: {
		InputResolve: StateSucceeded,
		InputFail:    StateFailed,
	},
	StateSucceeded: {
		InputSettle: StateIdle,
	},
	StateFailed: {
		InputSettle: StateIdle,
	},
}

// Transition returns the state reached from "from" on input "in".
// It has no side effects.
func Transition(from State, in Input) (State, error) {
	if next, ok := transitions[from][in]; ok {
		return next, nil
	}
	return from, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, in, from)
}
