package checkout

import (
	"errors"
	"fmt"
)

type Status string

const (
	StatusValidating Status = "VALIDATING"
	StatusSubmitting Status = "SUBMITTING"
	StatusQueued     Status = "QUEUED"
	StatusConfirmed  Status = "CONFIRMED"
	StatusFailed     Status = "FAILED"
)

var ErrIllegalTransition = errors.New("illegal transition of checkout status")

var transitions = map[Status][]Status{
	StatusValidating: {StatusSubmitting, StatusQueued, StatusFailed},
	StatusSubmitting: {StatusConfirmed, StatusQueued, StatusFailed},
	StatusQueued:     {StatusConfirmed, StatusFailed},
}

func (s Status) IsTerminal() bool {
	return s == StatusConfirmed || s == StatusFailed
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// String representation (for logging)
func (s Status) String() string {
	return string(s)
}

// attempt tracks the status path of a single checkout.
type attempt struct {
	path []Status
}

func newAttempt() *attempt {
	return &attempt{path: []Status{StatusValidating}}
}

func (a *attempt) current() Status {
	return a.path[len(a.path)-1]
}

func (a *attempt) to(next Status) error {
	if !a.current().CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, a.current(), next)
	}
	a.path = append(a.path, next)
	return nil
}
