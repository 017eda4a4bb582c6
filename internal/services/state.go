package services

import (
	"fmt"
	"log/slog"
)

// State is a step of one verification attempt.
type State string

const (
	StateIdle        State = "Idle"
	StateConverting  State = "Converting"
	StateRecognizing State = "Recognizing"
	StateExtracting  State = "Extracting"
	StateValidating  State = "Validating"
	StateUploading   State = "Uploading"
	StateSucceeded   State = "Succeeded"
	StateFailed      State = "Failed"
)

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// transitions lists the legal successors of each state. Failed is reachable
// from every non-terminal state and is not listed.
var transitions = map[State][]State{
	StateIdle:        {StateConverting, StateRecognizing, StateValidating},
	StateConverting:  {StateRecognizing},
	StateRecognizing: {StateExtracting},
	StateExtracting:  {StateValidating},
	StateValidating:  {StateUploading},
	StateUploading:   {StateSucceeded},
}

// CanTransition reports whether from -> to is a legal step.
func CanTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	if to == StateFailed {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// attempt tracks the state of one document-processing attempt.
type attempt struct {
	id      string
	state   State
	history []State
	log     *slog.Logger
}

func newAttempt(id string, log *slog.Logger) *attempt {
	return &attempt{id: id, state: StateIdle, history: []State{StateIdle}, log: log}
}

func (a *attempt) advance(to State) error {
	if !CanTransition(a.state, to) {
		return fmt.Errorf("illegal transition %s -> %s", a.state, to)
	}
	a.log.Info("Attempt state changed.", "from", string(a.state), "to", string(to))
	a.state = to
	a.history = append(a.history, to)
	return nil
}

// fail moves the attempt to Failed unless it already terminated.
func (a *attempt) fail() {
	if a.state.Terminal() {
		return
	}
	a.state = StateFailed
	a.history = append(a.history, StateFailed)
}
