// Package domain holds the lifecycle rules shared by the CRM services.
package domain

import (
	"fmt"
	"sort"

	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/constants"
)

// Action names a lifecycle transition.
type Action string

const (
	ActionSend     Action = "send"
	ActionAccept   Action = "accept"
	ActionReject   Action = "reject"
	ActionExpire   Action = "expire"
	ActionRevise   Action = "revise"
	ActionStart    Action = "start"
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"
	ActionConvert  Action = "convert"
)

// StateMachine enforces valid state transitions for a document lifecycle.
// Invalid transitions return an error.
type StateMachine struct {
	name        string
	transitions map[stateTransitionKey]string
	terminal    map[string]bool
}

type stateTransitionKey struct {
	state  string
	action Action
}

func newStateMachine(name string, terminal ...string) *StateMachine {
	sm := &StateMachine{
		name:        name,
		transitions: make(map[stateTransitionKey]string),
		terminal:    make(map[string]bool),
	}
	for _, t := range terminal {
		sm.terminal[t] = true
	}
	return sm
}

func (sm *StateMachine) addTransition(from string, via Action, to string) {
	sm.transitions[stateTransitionKey{state: from, action: via}] = to
}

// NewQuotationStateMachine builds the quotation lifecycle:
//
//	[draft] --send--> [sent] --accept--> [accepted]
//	   ^                |  \---reject--> [rejected]
//	   +-----revise-----+
//	[draft|sent] --expire--> [expired]
func NewQuotationStateMachine() *StateMachine {
	sm := newStateMachine("quotation",
		constants.QuotationStatusAccepted, constants.QuotationStatusRejected, constants.QuotationStatusExpired)

	sm.addTransition(constants.QuotationStatusDraft, ActionSend, constants.QuotationStatusSent)
	sm.addTransition(constants.QuotationStatusSent, ActionAccept, constants.QuotationStatusAccepted)
	sm.addTransition(constants.QuotationStatusSent, ActionReject, constants.QuotationStatusRejected)
	sm.addTransition(constants.QuotationStatusSent, ActionRevise, constants.QuotationStatusDraft)
	sm.addTransition(constants.QuotationStatusDraft, ActionExpire, constants.QuotationStatusExpired)
	sm.addTransition(constants.QuotationStatusSent, ActionExpire, constants.QuotationStatusExpired)
	return sm
}

// NewEventOrderStateMachine builds the event order lifecycle:
//
//	[confirmed] --start--> [in_progress] --complete--> [completed]
//	[confirmed|in_progress] --cancel--> [cancelled]
func NewEventOrderStateMachine() *StateMachine {
	sm := newStateMachine("event order",
		constants.EventOrderStatusCompleted, constants.EventOrderStatusCancelled)

	sm.addTransition(constants.EventOrderStatusConfirmed, ActionStart, constants.EventOrderStatusInProgress)
	sm.addTransition(constants.EventOrderStatusInProgress, ActionComplete, constants.EventOrderStatusCompleted)
	sm.addTransition(constants.EventOrderStatusConfirmed, ActionCancel, constants.EventOrderStatusCancelled)
	sm.addTransition(constants.EventOrderStatusInProgress, ActionCancel, constants.EventOrderStatusCancelled)
	return sm
}

// NewLeadPipeline builds the lead pipeline. Actions are the target status names,
// except "won" which is only reachable through ActionConvert.
func NewLeadPipeline() *StateMachine {
	sm := newStateMachine("lead", constants.LeadStatusWon)

	open := []string{
		constants.LeadStatusNew,
		constants.LeadStatusContacted,
		constants.LeadStatusQualified,
		constants.LeadStatusProposal,
	}
	for _, from := range open {
		for _, to := range open {
			if from != to {
				sm.addTransition(from, Action(to), to)
			}
		}
		sm.addTransition(from, Action(constants.LeadStatusLost), constants.LeadStatusLost)
		sm.addTransition(from, ActionConvert, constants.LeadStatusWon)
	}
	// A lost lead can be reopened.
	sm.addTransition(constants.LeadStatusLost, Action(constants.LeadStatusNew), constants.LeadStatusNew)
	sm.addTransition(constants.LeadStatusLost, Action(constants.LeadStatusContacted), constants.LeadStatusContacted)
	return sm
}

// Transition returns the next state or an error if the action is not allowed from current.
func (sm *StateMachine) Transition(current string, action Action) (string, error) {
	next, ok := sm.transitions[stateTransitionKey{state: current, action: action}]
	if !ok {
		return current, fmt.Errorf("invalid %s transition: cannot %s from %s", sm.name, action, current)
	}
	return next, nil
}

// CanTransition checks if a transition is valid without performing it.
func (sm *StateMachine) CanTransition(current string, action Action) bool {
	_, ok := sm.transitions[stateTransitionKey{state: current, action: action}]
	return ok
}

// StatesAllowing returns the states from which action is valid, sorted.
func (sm *StateMachine) StatesAllowing(action Action) []string {
	var result []string
	for key := range sm.transitions {
		if key.action == action {
			result = append(result, key.state)
		}
	}
	sort.Strings(result)
	return result
}

// IsTerminal returns true if no further transitions leave the state.
func (sm *StateMachine) IsTerminal(state string) bool {
	return sm.terminal[state]
}
