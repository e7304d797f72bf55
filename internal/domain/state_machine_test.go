package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/constants"
)

func TestQuotationStateMachine(t *testing.T) {
	sm := NewQuotationStateMachine()

	tests := []struct {
		from    string
		action  Action
		to      string
		wantErr bool
	}{
		{constants.QuotationStatusDraft, ActionSend, constants.QuotationStatusSent, false},
		{constants.QuotationStatusSent, ActionAccept, constants.QuotationStatusAccepted, false},
		{constants.QuotationStatusSent, ActionReject, constants.QuotationStatusRejected, false},
		{constants.QuotationStatusSent, ActionRevise, constants.QuotationStatusDraft, false},
		{constants.QuotationStatusDraft, ActionExpire, constants.QuotationStatusExpired, false},
		{constants.QuotationStatusSent, ActionExpire, constants.QuotationStatusExpired, false},
		{constants.QuotationStatusDraft, ActionAccept, constants.QuotationStatusDraft, true},
		{constants.QuotationStatusAccepted, ActionRevise, constants.QuotationStatusAccepted, true},
		{constants.QuotationStatusRejected, ActionSend, constants.QuotationStatusRejected, true},
		{constants.QuotationStatusExpired, ActionAccept, constants.QuotationStatusExpired, true},
	}

	for _, tt := range tests {
		t.Run(tt.from+"_"+string(tt.action), func(t *testing.T) {
			got, err := sm.Transition(tt.from, tt.action)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "invalid quotation transition")
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.to, got)
		})
	}

	assert.True(t, sm.IsTerminal(constants.QuotationStatusAccepted))
	assert.False(t, sm.IsTerminal(constants.QuotationStatusSent))
	assert.Equal(t, []string{constants.QuotationStatusDraft, constants.QuotationStatusSent}, sm.StatesAllowing(ActionExpire))
}

func TestEventOrderStateMachine(t *testing.T) {
	sm := NewEventOrderStateMachine()

	next, err := sm.Transition(constants.EventOrderStatusConfirmed, ActionStart)
	require.NoError(t, err)
	assert.Equal(t, constants.EventOrderStatusInProgress, next)

	next, err = sm.Transition(next, ActionComplete)
	require.NoError(t, err)
	assert.Equal(t, constants.EventOrderStatusCompleted, next)

	assert.True(t, sm.CanTransition(constants.EventOrderStatusInProgress, ActionCancel))
	assert.False(t, sm.CanTransition(constants.EventOrderStatusConfirmed, ActionComplete))
	assert.False(t, sm.CanTransition(constants.EventOrderStatusCompleted, ActionCancel))
	assert.Empty(t, sm.StatesAllowing(ActionConvert))
}

func TestLeadPipeline(t *testing.T) {
	sm := NewLeadPipeline()

	assert.True(t, sm.CanTransition(constants.LeadStatusNew, Action(constants.LeadStatusQualified)))
	assert.True(t, sm.CanTransition(constants.LeadStatusProposal, Action(constants.LeadStatusLost)))
	assert.True(t, sm.CanTransition(constants.LeadStatusLost, Action(constants.LeadStatusNew)))
	assert.False(t, sm.CanTransition(constants.LeadStatusNew, Action(constants.LeadStatusWon)))
	assert.False(t, sm.CanTransition(constants.LeadStatusNew, Action(constants.LeadStatusNew)))

	next, err := sm.Transition(constants.LeadStatusQualified, ActionConvert)
	require.NoError(t, err)
	assert.Equal(t, constants.LeadStatusWon, next)

	_, err = sm.Transition(constants.LeadStatusWon, ActionConvert)
	assert.Error(t, err)
	_, err = sm.Transition(constants.LeadStatusLost, ActionConvert)
	assert.Error(t, err)
	assert.True(t, sm.IsTerminal(constants.LeadStatusWon))
}
