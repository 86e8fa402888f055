package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionTo(t *testing.T) {
	assert.True(t, CanTransitionTo(WithdrawalStatusPending, WithdrawalStatusApproved))
	assert.True(t, CanTransitionTo(WithdrawalStatusPending, WithdrawalStatusRejected))
	assert.True(t, CanTransitionTo(WithdrawalStatusApproved, WithdrawalStatusCompleted))

	assert.False(t, CanTransitionTo(WithdrawalStatusPending, WithdrawalStatusCompleted))
	assert.False(t, CanTransitionTo(WithdrawalStatusApproved, WithdrawalStatusRejected))
	assert.False(t, CanTransitionTo(WithdrawalStatusRejected, WithdrawalStatusApproved))
	assert.False(t, CanTransitionTo(WithdrawalStatusCompleted, WithdrawalStatusPending))
}
