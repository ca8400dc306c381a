package service

import (
	"testing"

	"espacio/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLegalTransitions(t *testing.T) {
	tests := []struct {
		from         string
		to           string
		requireNotes bool
	}{
		{models.StatusPending, models.StatusConfirmed, false},
		{models.StatusPending, models.StatusRejected, true},
		{models.StatusConfirmed, models.StatusCancelled, true},
		{models.StatusConfirmed, models.StatusCompleted, false},
		{models.StatusConfirmed, models.StatusNoShow, false},
	}

	for _, tt := range tests {
		rule, err := findTransition(tt.from, tt.to)
		require.NoError(t, err, "%s -> %s", tt.from, tt.to)
		assert.Equal(t, tt.requireNotes, rule.RequireNotes, "%s -> %s", tt.from, tt.to)
	}
}

func TestIllegalTransitions(t *testing.T) {
	illegal := [][2]string{
		{models.StatusPending, models.StatusCancelled},
		{models.StatusPending, models.StatusCompleted},
		{models.StatusPending, models.StatusNoShow},
		{models.StatusConfirmed, models.StatusRejected},
		{models.StatusConfirmed, models.StatusPending},
		{models.StatusRejected, models.StatusConfirmed},
		{models.StatusRejected, models.StatusRejected},
		{models.StatusCancelled, models.StatusConfirmed},
		{models.StatusCompleted, models.StatusNoShow},
		{models.StatusNoShow, models.StatusCompleted},
	}

	for _, pair := range illegal {
		_, err := findTransition(pair[0], pair[1])

		var transitionErr *TransitionError
		require.ErrorAs(t, err, &transitionErr, "%s -> %s", pair[0], pair[1])
		assert.Equal(t, pair[0], transitionErr.From)
		assert.Equal(t, pair[1], transitionErr.To)
	}
}

func TestTerminalStatusesHaveNoExits(t *testing.T) {
	all := []string{
		models.StatusPending, models.StatusConfirmed, models.StatusRejected,
		models.StatusCancelled, models.StatusCompleted, models.StatusNoShow,
	}

	for _, terminal := range models.TerminalStatuses {
		for _, to := range all {
			_, err := findTransition(terminal, to)
			assert.Error(t, err, "%s must not transition to %s", terminal, to)
		}
	}
}
