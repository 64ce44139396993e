package appointment

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransitionRoleGates(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		to      Status
		role    Role
		allowed bool
	}{
		{"doctor confirms", StatusPending, StatusConfirmed, RoleDoctor, true},
		{"staff confirms", StatusPending, StatusConfirmed, RoleStaff, true},
		{"patient cannot confirm", StatusPending, StatusConfirmed, RolePatient, false},

		{"doctor completes from pending", StatusPending, StatusCompleted, RoleDoctor, true},
		{"patient cannot complete", StatusPending, StatusCompleted, RolePatient, false},
		{"doctor completes from confirmed", StatusConfirmed, StatusCompleted, RoleDoctor, true},

		{"patient cancels pending", StatusPending, StatusCancelled, RolePatient, true},
		{"patient cancels confirmed", StatusConfirmed, StatusCancelled, RolePatient, true},

		{"system marks no-show", StatusConfirmed, StatusNoShow, RoleSystem, true},
		{"patient cannot mark no-show", StatusConfirmed, StatusNoShow, RolePatient, false},

		{"completed is terminal", StatusCompleted, StatusCancelled, RoleDoctor, false},
		{"cancelled is terminal", StatusCancelled, StatusConfirmed, RoleDoctor, false},
		{"no-show is terminal", StatusNoShow, StatusCompleted, RoleDoctor, false},
		{"no backwards move", StatusConfirmed, StatusPending, RoleDoctor, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CanTransition(tt.from, tt.to, tt.role)
			if tt.allowed {
				assert.NoError(t, err)
				return
			}

			var stErr *StateTransitionError
			require.True(t, errors.As(err, &stErr), "want StateTransitionError, got %v", err)
			assert.Equal(t, tt.from, stErr.From)
			assert.Equal(t, tt.to, stErr.To)
			assert.Equal(t, tt.role, stErr.Role)
		})
	}
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(StatusCompleted))
	assert.True(t, IsTerminal(StatusCancelled))
	assert.True(t, IsTerminal(StatusNoShow))
	assert.False(t, IsTerminal(StatusPending))
	assert.False(t, IsTerminal(StatusConfirmed))
}
