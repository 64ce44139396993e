package appointment

import "fmt"

// StateTransitionError reports an illegal status change. The state is never
// mutated when one is returned.
type StateTransitionError struct {
	From Status
	To   Status
	Role Role
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("illegal transition %s -> %s for role %s", e.From, e.To, e.Role)
}

type transition struct {
	from Status
	to   Status
}

// Main flow: pendiente -> confirmada -> completada.
// Side exits from pendiente/confirmada: cancelada (any actor incl. patient),
// no_asistio (doctor, staff or the lifecycle worker acting as system).
// completada, cancelada and no_asistio are terminal.
var allowedTransitions = map[transition][]Role{
	{StatusPending, StatusConfirmed}: {RoleDoctor, RoleStaff},
	{StatusPending, StatusCompleted}: {RoleDoctor, RoleStaff},
	{StatusPending, StatusCancelled}: {RoleDoctor, RoleStaff, RolePatient},
	{StatusPending, StatusNoShow}:    {RoleDoctor, RoleStaff, RoleSystem},

	{StatusConfirmed, StatusCompleted}: {RoleDoctor, RoleStaff},
	{StatusConfirmed, StatusCancelled}: {RoleDoctor, RoleStaff, RolePatient},
	{StatusConfirmed, StatusNoShow}:    {RoleDoctor, RoleStaff, RoleSystem},
}

func IsTerminal(s Status) bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// CanTransition decides whether role may move an appointment from one status
// to another. It returns a *StateTransitionError identifying the rejected
// (from, to, role) triple when the move is illegal.
func CanTransition(from, to Status, role Role) error {
	roles, ok := allowedTransitions[transition{from, to}]
	if !ok {
		return &StateTransitionError{From: from, To: to, Role: role}
	}
	for _, r := range roles {
		if r == role {
			return nil
		}
	}
	return &StateTransitionError{From: from, To: to, Role: role}
}
