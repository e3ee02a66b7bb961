package domain

// Actor is the immutable request context of whoever performs an operation.
// It is built once per request and passed explicitly to scope and workflow checks.
type Actor struct {
	ID          int64
	Role        Role
	departments []int64
}

// NewActor builds an actor; the membership slice is copied.
func NewActor(id int64, role Role, departmentIDs []int64) Actor {
	deps := make([]int64, len(departmentIDs))
	copy(deps, departmentIDs)
	return Actor{ID: id, Role: role, departments: deps}
}

// SystemActor is the identity used by automated transitions.
func SystemActor() Actor {
	return Actor{Role: RoleSystem}
}

// HasIdentity reports whether the actor maps to a stored user.
func (a Actor) HasIdentity() bool {
	return a.ID > 0
}

// IDRef returns the actor id for nullable columns; nil for the system actor.
func (a Actor) IDRef() *int64 {
	if !a.HasIdentity() {
		return nil
	}
	id := a.ID
	return &id
}

// Departments returns a copy of the actor's department memberships.
func (a Actor) Departments() []int64 {
	deps := make([]int64, len(a.departments))
	copy(deps, a.departments)
	return deps
}

// InDepartment reports membership in the given department.
func (a Actor) InDepartment(departmentID int64) bool {
	for _, id := range a.departments {
		if id == departmentID {
			return true
		}
	}
	return false
}
