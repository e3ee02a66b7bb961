package domain

import "strings"

// Role enumerates canonical actor roles.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleAgent   Role = "agent"
	RoleEndUser Role = "user"
	// RoleSystem is reserved for automated transitions such as the auto-close sweep.
	RoleSystem Role = "system"
)

// NormalizeRole maps stored role spellings onto canonical roles. Unknown
// spellings are returned lower-cased so the mapping stays total and idempotent.
func NormalizeRole(raw string) Role {
	r := strings.ToLower(raw)
	switch r {
	case "agente", "agent":
		return RoleAgent
	case "usuario", "user", "end-user", "end_user":
		return RoleEndUser
	}
	return Role(r)
}

// IsStaff reports whether the role works tickets on behalf of a department.
func (r Role) IsStaff() bool {
	return r == RoleManager || r == RoleAgent
}

// IsSupervisor reports whether the role may reassign and release tickets it does not hold.
func (r Role) IsSupervisor() bool {
	return r == RoleAdmin || r == RoleManager
}

// Interactive reports whether the role may act through the API.
func (r Role) Interactive() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleAgent, RoleEndUser:
		return true
	}
	return false
}
