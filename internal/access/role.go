// Package access models who is operating the system and what they may do.
package access

import "fmt"

// Role is one of a closed set of actor kinds.
type Role string

const (
	RoleStudent    Role = "student"
	RoleROTC       Role = "rotc_officer"
	RoleUSC        Role = "usc_officer"
	RoleSuperAdmin Role = "super_admin"
)

// Capabilities is evaluated once per session from a Role.
type Capabilities struct {
	CanScan         bool
	CanManageEvents bool
	CanIssuePins    bool
	CanViewReports  bool
	// PinAuthenticated roles sign in with a daily PIN and may have their event
	// chosen by that PIN.
	PinAuthenticated bool
}

var capabilities = map[Role]Capabilities{
	RoleStudent:    {},
	RoleROTC:       {CanScan: true, CanViewReports: true, PinAuthenticated: true},
	RoleUSC:        {CanScan: true, CanViewReports: true, PinAuthenticated: true},
	RoleSuperAdmin: {CanScan: true, CanManageEvents: true, CanIssuePins: true, CanViewReports: true},
}

// ParseRole validates a role name.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if _, ok := capabilities[r]; !ok {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Capabilities returns the permission set for r. Unknown roles get none.
func (r Role) Capabilities() Capabilities {
	return capabilities[r]
}

// IsOfficer reports whether r is one of the PIN-authenticated officer roles.
func (r Role) IsOfficer() bool {
	return r == RoleROTC || r == RoleUSC
}

// ErrForbidden is returned when an actor lacks a capability.
type ErrForbidden struct {
	Role   Role
	Action string
}

func (e *ErrForbidden) Error() string {
	return fmt.Sprintf("role %q may not %s", e.Role, e.Action)
}
