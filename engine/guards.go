package engine

// =============================================================================
// GUARDS - Pure validation functions (no ambient state)
// =============================================================================
// Both guards take the current business date / role as explicit parameters so
// the core stays testable without a process-wide singleton.

// AssertNotPastDate rejects targets earlier than the current business date.
// Every operation that creates future-dated policy or rate rows calls this
// before committing.
func AssertNotPastDate(current, target Date) error {
	if target.Before(current) {
		return &PastDateError{Target: target, Current: current}
	}
	return nil
}

// Role is the caller's operational role as asserted by the surrounding
// authorization layer. The engine only distinguishes privileged operations
// (business date override, manual overbooking override) from the rest.
type Role string

const (
	RoleFrontDesk Role = "front_desk"
	RoleManager   Role = "manager"
	RoleAdmin     Role = "admin"
)

var rolePrivilege = map[Role]int{
	RoleFrontDesk: 1,
	RoleManager:   2,
	RoleAdmin:     3,
}

// AssertOperationalRole rejects callers whose role carries less privilege
// than required. Unknown roles carry no privilege.
func AssertOperationalRole(role, required Role) error {
	if rolePrivilege[role] < rolePrivilege[required] {
		return &RoleError{Role: role, Required: required}
	}
	return nil
}

// RoleError reports a caller whose role is insufficient for the operation.
type RoleError struct {
	Role     Role
	Required Role
}

func (e *RoleError) Error() string {
	return "role " + string(e.Role) + " lacks privilege " + string(e.Required)
}

func (e *RoleError) Unwrap() error { return ErrInvalidInput }
