package enums

import "slices"

// UserRole is carried in access tokens and scopes what a caller may do.
type UserRole string

const (
	UserRoleBuyer  UserRole = "buyer"
	UserRoleSeller UserRole = "seller"
	UserRoleAdmin  UserRole = "admin"
	UserRoleSystem UserRole = "system"
)

var userRoles = []UserRole{UserRoleBuyer, UserRoleSeller, UserRoleAdmin, UserRoleSystem}

func (r UserRole) IsValid() bool { return slices.Contains(userRoles, r) }

// IsPrivileged reports whether the role may act on behalf of the platform.
func (r UserRole) IsPrivileged() bool {
	return r == UserRoleAdmin || r == UserRoleSystem
}

// ParseUserRole ignores case and surrounding space.
func ParseUserRole(value string) (UserRole, error) {
	return parse(value, userRoles, "user role", lowerTrim)
}
