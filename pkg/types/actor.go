package types

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-core/pkg/enums"
)

// Actor is the authenticated caller performing a domain operation.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

// SystemActor is used for gateway-driven transitions with no human caller.
var SystemActor = Actor{Role: enums.UserRoleSystem}

// IsPrivileged reports whether the actor acts for the platform.
func (a Actor) IsPrivileged() bool {
	return a.Role.IsPrivileged()
}

// IDPtr returns the user id, or nil for the system actor.
func (a Actor) IDPtr() *uuid.UUID {
	if a.UserID == uuid.Nil {
		return nil
	}
	id := a.UserID
	return &id
}
