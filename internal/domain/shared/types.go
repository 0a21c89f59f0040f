package shared

import "github.com/google/uuid"

// OutboxStatus defines message publishing states
type OutboxStatus string

const (
	OutboxStatusPending         OutboxStatus = "PENDING"
	OutboxStatusProcessed       OutboxStatus = "PROCESSED"
	OutboxStatusFailedToPublish OutboxStatus = "FAILED_TO_PUBLISH"
)

// Role is the capability attached to an acting user by the authentication collaborator
type Role string

const (
	RoleUser     Role = "user"
	RoleResolver Role = "resolver"
	RoleAdmin    Role = "admin"
	RoleSystem   Role = "system"
)

// Actor identifies who requested a ledger mutation
type Actor struct {
	ID   uuid.UUID
	Role Role
}

// SystemActor is used for transitions driven by the worker (auto-release, expiry)
var SystemActor = Actor{ID: uuid.Nil, Role: RoleSystem}

// IsAdmin reports whether the actor holds the admin capability
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// CanResolveDisputes reports whether the actor may resolve disputed escrows
func (a Actor) CanResolveDisputes() bool {
	return a.Role == RoleResolver || a.Role == RoleAdmin
}

// ParseRole maps a header value to a Role, defaulting to RoleUser
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleResolver, RoleAdmin:
		return Role(s)
	default:
		return RoleUser
	}
}
