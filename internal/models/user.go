package models

import (
	"time"

	"github.com/google/uuid"
)

// Role represents an account role on the platform.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleViewer Role = "viewer"
)

// Capability is a named permission attached to a role.
type Capability string

const (
	// CapPublish allows holding a stream key and publishing to the ingest server.
	CapPublish Capability = "publish"
)

var roleCapabilities = map[Role]map[Capability]struct{}{
	RoleAdmin: {CapPublish: {}},
}

// Can reports whether the role grants the capability.
func (r Role) Can(cap Capability) bool {
	caps, ok := roleCapabilities[r]
	if !ok {
		return false
	}
	_, ok = caps[cap]
	return ok
}

// User is a platform account. A stream key is a bearer credential for the RTMP
// publish endpoint; only accounts with CapPublish may hold one.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Password  string    `json:"-"`
	Role      Role      `json:"role"`
	Active    bool      `json:"is_active"`
	StreamKey string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Can reports whether the user's role grants the capability.
func (u *User) Can(cap Capability) bool {
	return u.Role.Can(cap)
}

// UserPublic is User without credentials for API responses.
type UserPublic struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	Active    bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// ToPublic converts User to UserPublic.
func (u *User) ToPublic() UserPublic {
	return UserPublic{
		ID:        u.ID,
		Email:     u.Email,
		Role:      u.Role,
		Active:    u.Active,
		CreatedAt: u.CreatedAt,
	}
}
