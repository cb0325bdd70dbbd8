package models

import (
	"time"
)

// Role names used for authorization. Roles are plain strings on the
// principal; fine-grained role administration lives in the admin CRUD
// collaborator, not here.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// Principal represents an authenticated identity: a member of the
// congregation with a login. The Online flag is a best-effort durable
// mirror of the in-memory presence registry.
type Principal struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`

	// Never serialized. Compared with bcrypt at login.
	PasswordHash string `json:"-"`

	Online    bool      `json:"online"`
	CreatedAt time.Time `json:"createdAt"`
}
