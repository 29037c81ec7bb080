package domain

import (
	"database/sql"
	"time"
)

// Role is the closed set of roles a user can hold.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleTrainer  Role = "trainer"
	RoleClient   Role = "client"
	RoleGymOwner Role = "gym_owner"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTrainer, RoleClient, RoleGymOwner:
		return true
	}
	return false
}

// User is the durable-store user record.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Role         Role
	GymID        sql.NullString
	Active       bool
	LastLoginAt  sql.NullTime
	CreatedAt    time.Time
}

// Projection is the denormalized user record kept in the read-through cache
// and returned to callers. It never carries the password hash.
type Projection struct {
	ID     string `json:"id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   Role   `json:"role"`
	GymID  string `json:"gym_id,omitempty"`
	Active bool   `json:"active"`
}

// Project returns the cacheable view of u.
func (u *User) Project() *Projection {
	p := &Projection{
		ID:     u.ID,
		Email:  u.Email,
		Name:   u.Name,
		Role:   u.Role,
		Active: u.Active,
	}
	if u.GymID.Valid {
		p.GymID = u.GymID.String
	}
	return p
}

// NewUserInput carries the fields required to insert a user.
type NewUserInput struct {
	Email        string
	Name         string
	PasswordHash string
	Role         Role
	GymID        string
}

// UserUpdate enumerates the mutable user fields. Only non-nil fields are
// written; update statements are never assembled from arbitrary key sets.
type UserUpdate struct {
	Name   *string
	Role   *Role
	GymID  *string
	Active *bool
}

// Empty reports whether the update would write nothing.
func (u UserUpdate) Empty() bool {
	return u.Name == nil && u.Role == nil && u.GymID == nil && u.Active == nil
}

// TokenPair bundles the freshly minted access and refresh tokens.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
	TokenType    string
}
