package models

import "github.com/golang-jwt/jwt/v5"

// UserRole represents the admin panel roles carried in access tokens.
type UserRole string

const (
	RoleSuperAdmin UserRole = "SUPERADMIN"
	RoleAdmin      UserRole = "ADMIN"
	RoleStaff      UserRole = "STAFF"
)

// Actor prefixes for automated writers. Human actors are identified by their token subject.
const (
	ActorSystemSync    = "system:sync"
	ActorSystemCleanup = "system:cleanup"
	ActorSystemWebhook = "system:webhook"
	ActorSystemOrphan  = "system:orphan-cleanup"
)

// JWTClaims is the access token payload issued by the hosted auth provider.
type JWTClaims struct {
	Email    string   `json:"email"`
	Role     UserRole `json:"user_role"`
	FullName string   `json:"full_name,omitempty"`
	jwt.RegisteredClaims
}

// ActorID returns the identifier written to deleted_by / triggered_by columns.
func (c *JWTClaims) ActorID() string {
	if c == nil {
		return ""
	}
	if c.Subject != "" {
		return c.Subject
	}
	return c.Email
}
