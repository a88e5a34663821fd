// Package identity authenticates operators and guards destructive
// operator-account operations.
package identity

import "time"

// Role enumerates operator roles.
type Role string

const (
	// RoleAdmin may manage operators and settings.
	RoleAdmin Role = "admin"
	// RoleUser may run day-to-day inventory and billing commands.
	RoleUser Role = "user"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool { return r == RoleAdmin || r == RoleUser }

// MinSecretLength is the minimum accepted secret length.
const MinSecretLength = 6

// Operator is a human user of the system. SecretHash is a bcrypt digest;
// cleartext secrets are never stored.
type Operator struct {
	ID         int64
	Username   string
	SecretHash string
	Role       Role
	CreatedAt  time.Time
}

// RegisterInput carries a registration request.
type RegisterInput struct {
	Username string
	Secret   string
	Confirm  string
	Role     Role
}

// ChangeSecretInput carries a secret-change request.
type ChangeSecretInput struct {
	OperatorID int64
	Current    string
	Next       string
	Confirm    string
}
