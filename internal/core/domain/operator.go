package domain

import "time"

// Role defines operator permission level
type Role string

const (
	RoleAdmin   Role = "admin"   // Manage the queue, force syncs, refresh schema
	RoleCashier Role = "cashier" // Read sync status only
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleCashier
}

// Operator is a person allowed to use the admin surfaces of a terminal.
// Operators live in the local usuarios table and never leave the terminal.
type Operator struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"` // Never serialize
	Name         string     `json:"name"`
	Role         Role       `json:"role"`
	Active       bool       `json:"active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

// OperatorSummary provides a safe view of operator data (no password hash)
type OperatorSummary struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Name        string     `json:"name"`
	Role        Role       `json:"role"`
	Active      bool       `json:"active"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// ToSummary converts an Operator to OperatorSummary
func (o *Operator) ToSummary() *OperatorSummary {
	return &OperatorSummary{
		ID:          o.ID,
		Email:       o.Email,
		Name:        o.Name,
		Role:        o.Role,
		Active:      o.Active,
		LastLoginAt: o.LastLoginAt,
	}
}

// IsAdmin checks if the operator has admin privileges
func (o *Operator) IsAdmin() bool {
	return o.Role == RoleAdmin
}

// CreateOperatorRequest carries the fields needed to register an operator
type CreateOperatorRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
}
