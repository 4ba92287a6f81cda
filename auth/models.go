package auth

import "time"

type Role string

const (
	RoleLearner  Role = "learner"
	RoleOperator Role = "operator"
	RoleAdmin    Role = "admin"
)

// User is the domain representation of a platform account. It mirrors the
// users table and carries no JSON annotations so it can be reused by
// different presentation layers. Learners are the accounts payment
// notifications correlate to; operators and admins may call the reporting
// API and receive payment error messages.
type User struct {
	ID           int64
	Email        string
	FullName     string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RegisterRequest contains account registration data supplied by callers.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Role     Role   `json:"role"`
}

// LoginRequest contains login credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
