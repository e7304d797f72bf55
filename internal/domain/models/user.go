package models

import "time"

type User struct {
	ID              string     `json:"id"`
	CompanyID       string     `json:"company_id"`
	Email           string     `json:"email"`
	PasswordHash    string     `json:"-"`
	FullName        string     `json:"full_name"`
	RoleID          string     `json:"role_id"`
	RoleName        string     `json:"role_name,omitempty"`
	IsActive        bool       `json:"is_active"`
	IsPlatformAdmin bool       `json:"is_platform_admin"`
	LastLoginAt     *time.Time `json:"last_login_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Session is the server-side record of an issued token (keyed by the token's jti).
type Session struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	CompanyID    string    `json:"company_id"`
	ExpiresAt    time.Time `json:"expires_at"`
	IPAddress    string    `json:"ip_address"`
	UserAgent    string    `json:"user_agent"`
	IsRevoked    bool      `json:"is_revoked"`
	LastActivity time.Time `json:"last_activity"`
	CreatedAt    time.Time `json:"created_at"`
}

type InviteUserInput struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Password string `json:"password"`
	RoleID   string `json:"role_id"`
}

type UpdateUserInput struct {
	FullName *string `json:"full_name,omitempty"`
	RoleID   *string `json:"role_id,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}

type LoginResult struct {
	Token       string       `json:"token"`
	ExpiresAt   time.Time    `json:"expires_at"`
	User        *User        `json:"user"`
	Permissions []Permission `json:"permissions"`
}
