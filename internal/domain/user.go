package domain

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleRider Role = "rider"
	RoleAdmin Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleRider, RoleAdmin:
		return true
	}

	return false
}

type User struct {
	Email       string    `json:"email" db:"email"`
	DisplayName string    `json:"displayName" db:"display_name"`
	PhotoURL    string    `json:"photoURL" db:"photo_url"`
	Role        Role      `json:"role" db:"role"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	LastLoginAt time.Time `json:"lastLoginAt" db:"last_login_at"`
}

// Principal is the verified caller of a request.
type Principal struct {
	Email string
	Role  Role
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}
