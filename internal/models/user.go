package models

import "time"

// User - учетная запись. Владеет историями.
type User struct {
	ID             int64     `json:"id" db:"id"`
	Email          string    `json:"email" db:"email"`
	Username       string    `json:"username" db:"username"`
	FullName       *string   `json:"full_name" db:"full_name"`
	HashedPassword string    `json:"-" db:"hashed_password"`
	IsActive       bool      `json:"is_active" db:"is_active"`
	IsSuperuser    bool      `json:"is_superuser" db:"is_superuser"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// Roles maps the superuser flag to token roles.
func (u *User) Roles() []string {
	if u.IsSuperuser {
		return []string{RoleUser, RoleAdmin}
	}
	return []string{RoleUser}
}

// CanAccess reports whether the user may act on a resource owned by ownerID.
func (u *User) CanAccess(ownerID int64) bool {
	return u.IsSuperuser || u.ID == ownerID
}

// UserUpdate - частичное обновление пользователя. nil = не менять.
// IsActive меняет только администратор.
type UserUpdate struct {
	Email    *string `json:"email"`
	FullName *string `json:"full_name"`
	Password *string `json:"password"`
	IsActive *bool   `json:"is_active"`
}
