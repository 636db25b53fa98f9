// user.go defines the User model. Accounts are provisioned automatically at
// first login from the identity provider; the is_admin flag mirrors directory
// group membership and is refreshed on every login.
package models

import "time"

// User represents an application account
type User struct {
	ID          string    `db:"id" json:"id"`
	Username    string    `db:"username" json:"username"`
	DisplayName string    `db:"display_name" json:"display_name"`
	Email       string    `db:"email" json:"email"`
	IsAdmin     bool      `db:"is_admin" json:"is_admin"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
