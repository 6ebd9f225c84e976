package model

import (
	"time"
)

type User struct {
	ID          string     `db:"id"`
	Email       string     `db:"email"`
	Name        string     `db:"name"`
	ExternalID  *string    `db:"external_id"` // Google subject, NULL until the first federated login
	IsActive    bool       `db:"is_active"`
	IsStaff     bool       `db:"is_staff"`
	IsSuperuser bool       `db:"is_superuser"`
	CreatedAt   time.Time  `db:"created_at"`
	LastLogin   *time.Time `db:"last_login"`
}

func (u *User) HasExternalID() bool {
	return u.ExternalID != nil && *u.ExternalID != ""
}
