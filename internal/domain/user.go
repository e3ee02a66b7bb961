package domain

import "time"

// User is anyone who can sign in: requesters and department staff alike.
type User struct {
	ID           int64
	Username     string
	FullName     string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
}
