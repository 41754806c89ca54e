package model

import "time"

type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// Account is a portal login. Students submit songs; teachers manage
// students, approvals and credits. Credits never go below zero.
type Account struct {
	ID           string
	Username     string
	FullName     string
	Role         Role
	Credits      int
	Approved     bool
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (a *Account) IsTeacher() bool { return a.Role == RoleTeacher }
