package model

import "time"

// StaffRole distinguishes administrators from teachers.
type StaffRole string

const (
	StaffRoleAdmin   StaffRole = "admin"
	StaffRoleTeacher StaffRole = "teacher"
)

// Staff represents an admin or teacher user.
type Staff struct {
	ID           int       `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         StaffRole `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// StaffLoginRequest is the payload for staff authentication.
type StaffLoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=4,max=128"`
}

