package model

import "time"

// Student represents a student user.
type Student struct {
	ID           int       `json:"id"`
	AdmissionNo  string    `json:"admission_no"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	ClassID      int       `json:"class_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// StudentLoginRequest is the payload for student authentication.
type StudentLoginRequest struct {
	AdmissionNo string `json:"admission_no" binding:"required,min=3,max=30"`
	Password    string `json:"password" binding:"required,min=4,max=128"`
}

// CreateStudentRequest is the payload for creating a new student account.
type CreateStudentRequest struct {
	AdmissionNo string `json:"admission_no" binding:"required,min=3,max=30"`
	Name        string `json:"name" binding:"required,min=2,max=100"`
	Password    string `json:"password" binding:"required,min=6,max=128"`
	ClassID     int    `json:"class_id" binding:"required"`
}
