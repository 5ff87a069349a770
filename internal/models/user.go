package models

import (
	"time"
)

type UserRole string

const (
	RoleStudent UserRole = "student"
	RoleTeacher UserRole = "teacher"
	RoleAdmin   UserRole = "admin"
)

type User struct {
	ID       string   `json:"id"`
	FullName string   `json:"full_name"`
	Email    string   `json:"email"`
	Role     UserRole `json:"role"`

	AvatarURL *string `json:"avatar_url"`
	// Casdoor groups; class ids when enrollment is sourced from Casdoor.
	Groups []string `json:"groups,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ClassEnrollment links a student to a class.
type ClassEnrollment struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	ClassID   string    `json:"class_id" gorm:"not null;size:255;uniqueIndex:idx_class_student"`
	StudentID string    `json:"student_id" gorm:"not null;size:255;uniqueIndex:idx_class_student;index"`
	CreatedAt time.Time `json:"created_at"`
}

func (ClassEnrollment) TableName() string {
	return "class_enrollments"
}
