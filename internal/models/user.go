package models

import "time"

// User is a registered student.
type User struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Major        string    `db:"major" json:"major"`
	PhoneNumber  string    `db:"phone_number" json:"phoneNumber"`
	Birthdate    time.Time `db:"birthdate" json:"birthdate"`
	Email        string    `db:"email" json:"email"`
	StudentID    string    `db:"student_id" json:"studentId"`
	PasswordHash string    `db:"password_hash" json:"-"`
	IsVerified   bool      `db:"is_verified" json:"isVerified"`
	ProfileImage string    `db:"profile_image" json:"userProfile"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// UserSummary is the public slice of a user attached to messages and comments.
type UserSummary struct {
	ID           string `db:"id" json:"id"`
	Name         string `db:"name" json:"name"`
	Major        string `db:"major" json:"major,omitempty"`
	ProfileImage string `db:"profile_image" json:"userProfile,omitempty"`
}

// Majors accepted at registration.
var Majors = []string{
	"전기전자공학과",
	"스마트전기전자공학과",
	"기계공학과학과",
	"스마트기계공학과",
	"스마트소프트웨어학과",
}

const DefaultProfileImage = "/uploads/users/default-userProfile.png"
