package models

import "time"

const (
	RolePatient = "patient"
	RoleDoctor  = "doctor"
)

type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement"      json:"id"`
	Name         string    `gorm:"size:100;not null"             json:"name"`
	Email        string    `gorm:"size:255;not null;uniqueIndex" json:"email"`
	PasswordHash string    `gorm:"not null"                      json:"-"`
	Role         string    `gorm:"size:16;not null"              json:"role"`
	CreatedAt    time.Time `                                     json:"createdAt"`
}
