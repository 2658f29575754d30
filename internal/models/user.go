package models

import "gorm.io/gorm"

// User represents a registered account in the system.
type User struct {
	gorm.Model
	Username     string `gorm:"size:255;unique;not null"`
	PasswordHash string `gorm:"size:255;not null"`
}
