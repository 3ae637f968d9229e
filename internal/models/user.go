package models

import "time"

// User carries the account identity plus the profile fields the assistant
// uses to pre-fill bookings (name, email, phone).
type User struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement"`
	Email        string `gorm:"type:varchar(255);uniqueIndex;not null"`
	Username     string `gorm:"type:varchar(32);uniqueIndex;not null"`
	PasswordHash string `gorm:"type:varchar(255);not null"`

	FullName string `gorm:"type:varchar(128)"`
	Phone    string `gorm:"type:varchar(32)"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (User) TableName() string { return "users" }

// Profile is the read-only slice of a user handed to the assistant.
type Profile struct {
	FullName string
	Email    string
	Phone    string
}

func (u *User) Profile() *Profile {
	if u == nil {
		return nil
	}
	return &Profile{FullName: u.FullName, Email: u.Email, Phone: u.Phone}
}
