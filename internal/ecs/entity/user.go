package entity

import (
	"time"
)

// User 사용자. password_hash는 SHA-256 hex
type User struct {
	ID              uint       `json:"id" gorm:"primaryKey"`
	Username        string     `json:"username" gorm:"size:50;not null;uniqueIndex"`
	PasswordHash    string     `json:"-" gorm:"size:255;not null"`
	FullName        string     `json:"full_name" gorm:"size:100"`
	PermissionLevel int        `json:"permission_level" gorm:"not null;default:1"`
	Company         string     `json:"company" gorm:"size:100"`
	IsActive        bool       `json:"is_active" gorm:"not null;default:true"`
	LastLoginAt     *time.Time `json:"last_login_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// DisplayName 이름이 없으면 username
func (u *User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}
