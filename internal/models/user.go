package models

import (
	"time"
)

type User struct {
	ID                         uint       `gorm:"primaryKey" json:"id"`
	Username                   string     `gorm:"size:50;uniqueIndex;not null" json:"username"`
	Email                      string     `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Password                   string     `gorm:"not null" json:"-"` // bcrypt hash
	FirstName                  string     `gorm:"size:50;not null" json:"first_name"`
	LastName                   string     `gorm:"size:50;not null" json:"last_name"`
	IsAdmin                    bool       `gorm:"not null;default:false" json:"is_admin"`
	IsVerified                 bool       `gorm:"not null;default:false" json:"is_verified"`
	VerificationTokenHash      *string    `gorm:"size:64;index" json:"-"` // sha256(token)，原始 token 只出现在邮件里
	VerificationTokenExpiresAt *time.Time `json:"-"`
	CreatedAt                  time.Time  `json:"created_at"`
	UpdatedAt                  time.Time  `json:"updated_at"`
}

// Author 是评论里展示的公开用户信息，不含邮箱
type Author struct {
	ID        uint   `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (u User) Author() *Author {
	return &Author{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}
