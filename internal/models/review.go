package models

import (
	"time"
)

type Review struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"not null;uniqueIndex:idx_review_user_tool" json:"user_id"`
	User         User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	ToolID       uint      `gorm:"not null;index;uniqueIndex:idx_review_user_tool" json:"tool_id"`
	Tool         Tool      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Rating       int       `gorm:"not null;check:rating >= 1 AND rating <= 5" json:"rating"`
	Content      string    `gorm:"type:text;not null" json:"content"`
	Pros         string    `gorm:"type:text" json:"pros"`
	Cons         string    `gorm:"type:text" json:"cons"`
	HelpfulCount int       `gorm:"not null;default:0;check:helpful_count >= 0" json:"helpful_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// 非数据库字段
	Author      *Author `gorm:"-" json:"author,omitempty"`
	ContentHTML string  `gorm:"-" json:"content_html,omitempty"`
}
