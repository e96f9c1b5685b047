package models

import (
	"time"
)

// Upvote 工具点赞记录，(user_id, tool_id) 唯一
type Upvote struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_upvote_user_tool" json:"user_id"`
	User      User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	ToolID    uint      `gorm:"not null;index;uniqueIndex:idx_upvote_user_tool" json:"tool_id"`
	Tool      Tool      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// HelpfulVote 评论“有帮助”记录，(user_id, review_id) 唯一
type HelpfulVote struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_helpful_user_review" json:"user_id"`
	User      User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	ReviewID  uint      `gorm:"not null;index;uniqueIndex:idx_helpful_user_review" json:"review_id"`
	Review    Review    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}
