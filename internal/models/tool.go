package models

import (
	"time"
)

type Tool struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:100;not null;index" json:"name"`
	Description string    `gorm:"type:text;not null" json:"description"`
	Website     string    `gorm:"size:500;not null" json:"website"`
	Category    string    `gorm:"size:60;not null;index" json:"category"`
	Logo        string    `gorm:"size:500" json:"logo"` // Optional
	Upvotes     int       `gorm:"not null;default:0;check:upvotes >= 0" json:"upvotes"`
	Featured    bool      `gorm:"not null;default:false;index" json:"featured"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// 非数据库字段，详情查询时填充
	ReviewCount   int     `gorm:"-" json:"review_count,omitempty"`
	AverageRating float64 `gorm:"-" json:"average_rating,omitempty"`
}

// CategoryCount 分类及其工具数量
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}
