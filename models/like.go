package models

import "time"

// Like marks a user's appreciation of a blog; one per (blog, user).
type Like struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	BlogID    uint      `gorm:"uniqueIndex:idx_like_blog_user;not null" json:"blog_id"`
	UserID    uint      `gorm:"uniqueIndex:idx_like_blog_user;index;not null" json:"user_id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	Blog      Blog      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
}
