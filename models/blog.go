package models

import "time"

// Blog publication states.
const (
	BlogStatusDraft     = "draft"
	BlogStatusPublished = "published"
)

// Blog is a post written by a user. Content is sanitized HTML.
type Blog struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	UserID      uint       `gorm:"index;not null" json:"user_id"`
	Title       string     `gorm:"size:255;not null" json:"title"`
	Slug        string     `gorm:"size:191;uniqueIndex;not null" json:"slug"`
	Excerpt     string     `gorm:"size:512" json:"excerpt"`
	Content     string     `gorm:"type:text;not null" json:"content"`
	CoverImage  string     `gorm:"size:512" json:"cover_image"`
	Tags        string     `gorm:"size:255" json:"tags"` // comma separated
	Status      string     `gorm:"size:16;index;default:draft" json:"status"`
	PublishedAt *time.Time `gorm:"index" json:"published_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	User        User       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author"`
}

// IsPublished reports whether the blog is publicly visible.
func (b *Blog) IsPublished() bool {
	return b.Status == BlogStatusPublished
}
