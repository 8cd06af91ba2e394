package models

import "time"

// Breakdown dimensions kept on the denormalized summary.
const (
	DimensionReferrer = "referrer"
	DimensionDevice   = "device"
)

// BlogAnalytics is the all-time denormalized counter row for a blog.
// UniqueViews never exceeds TotalViews.
type BlogAnalytics struct {
	ID                uint             `gorm:"primaryKey" json:"id"`
	BlogID            uint             `gorm:"uniqueIndex;not null" json:"blog_id"`
	TotalViews        int64            `gorm:"not null;default:0" json:"total_views"`
	UniqueViews       int64            `gorm:"not null;default:0" json:"unique_views"`
	LastViewedAt      *time.Time       `json:"last_viewed_at"`
	ReferralBreakdown map[string]int64 `gorm:"-" json:"referral_breakdown"`
	DeviceBreakdown   map[string]int64 `gorm:"-" json:"device_breakdown"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
	Blog              Blog             `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
}

// TableName keeps the singular-looking name stable.
func (BlogAnalytics) TableName() string {
	return "blog_analytics"
}

// BlogAnalyticsBreakdown holds one label counter of a summary breakdown map.
// Counts only grow and entries are never removed.
type BlogAnalyticsBreakdown struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	BlogID    uint      `gorm:"uniqueIndex:idx_bab_blog_dim_label,priority:1;not null" json:"blog_id"`
	Dimension string    `gorm:"uniqueIndex:idx_bab_blog_dim_label,priority:2;size:16;not null" json:"dimension"`
	Label     string    `gorm:"uniqueIndex:idx_bab_blog_dim_label,priority:3;size:191;not null" json:"label"`
	Count     int64     `gorm:"not null;default:0" json:"count"`
	UpdatedAt time.Time `json:"updated_at"`
	Blog      Blog      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
}
