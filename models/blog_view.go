package models

import "time"

// BlogView stores one row per tracked page view. Rows are insert-only.
type BlogView struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	BlogID         uint      `gorm:"not null;index:idx_bv_blog_ip_ts,priority:1;index:idx_bv_blog_ts,priority:1" json:"blog_id"`
	UserID         *uint     `gorm:"index" json:"user_id"`
	IPAddress      string    `gorm:"size:45;index:idx_bv_blog_ip_ts,priority:2" json:"ip_address"`
	UserAgent      string    `gorm:"size:512" json:"user_agent"`
	Referrer       string    `gorm:"size:1024" json:"referrer"`
	ReferrerDomain string    `gorm:"size:255" json:"referrer_domain"`
	Country        string    `gorm:"size:64" json:"country"`
	City           string    `gorm:"size:128" json:"city"`
	DeviceType     string    `gorm:"size:32" json:"device_type"`
	Browser        string    `gorm:"size:32" json:"browser"`
	OS             string    `gorm:"size:32" json:"os"`
	SessionID      string    `gorm:"size:64" json:"session_id"`
	CreatedAt      time.Time `gorm:"not null;index:idx_bv_blog_ip_ts,priority:3;index:idx_bv_blog_ts,priority:2" json:"created_at"`
	Blog           Blog      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
}
