package models

import "time"

// Product is an item in the marketing catalog. Prices are kept in minor units.
type Product struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	Slug        string    `gorm:"size:191;uniqueIndex;not null" json:"slug"`
	Description string    `gorm:"type:text" json:"description"`
	PriceCents  int64     `gorm:"not null;default:0" json:"price_cents"`
	Currency    string    `gorm:"size:3;default:USD" json:"currency"`
	ImageURL    string    `gorm:"size:512" json:"image_url"`
	Category    string    `gorm:"size:64;index" json:"category"`
	Featured    bool      `gorm:"index;default:false" json:"featured"`
	Active      bool      `gorm:"index;not null" json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
