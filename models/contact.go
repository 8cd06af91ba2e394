package models

import "time"

// Newsletter subscription states.
const (
	SubscriberActive       = "subscribed"
	SubscriberUnsubscribed = "unsubscribed"
)

// ContactMessage is a submission of the public contact form.
type ContactMessage struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:128;not null" json:"name"`
	Email     string    `gorm:"size:255;not null" json:"email"`
	Subject   string    `gorm:"size:255" json:"subject"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	IPAddress string    `gorm:"size:45" json:"ip_address"`
	Handled   bool      `gorm:"default:false" json:"handled"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// NewsletterSubscriber tracks a newsletter email and its unsubscribe token.
type NewsletterSubscriber struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	Email          string     `gorm:"size:191;uniqueIndex;not null" json:"email"`
	Status         string     `gorm:"size:16;not null;default:subscribed" json:"status"`
	Token          string     `gorm:"size:64;uniqueIndex;not null" json:"-"`
	SubscribedAt   time.Time  `json:"subscribed_at"`
	UnsubscribedAt *time.Time `json:"unsubscribed_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
