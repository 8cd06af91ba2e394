package models

// All lists every persisted model in migration order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Blog{},
		&Comment{},
		&Like{},
		&BlogView{},
		&BlogAnalytics{},
		&BlogAnalyticsBreakdown{},
		&Product{},
		&ContactMessage{},
		&NewsletterSubscriber{},
	}
}
