package analytics

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/aiblog/models"
	"github.com/cppla/aiblog/utils"
)

// UniqueWindow is the trailing interval in which a repeat view from the same
// IP does not count as unique. It is deliberately not configurable.
const UniqueWindow = 30 * time.Minute

// DefaultGeoTimeout bounds a single geo lookup so a slow resolver cannot use
// up the deadline of the write that follows it.
const DefaultGeoTimeout = 500 * time.Millisecond

// maxLabelRunes matches the size of BlogAnalyticsBreakdown.Label.
const maxLabelRunes = 191

// ErrInvalidBlog is returned when a view does not name a blog.
var ErrInvalidBlog = errors.New("analytics: blog id is required")

// GeoResolver resolves an IP address to country and city names.
type GeoResolver interface {
	Lookup(ctx context.Context, ip string) (country, city string, err error)
}

// ViewInput describes one page view as seen by the HTTP layer.
type ViewInput struct {
	BlogID    uint
	IP        string
	UserAgent string
	Referrer  string
	UserID    *uint
	SessionID string
}

// TrackResult reports what Track recorded.
type TrackResult struct {
	Unique bool
	View   models.BlogView
}

// Tracker records views and maintains the denormalized per-blog counters.
type Tracker struct {
	db         *gorm.DB
	geo        GeoResolver
	geoTimeout time.Duration
	now        func() time.Time
}

// TrackerOption customizes a Tracker.
type TrackerOption func(*Tracker)

// WithGeoResolver enables country/city resolution of viewer IPs.
func WithGeoResolver(g GeoResolver) TrackerOption {
	return func(t *Tracker) { t.geo = g }
}

// WithGeoTimeout overrides DefaultGeoTimeout.
func WithGeoTimeout(d time.Duration) TrackerOption {
	return func(t *Tracker) { t.geoTimeout = d }
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) { t.now = now }
}

// NewTracker creates a Tracker on db.
func NewTracker(db *gorm.DB, opts ...TrackerOption) *Tracker {
	t := &Tracker{db: db, geoTimeout: DefaultGeoTimeout, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Track stores a view and updates the blog's summary counters.
//
// The view is unique when no earlier view of the same blog from the same IP
// exists within UniqueWindow before now. Two concurrent first views from one IP
// may both observe no prior row and both count as unique; counters themselves
// never lose increments because every update is a single atomic upsert.
func (t *Tracker) Track(ctx context.Context, in ViewInput) (TrackResult, error) {
	if in.BlogID == 0 {
		return TrackResult{}, ErrInvalidBlog
	}

	now := t.now().UTC()
	cls := Classify(in.UserAgent)
	view := models.BlogView{
		BlogID:         in.BlogID,
		UserID:         in.UserID,
		IPAddress:      utils.TruncateRunes(in.IP, 45),
		UserAgent:      utils.TruncateRunes(in.UserAgent, 512),
		Referrer:       utils.TruncateRunes(in.Referrer, 1024),
		ReferrerDomain: utils.TruncateRunes(ReferrerHost(in.Referrer), 255),
		DeviceType:     cls.DeviceType,
		Browser:        cls.Browser,
		OS:             cls.OS,
		SessionID:      utils.TruncateRunes(in.SessionID, 64),
		CreatedAt:      now,
	}
	if t.geo != nil && view.IPAddress != "" {
		view.Country, view.City = t.lookupGeo(ctx, view.IPAddress)
	}

	var unique bool
	err := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var prior int64
		if err := tx.Model(&models.BlogView{}).
			Where("blog_id = ? AND ip_address = ? AND created_at >= ?", view.BlogID, view.IPAddress, now.Add(-UniqueWindow)).
			Count(&prior).Error; err != nil {
			return fmt.Errorf("check unique view: %w", err)
		}
		unique = prior == 0

		if err := tx.Create(&view).Error; err != nil {
			return fmt.Errorf("insert view: %w", err)
		}
		if err := incrementSummary(tx, view.BlogID, unique, now); err != nil {
			return err
		}
		if view.ReferrerDomain != "" {
			if err := incrementBreakdown(tx, view.BlogID, models.DimensionReferrer, view.ReferrerDomain, now); err != nil {
				return err
			}
		}
		return incrementBreakdown(tx, view.BlogID, models.DimensionDevice, cls.DeviceType, now)
	})
	if err != nil {
		return TrackResult{}, err
	}
	return TrackResult{Unique: unique, View: view}, nil
}

// incrementSummary bumps the counters in one statement so concurrent views of
// the same blog cannot overwrite each other.
func incrementSummary(tx *gorm.DB, blogID uint, unique bool, now time.Time) error {
	var uniqueInc int64
	if unique {
		uniqueInc = 1
	}
	row := models.BlogAnalytics{
		BlogID:       blogID,
		TotalViews:   1,
		UniqueViews:  uniqueInc,
		LastViewedAt: &now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "blog_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"total_views":    gorm.Expr("total_views + ?", 1),
			"unique_views":   gorm.Expr("unique_views + ?", uniqueInc),
			"last_viewed_at": now,
			"updated_at":     now,
		}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("update summary: %w", err)
	}
	return nil
}

func incrementBreakdown(tx *gorm.DB, blogID uint, dimension, label string, now time.Time) error {
	row := models.BlogAnalyticsBreakdown{
		BlogID:    blogID,
		Dimension: dimension,
		Label:     utils.TruncateRunes(label, maxLabelRunes),
		Count:     1,
		UpdatedAt: now,
	}
	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "blog_id"}, {Name: "dimension"}, {Name: "label"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"count":      gorm.Expr("count + ?", 1),
			"updated_at": now,
		}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("update %s breakdown: %w", dimension, err)
	}
	return nil
}

// EnsureSummary creates the zero-counter summary row of a blog if missing.
func EnsureSummary(ctx context.Context, db *gorm.DB, blogID uint) error {
	row := models.BlogAnalytics{BlogID: blogID}
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "blog_id"}},
		DoNothing: true,
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("ensure summary: %w", err)
	}
	return nil
}

// LoadSummary returns the all-time summary of a blog with its breakdown maps.
// A blog that was never viewed yields a zero summary.
func LoadSummary(ctx context.Context, db *gorm.DB, blogID uint) (models.BlogAnalytics, error) {
	summary := models.BlogAnalytics{BlogID: blogID}
	err := db.WithContext(ctx).Where("blog_id = ?", blogID).First(&summary).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return summary, fmt.Errorf("load summary: %w", err)
	}

	var rows []models.BlogAnalyticsBreakdown
	if err := db.WithContext(ctx).Where("blog_id = ?", blogID).Find(&rows).Error; err != nil {
		return summary, fmt.Errorf("load breakdowns: %w", err)
	}
	summary.ReferralBreakdown = map[string]int64{}
	summary.DeviceBreakdown = map[string]int64{}
	for _, r := range rows {
		switch r.Dimension {
		case models.DimensionReferrer:
			summary.ReferralBreakdown[r.Label] = r.Count
		case models.DimensionDevice:
			summary.DeviceBreakdown[r.Label] = r.Count
		}
	}
	return summary, nil
}

// ReferrerHost extracts the lower-cased hostname of an absolute referrer URL.
// Anything that does not parse as such yields "".
func ReferrerHost(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// lookupGeo is best-effort; a failed or slow lookup leaves both names empty.
func (t *Tracker) lookupGeo(ctx context.Context, ip string) (country, city string) {
	gctx, cancel := context.WithTimeout(ctx, t.geoTimeout)
	defer cancel()
	country, city, err := t.geo.Lookup(gctx, ip)
	if err != nil {
		return "", ""
	}
	return utils.TruncateRunes(country, 64), utils.TruncateRunes(city, 128)
}
