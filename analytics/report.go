package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/cppla/aiblog/models"
)

// Labels substituted for empty dimension values.
const (
	DirectLabel  = "Direct"
	UnknownLabel = "Unknown"
)

// Overview holds the headline numbers of a report window.
type Overview struct {
	TotalViews     int64   `json:"totalViews"`
	// UniqueViews counts distinct viewer IPs in the window. It differs from
	// the summary's unique_views, which counts views that passed the
	// UniqueWindow dedup when they were recorded.
	UniqueViews    int64   `json:"uniqueViews"`
	Comments       int64   `json:"comments"`
	Likes          int64   `json:"likes"`
	EngagementRate float64 `json:"engagementRate"`
}

// DailyViews is one point of the views time series.
type DailyViews struct {
	Date  string `json:"date"`
	Views int64  `json:"views"`
}

// NamedCount is one entry of a breakdown list.
type NamedCount struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

// BlogReport is the analytics view of a single blog.
type BlogReport struct {
	BlogID        uint                 `json:"blogId"`
	TimeFilter    TimeFilter           `json:"timeFilter"`
	Overview      Overview             `json:"overview"`
	ViewsOverTime []DailyViews         `json:"viewsOverTime"`
	ReferralData  []NamedCount         `json:"referralData"`
	DeviceData    []NamedCount         `json:"deviceData"`
	BrowserData   []NamedCount         `json:"browserData"`
	OSData        []NamedCount         `json:"osData"`
	CountryData   []NamedCount         `json:"countryData"`
	Summary       models.BlogAnalytics `json:"summary"`
}

// Reporter builds analytics reports from the raw view rows.
type Reporter struct {
	db  *gorm.DB
	now func() time.Time
}

// NewReporter creates a Reporter. A nil now uses time.Now.
func NewReporter(db *gorm.DB, now func() time.Time) *Reporter {
	if now == nil {
		now = time.Now
	}
	return &Reporter{db: db, now: now}
}

type viewTotals struct {
	Total int64
	Uniq  int64
}

type dayCount struct {
	Day   string
	Views int64
}

type labelCount struct {
	Name  string
	Value int64
}

// BlogReport aggregates the views of blogID inside the filter's window.
// A blog without views, or one that does not exist, yields a zeroed report.
func (r *Reporter) BlogReport(ctx context.Context, blogID uint, filter TimeFilter) (*BlogReport, error) {
	filter = ParseTimeFilter(string(filter))
	window := filter.WindowAt(r.now())
	db := r.db.WithContext(ctx)

	views := func() *gorm.DB {
		return inWindow(db.Model(&models.BlogView{}).Where("blog_id = ?", blogID), window)
	}

	report := &BlogReport{BlogID: blogID, TimeFilter: filter}

	var totals viewTotals
	if err := views().
		Select("COUNT(*) AS total, COUNT(DISTINCT CASE WHEN ip_address <> '' THEN ip_address END) AS uniq").
		Scan(&totals).Error; err != nil {
		return nil, fmt.Errorf("count views: %w", err)
	}
	report.Overview.TotalViews = totals.Total
	report.Overview.UniqueViews = totals.Uniq

	if err := inWindow(db.Model(&models.Comment{}).Where("blog_id = ?", blogID), window).
		Count(&report.Overview.Comments).Error; err != nil {
		return nil, fmt.Errorf("count comments: %w", err)
	}
	if err := inWindow(db.Model(&models.Like{}).Where("blog_id = ?", blogID), window).
		Count(&report.Overview.Likes).Error; err != nil {
		return nil, fmt.Errorf("count likes: %w", err)
	}
	report.Overview.EngagementRate = engagementRate(report.Overview)

	var days []dayCount
	if err := views().
		Select("DATE(created_at) AS day, COUNT(*) AS views").
		Group("DATE(created_at)").
		Scan(&days).Error; err != nil {
		return nil, fmt.Errorf("views per day: %w", err)
	}
	report.ViewsOverTime = fillSeries(window, days)

	breakdowns := []struct {
		column string
		empty  string
		dst    *[]NamedCount
	}{
		{"referrer_domain", DirectLabel, &report.ReferralData},
		{"device_type", UnknownLabel, &report.DeviceData},
		{"browser", UnknownLabel, &report.BrowserData},
		{"os", UnknownLabel, &report.OSData},
		{"country", UnknownLabel, &report.CountryData},
	}
	for _, b := range breakdowns {
		var rows []labelCount
		if err := views().
			Select(b.column + " AS name, COUNT(*) AS value").
			Group(b.column).
			Scan(&rows).Error; err != nil {
			return nil, fmt.Errorf("group views by %s: %w", b.column, err)
		}
		*b.dst = rankLabels(rows, b.empty)
	}

	summary, err := LoadSummary(ctx, r.db, blogID)
	if err != nil {
		return nil, err
	}
	report.Summary = summary
	return report, nil
}

func inWindow(q *gorm.DB, w Window) *gorm.DB {
	if w.Bounded() {
		q = q.Where("created_at >= ?", w.From)
	}
	return q
}

func engagementRate(o Overview) float64 {
	denom := o.TotalViews
	if denom < 1 {
		denom = 1
	}
	return float64(o.Comments+o.Likes) / float64(denom)
}

// fillSeries turns sparse per-day counts into one entry per window day.
// Unbounded windows start at the first day that has views.
func fillSeries(w Window, rows []dayCount) []DailyViews {
	counts := make(map[string]int64, len(rows))
	first := ""
	for _, row := range rows {
		day := normalizeDay(row.Day)
		if day == "" {
			continue
		}
		counts[day] += row.Views
		if first == "" || day < first {
			first = day
		}
	}

	if !w.Bounded() && first != "" {
		if from, err := time.Parse(dayLayout, first); err == nil {
			w.From = from
		}
	}

	series := make([]DailyViews, 0, len(counts))
	for _, d := range w.Days() {
		key := d.Format(dayLayout)
		series = append(series, DailyViews{Date: key, Views: counts[key]})
	}
	return series
}

// normalizeDay accepts DATE() output from either sqlite ("2006-01-02") or
// MySQL scanned through parseTime ("2006-01-02T00:00:00Z").
func normalizeDay(s string) string {
	if len(s) < len(dayLayout) {
		return ""
	}
	return s[:len(dayLayout)]
}

// rankLabels merges empty labels into fallback and orders by count desc, label asc.
func rankLabels(rows []labelCount, fallback string) []NamedCount {
	merged := make(map[string]int64, len(rows))
	for _, row := range rows {
		name := row.Name
		if name == "" {
			name = fallback
		}
		merged[name] += row.Value
	}
	out := make([]NamedCount, 0, len(merged))
	for name, value := range merged {
		out = append(out, NamedCount{Name: name, Value: value})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].Name < out[j].Name
	})
	return out
}
