package analytics_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/cppla/aiblog/analytics"
	"github.com/cppla/aiblog/models"
	"github.com/cppla/aiblog/testsupport"
)

const iphoneUA = "Mozilla/5.0 (iPhone) Mobile Safari"

type mapGeo map[string]string

func (g mapGeo) Lookup(_ context.Context, ip string) (string, string, error) {
	return g[ip], "", nil
}

type reportFixture struct {
	db       *gorm.DB
	tracker  *analytics.Tracker
	clock    *fakeClock
	reporter *analytics.Reporter
	author   models.User
	blog     models.Blog
}

func day(d, h int) time.Time {
	return time.Date(2026, 3, d, h, 0, 0, 0, time.UTC)
}

func newReportFixture(t *testing.T) *reportFixture {
	t.Helper()
	db := testsupport.SetupTestDB(t)
	author := testsupport.CreateTestUser(t, db, "author", "secret123")
	clock := newFakeClock(day(10, 12))
	geo := mapGeo{"10.0.0.2": "Germany", "10.0.0.3": "France"}
	return &reportFixture{
		db:       db,
		tracker:  analytics.NewTracker(db, analytics.WithClock(clock.Now), analytics.WithGeoResolver(geo)),
		clock:    clock,
		reporter: analytics.NewReporter(db, clock.Now),
		author:   author,
		blog:     testsupport.CreateTestBlog(t, db, author.ID, "Report Me"),
	}
}

func (f *reportFixture) view(t *testing.T, blogID uint, at time.Time, in analytics.ViewInput) {
	t.Helper()
	f.clock.Set(at)
	in.BlogID = blogID
	_, err := f.tracker.Track(context.Background(), in)
	require.NoError(t, err)
}

// seed records five views of f.blog between March 2 and March 10 plus
// engagement inside and outside the last seven days.
func (f *reportFixture) seed(t *testing.T) {
	t.Helper()
	f.view(t, f.blog.ID, day(2, 10), analytics.ViewInput{IP: "10.0.0.1"})
	f.view(t, f.blog.ID, day(4, 0), analytics.ViewInput{IP: "10.0.0.1"})
	f.view(t, f.blog.ID, day(9, 8), analytics.ViewInput{IP: "10.0.0.2", UserAgent: chromeUA, Referrer: "https://www.google.com/search"})
	f.view(t, f.blog.ID, day(9, 9), analytics.ViewInput{IP: "10.0.0.3", UserAgent: iphoneUA, Referrer: "https://www.google.com/"})
	f.view(t, f.blog.ID, day(10, 11), analytics.ViewInput{IP: "10.0.0.2", UserAgent: chromeUA, Referrer: "https://bing.com/"})
	f.clock.Set(day(10, 12))

	require.NoError(t, f.db.Create(&models.Comment{BlogID: f.blog.ID, UserID: f.author.ID, Content: "old", CreatedAt: day(1, 9)}).Error)
	require.NoError(t, f.db.Create(&models.Comment{BlogID: f.blog.ID, UserID: f.author.ID, Content: "new", CreatedAt: day(9, 9)}).Error)
	require.NoError(t, f.db.Create(&models.Like{BlogID: f.blog.ID, UserID: f.author.ID, CreatedAt: day(8, 9)}).Error)
}

func TestBlogReportSevenDays(t *testing.T) {
	f := newReportFixture(t)
	f.seed(t)

	report, err := f.reporter.BlogReport(context.Background(), f.blog.ID, analytics.Filter7d)
	require.NoError(t, err)

	assert.Equal(t, analytics.Overview{
		TotalViews:     4,
		UniqueViews:    3,
		Comments:       1,
		Likes:          1,
		EngagementRate: 0.5,
	}, report.Overview)

	assert.Equal(t, []analytics.DailyViews{
		{Date: "2026-03-04", Views: 1},
		{Date: "2026-03-05", Views: 0},
		{Date: "2026-03-06", Views: 0},
		{Date: "2026-03-07", Views: 0},
		{Date: "2026-03-08", Views: 0},
		{Date: "2026-03-09", Views: 2},
		{Date: "2026-03-10", Views: 1},
	}, report.ViewsOverTime)

	assert.Equal(t, []analytics.NamedCount{
		{Name: "www.google.com", Value: 2},
		{Name: "Direct", Value: 1},
		{Name: "bing.com", Value: 1},
	}, report.ReferralData)
	assert.Equal(t, []analytics.NamedCount{{Name: "Desktop", Value: 3}, {Name: "Mobile", Value: 1}}, report.DeviceData)
	assert.Equal(t, []analytics.NamedCount{
		{Name: "Chrome", Value: 2},
		{Name: "Other", Value: 1},
		{Name: "Safari", Value: 1},
	}, report.BrowserData)
	assert.Equal(t, []analytics.NamedCount{{Name: "Other", Value: 2}, {Name: "Windows", Value: 2}}, report.OSData)
	assert.Equal(t, []analytics.NamedCount{
		{Name: "Germany", Value: 2},
		{Name: "France", Value: 1},
		{Name: "Unknown", Value: 1},
	}, report.CountryData)

	// summary is all-time regardless of the window
	assert.Equal(t, int64(5), report.Summary.TotalViews)
	assert.Equal(t, int64(2), report.Summary.ReferralBreakdown["www.google.com"])
}

func TestBlogReportTotalStartsAtFirstView(t *testing.T) {
	f := newReportFixture(t)
	f.seed(t)

	report, err := f.reporter.BlogReport(context.Background(), f.blog.ID, analytics.FilterTotal)
	require.NoError(t, err)

	assert.Equal(t, int64(5), report.Overview.TotalViews)
	assert.Equal(t, int64(3), report.Overview.UniqueViews)
	assert.Equal(t, int64(2), report.Overview.Comments)

	// repeat visitors more than UniqueWindow apart count again in the summary
	summary, err := analytics.LoadSummary(context.Background(), f.db, f.blog.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), summary.UniqueViews)

	require.Len(t, report.ViewsOverTime, 9)
	assert.Equal(t, analytics.DailyViews{Date: "2026-03-02", Views: 1}, report.ViewsOverTime[0])
	assert.Equal(t, analytics.DailyViews{Date: "2026-03-10", Views: 1}, report.ViewsOverTime[8])
}

func TestBlogReportSeriesLength(t *testing.T) {
	f := newReportFixture(t)

	for _, tt := range []struct {
		filter analytics.TimeFilter
		want   int
	}{
		{analytics.Filter7d, 7},
		{analytics.Filter30d, 30},
		{analytics.Filter90d, 90},
		{analytics.Filter1y, 365},
	} {
		t.Run(string(tt.filter), func(t *testing.T) {
			report, err := f.reporter.BlogReport(context.Background(), f.blog.ID, tt.filter)
			require.NoError(t, err)
			require.Len(t, report.ViewsOverTime, tt.want)
			assert.Equal(t, "2026-03-10", report.ViewsOverTime[tt.want-1].Date)
		})
	}
}

func TestBlogReportUnknownBlogIsZeroed(t *testing.T) {
	f := newReportFixture(t)

	report, err := f.reporter.BlogReport(context.Background(), 9999, analytics.Filter7d)
	require.NoError(t, err)

	assert.Equal(t, analytics.Overview{}, report.Overview)
	require.Len(t, report.ViewsOverTime, 7)
	for _, point := range report.ViewsOverTime {
		assert.Zero(t, point.Views)
	}
	assert.NotNil(t, report.ReferralData)
	assert.Empty(t, report.ReferralData)
	assert.Empty(t, report.CountryData)
	assert.Zero(t, report.Summary.TotalViews)
	assert.NotNil(t, report.Summary.DeviceBreakdown)
}

func TestBlogReportTotalWithoutViewsHasEmptySeries(t *testing.T) {
	f := newReportFixture(t)

	report, err := f.reporter.BlogReport(context.Background(), f.blog.ID, analytics.FilterTotal)
	require.NoError(t, err)
	assert.NotNil(t, report.ViewsOverTime)
	assert.Empty(t, report.ViewsOverTime)
}

func TestBlogReportMalformedFilterFallsBackToTotal(t *testing.T) {
	f := newReportFixture(t)
	f.seed(t)

	report, err := f.reporter.BlogReport(context.Background(), f.blog.ID, analytics.TimeFilter("last-week"))
	require.NoError(t, err)
	assert.Equal(t, analytics.FilterTotal, report.TimeFilter)
	assert.Equal(t, int64(5), report.Overview.TotalViews)
}

func TestBlogReportEngagementWithoutViews(t *testing.T) {
	f := newReportFixture(t)
	require.NoError(t, f.db.Create(&models.Comment{BlogID: f.blog.ID, UserID: f.author.ID, Content: "first!", CreatedAt: day(10, 9)}).Error)

	report, err := f.reporter.BlogReport(context.Background(), f.blog.ID, analytics.Filter7d)
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.Overview.Comments)
	assert.InDelta(t, 1.0, report.Overview.EngagementRate, 1e-9)
}

func TestUserReport(t *testing.T) {
	f := newReportFixture(t)
	f.seed(t)
	second := testsupport.CreateTestBlog(t, f.db, f.author.ID, "Second Post")
	f.view(t, second.ID, day(10, 10), analytics.ViewInput{IP: "10.0.0.7"})

	stranger := testsupport.CreateTestUser(t, f.db, "stranger", "secret123")
	theirs := testsupport.CreateTestBlog(t, f.db, stranger.ID, "Not Mine")
	f.view(t, theirs.ID, day(10, 10), analytics.ViewInput{IP: "10.0.0.8"})
	f.clock.Set(day(10, 12))

	report, err := f.reporter.UserReport(context.Background(), f.author.ID, analytics.Filter7d)
	require.NoError(t, err)

	assert.Equal(t, int64(2), report.TotalBlogs)
	assert.Equal(t, int64(5), report.TotalViews)
	assert.Equal(t, int64(4), report.TotalUniqueViews)
	assert.Equal(t, int64(1), report.TotalComments)
	assert.Equal(t, int64(1), report.TotalLikes)
	require.Len(t, report.Blogs, 2)
	assert.Equal(t, f.blog.ID, report.Blogs[0].BlogID)
	assert.Equal(t, int64(4), report.Blogs[0].Views)
	assert.Equal(t, second.ID, report.Blogs[1].BlogID)
	assert.Equal(t, "Second Post", report.Blogs[1].Title)
	assert.Equal(t, int64(1), report.Blogs[1].Views)
}

func TestUserReportWithoutBlogs(t *testing.T) {
	f := newReportFixture(t)
	loner := testsupport.CreateTestUser(t, f.db, "loner", "secret123")

	report, err := f.reporter.UserReport(context.Background(), loner.ID, analytics.FilterTotal)
	require.NoError(t, err)
	assert.Zero(t, report.TotalBlogs)
	assert.NotNil(t, report.Blogs)
	assert.Empty(t, report.Blogs)
}
