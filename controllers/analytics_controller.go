package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/aiblog/analytics"
	"github.com/cppla/aiblog/metrics"
	"github.com/cppla/aiblog/middleware"
	"github.com/cppla/aiblog/models"
	"github.com/cppla/aiblog/utils"
)

const (
	trackTimeout   = 3 * time.Second
	reportCacheTTL = time.Minute
)

// AnalyticsController records blog views and serves author analytics.
type AnalyticsController struct {
	db       *gorm.DB
	tracker  *analytics.Tracker
	reporter *analytics.Reporter
}

// NewAnalyticsController wires the tracker and reporter on db. geo may be nil.
func NewAnalyticsController(db *gorm.DB, geo analytics.GeoResolver) *AnalyticsController {
	var opts []analytics.TrackerOption
	if geo != nil {
		opts = append(opts, analytics.WithGeoResolver(geo))
	}
	return &AnalyticsController{
		db:       db,
		tracker:  analytics.NewTracker(db, opts...),
		reporter: analytics.NewReporter(db, nil),
	}
}

// TrackView records one view of a blog. Failures are logged and never surface
// to the reader; the response is always a success.
func (a *AnalyticsController) TrackView(ctx *gin.Context) {
	defer utils.Success(ctx, gin.H{"success": true})

	blogID, ok := parseID(ctx, "blogId")
	if !ok {
		return
	}
	if middleware.Throttled(ctx) {
		metrics.CountTrackThrottled()
		return
	}

	c, cancel := context.WithTimeout(ctx.Request.Context(), trackTimeout)
	defer cancel()

	var exists int64
	if err := a.db.WithContext(c).Model(&models.Blog{}).Where("id = ?", blogID).Count(&exists).Error; err != nil || exists == 0 {
		if err != nil {
			metrics.CountTrackFailure()
			utils.Sugar.Warnw("track view: blog lookup failed", "blog_id", blogID, "error", err)
		}
		return
	}

	res, err := a.tracker.Track(c, analytics.ViewInput{
		BlogID:    blogID,
		IP:        middleware.ClientIP(ctx),
		UserAgent: ctx.GetHeader("User-Agent"),
		Referrer:  ctx.GetHeader("Referer"),
		UserID:    optionalUserID(ctx),
		SessionID: ctx.GetString(middleware.ContextSessionIDKey),
	})
	if err != nil {
		metrics.CountTrackFailure()
		utils.Sugar.Errorw("track view failed", "blog_id", blogID, "error", err)
		return
	}
	metrics.CountView(res.Unique)
}

// GetBlogAnalytics returns the report of one blog for its author.
// Unknown blogs yield a zeroed report.
func (a *AnalyticsController) GetBlogAnalytics(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40113, "unauthorized")
		return
	}
	blogID, ok := parseID(ctx, "blogId")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40025, "invalid blog id")
		return
	}
	filter := analytics.ParseTimeFilter(ctx.Query("timeFilter"))

	var blog models.Blog
	err := a.db.Select("id", "user_id").First(&blog, blogID).Error
	switch {
	case err == nil:
		if blog.UserID != userID {
			utils.Error(ctx, http.StatusForbidden, 40310, "you can only view analytics of your own blogs")
			return
		}
	case isNotFound(err):
	default:
		utils.Error(ctx, http.StatusInternalServerError, 50050, "failed to load blog")
		return
	}

	start := time.Now()
	key := utils.CacheKey("analytics", "blog", uintKey(blogID), string(filter))
	var cached analytics.BlogReport
	if utils.CacheGetJSON(ctx.Request.Context(), key, &cached) {
		metrics.ObserveReport("blog", true, time.Since(start))
		utils.Success(ctx, cached)
		return
	}

	report, err := a.reporter.BlogReport(ctx.Request.Context(), blogID, filter)
	if err != nil {
		utils.Sugar.Errorw("blog analytics failed", "blog_id", blogID, "filter", filter, "error", err)
		utils.Error(ctx, http.StatusInternalServerError, 50051, "failed to build analytics")
		return
	}
	utils.CacheSetJSON(ctx.Request.Context(), key, report, reportCacheTTL)
	metrics.ObserveReport("blog", false, time.Since(start))
	utils.Success(ctx, report)
}

// GetUserAnalytics returns the rollup over every blog of the current user.
func (a *AnalyticsController) GetUserAnalytics(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40113, "unauthorized")
		return
	}
	filter := analytics.ParseTimeFilter(ctx.Query("timeFilter"))

	start := time.Now()
	key := utils.CacheKey("analytics", "user", uintKey(userID), string(filter))
	var cached analytics.UserReport
	if utils.CacheGetJSON(ctx.Request.Context(), key, &cached) {
		metrics.ObserveReport("user", true, time.Since(start))
		utils.Success(ctx, cached)
		return
	}

	report, err := a.reporter.UserReport(ctx.Request.Context(), userID, filter)
	if err != nil {
		utils.Sugar.Errorw("user analytics failed", "user_id", userID, "filter", filter, "error", err)
		utils.Error(ctx, http.StatusInternalServerError, 50052, "failed to build analytics")
		return
	}
	utils.CacheSetJSON(ctx.Request.Context(), key, report, reportCacheTTL)
	metrics.ObserveReport("user", false, time.Since(start))
	utils.Success(ctx, report)
}
