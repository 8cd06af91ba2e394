package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/aiblog/analytics"
	"github.com/cppla/aiblog/models"
	"github.com/cppla/aiblog/utils"
)

// StatsController provides site-wide counters.
type StatsController struct {
	db  *gorm.DB
	now func() time.Time
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(db *gorm.DB) *StatsController {
	return &StatsController{db: db, now: time.Now}
}

// GetStats returns aggregate statistics for the site.
func (s *StatsController) GetStats(ctx *gin.Context) {
	var userCount int64
	var blogCount int64
	var commentCount int64
	var totalViews int64
	var viewsToday int64

	if err := s.db.Model(&models.User{}).Count(&userCount).Error; err != nil {
		// Fallback to 0 instead of failing the whole endpoint
		userCount = 0
	}

	if err := s.db.Model(&models.Blog{}).Where("status = ?", models.BlogStatusPublished).Count(&blogCount).Error; err != nil {
		blogCount = 0
	}

	if err := s.db.Model(&models.Comment{}).Count(&commentCount).Error; err != nil {
		commentCount = 0
	}

	if err := s.db.Model(&models.BlogAnalytics{}).
		Select("COALESCE(SUM(total_views),0)").
		Scan(&totalViews).Error; err != nil {
		totalViews = 0
	}

	since := s.now().UTC().Truncate(24 * time.Hour)
	if err := s.db.Model(&models.BlogView{}).Where("created_at >= ?", since).Count(&viewsToday).Error; err != nil {
		viewsToday = 0
	}

	utils.Success(ctx, gin.H{
		"user_count":    userCount,
		"blog_count":    blogCount,
		"comment_count": commentCount,
		"total_views":   totalViews,
		"views_today":   viewsToday,
	})
}

// GetBlogStats returns the public counters shown under a blog.
func (s *StatsController) GetBlogStats(ctx *gin.Context) {
	blogID, ok := parseID(ctx, "blogId")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40060, "invalid blog id")
		return
	}

	summary, err := analytics.LoadSummary(ctx.Request.Context(), s.db, blogID)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50060, "failed to load blog stats")
		return
	}

	var commentsCount int64
	if err := s.db.Model(&models.Comment{}).Where("blog_id = ?", blogID).Count(&commentsCount).Error; err != nil {
		commentsCount = 0
	}
	var likesCount int64
	if err := s.db.Model(&models.Like{}).Where("blog_id = ?", blogID).Count(&likesCount).Error; err != nil {
		likesCount = 0
	}

	utils.Success(ctx, gin.H{
		"views":          summary.TotalViews,
		"unique_views":   summary.UniqueViews,
		"comments_count": commentsCount,
		"likes_count":    likesCount,
	})
}
