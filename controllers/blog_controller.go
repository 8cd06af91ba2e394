package controllers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/aiblog/analytics"
	"github.com/cppla/aiblog/middleware"
	"github.com/cppla/aiblog/models"
	"github.com/cppla/aiblog/utils"
)

const maxExcerptRunes = 280

// BlogController manages CRUD operations for blogs.
type BlogController struct {
	db *gorm.DB
}

// NewBlogController creates a new BlogController instance.
func NewBlogController(db *gorm.DB) *BlogController {
	return &BlogController{db: db}
}

type blogRequest struct {
	Title      *string  `json:"title"`
	Content    *string  `json:"content"`
	Excerpt    *string  `json:"excerpt"`
	CoverImage *string  `json:"cover_image"`
	Tags       []string `json:"tags"`
	Status     *string  `json:"status"`
}

// CreateBlog stores a new blog for the authenticated author.
func (b *BlogController) CreateBlog(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var req blogRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}
	if req.Title == nil || req.Content == nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "title and content are required")
		return
	}

	title := utils.SanitizeText(*req.Title)
	if title == "" {
		utils.Error(ctx, http.StatusBadRequest, 40021, "title cannot be empty")
		return
	}
	content := utils.Sanitize(*req.Content)
	if strings.TrimSpace(content) == "" {
		utils.Error(ctx, http.StatusBadRequest, 40022, "content cannot be empty")
		return
	}

	status := models.BlogStatusDraft
	if req.Status != nil {
		s, ok := parseBlogStatus(*req.Status)
		if !ok {
			utils.Error(ctx, http.StatusBadRequest, 40023, "status must be draft or published")
			return
		}
		status = s
	}

	slug, err := b.uniqueSlug(title)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50020, "failed to create blog")
		return
	}

	blog := models.Blog{
		UserID:  userID,
		Title:   utils.TruncateRunes(title, 255),
		Slug:    slug,
		Content: content,
		Tags:    splitTags(req.Tags),
		Status:  status,
	}
	if req.CoverImage != nil {
		blog.CoverImage = utils.TruncateRunes(strings.TrimSpace(*req.CoverImage), 512)
	}
	blog.Excerpt = excerptOf(req.Excerpt, content)
	if status == models.BlogStatusPublished {
		now := time.Now().UTC()
		blog.PublishedAt = &now
	}

	err = b.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("User").Create(&blog).Error; err != nil {
			return err
		}
		return analytics.EnsureSummary(ctx.Request.Context(), tx, blog.ID)
	})
	if err != nil {
		utils.Sugar.Errorw("create blog failed", "user_id", userID, "error", err)
		utils.Error(ctx, http.StatusInternalServerError, 50020, "failed to create blog")
		return
	}

	b.invalidate(ctx, userID)
	utils.Created(ctx, gin.H{"blog": blog})
}

// ListBlogs returns paginated published blogs including author information.
func (b *BlogController) ListBlogs(ctx *gin.Context) {
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))
	search := strings.TrimSpace(ctx.Query("search"))
	tag := strings.ToLower(strings.TrimSpace(ctx.Query("tag")))

	// Cache tag/home lists only; search terms would explode the key space
	cacheKey := ""
	if search == "" {
		cacheKey = utils.CacheKey("blogs", "list", "tag="+tag, "page="+strconv.Itoa(page), "size="+strconv.Itoa(pageSize))
		var cached utils.Page
		if utils.CacheGetJSON(ctx.Request.Context(), cacheKey, &cached) {
			utils.Success(ctx, cached)
			return
		}
	}

	filter := func(db *gorm.DB) *gorm.DB {
		db = db.Where("status = ?", models.BlogStatusPublished)
		if search != "" {
			like := "%" + search + "%"
			db = db.Where("title LIKE ? OR content LIKE ?", like, like)
		}
		if tag != "" {
			db = whereTag(db, tag)
		}
		return db
	}

	var total int64
	if err := b.db.Model(&models.Blog{}).Scopes(filter).Count(&total).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50021, "failed to count blogs")
		return
	}

	blogs := []models.Blog{}
	if err := b.db.Scopes(filter).Preload("User").
		Order("published_at DESC").Order("id DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&blogs).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50022, "failed to list blogs")
		return
	}

	payload := utils.Page{Items: blogs, Total: total, Page: page, PageSize: pageSize}
	if cacheKey != "" {
		utils.CacheSetJSON(ctx.Request.Context(), cacheKey, payload, time.Minute)
	}
	utils.Success(ctx, payload)
}

// ListMyBlogs returns every blog of the current user, drafts included.
func (b *BlogController) ListMyBlogs(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))

	status, byStatus := parseBlogStatus(ctx.Query("status"))
	filter := func(db *gorm.DB) *gorm.DB {
		db = db.Where("user_id = ?", userID)
		if byStatus {
			db = db.Where("status = ?", status)
		}
		return db
	}

	var total int64
	if err := b.db.Model(&models.Blog{}).Scopes(filter).Count(&total).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50023, "failed to count blogs")
		return
	}
	blogs := []models.Blog{}
	if err := b.db.Scopes(filter).Order("created_at DESC").Order("id DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&blogs).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50024, "failed to list blogs")
		return
	}
	utils.Paged(ctx, blogs, total, page, pageSize)
}

// GetBlog loads a blog by id or slug. Drafts are visible to their author and admins only.
func (b *BlogController) GetBlog(ctx *gin.Context) {
	blog, err := b.findBlog(ctx.Param("blogId"))
	if err != nil {
		if isNotFound(err) {
			utils.Error(ctx, http.StatusNotFound, 40420, "blog not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50025, "failed to load blog")
		return
	}

	if !blog.IsPublished() && !b.canManage(ctx, blog) {
		utils.Error(ctx, http.StatusNotFound, 40420, "blog not found")
		return
	}

	utils.Success(ctx, gin.H{"blog": blog})
}

// UpdateBlog edits a blog. Only the author or an admin may update it.
func (b *BlogController) UpdateBlog(ctx *gin.Context) {
	blog, ok := b.loadManaged(ctx)
	if !ok {
		return
	}

	var req blogRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40024, "invalid request payload")
		return
	}

	if req.Title != nil {
		title := utils.SanitizeText(*req.Title)
		if title == "" {
			utils.Error(ctx, http.StatusBadRequest, 40021, "title cannot be empty")
			return
		}
		blog.Title = utils.TruncateRunes(title, 255)
	}
	if req.Content != nil {
		content := utils.Sanitize(*req.Content)
		if strings.TrimSpace(content) == "" {
			utils.Error(ctx, http.StatusBadRequest, 40022, "content cannot be empty")
			return
		}
		blog.Content = content
		if req.Excerpt == nil {
			blog.Excerpt = excerptOf(nil, content)
		}
	}
	if req.Excerpt != nil {
		blog.Excerpt = excerptOf(req.Excerpt, blog.Content)
	}
	if req.CoverImage != nil {
		blog.CoverImage = utils.TruncateRunes(strings.TrimSpace(*req.CoverImage), 512)
	}
	if req.Tags != nil {
		blog.Tags = splitTags(req.Tags)
	}
	if req.Status != nil {
		status, ok := parseBlogStatus(*req.Status)
		if !ok {
			utils.Error(ctx, http.StatusBadRequest, 40023, "status must be draft or published")
			return
		}
		if status == models.BlogStatusPublished && blog.PublishedAt == nil {
			now := time.Now().UTC()
			blog.PublishedAt = &now
		}
		blog.Status = status
	}

	if err := b.db.Omit("User").Save(&blog).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50026, "failed to update blog")
		return
	}

	b.invalidate(ctx, blog.UserID)
	utils.Success(ctx, gin.H{"blog": blog})
}

// DeleteBlog removes a blog together with its comments, likes and analytics.
func (b *BlogController) DeleteBlog(ctx *gin.Context) {
	blog, ok := b.loadManaged(ctx)
	if !ok {
		return
	}

	err := b.db.Transaction(func(tx *gorm.DB) error {
		for _, m := range []interface{}{
			&models.Comment{}, &models.Like{}, &models.BlogView{},
			&models.BlogAnalyticsBreakdown{}, &models.BlogAnalytics{},
		} {
			if err := tx.Where("blog_id = ?", blog.ID).Delete(m).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.Blog{}, blog.ID).Error
	})
	if err != nil {
		utils.Sugar.Errorw("delete blog failed", "blog_id", blog.ID, "error", err)
		utils.Error(ctx, http.StatusInternalServerError, 50027, "failed to delete blog")
		return
	}

	b.invalidate(ctx, blog.UserID)
	utils.Success(ctx, gin.H{"deleted": true})
}

// loadManaged resolves :blogId and verifies the caller may modify it,
// writing the error response itself when not.
func (b *BlogController) loadManaged(ctx *gin.Context) (models.Blog, bool) {
	blog, err := b.findBlog(ctx.Param("blogId"))
	if err != nil {
		if isNotFound(err) {
			utils.Error(ctx, http.StatusNotFound, 40420, "blog not found")
		} else {
			utils.Error(ctx, http.StatusInternalServerError, 50025, "failed to load blog")
		}
		return blog, false
	}
	if !b.canManage(ctx, blog) {
		utils.Error(ctx, http.StatusForbidden, 40320, "you are not allowed to modify this blog")
		return blog, false
	}
	return blog, true
}

func (b *BlogController) canManage(ctx *gin.Context, blog models.Blog) bool {
	userID, ok := getUserID(ctx)
	if !ok {
		return false
	}
	return userID == blog.UserID || middleware.IsAdmin(ctx)
}

// findBlog looks the key up as an id first and as a slug second.
func (b *BlogController) findBlog(key string) (models.Blog, error) {
	var blog models.Blog
	key = strings.TrimSpace(key)
	if id, err := strconv.ParseUint(key, 10, 64); err == nil && id > 0 {
		err := b.db.Preload("User").First(&blog, uint(id)).Error
		if err == nil || !isNotFound(err) {
			return blog, err
		}
	}
	err := b.db.Preload("User").Where("slug = ?", key).First(&blog).Error
	return blog, err
}

func (b *BlogController) uniqueSlug(title string) (string, error) {
	base := utils.Slugify(title)
	slug := base
	for i := 2; ; i++ {
		var n int64
		if err := b.db.Model(&models.Blog{}).Where("slug = ?", slug).Count(&n).Error; err != nil {
			return "", err
		}
		if n == 0 {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, i)
	}
}

func (b *BlogController) invalidate(ctx *gin.Context, userID uint) {
	utils.InvalidateByPrefix(ctx.Request.Context(), utils.CacheKey("blogs", "list"))
	utils.InvalidateByPrefix(ctx.Request.Context(), utils.CacheKey("user", uintKey(userID)))
}

func parseBlogStatus(s string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case models.BlogStatusDraft:
		return models.BlogStatusDraft, true
	case models.BlogStatusPublished:
		return models.BlogStatusPublished, true
	default:
		return "", false
	}
}

// whereTag matches one entry of the comma separated tag column.
func whereTag(q *gorm.DB, tag string) *gorm.DB {
	return q.Where("(tags = ? OR tags LIKE ? OR tags LIKE ? OR tags LIKE ?)",
		tag, tag+",%", "%,"+tag, "%,"+tag+",%")
}

func excerptOf(explicit *string, content string) string {
	if explicit != nil {
		return utils.TruncateRunes(utils.SanitizeText(*explicit), maxExcerptRunes)
	}
	text := strings.Join(strings.Fields(utils.SanitizeText(content)), " ")
	return utils.TruncateRunes(text, maxExcerptRunes)
}
