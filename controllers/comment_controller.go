package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/aiblog/middleware"
	"github.com/cppla/aiblog/models"
	"github.com/cppla/aiblog/utils"
)

const maxCommentRunes = 2000

// CommentController manages blog comments.
type CommentController struct {
	db *gorm.DB
}

// NewCommentController creates a new CommentController instance.
func NewCommentController(db *gorm.DB) *CommentController {
	return &CommentController{db: db}
}

// ListComments returns the comments of a published blog, oldest first.
func (c *CommentController) ListComments(ctx *gin.Context) {
	blog, ok := c.publishedBlog(ctx)
	if !ok {
		return
	}
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))

	var total int64
	if err := c.db.Model(&models.Comment{}).Where("blog_id = ?", blog.ID).Count(&total).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50030, "failed to count comments")
		return
	}

	comments := []models.Comment{}
	if err := c.db.Preload("User").Where("blog_id = ?", blog.ID).
		Order("created_at ASC").Order("id ASC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&comments).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50031, "failed to list comments")
		return
	}
	utils.Paged(ctx, comments, total, page, pageSize)
}

// CreateComment adds a plain-text comment to a published blog.
func (c *CommentController) CreateComment(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40111, "unauthorized")
		return
	}
	blog, ok := c.publishedBlog(ctx)
	if !ok {
		return
	}

	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40030, "invalid request payload")
		return
	}
	content := utils.SanitizeText(req.Content)
	if content == "" {
		utils.Error(ctx, http.StatusBadRequest, 40031, "comment cannot be empty")
		return
	}
	if len([]rune(content)) > maxCommentRunes {
		utils.Error(ctx, http.StatusBadRequest, 40032, "comment is too long")
		return
	}

	comment := models.Comment{BlogID: blog.ID, UserID: userID, Content: content}
	if err := c.db.Omit("User", "Blog").Create(&comment).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50032, "failed to create comment")
		return
	}
	_ = c.db.First(&comment.User, userID).Error

	utils.Created(ctx, gin.H{"comment": comment})
}

// DeleteComment removes a comment. Only its author or an admin may delete it.
func (c *CommentController) DeleteComment(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40111, "unauthorized")
		return
	}
	id, ok := parseID(ctx, "commentId")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40033, "invalid comment id")
		return
	}

	var comment models.Comment
	if err := c.db.First(&comment, id).Error; err != nil {
		if isNotFound(err) {
			utils.Error(ctx, http.StatusNotFound, 40430, "comment not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50033, "failed to load comment")
		return
	}
	if comment.UserID != userID && !middleware.IsAdmin(ctx) {
		utils.Error(ctx, http.StatusForbidden, 40330, "you are not allowed to delete this comment")
		return
	}

	if err := c.db.Delete(&models.Comment{}, comment.ID).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50034, "failed to delete comment")
		return
	}
	utils.Success(ctx, gin.H{"deleted": true})
}

func (c *CommentController) publishedBlog(ctx *gin.Context) (models.Blog, bool) {
	return loadPublishedBlog(ctx, c.db)
}

// loadPublishedBlog resolves the numeric :blogId of a published blog and
// answers 400/404 itself when that fails.
func loadPublishedBlog(ctx *gin.Context, db *gorm.DB) (models.Blog, bool) {
	var blog models.Blog
	id, ok := parseID(ctx, "blogId")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40025, "invalid blog id")
		return blog, false
	}
	if err := db.Where("id = ? AND status = ?", id, models.BlogStatusPublished).First(&blog).Error; err != nil {
		if isNotFound(err) {
			utils.Error(ctx, http.StatusNotFound, 40420, "blog not found")
		} else {
			utils.Error(ctx, http.StatusInternalServerError, 50025, "failed to load blog")
		}
		return blog, false
	}
	return blog, true
}
