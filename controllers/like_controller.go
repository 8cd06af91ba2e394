package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/aiblog/models"
	"github.com/cppla/aiblog/utils"
)

// LikeController toggles and reports blog likes.
type LikeController struct {
	db *gorm.DB
}

// NewLikeController creates a new LikeController instance.
func NewLikeController(db *gorm.DB) *LikeController {
	return &LikeController{db: db}
}

// ToggleLike likes the blog for the current user, or removes an existing like.
func (l *LikeController) ToggleLike(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40112, "unauthorized")
		return
	}
	blog, ok := loadPublishedBlog(ctx, l.db)
	if !ok {
		return
	}

	liked := false
	err := l.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("blog_id = ? AND user_id = ?", blog.ID, userID).Delete(&models.Like{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}
		liked = true
		like := models.Like{BlogID: blog.ID, UserID: userID}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Omit("Blog").Create(&like).Error
	})
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50040, "failed to update like")
		return
	}

	var count int64
	l.db.Model(&models.Like{}).Where("blog_id = ?", blog.ID).Count(&count)
	utils.Success(ctx, gin.H{"liked": liked, "likes": count})
}

// GetLikes returns the like count and whether the optional caller liked the blog.
func (l *LikeController) GetLikes(ctx *gin.Context) {
	blog, ok := loadPublishedBlog(ctx, l.db)
	if !ok {
		return
	}

	var count int64
	if err := l.db.Model(&models.Like{}).Where("blog_id = ?", blog.ID).Count(&count).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50041, "failed to count likes")
		return
	}

	likedByMe := false
	if userID, ok := getUserID(ctx); ok {
		var mine int64
		l.db.Model(&models.Like{}).Where("blog_id = ? AND user_id = ?", blog.ID, userID).Count(&mine)
		likedByMe = mine > 0
	}
	utils.Success(ctx, gin.H{"likes": count, "liked_by_me": likedByMe})
}
