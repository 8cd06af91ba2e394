package controllers

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cppla/aiblog/config"
	"github.com/cppla/aiblog/metrics"
	"github.com/cppla/aiblog/middleware"
	"github.com/cppla/aiblog/models"
	"github.com/cppla/aiblog/utils"
)

const maxContactMessageRunes = 5000

// ContactController handles the public contact form and newsletter.
type ContactController struct {
	db *gorm.DB
}

// NewContactController creates a new ContactController instance.
func NewContactController(db *gorm.DB) *ContactController {
	return &ContactController{db: db}
}

// SubmitContact stores a contact message and notifies the site owner.
func (c *ContactController) SubmitContact(ctx *gin.Context) {
	var req struct {
		Name    string `json:"name" binding:"required"`
		Email   string `json:"email" binding:"required,email,max=255"`
		Subject string `json:"subject"`
		Message string `json:"message" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		if utils.InvalidField(err) != "" {
			utils.Error(ctx, http.StatusBadRequest, 40081, "name, a valid email and a message are required")
			return
		}
		utils.Error(ctx, http.StatusBadRequest, 40080, "invalid request payload")
		return
	}

	name := utils.TruncateRunes(utils.SanitizeText(req.Name), 128)
	email := strings.ToLower(req.Email)
	message := utils.SanitizeText(req.Message)
	if name == "" || message == "" {
		utils.Error(ctx, http.StatusBadRequest, 40081, "name, a valid email and a message are required")
		return
	}
	if len([]rune(message)) > maxContactMessageRunes {
		utils.Error(ctx, http.StatusBadRequest, 40082, "message is too long")
		return
	}

	ip := middleware.ClientIP(ctx)
	if !c.guard(ctx, "contact", ip) {
		return
	}

	msg := models.ContactMessage{
		Name:      name,
		Email:     email,
		Subject:   utils.TruncateRunes(utils.SanitizeText(req.Subject), 255),
		Message:   message,
		IPAddress: ip,
	}
	if err := c.db.Create(&msg).Error; err != nil {
		utils.Sugar.Errorw("contact: store message", "error", err)
		utils.Error(ctx, http.StatusInternalServerError, 50080, "failed to submit message")
		return
	}
	utils.FormDailyIncrement(ctx.Request.Context(), ip)
	metrics.CountForm("contact", "accepted")

	title, body := utils.ContactNotification(msg.Name, msg.Email, msg.Subject, msg.Message)
	utils.SendMailAsync(config.Get().ContactNotifyEmail, title, body)

	utils.Created(ctx, gin.H{"id": msg.ID})
}

// Subscribe adds an email to the newsletter, reactivating a previous unsubscribe.
func (c *ContactController) Subscribe(ctx *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email,max=255"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		if utils.InvalidField(err) == "Email" {
			utils.Error(ctx, http.StatusBadRequest, 40084, "invalid email address")
			return
		}
		utils.Error(ctx, http.StatusBadRequest, 40083, "invalid request payload")
		return
	}
	email := strings.ToLower(req.Email)

	ip := middleware.ClientIP(ctx)
	if !c.guard(ctx, "newsletter", ip) {
		return
	}

	now := time.Now().UTC()
	var sub models.NewsletterSubscriber
	err := c.db.Where("email = ?", email).First(&sub).Error
	switch {
	case err == nil:
		if sub.Status == models.SubscriberActive {
			utils.Success(ctx, gin.H{"subscribed": true})
			return
		}
		sub.Status = models.SubscriberActive
		sub.SubscribedAt = now
		sub.UnsubscribedAt = nil
		err = c.db.Save(&sub).Error
	case isNotFound(err):
		sub = models.NewsletterSubscriber{
			Email:        email,
			Status:       models.SubscriberActive,
			Token:        uuid.NewString(),
			SubscribedAt: now,
		}
		err = c.db.Create(&sub).Error
	}
	if err != nil {
		utils.Sugar.Errorw("newsletter: subscribe", "error", err)
		utils.Error(ctx, http.StatusInternalServerError, 50081, "failed to subscribe")
		return
	}
	utils.FormDailyIncrement(ctx.Request.Context(), ip)
	metrics.CountForm("newsletter", "accepted")

	title, body := utils.NewsletterWelcome(sub.Token)
	utils.SendMailAsync(sub.Email, title, body)

	utils.Success(ctx, gin.H{"subscribed": true})
}

// Unsubscribe deactivates a subscription identified by its token or email.
func (c *ContactController) Unsubscribe(ctx *gin.Context) {
	var req struct {
		Token string `json:"token"`
		Email string `json:"email" binding:"omitempty,email,max=255"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		if utils.InvalidField(err) == "Email" {
			utils.Error(ctx, http.StatusBadRequest, 40084, "invalid email address")
			return
		}
		utils.Error(ctx, http.StatusBadRequest, 40083, "invalid request payload")
		return
	}
	if req.Token == "" {
		req.Token = ctx.Query("token")
	}

	query := c.db.Model(&models.NewsletterSubscriber{})
	switch {
	case strings.TrimSpace(req.Token) != "":
		query = query.Where("token = ?", strings.TrimSpace(req.Token))
	case req.Email != "":
		query = query.Where("email = ?", strings.ToLower(req.Email))
	default:
		utils.Error(ctx, http.StatusBadRequest, 40085, "token or email is required")
		return
	}

	now := time.Now().UTC()
	res := query.Updates(map[string]interface{}{
		"status":          models.SubscriberUnsubscribed,
		"unsubscribed_at": now,
	})
	if res.Error != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50082, "failed to unsubscribe")
		return
	}
	if res.RowsAffected == 0 {
		utils.Error(ctx, http.StatusNotFound, 40480, "subscription not found")
		return
	}
	utils.Success(ctx, gin.H{"unsubscribed": true})
}

// ListContacts returns contact messages, newest first. Admin only.
func (c *ContactController) ListContacts(ctx *gin.Context) {
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))

	var total int64
	if err := c.db.Model(&models.ContactMessage{}).Count(&total).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50083, "failed to count messages")
		return
	}
	items := []models.ContactMessage{}
	if err := c.db.Order("created_at DESC").Order("id DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&items).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50084, "failed to list messages")
		return
	}
	utils.Paged(ctx, items, total, page, pageSize)
}

// guard applies the per-IP cooldown and daily cap and answers 429 itself.
func (c *ContactController) guard(ctx *gin.Context, form, ip string) bool {
	if !utils.FormCooldownTry(ctx.Request.Context(), form, ip) {
		metrics.CountForm(form, "throttled")
		utils.Error(ctx, http.StatusTooManyRequests, 42910, "too many requests, try again later")
		return false
	}
	if !utils.FormDailyLimitCheck(ctx.Request.Context(), ip) {
		metrics.CountForm(form, "capped")
		utils.Error(ctx, http.StatusTooManyRequests, 42921, "daily submission limit reached")
		return false
	}
	return true
}
