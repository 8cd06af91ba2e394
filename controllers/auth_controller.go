package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/aiblog/middleware"
	"github.com/cppla/aiblog/metrics"
	"github.com/cppla/aiblog/models"
	"github.com/cppla/aiblog/utils"
)

// AuthController handles account registration, sessions and profiles.
type AuthController struct {
	db *gorm.DB
}

// NewAuthController creates a new AuthController.
func NewAuthController(db *gorm.DB) *AuthController {
	return &AuthController{db: db}
}

// Register creates a local account and returns an access token.
func (a *AuthController) Register(ctx *gin.Context) {
	var req struct {
		Username    string `json:"username" binding:"required,min=3,max=32,username"`
		Email       string `json:"email" binding:"required,email,max=255"`
		Password    string `json:"password" binding:"required"`
		DisplayName string `json:"display_name"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		switch utils.InvalidField(err) {
		case "Username":
			utils.Error(ctx, http.StatusBadRequest, 40002, "username must be 3-32 letters, digits, '-' or '_'")
		case "Email":
			utils.Error(ctx, http.StatusBadRequest, 40003, "invalid email address")
		default:
			utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
		}
		return
	}

	username := req.Username
	email := strings.ToLower(req.Email)
	if err := utils.ValidatePassword(req.Password); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40004, err.Error())
		return
	}

	ip := middleware.ClientIP(ctx)
	if !utils.FormCooldownTry(ctx.Request.Context(), "register", ip) {
		metrics.CountForm("register", "throttled")
		utils.Error(ctx, http.StatusTooManyRequests, 42910, "too many requests, try again later")
		return
	}

	var existing int64
	if err := a.db.Model(&models.User{}).Where("username = ? OR email = ?", username, email).Count(&existing).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50001, "failed to check account")
		return
	}
	if existing > 0 {
		utils.Error(ctx, http.StatusConflict, 40901, "username or email already registered")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50002, "failed to hash password")
		return
	}

	user := models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		DisplayName:  utils.SanitizeText(req.DisplayName),
		Role:         models.RoleUser,
		RegisterIP:   ip,
	}
	if user.DisplayName == "" {
		user.DisplayName = username
	}
	if middleware.IsAdminUsername(username) {
		user.Role = models.RoleAdmin
	}
	if err := a.db.Create(&user).Error; err != nil {
		utils.Sugar.Errorw("register: create user", "username", username, "error", err)
		utils.Error(ctx, http.StatusInternalServerError, 50003, "failed to create user")
		return
	}
	metrics.CountForm("register", "accepted")

	token, err := utils.GenerateToken(user.ID, user.Username, user.Role)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50004, "failed to generate token")
		return
	}

	utils.Created(ctx, gin.H{
		"token": token,
		"user":  userResponse(user),
	})
}

// Login authenticates by username or email.
func (a *AuthController) Login(ctx *gin.Context) {
	type request struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40005, "invalid request payload")
		return
	}

	login := strings.TrimSpace(req.Username)
	var user models.User
	if err := a.db.Where("username = ? OR email = ?", login, strings.ToLower(login)).First(&user).Error; err != nil {
		utils.Error(ctx, http.StatusUnauthorized, 40106, "invalid username or password")
		return
	}

	if !utils.CheckPassword(user.PasswordHash, req.Password) {
		utils.Error(ctx, http.StatusUnauthorized, 40106, "invalid username or password")
		return
	}

	role := user.Role
	if middleware.IsAdminUsername(user.Username) {
		role = models.RoleAdmin
	}
	token, err := utils.GenerateToken(user.ID, user.Username, role)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50004, "failed to generate token")
		return
	}

	utils.Success(ctx, gin.H{
		"token": token,
		"user":  userResponse(user),
	})
}

// Logout revokes the presented token until it would have expired.
func (a *AuthController) Logout(ctx *gin.Context) {
	tokenID := ctx.GetString(middleware.ContextTokenIDKey)
	if tokenID == "" {
		utils.Error(ctx, http.StatusUnauthorized, 40107, "invalid token")
		return
	}
	expiresAt := time.Now().Add(utils.TokenTTL())
	if v, ok := ctx.Get(middleware.ContextTokenExpKey); ok {
		if t, ok := v.(time.Time); ok {
			expiresAt = t
		}
	}
	utils.BlacklistToken(tokenID, expiresAt)
	utils.Success(ctx, gin.H{"logged_out": true})
}

// Me returns the current account.
func (a *AuthController) Me(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	var user models.User
	if err := a.db.First(&user, userID).Error; err != nil {
		if isNotFound(err) {
			utils.Error(ctx, http.StatusNotFound, 40401, "user not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50005, "failed to load user")
		return
	}
	utils.Success(ctx, userResponse(user))
}

// UpdateProfile patches the editable profile fields of the current account.
// Omitted fields are left untouched; an empty string clears the field.
func (a *AuthController) UpdateProfile(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	var req struct {
		Email       *string `json:"email" binding:"omitnil,email,max=255"`
		DisplayName *string `json:"display_name"`
		Bio         *string `json:"bio"`
		AvatarURL   *string `json:"avatar_url"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		if utils.InvalidField(err) == "Email" {
			utils.Error(ctx, http.StatusBadRequest, 40031, "invalid email address")
			return
		}
		utils.Error(ctx, http.StatusBadRequest, 40030, "invalid request payload")
		return
	}

	var user models.User
	if err := a.db.First(&user, userID).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40401, "user not found")
		return
	}

	if req.Email != nil {
		email := strings.ToLower(*req.Email)
		if email != user.Email {
			var taken int64
			a.db.Model(&models.User{}).Where("email = ? AND id <> ?", email, user.ID).Count(&taken)
			if taken > 0 {
				utils.Error(ctx, http.StatusConflict, 40902, "email already registered")
				return
			}
			user.Email = email
		}
	}
	if req.DisplayName != nil {
		user.DisplayName = utils.TruncateRunes(utils.SanitizeText(*req.DisplayName), 128)
	}
	if req.Bio != nil {
		user.Bio = utils.TruncateRunes(utils.SanitizeText(*req.Bio), 512)
	}
	if req.AvatarURL != nil {
		user.AvatarURL = utils.TruncateRunes(strings.TrimSpace(*req.AvatarURL), 512)
	}

	if err := a.db.Save(&user).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50031, "failed to update profile")
		return
	}
	utils.InvalidateByPrefix(ctx.Request.Context(), utils.CacheKey("user", uintKey(user.ID)))

	utils.Success(ctx, userResponse(user))
}

// GetUserPublic returns the public profile of a user.
func (a *AuthController) GetUserPublic(ctx *gin.Context) {
	id, ok := parseID(ctx, "userId")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40050, "invalid user id")
		return
	}

	key := utils.CacheKey("user", uintKey(id), "public")
	var cached gin.H
	if utils.CacheGetJSON(ctx.Request.Context(), key, &cached) {
		utils.Success(ctx, cached)
		return
	}

	var user models.User
	if err := a.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40410, "user not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50050, "failed to get user")
		return
	}

	var blogs int64
	a.db.Model(&models.Blog{}).Where("user_id = ? AND status = ?", user.ID, models.BlogStatusPublished).Count(&blogs)

	payload := gin.H{
		"id":              user.ID,
		"username":        user.Username,
		"display_name":    user.DisplayName,
		"bio":             user.Bio,
		"avatar_url":      user.AvatarURL,
		"published_blogs": blogs,
		"created_at":      user.CreatedAt,
	}
	utils.CacheSetJSON(ctx.Request.Context(), key, payload, 5*time.Minute)
	utils.Success(ctx, payload)
}

// ListUsers returns paginated accounts for administrators.
func (a *AuthController) ListUsers(ctx *gin.Context) {
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))

	var total int64
	if err := a.db.Model(&models.User{}).Count(&total).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50006, "failed to count users")
		return
	}

	var users []models.User
	if err := a.db.Order("created_at DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&users).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50007, "failed to retrieve users")
		return
	}

	items := make([]gin.H, 0, len(users))
	for _, u := range users {
		m := userResponse(u)
		m["register_ip"] = u.RegisterIP
		items = append(items, m)
	}
	utils.Paged(ctx, items, total, page, pageSize)
}

func userResponse(user models.User) gin.H {
	return gin.H{
		"id":           user.ID,
		"username":     user.Username,
		"email":        user.Email,
		"display_name": user.DisplayName,
		"bio":          user.Bio,
		"avatar_url":   user.AvatarURL,
		"role":         user.Role,
		"is_admin":     user.IsAdmin() || middleware.IsAdminUsername(user.Username),
		"created_at":   user.CreatedAt,
	}
}
