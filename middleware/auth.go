package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cppla/aiblog/config"
	"github.com/cppla/aiblog/models"
	"github.com/cppla/aiblog/utils"
)

const (
	// ContextUserIDKey is the key used to store authenticated user ID in Gin context.
	ContextUserIDKey = "user_id"
	// ContextUsernameKey stores the username inside Gin context.
	ContextUsernameKey = "username"
	// ContextRoleKey stores the account role.
	ContextRoleKey = "role"
	// ContextTokenIDKey and ContextTokenExpKey describe the presented token for logout.
	ContextTokenIDKey  = "token_id"
	ContextTokenExpKey = "token_exp"
)

type authFailure struct {
	code int
	msg  string
}

// authenticate validates the bearer token of the request. It returns nil
// claims and a nil failure when no Authorization header is present.
func authenticate(ctx *gin.Context) (*utils.Claims, *authFailure) {
	authHeader := ctx.GetHeader("Authorization")
	if authHeader == "" {
		return nil, nil
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, &authFailure{40102, "invalid authorization header format"}
	}

	tokenString := strings.TrimSpace(parts[1])
	if tokenString == "" {
		return nil, &authFailure{40103, "empty bearer token"}
	}

	claims, err := utils.ParseToken(tokenString)
	if err != nil {
		return nil, &authFailure{40105, "invalid token"}
	}

	if utils.IsTokenBlacklisted(claims.ID) {
		return nil, &authFailure{40104, "token revoked"}
	}
	return claims, nil
}

func setIdentity(ctx *gin.Context, claims *utils.Claims) {
	ctx.Set(ContextUserIDKey, claims.UserID)
	ctx.Set(ContextUsernameKey, claims.Username)
	ctx.Set(ContextRoleKey, claims.Role)
	ctx.Set(ContextTokenIDKey, claims.ID)
	if claims.ExpiresAt != nil {
		ctx.Set(ContextTokenExpKey, claims.ExpiresAt.Time)
	} else {
		ctx.Set(ContextTokenExpKey, time.Now().Add(utils.TokenTTL()))
	}
}

// AuthRequired ensures the request is authenticated via JWT.
func AuthRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		claims, fail := authenticate(ctx)
		if fail == nil && claims == nil {
			fail = &authFailure{40101, "authorization header missing"}
		}
		if fail != nil {
			utils.Error(ctx, http.StatusUnauthorized, fail.code, fail.msg)
			ctx.Abort()
			return
		}
		setIdentity(ctx, claims)
		ctx.Next()
	}
}

// OptionalAuth identifies the caller when a valid token is presented and
// otherwise lets the request through anonymously.
func OptionalAuth() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if claims, fail := authenticate(ctx); fail == nil && claims != nil {
			setIdentity(ctx, claims)
		}
		ctx.Next()
	}
}

// IsAdmin reports whether the authenticated caller holds the admin role or
// has a username listed in the admin configuration.
func IsAdmin(ctx *gin.Context) bool {
	if ctx.GetString(ContextRoleKey) == models.RoleAdmin {
		return true
	}
	return IsAdminUsername(ctx.GetString(ContextUsernameKey))
}

// IsAdminUsername checks whether given username is configured as an admin (case-insensitive)
func IsAdminUsername(username string) bool {
	uname := strings.TrimSpace(username)
	if uname == "" {
		return false
	}
	for _, u := range config.Get().AdminUsernames {
		if strings.EqualFold(strings.TrimSpace(u), uname) {
			return true
		}
	}
	return false
}

// AdminRequired must run after AuthRequired.
func AdminRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if !IsAdmin(ctx) {
			utils.Error(ctx, http.StatusForbidden, 40301, "admin only")
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}
