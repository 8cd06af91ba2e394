package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/aiblog/middleware"
	"github.com/cppla/aiblog/testsupport"
	"github.com/cppla/aiblog/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func whoami(c *gin.Context) {
	uid, _ := c.Get(middleware.ContextUserIDKey)
	role, _ := c.Get(middleware.ContextRoleKey)
	c.JSON(http.StatusOK, gin.H{"uid": uid, "role": role})
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestAuthRequired(t *testing.T) {
	testsupport.Config()
	r := gin.New()
	r.GET("/me", middleware.AuthRequired(), whoami)

	token, err := utils.GenerateToken(7, "alice", "user")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"valid", "Bearer " + token, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := serve(r, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestAuthRequiredRejectsRevokedToken(t *testing.T) {
	testsupport.Config()
	r := gin.New()
	r.GET("/me", middleware.AuthRequired(), whoami)

	token, err := utils.GenerateToken(8, "bob", "user")
	require.NoError(t, err)
	claims, err := utils.ParseToken(token)
	require.NoError(t, err)
	utils.BlacklistToken(claims.ID, claims.ExpiresAt.Time)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := serve(r, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "40104")
}

func TestOptionalAuth(t *testing.T) {
	testsupport.Config()
	r := gin.New()
	r.GET("/who", middleware.OptionalAuth(), whoami)

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/who", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"uid":null,"role":null}`, rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/who", nil)
	req.Header.Set("Authorization", "Bearer broken")
	rec = serve(r, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"uid":null,"role":null}`, rec.Body.String())

	token, err := utils.GenerateToken(9, "carol", "admin")
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/who", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = serve(r, req)
	assert.JSONEq(t, `{"uid":9,"role":"admin"}`, rec.Body.String())
}

func TestAdminRequired(t *testing.T) {
	testsupport.Config()
	r := gin.New()
	r.GET("/admin", middleware.AuthRequired(), middleware.AdminRequired(), whoami)

	for _, tt := range []struct {
		username string
		role     string
		status   int
	}{
		{"x", "user", http.StatusForbidden},
		{"x", "admin", http.StatusOK},
		// promoted through configuration after the token was issued
		{"Admin", "user", http.StatusOK},
	} {
		token, err := utils.GenerateToken(1, tt.username, tt.role)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		assert.Equal(t, tt.status, serve(r, req).Code, tt.username+"/"+tt.role)
	}
}

func TestClientIP(t *testing.T) {
	r := gin.New()
	require.NoError(t, r.SetTrustedProxies(nil))
	r.GET("/ip", func(c *gin.Context) { c.String(http.StatusOK, middleware.ClientIP(c)) })

	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"remote addr", nil, "203.0.113.5:4321", "203.0.113.5"},
		{"cloudflare wins", map[string]string{"CF-Connecting-IP": "198.51.100.1", "X-Real-IP": "198.51.100.2"}, "10.0.0.1:1", "198.51.100.1"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.2"}, "10.0.0.1:1", "198.51.100.2"},
		{"forwarded first hop", map[string]string{"X-Forwarded-For": "198.51.100.3, 10.0.0.2"}, "10.0.0.1:1", "198.51.100.3"},
		{"private header ignored", map[string]string{"X-Real-IP": "192.168.1.1"}, "203.0.113.9:1", "203.0.113.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ip", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, serve(r, req).Body.String())
		})
	}
}

func TestSessionIssuesCookieOnce(t *testing.T) {
	r := gin.New()
	r.GET("/s", middleware.Session(), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(middleware.ContextSessionIDKey))
	})

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/s", nil))
	sid := rec.Body.String()
	require.NotEmpty(t, sid)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, middleware.SessionCookieName, cookies[0].Name)
	assert.Equal(t, sid, cookies[0].Value)

	req := httptest.NewRequest(http.MethodGet, "/s", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: sid})
	rec = serve(r, req)
	assert.Equal(t, sid, rec.Body.String())
	assert.Empty(t, rec.Result().Cookies())

	req = httptest.NewRequest(http.MethodGet, "/s", nil)
	req.Header.Set(middleware.SessionHeader, "client-session")
	assert.Equal(t, "client-session", serve(r, req).Body.String())
}

func TestRateLimitPerMinute(t *testing.T) {
	r := gin.New()
	r.GET("/limited", middleware.RateLimitPerMinute("test-limit", 4), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	codes := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		req := httptest.NewRequest(http.MethodGet, "/limited", nil)
		req.RemoteAddr = "203.0.113.77:1000"
		codes = append(codes, serve(r, req).Code)
	}
	// burst is half the per-minute budget
	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests, http.StatusTooManyRequests}, codes)

	req := httptest.NewRequest(http.MethodGet, "/limited", nil)
	req.RemoteAddr = "203.0.113.78:1000"
	assert.Equal(t, http.StatusNoContent, serve(r, req).Code)
}

func TestSoftRateLimitFlagsInsteadOfRejecting(t *testing.T) {
	r := gin.New()
	r.GET("/soft", middleware.SoftRateLimitPerMinute("test-soft", 4), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"throttled": middleware.Throttled(c)})
	})

	var bodies []string
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/soft", nil)
		req.RemoteAddr = "203.0.113.79:1000"
		rec := serve(r, req)
		require.Equal(t, http.StatusOK, rec.Code)
		bodies = append(bodies, rec.Body.String())
	}
	assert.Equal(t, []string{`{"throttled":false}`, `{"throttled":false}`, `{"throttled":true}`}, bodies)
}
