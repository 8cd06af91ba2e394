package controllers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/cppla/aiblog/models"
	"github.com/cppla/aiblog/routes"
	"github.com/cppla/aiblog/testsupport"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type apiServer struct {
	t  *testing.T
	db *gorm.DB
	r  *gin.Engine
}

func newAPIServer(t *testing.T) *apiServer {
	t.Helper()
	db := testsupport.SetupTestDB(t)
	return &apiServer{t: t, db: db, r: routes.SetupRouter(db, nil)}
}

type header struct{ key, value string }

func (s *apiServer) do(method, path, token string, body interface{}, headers ...header) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for _, h := range headers {
		req.Header.Set(h.key, h.value)
	}
	rec := httptest.NewRecorder()
	s.r.ServeHTTP(rec, req)

	var env envelope
	require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func (s *apiServer) user(name string) (models.User, string) {
	s.t.Helper()
	u := testsupport.CreateTestUser(s.t, s.db, name, "password123")
	return u, testsupport.IssueToken(s.t, u)
}

func decodeData(t *testing.T, env envelope, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, dst), string(env.Data))
}

type blogDTO struct {
	ID     uint   `json:"id"`
	Slug   string `json:"slug"`
	Status string `json:"status"`
	Tags   string `json:"tags"`
}

func (s *apiServer) createBlog(token, title, status string, tags ...string) blogDTO {
	s.t.Helper()
	rec, env := s.do(http.MethodPost, "/api/v1/blogs", token, gin.H{
		"title":   title,
		"content": "<p>Body of " + title + "</p>",
		"status":  status,
		"tags":    tags,
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	var out struct {
		Blog blogDTO `json:"blog"`
	}
	decodeData(s.t, env, &out)
	return out.Blog
}

func TestHealthAndNoRoute(t *testing.T) {
	s := newAPIServer(t)

	rec, env := s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, env.Code)

	rec, env = s.do(http.MethodGet, "/api/v1/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 40400, env.Code)
}

func TestRegisterLoginMeLogout(t *testing.T) {
	s := newAPIServer(t)

	rec, env := s.do(http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"username": "alice",
		"email":    "Alice@Example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var reg struct {
		Token string `json:"token"`
		User  struct {
			Username string `json:"username"`
			Email    string `json:"email"`
			Role     string `json:"role"`
		} `json:"user"`
	}
	decodeData(t, env, &reg)
	assert.NotEmpty(t, reg.Token)
	assert.Equal(t, "alice@example.com", reg.User.Email)
	assert.Equal(t, models.RoleUser, reg.User.Role)

	rec, env = s.do(http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": "alice@example.com", "password": "password123"})
	require.Equal(t, http.StatusOK, rec.Code)
	var login struct {
		Token string `json:"token"`
	}
	decodeData(t, env, &login)

	rec, _ = s.do(http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": "alice", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, env = s.do(http.MethodGet, "/api/v1/auth/me", login.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"username":"alice"`)

	rec, _ = s.do(http.MethodPost, "/api/v1/auth/logout", login.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = s.do(http.MethodGet, "/api/v1/auth/me", login.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 40104, env.Code)

	// the registration token is a separate session and still works
	rec, _ = s.do(http.MethodGet, "/api/v1/auth/me", reg.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRegisterValidation(t *testing.T) {
	s := newAPIServer(t)
	s.user("bob")

	tests := []struct {
		name   string
		body   gin.H
		status int
		code   int
	}{
		{"duplicate username", gin.H{"username": "bob", "email": "other@example.com", "password": "password123"}, http.StatusConflict, 40901},
		{"duplicate email", gin.H{"username": "bobby", "email": "bob@example.com", "password": "password123"}, http.StatusConflict, 40901},
		{"weak password", gin.H{"username": "carol", "email": "carol@example.com", "password": "short"}, http.StatusBadRequest, 40004},
		{"bad username", gin.H{"username": "a b", "email": "ab@example.com", "password": "password123"}, http.StatusBadRequest, 40002},
		{"short username", gin.H{"username": "ab", "email": "ab@example.com", "password": "password123"}, http.StatusBadRequest, 40002},
		{"bad email", gin.H{"username": "dave", "email": "not-an-email", "password": "password123"}, http.StatusBadRequest, 40003},
		{"named email", gin.H{"username": "dave", "email": "Dave <dave@example.com>", "password": "password123"}, http.StatusBadRequest, 40003},
		{"missing password", gin.H{"username": "dave", "email": "dave@example.com"}, http.StatusBadRequest, 40001},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := s.do(http.MethodPost, "/api/v1/auth/register", "", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, env.Code)
		})
	}
}

func TestRegisterConfiguredAdminGetsAdminRole(t *testing.T) {
	s := newAPIServer(t)

	rec, env := s.do(http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"username": "admin",
		"email":    "admin@example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var out struct {
		Token string `json:"token"`
	}
	decodeData(t, env, &out)

	rec, _ = s.do(http.MethodGet, "/api/v1/admin/users", out.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUpdateProfile(t *testing.T) {
	s := newAPIServer(t)
	_, token := s.user("erin")
	s.user("frank")

	rec, env := s.do(http.MethodPatch, "/api/v1/auth/profile", token, gin.H{
		"display_name": "<b>Erin</b> E.",
		"bio":          "writes about Go",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, string(env.Data), `"display_name":"Erin E."`)
	assert.Contains(t, string(env.Data), `"bio":"writes about Go"`)

	rec, _ = s.do(http.MethodPatch, "/api/v1/auth/profile", token, gin.H{"email": "frank@example.com"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	for _, bad := range []string{"", "erin"} {
		rec, env = s.do(http.MethodPatch, "/api/v1/auth/profile", token, gin.H{"email": bad})
		assert.Equal(t, http.StatusBadRequest, rec.Code, bad)
		assert.Equal(t, 40031, env.Code, bad)
	}

	rec, env = s.do(http.MethodPatch, "/api/v1/auth/profile", token, gin.H{"email": "Erin.New@Example.com"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, string(env.Data), `"email":"erin.new@example.com"`)
}

func TestBlogLifecycle(t *testing.T) {
	s := newAPIServer(t)
	_, author := s.user("writer")
	_, other := s.user("reader")
	_, admin := s.user("admin")

	draft := s.createBlog(author, "Hello World", models.BlogStatusDraft)
	assert.Equal(t, "hello-world", draft.Slug)
	assert.Equal(t, models.BlogStatusDraft, draft.Status)

	var summaries int64
	s.db.Model(&models.BlogAnalytics{}).Where("blog_id = ?", draft.ID).Count(&summaries)
	assert.Equal(t, int64(1), summaries)

	path := fmt.Sprintf("/api/v1/blogs/%d", draft.ID)

	rec, _ := s.do(http.MethodGet, path, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "drafts are hidden from anonymous readers")
	rec, _ = s.do(http.MethodGet, path, other, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = s.do(http.MethodGet, path, author, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env := s.do(http.MethodGet, "/api/v1/blogs", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"total":0`)

	rec, _ = s.do(http.MethodPut, path, other, gin.H{"title": "Hijacked"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, env = s.do(http.MethodPut, path, author, gin.H{"status": "published", "tags": []string{"Go", "web"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated struct {
		Blog struct {
			Status      string  `json:"status"`
			Tags        string  `json:"tags"`
			PublishedAt *string `json:"published_at"`
		} `json:"blog"`
	}
	decodeData(t, env, &updated)
	assert.Equal(t, models.BlogStatusPublished, updated.Blog.Status)
	assert.Equal(t, "go,web", updated.Blog.Tags)
	assert.NotNil(t, updated.Blog.PublishedAt)

	rec, _ = s.do(http.MethodGet, "/api/v1/blogs/hello-world", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "published blogs resolve by slug")

	rec, env = s.do(http.MethodGet, "/api/v1/blogs", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"total":1`)

	rec, _ = s.do(http.MethodDelete, path, other, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec, _ = s.do(http.MethodDelete, path, admin, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.do(http.MethodGet, path, author, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	s.db.Model(&models.BlogAnalytics{}).Where("blog_id = ?", draft.ID).Count(&summaries)
	assert.Zero(t, summaries)
}

func TestCreateBlogValidationAndUniqueSlugs(t *testing.T) {
	s := newAPIServer(t)
	_, token := s.user("writer")

	first := s.createBlog(token, "Same Title", models.BlogStatusPublished)
	second := s.createBlog(token, "Same Title", models.BlogStatusPublished)
	assert.Equal(t, "same-title", first.Slug)
	assert.Equal(t, "same-title-2", second.Slug)

	rec, _ := s.do(http.MethodPost, "/api/v1/blogs", token, gin.H{"title": "x", "content": "y", "status": "archived"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = s.do(http.MethodPost, "/api/v1/blogs", token, gin.H{"title": "  ", "content": "y"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = s.do(http.MethodPost, "/api/v1/blogs", "", gin.H{"title": "x", "content": "y"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListBlogsFilters(t *testing.T) {
	s := newAPIServer(t)
	_, token := s.user("writer")

	s.createBlog(token, "Go Generics", models.BlogStatusPublished, "go", "types")
	s.createBlog(token, "Rust Traits", models.BlogStatusPublished, "rust", "types")
	s.createBlog(token, "Go Draft", models.BlogStatusDraft, "go")

	tests := []struct {
		query string
		total int
	}{
		{"", 2},
		{"?tag=go", 1},
		{"?tag=types", 2},
		{"?tag=typ", 0},
		{"?search=Traits", 1},
		{"?page=2&page_size=1", 2},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec, env := s.do(http.MethodGet, "/api/v1/blogs"+tt.query, "", nil)
			require.Equal(t, http.StatusOK, rec.Code)
			var page struct {
				Total int `json:"total"`
			}
			decodeData(t, env, &page)
			assert.Equal(t, tt.total, page.Total)
		})
	}

	rec, env := s.do(http.MethodGet, "/api/v1/users/me/blogs", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"total":3`)
}

func TestComments(t *testing.T) {
	s := newAPIServer(t)
	author, authorToken := s.user("writer")
	_, readerToken := s.user("reader")
	blog := testsupport.CreateTestBlog(t, s.db, author.ID, "Commented")
	base := fmt.Sprintf("/api/v1/blogs/%d/comments", blog.ID)

	rec, _ := s.do(http.MethodPost, base, "", gin.H{"content": "anon"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, env := s.do(http.MethodPost, base, readerToken, gin.H{"content": "<script>x</script>Nice post"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		Comment struct {
			ID      uint   `json:"id"`
			Content string `json:"content"`
		} `json:"comment"`
	}
	decodeData(t, env, &created)
	assert.Equal(t, "Nice post", created.Comment.Content)

	rec, _ = s.do(http.MethodPost, base, readerToken, gin.H{"content": "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = s.do(http.MethodGet, base, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"total":1`)

	del := fmt.Sprintf("/api/v1/comments/%d", created.Comment.ID)
	rec, _ = s.do(http.MethodDelete, del, authorToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec, _ = s.do(http.MethodDelete, del, readerToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = s.do(http.MethodDelete, del, readerToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = s.do(http.MethodGet, "/api/v1/blogs/999/comments", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestToggleLike(t *testing.T) {
	s := newAPIServer(t)
	author, _ := s.user("writer")
	_, token := s.user("fan")
	blog := testsupport.CreateTestBlog(t, s.db, author.ID, "Likeable")
	path := fmt.Sprintf("/api/v1/blogs/%d/like", blog.ID)

	type likeState struct {
		Liked     bool  `json:"liked"`
		Likes     int64 `json:"likes"`
		LikedByMe bool  `json:"liked_by_me"`
	}

	rec, env := s.do(http.MethodPost, path, token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var st likeState
	decodeData(t, env, &st)
	assert.True(t, st.Liked)
	assert.Equal(t, int64(1), st.Likes)

	_, env = s.do(http.MethodGet, path, token, nil)
	st = likeState{}
	decodeData(t, env, &st)
	assert.True(t, st.LikedByMe)
	assert.Equal(t, int64(1), st.Likes)

	_, env = s.do(http.MethodGet, path, "", nil)
	st = likeState{}
	decodeData(t, env, &st)
	assert.False(t, st.LikedByMe)

	_, env = s.do(http.MethodPost, path, token, nil)
	st = likeState{}
	decodeData(t, env, &st)
	assert.False(t, st.Liked)
	assert.Zero(t, st.Likes)
}

func TestStats(t *testing.T) {
	s := newAPIServer(t)
	author, _ := s.user("writer")
	blog := testsupport.CreateTestBlog(t, s.db, author.ID, "Counted")

	for i := 0; i < 2; i++ {
		rec, _ := s.do(http.MethodPost, fmt.Sprintf("/api/v1/blogs/%d/track-view", blog.ID), "", nil,
			header{"X-Real-IP", fmt.Sprintf("203.0.113.%d", i+1)})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec, env := s.do(http.MethodGet, "/api/v1/stats", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats struct {
		UserCount  int64 `json:"user_count"`
		BlogCount  int64 `json:"blog_count"`
		TotalViews int64 `json:"total_views"`
		ViewsToday int64 `json:"views_today"`
	}
	decodeData(t, env, &stats)
	assert.Equal(t, int64(1), stats.UserCount)
	assert.Equal(t, int64(1), stats.BlogCount)
	assert.Equal(t, int64(2), stats.TotalViews)
	assert.Equal(t, int64(2), stats.ViewsToday)

	rec, env = s.do(http.MethodGet, fmt.Sprintf("/api/v1/blogs/%d/stats", blog.ID), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"views":2`)
	assert.Contains(t, string(env.Data), `"unique_views":2`)
}
