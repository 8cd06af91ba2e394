package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/aiblog/analytics"
	"github.com/cppla/aiblog/config"
	"github.com/cppla/aiblog/controllers"
	"github.com/cppla/aiblog/metrics"
	"github.com/cppla/aiblog/middleware"
	"github.com/cppla/aiblog/utils"
)

// SetupRouter wires routes, middlewares, and controllers. geo may be nil, in
// which case tracked views carry no location.
func SetupRouter(db *gorm.DB, geo analytics.GeoResolver) *gin.Engine {
	// Load config and set Gin mode from configuration
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	utils.RegisterValidators()

	r := gin.New()
	// Client addresses come from middleware.ClientIP, never from blindly trusted proxies
	_ = r.SetTrustedProxies(nil)

	// Replace default console logger with file-based zap logger
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, false))
	} else {
		// fallback to default recovery if logger failed to init
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", middleware.SessionHeader},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
		// credentials cannot be combined with a wildcard origin
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}

	r.Use(cors.New(corsCfg))
	r.Use(middleware.Metrics())

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	authController := controllers.NewAuthController(db)
	blogController := controllers.NewBlogController(db)
	commentController := controllers.NewCommentController(db)
	likeController := controllers.NewLikeController(db)
	analyticsController := controllers.NewAnalyticsController(db, geo)
	productController := controllers.NewProductController(db)
	contactController := controllers.NewContactController(db)
	statsController := controllers.NewStatsController(db)

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware("auth"))
	authGroup.POST("/register", authController.Register)
	authGroup.POST("/login", authController.Login)
	authGroup.POST("/logout", middleware.AuthRequired(), authController.Logout)
	authGroup.GET("/me", middleware.AuthRequired(), authController.Me)
	authGroup.PATCH("/profile", middleware.AuthRequired(), authController.UpdateProfile)

	// Public reads; optional auth lets authors see their drafts and likes
	public := api.Group("")
	public.Use(middleware.OptionalAuth())
	public.GET("/blogs", blogController.ListBlogs)
	public.GET("/blogs/:blogId", blogController.GetBlog)
	public.GET("/blogs/:blogId/comments", commentController.ListComments)
	public.GET("/blogs/:blogId/like", likeController.GetLikes)
	public.GET("/blogs/:blogId/stats", statsController.GetBlogStats)
	public.GET("/users/:userId", authController.GetUserPublic)
	public.GET("/products", productController.ListProducts)
	public.GET("/products/:slug", productController.GetProduct)
	public.GET("/stats", statsController.GetStats)

	// View tracking has its own, more generous budget and never answers 429
	public.POST("/blogs/:blogId/track-view",
		middleware.SoftRateLimitPerMinute("track", cfg.RateLimitPerMinute*4),
		middleware.Session(),
		analyticsController.TrackView,
	)

	forms := api.Group("")
	forms.Use(middleware.RateLimitMiddleware("forms"))
	forms.POST("/contact", contactController.SubmitContact)
	forms.POST("/newsletter/subscribe", contactController.Subscribe)
	forms.POST("/newsletter/unsubscribe", contactController.Unsubscribe)

	protected := api.Group("")
	protected.Use(middleware.AuthRequired(), middleware.RateLimitMiddleware("api"))
	protected.GET("/blogs/analytics/user", analyticsController.GetUserAnalytics)
	protected.GET("/blogs/:blogId/analytics", analyticsController.GetBlogAnalytics)
	protected.POST("/blogs", blogController.CreateBlog)
	protected.PUT("/blogs/:blogId", blogController.UpdateBlog)
	protected.DELETE("/blogs/:blogId", blogController.DeleteBlog)
	protected.POST("/blogs/:blogId/comments", commentController.CreateComment)
	protected.DELETE("/comments/:commentId", commentController.DeleteComment)
	protected.POST("/blogs/:blogId/like", likeController.ToggleLike)
	protected.GET("/users/me/blogs", blogController.ListMyBlogs)

	admin := protected.Group("")
	admin.Use(middleware.AdminRequired())
	admin.GET("/admin/users", authController.ListUsers)
	admin.GET("/admin/contacts", contactController.ListContacts)
	admin.POST("/products", productController.CreateProduct)
	admin.PUT("/products/:id", productController.UpdateProduct)
	admin.DELETE("/products/:id", productController.DeleteProduct)

	r.NoRoute(func(ctx *gin.Context) {
		if strings.HasPrefix(ctx.Request.URL.Path, "/api/") {
			utils.Error(ctx, http.StatusNotFound, 40400, "api route not found")
			return
		}
		utils.Error(ctx, http.StatusNotFound, 40400, "not found")
	})

	return r
}
