package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cppla/eduboard/config"
	"github.com/cppla/eduboard/controllers"
	"github.com/cppla/eduboard/middleware"
	"github.com/cppla/eduboard/models"
	"github.com/cppla/eduboard/objstore"
	"github.com/cppla/eduboard/realtime"
	"github.com/cppla/eduboard/store"
	"github.com/cppla/eduboard/templates"
	"github.com/cppla/eduboard/utils"
)

// Deps are the backends the handlers run against.
type Deps struct {
	Store   store.Store
	Objects objstore.Interface
	SMS     utils.SMSSender
	Mailer  utils.Mailer
	Hub     *realtime.Hub
}

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(deps Deps) *gin.Engine {
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
	// Access log goes to its own rolling file; without one it joins the app log
	accessLog := utils.Logger
	if cfg.GinPath != "" {
		if gl, err := utils.NewRollingFileLogger(cfg, cfg.GinPath); err == nil {
			accessLog = gl
		} else {
			utils.Sugar.Warnw("gin access log disabled", "path", cfg.GinPath, "err", err)
		}
	}
	r.Use(utils.Ginzap(accessLog))
	r.Use(utils.RecoveryWithZap(accessLog))
	r.Use(middleware.Metrics())

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
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

	r.SetHTMLTemplate(templates.Load())

	authController := controllers.NewAuthController(deps.Store, deps.SMS)
	postController := controllers.NewPostController(deps.Store, deps.Objects, deps.Hub)
	commentController := controllers.NewCommentController(deps.Store, deps.Hub)
	uploadController := controllers.NewUploadController(deps.Objects)
	contactController := controllers.NewContactController(deps.Store, deps.Mailer)
	adminController := controllers.NewAdminController(deps.Store)
	statsController := controllers.NewStatsController(deps.Store)
	configController := controllers.NewConfigController()
	pageController := controllers.NewPageController(deps.Store)

	r.GET("/", pageController.Home)
	r.GET("/about", pageController.About)
	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authRequired := middleware.AuthRequired(deps.Store)

	api := r.Group("/api/v1")
	api.Use(middleware.RateLimitMiddleware())

	authGroup := api.Group("/auth")
	authGroup.GET("/captcha", authController.Captcha)
	authGroup.POST("/phone/send", middleware.StrictRateLimit(), authController.SendPhoneCode)
	authGroup.POST("/phone/verify", authController.VerifyPhoneCode)
	authGroup.POST("/register", authController.Register)
	authGroup.POST("/login", authController.Login)
	authGroup.GET("/oauth/:provider/login", authController.OAuthRedirect)
	authGroup.GET("/oauth/:provider/callback", authController.OAuthCallback)
	authGroup.POST("/logout", authRequired, authController.Logout)
	authGroup.GET("/me", authRequired, authController.Me)
	authGroup.PATCH("/profile", authRequired, authController.UpdateProfile)

	// one route set per content kind: /api/v1/notices, /api/v1/jobs, ...
	for _, kind := range models.Kinds {
		g := api.Group("/" + kind.Path())
		g.GET("", postController.List(kind))
		g.GET("/:id", postController.Get(kind))
		g.GET("/:id/comments", commentController.List(kind))
		g.POST("", authRequired, postController.Create(kind))
		g.PUT("/:id", authRequired, postController.Update(kind))
		g.DELETE("/:id", authRequired, postController.Delete(kind))
		g.POST("/:id/comments", authRequired, commentController.Create(kind))
	}

	protected := api.Group("")
	protected.Use(authRequired)
	protected.PUT("/comments/:commentId", commentController.Update)
	protected.DELETE("/comments/:commentId", commentController.Delete)
	protected.POST("/uploads", uploadController.Upload)
	protected.POST("/uploads/sign", uploadController.Sign)

	api.GET("/files/*key", uploadController.Download)
	api.POST("/contact", middleware.StrictRateLimit(), contactController.Submit)
	api.GET("/stats", statsController.GetStats)
	api.GET("/config/site", configController.GetSite)
	api.GET("/ws/:kind", func(ctx *gin.Context) {
		kind, ok := models.ParseKind(ctx.Param("kind"))
		if !ok {
			utils.Error(ctx, http.StatusNotFound, 40490, "unknown content kind")
			return
		}
		deps.Hub.Serve(ctx.Writer, ctx.Request, string(kind))
	})

	admin := api.Group("/admin")
	admin.Use(authRequired, middleware.AdminRequired())
	admin.GET("/users", adminController.ListUsers)
	admin.PATCH("/users/:id", adminController.UpdateUser)
	admin.GET("/contacts", contactController.List)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "route not found")
	})

	return r
}
