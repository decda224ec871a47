package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nexus-academy/catalog-service/internal/config"
	"github.com/nexus-academy/catalog-service/internal/metrics"
	"github.com/nexus-academy/catalog-service/internal/repositories"
	"github.com/nexus-academy/catalog-service/internal/services"
	"github.com/nexus-academy/catalog-service/internal/utils"
)

// RouterConfig holds the optional pieces of the HTTP surface
type RouterConfig struct {
	RateLimit config.RateLimitConfig

	// When set, /metrics is served and every request is observed.
	Collector *metrics.PrometheusCollector
	Gatherer  prometheus.Gatherer
}

type HandlerManager struct {
	serviceManager  services.ServiceManager
	catalogHandler  *CatalogHandler
	waitlistHandler *WaitlistHandler
	contentHandler  *ContentHandler
	adminHandler    *AdminHandler
	authMiddleware  *CasdoorAuthMiddleware
	logger          utils.Logger
	config          RouterConfig
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	logger utils.Logger,
	tokenParser TokenParser,
	userRepo repositories.UserRepository,
	config RouterConfig,
) *HandlerManager {
	return &HandlerManager{
		serviceManager: serviceManager,
		catalogHandler: NewCatalogHandler(
			serviceManager.Program(),
			serviceManager.Lecture(),
			serviceManager.Home(),
			serviceManager.User(),
			logger,
		),
		waitlistHandler: NewWaitlistHandler(serviceManager.Waitlist(), logger),
		contentHandler:  NewContentHandler(serviceManager.Post(), serviceManager.Review(), logger),
		adminHandler:    NewAdminHandler(serviceManager, logger),
		authMiddleware:  NewCasdoorAuthMiddleware(tokenParser, userRepo, logger),
		logger:          logger,
		config:          config,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	// gin trusts every proxy unless told otherwise
	if err := router.SetTrustedProxies(hm.config.RateLimit.TrustedProxies); err != nil {
		hm.logger.Error("Invalid trusted proxies, trusting none", "error", err)
		_ = router.SetTrustedProxies(nil)
	}

	if hm.config.Collector != nil {
		router.Use(hm.config.Collector.GinMiddleware())
	}

	router.GET("/health", hm.health)
	if hm.config.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(hm.config.Gatherer, promhttp.HandlerOpts{})))
	}

	writeLimit := RateLimitMiddleware(hm.config.RateLimit.RequestsPerSecond, hm.config.RateLimit.Burst)

	v1 := router.Group("/api/v1")

	// Anonymous viewers are allowed; a valid token personalizes the response.
	public := v1.Group("")
	public.Use(hm.authMiddleware.OptionalAuthMiddleware())
	{
		public.GET("/home", hm.catalogHandler.GetHome)

		public.GET("/programs", hm.catalogHandler.ListPrograms)
		public.GET("/programs/:slug", hm.catalogHandler.GetProgram)
		public.GET("/programs/:slug/view", hm.catalogHandler.GetProgramView)
		public.GET("/lectures/:id", hm.catalogHandler.GetLecture)

		public.POST("/waitlist", writeLimit, hm.waitlistHandler.JoinWaitlist)

		public.GET("/insights", hm.contentHandler.ListPosts)
		public.GET("/insights/:slug", hm.contentHandler.GetPost)
		public.GET("/reviews", hm.contentHandler.ListReviews)
	}

	members := v1.Group("")
	members.Use(hm.authMiddleware.AuthMiddleware())
	{
		members.GET("/me", hm.catalogHandler.GetMe)
		members.POST("/reviews", writeLimit, hm.contentHandler.CreateReview)
		members.POST("/reviews/:id/like", writeLimit, hm.contentHandler.ToggleReviewLike)
	}

	admin := v1.Group("/admin")
	admin.Use(hm.authMiddleware.AuthMiddleware(), hm.authMiddleware.RequireAdminMiddleware())
	{
		admin.GET("/programs", hm.catalogHandler.ListPrograms)
		admin.GET("/programs/:id", hm.adminHandler.GetProgram)
		admin.POST("/programs", hm.adminHandler.CreateProgram)
		admin.PUT("/programs/:id", hm.adminHandler.UpdateProgram)
		admin.DELETE("/programs/:id", hm.adminHandler.DeleteProgram)

		admin.GET("/lectures", hm.adminHandler.ListLectures)
		admin.POST("/lectures", hm.adminHandler.CreateLecture)
		admin.PUT("/lectures/:id", hm.adminHandler.UpdateLecture)
		admin.DELETE("/lectures/:id", hm.adminHandler.DeleteLecture)

		admin.POST("/insights", hm.adminHandler.CreatePost)
		admin.PUT("/insights/:id", hm.adminHandler.UpdatePost)
		admin.DELETE("/insights/:id", hm.adminHandler.DeletePost)
		admin.POST("/insights/:id/cover", hm.adminHandler.UploadPostCover)

		admin.PUT("/reviews/:id/featured", hm.adminHandler.SetReviewFeatured)
		admin.DELETE("/reviews/:id", hm.adminHandler.DeleteReview)

		admin.GET("/users", hm.adminHandler.ListUsers)
		admin.GET("/users/:id", hm.adminHandler.GetUser)
		admin.PATCH("/users/:id", hm.adminHandler.UpdateUserMembership)
		admin.DELETE("/users/:id", hm.adminHandler.DeleteUser)

		admin.GET("/waitlist", hm.adminHandler.ListWaitlist)
		admin.DELETE("/waitlist/:id", hm.adminHandler.DeleteWaitlistEntry)

		admin.GET("/exports/waitlist", hm.adminHandler.ExportWaitlist)
		admin.GET("/exports/users", hm.adminHandler.ExportUsers)
	}
}

func (hm *HandlerManager) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	if err := hm.serviceManager.HealthCheck(ctx); err != nil {
		utils.FromContext(c, hm.logger).Warn("Health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unhealthy",
			"service": "catalog-service",
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "catalog-service",
	})
}
