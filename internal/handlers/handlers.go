package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"prismfx/internal/cache"
	"prismfx/internal/config"
	"prismfx/internal/mailer"
	"prismfx/internal/middleware"
	"prismfx/internal/models"
	"prismfx/internal/notify"
	"prismfx/internal/queue"
	"prismfx/internal/repository"
	"prismfx/internal/service"
	"prismfx/internal/storage"
)

type HandlerSet struct {
	log         zerolog.Logger
	cfg         *config.AppConfig
	authService *service.AuthService
	catalog     *service.CatalogService
	generations *service.GenerationService
	posts       *service.PostService
	subscriber  *notify.Subscriber
	db          *pgxpool.Pool
	cache       *redis.Client
	users       *repository.UserRepository
	sessions    *repository.SessionRepository
	images      *repository.ImageRepository
}

func NewHandlerSet(log zerolog.Logger, db *pgxpool.Pool, redisClient *redis.Client, store *storage.ObjectStore, cfg *config.AppConfig) HandlerSet {
	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	resetRepo := repository.NewResetTokenRepository(db)
	effectRepo := repository.NewEffectRepository(db)
	imageRepo := repository.NewImageRepository(db)
	postRepo := repository.NewPostRepository(db)

	notifier := notify.NewPublisher(redisClient, log)
	mail := mailer.NewLogMailer(log)
	tasks := queue.NewTasks(redisClient, cfg.Queue.Stream)
	cooldowns := cache.NewCooldown(redisClient)

	auth := service.NewAuthService(userRepo, sessionRepo, resetRepo, cooldowns, mail, cfg, log)
	catalog := service.NewCatalogService(effectRepo, redisClient, log)
	generations := service.NewGenerationService(imageRepo, effectRepo, store, tasks, notifier, cfg, log)
	posts := service.NewPostService(postRepo, log)

	return HandlerSet{
		log:         log,
		cfg:         cfg,
		authService: auth,
		catalog:     catalog,
		generations: generations,
		posts:       posts,
		subscriber:  notify.NewSubscriber(redisClient, log),
		db:          db,
		cache:       redisClient,
		users:       userRepo,
		sessions:    sessionRepo,
		images:      imageRepo,
	}
}

func (h HandlerSet) Mount(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	v1 := router.Group("/v1")
	{
		effects := v1.Group("/effects")
		effects.GET("", h.ListEffects)
		effects.GET("/categories", h.ListCategories)
		effects.GET("/:id", h.GetEffect)
		effects.POST("/:id/like", middleware.Auth(h.cfg, h.users, h.sessions), h.LikeEffect)

		auth := v1.Group("/auth")
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)
		auth.POST("/refresh", h.Refresh)
		auth.POST("/logout", h.Logout)
		auth.POST("/password/forgot", h.ForgotPassword)
		auth.POST("/password/reset", h.ResetPassword)

		protected := v1.Group("/auth")
		protected.Use(middleware.Auth(h.cfg, h.users, h.sessions))
		protected.GET("/me", h.Me)
		protected.GET("/sessions", h.ListSessions)
		protected.DELETE("/sessions/:deviceId", h.RevokeSession)

		library := v1.Group("/generations")
		library.Use(middleware.Auth(h.cfg, h.users, h.sessions))
		library.POST("", h.StartGeneration)
		library.GET("", h.ListGenerations)
		library.GET("/events", h.LibraryEvents)
		library.POST("/:id/cancel", h.CancelGeneration)
		library.POST("/:id/retry", h.RetryGeneration)
		library.GET("/:id/download", h.DownloadGeneration)
		library.DELETE("/:id", h.DeleteGeneration)
		library.DELETE("", h.ClearGenerations)

		posts := v1.Group("/posts")
		posts.Use(middleware.Auth(h.cfg, h.users, h.sessions))
		posts.GET("", h.ListPosts)
		posts.GET("/:id", h.GetPost)
		posts.POST("/:id/comments", h.AddComment)
		posts.POST("/:id/like", h.TogglePostLike)
		posts.POST("/:id/bookmark", h.TogglePostBookmark)

		comments := v1.Group("/comments")
		comments.Use(middleware.Auth(h.cfg, h.users, h.sessions))
		comments.POST("/:id/like", h.ToggleCommentLike)

		admin := v1.Group("/admin")
		admin.Use(
			middleware.Auth(h.cfg, h.users, h.sessions),
			middleware.RequireRoles(models.UserRoleAdmin, models.UserRoleSuperAdmin),
		)
		admin.GET("/generations", h.AdminListGenerations)
		admin.POST("/effects", h.AdminCreateEffect)
	}
}

// currentUser pulls the authenticated user placed by the auth middleware.
func currentUser(c *gin.Context) (models.User, bool) {
	userVal, exists := c.Get("current_user")
	if !exists {
		return models.User{}, false
	}
	user, ok := userVal.(models.User)
	return user, ok
}
