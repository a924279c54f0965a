package app

import (
	"adaptive_quiz/docs"
	"adaptive_quiz/internal/config"
	"adaptive_quiz/internal/middleware"
	"adaptive_quiz/internal/model"
	"adaptive_quiz/internal/util"
	"adaptive_quiz/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())
	router.GET("/health", c.health.HealthCheck)

	// 1. 公共路由(无需登录)
	a.registerPublicRoutes(router, c, cfg)

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	a.registerQuizRoutes(authGroup, c)

	// 3. 管理员相关接口
	a.registerAdminRoutes(router, c, cfg)
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	auth := router.Group("/api/auth")
	{
		auth.POST("/register", c.auth.Register)
		auth.POST("/login", c.auth.Login)
		auth.POST("/logout", c.auth.Logout)
		auth.GET("/me", middleware.TryAuthMiddleware(cfg), c.auth.Me)
	}

	public := router.Group("/api")
	{
		public.GET("/topics", c.question.Topics)
		public.GET("/schemes", c.question.Schemes)
	}
}

func (a *App) registerQuizRoutes(group *gin.RouterGroup, c *controllers) {
	group.GET("/bank", c.question.Bank)
	group.GET("/history", c.quiz.History)

	quiz := group.Group("/quiz")
	{
		quiz.POST("/start", c.quiz.Start)
		quiz.GET("/next", c.quiz.Next)
		quiz.POST("/answer", c.quiz.Answer)
		quiz.POST("/finish", c.quiz.Finish)
		quiz.DELETE("", c.quiz.Abandon)
	}
}

func (a *App) registerAdminRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	admin := router.Group("/api/admin")
	admin.Use(middleware.AuthMiddleware(cfg), middleware.RoleMiddleware(model.Admin))
	{
		admin.GET("/questions", c.question.ListQuestions)
		admin.POST("/questions", c.question.CreateQuestion)
		admin.POST("/questions/import", c.question.ImportQuestions)
		admin.POST("/questions/export", c.question.ExportQuestions)
		admin.GET("/questions/:id", c.question.GetQuestion)
		admin.PUT("/questions/:id", c.question.UpdateQuestion)
		admin.DELETE("/questions/:id", c.question.DeleteQuestion)

		if cfg.Storage.Type == util.StorageLocal {
			admin.Static("/exports", cfg.Storage.LocalPath)
		}
	}
}
