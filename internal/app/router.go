package app

import (
	"ideasystemx-go/internal/handler"
	"ideasystemx-go/internal/middleware"

	"github.com/gin-gonic/gin"
)

// Router 创建路由引擎并注册全部接口。JWT 启用时所有接口都需要认证。
func (a *App) Router() *gin.Engine {
	if a.Config.Server.Mode != "" {
		gin.SetMode(a.Config.Server.Mode)
	}
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	r.Use(middleware.RequestLogger(), gin.Recovery())

	var authed []gin.HandlerFunc
	if a.Config.JWT.Enabled {
		authed = append(authed, middleware.AuthMiddleware(a.JWT))
	}

	ideaHandler := handler.NewIdeaHandler(a.Ideas)
	reminderHandler := handler.NewReminderHandler(a.Reminders)
	settingsHandler := handler.NewSettingsHandler(a.Settings, a.AI)
	answerHandler := handler.NewAnswerHandler(a.Ideas)
	adminHandler := handler.NewAdminHandler(a.Ideas)

	apiV1 := r.Group("/api/v1", authed...)
	{
		ideas := apiV1.Group("/ideas")
		{
			ideas.GET("", ideaHandler.List)
			ideas.POST("", ideaHandler.Create)
			ideas.GET("/:id", ideaHandler.Get)
			ideas.PUT("/:id", ideaHandler.Update)
			ideas.DELETE("/:id", ideaHandler.Delete)
			ideas.GET("/:id/related", ideaHandler.Related)
			ideas.POST("/:id/analyze", ideaHandler.Analyze)
			ideas.GET("/:id/reminders", reminderHandler.ListForIdea)
			ideas.POST("/:id/reminders", reminderHandler.Add)
			ideas.POST("/:id/reminders/suggest", ideaHandler.SuggestReminder)
		}

		apiV1.GET("/tags", ideaHandler.Tags)
		apiV1.GET("/search", ideaHandler.Search)
		apiV1.GET("/search/semantic", ideaHandler.SemanticSearch)

		reminders := apiV1.Group("/reminders")
		{
			reminders.GET("", reminderHandler.List)
			reminders.GET("/pending", reminderHandler.Pending)
			reminders.PUT("/:id/complete", reminderHandler.Complete)
		}

		settings := apiV1.Group("/settings")
		{
			settings.GET("", settingsHandler.Get)
			settings.PUT("", settingsHandler.Save)
			settings.GET("/providers", settingsHandler.Providers)
		}

		apiV1.GET("/ai/status", settingsHandler.Status)
		apiV1.POST("/ai/answer", answerHandler.Answer)
		apiV1.POST("/admin/reindex", adminHandler.Reindex)
	}

	ws := r.Group("/ws", authed...)
	{
		ws.GET("/answer", answerHandler.Stream)
		ws.GET("/reminders", a.Hub.Handle)
	}
	return r
}
