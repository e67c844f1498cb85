package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/jimp5978/dshi-field-app/internal/ecs/lifecycle"
	"github.com/jimp5978/dshi-field-app/internal/middleware"
)

// RegisterRoutes /api 아래 데이터 API 경로
func RegisterRoutes(r *gin.Engine, h *Handlers, jwtSecret string) {
	api := r.Group("/api")

	api.POST("/login", h.Auth.Login)
	api.POST("/auth/refresh", h.Auth.Refresh)
	api.POST("/auth/logout", h.Auth.Logout)

	authorized := api.Group("", middleware.JWTAuth(jwtSecret))
	{
		authorized.GET("/events", h.SSE.Stream)

		authorized.GET("/assemblies/search", h.Assembly.Search)
		authorized.GET("/assemblies/:code", h.Assembly.Get)
		authorized.GET("/dashboard-data", middleware.RequireLevel(lifecycle.LevelDashboard), h.Assembly.Dashboard)

		authorized.GET("/saved-list", h.SavedList.List)
		authorized.POST("/saved-list", h.SavedList.Add)
		authorized.DELETE("/saved-list/clear", h.SavedList.Clear)
		authorized.DELETE("/saved-list/:code", h.SavedList.Remove)
		authorized.POST("/upload-excel", h.SavedList.UploadExcel)
		authorized.POST("/upload-assembly-codes", h.SavedList.UploadCodes)

		authorized.POST("/inspection-requests", h.Inspection.Create)

		mgmt := authorized.Group("/inspection-management")
		{
			mgmt.GET("/requests", h.Inspection.List)
			mgmt.GET("/requests/:id", h.Inspection.Get)
			mgmt.GET("/requests/:id/history", h.Inspection.History)
			mgmt.PUT("/requests/:id/:action", h.Inspection.Transition)
			mgmt.DELETE("/requests/:id", h.Inspection.Delete)
			mgmt.GET("/export", h.Inspection.Export)
		}

		admin := authorized.Group("/admin", middleware.RequireLevel(lifecycle.LevelAdmin))
		{
			admin.GET("/users", h.User.List)
			admin.POST("/users", h.User.Create)
			admin.PUT("/users/:id", h.User.Update)
			admin.DELETE("/users/:id", h.User.Deactivate)
			admin.DELETE("/users/:id/delete-permanently", h.User.DeletePermanently)
		}
	}
}
