package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/jimp5978/dshi-field-app/internal/middleware"
)

// RegisterRoutes /dashboard/api 아래 경로. 토큰은 데이터 API와 같은 secret으로 검증한다
func RegisterRoutes(r *gin.Engine, h *Handler, jwtSecret string) {
	api := r.Group("/dashboard/api")
	api.POST("/login", h.Login)

	authorized := api.Group("", middleware.JWTAuth(jwtSecret))
	{
		authorized.GET("/search", h.Search)

		authorized.GET("/saved-list", h.SavedList)
		authorized.POST("/saved-list", h.AddToSavedList)
		authorized.DELETE("/saved-list/clear", h.ClearSavedList)
		authorized.DELETE("/saved-list/:code", h.RemoveFromSavedList)

		authorized.POST("/create-inspection-request", h.CreateInspectionRequest)
		authorized.GET("/inspection-requests", h.ListInspectionRequests)
		authorized.POST("/inspection-requests/:id/:action", h.Transition)
		authorized.PUT("/inspection-requests/:id/:action", h.Transition)
		authorized.DELETE("/inspection-requests/:id", h.DeleteInspectionRequest)
	}
}
