package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/jimp5978/dshi-field-app/internal/ecs/service"
	"github.com/jimp5978/dshi-field-app/internal/middleware"
)

type AssemblyHandler struct {
	svc *service.AssemblyService
}

func NewAssemblyHandler(svc *service.AssemblyService) *AssemblyHandler {
	return &AssemblyHandler{svc: svc}
}

// Search GET /api/assemblies/search?q=
func (h *AssemblyHandler) Search(c *gin.Context) {
	views, err := h.svc.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, gin.H{"items": views, "total": len(views)})
}

// Get GET /api/assemblies/:code
func (h *AssemblyHandler) Get(c *gin.Context) {
	view, err := h.svc.Get(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, view)
}

// Dashboard GET /api/dashboard-data
func (h *AssemblyHandler) Dashboard(c *gin.Context) {
	data, err := h.svc.Dashboard(c.Request.Context(), middleware.GetActor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, data)
}
