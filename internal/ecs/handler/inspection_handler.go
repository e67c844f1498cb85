package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/jimp5978/dshi-field-app/internal/ecs/apperr"
	"github.com/jimp5978/dshi-field-app/internal/ecs/lifecycle"
	"github.com/jimp5978/dshi-field-app/internal/ecs/repository"
	"github.com/jimp5978/dshi-field-app/internal/ecs/service"
	"github.com/jimp5978/dshi-field-app/internal/middleware"
)

type InspectionHandler struct {
	svc *service.InspectionService
}

func NewInspectionHandler(svc *service.InspectionService) *InspectionHandler {
	return &InspectionHandler{svc: svc}
}

// Create POST /api/inspection-requests
// 일부 중복이면 201 + duplicate_items, 전부 중복이면 409 + 같은 data
func (h *InspectionHandler) Create(c *gin.Context) {
	var req service.CreateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "요청 형식이 올바르지 않습니다")
		return
	}
	res, err := h.svc.Create(c.Request.Context(), middleware.GetActor(c), req)
	if err != nil {
		if res != nil && apperr.KindOf(err) == apperr.KindConflict {
			ErrorWithData(c, apperr.Code(apperr.KindConflict), apperr.MessageOf(err, err.Error()), res)
			return
		}
		respondError(c, err)
		return
	}
	Created(c, res)
}

func filterFromQuery(c *gin.Context) repository.InspectionFilter {
	return repository.InspectionFilter{
		Status:         c.Query("status"),
		InspectionType: c.Query("inspection_type"),
		AssemblyCode:   c.Query("assembly_code"),
		DateFrom:       c.Query("date_from"),
		DateTo:         c.Query("date_to"),
	}
}

// List GET /api/inspection-management/requests
func (h *InspectionHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	res, err := h.svc.List(c.Request.Context(), middleware.GetActor(c), filterFromQuery(c), page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, res)
}

// Get GET /api/inspection-management/requests/:id
func (h *InspectionHandler) Get(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	req, err := h.svc.Get(c.Request.Context(), middleware.GetActor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, req)
}

// History GET /api/inspection-management/requests/:id/history
func (h *InspectionHandler) History(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	logs, err := h.svc.History(c.Request.Context(), middleware.GetActor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, logs)
}

// Transition PUT /api/inspection-management/requests/:id/:action
func (h *InspectionHandler) Transition(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	action, ok := lifecycle.ParseAction(c.Param("action"))
	if !ok || action == lifecycle.ActionSubmit || action == lifecycle.ActionDelete {
		NotFound(c, "알 수 없는 요청입니다")
		return
	}

	var payload lifecycle.Payload
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&payload); err != nil {
			BadRequest(c, "요청 형식이 올바르지 않습니다")
			return
		}
	}

	req, err := h.svc.Transition(c.Request.Context(), middleware.GetActor(c), id, action, payload)
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, req)
}

// Delete DELETE /api/inspection-management/requests/:id
func (h *InspectionHandler) Delete(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), middleware.GetActor(c), id); err != nil {
		respondError(c, err)
		return
	}
	Success(c, nil)
}

// Export GET /api/inspection-management/export
func (h *InspectionHandler) Export(c *gin.Context) {
	f, filename, err := h.svc.Export(c.Request.Context(), middleware.GetActor(c), filterFromQuery(c))
	if err != nil {
		respondError(c, err)
		return
	}
	defer f.Close()

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=\""+filename+"\"")
	c.Header("Content-Transfer-Encoding", "binary")

	if err := f.Write(c.Writer); err != nil {
		InternalError(c, "write excel: "+err.Error())
	}
}
