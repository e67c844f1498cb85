package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jimp5978/dshi-field-app/internal/dashboard/upstream"
	"github.com/jimp5978/dshi-field-app/internal/ecs/apperr"
	"github.com/jimp5978/dshi-field-app/internal/ecs/lifecycle"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login POST /dashboard/api/login
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "사용자명과 비밀번호를 입력해주세요")
		return
	}
	res, err := h.gw.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	Success(c, res)
}

// Search GET /dashboard/api/search?q=
func (h *Handler) Search(c *gin.Context) {
	res, err := h.gw.Search(c.Request.Context(), session(c), c.Query("q"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	Success(c, res)
}

// SavedList GET /dashboard/api/saved-list
func (h *Handler) SavedList(c *gin.Context) {
	items, err := h.gw.SavedList(c.Request.Context(), session(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	Success(c, gin.H{"items": items, "total": len(items)})
}

type codesRequest struct {
	AssemblyCodes []string `json:"assembly_codes"`
	Items         []struct {
		AssemblyCode string `json:"assembly_code"`
	} `json:"items"`
	RequestDate string `json:"request_date"`
}

func (r codesRequest) codes() []string {
	codes := append([]string(nil), r.AssemblyCodes...)
	for _, it := range r.Items {
		codes = append(codes, it.AssemblyCode)
	}
	return codes
}

// AddToSavedList POST /dashboard/api/saved-list
func (h *Handler) AddToSavedList(c *gin.Context) {
	var req codesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "요청 형식이 올바르지 않습니다")
		return
	}
	res, err := h.gw.AddToSavedList(c.Request.Context(), session(c), req.codes())
	if err != nil {
		h.respondError(c, err)
		return
	}
	Success(c, res)
}

// RemoveFromSavedList DELETE /dashboard/api/saved-list/:code
func (h *Handler) RemoveFromSavedList(c *gin.Context) {
	if err := h.gw.RemoveFromSavedList(c.Request.Context(), session(c), c.Param("code")); err != nil {
		h.respondError(c, err)
		return
	}
	Success(c, nil)
}

// ClearSavedList DELETE /dashboard/api/saved-list/clear
func (h *Handler) ClearSavedList(c *gin.Context) {
	n, err := h.gw.ClearSavedList(c.Request.Context(), session(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	Success(c, gin.H{"deleted_count": n})
}

// CreateInspectionRequest POST /dashboard/api/create-inspection-request
// 전부 중복이면 409와 함께 중복 목록을 돌려준다
func (h *Handler) CreateInspectionRequest(c *gin.Context) {
	var req codesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "요청 형식이 올바르지 않습니다")
		return
	}
	res, err := h.gw.Submit(c.Request.Context(), session(c), req.codes(), req.RequestDate)
	if err != nil {
		if res != nil && apperr.KindOf(err) == apperr.KindConflict {
			ErrorWithData(c, apperr.Code(apperr.KindConflict), apperr.MessageOf(err, err.Error()), res)
			return
		}
		h.respondError(c, err)
		return
	}
	Success(c, res)
}

// ListInspectionRequests GET /dashboard/api/inspection-requests
func (h *Handler) ListInspectionRequests(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	pageSize, _ := strconv.Atoi(c.Query("page_size"))
	res, err := h.gw.ListRequests(c.Request.Context(), session(c), upstream.ListFilter{
		Status:         c.Query("status"),
		InspectionType: c.Query("inspection_type"),
		AssemblyCode:   c.Query("assembly_code"),
		Page:           page,
		PageSize:       pageSize,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	Success(c, res)
}

// Transition POST|PUT /dashboard/api/inspection-requests/:id/:action
func (h *Handler) Transition(c *gin.Context) {
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
	req, err := h.gw.Transition(c.Request.Context(), session(c), id, action, payload)
	if err != nil {
		h.respondError(c, err)
		return
	}
	Success(c, req)
}

// DeleteInspectionRequest DELETE /dashboard/api/inspection-requests/:id
func (h *Handler) DeleteInspectionRequest(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if _, err := h.gw.Transition(c.Request.Context(), session(c), id, lifecycle.ActionDelete, lifecycle.Payload{}); err != nil {
		h.respondError(c, err)
		return
	}
	Success(c, nil)
}
