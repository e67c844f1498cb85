package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jimp5978/dshi-field-app/internal/ecs/service"
	"github.com/jimp5978/dshi-field-app/internal/middleware"
)

type SavedListHandler struct {
	svc      *service.SavedListService
	maxBytes int64
}

func NewSavedListHandler(svc *service.SavedListService, maxBytes int64) *SavedListHandler {
	if maxBytes <= 0 {
		maxBytes = 5 << 20
	}
	return &SavedListHandler{svc: svc, maxBytes: maxBytes}
}

// List GET /api/saved-list
func (h *SavedListHandler) List(c *gin.Context) {
	items, err := h.svc.List(c.Request.Context(), middleware.GetActor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, gin.H{"items": items, "total": len(items)})
}

type savedItem struct {
	AssemblyCode string `json:"assembly_code"`
}

// addRequest assembly_codes 또는 items[].assembly_code
type addRequest struct {
	AssemblyCodes []string    `json:"assembly_codes"`
	Items         []savedItem `json:"items"`
}

func (r addRequest) codes() []string {
	codes := append([]string(nil), r.AssemblyCodes...)
	for _, it := range r.Items {
		codes = append(codes, it.AssemblyCode)
	}
	return codes
}

// Add POST /api/saved-list
func (h *SavedListHandler) Add(c *gin.Context) {
	var req addRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "요청 형식이 올바르지 않습니다")
		return
	}
	res, err := h.svc.Add(c.Request.Context(), middleware.GetActor(c), req.codes())
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, res)
}

// Remove DELETE /api/saved-list/:code
func (h *SavedListHandler) Remove(c *gin.Context) {
	if err := h.svc.Remove(c.Request.Context(), middleware.GetActor(c), c.Param("code")); err != nil {
		respondError(c, err)
		return
	}
	Success(c, nil)
}

// Clear DELETE /api/saved-list/clear
func (h *SavedListHandler) Clear(c *gin.Context) {
	n, err := h.svc.Clear(c.Request.Context(), middleware.GetActor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, gin.H{"deleted_count": n})
}

// UploadCodes POST /api/upload-assembly-codes
func (h *SavedListHandler) UploadCodes(c *gin.Context) {
	var req addRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "요청 형식이 올바르지 않습니다")
		return
	}
	res, err := h.svc.UploadCodes(c.Request.Context(), middleware.GetActor(c), req.codes())
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, res)
}

// UploadExcel POST /api/upload-excel (multipart, field "file")
func (h *SavedListHandler) UploadExcel(c *gin.Context) {
	// multipart 헤더 여유분
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+64<<10)
	fh, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "파일이 선택되지 않았습니다")
		return
	}
	if fh.Size > h.maxBytes {
		BadRequest(c, "파일이 너무 큽니다")
		return
	}
	f, err := fh.Open()
	if err != nil {
		BadRequest(c, "파일을 열 수 없습니다")
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		BadRequest(c, "파일을 읽을 수 없습니다")
		return
	}

	res, err := h.svc.UploadFile(c.Request.Context(), middleware.GetActor(c), fh.Filename, data)
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, res)
}
