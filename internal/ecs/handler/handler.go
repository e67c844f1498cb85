package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jimp5978/dshi-field-app/internal/ecs/apperr"
	"github.com/jimp5978/dshi-field-app/internal/ecs/service"
	"github.com/jimp5978/dshi-field-app/internal/ecs/sse"
	"go.uber.org/zap"
)

// Handlers 데이터 API 핸들러 모음
type Handlers struct {
	Auth       *AuthHandler
	Assembly   *AssemblyHandler
	SavedList  *SavedListHandler
	Inspection *InspectionHandler
	User       *UserHandler
	SSE        *SSEHandler
}

func NewHandlers(svc *service.Services, hub *sse.Hub, maxUploadBytes int64, logger *zap.Logger) *Handlers {
	return &Handlers{
		Auth:       NewAuthHandler(svc.Auth),
		Assembly:   NewAssemblyHandler(svc.Assembly),
		SavedList:  NewSavedListHandler(svc.SavedList, maxUploadBytes),
		Inspection: NewInspectionHandler(svc.Inspection),
		User:       NewUserHandler(svc.User),
		SSE:        NewSSEHandler(hub, logger),
	}
}

// Response 공통 응답
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Error code 상위 3자리가 HTTP 상태코드
func Error(c *gin.Context, code int, message string) {
	ErrorWithData(c, code, message, nil)
}

// ErrorWithData 실패 응답에도 data를 싣는다 (중복 목록 등)
func ErrorWithData(c *gin.Context, code int, message string, data interface{}) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
		Data:    data,
	})
}

func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

func Unauthorized(c *gin.Context, message string) {
	Error(c, 40100, message)
}

func Forbidden(c *gin.Context, message string) {
	Error(c, 40300, message)
}

func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

func Conflict(c *gin.Context, message string) {
	Error(c, 40900, message)
}

func BadGateway(c *gin.Context, message string) {
	Error(c, 50200, message)
}

func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// respondError 도메인 오류는 kind별 code로, 나머지는 500
func respondError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrInvalidCredentials) {
		Error(c, 40101, err.Error())
		return
	}
	kind := apperr.KindOf(err)
	if kind == apperr.KindUnknown {
		c.Error(err)
		InternalError(c, "서버 오류가 발생했습니다")
		return
	}
	Error(c, apperr.Code(kind), apperr.MessageOf(err, err.Error()))
}

// paramID :id 경로 값
func paramID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		BadRequest(c, "잘못된 ID입니다")
		return 0, false
	}
	return uint(id), true
}

// GetPagination page_size가 0이면 전체
func GetPagination(c *gin.Context) (page, pageSize int) {
	page = 1
	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}
	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 {
			pageSize = v
			if pageSize > 200 {
				pageSize = 200
			}
		}
	}
	return page, pageSize
}
