package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jimp5978/dshi-field-app/internal/dashboard/service"
	"github.com/jimp5978/dshi-field-app/internal/ecs/apperr"
	"github.com/jimp5978/dshi-field-app/internal/middleware"
	"go.uber.org/zap"
)

// Response 공통 응답 (데이터 API와 같은 envelope)
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{Code: 0, Message: "success", Data: data})
}

func ErrorWithData(c *gin.Context, code int, message string, data interface{}) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{Code: code, Message: message, Data: data})
}

func BadRequest(c *gin.Context, message string) {
	ErrorWithData(c, 40000, message, nil)
}

func NotFound(c *gin.Context, message string) {
	ErrorWithData(c, 40400, message, nil)
}

// Handler 대시보드 JSON 엔드포인트
type Handler struct {
	gw     *service.Gateway
	logger *zap.Logger
}

func New(gw *service.Gateway, logger *zap.Logger) *Handler {
	return &Handler{gw: gw, logger: logger.Named("dashboard")}
}

// respondError 도메인 오류는 kind별 code, 나머지는 500
func (h *Handler) respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindUnknown {
		h.logger.Error("unhandled error", zap.String("path", c.FullPath()), zap.Error(err))
		ErrorWithData(c, 50000, "서버 오류가 발생했습니다", nil)
		return
	}
	if kind == apperr.KindUpstreamUnavailable {
		h.logger.Warn("upstream unavailable", zap.String("path", c.FullPath()), zap.Error(err))
	}
	ErrorWithData(c, apperr.Code(kind), apperr.MessageOf(err, err.Error()), nil)
}

func session(c *gin.Context) service.Session {
	return service.Session{Token: middleware.GetToken(c), Actor: middleware.GetActor(c)}
}

func paramID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		BadRequest(c, "잘못된 ID입니다")
		return 0, false
	}
	return uint(id), true
}
