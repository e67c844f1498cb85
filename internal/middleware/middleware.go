package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jimp5978/dshi-field-app/internal/ecs/apperr"
	"github.com/jimp5978/dshi-field-app/internal/ecs/lifecycle"
	"go.uber.org/zap"
)

// context key
const (
	KeyUserID   = "user_id"
	KeyUsername = "username"
	KeyName     = "user_name"
	KeyLevel    = "permission_level"
	KeyToken    = "token"
	KeyClaims   = "claims"
)

// Logger 요청 로그
func Logger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		fields := []zap.Field{
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.String("ip", c.ClientIP()),
			zap.String("user-agent", c.Request.UserAgent()),
			zap.Duration("latency", latency),
			zap.String("request_id", c.GetString("request_id")),
		}

		if username := c.GetString(KeyUsername); username != "" {
			fields = append(fields, zap.Uint("user_id", c.GetUint(KeyUserID)), zap.String("username", username))
		}

		if status >= 500 {
			logger.Error("Server error", fields...)
		} else if status >= 400 {
			logger.Warn("Client error", fields...)
		} else {
			logger.Info("Request", fields...)
		}
	}
}

// CORS
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// RequestID X-Request-ID 전달 또는 생성
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.Request.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Writer.Header().Set("X-Request-ID", requestID)
		c.Next()
	}
}

// JWTClaims 토큰 claims. 데이터 API와 대시보드가 같은 secret을 쓴다
type JWTClaims struct {
	UserID   uint   `json:"uid"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Level    int    `json:"level"`
	jwt.RegisteredClaims
}

// ParseToken 서명과 만료를 확인한다
func ParseToken(secret, tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if _, err := lifecycle.ParseLevel(claims.Level); err != nil {
		return nil, err
	}
	return claims, nil
}

// JWTAuth 인증 미들웨어
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var tokenString string

		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenString = parts[1]
			}
		}

		// SSE는 query param으로 전달
		if tokenString == "" {
			tokenString = c.Query("token")
		}

		if tokenString == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":    40100,
				"message": "로그인이 필요합니다",
			})
			c.Abort()
			return
		}

		claims, err := ParseToken(secret, tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":    40102,
				"message": "토큰이 유효하지 않거나 만료되었습니다",
			})
			c.Abort()
			return
		}

		c.Set(KeyUserID, claims.UserID)
		c.Set(KeyUsername, claims.Username)
		c.Set(KeyName, claims.Name)
		c.Set(KeyLevel, claims.Level)
		c.Set(KeyToken, tokenString)
		c.Set(KeyClaims, claims)
		c.Next()
	}
}

// RequireLevel 최소 권한 레벨
func RequireLevel(required lifecycle.Level) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := lifecycle.Authorize(required, GetLevel(c)); err != nil {
			c.JSON(http.StatusForbidden, gin.H{
				"code":    apperr.Code(apperr.KindAuthorization),
				"message": err.Error(),
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

func GetUserID(c *gin.Context) uint {
	return c.GetUint(KeyUserID)
}

func GetUsername(c *gin.Context) string {
	return c.GetString(KeyUsername)
}

func GetLevel(c *gin.Context) lifecycle.Level {
	return lifecycle.Level(c.GetInt(KeyLevel))
}

// GetToken 원격 호출에 그대로 전달할 bearer 토큰
func GetToken(c *gin.Context) string {
	return c.GetString(KeyToken)
}

// GetActor 인증된 사용자
func GetActor(c *gin.Context) lifecycle.Actor {
	return lifecycle.Actor{
		UserID:   GetUserID(c),
		Username: GetUsername(c),
		Name:     c.GetString(KeyName),
		Level:    GetLevel(c),
	}
}
