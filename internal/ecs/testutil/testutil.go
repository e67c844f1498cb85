package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jimp5978/dshi-field-app/internal/config"
	"github.com/jimp5978/dshi-field-app/internal/ecs/entity"
	"github.com/jimp5978/dshi-field-app/internal/ecs/process"
	"github.com/jimp5978/dshi-field-app/internal/middleware"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	JWTSecret = "dshi-field-pad-test-secret"
	Issuer    = "dshi-ecs-test"
)

var dbSeq atomic.Int64

// SetupTestDB 테스트마다 독립된 in-memory SQLite
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:ecs_test_%d_%d?mode=memory&cache=shared", time.Now().UnixNano(), dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	// 연결마다 다른 메모리 DB가 생기지 않도록
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(entity.All()...); err != nil {
		t.Fatalf("Failed to migrate test tables: %v", err)
	}

	t.Cleanup(func() {
		sqlDB.Close()
	})
	return db
}

// TestConfig 테스트용 설정. 캐시 TTL은 0이라 검색 결과가 캐시되지 않는다
func TestConfig() *config.Config {
	return &config.Config{
		JWT: config.JWTConfig{
			Secret:             JWTSecret,
			AccessTokenExpire:  time.Hour,
			RefreshTokenExpire: 24 * time.Hour,
			Issuer:             Issuer,
		},
		Upstream: config.UpstreamConfig{
			ConnectTimeout: time.Second,
			ReadTimeout:    2 * time.Second,
			CacheTTL:       5 * time.Second,
		},
		Bulk:   config.BulkConfig{Concurrency: 5, ChunkPause: time.Millisecond},
		Search: config.SearchConfig{Limit: 50},
		Upload: config.UploadConfig{MaxCodes: 100, MaxBytes: 5 << 20},
	}
}

// SetupRouter
func SetupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery())
	return r
}

// AuthGroup JWT 인증 그룹
func AuthGroup(r *gin.Engine, path string) *gin.RouterGroup {
	return r.Group(path, middleware.JWTAuth(JWTSecret))
}

// GenerateTestToken 레벨별 테스트 토큰
func GenerateTestToken(userID uint, username string, level int) string {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":      fmt.Sprint(userID),
		"uid":      userID,
		"username": username,
		"name":     username,
		"level":    level,
		"iss":      Issuer,
		"iat":      now.Unix(),
		"exp":      now.Add(time.Hour).Unix(),
		"jti":      fmt.Sprintf("test-jti-%d", now.UnixNano()),
	}
	token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(JWTSecret))
	return token
}

// TokenFor 저장된 사용자 기준 토큰
func TokenFor(u *entity.User) string {
	return GenerateTestToken(u.ID, u.Username, u.PermissionLevel)
}

// DoRequest JSON 요청
func DoRequest(r http.Handler, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ParseResponse {code, message, data}
func ParseResponse(w *httptest.ResponseRecorder) map[string]interface{} {
	var result map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &result)
	return result
}

// SeedUser passwordHash는 service.HashPassword 결과
func SeedUser(t *testing.T, db *gorm.DB, username string, level int, passwordHash string) *entity.User {
	t.Helper()
	user := &entity.User{
		Username:        username,
		PasswordHash:    passwordHash,
		FullName:        username,
		PermissionLevel: level,
		IsActive:        true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to seed user: %v", err)
	}
	return user
}

// SeedAssembly dates는 FIT_UP부터 공정 순서대로. 빈 문자열은 미완료
func SeedAssembly(t *testing.T, db *gorm.DB, code, item string, weight float64, dates ...string) *entity.Assembly {
	t.Helper()
	a := &entity.Assembly{
		AssemblyCode: code,
		Company:      "DSHI",
		Zone:         "A",
		Item:         item,
		WeightNet:    weight,
	}
	for i, st := range process.Stages() {
		if i < len(dates) && dates[i] != "" {
			a.SetStageDate(st, dates[i])
		}
	}
	if err := db.Create(a).Error; err != nil {
		t.Fatalf("Failed to seed assembly: %v", err)
	}
	return a
}
