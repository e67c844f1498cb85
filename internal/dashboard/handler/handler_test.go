package handler

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jimp5978/dshi-field-app/internal/dashboard/service"
	"github.com/jimp5978/dshi-field-app/internal/dashboard/upstream"
	ecshandler "github.com/jimp5978/dshi-field-app/internal/ecs/handler"
	"github.com/jimp5978/dshi-field-app/internal/ecs/repository"
	ecsservice "github.com/jimp5978/dshi-field-app/internal/ecs/service"
	"github.com/jimp5978/dshi-field-app/internal/ecs/sse"
	"github.com/jimp5978/dshi-field-app/internal/ecs/testutil"
	"github.com/jimp5978/dshi-field-app/internal/shared/cache"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const day = "2025-07-10"

type dashEnv struct {
	db     *gorm.DB
	router *gin.Engine
}

// setupDashboard 실제 데이터 API를 httptest 서버로 띄우고 그 앞에 대시보드를 붙인다
func setupDashboard(t *testing.T) *dashEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	cfg := testutil.TestConfig()

	apiRouter := testutil.SetupRouter()
	repos := repository.NewRepositories(db)
	hub := sse.NewHub(zap.NewNop())
	svc := ecsservice.NewServices(repos, cache.NewMemory(), hub, nil, cfg, zap.NewNop())
	ecshandler.RegisterRoutes(apiRouter, ecshandler.NewHandlers(svc, hub, 1<<20, zap.NewNop()), testutil.JWTSecret)
	apiServer := httptest.NewServer(apiRouter)
	t.Cleanup(apiServer.Close)

	cfg.Upstream.BaseURL = apiServer.URL
	client := upstream.NewClient(cfg.Upstream, zap.NewNop())
	gw := service.NewGateway(client, cache.NewMemory(), cfg, zap.NewNop())

	router := testutil.SetupRouter()
	RegisterRoutes(router, New(gw, zap.NewNop()), testutil.JWTSecret)
	return &dashEnv{db: db, router: router}
}

func (e *dashEnv) login(t *testing.T, username string, level int) string {
	t.Helper()
	testutil.SeedUser(t, e.db, username, level, ecsservice.HashPassword("pw-"+username))
	w := testutil.DoRequest(e.router, "POST", "/dashboard/api/login", map[string]string{
		"username": username,
		"password": "pw-" + username,
	}, "")
	resp := expectStatus(t, w, http.StatusOK)
	data := resp["data"].(map[string]interface{})
	token, _ := data["access_token"].(string)
	if token == "" {
		t.Fatalf("Expected access_token, got %v", data)
	}
	return token
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, status int) map[string]interface{} {
	t.Helper()
	if w.Code != status {
		t.Fatalf("Expected %d, got %d: %s", status, w.Code, w.Body.String())
	}
	return testutil.ParseResponse(w)
}

func expectCode(t *testing.T, resp map[string]interface{}, code int) {
	t.Helper()
	if got, _ := resp["code"].(float64); int(got) != code {
		t.Fatalf("Expected code %d, got %v (%v)", code, resp["code"], resp["message"])
	}
}

func TestDashboardLoginRejectsBadPassword(t *testing.T) {
	env := setupDashboard(t)
	env.login(t, "kim", 1)

	w := testutil.DoRequest(env.router, "POST", "/dashboard/api/login", map[string]string{"username": "kim", "password": "nope"}, "")
	resp := expectStatus(t, w, http.StatusForbidden)
	expectCode(t, resp, 40300)

	w = testutil.DoRequest(env.router, "GET", "/dashboard/api/saved-list", nil, "")
	expectStatus(t, w, http.StatusUnauthorized)
}

func TestDashboardSubmitFlow(t *testing.T) {
	env := setupDashboard(t)
	testutil.SeedAssembly(t, env.db, "A-001", "BEAM", 1.5, "2025-07-01")
	testutil.SeedAssembly(t, env.db, "A-002", "BEAM", 2.0, "2025-07-02")
	testutil.SeedAssembly(t, env.db, "A-003", "POST", 3.0)
	worker := env.login(t, "worker", 1)
	manager := env.login(t, "manager", 3)

	w := testutil.DoRequest(env.router, "POST", "/dashboard/api/saved-list", map[string]interface{}{
		"assembly_codes": []string{"A-001", "A-002", "A-003"},
	}, worker)
	expectStatus(t, w, http.StatusOK)

	w = testutil.DoRequest(env.router, "GET", "/dashboard/api/saved-list", nil, worker)
	resp := expectStatus(t, w, http.StatusOK)
	data := resp["data"].(map[string]interface{})
	if data["total"].(float64) != 3 {
		t.Fatalf("Expected 3 saved items, got %v", data["total"])
	}

	// 다음 공정이 다른 항목은 함께 신청할 수 없다
	w = testutil.DoRequest(env.router, "POST", "/dashboard/api/create-inspection-request", map[string]interface{}{
		"assembly_codes": []string{"A-001", "A-003"},
		"request_date":   day,
	}, worker)
	expectCode(t, expectStatus(t, w, http.StatusBadRequest), 40001)

	w = testutil.DoRequest(env.router, "POST", "/dashboard/api/create-inspection-request", map[string]interface{}{
		"assembly_codes": []string{"A-001", "A-002"},
	}, worker)
	expectCode(t, expectStatus(t, w, http.StatusBadRequest), 40000)

	w = testutil.DoRequest(env.router, "POST", "/dashboard/api/create-inspection-request", map[string]interface{}{
		"assembly_codes": []string{"A-001", "A-002"},
		"request_date":   day,
	}, worker)
	resp = expectStatus(t, w, http.StatusOK)
	data = resp["data"].(map[string]interface{})
	if data["inspection_type"] != "FINAL" {
		t.Errorf("Expected FINAL, got %v", data["inspection_type"])
	}
	removal := data["saved_list_removal"].(map[string]interface{})
	if removal["removed"].(float64) != 2 || removal["failed"].(float64) != 0 {
		t.Errorf("Unexpected removal result: %v", removal)
	}

	w = testutil.DoRequest(env.router, "GET", "/dashboard/api/saved-list", nil, worker)
	data = expectStatus(t, w, http.StatusOK)["data"].(map[string]interface{})
	if data["total"].(float64) != 1 {
		t.Fatalf("Expected 1 saved item after submit, got %v", data["total"])
	}

	// 같은 항목을 다시 신청하면 중복
	testutil.DoRequest(env.router, "POST", "/dashboard/api/saved-list", map[string]interface{}{"assembly_codes": []string{"A-001"}}, worker)
	w = testutil.DoRequest(env.router, "POST", "/dashboard/api/create-inspection-request", map[string]interface{}{
		"assembly_codes": []string{"A-001"},
		"request_date":   day,
	}, worker)
	resp = expectStatus(t, w, http.StatusConflict)
	data = resp["data"].(map[string]interface{})
	if dups := data["duplicate_items"].([]interface{}); len(dups) != 1 {
		t.Fatalf("Expected 1 duplicate, got %v", dups)
	}

	w = testutil.DoRequest(env.router, "GET", "/dashboard/api/inspection-requests", nil, manager)
	data = expectStatus(t, w, http.StatusOK)["data"].(map[string]interface{})
	requests := data["requests"].([]interface{})
	if len(requests) != 1 {
		t.Fatalf("Expected 1 request, got %d", len(requests))
	}
	id := int(requests[0].(map[string]interface{})["id"].(float64))
	base := fmt.Sprintf("/dashboard/api/inspection-requests/%d", id)

	w = testutil.DoRequest(env.router, "POST", base+"/approve", nil, worker)
	expectStatus(t, w, http.StatusForbidden)

	w = testutil.DoRequest(env.router, "POST", base+"/approve", nil, manager)
	expectStatus(t, w, http.StatusOK)

	w = testutil.DoRequest(env.router, "POST", base+"/confirm", map[string]string{}, manager)
	expectStatus(t, w, http.StatusBadRequest)

	w = testutil.DoRequest(env.router, "POST", base+"/confirm", map[string]string{"confirmed_date": "2025-07-11"}, manager)
	data = expectStatus(t, w, http.StatusOK)["data"].(map[string]interface{})
	if data["status"] != "확정됨" {
		t.Errorf("Expected 확정됨, got %v", data["status"])
	}

	w = testutil.DoRequest(env.router, "GET", "/dashboard/api/search?q=001", nil, worker)
	data = expectStatus(t, w, http.StatusOK)["data"].(map[string]interface{})
	items := data["items"].([]interface{})
	if len(items) != 1 || items[0].(map[string]interface{})["final_date"] != "2025-07-11" {
		t.Errorf("Expected confirmed FINAL date on A-001, got %v", items)
	}

	w = testutil.DoRequest(env.router, "POST", base+"/unknown", nil, manager)
	expectStatus(t, w, http.StatusNotFound)

	w = testutil.DoRequest(env.router, "DELETE", base, nil, worker)
	expectStatus(t, w, http.StatusForbidden)

	w = testutil.DoRequest(env.router, "DELETE", base, nil, manager)
	expectStatus(t, w, http.StatusOK)

	w = testutil.DoRequest(env.router, "GET", "/dashboard/api/inspection-requests", nil, manager)
	data = expectStatus(t, w, http.StatusOK)["data"].(map[string]interface{})
	if got := data["total"].(float64); got != 0 {
		t.Errorf("Expected no requests after delete, got %v", got)
	}
}
