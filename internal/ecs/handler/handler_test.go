package handler

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jimp5978/dshi-field-app/internal/ecs/entity"
	"github.com/jimp5978/dshi-field-app/internal/ecs/repository"
	"github.com/jimp5978/dshi-field-app/internal/ecs/service"
	"github.com/jimp5978/dshi-field-app/internal/ecs/sse"
	"github.com/jimp5978/dshi-field-app/internal/ecs/testutil"
	"github.com/jimp5978/dshi-field-app/internal/shared/cache"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const day = "2025-07-10"

type apiEnv struct {
	db     *gorm.DB
	router *gin.Engine
}

func setupAPI(t *testing.T) *apiEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	router := testutil.SetupRouter()

	repos := repository.NewRepositories(db)
	hub := sse.NewHub(zap.NewNop())
	svc := service.NewServices(repos, cache.NewMemory(), hub, nil, testutil.TestConfig(), zap.NewNop())
	RegisterRoutes(router, NewHandlers(svc, hub, 1<<20, zap.NewNop()), testutil.JWTSecret)

	return &apiEnv{db: db, router: router}
}

func (e *apiEnv) user(t *testing.T, username string, level int) (*entity.User, string) {
	t.Helper()
	u := testutil.SeedUser(t, e.db, username, level, service.HashPassword(username))
	return u, testutil.TokenFor(u)
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, status int) map[string]interface{} {
	t.Helper()
	if w.Code != status {
		t.Fatalf("Expected %d, got %d: %s", status, w.Code, w.Body.String())
	}
	return testutil.ParseResponse(w)
}

func TestLogin(t *testing.T) {
	env := setupAPI(t)
	env.user(t, "kim", 2)

	w := testutil.DoRequest(env.router, "POST", "/api/login", map[string]string{"username": "kim", "password": "bad"}, "")
	resp := expectStatus(t, w, http.StatusUnauthorized)
	if resp["code"].(float64) != 40101 {
		t.Errorf("Expected code 40101, got %v", resp["code"])
	}

	w = testutil.DoRequest(env.router, "POST", "/api/login", map[string]string{"username": "kim"}, "")
	expectStatus(t, w, http.StatusBadRequest)

	w = testutil.DoRequest(env.router, "POST", "/api/login", map[string]string{"username": "kim", "password": "kim"}, "")
	resp = expectStatus(t, w, http.StatusOK)
	data := resp["data"].(map[string]interface{})
	token, _ := data["token"].(string)
	if token == "" {
		t.Fatal("Expected token in login response")
	}

	// 발급된 토큰으로 인증 경로 호출
	w = testutil.DoRequest(env.router, "GET", "/api/saved-list", nil, token)
	expectStatus(t, w, http.StatusOK)
}

func TestAuthRequired(t *testing.T) {
	env := setupAPI(t)

	w := testutil.DoRequest(env.router, "GET", "/api/assemblies/search?q=SA", nil, "")
	resp := expectStatus(t, w, http.StatusUnauthorized)
	if resp["code"].(float64) != 40100 {
		t.Errorf("Expected code 40100, got %v", resp["code"])
	}

	w = testutil.DoRequest(env.router, "GET", "/api/assemblies/search?q=SA", nil, "not-a-token")
	expectStatus(t, w, http.StatusUnauthorized)

	// 레벨 범위 밖 토큰은 거절
	w = testutil.DoRequest(env.router, "GET", "/api/assemblies/search?q=SA", nil, testutil.GenerateTestToken(1, "x", 9))
	expectStatus(t, w, http.StatusUnauthorized)
}

func TestSearchAndSavedList(t *testing.T) {
	env := setupAPI(t)
	_, token := env.user(t, "kim", 1)
	testutil.SeedAssembly(t, env.db, "SA201", "BEAM", 100, day, day)
	testutil.SeedAssembly(t, env.db, "SA202", "BEAM", 100, day, day)

	w := testutil.DoRequest(env.router, "GET", "/api/assemblies/search?q=sa20", nil, token)
	resp := expectStatus(t, w, http.StatusOK)
	data := resp["data"].(map[string]interface{})
	if data["total"].(float64) != 2 {
		t.Fatalf("Expected 2 results, got %v", data["total"])
	}
	first := data["items"].([]interface{})[0].(map[string]interface{})
	if first["next_stage"] != "ARUP_FINAL" || first["status"] != "진행중" {
		t.Errorf("Unexpected summary: %v %v", first["next_stage"], first["status"])
	}

	w = testutil.DoRequest(env.router, "GET", "/api/assemblies/search", nil, token)
	expectStatus(t, w, http.StatusBadRequest)

	w = testutil.DoRequest(env.router, "POST", "/api/saved-list", map[string]interface{}{
		"items": []map[string]string{{"assembly_code": "SA201"}, {"assembly_code": "SA202"}},
	}, token)
	resp = expectStatus(t, w, http.StatusOK)
	if resp["data"].(map[string]interface{})["saved_count"].(float64) != 2 {
		t.Errorf("Expected saved_count 2, got %v", resp["data"])
	}

	w = testutil.DoRequest(env.router, "DELETE", "/api/saved-list/SA201", nil, token)
	expectStatus(t, w, http.StatusOK)
	w = testutil.DoRequest(env.router, "DELETE", "/api/saved-list/SA201", nil, token)
	expectStatus(t, w, http.StatusNotFound)

	w = testutil.DoRequest(env.router, "DELETE", "/api/saved-list/clear", nil, token)
	resp = expectStatus(t, w, http.StatusOK)
	if resp["data"].(map[string]interface{})["deleted_count"].(float64) != 1 {
		t.Errorf("Expected deleted_count 1, got %v", resp["data"])
	}
}

func TestUploadExcelCSV(t *testing.T) {
	env := setupAPI(t)
	_, token := env.user(t, "kim", 1)
	testutil.SeedAssembly(t, env.db, "SA201", "BEAM", 100)

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, _ := mw.CreateFormFile("file", "codes.csv")
	part.Write([]byte("SA201\nNOPE\n"))
	mw.Close()

	req, _ := http.NewRequest("POST", "/api/upload-excel", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	resp := expectStatus(t, w, http.StatusOK)
	data := resp["data"].(map[string]interface{})
	if data["valid_count"].(float64) != 1 || data["invalid_count"].(float64) != 1 {
		t.Errorf("Unexpected upload result: %v", data)
	}

	codes := make([]string, 101)
	for i := range codes {
		codes[i] = fmt.Sprintf("X%03d", i)
	}
	w = testutil.DoRequest(env.router, "POST", "/api/upload-assembly-codes", map[string]interface{}{"assembly_codes": codes}, token)
	resp = expectStatus(t, w, http.StatusBadRequest)
	if !strings.Contains(resp["message"].(string), "최대 100개") {
		t.Errorf("Unexpected message: %v", resp["message"])
	}
}

func TestInspectionFlow(t *testing.T) {
	env := setupAPI(t)
	_, worker := env.user(t, "kim", 1)
	_, inspector := env.user(t, "park", 2)
	_, manager := env.user(t, "choi", 3)
	testutil.SeedAssembly(t, env.db, "SA201", "BEAM", 100, day)
	testutil.SeedAssembly(t, env.db, "SA202", "BEAM", 100, day)
	testutil.SeedAssembly(t, env.db, "SA203", "BEAM", 100)

	// 다음 공정이 다른 항목을 섞으면 400
	w := testutil.DoRequest(env.router, "POST", "/api/inspection-requests", map[string]interface{}{
		"assembly_codes": []string{"SA201", "SA203"}, "request_date": day,
	}, worker)
	resp := expectStatus(t, w, http.StatusBadRequest)
	if resp["code"].(float64) != 40001 {
		t.Errorf("Expected code 40001, got %v", resp["code"])
	}

	w = testutil.DoRequest(env.router, "POST", "/api/inspection-requests", map[string]interface{}{
		"assembly_codes": []string{"SA201", "SA202"}, "inspection_type": "FINAL", "request_date": day,
	}, worker)
	resp = expectStatus(t, w, http.StatusCreated)
	data := resp["data"].(map[string]interface{})
	request := data["request"].(map[string]interface{})
	id := int(request["id"].(float64))
	if data["inserted_count"].(float64) != 2 {
		t.Errorf("Expected inserted_count 2, got %v", data["inserted_count"])
	}

	// 같은 항목 재신청은 409 + 중복 목록
	w = testutil.DoRequest(env.router, "POST", "/api/inspection-requests", map[string]interface{}{
		"assembly_codes": []string{"SA201"}, "request_date": day,
	}, worker)
	resp = expectStatus(t, w, http.StatusConflict)
	dups := resp["data"].(map[string]interface{})["duplicate_items"].([]interface{})
	if len(dups) != 1 || dups[0].(map[string]interface{})["existing_requester"] != "kim" {
		t.Errorf("Unexpected duplicates: %v", dups)
	}

	base := fmt.Sprintf("/api/inspection-management/requests/%d", id)

	w = testutil.DoRequest(env.router, "PUT", base+"/approve", nil, worker)
	expectStatus(t, w, http.StatusForbidden)

	w = testutil.DoRequest(env.router, "PUT", base+"/approve", nil, inspector)
	resp = expectStatus(t, w, http.StatusOK)
	if resp["data"].(map[string]interface{})["status_code"] != "APPROVED" {
		t.Errorf("Expected APPROVED, got %v", resp["data"])
	}

	w = testutil.DoRequest(env.router, "PUT", base+"/confirm", map[string]string{}, manager)
	expectStatus(t, w, http.StatusBadRequest)

	w = testutil.DoRequest(env.router, "PUT", base+"/confirm", map[string]string{"confirmed_date": "2025-07-21"}, manager)
	resp = expectStatus(t, w, http.StatusOK)
	if resp["data"].(map[string]interface{})["status"] != "확정됨" {
		t.Errorf("Expected 확정됨, got %v", resp["data"])
	}

	w = testutil.DoRequest(env.router, "GET", "/api/assemblies/SA201", nil, worker)
	resp = expectStatus(t, w, http.StatusOK)
	if resp["data"].(map[string]interface{})["final_date"] != "2025-07-21" {
		t.Errorf("Expected final_date written, got %v", resp["data"])
	}

	w = testutil.DoRequest(env.router, "PUT", base+"/publish", nil, manager)
	expectStatus(t, w, http.StatusNotFound)

	w = testutil.DoRequest(env.router, "GET", base+"/history", nil, manager)
	resp = expectStatus(t, w, http.StatusOK)
	if len(resp["data"].([]interface{})) != 3 {
		t.Errorf("Expected 3 history rows, got %v", resp["data"])
	}

	// Level 1은 확정된 건을 목록에서 보지 않는다
	w = testutil.DoRequest(env.router, "GET", "/api/inspection-management/requests", nil, worker)
	resp = expectStatus(t, w, http.StatusOK)
	if resp["data"].(map[string]interface{})["total"].(float64) != 0 {
		t.Errorf("Expected empty list for level 1, got %v", resp["data"])
	}

	w = testutil.DoRequest(env.router, "GET", "/api/inspection-management/export", nil, manager)
	if w.Code != http.StatusOK || !strings.Contains(w.Header().Get("Content-Disposition"), ".xlsx") {
		t.Errorf("Expected xlsx download, got %d %v", w.Code, w.Header())
	}

	w = testutil.DoRequest(env.router, "DELETE", base, nil, inspector)
	expectStatus(t, w, http.StatusForbidden)
	w = testutil.DoRequest(env.router, "DELETE", base, nil, manager)
	expectStatus(t, w, http.StatusOK)
	w = testutil.DoRequest(env.router, "GET", base, nil, manager)
	expectStatus(t, w, http.StatusNotFound)

	w = testutil.DoRequest(env.router, "GET", "/api/inspection-management/requests/abc", nil, manager)
	expectStatus(t, w, http.StatusBadRequest)
}

func TestDashboardAndAdminGates(t *testing.T) {
	env := setupAPI(t)
	_, worker := env.user(t, "kim", 1)
	_, manager := env.user(t, "choi", 3)
	admin, adminToken := env.user(t, "admin", 5)

	w := testutil.DoRequest(env.router, "GET", "/api/dashboard-data", nil, worker)
	resp := expectStatus(t, w, http.StatusForbidden)
	if !strings.Contains(resp["message"].(string), "Level 3") {
		t.Errorf("Unexpected message: %v", resp["message"])
	}
	w = testutil.DoRequest(env.router, "GET", "/api/dashboard-data", nil, manager)
	expectStatus(t, w, http.StatusOK)

	w = testutil.DoRequest(env.router, "GET", "/api/admin/users", nil, manager)
	expectStatus(t, w, http.StatusForbidden)

	w = testutil.DoRequest(env.router, "POST", "/api/admin/users", map[string]interface{}{"username": "lee", "permission_level": 2}, adminToken)
	resp = expectStatus(t, w, http.StatusCreated)
	newID := int(resp["data"].(map[string]interface{})["id"].(float64))

	w = testutil.DoRequest(env.router, "PUT", fmt.Sprintf("/api/admin/users/%d", newID), map[string]interface{}{"full_name": "이순신"}, adminToken)
	resp = expectStatus(t, w, http.StatusOK)
	if resp["data"].(map[string]interface{})["full_name"] != "이순신" {
		t.Errorf("Expected full_name updated, got %v", resp["data"])
	}

	w = testutil.DoRequest(env.router, "DELETE", fmt.Sprintf("/api/admin/users/%d/delete-permanently", admin.ID), nil, adminToken)
	expectStatus(t, w, http.StatusBadRequest)

	w = testutil.DoRequest(env.router, "DELETE", fmt.Sprintf("/api/admin/users/%d/delete-permanently", newID), nil, adminToken)
	expectStatus(t, w, http.StatusOK)
}
