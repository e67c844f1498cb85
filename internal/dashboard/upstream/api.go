package upstream

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jimp5978/dshi-field-app/internal/ecs/entity"
	"github.com/jimp5978/dshi-field-app/internal/ecs/lifecycle"
)

// LoginResult POST /api/login
type LoginResult struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int64        `json:"expires_in"`
	User         *entity.User `json:"user"`
}

// SearchResult GET /api/assemblies/search
type SearchResult struct {
	Items []entity.AssemblyView `json:"items"`
	Total int                   `json:"total"`
}

// SavedEntry 저장 리스트 항목. 진행 요약은 대시보드가 다시 계산한다
type SavedEntry struct {
	entity.Assembly
	SavedAt time.Time `json:"saved_at"`
}

type savedListResult struct {
	Items []SavedEntry `json:"items"`
	Total int          `json:"total"`
}

// AddResult POST /api/saved-list
type AddResult struct {
	SavedCount   int      `json:"saved_count"`
	UpdatedCount int      `json:"updated_count"`
	Total        int64    `json:"total"`
	InvalidCodes []string `json:"invalid_codes,omitempty"`
}

// CreateRequest POST /api/inspection-requests
type CreateRequest struct {
	AssemblyCodes  []string `json:"assembly_codes"`
	InspectionType string   `json:"inspection_type"`
	RequestDate    string   `json:"request_date"`
	Notes          string   `json:"notes,omitempty"`
}

// CreateResult 전부 중복이면 Conflict 오류와 함께 채워진다
type CreateResult struct {
	Request        *entity.InspectionRequest `json:"request,omitempty"`
	InsertedCount  int                       `json:"inserted_count"`
	InsertedCodes  []string                  `json:"inserted_codes"`
	DuplicateItems []entity.DuplicateItem    `json:"duplicate_items"`
}

// ListFilter GET /api/inspection-management/requests 쿼리
type ListFilter struct {
	Status         string
	InspectionType string
	AssemblyCode   string
	Page           int
	PageSize       int
}

func (f ListFilter) query() string {
	q := url.Values{}
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	if f.InspectionType != "" {
		q.Set("inspection_type", f.InspectionType)
	}
	if f.AssemblyCode != "" {
		q.Set("assembly_code", f.AssemblyCode)
	}
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	if f.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(f.PageSize))
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

// ListResult 검사신청 목록
type ListResult struct {
	Requests  []entity.InspectionRequest `json:"requests"`
	Total     int64                      `json:"total"`
	UserLevel lifecycle.Level            `json:"user_level"`
}

func (c *Client) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	var res LoginResult
	body := map[string]string{"username": username, "password": password}
	if err := c.doRequest(ctx, http.MethodPost, "/api/login", "", body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) SearchAssemblies(ctx context.Context, token, query string) (*SearchResult, error) {
	var res SearchResult
	path := "/api/assemblies/search?q=" + url.QueryEscape(query)
	if err := c.doRequest(ctx, http.MethodGet, path, token, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) SavedList(ctx context.Context, token string) ([]SavedEntry, error) {
	var res savedListResult
	if err := c.doRequest(ctx, http.MethodGet, "/api/saved-list", token, nil, &res); err != nil {
		return nil, err
	}
	return res.Items, nil
}

func (c *Client) AddToSavedList(ctx context.Context, token string, codes []string) (*AddResult, error) {
	var res AddResult
	body := map[string][]string{"assembly_codes": codes}
	if err := c.doRequest(ctx, http.MethodPost, "/api/saved-list", token, body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) RemoveFromSavedList(ctx context.Context, token, code string) error {
	return c.doRequest(ctx, http.MethodDelete, "/api/saved-list/"+escape(code), token, nil, nil)
}

// ClearSavedList 삭제된 건수
func (c *Client) ClearSavedList(ctx context.Context, token string) (int64, error) {
	var res struct {
		DeletedCount int64 `json:"deleted_count"`
	}
	if err := c.doRequest(ctx, http.MethodDelete, "/api/saved-list/clear", token, nil, &res); err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// CreateInspectionRequest 전부 중복(409)이어도 결과를 함께 돌려준다
func (c *Client) CreateInspectionRequest(ctx context.Context, token string, in CreateRequest) (*CreateResult, error) {
	var res CreateResult
	err := c.doRequest(ctx, http.MethodPost, "/api/inspection-requests", token, in, &res)
	return &res, err
}

func (c *Client) ListInspectionRequests(ctx context.Context, token string, f ListFilter) (*ListResult, error) {
	var res ListResult
	if err := c.doRequest(ctx, http.MethodGet, "/api/inspection-management/requests"+f.query(), token, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) transition(ctx context.Context, token string, id uint, action lifecycle.Action, payload *lifecycle.Payload) (*entity.InspectionRequest, error) {
	var res entity.InspectionRequest
	path := fmt.Sprintf("/api/inspection-management/requests/%d/%s", id, action)
	var body interface{}
	if payload != nil {
		body = payload
	}
	if err := c.doRequest(ctx, http.MethodPut, path, token, body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Approve(ctx context.Context, token string, id uint) (*entity.InspectionRequest, error) {
	return c.transition(ctx, token, id, lifecycle.ActionApprove, nil)
}

func (c *Client) Reject(ctx context.Context, token string, id uint, reason string) (*entity.InspectionRequest, error) {
	return c.transition(ctx, token, id, lifecycle.ActionReject, &lifecycle.Payload{RejectReason: reason})
}

func (c *Client) Confirm(ctx context.Context, token string, id uint, confirmedDate string) (*entity.InspectionRequest, error) {
	return c.transition(ctx, token, id, lifecycle.ActionConfirm, &lifecycle.Payload{ConfirmedDate: confirmedDate})
}

func (c *Client) Cancel(ctx context.Context, token string, id uint) (*entity.InspectionRequest, error) {
	return c.transition(ctx, token, id, lifecycle.ActionCancel, nil)
}

func (c *Client) Delete(ctx context.Context, token string, id uint) error {
	return c.doRequest(ctx, http.MethodDelete, fmt.Sprintf("/api/inspection-management/requests/%d", id), token, nil, nil)
}
