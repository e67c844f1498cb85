package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jimp5978/dshi-field-app/internal/config"
	"github.com/jimp5978/dshi-field-app/internal/ecs/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(config.UpstreamConfig{
		BaseURL:        srv.URL,
		ConnectTimeout: time.Second,
		ReadTimeout:    time.Second,
	}, zap.NewNop())
}

func writeEnvelope(w http.ResponseWriter, status, code int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{"code": code, "message": message, "data": data})
}

func TestSearchForwardsToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/assemblies/search", r.URL.Path)
		assert.Equal(t, "001", r.URL.Query().Get("q"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		writeEnvelope(w, 200, 0, "success", map[string]interface{}{
			"items": []map[string]interface{}{{"assembly_code": "A-001", "item": "BEAM"}},
			"total": 1,
		})
	})

	res, err := c.SearchAssemblies(context.Background(), "tok", "001")
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "A-001", res.Items[0].AssemblyCode)
}

func TestClientErrorKeepsMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, 403, 40300, "권한이 없습니다 (Level 3 이상 필요)", nil)
	})

	_, err := c.Confirm(context.Background(), "tok", 7, "2025-01-10")
	require.Error(t, err)
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))
	assert.Equal(t, "권한이 없습니다 (Level 3 이상 필요)", apperr.MessageOf(err, ""))
}

func TestServerErrorIsUnavailable(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, 500, 50000, "db exploded", nil)
	})

	_, err := c.SavedList(context.Background(), "tok")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrUpstreamUnavailable)
	assert.Equal(t, unavailableMessage, apperr.MessageOf(err, ""))
}

func TestTransportFailureIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c := NewClient(config.UpstreamConfig{BaseURL: base, ConnectTimeout: 200 * time.Millisecond, ReadTimeout: 200 * time.Millisecond}, zap.NewNop())
	err := c.RemoveFromSavedList(context.Background(), "tok", "A-001")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrUpstreamUnavailable)
}

func TestNonJSONBodyIsUnavailable(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(502)
		w.Write([]byte("<html>bad gateway</html>"))
	})

	_, err := c.Login(context.Background(), "a", "b")
	assert.ErrorIs(t, err, apperr.ErrUpstreamUnavailable)
}

func TestCreateConflictReturnsDuplicates(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body CreateRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []string{"A-001"}, body.AssemblyCodes)
		assert.Equal(t, "FIT-UP", body.InspectionType)
		writeEnvelope(w, 409, 40900, "모든 항목이 이미 검사신청되어 있습니다", map[string]interface{}{
			"inserted_count":  0,
			"duplicate_items": []map[string]interface{}{{"assembly_code": "A-001", "existing_requester": "kim", "existing_date": "2025-01-09"}},
		})
	})

	res, err := c.CreateInspectionRequest(context.Background(), "tok", CreateRequest{
		AssemblyCodes:  []string{"A-001"},
		InspectionType: "FIT-UP",
		RequestDate:    "2025-01-10",
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	require.NotNil(t, res)
	require.Len(t, res.DuplicateItems, 1)
	assert.Equal(t, "kim", res.DuplicateItems[0].ExistingRequester)
}

func TestRemoveEscapesCode(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/saved-list/A%2F001", r.URL.EscapedPath())
		writeEnvelope(w, 200, 0, "success", nil)
	})

	require.NoError(t, c.RemoveFromSavedList(context.Background(), "tok", "A/001"))
}

func TestListFilterQuery(t *testing.T) {
	assert.Equal(t, "", ListFilter{}.query())
	assert.Equal(t, "?page=2&status=%EB%8C%80%EA%B8%B0%EC%A4%91", ListFilter{Status: "대기중", Page: 2}.query())
}
