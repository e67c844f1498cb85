// Package upstream 데이터 API 클라이언트. 대시보드는 DB에 직접 접근하지 않는다
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jimp5978/dshi-field-app/internal/config"
	"github.com/jimp5978/dshi-field-app/internal/ecs/apperr"
	"go.uber.org/zap"
)

const unavailableMessage = "데이터 서버에 연결할 수 없습니다. 잠시 후 다시 시도해주세요"

// Client 모든 요청이 하나의 http.Client(keep-alive)를 공유한다
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient connect/read 타임아웃은 설정값, 0이면 5s/10s
func NewClient(cfg config.UpstreamConfig, logger *zap.Logger) *Client {
	connect := cfg.ConnectTimeout
	if connect <= 0 {
		connect = 5 * time.Second
	}
	read := cfg.ReadTimeout
	if read <= 0 {
		read = 10 * time.Second
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   connect,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: read,
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   connect + read,
		},
		logger: logger.Named("upstream"),
	}
}

// envelope 데이터 API 공통 응답
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// doRequest 데이터 API 호출
// token이 있으면 Authorization 헤더로 전달하고, 응답 envelope의 data를 result로 디코딩한다.
// 실패 응답에 data가 있으면 result도 채우고 오류를 함께 돌려준다.
func (c *Client) doRequest(ctx context.Context, method, path, token string, body, result interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("upstream request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return apperr.Upstream(unavailableMessage, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperr.Upstream(unavailableMessage, fmt.Errorf("read body: %w", err))
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		c.logger.Warn("upstream returned non-json body",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
		return apperr.Upstream(unavailableMessage, fmt.Errorf("decode envelope (status %d): %w", resp.StatusCode, err))
	}

	if result != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, result); err != nil {
			return apperr.Upstream(unavailableMessage, fmt.Errorf("decode data: %w", err))
		}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 && env.Code == 0 {
		return nil
	}
	return statusError(resp.StatusCode, env, path)
}

// statusError 4xx는 서버 메시지를 살리고, 5xx는 사용자용 메시지로 바꾼다
func statusError(status int, env envelope, path string) error {
	cause := fmt.Errorf("upstream %s: status %d code %d: %s", path, status, env.Code, env.Message)
	if status >= 500 || status < 400 {
		return apperr.Upstream(unavailableMessage, cause)
	}
	kind := apperr.FromHTTPStatus(status)
	if env.Code != 0 {
		kind = apperr.KindFromCode(env.Code)
	}
	msg := env.Message
	if msg == "" {
		msg = unavailableMessage
	}
	return apperr.Wrap(kind, msg, cause)
}

func escape(code string) string {
	return url.PathEscape(code)
}
