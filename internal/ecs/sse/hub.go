package sse

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Event SSE 이벤트
type Event struct {
	EventType string `json:"event"`
	Data      string `json:"data"`
}

// Client 연결된 구독자
type Client struct {
	ID     string
	UserID uint
	Events chan Event
}

// Hub 구독자 관리. 버퍼가 찬 구독자는 이벤트를 건너뛴다
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	logger  *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logger.Named("sse"),
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
	h.logger.Debug("client registered", zap.String("id", client.ID), zap.Uint("user_id", client.UserID), zap.Int("total", len(h.clients)))
}

func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if client, ok := h.clients[clientID]; ok {
		close(client.Events)
		delete(h.clients, clientID)
		h.logger.Debug("client unregistered", zap.String("id", clientID), zap.Int("total", len(h.clients)))
	}
}

// Count 현재 연결 수
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Broadcast(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		h.send(client, event)
	}
}

// SendToUser 특정 사용자의 연결에만 전송
func (h *Hub) SendToUser(userID uint, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if client.UserID == userID {
			h.send(client, event)
		}
	}
}

func (h *Hub) send(client *Client, event Event) {
	select {
	case client.Events <- event:
	default:
		h.logger.Warn("client buffer full, skipping event", zap.String("id", client.ID), zap.String("event", event.EventType))
	}
}

// InspectionUpdate inspection_update 이벤트 내용
type InspectionUpdate struct {
	RequestID      uint   `json:"request_id"`
	Action         string `json:"action"`
	Status         string `json:"status"`
	InspectionType string `json:"inspection_type,omitempty"`
	Operator       string `json:"operator,omitempty"`
}

// PublishInspectionUpdate 검사신청 상태 변경 알림
func (h *Hub) PublishInspectionUpdate(u InspectionUpdate) {
	data, err := json.Marshal(u)
	if err != nil {
		h.logger.Error("marshal inspection_update", zap.Error(err))
		return
	}
	h.Broadcast(Event{EventType: "inspection_update", Data: string(data)})
	h.logger.Info("published inspection_update", zap.Uint("request_id", u.RequestID), zap.String("action", u.Action), zap.String("status", u.Status))
}

// PublishSavedListUpdate 저장 리스트 변경은 본인에게만
func (h *Hub) PublishSavedListUpdate(userID uint, action string, count int) {
	data, _ := json.Marshal(map[string]interface{}{"action": action, "count": count})
	h.SendToUser(userID, Event{EventType: "saved_list_update", Data: string(data)})
}
