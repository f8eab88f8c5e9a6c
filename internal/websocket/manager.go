package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"
)

// Event представляет структуру WebSocket-сообщения
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// inboundEvent — входящее сообщение клиента; data разбирается обработчиком
type inboundEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Manager обрабатывает входящие сообщения и рассылает события инстансов
type Manager struct {
	hub            *Hub
	relay          *ClusterRelay
	messageHandler map[string]func(data json.RawMessage, client *Client) error
}

// NewManager создает новый менеджер WebSocket. relay может быть nil.
func NewManager(hub *Hub, relay *ClusterRelay) *Manager {
	return &Manager{
		hub:            hub,
		relay:          relay,
		messageHandler: make(map[string]func(data json.RawMessage, client *Client) error),
	}
}

// Hub возвращает локальный hub
func (m *Manager) Hub() *Hub {
	return m.hub
}

// RegisterHandler регистрирует обработчик для определенного типа сообщений
func (m *Manager) RegisterHandler(eventType string, handler func(data json.RawMessage, client *Client) error) {
	m.messageHandler[eventType] = handler
	log.Printf("[WebSocketManager] Зарегистрирован обработчик для сообщений типа: %s", eventType)
}

// HandleMessage обрабатывает входящее сообщение от клиента.
// Возвращает error, если соединение нужно закрыть.
func (m *Manager) HandleMessage(message []byte, client *Client) error {
	var event inboundEvent
	if err := json.Unmarshal(message, &event); err != nil {
		m.SendErrorToClient(client, "invalid_message_format", "Invalid JSON format")
		return err
	}

	handler, ok := m.messageHandler[event.Type]
	if !ok {
		m.SendErrorToClient(client, "unknown_message_type", fmt.Sprintf("Unknown message type: %s", event.Type))
		return nil
	}
	return handler(event.Data, client)
}

// SendEventToClient отправляет событие одному соединению
func (m *Manager) SendEventToClient(client *Client, eventType string, data interface{}) error {
	raw, err := json.Marshal(Event{Type: eventType, Data: data})
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", eventType, err)
	}
	if !m.hub.SendToClient(client, raw) {
		return fmt.Errorf("client %s send buffer is full", client.ConnectionID)
	}
	return nil
}

// SendErrorToClient отправляет клиенту сообщение об ошибке, не закрывая соединение
func (m *Manager) SendErrorToClient(client *Client, code string, message string) {
	if err := m.SendEventToClient(client, EventServerError, map[string]string{
		"code":    code,
		"message": message,
	}); err != nil {
		log.Printf("[WebSocketManager] Не удалось отправить ошибку клиенту %s: %v", client.ConnectionID, err)
	}
}

// BroadcastEventToInstance рассылает событие подписчикам инстанса на этом узле
// и публикует его для остальных узлов кластера
func (m *Manager) BroadcastEventToInstance(instanceID uint, eventType string, data interface{}) error {
	raw, err := json.Marshal(Event{Type: eventType, Data: data})
	if err != nil {
		return fmt.Errorf("failed to marshal event for instance %d: %w", instanceID, err)
	}

	delivered := m.hub.BroadcastToInstance(instanceID, raw)
	log.Printf("[WebSocketManager] Событие %s инстанса %d доставлено %d локальным подписчикам", eventType, instanceID, delivered)

	if m.relay == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.relay.Publish(ctx, instanceID, raw); err != nil {
		return fmt.Errorf("failed to publish event for instance %d: %w", instanceID, err)
	}
	return nil
}
