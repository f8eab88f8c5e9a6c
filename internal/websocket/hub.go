package websocket

import (
	"log"
	"sync"
)

// Hub хранит локальные соединения узла и подписки на инстансы.
// Доставка выполняется только локальным клиентам; межузловую рассылку делает ClusterRelay.
type Hub struct {
	mu        sync.RWMutex
	clients   map[*Client]struct{}
	instances map[uint]map[*Client]struct{}
	closed    bool
}

// NewHub создает пустой hub
func NewHub() *Hub {
	return &Hub{
		clients:   make(map[*Client]struct{}),
		instances: make(map[uint]map[*Client]struct{}),
	}
}

// Register добавляет клиента
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		client.CloseSend()
		return
	}
	h.clients[client] = struct{}{}
	log.Printf("[Hub] Клиент подключен: user=%d conn=%s (всего %d)", client.UserID, client.ConnectionID, len(h.clients))
}

// Unregister удаляет клиента вместе с его подпиской и закрывает канал отправки
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; !ok {
		return
	}
	h.unsubscribeLocked(client)
	delete(h.clients, client)
	client.CloseSend()
}

// Subscribe подписывает клиента на события инстанса; прежняя подписка снимается
func (h *Hub) Subscribe(client *Client, instanceID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; !ok {
		return
	}
	h.unsubscribeLocked(client)

	subs, ok := h.instances[instanceID]
	if !ok {
		subs = make(map[*Client]struct{})
		h.instances[instanceID] = subs
	}
	subs[client] = struct{}{}
	client.setInstanceID(instanceID)
}

// Unsubscribe снимает подписку клиента
func (h *Hub) Unsubscribe(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unsubscribeLocked(client)
}

func (h *Hub) unsubscribeLocked(client *Client) {
	current := client.InstanceID()
	if current == 0 {
		return
	}
	if subs, ok := h.instances[current]; ok {
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.instances, current)
		}
	}
	client.setInstanceID(0)
}

// BroadcastToInstance доставляет сообщение локальным подписчикам инстанса.
// Клиенты, переполнившие буфер несколько раз подряд, отключаются.
func (h *Hub) BroadcastToInstance(instanceID uint, message []byte) int {
	h.mu.RLock()
	subs := h.instances[instanceID]
	targets := make([]*Client, 0, len(subs))
	for client := range subs {
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	delivered := 0
	var slow []*Client
	for _, client := range targets {
		if client.enqueue(message) {
			delivered++
			continue
		}
		if client.noteOverflow() >= maxBufferWarnings {
			slow = append(slow, client)
		}
	}
	for _, client := range slow {
		log.Printf("[Hub] Клиент user=%d conn=%s не успевает читать, отключаем", client.UserID, client.ConnectionID)
		h.Unregister(client)
	}
	return delivered
}

// SendToClient отправляет сообщение одному соединению
func (h *Hub) SendToClient(client *Client, message []byte) bool {
	return client.enqueue(message)
}

// ClientCount возвращает количество локальных соединений
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SubscriberCount возвращает количество локальных подписчиков инстанса
func (h *Hub) SubscriberCount(instanceID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.instances[instanceID])
}

// Close отключает всех клиентов; новые регистрации отклоняются
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for client := range h.clients {
		client.CloseSend()
	}
	h.clients = make(map[*Client]struct{})
	h.instances = make(map[uint]map[*Client]struct{})
	log.Println("[Hub] Все соединения закрыты")
}
