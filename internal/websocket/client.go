package websocket

import (
	"bytes"
	"fmt"
	"log"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ggza/trivia-core/internal/config"
)

const (
	defaultWriteWait      = 10 * time.Second
	defaultPongWait       = 60 * time.Second
	defaultMaxMessageSize = 4096
	defaultClientBuffer   = 64

	// Максимальное количество переполнений буфера подряд до отключения
	maxBufferWarnings = 3
)

var (
	newline = []byte{'\n'}
	space   = []byte{' '}
)

// ClientConfig содержит настройки для клиента
type ClientConfig struct {
	BufferSize     int
	PingInterval   time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64
}

// DefaultClientConfig возвращает конфигурацию клиента по умолчанию
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BufferSize:     defaultClientBuffer,
		PingInterval:   (defaultPongWait * 9) / 10,
		PongWait:       defaultPongWait,
		WriteWait:      defaultWriteWait,
		MaxMessageSize: defaultMaxMessageSize,
	}
}

// ClientConfigFrom собирает настройки клиента из конфигурации приложения.
// Нулевые значения заменяются значениями по умолчанию.
func ClientConfigFrom(cfg config.WebSocketConfig) ClientConfig {
	out := DefaultClientConfig()
	if cfg.Buffers.ClientSendBuffer > 0 {
		out.BufferSize = cfg.Buffers.ClientSendBuffer
	}
	if cfg.Ping.Timeout > 0 {
		out.PongWait = time.Duration(cfg.Ping.Timeout) * time.Second
	}
	if cfg.Ping.Interval > 0 {
		out.PingInterval = time.Duration(cfg.Ping.Interval) * time.Second
	}
	if out.PingInterval >= out.PongWait {
		out.PingInterval = (out.PongWait * 9) / 10
	}
	if cfg.Limits.WriteWait > 0 {
		out.WriteWait = time.Duration(cfg.Limits.WriteWait) * time.Second
	}
	if cfg.Limits.MaxMessageSize > 0 {
		out.MaxMessageSize = int64(cfg.Limits.MaxMessageSize)
	}
	return out
}

// Client является посредником между WebSocket соединением и hub
type Client struct {
	UserID uint

	// Уникальный ID соединения; у одного пользователя может быть несколько вкладок
	ConnectionID string

	hub    *Hub
	conn   *websocket.Conn
	config ClientConfig

	send       chan []byte
	sendClosed atomic.Bool

	// ID инстанса, на который подписан клиент (0 — нет подписки)
	instanceID atomic.Uint32

	bufferWarnings atomic.Int32
}

// NewClient создает нового клиента
func NewClient(hub *Hub, conn *websocket.Conn, userID uint, cfg ClientConfig) *Client {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultClientBuffer
	}
	return &Client{
		UserID:       userID,
		ConnectionID: uuid.New().String(),
		hub:          hub,
		conn:         conn,
		config:       cfg,
		send:         make(chan []byte, cfg.BufferSize),
	}
}

// InstanceID возвращает ID инстанса, на который подписан клиент
func (c *Client) InstanceID() uint {
	return uint(c.instanceID.Load())
}

func (c *Client) setInstanceID(instanceID uint) {
	c.instanceID.Store(uint32(instanceID))
}

// enqueue кладет сообщение в буфер без блокировки.
// Возвращает false, если буфер переполнен или канал уже закрыт.
func (c *Client) enqueue(message []byte) (ok bool) {
	if c.sendClosed.Load() {
		return false
	}
	defer func() {
		// Канал мог закрыться между проверкой и отправкой
		if recover() != nil {
			ok = false
		}
	}()
	select {
	case c.send <- message:
		c.bufferWarnings.Store(0)
		return true
	default:
		return false
	}
}

// noteOverflow увеличивает счетчик переполнений и возвращает новое значение
func (c *Client) noteOverflow() int32 {
	return c.bufferWarnings.Add(1)
}

// CloseSend безопасно закрывает канал send (только один раз)
func (c *Client) CloseSend() bool {
	if c.sendClosed.CompareAndSwap(false, true) {
		close(c.send)
		return true
	}
	return false
}

// readPump читает сообщения от клиента и передает их обработчику
func (c *Client) readPump(messageHandler func(message []byte, client *Client) error) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
		log.Printf("[WS] Read pump остановлен: user=%d conn=%s", c.UserID, c.ConnectionID)
	}()

	c.conn.SetReadLimit(c.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[WS] Ошибка чтения (user=%d conn=%s): %v", c.UserID, c.ConnectionID, err)
			}
			return
		}

		if handlerErr := safeHandleMessage(message, c, messageHandler); handlerErr != nil {
			log.Printf("[WS] Ошибка обработчика (user=%d conn=%s): %v. Соединение закрывается.", c.UserID, c.ConnectionID, handlerErr)
			return
		}
	}
}

// safeHandleMessage вызывает обработчик с recover
func safeHandleMessage(message []byte, client *Client, messageHandler func(message []byte, client *Client) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("PANIC recovered in message handler for user=%d conn=%s: %v\n%s",
				client.UserID, client.ConnectionID, r, string(debug.Stack()))
			err = fmt.Errorf("panic recovered: %v", r)
		}
	}()
	message = bytes.TrimSpace(bytes.Replace(message, newline, space, -1))
	if messageHandler == nil {
		return nil
	}
	return messageHandler(message, client)
}

// writePump отправляет сообщения клиенту из канала send и пингует соединение
func (c *Client) writePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait)); err != nil {
				return
			}
			if !ok {
				// Hub закрыл канал
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("[WS] Ошибка записи (user=%d conn=%s): %v", c.UserID, c.ConnectionID, err)
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// StartPumps регистрирует клиента в hub и запускает горутины чтения и записи
func (c *Client) StartPumps(messageHandler func(message []byte, client *Client) error) {
	if c.UserID == 0 {
		log.Printf("[WS] Клиент без UserID, соединение закрывается")
		c.conn.Close()
		return
	}
	c.hub.Register(c)

	go c.writePump()
	go c.readPump(messageHandler)
}
