package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"

	"github.com/ggza/trivia-core/internal/handler/dto"
	apperrors "github.com/ggza/trivia-core/internal/pkg/errors"
	"github.com/ggza/trivia-core/internal/service"
	"github.com/ggza/trivia-core/internal/websocket"
)

// InstanceAccess проверяет, что пользователь может видеть инстанс
type InstanceAccess interface {
	GetPlayable(ctx context.Context, userID, instanceID uint) (*service.PlayableInstance, error)
}

// WSHandler обрабатывает WebSocket соединения
type WSHandler struct {
	manager      *websocket.Manager
	instances    InstanceAccess
	clientConfig websocket.ClientConfig
	upgrader     gorillaws.Upgrader
}

// NewWSHandler создает новый обработчик WebSocket.
// allowedOrigins синхронизирован со списком CORS.
func NewWSHandler(
	manager *websocket.Manager,
	instances InstanceAccess,
	clientConfig websocket.ClientConfig,
	allowedOrigins []string,
) *WSHandler {
	h := &WSHandler{
		manager:      manager,
		instances:    instances,
		clientConfig: clientConfig,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:    4096,
			WriteBufferSize:   4096,
			CheckOrigin:       originChecker(allowedOrigins),
			EnableCompression: true,
		},
	}
	h.registerMessageHandlers()
	return h
}

// originChecker разрешает запросы без Origin (не браузерные клиенты) и из списка
func originChecker(allowedOrigins []string) func(r *http.Request) bool {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if _, ok := allowed[origin]; ok {
			return true
		}
		log.Printf("WebSocket: rejected unauthorized origin: %s", origin)
		return false
	}
}

// HandleConnection поднимает WebSocket для пользователя, уже прошедшего RequireAuth.
// Токен передается в ?token=, т.к. браузер не выставляет заголовки при апгрейде.
// GET /ws
func (h *WSHandler) HandleConnection(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		handleServiceError(c, "WSHandler", err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrader уже записал ответ с ошибкой
		log.Printf("[WSHandler] Ошибка апгрейда для user=%d: %v", userID, err)
		return
	}

	client := websocket.NewClient(h.manager.Hub(), conn, userID, h.clientConfig)
	client.StartPumps(h.manager.HandleMessage)
}

// registerMessageHandlers регистрирует обработчики сообщений клиента
func (h *WSHandler) registerMessageHandlers() {
	h.manager.RegisterHandler(websocket.MsgInstanceSubscribe, h.handleSubscribe)

	h.manager.RegisterHandler(websocket.MsgInstanceUnsubscribe, func(_ json.RawMessage, client *websocket.Client) error {
		h.manager.Hub().Unsubscribe(client)
		return nil
	})

	h.manager.RegisterHandler(websocket.MsgHeartbeat, func(_ json.RawMessage, client *websocket.Client) error {
		if err := h.manager.SendEventToClient(client, websocket.EventServerHeartbeat, gin.H{
			"timestamp": time.Now().UnixMilli(),
		}); err != nil {
			log.Printf("[WSHandler] WARNING: heartbeat не отправлен user=%d: %v", client.UserID, err)
		}
		return nil
	})
}

// handleSubscribe подписывает клиента на события инстанса после проверки доступа.
// Ошибки доступа не закрывают соединение.
func (h *WSHandler) handleSubscribe(data json.RawMessage, client *websocket.Client) error {
	var req struct {
		InstanceID uint `json:"instance_id"`
	}
	if err := json.Unmarshal(data, &req); err != nil || req.InstanceID == 0 {
		h.manager.SendErrorToClient(client, "invalid_format", "instance_id is required")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	playable, err := h.instances.GetPlayable(ctx, client.UserID, req.InstanceID)
	if err != nil {
		code := "subscribe_error"
		switch {
		case errors.Is(err, apperrors.ErrNotFound):
			code = "not_found"
		case errors.Is(err, apperrors.ErrForbidden):
			code = "forbidden"
		default:
			log.Printf("[WSHandler] Ошибка подписки user=%d на инстанс %d: %v", client.UserID, req.InstanceID, err)
		}
		h.manager.SendErrorToClient(client, code, err.Error())
		return nil
	}

	h.manager.Hub().Subscribe(client, req.InstanceID)
	if err := h.manager.SendEventToClient(client, websocket.EventSubscribed, dto.NewInstanceResponse(playable.Instance)); err != nil {
		log.Printf("[WSHandler] Подтверждение подписки не отправлено user=%d: %v", client.UserID, err)
	}
	return nil
}
