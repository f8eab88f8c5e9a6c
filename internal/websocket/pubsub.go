package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/ggza/trivia-core/internal/config"
)

// PubSubProvider определяет интерфейс для провайдеров публикации/подписки
type PubSubProvider interface {
	// Publish публикует сообщение в указанный канал
	Publish(ctx context.Context, channel string, message []byte) error

	// Subscribe подписывается на канал; возвращаемый канал закрывается при отмене ctx
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)

	// Close закрывает все подписки
	Close() error
}

// ClusterMessage — событие инстанса, пересылаемое между узлами
type ClusterMessage struct {
	// NodeID — отправитель; свои сообщения узел игнорирует
	NodeID     string          `json:"node_id"`
	InstanceID uint            `json:"instance_id"`
	Payload    json.RawMessage `json:"payload"`
	Timestamp  time.Time       `json:"timestamp"`
}

// NoOpPubSub используется, когда кластерный режим отключен
type NoOpPubSub struct{}

// Publish ничего не делает
func (NoOpPubSub) Publish(context.Context, string, []byte) error { return nil }

// Subscribe возвращает канал, который закрывается вместе с ctx
func (NoOpPubSub) Subscribe(ctx context.Context, _ string) (<-chan []byte, error) {
	msgCh := make(chan []byte)
	go func() {
		<-ctx.Done()
		close(msgCh)
	}()
	return msgCh, nil
}

// Close ничего не делает
func (NoOpPubSub) Close() error { return nil }

// RedisPubSub реализует PubSubProvider поверх Redis PUBLISH/SUBSCRIBE.
// Клиент Redis принадлежит вызывающему коду и здесь не закрывается.
type RedisPubSub struct {
	client redis.UniversalClient

	mu   sync.Mutex
	subs map[*redis.PubSub]struct{}
}

// NewRedisPubSub создает провайдер и проверяет соединение
func NewRedisPubSub(ctx context.Context, client redis.UniversalClient) (*RedisPubSub, error) {
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis pubsub ping failed: %w", err)
	}
	return &RedisPubSub{client: client, subs: make(map[*redis.PubSub]struct{})}, nil
}

// Publish публикует сообщение в канал
func (p *RedisPubSub) Publish(ctx context.Context, channel string, message []byte) error {
	return p.client.Publish(ctx, channel, message).Err()
}

// Subscribe подписывается на канал и дожидается подтверждения подписки
func (p *RedisPubSub) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	pubsub := p.client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to Redis channel %s: %w", channel, err)
	}

	p.mu.Lock()
	p.subs[pubsub] = struct{}{}
	p.mu.Unlock()

	msgCh := make(chan []byte, 100)
	go func() {
		defer func() {
			p.release(pubsub)
			close(msgCh)
		}()

		redisCh := pubsub.Channel()
		for {
			select {
			case msg, ok := <-redisCh:
				if !ok {
					log.Printf("[RedisPubSub] Канал '%s' закрыт", channel)
					return
				}
				select {
				case msgCh <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return msgCh, nil
}

// release закрывает подписку, если она еще не закрыта
func (p *RedisPubSub) release(pubsub *redis.PubSub) error {
	p.mu.Lock()
	_, ok := p.subs[pubsub]
	delete(p.subs, pubsub)
	p.mu.Unlock()
	if !ok {
		return nil
	}
	return pubsub.Close()
}

// Close закрывает все подписки
func (p *RedisPubSub) Close() error {
	p.mu.Lock()
	subs := make([]*redis.PubSub, 0, len(p.subs))
	for sub := range p.subs {
		subs = append(subs, sub)
	}
	p.mu.Unlock()

	var lastErr error
	for _, sub := range subs {
		if err := p.release(sub); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// ClusterRelay пересылает события инстансов между узлами через PubSubProvider
type ClusterRelay struct {
	hub      *Hub
	provider PubSubProvider
	channel  string
	nodeID   string
	enabled  bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewClusterRelay создает relay; при выключенном кластере используется NoOpPubSub
func NewClusterRelay(hub *Hub, cfg config.ClusterConfig, provider PubSubProvider) *ClusterRelay {
	nodeID := cfg.InstanceID
	if nodeID == "" {
		nodeID = "node_" + uuid.New().String()
	}
	if provider == nil || !cfg.Enabled {
		provider = NoOpPubSub{}
	}
	channel := cfg.Channel
	if channel == "" {
		channel = "ggza:ws:broadcast"
	}
	return &ClusterRelay{
		hub:      hub,
		provider: provider,
		channel:  channel,
		nodeID:   nodeID,
		enabled:  cfg.Enabled,
	}
}

// NodeID возвращает идентификатор узла
func (r *ClusterRelay) NodeID() string {
	return r.nodeID
}

// Start подписывается на канал кластера и доставляет чужие события локальным подписчикам
func (r *ClusterRelay) Start(ctx context.Context) error {
	if !r.enabled {
		log.Println("[ClusterRelay] Кластерный режим отключен")
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	msgCh, err := r.provider.Subscribe(ctx, r.channel)
	if err != nil {
		cancel()
		return err
	}
	r.cancel = cancel
	log.Printf("[ClusterRelay] Узел %s подписан на канал %s", r.nodeID, r.channel)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for raw := range msgCh {
			var msg ClusterMessage
			if err := json.Unmarshal(raw, &msg); err != nil {
				log.Printf("[ClusterRelay] Некорректное сообщение кластера: %v", err)
				continue
			}
			if msg.NodeID == r.nodeID {
				continue
			}
			r.hub.BroadcastToInstance(msg.InstanceID, msg.Payload)
		}
	}()
	return nil
}

// Publish отправляет событие инстанса остальным узлам
func (r *ClusterRelay) Publish(ctx context.Context, instanceID uint, payload []byte) error {
	if !r.enabled {
		return nil
	}
	raw, err := json.Marshal(ClusterMessage{
		NodeID:     r.nodeID,
		InstanceID: instanceID,
		Payload:    payload,
		Timestamp:  time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal cluster message: %w", err)
	}
	return r.provider.Publish(ctx, r.channel, raw)
}

// Stop отписывается от канала и ждет завершения обработки
func (r *ClusterRelay) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	r.wg.Wait()
	if err := r.provider.Close(); err != nil {
		log.Printf("[ClusterRelay] Ошибка закрытия pub/sub: %v", err)
	}
}
