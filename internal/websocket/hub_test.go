package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ggza/trivia-core/internal/config"
)

func newTestClient(hub *Hub, userID uint, buffer int) *Client {
	cfg := DefaultClientConfig()
	cfg.BufferSize = buffer
	client := NewClient(hub, nil, userID, cfg)
	hub.Register(client)
	return client
}

func receiveEvent(t *testing.T, client *Client) Event {
	t.Helper()
	select {
	case raw := <-client.send:
		var event Event
		require.NoError(t, json.Unmarshal(raw, &event))
		return event
	case <-time.After(2 * time.Second):
		t.Fatalf("Клиент %d не получил сообщение", client.UserID)
		return Event{}
	}
}

func TestHub_SubscribeAndBroadcast(t *testing.T) {
	hub := NewHub()
	a := newTestClient(hub, 1, 8)
	b := newTestClient(hub, 2, 8)
	other := newTestClient(hub, 3, 8)

	hub.Subscribe(a, 10)
	hub.Subscribe(b, 10)
	hub.Subscribe(other, 11)

	delivered := hub.BroadcastToInstance(10, []byte(`{"type":"instance:status","data":{}}`))

	assert.Equal(t, 2, delivered)
	assert.Equal(t, "instance:status", receiveEvent(t, a).Type)
	assert.Equal(t, "instance:status", receiveEvent(t, b).Type)
	assert.Empty(t, other.send, "Подписчик другого инстанса не получает событие")
}

func TestHub_ResubscribeMovesClient(t *testing.T) {
	hub := NewHub()
	client := newTestClient(hub, 1, 8)

	hub.Subscribe(client, 10)
	hub.Subscribe(client, 20)

	assert.Equal(t, uint(20), client.InstanceID())
	assert.Equal(t, 0, hub.SubscriberCount(10), "Старая подписка снимается")
	assert.Equal(t, 1, hub.SubscriberCount(20))

	hub.Unsubscribe(client)
	assert.Equal(t, uint(0), client.InstanceID())
	assert.Equal(t, 0, hub.SubscriberCount(20))
}

func TestHub_UnregisterClosesSend(t *testing.T) {
	hub := NewHub()
	client := newTestClient(hub, 1, 8)
	hub.Subscribe(client, 10)

	hub.Unregister(client)
	hub.Unregister(client)

	assert.Equal(t, 0, hub.ClientCount())
	assert.Equal(t, 0, hub.SubscriberCount(10))
	_, open := <-client.send
	assert.False(t, open, "Канал отправки закрыт")
	assert.Zero(t, hub.BroadcastToInstance(10, []byte(`{}`)))
}

func TestHub_SlowClientDisconnected(t *testing.T) {
	hub := NewHub()
	slow := newTestClient(hub, 1, 1)
	hub.Subscribe(slow, 10)

	msg := []byte(`{"type":"instance:question","data":{}}`)
	assert.Equal(t, 1, hub.BroadcastToInstance(10, msg), "Первое сообщение помещается в буфер")
	for i := 0; i < maxBufferWarnings-1; i++ {
		hub.BroadcastToInstance(10, msg)
		assert.Equal(t, 1, hub.ClientCount(), "Клиент переживает первые переполнения")
	}
	hub.BroadcastToInstance(10, msg)

	assert.Equal(t, 0, hub.ClientCount(), "После серии переполнений клиент отключается")
	assert.True(t, slow.sendClosed.Load())
}

func TestHub_CloseRejectsNewClients(t *testing.T) {
	hub := NewHub()
	newTestClient(hub, 1, 8)
	hub.Close()
	assert.Equal(t, 0, hub.ClientCount())

	late := newTestClient(hub, 2, 8)
	assert.Equal(t, 0, hub.ClientCount())
	assert.True(t, late.sendClosed.Load())
}

func TestManager_HandleMessage(t *testing.T) {
	hub := NewHub()
	manager := NewManager(hub, nil)
	client := newTestClient(hub, 1, 8)

	var got uint
	manager.RegisterHandler(MsgInstanceSubscribe, func(data json.RawMessage, c *Client) error {
		var req struct {
			InstanceID uint `json:"instance_id"`
		}
		require.NoError(t, json.Unmarshal(data, &req))
		got = req.InstanceID
		return nil
	})

	require.NoError(t, manager.HandleMessage([]byte(`{"type":"instance:subscribe","data":{"instance_id":42}}`), client))
	assert.Equal(t, uint(42), got)

	require.NoError(t, manager.HandleMessage([]byte(`{"type":"quiz:join","data":{}}`), client), "Неизвестный тип не закрывает соединение")
	event := receiveEvent(t, client)
	assert.Equal(t, EventServerError, event.Type)

	assert.Error(t, manager.HandleMessage([]byte(`not json`), client), "Битый JSON закрывает соединение")
}

func TestManager_BroadcastAcrossNodes(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	newNode := func(nodeID string) (*Manager, *Hub, *ClusterRelay) {
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { rdb.Close() })
		provider, err := NewRedisPubSub(ctx, rdb)
		require.NoError(t, err)

		hub := NewHub()
		relay := NewClusterRelay(hub, config.ClusterConfig{Enabled: true, InstanceID: nodeID, Channel: "test:ws"}, provider)
		require.NoError(t, relay.Start(ctx))
		t.Cleanup(relay.Stop)
		return NewManager(hub, relay), hub, relay
	}

	managerA, hubA, _ := newNode("node-a")
	_, hubB, _ := newNode("node-b")

	local := newTestClient(hubA, 1, 8)
	remote := newTestClient(hubB, 2, 8)
	hubA.Subscribe(local, 7)
	hubB.Subscribe(remote, 7)

	require.NoError(t, managerA.BroadcastEventToInstance(7, EventInstanceResults, map[string]int{"total": 2}))

	assert.Equal(t, EventInstanceResults, receiveEvent(t, local).Type)
	event := receiveEvent(t, remote)
	assert.Equal(t, EventInstanceResults, event.Type, "Событие доходит до подписчика на другом узле")

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, local.send, "Узел не доставляет собственное сообщение повторно")
}

func TestClusterRelay_Disabled(t *testing.T) {
	relay := NewClusterRelay(NewHub(), config.ClusterConfig{}, nil)
	assert.NotEmpty(t, relay.NodeID())
	require.NoError(t, relay.Start(context.Background()))
	assert.NoError(t, relay.Publish(context.Background(), 1, []byte(`{}`)))
	relay.Stop()
}

func TestClientConfigFrom(t *testing.T) {
	cfg := ClientConfigFrom(config.WebSocketConfig{
		Buffers: config.BuffersConfig{ClientSendBuffer: 32},
		Ping:    config.PingConfig{Interval: 90, Timeout: 60},
	})
	assert.Equal(t, 32, cfg.BufferSize)
	assert.Equal(t, 60*time.Second, cfg.PongWait)
	assert.Less(t, cfg.PingInterval, cfg.PongWait, "Пинг чаще, чем таймаут pong")
	assert.Equal(t, int64(defaultMaxMessageSize), cfg.MaxMessageSize)
}
