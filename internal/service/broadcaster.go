package service

// Типы событий инстанса для WebSocket
const (
	EventInstanceStatus   = "instance:status"
	EventInstanceQuestion = "instance:question"
	EventInstanceResults  = "instance:results"
)

// InstanceBroadcaster рассылает события подписчикам инстанса
type InstanceBroadcaster interface {
	BroadcastEventToInstance(instanceID uint, eventType string, data interface{}) error
}

type noopBroadcaster struct{}

func (noopBroadcaster) BroadcastEventToInstance(uint, string, interface{}) error { return nil }

func orNoop(b InstanceBroadcaster) InstanceBroadcaster {
	if b == nil {
		return noopBroadcaster{}
	}
	return b
}
