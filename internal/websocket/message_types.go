package websocket

// События, которые сервер рассылает подписчикам инстанса
const (
	// EventInstanceStatus — смена статуса инстанса
	EventInstanceStatus = "instance:status"

	// EventInstanceQuestion — открыт очередной вопрос live-викторины
	EventInstanceQuestion = "instance:question"

	// EventInstanceResults — итоговые ранги инстанса
	EventInstanceResults = "instance:results"
)

// Сообщения клиента
const (
	MsgInstanceSubscribe   = "instance:subscribe"
	MsgInstanceUnsubscribe = "instance:unsubscribe"
	MsgHeartbeat           = "user:heartbeat"
)

// Служебные ответы сервера
const (
	EventSubscribed      = "instance:subscribed"
	EventServerHeartbeat = "server:heartbeat"
	EventServerError     = "server:error"
)
