package ws

import (
	"encoding/json"
	"log"
	"sync"
)

// Hub хранит подключения клиентов, сгруппированные по топикам.
// Подписки эфемерны: живут вместе с соединением и после реконнекта
// оформляются заново. Доставка at-most-once, без повторов и реплея —
// пропустивший событие клиент перечитывает авторитетное состояние по REST.
type Hub struct {
	// Для каждого топика храним множество подключений.
	clients map[string]map[*Client]bool
	// Канал для регистрации нового клиента.
	register chan *Client
	// Канал для удаления клиента со всеми его подписками.
	unregister chan *Client
	// Канал для подписки/отписки клиента на топик.
	subscribe chan subscription
	// Канал для трансляции сообщений по топикам.
	broadcast chan broadcastMessage
	// Mutex для защиты карты клиентов.
	mu sync.RWMutex
}

type subscription struct {
	client *Client
	topic  string
	leave  bool
}

type broadcastMessage struct {
	Topics  []string
	Message []byte
}

// envelope — исходящий кадр события.
type envelope struct {
	EventType string `json:"event_type"`
	Data      Event  `json:"data"`
}

// NewHub создает новый Hub. Экземпляр создаётся в main и передаётся явно
// оркестратору очередей и WS-обработчику.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		subscribe:  make(chan subscription, 16),
		broadcast:  make(chan broadcastMessage, 256),
	}
}

// Run запускает цикл обработки каналов хаба.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			for topic := range client.Topics {
				h.addLocked(client, topic)
			}
			h.mu.Unlock()
		case client := <-h.unregister:
			h.mu.Lock()
			h.removeClientLocked(client)
			h.mu.Unlock()
		case sub := <-h.subscribe:
			h.mu.Lock()
			if sub.leave {
				h.dropLocked(sub.client, sub.topic)
			} else {
				h.addLocked(sub.client, sub.topic)
			}
			h.mu.Unlock()
		case message := <-h.broadcast:
			h.mu.Lock()
			delivered := make(map[*Client]bool)
			for _, topic := range message.Topics {
				for client := range h.clients[topic] {
					if delivered[client] {
						continue
					}
					delivered[client] = true
					select {
					case client.Send <- message.Message:
					default:
						// Медленный потребитель: отключаем, публикацию не тормозим.
						h.removeClientLocked(client)
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

// PublishEvent сериализует событие и рассылает его во все топики события.
// Вызов не блокируется: при переполненном канале рассылки событие
// отбрасывается с записью в лог (доставка best-effort по контракту).
func (h *Hub) PublishEvent(e Event) {
	payload, err := json.Marshal(envelope{EventType: e.EventType(), Data: e})
	if err != nil {
		log.Println("Ошибка сериализации события", e.EventType(), ":", err)
		return
	}
	select {
	case h.broadcast <- broadcastMessage{Topics: e.Topics(), Message: payload}:
	default:
		log.Println("Канал рассылки переполнен, событие отброшено:", e.EventType())
	}
}

// --- внутреннее, только под h.mu ---

func (h *Hub) addLocked(client *Client, topic string) {
	if h.clients[topic] == nil {
		h.clients[topic] = make(map[*Client]bool)
	}
	h.clients[topic][client] = true
	client.Topics[topic] = true
}

func (h *Hub) dropLocked(client *Client, topic string) {
	if clients, ok := h.clients[topic]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.clients, topic)
		}
	}
	delete(client.Topics, topic)
}

func (h *Hub) removeClientLocked(client *Client) {
	closed := false
	for topic := range client.Topics {
		if clients, ok := h.clients[topic]; ok {
			if clients[client] {
				closed = true
			}
			delete(clients, client)
			if len(clients) == 0 {
				delete(h.clients, topic)
			}
		}
	}
	if closed || len(client.Topics) == 0 {
		select {
		case <-client.done:
		default:
			close(client.done)
			close(client.Send)
		}
	}
}
