package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"medqueue/internal/models"
)

// Client представляет одно подключение через WebSocket.
type Client struct {
	Hub    *Hub
	Conn   *websocket.Conn
	Send   chan []byte
	Topics map[string]bool
	UserID uint
	Role   string
	done   chan struct{}
}

// clientMessage — входящий кадр клиента: явное вступление в топики
// или выход из них. Других входящих сообщений протокол не имеет.
type clientMessage struct {
	Action string   `json:"action"` // join | leave
	Topics []string `json:"topics"`
}

type clientError struct {
	Error string `json:"error"`
}

// allowedTopic проверяет право роли на подписку. Персональный топик
// доступен только самому пользователю.
func allowedTopic(role string, userID uint, topic string) bool {
	if topic == UserTopic(userID) {
		return true
	}
	switch topic {
	case TopicAdmin:
		return role == models.RoleAdmin
	case TopicDoctors:
		return role == models.RoleDoctor || role == models.RoleAdmin
	case TopicPharmacy:
		return role == models.RolePharmacist || role == models.RoleAdmin
	case TopicReception:
		return role == models.RoleReceptionist || role == models.RoleAdmin
	case TopicPatients:
		return role == models.RolePatient || role == models.RoleAdmin
	}
	return false
}

// readPump читает кадры join/leave и отслеживает разрыв соединения.
func (c *Client) readPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(512)
	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			break
		}
		var msg clientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.reply(clientError{Error: "Некорректный кадр"})
			continue
		}
		switch msg.Action {
		case "join":
			for _, topic := range msg.Topics {
				if !allowedTopic(c.Role, c.UserID, topic) {
					log.Printf("Отклонена подписка пользователя %d (роль %s) на топик %q", c.UserID, c.Role, topic)
					c.reply(clientError{Error: "Топик недоступен: " + topic})
					continue
				}
				c.Hub.subscribe <- subscription{client: c, topic: topic}
			}
		case "leave":
			for _, topic := range msg.Topics {
				c.Hub.subscribe <- subscription{client: c, topic: topic, leave: true}
			}
		default:
			// Неизвестное действие не пересылается дальше, только лог и отказ.
			log.Printf("Неизвестное действие WS-клиента: %q", msg.Action)
			c.reply(clientError{Error: "Неизвестное действие: " + msg.Action})
		}
	}
}

func (c *Client) reply(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case c.Send <- payload:
	default:
	}
}

// writePump отправляет сообщения клиенту из канала Send.
func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// Канал закрыт.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			// Отправка ping-сообщения для поддержания соединения.
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Настраиваем апгрейдер для WebSocket с разрешением всех источников.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ServeWS возвращает обработчик, который обновляет соединение до WebSocket
// и регистрирует клиента в переданном хабе. Топики клиент оформляет сам
// кадрами join после подключения.
func ServeWS(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			http.Error(c.Writer, "Ошибка обновления до WebSocket", http.StatusInternalServerError)
			return
		}
		client := &Client{
			Hub:    hub,
			Conn:   conn,
			Send:   make(chan []byte, 256),
			Topics: make(map[string]bool),
			UserID: c.GetUint("userID"),
			Role:   c.GetString("role"),
		}
		client.done = make(chan struct{})
		hub.register <- client

		go client.writePump()
		client.readPump()
	}
}
