package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type frame struct {
	EventType string          `json:"event_type"`
	Data      json.RawMessage `json:"data"`
}

func newTestClient(topics ...string) *Client {
	c := &Client{
		Send:   make(chan []byte, 8),
		Topics: make(map[string]bool),
		done:   make(chan struct{}),
	}
	for _, topic := range topics {
		c.Topics[topic] = true
	}
	return c
}

func waitSubscribed(t *testing.T, h *Hub, c *Client, topic string) {
	t.Helper()
	assert.Eventually(t, func() bool {
		h.mu.RLock()
		defer h.mu.RUnlock()
		return h.clients[topic][c]
	}, time.Second, 5*time.Millisecond)
}

func readFrame(t *testing.T, c *Client) frame {
	t.Helper()
	select {
	case payload := <-c.Send:
		var f frame
		assert.NoError(t, json.Unmarshal(payload, &f))
		return f
	case <-time.After(time.Second):
		t.Fatal("сообщение не пришло")
		return frame{}
	}
}

func assertNoFrame(t *testing.T, c *Client) {
	t.Helper()
	select {
	case payload := <-c.Send:
		t.Fatalf("неожиданное сообщение: %s", payload)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHubRoutesByTopic(t *testing.T) {
	h := NewHub()
	go h.Run()

	doctor := newTestClient(TopicDoctors)
	reception := newTestClient(TopicReception)
	h.register <- doctor
	h.register <- reception
	waitSubscribed(t, h, doctor, TopicDoctors)
	waitSubscribed(t, h, reception, TopicReception)

	h.PublishEvent(PatientCheckedIn{EncounterID: "enc-1", DoctorID: "doc-1"})

	f := readFrame(t, doctor)
	assert.Equal(t, "PATIENT_CHECKED_IN", f.EventType)

	var data PatientCheckedIn
	assert.NoError(t, json.Unmarshal(f.Data, &data))
	assert.Equal(t, "enc-1", data.EncounterID)

	// Событие регистратуре не адресовано.
	assertNoFrame(t, reception)
}

func TestHubDeliversOncePerClient(t *testing.T) {
	h := NewHub()
	go h.Run()

	// Админ подписан на два топика события — кадр приходит один раз.
	admin := newTestClient(TopicAdmin, TopicPatients)
	h.register <- admin
	waitSubscribed(t, h, admin, TopicAdmin)
	waitSubscribed(t, h, admin, TopicPatients)

	h.PublishEvent(DoctorStatusChanged{DoctorID: "doc-1", NewStatus: "lunch", ChangedAt: time.Now()})

	f := readFrame(t, admin)
	assert.Equal(t, "DOCTOR_STATUS_CHANGED", f.EventType)
	assertNoFrame(t, admin)
}

func TestHubSubscribeAndLeave(t *testing.T) {
	h := NewHub()
	go h.Run()

	client := newTestClient()
	h.register <- client
	h.subscribe <- subscription{client: client, topic: TopicReception}
	waitSubscribed(t, h, client, TopicReception)

	h.PublishEvent(CallNextPatient{DoctorID: "doc-1", EncounterID: "enc-1"})
	f := readFrame(t, client)
	assert.Equal(t, "CALL_NEXT_PATIENT", f.EventType)

	h.subscribe <- subscription{client: client, topic: TopicReception, leave: true}
	assert.Eventually(t, func() bool {
		h.mu.RLock()
		defer h.mu.RUnlock()
		return !h.clients[TopicReception][client]
	}, time.Second, 5*time.Millisecond)

	h.PublishEvent(CallNextPatient{DoctorID: "doc-1", EncounterID: "enc-2"})
	assertNoFrame(t, client)
}

func TestHubDropsSlowSubscriber(t *testing.T) {
	h := NewHub()
	go h.Run()

	slow := newTestClient(TopicDoctors)
	slow.Send = make(chan []byte) // никто не читает
	fast := newTestClient(TopicDoctors)
	h.register <- slow
	h.register <- fast
	waitSubscribed(t, h, slow, TopicDoctors)
	waitSubscribed(t, h, fast, TopicDoctors)

	h.PublishEvent(PatientReady{EncounterID: "enc-1", DoctorID: "doc-1"})

	// Медленного потребителя отключают, не тормозя рассылку остальным.
	f := readFrame(t, fast)
	assert.Equal(t, "PATIENT_READY", f.EventType)

	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-slow.Send:
			return !ok
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)

	h.mu.RLock()
	defer h.mu.RUnlock()
	assert.False(t, h.clients[TopicDoctors][slow])
	assert.True(t, h.clients[TopicDoctors][fast])
}

func TestHubUserTopicIsPersonal(t *testing.T) {
	h := NewHub()
	go h.Run()

	owner := newTestClient(UserTopic(7))
	other := newTestClient(UserTopic(8))
	h.register <- owner
	h.register <- other
	waitSubscribed(t, h, owner, UserTopic(7))
	waitSubscribed(t, h, other, UserTopic(8))

	h.PublishEvent(Notification{UserID: 7, Title: "Очередь", Message: "Вы следующий"})

	f := readFrame(t, owner)
	assert.Equal(t, "NOTIFICATION", f.EventType)

	// UserID не сериализуется в кадр.
	var data map[string]interface{}
	assert.NoError(t, json.Unmarshal(f.Data, &data))
	assert.NotContains(t, data, "user_id")
	assert.Equal(t, "Очередь", data["title"])

	assertNoFrame(t, other)
}
